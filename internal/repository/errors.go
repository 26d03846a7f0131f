package repository

import (
	"errors"
	"fmt"
)

var (
	ErrBrowser                 = errors.New("browser operation failed")
	ErrSessionUnresponsive     = errors.New("browser session unresponsive")
	ErrSessionRestartFailed    = errors.New("browser session restart failed")
	ErrSessionClosed           = errors.New("browser session closed")
	ErrPoolTimeout             = errors.New("timed out waiting for a browser session")
	ErrPoolClosed              = errors.New("session pool closed")
	ErrChallengeTimeout        = errors.New("anti-bot challenge not cleared in time")
	ErrExtraction              = errors.New("extraction failed")
	ErrPersistenceVerification = errors.New("persisted file failed verification")
	ErrLedgerNotFound          = errors.New("ledger not found")
	ErrRecordNotFound          = errors.New("detail record not found")
	ErrQueueEmpty              = errors.New("queue is empty")
	// ErrRunFatal marks conditions that must stop the whole run.
	ErrRunFatal = errors.New("fatal run condition")
)

// BrowserError wraps a failed browser operation.
type BrowserError struct {
	Op  string
	Err error
}

func (e *BrowserError) Error() string {
	return fmt.Sprintf("browser %s: %v", e.Op, e.Err)
}

func (e *BrowserError) Unwrap() []error {
	return []error{ErrBrowser, e.Err}
}

// NewBrowserError returns nil when err is nil.
func NewBrowserError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &BrowserError{Op: op, Err: err}
}
