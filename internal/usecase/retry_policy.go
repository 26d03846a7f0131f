package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"strings"
	"time"

	"github.com/user/odds-crawler/internal/repository"
	"github.com/user/odds-crawler/pkg/metrics"
)

// ErrorKind classifies why a fetch operation failed.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindTimeout
	KindConnection
	KindWindowClosed
	KindRendererUnresponsive
	KindSessionUnresponsive
	KindCanceled
	KindExtraction
	KindPersistence
	KindUnknown
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindTimeout:
		return "timeout"
	case KindConnection:
		return "connection"
	case KindWindowClosed:
		return "window_closed"
	case KindRendererUnresponsive:
		return "renderer_unresponsive"
	case KindSessionUnresponsive:
		return "session_unresponsive"
	case KindCanceled:
		return "canceled"
	case KindExtraction:
		return "extraction"
	case KindPersistence:
		return "persistence"
	}
	return "unknown"
}

// RetryDecision says whether a failed operation may be attempted again.
type RetryDecision int

const (
	Permanent RetryDecision = iota
	Transient
)

func (d RetryDecision) String() string {
	if d == Transient {
		return "transient"
	}
	return "permanent"
}

// FetchError is the error side of every fetch operation.
type FetchError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// fetchErr wraps err with the kind derived from it.
func fetchErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return err
	}
	return &FetchError{Kind: KindOf(err), Op: op, Err: err}
}

var signatures = []struct {
	kind ErrorKind
	subs []string
}{
	{KindTimeout, []string{"timeout", "timed out", "time out", "deadline exceeded"}},
	{KindRendererUnresponsive, []string{"receiving message from renderer", "renderer", "not responding", "target crashed"}},
	{KindWindowClosed, []string{"no such window", "target window already closed", "window already closed", "target closed", "session closed"}},
	{KindConnection, []string{"connection refused", "connection reset", "err_connection", "broken pipe", "eof", "websocket"}},
}

// KindOf derives an ErrorKind from err's type and message.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	switch {
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, repository.ErrSessionUnresponsive), errors.Is(err, repository.ErrSessionClosed):
		return KindSessionUnresponsive
	case errors.Is(err, repository.ErrPersistenceVerification):
		return KindPersistence
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range signatures {
		for _, sub := range sig.subs {
			if strings.Contains(msg, sub) {
				return sig.kind
			}
		}
	}
	if errors.Is(err, repository.ErrExtraction) {
		return KindExtraction
	}
	return KindUnknown
}

// ClassifyKind is the retry decision for a kind.
func ClassifyKind(k ErrorKind) RetryDecision {
	switch k {
	case KindTimeout, KindConnection, KindWindowClosed, KindRendererUnresponsive, KindSessionUnresponsive:
		return Transient
	}
	return Permanent
}

// Classify decides whether err is worth retrying on a fresh session. A
// run-fatal error is never retried, even when joined with a transient one.
func Classify(err error) RetryDecision {
	if errors.Is(err, repository.ErrRunFatal) {
		return Permanent
	}
	return ClassifyKind(KindOf(err))
}

// RetryPolicy bounds how often an operation is re-run after a transient failure.
type RetryPolicy struct {
	MaxAttempts     int
	RestartAttempts int
	Backoff         time.Duration
	JitterFactor    float64
}

// DefaultRetryPolicy allows three attempts with a session restart before each retry.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		RestartAttempts: 2,
		Backoff:         2 * time.Second,
		JitterFactor:    0.2,
	}
}

// Do runs fn until it succeeds, fails permanently, or MaxAttempts is used
// up. Before each retry the session is restarted; when it cannot be
// restarted the returned error wraps repository.ErrRunFatal.
func (p RetryPolicy) Do(ctx context.Context, s repository.Session, log *slog.Logger, m *metrics.Metrics, fn func(ctx context.Context, attempt int) error) error {
	maxAttempts := max(p.MaxAttempts, 1)
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = fn(ctx, attempt); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if Classify(err) == Permanent || attempt == maxAttempts {
			return err
		}
		log.Warn("Transient failure, restarting session before retry",
			"session", s.ID(), "attempt", attempt, "kind", KindOf(err).String(), "error", err)
		if rerr := p.restart(ctx, s, log, m); rerr != nil {
			return rerr
		}
		if serr := sleepCtx(ctx, p.delay()); serr != nil {
			return serr
		}
	}
	return err
}

func (p RetryPolicy) restart(ctx context.Context, s repository.Session, log *slog.Logger, m *metrics.Metrics) error {
	tries := max(p.RestartAttempts, 1)
	var err error
	for i := 0; i < tries; i++ {
		if err = s.Restart(ctx); err == nil {
			m.SessionRestarted()
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Error("Session restart failed", "session", s.ID(), "try", i+1, "error", err)
	}
	return fmt.Errorf("%w: session %s: %w", repository.ErrRunFatal, s.ID(), err)
}

func (p RetryPolicy) delay() time.Duration {
	if p.Backoff <= 0 {
		return 0
	}
	jitter := 1 + p.JitterFactor*(2*rand.Float64()-1)
	return time.Duration(float64(p.Backoff) * jitter)
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
