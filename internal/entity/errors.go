package entity

import (
	"errors"
	"fmt"
)

var (
	ErrItemNotFound      = errors.New("item not found in ledger")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// TransitionError describes a rejected status change.
type TransitionError struct {
	ItemID string
	From   Status
	To     Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("item %q: %s -> %s: %v", e.ItemID, e.From, e.To, ErrInvalidTransition)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
