package entity

import (
	"strings"
)

// Status is the processing state shared by ledger items and detail records.
type Status string

const (
	StatusUnprocessed     Status = "unprocessed"
	StatusPending         Status = "pending"
	StatusSuccess         Status = "success"
	StatusPartial         Status = "partial"
	StatusFailed          Status = "failed"
	StatusFailedTimeout   Status = "failed_timeout"
	StatusNoDataAvailable Status = "no_data_available"
	StatusForbidden       Status = "forbidden"
)

// AllStatuses lists every status in reporting order.
var AllStatuses = []Status{
	StatusUnprocessed,
	StatusPending,
	StatusSuccess,
	StatusPartial,
	StatusFailed,
	StatusFailedTimeout,
	StatusNoDataAvailable,
	StatusForbidden,
}

// IsDone reports whether an item in this status must not be fetched again.
func (s Status) IsDone() bool {
	switch s {
	case StatusSuccess, StatusPartial, StatusNoDataAvailable, StatusForbidden:
		return true
	}
	return false
}

// IsRetryable reports whether the item may be reset to pending and fetched again.
func (s Status) IsRetryable() bool {
	return s == StatusFailed || s == StatusFailedTimeout
}

// IsOutcome reports whether s can be the result of a detail fetch.
func (s Status) IsOutcome() bool {
	switch s {
	case StatusSuccess, StatusPartial, StatusFailed, StatusFailedTimeout, StatusNoDataAvailable, StatusForbidden:
		return true
	}
	return false
}

// CanTransition enforces the forward-only status graph. Re-asserting the
// current status is allowed; the only backward edge is failed -> pending.
func (s Status) CanTransition(to Status) bool {
	if s == to {
		return true
	}
	switch s {
	case StatusUnprocessed:
		return to == StatusPending || to == StatusForbidden
	case StatusPending:
		return to.IsOutcome()
	case StatusFailed, StatusFailedTimeout:
		return to == StatusPending
	}
	return false
}

// ParseStatus maps stored status strings, including the legacy free-form
// ones ("n/a", "success_12_odds", "failed_by_timeout"), onto Status.
func ParseStatus(raw string) Status {
	v := strings.ToLower(strings.TrimSpace(raw))
	switch v {
	case "", "n/a", "none", string(StatusUnprocessed):
		return StatusUnprocessed
	case string(StatusPending):
		return StatusPending
	case string(StatusSuccess):
		return StatusSuccess
	case string(StatusPartial):
		return StatusPartial
	case string(StatusFailed):
		return StatusFailed
	case string(StatusFailedTimeout), "failed_by_timeout":
		return StatusFailedTimeout
	case string(StatusNoDataAvailable), "no_odds_available":
		return StatusNoDataAvailable
	case string(StatusForbidden):
		return StatusForbidden
	}
	switch {
	case strings.HasPrefix(v, "success"):
		return StatusSuccess
	case strings.HasPrefix(v, "partial"):
		return StatusPartial
	case strings.Contains(v, "timeout"):
		return StatusFailedTimeout
	case strings.HasPrefix(v, "failed"):
		return StatusFailed
	}
	return StatusUnprocessed
}

// UnmarshalText lets ledgers written with legacy strings decode cleanly.
func (s *Status) UnmarshalText(b []byte) error {
	*s = ParseStatus(string(b))
	return nil
}
