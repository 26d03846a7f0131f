package response

import "github.com/user/odds-crawler/internal/entity"

type EnqueueDatesResponse struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Queued  []string          `json:"queued"`
	Skipped map[string]string `json:"skipped,omitempty"`
}

// LedgerResponse is the DTO of one date's ledger progress.
type LedgerResponse struct {
	entity.LedgerSummary
	QueueSize *int64 `json:"queueSize,omitempty"`
}

type DeadLettersResponse struct {
	Date  string               `json:"date"`
	Items []*entity.FailedItem `json:"items"`
}
