package entity

import "time"

// FailedItem is a dead-letter entry for an item that ran out of attempts.
type FailedItem struct {
	ID                   int64     `json:"id"`
	ItemID               string    `json:"itemId"`
	SourceDate           string    `json:"sourceDate"`
	URL                  string    `json:"url"`
	Status               Status    `json:"status"`
	FailureReason        string    `json:"failureReason"`
	Attempts             int       `json:"attempts"`
	LastAttemptTimestamp time.Time `json:"lastAttemptTimestamp"`
}
