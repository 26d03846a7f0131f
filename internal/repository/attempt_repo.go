package repository

import "context"

// AttemptRepository counts detail attempts per item across runs.
type AttemptRepository interface {
	Increment(ctx context.Context, date, itemID string) (int64, error)
	Reset(ctx context.Context, date, itemID string) error
}
