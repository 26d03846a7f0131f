package repository

import "context"

// DateQueueRepository is a FIFO of scrape dates waiting to be crawled.
type DateQueueRepository interface {
	Push(ctx context.Context, date string) error
	// Pop returns ErrQueueEmpty when nothing is queued.
	Pop(ctx context.Context) (string, error)
	Size(ctx context.Context) (int64, error)
}
