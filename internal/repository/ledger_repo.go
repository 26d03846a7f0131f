package repository

import (
	"context"
	"time"

	"github.com/user/odds-crawler/internal/entity"
)

// LedgerRepository persists one Ledger per scrape date. Every mutation is a
// whole-ledger read-modify-write.
type LedgerRepository interface {
	// Load returns ErrLedgerNotFound when no ledger exists for date.
	Load(ctx context.Context, date string) (*entity.Ledger, error)
	Save(ctx context.Context, ledger *entity.Ledger) error
	// AppendItems adds items not yet present and returns how many were added.
	AppendItems(ctx context.Context, date string, items []entity.Item) (int, error)
	MarkComplete(ctx context.Context, date string, at time.Time) error
	UpdateStatus(ctx context.Context, date, itemID string, status entity.Status) error
}

// DetailRecordRepository persists DetailRecords.
type DetailRecordRepository interface {
	Save(ctx context.Context, rec *entity.DetailRecord) error
	// Load returns ErrRecordNotFound when the record does not exist.
	Load(ctx context.Context, date, itemID string) (*entity.DetailRecord, error)
}
