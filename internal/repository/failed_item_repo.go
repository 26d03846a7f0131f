package repository

import (
	"context"

	"github.com/user/odds-crawler/internal/entity"
)

// FailedItemRepository stores dead-letter entries for exhausted items.
type FailedItemRepository interface {
	SaveOrUpdate(ctx context.Context, item *entity.FailedItem) error
	FindByDate(ctx context.Context, date string, limit int) ([]*entity.FailedItem, error)
	Delete(ctx context.Context, date, itemID string) error
}
