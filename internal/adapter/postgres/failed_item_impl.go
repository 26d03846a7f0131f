package postgres

import (
	"context"

	"github.com/user/odds-crawler/internal/entity"
)

// FailedItemRepoImpl stores dead-letter records in PostgreSQL.
type FailedItemRepoImpl struct {
	db DB
}

// NewFailedItemRepo creates a new instance of FailedItemRepoImpl.
func NewFailedItemRepo(db DB) *FailedItemRepoImpl {
	return &FailedItemRepoImpl{db: db}
}

// SaveOrUpdate creates or refreshes the dead letter of an item.
func (r *FailedItemRepoImpl) SaveOrUpdate(ctx context.Context, fi *entity.FailedItem) error {
	query := `
		INSERT INTO failed_items (source_date, item_id, url, status, failure_reason, attempts, last_attempt_timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (source_date, item_id) DO UPDATE SET
			url = EXCLUDED.url,
			status = EXCLUDED.status,
			failure_reason = EXCLUDED.failure_reason,
			attempts = GREATEST(failed_items.attempts, EXCLUDED.attempts),
			last_attempt_timestamp = EXCLUDED.last_attempt_timestamp
		RETURNING id;
	`
	return r.db.QueryRow(ctx, query,
		fi.SourceDate,
		entity.NormalizeID(fi.ItemID),
		fi.URL,
		string(fi.Status),
		fi.FailureReason,
		fi.Attempts,
		fi.LastAttemptTimestamp,
	).Scan(&fi.ID)
}

// FindByDate lists the dead letters of a date, most recent first.
func (r *FailedItemRepoImpl) FindByDate(ctx context.Context, date string, limit int) ([]*entity.FailedItem, error) {
	query := `
		SELECT id, source_date, item_id, url, status, failure_reason, attempts, last_attempt_timestamp
		FROM failed_items
		WHERE source_date = $1
		ORDER BY last_attempt_timestamp DESC
		LIMIT $2;
	`
	rows, err := r.db.Query(ctx, query, date, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*entity.FailedItem
	for rows.Next() {
		var fi entity.FailedItem
		var status string
		if err := rows.Scan(
			&fi.ID,
			&fi.SourceDate,
			&fi.ItemID,
			&fi.URL,
			&status,
			&fi.FailureReason,
			&fi.Attempts,
			&fi.LastAttemptTimestamp,
		); err != nil {
			return nil, err
		}
		fi.Status = entity.ParseStatus(status)
		items = append(items, &fi)
	}
	return items, rows.Err()
}

// Delete removes the dead letter of an item, typically after a successful fetch.
func (r *FailedItemRepoImpl) Delete(ctx context.Context, date, itemID string) error {
	query := `DELETE FROM failed_items WHERE source_date = $1 AND item_id = $2;`
	_, err := r.db.Exec(ctx, query, date, entity.NormalizeID(itemID))
	return err
}
