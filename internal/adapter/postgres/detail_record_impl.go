package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/user/odds-crawler/internal/entity"
	"github.com/user/odds-crawler/internal/repository"
)

// DetailRecordRepoImpl mirrors DetailRecords into PostgreSQL for analytics.
type DetailRecordRepoImpl struct {
	db DB
}

// NewDetailRecordRepo creates a new instance of DetailRecordRepoImpl.
func NewDetailRecordRepo(db DB) *DetailRecordRepoImpl {
	return &DetailRecordRepoImpl{db: db}
}

// Save stores or replaces the record of one item.
func (r *DetailRecordRepoImpl) Save(ctx context.Context, rec *entity.DetailRecord) error {
	quotesJSON, err := json.Marshal(rec.Quotes)
	if err != nil {
		return err
	}
	countsJSON, err := json.Marshal(rec.QuoteCounts)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO detail_records (source_date, item_id, url, status, home_team, away_team, result, league,
			quotes, quote_counts, tabs_total, tabs_failed, error, window_start, window_end, duration_seconds, scrape_timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (source_date, item_id) DO UPDATE SET
			url = EXCLUDED.url,
			status = EXCLUDED.status,
			home_team = EXCLUDED.home_team,
			away_team = EXCLUDED.away_team,
			result = EXCLUDED.result,
			league = EXCLUDED.league,
			quotes = EXCLUDED.quotes,
			quote_counts = EXCLUDED.quote_counts,
			tabs_total = EXCLUDED.tabs_total,
			tabs_failed = EXCLUDED.tabs_failed,
			error = EXCLUDED.error,
			window_start = EXCLUDED.window_start,
			window_end = EXCLUDED.window_end,
			duration_seconds = EXCLUDED.duration_seconds,
			scrape_timestamp = EXCLUDED.scrape_timestamp;
	`
	id := entity.NormalizeID(rec.ItemID)
	_, err = r.db.Exec(ctx, query,
		rec.SourceDate,
		id,
		rec.URL,
		string(rec.Status),
		rec.Teams.Home,
		rec.Teams.Away,
		rec.Result,
		rec.League,
		quotesJSON,
		countsJSON,
		rec.TabsTotal,
		rec.TabsFailed,
		rec.Error,
		rec.WindowStart,
		rec.WindowEnd,
		rec.DurationSeconds,
		rec.ScrapeTimestamp,
	)
	if err != nil {
		return fmt.Errorf("upsert detail record %s: %w", id, err)
	}
	return nil
}

// Load retrieves the record of one item.
func (r *DetailRecordRepoImpl) Load(ctx context.Context, date, itemID string) (*entity.DetailRecord, error) {
	query := `
		SELECT source_date, item_id, url, status, home_team, away_team, result, league,
			quotes, quote_counts, tabs_total, tabs_failed, error, window_start, window_end, duration_seconds, scrape_timestamp
		FROM detail_records
		WHERE source_date = $1 AND item_id = $2;
	`
	row := r.db.QueryRow(ctx, query, date, entity.NormalizeID(itemID))

	var rec entity.DetailRecord
	var status string
	var quotesJSON, countsJSON []byte
	err := row.Scan(
		&rec.SourceDate,
		&rec.ItemID,
		&rec.URL,
		&status,
		&rec.Teams.Home,
		&rec.Teams.Away,
		&rec.Result,
		&rec.League,
		&quotesJSON,
		&countsJSON,
		&rec.TabsTotal,
		&rec.TabsFailed,
		&rec.Error,
		&rec.WindowStart,
		&rec.WindowEnd,
		&rec.DurationSeconds,
		&rec.ScrapeTimestamp,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("detail record %s/%s: %w", date, itemID, repository.ErrRecordNotFound)
	}
	if err != nil {
		return nil, err
	}
	rec.Status = entity.ParseStatus(status)
	if err := json.Unmarshal(quotesJSON, &rec.Quotes); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(countsJSON, &rec.QuoteCounts); err != nil {
		return nil, err
	}
	return &rec, nil
}
