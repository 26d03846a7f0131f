package postgres

import "context"

const schema = `
CREATE TABLE IF NOT EXISTS detail_records (
	source_date       TEXT        NOT NULL,
	item_id           TEXT        NOT NULL,
	url               TEXT        NOT NULL,
	status            TEXT        NOT NULL,
	home_team         TEXT        NOT NULL DEFAULT '',
	away_team         TEXT        NOT NULL DEFAULT '',
	result            TEXT        NOT NULL DEFAULT '',
	league            TEXT        NOT NULL DEFAULT '',
	quotes            JSONB       NOT NULL,
	quote_counts      JSONB       NOT NULL,
	tabs_total        INTEGER     NOT NULL DEFAULT 0,
	tabs_failed       INTEGER     NOT NULL DEFAULT 0,
	error             TEXT        NOT NULL DEFAULT '',
	window_start      TIMESTAMPTZ NOT NULL,
	window_end        TIMESTAMPTZ NOT NULL,
	duration_seconds  DOUBLE PRECISION NOT NULL,
	scrape_timestamp  TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (source_date, item_id)
);

CREATE TABLE IF NOT EXISTS failed_items (
	id                      BIGSERIAL   PRIMARY KEY,
	source_date             TEXT        NOT NULL,
	item_id                 TEXT        NOT NULL,
	url                     TEXT        NOT NULL,
	status                  TEXT        NOT NULL,
	failure_reason          TEXT        NOT NULL DEFAULT '',
	attempts                INTEGER     NOT NULL DEFAULT 0,
	last_attempt_timestamp  TIMESTAMPTZ NOT NULL,
	UNIQUE (source_date, item_id)
);
`

// EnsureSchema creates the tables used by this package when missing.
func EnsureSchema(ctx context.Context, db DB) error {
	_, err := db.Exec(ctx, schema)
	return err
}
