package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/odds-crawler/internal/entity"
	"github.com/user/odds-crawler/internal/repository"
)

func mirroredRecord() *entity.DetailRecord {
	start := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)
	home, draw, away := 1.9, 3.4, 4.2
	rec := entity.NewDetailRecord(entity.Item{
		ID:         " M1 ",
		URL:        "https://example.com/match-m1",
		SourceDate: "20250315",
		League:     "Premier",
		Teams:      &entity.Teams{Home: "Home FC", Away: "Away FC"},
	}, start)
	rec.Result = "2-1"
	rec.TabsTotal = 3
	rec.TabsFailed = 1
	rec.Error = "total tab timed out"
	rec.Quotes.Add(entity.MatchResultQuote{Bookmaker: "Bet365", Home: &home, Draw: &draw, Away: &away})
	rec.Finish(entity.StatusPartial, start.Add(1500*time.Millisecond))
	return rec
}

func TestDetailRecordSaveBindsColumnsInOrder(t *testing.T) {
	db := &fakeDB{}
	repo := NewDetailRecordRepo(db)
	rec := mirroredRecord()
	require.NoError(t, repo.Save(context.Background(), rec))

	require.Len(t, db.calls, 1)
	call := db.last()
	cols := columnList(insertColumns, call.sql)
	require.Len(t, call.args, len(cols))
	assert.Equal(t, len(cols), maxPlaceholder(call.sql))
	assert.Contains(t, call.sql, "ON CONFLICT (source_date, item_id) DO UPDATE SET")

	args := insertArgs(call)
	tests := []struct {
		column string
		want   any
	}{
		{"source_date", "20250315"},
		{"item_id", "m1"},
		{"url", "https://example.com/match-m1"},
		{"status", "partial"},
		{"home_team", "Home FC"},
		{"away_team", "Away FC"},
		{"result", "2-1"},
		{"league", "Premier"},
		{"tabs_total", 3},
		{"tabs_failed", 1},
		{"error", "total tab timed out"},
		{"window_start", rec.WindowStart},
		{"window_end", rec.WindowEnd},
		{"duration_seconds", 1.5},
		{"scrape_timestamp", rec.ScrapeTimestamp},
	}
	for _, tt := range tests {
		t.Run(tt.column, func(t *testing.T) {
			assert.Equal(t, tt.want, args[tt.column])
			if tt.column != "source_date" && tt.column != "item_id" {
				assert.Contains(t, call.sql, tt.column+" = EXCLUDED."+tt.column, "conflicts refresh %s", tt.column)
			}
		})
	}

	quotes, ok := args["quotes"].([]byte)
	require.True(t, ok, "quotes are bound as JSON bytes")
	assert.JSONEq(t, `{"matchResult":[{"bookmaker":"Bet365","home":1.9,"draw":3.4,"away":4.2}],"handicap":[],"total":[]}`, string(quotes))
	counts, ok := args["quote_counts"].([]byte)
	require.True(t, ok)
	assert.JSONEq(t, `{"matchResult":1,"handicap":0,"totalGoals":0,"totalCorners":0,"total":1}`, string(counts))
}

func TestDetailRecordSaveWrapsExecError(t *testing.T) {
	boom := errors.New("connection reset")
	repo := NewDetailRecordRepo(&fakeDB{execErr: boom})

	err := repo.Save(context.Background(), mirroredRecord())
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "upsert detail record m1")
}

func TestDetailRecordLoad(t *testing.T) {
	start := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)
	stored := func() map[string]any {
		return map[string]any{
			"source_date":      "20250315",
			"item_id":          "m1",
			"url":              "https://example.com/match-m1",
			"status":           "partial",
			"home_team":        "Home FC",
			"away_team":        "Away FC",
			"result":           "2-1",
			"league":           "Premier",
			"quotes":           []byte(`{"matchResult":[{"bookmaker":"Bet365","home":1.9,"draw":null,"away":4.2}],"handicap":[],"total":[]}`),
			"quote_counts":     []byte(`{"matchResult":1,"total":1}`),
			"tabs_total":       3,
			"tabs_failed":      1,
			"error":            "",
			"window_start":     start,
			"window_end":       start.Add(2 * time.Second),
			"duration_seconds": 2.0,
			"scrape_timestamp": start.Add(2 * time.Second),
		}
	}

	tests := []struct {
		name    string
		db      func() *fakeDB
		wantErr assert.ErrorAssertionFunc
		check   func(t *testing.T, rec *entity.DetailRecord)
	}{
		{
			name:    "scans every column",
			db:      func() *fakeDB { return &fakeDB{row: stored()} },
			wantErr: assert.NoError,
			check: func(t *testing.T, rec *entity.DetailRecord) {
				assert.Equal(t, "m1", rec.ItemID)
				assert.Equal(t, entity.StatusPartial, rec.Status)
				assert.Equal(t, entity.Teams{Home: "Home FC", Away: "Away FC"}, rec.Teams)
				assert.Equal(t, "2-1", rec.Result)
				assert.Equal(t, 3, rec.TabsTotal)
				assert.Equal(t, 1, rec.TabsFailed)
				assert.Equal(t, start, rec.WindowStart)
				assert.Equal(t, 2.0, rec.DurationSeconds)
				require.Len(t, rec.Quotes.MatchResult, 1)
				assert.Nil(t, rec.Quotes.MatchResult[0].Draw)
				assert.Equal(t, 1, rec.QuoteCounts.Total)
			},
		},
		{
			name:    "missing row",
			db:      func() *fakeDB { return &fakeDB{rowErr: pgx.ErrNoRows} },
			wantErr: func(t assert.TestingT, err error, _ ...any) bool {
				return assert.ErrorIs(t, err, repository.ErrRecordNotFound)
			},
		},
		{
			name: "corrupt quotes column",
			db: func() *fakeDB {
				row := stored()
				row["quotes"] = []byte(`{"matchResult":`)
				return &fakeDB{row: row}
			},
			wantErr: assert.Error,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := tt.db()
			rec, err := NewDetailRecordRepo(db).Load(context.Background(), "20250315", " M1 ")

			call := db.last()
			assert.Contains(t, call.sql, "WHERE source_date = $1 AND item_id = $2")
			assert.Equal(t, []any{"20250315", "m1"}, call.args)

			if !tt.wantErr(t, err) {
				return
			}
			if tt.check == nil {
				assert.Nil(t, rec)
				return
			}
			tt.check(t, rec)
		})
	}
}
