package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/odds-crawler/internal/delivery/http/handler"
	"github.com/user/odds-crawler/internal/entity"
	"github.com/user/odds-crawler/internal/repository"
	"github.com/user/odds-crawler/internal/usecase"
	"github.com/user/odds-crawler/pkg/metrics"
	"github.com/user/odds-crawler/pkg/utils"
)

type fakeDates struct {
	enqueued []string
	force    bool
	noQueue  bool
	ledgers  map[string]*entity.LedgerSummary
	records  map[string]*entity.DetailRecord
	dead     []*entity.FailedItem
}

func (f *fakeDates) Enqueue(_ context.Context, dates []string, force bool) (*usecase.EnqueueResult, error) {
	if f.noQueue {
		return nil, usecase.ErrNoQueue
	}
	f.enqueued = append(f.enqueued, dates...)
	f.force = force
	return &usecase.EnqueueResult{Queued: dates}, nil
}

func (f *fakeDates) LedgerSummary(_ context.Context, date string) (*entity.LedgerSummary, error) {
	d, err := utils.NormalizeDate(date)
	if err != nil {
		return nil, err
	}
	sum, ok := f.ledgers[d]
	if !ok {
		return nil, repository.ErrLedgerNotFound
	}
	return sum, nil
}

func (f *fakeDates) ItemRecord(_ context.Context, date, itemID string) (*entity.DetailRecord, error) {
	rec, ok := f.records[date+"/"+itemID]
	if !ok {
		return nil, repository.ErrRecordNotFound
	}
	return rec, nil
}

func (f *fakeDates) DeadLetters(_ context.Context, date string, limit int) ([]*entity.FailedItem, error) {
	if f.dead == nil {
		return nil, usecase.ErrNoDeadLetters
	}
	if limit < len(f.dead) {
		return f.dead[:limit], nil
	}
	return f.dead, nil
}

func (f *fakeDates) QueueSize(context.Context) (int64, error) {
	return int64(len(f.enqueued)), nil
}

func newTestServer(t *testing.T, dates *fakeDates) (http.Handler, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	return New(handler.NewHandler(dates, nil), reg, m, nil), reg
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h, _ := newTestServer(t, &fakeDates{})
	rec := do(h, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestEnqueueDates(t *testing.T) {
	dates := &fakeDates{}
	h, _ := newTestServer(t, dates)

	rec := do(h, http.MethodPost, "/api/dates", `{"dates":["20250101"],"from":"2025-01-03","to":"2025-01-04","force":true}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"20250101", "20250103", "20250104"}, dates.enqueued)
	assert.True(t, dates.force)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "success", body["status"])
}

func TestEnqueueDatesErrors(t *testing.T) {
	tests := []struct {
		name  string
		dates *fakeDates
		body  string
		want  int
	}{
		{"malformed body", &fakeDates{}, `{`, http.StatusBadRequest},
		{"no dates", &fakeDates{}, `{}`, http.StatusBadRequest},
		{"bad range", &fakeDates{}, `{"from":"20250105","to":"20250101"}`, http.StatusBadRequest},
		{"no queue", &fakeDates{noQueue: true}, `{"dates":["20250101"]}`, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestServer(t, tt.dates)
			rec := do(h, http.MethodPost, "/api/dates", tt.body)
			assert.Equal(t, tt.want, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestGetLedger(t *testing.T) {
	dates := &fakeDates{ledgers: map[string]*entity.LedgerSummary{
		"20250101": {Date: "20250101", TotalItems: 3, Done: 2, Remaining: 1},
	}}
	h, _ := newTestServer(t, dates)

	rec := do(h, http.MethodGet, "/api/ledgers/2025-01-01", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Date      string `json:"date"`
		Remaining int    `json:"remaining"`
		QueueSize *int64 `json:"queueSize"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "20250101", body.Date)
	assert.Equal(t, 1, body.Remaining)
	require.NotNil(t, body.QueueSize)

	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/api/ledgers/20250102", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodGet, "/api/ledgers/yesterday", "").Code)
}

func TestGetItem(t *testing.T) {
	dates := &fakeDates{records: map[string]*entity.DetailRecord{
		"20250101/abc123": {ItemID: "abc123", Status: entity.StatusSuccess},
	}}
	h, _ := newTestServer(t, dates)

	rec := do(h, http.MethodGet, "/api/ledgers/20250101/items/abc123", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"itemId":"abc123"`)

	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/api/ledgers/20250101/items/zzz", "").Code)
}

func TestGetDeadLetters(t *testing.T) {
	h, _ := newTestServer(t, &fakeDates{})
	assert.Equal(t, http.StatusServiceUnavailable, do(h, http.MethodGet, "/api/ledgers/20250101/failed", "").Code)

	dates := &fakeDates{dead: []*entity.FailedItem{
		{ItemID: "a", Attempts: 5},
		{ItemID: "b", Attempts: 6},
	}}
	h, _ = newTestServer(t, dates)

	rec := do(h, http.MethodGet, "/api/ledgers/20250101/failed?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Items []entity.FailedItem `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Items, 1)

	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodGet, "/api/ledgers/20250101/failed?limit=x", "").Code)
}

func TestMetricsUseRoutePattern(t *testing.T) {
	h, reg := newTestServer(t, &fakeDates{})
	do(h, http.MethodGet, "/api/ledgers/20250109", "")

	rec := do(h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `path="/api/ledgers/{date}"`)
	assert.NotContains(t, rec.Body.String(), `path="/api/ledgers/20250109"`)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
