package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/odds-crawler/internal/adapter/memory"
	"github.com/user/odds-crawler/internal/repository"
)

type stubCollector struct {
	results map[string]*CollectResult
	errs    map[string]error
	calls   []string
}

func (s *stubCollector) Collect(_ context.Context, date string) (*CollectResult, error) {
	s.calls = append(s.calls, date)
	res := s.results[date]
	if res == nil {
		res = &CollectResult{Date: date, Added: 1, StopReason: StopConverged, Complete: true}
	}
	return res, s.errs[date]
}

type stubDetails struct {
	errs  map[string]error
	calls []string
}

func (s *stubDetails) Run(_ context.Context, date string) (*RunResult, error) {
	s.calls = append(s.calls, date)
	if err := s.errs[date]; err != nil {
		return &RunResult{Date: date}, err
	}
	return &RunResult{Date: date, Total: 1, Processed: 1, Successful: 1}, nil
}

func newTestOrchestrator(c *stubCollector, d *stubDetails, q repository.DateQueueRepository) *Orchestrator {
	o := NewOrchestrator(c, d, q, nil, nil)
	o.newID = func() string { return "run-1" }
	return o
}

func TestOrchestratorRunsCollectThenDetails(t *testing.T) {
	c, d := &stubCollector{}, &stubDetails{}
	o := newTestOrchestrator(c, d, nil)

	sums, err := o.Run(context.Background(), []string{"20250101", "20250102"})
	require.NoError(t, err)
	require.Len(t, sums, 2)
	assert.Equal(t, []string{"20250101", "20250102"}, c.calls)
	assert.Equal(t, []string{"20250101", "20250102"}, d.calls)
	assert.Equal(t, "run-1", sums[0].RunID)
	assert.Equal(t, 1, sums[1].Details.Successful)
	assert.Empty(t, sums[0].Error)
}

func TestOrchestratorFetchesDetailsAfterPartialCollect(t *testing.T) {
	c := &stubCollector{
		results: map[string]*CollectResult{"20250101": {Added: 5, StopReason: StopError}},
		errs:    map[string]error{"20250101": fetchErr("navigate", errConnRefused)},
	}
	d := &stubDetails{}
	o := newTestOrchestrator(c, d, nil)

	sums, err := o.Run(context.Background(), []string{"20250101"})
	require.NoError(t, err)
	assert.Equal(t, []string{"20250101"}, d.calls)
	assert.Contains(t, sums[0].Error, "collect:")
	assert.NotNil(t, sums[0].Details)
}

func TestOrchestratorSkipsDetailsWithoutLedger(t *testing.T) {
	c := &stubCollector{
		results: map[string]*CollectResult{"20250101": {StopReason: StopError}},
		errs:    map[string]error{"20250101": repository.ErrPoolTimeout},
	}
	d := &stubDetails{}
	o := newTestOrchestrator(c, d, nil)

	sums, err := o.Run(context.Background(), []string{"20250101", "20250102"})
	require.NoError(t, err, "a per-date failure does not stop the run")
	assert.Equal(t, []string{"20250102"}, d.calls)
	assert.Contains(t, sums[0].Error, "collect:")
}

func TestOrchestratorStopsOnFatal(t *testing.T) {
	fatalErr := fmt.Errorf("%w: session restart failed", repository.ErrRunFatal)
	c := &stubCollector{}
	d := &stubDetails{errs: map[string]error{"20250101": fatalErr}}
	o := newTestOrchestrator(c, d, nil)

	sums, err := o.Run(context.Background(), []string{"20250101", "20250102"})
	assert.ErrorIs(t, err, repository.ErrRunFatal)
	assert.Len(t, sums, 1)
	assert.Equal(t, []string{"20250101"}, c.calls)
}

func TestOrchestratorToleratesMissingLedgerForDetails(t *testing.T) {
	c := &stubCollector{}
	d := &stubDetails{errs: map[string]error{"20250101": repository.ErrLedgerNotFound}}
	o := newTestOrchestrator(c, d, nil)

	sums, err := o.Run(context.Background(), []string{"20250101"})
	require.NoError(t, err)
	assert.Empty(t, sums[0].Error)
}

func TestOrchestratorRunQueue(t *testing.T) {
	ctx := context.Background()
	q := memory.NewDateQueueRepo()
	require.NoError(t, q.Push(ctx, "20250101"))
	require.NoError(t, q.Push(ctx, "20250102"))

	c, d := &stubCollector{}, &stubDetails{}
	o := newTestOrchestrator(c, d, q)

	sums, err := o.RunQueue(ctx)
	require.NoError(t, err)
	assert.Len(t, sums, 2)
	assert.Equal(t, []string{"20250101", "20250102"}, c.calls)

	size, _ := q.Size(ctx)
	assert.Zero(t, size)
}

func TestOrchestratorRunQueueWithoutQueue(t *testing.T) {
	o := newTestOrchestrator(&stubCollector{}, &stubDetails{}, nil)
	_, err := o.RunQueue(context.Background())
	assert.True(t, errors.Is(err, ErrNoQueue))
}
