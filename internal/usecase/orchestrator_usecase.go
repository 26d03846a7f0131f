package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/user/odds-crawler/internal/repository"
	"github.com/user/odds-crawler/pkg/logger"
	"github.com/user/odds-crawler/pkg/metrics"
)

// DateSummary is the outcome of crawling one date.
type DateSummary struct {
	RunID    string         `json:"runId"`
	Date     string         `json:"date"`
	Collect  *CollectResult `json:"collect,omitempty"`
	Details  *RunResult     `json:"details,omitempty"`
	Duration time.Duration  `json:"duration"`
	Error    string         `json:"error,omitempty"`
}

// DateCollector is the collection step of a date crawl.
type DateCollector interface {
	Collect(ctx context.Context, date string) (*CollectResult, error)
}

// DateDetailRunner is the detail step of a date crawl.
type DateDetailRunner interface {
	Run(ctx context.Context, date string) (*RunResult, error)
}

// Orchestrator crawls dates one after another: collection first, then details.
type Orchestrator struct {
	collector DateCollector
	details   DateDetailRunner
	queue     repository.DateQueueRepository
	log       *slog.Logger
	metrics   *metrics.Metrics
	newID     func() string
}

// NewOrchestrator wires an orchestrator. queue is only needed by RunQueue.
func NewOrchestrator(collector DateCollector, details DateDetailRunner, queue repository.DateQueueRepository, log *slog.Logger, m *metrics.Metrics) *Orchestrator {
	return &Orchestrator{
		collector: collector,
		details:   details,
		queue:     queue,
		log:       logger.OrDiscard(log),
		metrics:   m,
		newID:     func() string { return uuid.NewString() },
	}
}

// Run crawls dates in order. Per-date failures are recorded in the summary
// and the loop moves on; a fatal condition stops the run and is returned
// together with the summaries gathered so far.
func (o *Orchestrator) Run(ctx context.Context, dates []string) ([]DateSummary, error) {
	runID := o.newID()
	log := o.log.With("run_id", runID)
	log.Info("Crawl run started", "dates", len(dates))

	summaries := make([]DateSummary, 0, len(dates))
	for _, date := range dates {
		if err := ctx.Err(); err != nil {
			return summaries, err
		}
		sum, err := o.RunDate(ctx, runID, date)
		summaries = append(summaries, sum)
		if err != nil {
			log.Error("Crawl run aborted", "date", date, "error", err)
			return summaries, err
		}
	}
	log.Info("Crawl run finished", "dates", len(summaries))
	return summaries, nil
}

// RunDate crawls a single date. Only fatal errors are returned.
func (o *Orchestrator) RunDate(ctx context.Context, runID, date string) (DateSummary, error) {
	start := time.Now()
	sum := DateSummary{RunID: runID, Date: date}
	log := o.log.With("run_id", runID, "date", date)

	fail := func(step string, err error) (DateSummary, error) {
		sum.Duration = time.Since(start)
		sum.Error = fmt.Sprintf("%s: %v", step, err)
		if fatal(err) {
			return sum, err
		}
		log.Error("Date crawl step failed", "step", step, "error", err)
		return sum, nil
	}

	collect, err := o.collector.Collect(ctx, date)
	sum.Collect = collect
	if err != nil {
		if fatal(err) || !hasLedger(collect) {
			return fail("collect", err)
		}
		// Whatever was flushed before the failure is still worth fetching.
		log.Warn("Collection incomplete, fetching details for collected items", "error", err)
		sum.Error = fmt.Sprintf("collect: %v", err)
	}

	details, err := o.details.Run(ctx, date)
	sum.Details = details
	if err != nil {
		if errors.Is(err, repository.ErrLedgerNotFound) {
			log.Info("No ledger for date, nothing to fetch")
			sum.Duration = time.Since(start)
			return sum, nil
		}
		return fail("details", err)
	}

	sum.Duration = time.Since(start)
	log.Info("Date crawled", "duration", sum.Duration.String(), "successful", details.Successful, "processed", details.Processed)
	return sum, nil
}

// RunQueue pops dates from the queue until it is empty or ctx ends.
func (o *Orchestrator) RunQueue(ctx context.Context) ([]DateSummary, error) {
	if o.queue == nil {
		return nil, ErrNoQueue
	}
	runID := o.newID()
	var summaries []DateSummary
	for {
		if err := ctx.Err(); err != nil {
			return summaries, err
		}
		date, err := o.queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, repository.ErrQueueEmpty) {
				o.log.Info("Date queue drained", "run_id", runID, "dates", len(summaries))
				return summaries, nil
			}
			return summaries, fmt.Errorf("pop date from queue: %w", err)
		}
		if n, err := o.queue.Size(ctx); err == nil {
			o.metrics.QueueSize(n)
		}
		sum, err := o.RunDate(ctx, runID, date)
		summaries = append(summaries, sum)
		if err != nil {
			return summaries, err
		}
	}
}

func fatal(err error) bool {
	return errors.Is(err, repository.ErrRunFatal) || errors.Is(err, context.Canceled)
}

func hasLedger(res *CollectResult) bool {
	return res != nil && (res.Known > 0 || res.Added > 0)
}
