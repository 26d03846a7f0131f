package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/user/odds-crawler/internal/entity"
	"github.com/user/odds-crawler/internal/repository"
	"github.com/user/odds-crawler/pkg/logger"
	"github.com/user/odds-crawler/pkg/metrics"
	"github.com/user/odds-crawler/pkg/utils"
)

var (
	ErrDateFinished  = errors.New("date is already fully crawled and force is false")
	ErrNoQueue       = errors.New("date queue is not configured")
	ErrNoDeadLetters = errors.New("dead-letter store is not configured")
)

// EnqueueResult reports what happened to each submitted date.
type EnqueueResult struct {
	Queued  []string          `json:"queued"`
	Skipped map[string]string `json:"skipped,omitempty"`
}

// DateManager queues dates for crawling and reports on their progress.
type DateManager interface {
	Enqueue(ctx context.Context, dates []string, force bool) (*EnqueueResult, error)
	LedgerSummary(ctx context.Context, date string) (*entity.LedgerSummary, error)
	ItemRecord(ctx context.Context, date, itemID string) (*entity.DetailRecord, error)
	DeadLetters(ctx context.Context, date string, limit int) ([]*entity.FailedItem, error)
	QueueSize(ctx context.Context) (int64, error)
}

type dateManagerUseCase struct {
	queue   repository.DateQueueRepository
	ledgers repository.LedgerRepository
	records repository.DetailRecordRepository
	failed  repository.FailedItemRepository
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewDateManager creates a DateManager. queue and failed may be nil, in
// which case the operations needing them fail with ErrNoQueue or
// ErrNoDeadLetters.
func NewDateManager(
	queue repository.DateQueueRepository,
	ledgers repository.LedgerRepository,
	records repository.DetailRecordRepository,
	failed repository.FailedItemRepository,
	log *slog.Logger,
	m *metrics.Metrics,
) DateManager {
	return &dateManagerUseCase{
		queue:   queue,
		ledgers: ledgers,
		records: records,
		failed:  failed,
		log:     logger.OrDiscard(log),
		metrics: m,
	}
}

func (uc *dateManagerUseCase) Enqueue(ctx context.Context, dates []string, force bool) (*EnqueueResult, error) {
	if uc.queue == nil {
		return nil, ErrNoQueue
	}
	res := &EnqueueResult{Queued: []string{}, Skipped: map[string]string{}}
	for _, raw := range dates {
		date, err := utils.NormalizeDate(raw)
		if err != nil {
			res.Skipped[raw] = err.Error()
			continue
		}
		if !force {
			sum, err := uc.LedgerSummary(ctx, date)
			if err != nil && !errors.Is(err, repository.ErrLedgerNotFound) {
				return res, err
			}
			if sum != nil && sum.Finished() {
				res.Skipped[date] = ErrDateFinished.Error()
				continue
			}
		}
		if err := uc.queue.Push(ctx, date); err != nil {
			return res, err
		}
		res.Queued = append(res.Queued, date)
	}

	if n, err := uc.queue.Size(ctx); err == nil {
		uc.metrics.QueueSize(n)
	} else {
		// Not critical: the dates are queued, only the gauge is stale.
		uc.log.Warn("Failed to read date queue size", "error", err)
	}
	uc.log.Info("Dates enqueued", "queued", len(res.Queued), "skipped", len(res.Skipped))
	return res, nil
}

func (uc *dateManagerUseCase) LedgerSummary(ctx context.Context, date string) (*entity.LedgerSummary, error) {
	date, err := utils.NormalizeDate(date)
	if err != nil {
		return nil, err
	}
	ledger, err := uc.ledgers.Load(ctx, date)
	if err != nil {
		return nil, err
	}
	sum := ledger.Summary()
	return &sum, nil
}

func (uc *dateManagerUseCase) ItemRecord(ctx context.Context, date, itemID string) (*entity.DetailRecord, error) {
	date, err := utils.NormalizeDate(date)
	if err != nil {
		return nil, err
	}
	return uc.records.Load(ctx, date, entity.NormalizeID(itemID))
}

func (uc *dateManagerUseCase) QueueSize(ctx context.Context) (int64, error) {
	if uc.queue == nil {
		return 0, ErrNoQueue
	}
	return uc.queue.Size(ctx)
}

func (uc *dateManagerUseCase) DeadLetters(ctx context.Context, date string, limit int) ([]*entity.FailedItem, error) {
	if uc.failed == nil {
		return nil, ErrNoDeadLetters
	}
	date, err := utils.NormalizeDate(date)
	if err != nil {
		return nil, err
	}
	return uc.failed.FindByDate(ctx, date, limit)
}
