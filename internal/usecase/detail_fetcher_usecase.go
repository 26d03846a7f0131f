package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/user/odds-crawler/internal/entity"
	"github.com/user/odds-crawler/internal/repository"
	"github.com/user/odds-crawler/pkg/logger"
	"github.com/user/odds-crawler/pkg/metrics"
	"github.com/user/odds-crawler/pkg/utils"
)

// DetailConfig tunes the detail fetch.
type DetailConfig struct {
	OddsSuffix        string
	ContentSelector   string
	TabGroupSelector  string
	TabSelector       string
	TableSelector     string
	// TableBodySelector is the scrollable body inside the table. Bodies
	// capped with max-height render their rows lazily.
	TableBodySelector string
	RowSelectors      []string
	HomeTeamSelector  string
	AwayTeamSelector  string
	HomeScoreSelector string
	AwayScoreSelector string
	LeagueSelector    string

	TabGroupAttempts  int
	TableWaitPolls    int
	TableWaitInterval time.Duration
	// TableScrollMax bounds the scrolls of a capped table body. Zero disables them.
	TableScrollMax      int
	TableScrollPolls    int
	TableScrollInterval time.Duration
	TabSettle           time.Duration
	ReloadSettle        time.Duration
	ItemTimeout         time.Duration

	Workers           int
	BetweenItemsDelay time.Duration
	// MaxItemAttempts caps attempts per item across runs. Zero disables the cap.
	MaxItemAttempts       int
	CountPartialAsSuccess bool
	CountNoDataAsSuccess  bool
	Retry                 RetryPolicy
}

// DefaultDetailConfig matches the odds pages of the default site.
func DefaultDetailConfig() DetailConfig {
	return DetailConfig{
		OddsSuffix:        "/odds",
		ContentSelector:   ".content",
		TabGroupSelector:  ".lookBox.brb",
		TabSelector:       "span.changeItem",
		TableSelector:     ".el-table",
		TableBodySelector: ".el-table__body-wrapper",
		RowSelectors:      []string{".el-table__body tbody tr", "tbody tr"},
		HomeTeamSelector:  ".home-box .teamName a",
		AwayTeamSelector:  ".away-box .teamName a",
		HomeScoreSelector: ".home-score",
		AwayScoreSelector: ".away-score",
		LeagueSelector:    ".league-name, .competition-name, .breadcrumb a",

		TabGroupAttempts:    2,
		TableWaitPolls:      15,
		TableWaitInterval:   500 * time.Millisecond,
		TableScrollMax:      10,
		TableScrollPolls:    3,
		TableScrollInterval: 50 * time.Millisecond,
		TabSettle:           500 * time.Millisecond,
		ReloadSettle:        2 * time.Second,
		ItemTimeout:         3 * time.Minute,

		Workers:               1,
		BetweenItemsDelay:     2 * time.Second,
		MaxItemAttempts:       5,
		CountPartialAsSuccess: true,
		CountNoDataAsSuccess:  false,
		Retry:                 DefaultRetryPolicy(),
	}
}

// RunResult counts what one DetailFetcher.Run did to a date's items.
type RunResult struct {
	Date             string `json:"date"`
	Total            int    `json:"total"`
	Processed        int    `json:"processed"`
	Successful       int    `json:"successful"`
	Partial          int    `json:"partial"`
	NoData           int    `json:"noData"`
	Failed           int    `json:"failed"`
	SkippedForbidden int    `json:"skippedForbidden"`
	SkippedExhausted int    `json:"skippedExhausted"`
	Reconciled       int    `json:"reconciled"`
}

// count adds a finished outcome to the totals. Partial and NoData outcomes
// also count as successful when cfg says so.
func (r *RunResult) count(status entity.Status, cfg DetailConfig) {
	switch status {
	case entity.StatusSuccess:
		r.Successful++
	case entity.StatusPartial:
		r.Partial++
		if cfg.CountPartialAsSuccess {
			r.Successful++
		}
	case entity.StatusNoDataAvailable:
		r.NoData++
		if cfg.CountNoDataAsSuccess {
			r.Successful++
		}
	case entity.StatusForbidden:
		r.SkippedForbidden++
	case entity.StatusFailed, entity.StatusFailedTimeout:
		r.Failed++
	}
}

// DetailFetcher runs the per-item detail state machine over a date's ledger.
type DetailFetcher struct {
	cfg      DetailConfig
	pool     SessionPool
	resolver *ChallengeResolver
	parsers  repository.OddsParserFactory
	ledgers  repository.LedgerRepository
	records  repository.DetailRecordRepository
	attempts repository.AttemptRepository
	failed   repository.FailedItemRepository
	mirror   repository.DetailRecordRepository
	log      *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// DetailOption sets an optional collaborator.
type DetailOption func(*DetailFetcher)

// WithAttempts enables the cross-run attempt cap.
func WithAttempts(r repository.AttemptRepository) DetailOption {
	return func(uc *DetailFetcher) { uc.attempts = r }
}

// WithDeadLetters records items that ran out of attempts.
func WithDeadLetters(r repository.FailedItemRepository) DetailOption {
	return func(uc *DetailFetcher) { uc.failed = r }
}

// WithMirror copies every saved record to a secondary store.
func WithMirror(r repository.DetailRecordRepository) DetailOption {
	return func(uc *DetailFetcher) { uc.mirror = r }
}

// NewDetailFetcher wires a fetcher.
func NewDetailFetcher(
	cfg DetailConfig,
	pool SessionPool,
	resolver *ChallengeResolver,
	parsers repository.OddsParserFactory,
	ledgers repository.LedgerRepository,
	records repository.DetailRecordRepository,
	log *slog.Logger,
	m *metrics.Metrics,
	opts ...DetailOption,
) *DetailFetcher {
	uc := &DetailFetcher{
		cfg:      cfg,
		pool:     pool,
		resolver: resolver,
		parsers:  parsers,
		ledgers:  ledgers,
		records:  records,
		log:      logger.OrDiscard(log),
		metrics:  m,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Run fetches details for every item of date that is not already done.
// Terminal items are counted and skipped, so re-running a date resumes
// where the previous run stopped. Only run-level failures are returned.
func (uc *DetailFetcher) Run(ctx context.Context, date string) (*RunResult, error) {
	date, err := utils.NormalizeDate(date)
	if err != nil {
		return nil, err
	}
	log := uc.log.With("date", date)
	res := &RunResult{Date: date}

	ledger, err := uc.ledgers.Load(ctx, date)
	if err != nil {
		if errors.Is(err, repository.ErrLedgerNotFound) {
			return res, err
		}
		return res, fmt.Errorf("%w: load ledger: %w", repository.ErrRunFatal, err)
	}
	res.Total = len(ledger.Items)

	var work []entity.Item
	for _, item := range ledger.Items {
		if item.Status.IsDone() {
			res.count(item.Status, uc.cfg)
			continue
		}
		status, err := uc.reconcile(ctx, date, item)
		if err != nil {
			return res, err
		}
		if status.IsDone() {
			res.Reconciled++
			res.count(status, uc.cfg)
			continue
		}
		work = append(work, item)
	}
	log.Info("Fetching details", "total", res.Total, "pending", len(work))
	if len(work) == 0 {
		return res, nil
	}

	var mu sync.Mutex
	items := make(chan entity.Item)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(items)
		for _, item := range work {
			select {
			case items <- item:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	workers := min(max(uc.cfg.Workers, 1), len(work))
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			s, err := uc.pool.Acquire(gctx)
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("acquire session: %w", err)
			}
			defer uc.pool.Release(gctx, s)

			limiter := rate.NewLimiter(rate.Inf, 1)
			if uc.cfg.BetweenItemsDelay > 0 {
				limiter = rate.NewLimiter(rate.Every(uc.cfg.BetweenItemsDelay), 1)
			}
			for item := range items {
				if err := limiter.Wait(gctx); err != nil {
					return nil
				}
				outcome, err := uc.processItem(gctx, s, date, item)
				if err != nil {
					return err
				}
				mu.Lock()
				switch {
				case outcome == outcomeExhausted:
					res.SkippedExhausted++
				case outcome != "":
					res.Processed++
					res.count(entity.Status(outcome), uc.cfg)
				}
				mu.Unlock()
			}
			return nil
		})
	}

	err = g.Wait()
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	log.Info("Detail run finished",
		"processed", res.Processed,
		"successful", res.Successful,
		"partial", res.Partial,
		"no_data", res.NoData,
		"failed", res.Failed,
		"skipped_forbidden", res.SkippedForbidden,
		"skipped_exhausted", res.SkippedExhausted,
		"error", err,
	)
	return res, err
}

// outcomeExhausted is reported for items skipped by the attempt cap.
const outcomeExhausted = "exhausted"

// reconcile promotes the ledger status from an existing terminal record,
// which happens after a crash between the record write and the status update.
func (uc *DetailFetcher) reconcile(ctx context.Context, date string, item entity.Item) (entity.Status, error) {
	rec, err := uc.records.Load(ctx, date, item.ID)
	if err != nil {
		if !errors.Is(err, repository.ErrRecordNotFound) {
			uc.log.Warn("Unreadable detail record, refetching", "date", date, "item_id", item.ID, "error", err)
		}
		return item.Status, nil
	}
	if !rec.Status.IsDone() {
		return item.Status, nil
	}
	if err := uc.setStatus(ctx, date, item, rec.Status); err != nil {
		return item.Status, err
	}
	uc.log.Info("Ledger status reconciled from detail record",
		"date", date, "item_id", item.ID, "from", string(item.Status), "status", string(rec.Status))
	return rec.Status, nil
}

// setStatus moves item to status, passing through Pending when needed.
func (uc *DetailFetcher) setStatus(ctx context.Context, date string, item entity.Item, status entity.Status) error {
	ctx = context.WithoutCancel(ctx)
	if item.Status != entity.StatusPending && !item.Status.CanTransition(status) {
		if err := uc.ledgers.UpdateStatus(ctx, date, item.ID, entity.StatusPending); err != nil {
			return fmt.Errorf("%w: reset %s to pending: %w", repository.ErrRunFatal, item.ID, err)
		}
	}
	if err := uc.ledgers.UpdateStatus(ctx, date, item.ID, status); err != nil {
		return fmt.Errorf("%w: update %s: %w", repository.ErrRunFatal, item.ID, err)
	}
	return nil
}

// processItem fetches one item and records the outcome. It returns the
// final status, outcomeExhausted, or "" when the run is being cancelled.
func (uc *DetailFetcher) processItem(ctx context.Context, s repository.Session, date string, item entity.Item) (string, error) {
	log := uc.log.With("date", date, "item_id", item.ID, "session", s.ID())
	item.SourceDate = date

	attempts := 0
	if uc.attempts != nil {
		n, err := uc.attempts.Increment(ctx, date, item.ID)
		if err != nil {
			log.Warn("Attempt counter unavailable", "error", err)
		}
		attempts = int(n)
		if uc.cfg.MaxItemAttempts > 0 && attempts > uc.cfg.MaxItemAttempts {
			log.Warn("Attempt cap reached, skipping item", "attempts", attempts, "status", string(item.Status))
			uc.deadLetter(ctx, item, item.Status, "attempt cap reached", attempts)
			return outcomeExhausted, nil
		}
	}

	// Explicit reset before re-attempting.
	if item.Status != entity.StatusPending {
		if err := uc.ledgers.UpdateStatus(context.WithoutCancel(ctx), date, item.ID, entity.StatusPending); err != nil {
			return "", fmt.Errorf("%w: mark %s pending: %w", repository.ErrRunFatal, item.ID, err)
		}
		item.Status = entity.StatusPending
	}

	start := uc.now()
	var rec *entity.DetailRecord
	err := uc.cfg.Retry.Do(ctx, s, log, uc.metrics, func(ctx context.Context, attempt int) error {
		var ferr error
		rec, ferr = uc.fetchAttempt(ctx, s, item)
		return ferr
	})
	if rec == nil {
		rec = entity.NewDetailRecord(item, start)
	}

	if err != nil {
		if errors.Is(err, repository.ErrRunFatal) {
			return "", err
		}
		if ctx.Err() != nil {
			// Left Pending; the next run picks it up again.
			return "", nil
		}
		status := entity.StatusFailed
		if Classify(err) == Transient {
			status = entity.StatusFailedTimeout
			// The session is suspect after a transient failure.
			if rerr := uc.cfg.Retry.restart(ctx, s, log, uc.metrics); rerr != nil {
				return "", rerr
			}
		}
		rec.Error = err.Error()
		rec.Finish(status, uc.now())
		log.Error("Detail fetch failed", "status", string(status), "kind", KindOf(err).String(), "error", err)
	}

	status := rec.Status
	if serr := uc.records.Save(context.WithoutCancel(ctx), rec); serr != nil {
		log.Error("Saving detail record failed", "error", serr)
		status = entity.StatusFailed
	}
	if uc.mirror != nil {
		if merr := uc.mirror.Save(context.WithoutCancel(ctx), rec); merr != nil {
			log.Warn("Mirroring detail record failed", "error", merr)
		}
	}
	if err := uc.setStatus(ctx, date, item, status); err != nil {
		return "", err
	}

	uc.observe(rec, status)
	switch {
	case status.IsDone():
		uc.clearAttempts(ctx, item)
	case uc.cfg.MaxItemAttempts > 0 && attempts >= uc.cfg.MaxItemAttempts:
		uc.deadLetter(ctx, item, status, rec.Error, attempts)
	}
	log.Info("Item processed",
		"status", string(status),
		"quotes", rec.QuoteCounts.Total,
		"tabs", rec.TabsTotal,
		"tabs_failed", rec.TabsFailed,
		"duration", rec.DurationSeconds,
	)
	return string(status), nil
}

// fetchAttempt bounds one FetchItem call by ItemTimeout. Hitting that
// deadline is a timeout of the item, not of the run.
func (uc *DetailFetcher) fetchAttempt(ctx context.Context, s repository.Session, item entity.Item) (*entity.DetailRecord, error) {
	if uc.cfg.ItemTimeout <= 0 {
		return uc.FetchItem(ctx, s, item)
	}
	actx, cancel := context.WithTimeout(ctx, uc.cfg.ItemTimeout)
	defer cancel()
	rec, err := uc.FetchItem(actx, s, item)
	if err != nil && actx.Err() != nil && ctx.Err() == nil {
		err = &FetchError{Kind: KindTimeout, Op: "fetch item", Err: err}
	}
	return rec, err
}

func (uc *DetailFetcher) observe(rec *entity.DetailRecord, status entity.Status) {
	uc.metrics.Detail(string(status), time.Duration(rec.DurationSeconds*float64(time.Second)))
	c := rec.QuoteCounts
	uc.metrics.Quotes(string(entity.QuoteMatchResult), c.MatchResult)
	uc.metrics.Quotes(string(entity.QuoteHandicap), c.Handicap)
	uc.metrics.Quotes("total_goals", c.TotalGoals)
	uc.metrics.Quotes("total_corners", c.TotalCorners)
}

func (uc *DetailFetcher) clearAttempts(ctx context.Context, item entity.Item) {
	ctx = context.WithoutCancel(ctx)
	if uc.attempts != nil {
		if err := uc.attempts.Reset(ctx, item.SourceDate, item.ID); err != nil {
			uc.log.Warn("Resetting attempt counter failed", "item_id", item.ID, "error", err)
		}
	}
	if uc.failed != nil {
		if err := uc.failed.Delete(ctx, item.SourceDate, item.ID); err != nil {
			uc.log.Warn("Clearing dead letter failed", "item_id", item.ID, "error", err)
		}
	}
}

func (uc *DetailFetcher) deadLetter(ctx context.Context, item entity.Item, status entity.Status, reason string, attempts int) {
	if uc.failed == nil {
		return
	}
	fi := &entity.FailedItem{
		ItemID:               item.ID,
		SourceDate:           item.SourceDate,
		URL:                  item.URL,
		Status:               status,
		FailureReason:        reason,
		Attempts:             attempts,
		LastAttemptTimestamp: uc.now().UTC(),
	}
	if err := uc.failed.SaveOrUpdate(context.WithoutCancel(ctx), fi); err != nil {
		uc.log.Warn("Saving dead letter failed", "item_id", item.ID, "error", err)
	}
}
