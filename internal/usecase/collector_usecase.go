package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/user/odds-crawler/internal/entity"
	"github.com/user/odds-crawler/internal/repository"
	"github.com/user/odds-crawler/pkg/logger"
	"github.com/user/odds-crawler/pkg/metrics"
	"github.com/user/odds-crawler/pkg/utils"
)

// SessionPool lends sessions to workers.
type SessionPool interface {
	Acquire(ctx context.Context) (repository.Session, error)
	Release(ctx context.Context, s repository.Session)
}

// CollectorConfig tunes list-page collection.
type CollectorConfig struct {
	BaseURL            string
	// ItemSelector counts list entries while scrolling.
	ItemSelector       string
	// AllTabSelector finds the list filter tabs; the one whose text is
	// AllTabText is clicked before collecting. Empty skips the click.
	AllTabSelector     string
	AllTabText         string
	AllTabSettle       time.Duration
	ScrollIncrement    int
	SmartWaitInterval  time.Duration
	SmartWaitTimeout   time.Duration
	SettleDelay        time.Duration
	FlushEvery         int
	MinScrolls         int
	MaxScrolls         int
	EarlyPatience      int
	LatePatience       int
	PatienceSwitchAt   int
	FewItems           int
	FewItemsMaxScrolls int
	BottomTolerance    int
	HealthCheckEvery   int
	Filter             repository.FilterConfig
	Retry              RetryPolicy
}

// DefaultCollectorConfig mirrors the behaviour tuned against live list pages.
func DefaultCollectorConfig() CollectorConfig {
	return CollectorConfig{
		BaseURL:            "https://www.aiscore.com",
		ItemSelector:       "a.match-container",
		AllTabSelector:     ".changeTabBox .changeItem",
		AllTabText:         "all",
		AllTabSettle:       time.Second,
		ScrollIncrement:    500,
		SmartWaitInterval:  200 * time.Millisecond,
		SmartWaitTimeout:   2 * time.Second,
		SettleDelay:        2 * time.Second,
		FlushEvery:         10,
		MinScrolls:         20,
		MaxScrolls:         300,
		EarlyPatience:      8,
		LatePatience:       5,
		PatienceSwitchAt:   30,
		FewItems:           10,
		FewItemsMaxScrolls: 50,
		BottomTolerance:    50,
		HealthCheckEvery:   20,
		Retry:              DefaultRetryPolicy(),
	}
}

// CollectResult summarises one Collect call.
type CollectResult struct {
	Date       string     `json:"date"`
	Known      int        `json:"known"`
	Added      int        `json:"added"`
	Duplicates int        `json:"duplicates"`
	Scrolls    int        `json:"scrolls"`
	Flushes    int        `json:"flushes"`
	StopReason StopReason `json:"stopReason"`
	Complete   bool       `json:"complete"`
	Skipped    bool       `json:"skipped"`
}

// Collector discovers items on a date's list page by scrolling until the
// page converges, flushing new items into the ledger as it goes.
type Collector struct {
	cfg       CollectorConfig
	pool      SessionPool
	resolver  *ChallengeResolver
	extractor repository.Extractor
	ledgers   repository.LedgerRepository
	log       *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewCollector wires a collector.
func NewCollector(
	cfg CollectorConfig,
	pool SessionPool,
	resolver *ChallengeResolver,
	extractor repository.Extractor,
	ledgers repository.LedgerRepository,
	log *slog.Logger,
	m *metrics.Metrics,
) *Collector {
	return &Collector{
		cfg:       cfg,
		pool:      pool,
		resolver:  resolver,
		extractor: extractor,
		ledgers:   ledgers,
		log:       logger.OrDiscard(log),
		metrics:   m,
		now:       time.Now,
	}
}

// ListURL is the list page for date.
func (uc *Collector) ListURL(date string) string {
	return utils.JoinPath(uc.cfg.BaseURL, date)
}

// Collect discovers the items of date. It is a no-op for a ledger that is
// already complete and resumes from the ledger's ids otherwise. The ledger
// is only marked complete when scrolling converged.
func (uc *Collector) Collect(ctx context.Context, date string) (*CollectResult, error) {
	date, err := utils.NormalizeDate(date)
	if err != nil {
		return nil, err
	}
	log := uc.log.With("date", date)
	res := &CollectResult{Date: date}

	seen := map[string]struct{}{}
	ledger, err := uc.ledgers.Load(ctx, date)
	switch {
	case err == nil:
		if ledger.IsComplete {
			log.Info("Ledger already complete, skipping collection", "items", len(ledger.Items))
			res.Known = len(ledger.Items)
			res.Skipped = true
			res.StopReason = StopAlreadyComplete
			return res, nil
		}
		seen = ledger.IDs()
	case errors.Is(err, repository.ErrLedgerNotFound):
	default:
		return res, fmt.Errorf("%w: load ledger: %w", repository.ErrRunFatal, err)
	}
	res.Known = len(seen)

	s, err := uc.pool.Acquire(ctx)
	if err != nil {
		return res, fmt.Errorf("acquire session: %w", err)
	}
	defer uc.pool.Release(ctx, s)

	log.Info("Collecting items", "url", uc.ListURL(date), "known", res.Known, "session", s.ID())
	conv := newConvergence(uc.cfg)
	err = uc.cfg.Retry.Do(ctx, s, log, uc.metrics, func(ctx context.Context, attempt int) error {
		conv.resetPage()
		return uc.collectOnce(ctx, s, date, seen, conv, res)
	})
	res.Scrolls = conv.scrolls
	uc.metrics.Scrolls(conv.scrolls)
	if err != nil {
		res.StopReason = StopError
		log.Error("Collection failed", "scrolls", res.Scrolls, "added", res.Added, "error", err)
		return res, err
	}

	if res.StopReason == StopConverged {
		if err := uc.ledgers.MarkComplete(ctx, date, uc.now()); err != nil {
			return res, fmt.Errorf("%w: mark ledger complete: %w", repository.ErrRunFatal, err)
		}
		res.Complete = true
	}
	log.Info("Collection finished",
		"reason", string(res.StopReason),
		"scrolls", res.Scrolls,
		"added", res.Added,
		"duplicates", res.Duplicates,
		"complete", res.Complete,
	)
	return res, nil
}

// collectOnce runs one navigation plus scroll loop. Buffered items are
// flushed on every exit path.
func (uc *Collector) collectOnce(ctx context.Context, s repository.Session, date string, seen map[string]struct{}, conv *convergence, res *CollectResult) error {
	var buffer []entity.Item
	err := uc.scrollLoop(ctx, s, date, seen, conv, res, &buffer)
	if ferr := uc.flush(ctx, date, &buffer, res); ferr != nil {
		return errors.Join(err, ferr)
	}
	return err
}

// clickAllTab switches the list to its unfiltered tab. A missing tab or a
// failed click is logged and collection goes on with the default view.
func (uc *Collector) clickAllTab(ctx context.Context, s repository.Session, date string) error {
	if uc.cfg.AllTabSelector == "" {
		return nil
	}
	tabs, err := s.QueryAll(ctx, uc.cfg.AllTabSelector)
	if err != nil {
		uc.log.Warn("Failed to query list tabs", "date", date, "error", err)
		return ctx.Err()
	}
	for _, tab := range tabs {
		text, err := tab.Text(ctx)
		if err != nil || !strings.EqualFold(strings.TrimSpace(text), uc.cfg.AllTabText) {
			continue
		}
		if err := activateElement(ctx, tab, uc.cfg.AllTabSettle); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			uc.log.Warn("All tab could not be clicked", "date", date, "error", err)
		}
		return nil
	}
	uc.log.Warn("All tab not found, collecting the default view", "date", date, "tabs", len(tabs))
	return nil
}

type heightCount struct {
	Height float64 `json:"height"`
	Count  int     `json:"count"`
}

type heightPosition struct {
	Height   float64 `json:"height"`
	Position float64 `json:"position"`
}

func (uc *Collector) scrollLoop(ctx context.Context, s repository.Session, date string, seen map[string]struct{}, conv *convergence, res *CollectResult, buffer *[]entity.Item) error {
	url := uc.ListURL(date)
	if err := s.Navigate(ctx, url); err != nil {
		return fetchErr("navigate list page", err)
	}
	if _, err := uc.resolver.Resolve(ctx, s); err != nil {
		return err
	}
	if err := sleepCtx(ctx, uc.cfg.SettleDelay); err != nil {
		return err
	}
	if err := uc.clickAllTab(ctx, s, date); err != nil {
		return err
	}

	// Whatever rendered before the first scroll counts too.
	uc.extract(ctx, s, url, date, seen, res, buffer)

	countScript := fmt.Sprintf(`(() => ({height: document.body.scrollHeight, count: document.querySelectorAll(%s).length}))()`,
		strconv.Quote(uc.cfg.ItemSelector))
	const positionScript = `(() => ({height: document.body.scrollHeight, position: window.pageYOffset + window.innerHeight}))()`

	for !conv.exhausted() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if uc.cfg.HealthCheckEvery > 0 && conv.scrolls > 0 && conv.scrolls%uc.cfg.HealthCheckEvery == 0 {
			if !s.IsHealthy(ctx) {
				return fetchErr("health check", repository.ErrSessionUnresponsive)
			}
		}

		var before heightCount
		if err := s.Evaluate(ctx, countScript, &before); err != nil {
			return fetchErr("measure before scroll", err)
		}
		if err := s.ScrollBy(ctx, uc.cfg.ScrollIncrement); err != nil {
			return fetchErr("scroll", err)
		}
		if err := uc.smartWait(ctx, s, countScript, before.Count); err != nil {
			return err
		}
		var after heightPosition
		if err := s.Evaluate(ctx, positionScript, &after); err != nil {
			return fetchErr("measure after scroll", err)
		}

		added := uc.extract(ctx, s, url, date, seen, res, buffer)
		stop, reason := conv.observe(scrollObservation{
			HeightBefore: before.Height,
			HeightAfter:  after.Height,
			Position:     after.Position,
			NewItems:     added,
			Known:        len(seen),
		})

		if uc.cfg.FlushEvery > 0 && conv.scrolls%uc.cfg.FlushEvery == 0 {
			if err := uc.flush(ctx, date, buffer, res); err != nil {
				return err
			}
		}
		if stop {
			res.StopReason = reason
			return nil
		}
	}
	res.StopReason = StopScrollCap
	return nil
}

// smartWait polls the item count until it grows or the wait cap passes.
func (uc *Collector) smartWait(ctx context.Context, s repository.Session, countScript string, baseline int) error {
	if uc.cfg.SmartWaitTimeout <= 0 {
		return nil
	}
	deadline := time.Now().Add(uc.cfg.SmartWaitTimeout)
	for time.Now().Before(deadline) {
		if err := sleepCtx(ctx, uc.cfg.SmartWaitInterval); err != nil {
			return err
		}
		var hc heightCount
		if err := s.Evaluate(ctx, countScript, &hc); err != nil {
			return fetchErr("smart wait", err)
		}
		if hc.Count > baseline {
			return nil
		}
	}
	return nil
}

// extract snapshots the DOM and buffers unseen candidates. Extraction
// problems are logged; they only cost this scroll's items.
func (uc *Collector) extract(ctx context.Context, s repository.Session, url, date string, seen map[string]struct{}, res *CollectResult, buffer *[]entity.Item) int {
	html, err := s.HTML(ctx)
	if err != nil {
		uc.log.Warn("DOM snapshot failed", "date", date, "error", err)
		return 0
	}
	candidates, err := uc.extractor.Extract(ctx, url, html, uc.cfg.Filter)
	if err != nil {
		uc.log.Warn("Extractor failed", "date", date, "error", err)
		return 0
	}
	now := uc.now()
	added := 0
	for _, c := range candidates {
		key := entity.NormalizeID(c.ID)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			res.Duplicates++
			continue
		}
		seen[key] = struct{}{}
		*buffer = append(*buffer, c.ToItem(date, now))
		added++
	}
	return added
}

// flush appends buffered items to the ledger.
func (uc *Collector) flush(ctx context.Context, date string, buffer *[]entity.Item, res *CollectResult) error {
	if len(*buffer) == 0 {
		return nil
	}
	added, err := uc.ledgers.AppendItems(context.WithoutCancel(ctx), date, *buffer)
	if err != nil {
		return fmt.Errorf("%w: flush %d items: %w", repository.ErrRunFatal, len(*buffer), err)
	}
	res.Added += added
	res.Flushes++
	uc.metrics.ItemsAdded(date, added)
	uc.log.Debug("Flushed items to ledger", "date", date, "added", added)
	*buffer = (*buffer)[:0]
	return nil
}
