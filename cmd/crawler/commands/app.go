package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/user/odds-crawler/internal/adapter/captcha"
	"github.com/user/odds-crawler/internal/adapter/chromedp_browser"
	"github.com/user/odds-crawler/internal/adapter/filestore"
	"github.com/user/odds-crawler/internal/adapter/goquery_extractor"
	"github.com/user/odds-crawler/internal/adapter/memory"
	"github.com/user/odds-crawler/internal/adapter/postgres"
	redis_adapter "github.com/user/odds-crawler/internal/adapter/redis"
	"github.com/user/odds-crawler/internal/odds"
	"github.com/user/odds-crawler/internal/pool"
	"github.com/user/odds-crawler/internal/repository"
	"github.com/user/odds-crawler/internal/usecase"
	"github.com/user/odds-crawler/pkg/config"
	"github.com/user/odds-crawler/pkg/logger"
	"github.com/user/odds-crawler/pkg/metrics"
)

const (
	splitterCacheSize = 4096
	attemptTTL        = 30 * 24 * time.Hour
)

// app holds everything a command needs. Browser-backed pieces are only
// built when a command crawls.
type app struct {
	cfg      *config.Config
	log      *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	ledgers  *filestore.LedgerRepoImpl
	records  *filestore.DetailRecordRepoImpl
	queue    repository.DateQueueRepository
	attempts repository.AttemptRepository
	failed   repository.FailedItemRepository
	mirror   repository.DetailRecordRepository

	pool         *pool.Pool
	collector    *usecase.Collector
	details      *usecase.DetailFetcher
	orchestrator *usecase.Orchestrator
	dates        usecase.DateManager

	closers []func()
}

func newApp(ctx context.Context, withBrowser bool) (*app, error) {
	cfg, err := config.LoadFile(envFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(os.Stdout, logger.ParseLevel(cfg.LogLevel))
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a := &app{
		cfg:      cfg,
		log:      log,
		registry: reg,
		metrics:  metrics.New(reg),
		attempts: memory.NewAttemptRepo(),
		queue:    memory.NewDateQueueRepo(),
	}

	writer := filestore.NewAtomicWriter()
	a.ledgers = filestore.NewLedgerRepo(cfg.DataDir, writer)
	a.records = filestore.NewDetailRecordRepo(cfg.DataDir, writer)

	if err := a.connectRedis(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.connectPostgres(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.dates = usecase.NewDateManager(a.queue, a.ledgers, a.records, a.failed, log, a.metrics)

	if withBrowser {
		if err := a.buildCrawler(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

func (a *app) connectRedis(ctx context.Context) error {
	if a.cfg.RedisAddr == "" {
		a.log.Info("Redis not configured, using in-memory queue and attempt counters")
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     a.cfg.RedisAddr,
		Password: a.cfg.RedisPassword,
		DB:       a.cfg.RedisDB,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return fmt.Errorf("connect to redis: %w", err)
	}
	a.closers = append(a.closers, func() { _ = rdb.Close() })
	a.queue = redis_adapter.NewDateQueueRepo(rdb)
	a.attempts = redis_adapter.NewAttemptRepo(rdb, attemptTTL)
	a.log.Info("Redis connection established", "addr", a.cfg.RedisAddr)
	return nil
}

func (a *app) connectPostgres(ctx context.Context) error {
	if a.cfg.PostgresURL == "" {
		a.log.Info("PostgreSQL not configured, dead letters and record mirroring disabled")
		return nil
	}
	db, err := pgxpool.New(ctx, a.cfg.PostgresURL)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	a.closers = append(a.closers, db.Close)
	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return err
	}
	a.failed = postgres.NewFailedItemRepo(db)
	a.mirror = postgres.NewDetailRecordRepo(db)
	a.log.Info("PostgreSQL connection pool established")
	return nil
}

func (a *app) buildCrawler(ctx context.Context) error {
	cfg := a.cfg

	opts := chromedp_browser.DefaultOptions()
	opts.Headless = cfg.Headless
	opts.UserAgent = cfg.UserAgent
	opts.NavigationTimeout = cfg.PageLoadTimeout

	p, err := pool.New(ctx, pool.Config{
		Size:           cfg.PoolSize,
		AcquireTimeout: cfg.PoolAcquireTimeout,
	}, chromedp_browser.Factory(opts, a.log), a.log, a.metrics)
	if err != nil {
		return fmt.Errorf("start session pool: %w", err)
	}
	a.pool = p
	a.closers = append(a.closers, func() {
		if err := p.Close(); err != nil {
			a.log.Warn("Session pool close failed", "error", err)
		}
	})

	var solver repository.ChallengeSolver
	if cfg.CaptchaAPIKey != "" {
		solver = captcha.NewTwoCaptchaSolver(captcha.DefaultConfig(cfg.CaptchaAPIKey), a.log)
	}
	chCfg := usecase.DefaultChallengeConfig()
	chCfg.MaxWait = cfg.ChallengeMaxWait
	chCfg.ManualWait = cfg.ChallengeManualWait
	resolver := usecase.NewChallengeResolver(chCfg, solver, a.log, a.metrics)

	splitter, err := goquery_extractor.NewCachedSplitter(goquery_extractor.HeuristicSplitter{}, splitterCacheSize)
	if err != nil {
		return err
	}
	extractor := goquery_extractor.NewExtractor(goquery_extractor.DefaultConfig(), splitter)

	retry := usecase.DefaultRetryPolicy()
	retry.MaxAttempts = cfg.DetailAttempts

	colCfg := usecase.DefaultCollectorConfig()
	colCfg.BaseURL = cfg.BaseURL
	colCfg.ScrollIncrement = cfg.ScrollIncrement
	colCfg.MinScrolls = cfg.MinScrolls
	colCfg.MaxScrolls = cfg.MaxScrolls
	colCfg.FlushEvery = cfg.FlushEvery
	colCfg.SmartWaitInterval = cfg.SmartWaitInterval
	colCfg.SmartWaitTimeout = cfg.SmartWaitTimeout
	colCfg.Filter = repository.FilterConfig{
		AllowedLeagues:   cfg.AllowedLeagues,
		AllowedCountries: cfg.AllowedCountries,
	}
	a.collector = usecase.NewCollector(colCfg, p, resolver, extractor, a.ledgers, a.log, a.metrics)

	detCfg := usecase.DefaultDetailConfig()
	detCfg.Workers = cfg.DetailWorkers
	detCfg.MaxItemAttempts = cfg.MaxItemAttempts
	detCfg.BetweenItemsDelay = cfg.BetweenItemsDelay
	detCfg.CountPartialAsSuccess = cfg.CountPartialAsSuccess
	detCfg.CountNoDataAsSuccess = cfg.CountNoDataAsSuccess
	detCfg.Retry = retry

	detOpts := []usecase.DetailOption{usecase.WithAttempts(a.attempts)}
	if a.failed != nil {
		detOpts = append(detOpts, usecase.WithDeadLetters(a.failed))
	}
	if a.mirror != nil {
		detOpts = append(detOpts, usecase.WithMirror(a.mirror))
	}
	a.details = usecase.NewDetailFetcher(detCfg, p, resolver, odds.NewFactory(), a.ledgers, a.records, a.log, a.metrics, detOpts...)

	a.orchestrator = usecase.NewOrchestrator(a.collector, a.details, a.queue, a.log, a.metrics)
	return nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// exitErr turns a run error into the command's error, treating an
// interrupt as a clean stop.
func exitErr(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
