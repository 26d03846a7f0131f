// Package pool keeps a bounded set of warm browser sessions.
package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/user/odds-crawler/internal/repository"
	"github.com/user/odds-crawler/pkg/logger"
	"github.com/user/odds-crawler/pkg/metrics"
)

// Config sizes the pool.
type Config struct {
	Size           int
	AcquireTimeout time.Duration
	ResetTimeout   time.Duration
}

// DefaultConfig returns a single-session pool.
func DefaultConfig() Config {
	return Config{
		Size:           1,
		AcquireTimeout: 2 * time.Minute,
		ResetTimeout:   10 * time.Second,
	}
}

// Pool hands out sessions to one worker at a time. Sessions are created up
// front; a released session goes back even when its state reset fails.
type Pool struct {
	cfg      Config
	sessions chan repository.Session
	all      []repository.Session
	log      *slog.Logger
	metrics  *metrics.Metrics

	mu     sync.Mutex
	closed bool
}

// New pre-warms cfg.Size sessions using factory. Sessions created before a
// factory failure are closed.
func New(ctx context.Context, cfg Config, factory repository.SessionFactory, log *slog.Logger, m *metrics.Metrics) (*Pool, error) {
	if cfg.Size < 1 {
		return nil, fmt.Errorf("pool size must be at least 1, got %d", cfg.Size)
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = DefaultConfig().AcquireTimeout
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = DefaultConfig().ResetTimeout
	}
	p := &Pool{
		cfg:      cfg,
		sessions: make(chan repository.Session, cfg.Size),
		log:      logger.OrDiscard(log),
		metrics:  m,
	}
	for i := 0; i < cfg.Size; i++ {
		s, err := factory(ctx, fmt.Sprintf("session-%d", i+1))
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("start session %d: %w", i+1, err)
		}
		p.all = append(p.all, s)
		p.sessions <- s
	}
	p.log.Info("Session pool ready", "size", cfg.Size)
	return p, nil
}

// Size is the number of sessions owned by the pool.
func (p *Pool) Size() int {
	return len(p.all)
}

// Available is the number of idle sessions.
func (p *Pool) Available() int {
	return len(p.sessions)
}

// Acquire waits up to the configured timeout for an idle session.
func (p *Pool) Acquire(ctx context.Context) (repository.Session, error) {
	return p.AcquireTimeout(ctx, p.cfg.AcquireTimeout)
}

// AcquireTimeout waits up to timeout for an idle session and returns
// repository.ErrPoolTimeout when none frees up.
func (p *Pool) AcquireTimeout(ctx context.Context, timeout time.Duration) (repository.Session, error) {
	if p.isClosed() {
		return nil, repository.ErrPoolClosed
	}
	start := time.Now()
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case s, ok := <-p.sessions:
		if !ok {
			return nil, repository.ErrPoolClosed
		}
		p.metrics.PoolWait(time.Since(start))
		return s, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w after %s", repository.ErrPoolTimeout, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release clears session-local state and returns s to the pool. Reset
// failures are logged and the session is returned anyway.
func (p *Pool) Release(ctx context.Context, s repository.Session) {
	if s == nil {
		return
	}
	resetCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.ResetTimeout)
	defer cancel()
	if err := s.ResetState(resetCtx); err != nil {
		p.log.Warn("Session state reset failed, returning it to the pool anyway", "session", s.ID(), "error", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		_ = s.Close()
		return
	}
	select {
	case p.sessions <- s:
	default:
		p.log.Error("Released a session the pool does not own", "session", s.ID())
	}
}

func (p *Pool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Close shuts every session down. Sessions still checked out are closed
// when released.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.sessions)
	p.mu.Unlock()

	var errs []error
	for s := range p.sessions {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", s.ID(), err))
		}
	}
	return errors.Join(errs...)
}
