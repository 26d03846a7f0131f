package chromedp_browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/user/odds-crawler/internal/repository"
	"github.com/user/odds-crawler/pkg/logger"
)

// Session is a repository.Session backed by one Chrome process.
type Session struct {
	id   string
	opts Options
	log  *slog.Logger

	mu          sync.Mutex
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
}

// NewSession launches a browser and returns a ready session.
func NewSession(ctx context.Context, id string, opts Options, log *slog.Logger) (*Session, error) {
	s := &Session{
		id:   id,
		opts: opts,
		log:  logger.OrDiscard(log).With("session", id),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.start(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Factory adapts NewSession to repository.SessionFactory.
func Factory(opts Options, log *slog.Logger) repository.SessionFactory {
	return func(ctx context.Context, id string) (repository.Session, error) {
		return NewSession(ctx, id, opts, log)
	}
}

// start must be called with mu held.
func (s *Session) start(ctx context.Context) error {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), s.opts.allocatorOptions()...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...any) {
		s.log.Debug(fmt.Sprintf(format, args...))
	}))

	// The first Run launches the browser and must use the tab context
	// itself; cancelling a derived context there would kill the browser.
	launched := make(chan error, 1)
	go func() { launched <- chromedp.Run(tabCtx) }()
	select {
	case err := <-launched:
		if err != nil {
			tabCancel()
			allocCancel()
			return repository.NewBrowserError("launch", err)
		}
	case <-ctx.Done():
		tabCancel()
		allocCancel()
		return ctx.Err()
	}

	s.allocCancel, s.tabCtx, s.tabCancel = allocCancel, tabCtx, tabCancel

	err := s.runLocked(ctx, "stealth", s.opts.OperationTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
		return err
	}))
	if err != nil {
		s.teardown()
		return err
	}
	s.log.Info("Browser session started", "headless", s.opts.Headless)
	return nil
}

// teardown must be called with mu held.
func (s *Session) teardown() {
	if s.tabCancel != nil {
		s.tabCancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
	s.tabCtx, s.tabCancel, s.allocCancel = nil, nil, nil
}

func (s *Session) run(ctx context.Context, op string, timeout time.Duration, actions ...chromedp.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runLocked(ctx, op, timeout, actions...)
}

// runLocked executes actions on the tab bounded by timeout and by ctx.
func (s *Session) runLocked(ctx context.Context, op string, timeout time.Duration, actions ...chromedp.Action) error {
	if s.tabCtx == nil {
		return repository.NewBrowserError(op, repository.ErrSessionClosed)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	runCtx, cancel := context.WithTimeout(s.tabCtx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return repository.NewBrowserError(op, fmt.Errorf("timeout after %s: %w", timeout, err))
		}
		return repository.NewBrowserError(op, err)
	}
	return nil
}

func (s *Session) ID() string { return s.id }

func (s *Session) Headless() bool { return s.opts.Headless }

func (s *Session) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, "navigate", s.opts.NavigationTimeout, chromedp.Navigate(url))
}

func (s *Session) Reload(ctx context.Context) error {
	return s.run(ctx, "reload", s.opts.NavigationTimeout, chromedp.Reload())
}

func (s *Session) Evaluate(ctx context.Context, script string, out any) error {
	return s.run(ctx, "evaluate", s.opts.OperationTimeout, chromedp.Evaluate(script, out))
}

// QueryAll returns every node matching selector without waiting. Selectors
// starting with "/" or "(" are treated as XPath.
func (s *Session) QueryAll(ctx context.Context, selector string) ([]repository.Element, error) {
	var nodes []*cdp.Node
	by := chromedp.ByQueryAll
	if strings.HasPrefix(selector, "/") || strings.HasPrefix(selector, "(") {
		by = chromedp.BySearch
	}
	err := s.run(ctx, "query", s.opts.OperationTimeout, chromedp.Nodes(selector, &nodes, by, chromedp.AtLeast(0)))
	if err != nil {
		return nil, err
	}
	out := make([]repository.Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &element{s: s, node: n})
	}
	return out, nil
}

func (s *Session) ScrollBy(ctx context.Context, px int) error {
	return s.run(ctx, "scroll", s.opts.OperationTimeout,
		chromedp.Evaluate(fmt.Sprintf("window.scrollBy(0, %d)", px), nil))
}

func (s *Session) Title(ctx context.Context) (string, error) {
	var title string
	err := s.run(ctx, "title", s.opts.OperationTimeout, chromedp.Title(&title))
	return title, err
}

func (s *Session) HTML(ctx context.Context) (string, error) {
	var html string
	err := s.run(ctx, "html", s.opts.OperationTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

// IsHealthy reads the page title under a short deadline.
func (s *Session) IsHealthy(ctx context.Context) bool {
	var title string
	return s.run(ctx, "health", s.opts.HealthTimeout, chromedp.Title(&title)) == nil
}

// Restart kills the browser and launches a new one. A failed restart leaves
// the session closed, and Restart may simply be called again.
func (s *Session) Restart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log.Warn("Restarting browser session")
	s.teardown()
	if err := s.start(ctx); err != nil {
		return fmt.Errorf("%w: %w", repository.ErrSessionRestartFailed, err)
	}
	return nil
}

// ResetState clears cookies and the current origin's web storage.
func (s *Session) ResetState(ctx context.Context) error {
	return s.run(ctx, "reset", s.opts.OperationTimeout,
		network.ClearBrowserCookies(),
		chromedp.Evaluate(resetStorageScript, nil),
	)
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardown()
	return nil
}
