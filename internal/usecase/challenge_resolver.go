package usecase

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/user/odds-crawler/internal/repository"
	"github.com/user/odds-crawler/pkg/logger"
	"github.com/user/odds-crawler/pkg/metrics"
)

// ChallengeState is the outcome of inspecting or resolving a page.
type ChallengeState int

const (
	ChallengeNone ChallengeState = iota
	ChallengeDetected
	CaptchaDetected
	ChallengeResolved
	ChallengeTimedOut
)

func (s ChallengeState) String() string {
	switch s {
	case ChallengeNone:
		return "none"
	case ChallengeDetected:
		return "challenge_detected"
	case CaptchaDetected:
		return "captcha_detected"
	case ChallengeResolved:
		return "resolved"
	case ChallengeTimedOut:
		return "timed_out"
	}
	return "unknown"
}

// ChallengeConfig tunes detection and waiting.
type ChallengeConfig struct {
	PollInterval       time.Duration
	MaxWait            time.Duration
	ManualWait         time.Duration
	ManualPollInterval time.Duration
	ChallengeKeywords  []string
	CaptchaKeywords    []string
	// TitleOnlyKeywords are too common in ordinary page text to be
	// trusted in the body; they only count in the title.
	TitleOnlyKeywords []string
	ChallengeSelector string
	CaptchaSelector   string
	// ContentSelector marks a page whose real content has rendered. Empty disables the check.
	ContentSelector string
}

// DefaultChallengeConfig covers Cloudflare-style interstitials and the
// common CAPTCHA widgets.
func DefaultChallengeConfig() ChallengeConfig {
	return ChallengeConfig{
		PollInterval:       time.Second,
		MaxWait:            30 * time.Second,
		ManualWait:         300 * time.Second,
		ManualPollInterval: 2 * time.Second,
		ChallengeKeywords: []string{
			"checking your browser",
			"just a moment",
			"please wait",
			"ddos protection",
			"cf-browser-verification",
			"cf-challenge",
			"challenge-platform",
			"attention required",
		},
		CaptchaKeywords: []string{
			"recaptcha",
			"hcaptcha",
			"verify you are human",
			"i'm not a robot",
			"captcha",
		},
		TitleOnlyKeywords: []string{"please wait", "captcha"},
		ChallengeSelector: "#challenge-form, #cf-challenge-running, .cf-browser-verification, #challenge-stage, iframe[src*='challenges.cloudflare.com']",
		CaptchaSelector:   "iframe[src*='recaptcha'], iframe[src*='hcaptcha'], .g-recaptcha, .h-captcha, #captcha",
	}
}

// ChallengeResolver detects anti-bot interstitials and waits them out. It
// never fails the caller because of a challenge: on timeout it reports
// ChallengeTimedOut and the caller continues with whatever content is there.
type ChallengeResolver struct {
	cfg     ChallengeConfig
	solver  repository.ChallengeSolver
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewChallengeResolver builds a resolver. solver may be nil.
func NewChallengeResolver(cfg ChallengeConfig, solver repository.ChallengeSolver, log *slog.Logger, m *metrics.Metrics) *ChallengeResolver {
	def := DefaultChallengeConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.ManualPollInterval <= 0 {
		cfg.ManualPollInterval = cfg.PollInterval
	}
	return &ChallengeResolver{cfg: cfg, solver: solver, log: logger.OrDiscard(log), metrics: m}
}

// Detect inspects the current page once.
func (r *ChallengeResolver) Detect(ctx context.Context, s repository.Session) ChallengeState {
	var text strings.Builder
	if title, err := s.Title(ctx); err == nil {
		text.WriteString(strings.ToLower(title))
		text.WriteByte('\n')
	}

	if r.cfg.ContentSelector != "" && r.present(ctx, s, r.cfg.ContentSelector) {
		return ChallengeNone
	}

	if r.present(ctx, s, r.cfg.CaptchaSelector) {
		return CaptchaDetected
	}
	if r.present(ctx, s, r.cfg.ChallengeSelector) {
		return ChallengeDetected
	}

	// Keyword scan on the title first; the body is only read when the
	// title is inconclusive.
	if state := r.matchKeywords(text.String(), false); state != ChallengeNone {
		return state
	}
	if html, err := s.HTML(ctx); err == nil {
		return r.matchKeywords(strings.ToLower(visibleText(html)), true)
	}
	return ChallengeNone
}

func (r *ChallengeResolver) matchKeywords(text string, body bool) ChallengeState {
	match := func(keywords []string) bool {
		for _, kw := range keywords {
			if body && slices.Contains(r.cfg.TitleOnlyKeywords, kw) {
				continue
			}
			if strings.Contains(text, kw) {
				return true
			}
		}
		return false
	}
	if match(r.cfg.CaptchaKeywords) {
		return CaptchaDetected
	}
	if match(r.cfg.ChallengeKeywords) {
		return ChallengeDetected
	}
	return ChallengeNone
}

func (r *ChallengeResolver) present(ctx context.Context, s repository.Session, selector string) bool {
	if selector == "" {
		return false
	}
	els, err := s.QueryAll(ctx, selector)
	return err == nil && len(els) > 0
}

// Resolve waits for any challenge on the current page to clear. The only
// error it returns is ctx's.
func (r *ChallengeResolver) Resolve(ctx context.Context, s repository.Session) (ChallengeState, error) {
	state := r.Detect(ctx, s)
	if state == ChallengeNone {
		return ChallengeNone, ctx.Err()
	}
	r.log.Warn("Anti-bot challenge detected", "session", s.ID(), "state", state.String())

	if state == CaptchaDetected && r.solver != nil {
		if r.solver.Solve(ctx, s) {
			r.log.Info("CAPTCHA solver reported success", "session", s.ID())
		} else {
			r.log.Warn("CAPTCHA solver could not solve the challenge", "session", s.ID())
		}
	}

	cleared, err := r.waitClear(ctx, s, r.cfg.PollInterval, r.cfg.MaxWait)
	if err != nil {
		return state, err
	}

	if !cleared && !s.Headless() && r.cfg.ManualWait > 0 {
		r.log.Warn("Waiting for manual challenge resolution in the visible browser",
			"session", s.ID(), "wait", r.cfg.ManualWait.String())
		cleared, err = r.waitClear(ctx, s, r.cfg.ManualPollInterval, r.cfg.ManualWait)
		if err != nil {
			return state, err
		}
	}

	if cleared {
		r.log.Info("Challenge cleared", "session", s.ID())
		r.metrics.Challenge(ChallengeResolved.String())
		return ChallengeResolved, nil
	}
	r.log.Warn("Challenge not cleared, continuing best-effort", "session", s.ID(), "error", repository.ErrChallengeTimeout)
	r.metrics.Challenge(ChallengeTimedOut.String())
	return ChallengeTimedOut, nil
}

// waitClear polls Detect until it reports no challenge or wait elapses.
func (r *ChallengeResolver) waitClear(ctx context.Context, s repository.Session, interval, wait time.Duration) (bool, error) {
	if wait <= 0 {
		return r.Detect(ctx, s) == ChallengeNone, ctx.Err()
	}
	deadline := time.Now().Add(wait)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
		}
		if r.Detect(ctx, s) == ChallengeNone {
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}
	}
}
