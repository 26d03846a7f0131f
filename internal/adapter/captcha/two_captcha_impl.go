package captcha

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/user/odds-crawler/internal/repository"
	"github.com/user/odds-crawler/pkg/logger"
)

const notReady = "CAPCHA_NOT_READY"

var ErrNoSiteKey = errors.New("no captcha site key on page")

// Config configures the 2captcha client.
type Config struct {
	APIKey       string
	BaseURL      string
	PollInterval time.Duration
	Timeout      time.Duration
	// WidgetSelector finds the CAPTCHA iframes or containers.
	WidgetSelector string
}

// DefaultConfig polls every five seconds for up to two minutes.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:         apiKey,
		BaseURL:        "https://2captcha.com",
		PollInterval:   5 * time.Second,
		Timeout:        2 * time.Minute,
		WidgetSelector: "iframe[src*='recaptcha'], iframe[src*='hcaptcha'], .g-recaptcha[data-sitekey], .h-captcha[data-sitekey]",
	}
}

// apiResponse is the json=1 envelope of in.php and res.php.
type apiResponse struct {
	Status  int    `json:"status"`
	Request string `json:"request"`
}

type widget struct {
	method  string
	siteKey string
}

// TwoCaptchaSolver implements repository.ChallengeSolver with the 2captcha HTTP API.
type TwoCaptchaSolver struct {
	cfg    Config
	client *resty.Client
	log    *slog.Logger
}

// NewTwoCaptchaSolver creates a solver. Without an API key Solve always reports false.
func NewTwoCaptchaSolver(cfg Config, log *slog.Logger) *TwoCaptchaSolver {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(30 * time.Second).
		SetRetryCount(2)
	return &TwoCaptchaSolver{cfg: cfg, client: client, log: logger.OrDiscard(log)}
}

// Client exposes the underlying HTTP client.
func (s *TwoCaptchaSolver) Client() *resty.Client {
	return s.client
}

// Solve submits the page's CAPTCHA, waits for a token and injects it.
func (s *TwoCaptchaSolver) Solve(ctx context.Context, sess repository.Session) bool {
	if s.cfg.APIKey == "" {
		return false
	}
	w, err := s.findWidget(ctx, sess)
	if err != nil {
		s.log.Warn("CAPTCHA widget not readable", "session", sess.ID(), "error", err)
		return false
	}
	var pageURL string
	if err := sess.Evaluate(ctx, `window.location.href`, &pageURL); err != nil {
		s.log.Warn("Reading page URL failed", "session", sess.ID(), "error", err)
		return false
	}

	id, err := s.submit(ctx, w, pageURL)
	if err != nil {
		s.log.Warn("CAPTCHA submission failed", "session", sess.ID(), "error", err)
		return false
	}
	token, err := s.poll(ctx, id)
	if err != nil {
		s.log.Warn("CAPTCHA not solved", "session", sess.ID(), "captcha_id", id, "error", err)
		return false
	}
	if err := sess.Evaluate(ctx, injectScript(token), nil); err != nil {
		s.log.Warn("Injecting CAPTCHA token failed", "session", sess.ID(), "error", err)
		return false
	}
	s.log.Info("CAPTCHA token injected", "session", sess.ID(), "method", w.method)
	return true
}

func (s *TwoCaptchaSolver) findWidget(ctx context.Context, sess repository.Session) (widget, error) {
	els, err := sess.QueryAll(ctx, s.cfg.WidgetSelector)
	if err != nil {
		return widget{}, err
	}
	for _, el := range els {
		if key, ok, _ := el.Attr(ctx, "data-sitekey"); ok && key != "" {
			cls, _, _ := el.Attr(ctx, "class")
			return widget{method: methodFor(cls), siteKey: key}, nil
		}
		src, ok, _ := el.Attr(ctx, "src")
		if !ok {
			continue
		}
		if w, ok := widgetFromSrc(src); ok {
			return w, nil
		}
	}
	return widget{}, ErrNoSiteKey
}

// widgetFromSrc reads the site key from a CAPTCHA iframe URL.
func widgetFromSrc(src string) (widget, bool) {
	u, err := url.Parse(src)
	if err != nil {
		return widget{}, false
	}
	q := u.Query()
	if key := q.Get("k"); key != "" {
		return widget{method: "userrecaptcha", siteKey: key}, true
	}
	if key := q.Get("sitekey"); key != "" {
		return widget{method: "hcaptcha", siteKey: key}, true
	}
	// hCaptcha puts its parameters in the fragment.
	if frag, err := url.ParseQuery(u.Fragment); err == nil {
		if key := frag.Get("sitekey"); key != "" {
			return widget{method: "hcaptcha", siteKey: key}, true
		}
	}
	return widget{}, false
}

func methodFor(class string) string {
	if strings.Contains(class, "h-captcha") {
		return "hcaptcha"
	}
	return "userrecaptcha"
}

func (s *TwoCaptchaSolver) submit(ctx context.Context, w widget, pageURL string) (string, error) {
	keyParam := "googlekey"
	if w.method == "hcaptcha" {
		keyParam = "sitekey"
	}
	var out apiResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"key":     s.cfg.APIKey,
			"method":  w.method,
			keyParam:  w.siteKey,
			"pageurl": pageURL,
			"json":    "1",
		}).
		SetResult(&out).
		ForceContentType("application/json").
		Get("/in.php")
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", fmt.Errorf("in.php: http %d", resp.StatusCode())
	}
	if out.Status != 1 {
		return "", fmt.Errorf("in.php: %s", out.Request)
	}
	return out.Request, nil
}

func (s *TwoCaptchaSolver) poll(ctx context.Context, id string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
		var out apiResponse
		resp, err := s.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"key":    s.cfg.APIKey,
				"action": "get",
				"id":     id,
				"json":   "1",
			}).
			SetResult(&out).
			ForceContentType("application/json").
			Get("/res.php")
		if err != nil {
			return "", err
		}
		if resp.IsError() {
			return "", fmt.Errorf("res.php: http %d", resp.StatusCode())
		}
		switch {
		case out.Status == 1:
			return out.Request, nil
		case out.Request == notReady:
			continue
		default:
			return "", fmt.Errorf("res.php: %s", out.Request)
		}
	}
}

// injectScript fills the response fields and fires the widget callback.
func injectScript(token string) string {
	t := strconv.Quote(token)
	return `(() => {
  const token = ` + t + `;
  for (const sel of ['#g-recaptcha-response', '[name="g-recaptcha-response"]', '[name="h-captcha-response"]']) {
    document.querySelectorAll(sel).forEach(el => { el.innerHTML = token; el.value = token; });
  }
  const cb = document.querySelector('[data-callback]');
  if (cb && typeof window[cb.dataset.callback] === 'function') { window[cb.dataset.callback](token); }
  return true;
})()`
}
