package usecase

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/odds-crawler/internal/repository"
)

func fastChallengeConfig() ChallengeConfig {
	cfg := DefaultChallengeConfig()
	cfg.PollInterval = time.Millisecond
	cfg.MaxWait = 20 * time.Millisecond
	cfg.ManualWait = 0
	cfg.ManualPollInterval = time.Millisecond
	return cfg
}

type stubSolver struct {
	calls atomic.Int32
	ok    bool
}

func (s *stubSolver) Solve(context.Context, repository.Session) bool {
	s.calls.Add(1)
	return s.ok
}

func TestDetect(t *testing.T) {
	r := NewChallengeResolver(fastChallengeConfig(), nil, nil, nil)
	widget := &fakeElement{}

	tests := []struct {
		name  string
		setup func(s *fakeSession)
		want  ChallengeState
	}{
		{"clean page", func(s *fakeSession) { s.title = "Premier League odds" }, ChallengeNone},
		{"title keyword", func(s *fakeSession) { s.title = "Just a moment..." }, ChallengeDetected},
		{"body keyword", func(s *fakeSession) {
			s.onHTML = func() (string, error) {
				return "<html><body><p>Checking your browser before accessing</p></body></html>", nil
			}
		}, ChallengeDetected},
		{"script text ignored", func(s *fakeSession) {
			s.onHTML = func() (string, error) {
				return "<html><body><script>var captcha = 1;</script><p>Fixtures</p></body></html>", nil
			}
		}, ChallengeNone},
		{"generic words in body ignored", func(s *fakeSession) {
			s.title = "Arsenal vs Chelsea"
			s.onHTML = func() (string, error) {
				return "<html><body><p>Please wait while odds refresh.</p><p>Captcha-free login</p></body></html>", nil
			}
		}, ChallengeNone},
		{"generic words in title", func(s *fakeSession) { s.title = "Please wait..." }, ChallengeDetected},
		{"specific captcha phrase in body", func(s *fakeSession) {
			s.onHTML = func() (string, error) {
				return "<html><body><p>Verify you are human</p></body></html>", nil
			}
		}, CaptchaDetected},
		{"captcha widget", func(s *fakeSession) {
			s.onQuery = func(sel string) ([]repository.Element, error) {
				if sel == DefaultChallengeConfig().CaptchaSelector {
					return elements(widget), nil
				}
				return nil, nil
			}
		}, CaptchaDetected},
		{"challenge form", func(s *fakeSession) {
			s.onQuery = func(sel string) ([]repository.Element, error) {
				if sel == DefaultChallengeConfig().ChallengeSelector {
					return elements(widget), nil
				}
				return nil, nil
			}
		}, ChallengeDetected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newFakeSession()
			tt.setup(s)
			assert.Equal(t, tt.want, r.Detect(context.Background(), s))
		})
	}
}

func TestDetectContentWins(t *testing.T) {
	cfg := fastChallengeConfig()
	cfg.ContentSelector = ".content"
	r := NewChallengeResolver(cfg, nil, nil, nil)

	s := newFakeSession()
	s.title = "Just a moment..."
	s.onQuery = func(sel string) ([]repository.Element, error) {
		if sel == ".content" {
			return elements(&fakeElement{}), nil
		}
		return nil, nil
	}
	assert.Equal(t, ChallengeNone, r.Detect(context.Background(), s))
}

func TestResolve(t *testing.T) {
	t.Run("no challenge", func(t *testing.T) {
		r := NewChallengeResolver(fastChallengeConfig(), nil, nil, nil)
		state, err := r.Resolve(context.Background(), newFakeSession())
		require.NoError(t, err)
		assert.Equal(t, ChallengeNone, state)
	})

	t.Run("clears while waiting", func(t *testing.T) {
		r := NewChallengeResolver(fastChallengeConfig(), nil, nil, nil)
		s := newFakeSession()
		var polls atomic.Int32
		s.onHTML = func() (string, error) {
			if polls.Add(1) < 3 {
				return "<body>Just a moment...</body>", nil
			}
			return "<body>Fixtures</body>", nil
		}
		state, err := r.Resolve(context.Background(), s)
		require.NoError(t, err)
		assert.Equal(t, ChallengeResolved, state)
	})

	t.Run("times out best effort", func(t *testing.T) {
		r := NewChallengeResolver(fastChallengeConfig(), nil, nil, nil)
		s := newFakeSession()
		s.title = "Attention Required!"
		state, err := r.Resolve(context.Background(), s)
		require.NoError(t, err)
		assert.Equal(t, ChallengeTimedOut, state)
	})

	t.Run("captcha goes to solver", func(t *testing.T) {
		solver := &stubSolver{ok: true}
		r := NewChallengeResolver(fastChallengeConfig(), solver, nil, nil)
		s := newFakeSession()
		var solved atomic.Bool
		s.onHTML = func() (string, error) {
			if solver.calls.Load() > 0 {
				solved.Store(true)
				return "<body>Fixtures</body>", nil
			}
			return "<body>Verify you are human</body>", nil
		}
		state, err := r.Resolve(context.Background(), s)
		require.NoError(t, err)
		assert.Equal(t, ChallengeResolved, state)
		assert.EqualValues(t, 1, solver.calls.Load())
		assert.True(t, solved.Load())
	})

	t.Run("manual wait only with a visible browser", func(t *testing.T) {
		cfg := fastChallengeConfig()
		cfg.MaxWait = 0
		cfg.ManualWait = 50 * time.Millisecond
		r := NewChallengeResolver(cfg, nil, nil, nil)

		for _, headless := range []bool{true, false} {
			s := newFakeSession()
			s.headless = headless
			var polls atomic.Int32
			s.onHTML = func() (string, error) {
				if polls.Add(1) <= 2 {
					return "<body>please wait</body>", nil
				}
				return "<body>Fixtures</body>", nil
			}
			state, err := r.Resolve(context.Background(), s)
			require.NoError(t, err)
			if headless {
				assert.Equal(t, ChallengeTimedOut, state)
			} else {
				assert.Equal(t, ChallengeResolved, state)
			}
		}
	})

	t.Run("only context errors escape", func(t *testing.T) {
		r := NewChallengeResolver(fastChallengeConfig(), nil, nil, nil)
		s := newFakeSession()
		s.title = "Just a moment..."
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := r.Resolve(ctx, s)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
