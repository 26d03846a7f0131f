package chromedp_browser

import (
	"time"

	"github.com/chromedp/chromedp"
)

// Options configures how each browser process is launched.
type Options struct {
	Headless          bool
	UserAgent         string
	WindowWidth       int
	WindowHeight      int
	ExecPath          string
	OperationTimeout  time.Duration
	NavigationTimeout time.Duration
	HealthTimeout     time.Duration
}

// DefaultOptions returns a headless desktop-sized browser.
func DefaultOptions() Options {
	return Options{
		Headless:          true,
		UserAgent:         `Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36`,
		WindowWidth:       1920,
		WindowHeight:      1080,
		OperationTimeout:  20 * time.Second,
		NavigationTimeout: 60 * time.Second,
		HealthTimeout:     5 * time.Second,
	}
}

func (o Options) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", o.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-notifications", true),
		chromedp.Flag("lang", "en-US"),
		chromedp.WindowSize(o.WindowWidth, o.WindowHeight),
	)
	if o.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(o.UserAgent))
	}
	if o.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(o.ExecPath))
	}
	return opts
}

// stealthScript runs before any page script on every new document.
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', {get: () => undefined});
Object.defineProperty(navigator, 'languages', {get: () => ['en-US', 'en']});
Object.defineProperty(navigator, 'plugins', {get: () => [1, 2, 3, 4, 5]});
window.chrome = window.chrome || {runtime: {}};
`

const resetStorageScript = `(() => {
	try { window.localStorage.clear(); } catch (e) {}
	try { window.sessionStorage.clear(); } catch (e) {}
	return true;
})()`
