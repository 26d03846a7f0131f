package repository

import "context"

// Session owns one automated browser. A Session is used by exactly one
// worker at a time; none of its methods are safe for concurrent use.
type Session interface {
	ID() string
	// Headless reports whether the browser runs without a visible window.
	Headless() bool
	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	// Evaluate runs script in the page and decodes its result into out.
	Evaluate(ctx context.Context, script string, out any) error
	QueryAll(ctx context.Context, selector string) ([]Element, error)
	ScrollBy(ctx context.Context, px int) error
	Title(ctx context.Context) (string, error)
	// HTML returns a snapshot of the current document.
	HTML(ctx context.Context) (string, error)
	// IsHealthy is a cheap liveness probe.
	IsHealthy(ctx context.Context) bool
	// Restart tears the browser down and starts a fresh one. It may be
	// called again after a failed restart.
	Restart(ctx context.Context) error
	// ResetState clears cookies and web storage.
	ResetState(ctx context.Context) error
	Close() error
}

// Element is a handle to a node returned by Session.QueryAll. Handles go
// stale when the page re-renders and must then be queried again.
type Element interface {
	Text(ctx context.Context) (string, error)
	Attr(ctx context.Context, name string) (string, bool, error)
	OuterHTML(ctx context.Context) (string, error)
	ScrollIntoView(ctx context.Context) error
	// Click performs a direct user-style click.
	Click(ctx context.Context) error
	// ScriptClick triggers the element's click handler from page script.
	ScriptClick(ctx context.Context) error
	// PointerClick dispatches raw mouse events at the element's centre.
	PointerClick(ctx context.Context) error
}

// SessionFactory creates a ready-to-use session.
type SessionFactory func(ctx context.Context, id string) (Session, error)
