package compare

import "context"

// Browser hands out isolated pages, cookies and DOM are never shared between pages.
//
// note: fault injection point
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is a single browser tab.
type Page interface {
	Navigate(ctx context.Context, url string) error
	// WaitVisible blocks until an element matching selector is visible or ctx is done.
	WaitVisible(ctx context.Context, selector string) error
	// Evaluate runs a javascript expression and decodes its result into out.
	Evaluate(ctx context.Context, script string, out any) error
	Click(ctx context.Context, selector string) error
	// HTML returns the outer html of the whole document as currently rendered.
	HTML(ctx context.Context) (string, error)
	Close() error
}

// BrowserLauncher starts the browser shared by every pair of a run.
type BrowserLauncher func(ctx context.Context) (Browser, error)
