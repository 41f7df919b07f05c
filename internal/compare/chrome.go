package compare

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"
)

type ChromeOptions struct {
	Headless bool
	// ExecPath overrides the chrome binary, empty means chromedp's lookup.
	ExecPath  string
	UserAgent string
	NoSandbox bool
}

// ChromeBrowser drives one headless chrome process, every page lives in its own browser context.
type ChromeBrowser struct {
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
}

// LaunchChrome returns a BrowserLauncher that starts a chrome process per run.
func LaunchChrome(opts ChromeOptions) BrowserLauncher {
	return func(ctx context.Context) (Browser, error) {
		allocOpts := append(
			chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", opts.Headless),
			chromedp.WindowSize(1366, 900),
		)
		if opts.ExecPath != "" {
			allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
		}
		if opts.UserAgent != "" {
			allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
		}
		if opts.NoSandbox {
			allocOpts = append(allocOpts, chromedp.NoSandbox)
		}

		allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
		browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

		// the first Run on a fresh context starts the process
		err := chromedp.Run(browserCtx)
		if err != nil {
			cancelBrowser()
			cancelAlloc()
			return nil, fmt.Errorf("start chrome: %w", err)
		}

		return &ChromeBrowser{
			browserCtx:    browserCtx,
			cancelBrowser: cancelBrowser,
			cancelAlloc:   cancelAlloc,
		}, nil
	}
}

func (b *ChromeBrowser) NewPage(ctx context.Context) (Page, error) {
	tabCtx, cancel := chromedp.NewContext(b.browserCtx, chromedp.WithNewBrowserContext())
	err := chromedp.Run(tabCtx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open page: %w", err)
	}
	return &chromePage{ctx: tabCtx, cancel: cancel}, nil
}

func (b *ChromeBrowser) Close() error {
	err := chromedp.Cancel(b.browserCtx)
	b.cancelBrowser()
	b.cancelAlloc()
	return err
}

type chromePage struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// run executes actions on the tab, bounded by the deadline and cancellation of ctx.
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, chromedp.Navigate(url))
}

func (p *chromePage) WaitVisible(ctx context.Context, selector string) error {
	return p.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (p *chromePage) Evaluate(ctx context.Context, script string, out any) error {
	return p.run(ctx, chromedp.Evaluate(script, out))
}

func (p *chromePage) Click(ctx context.Context, selector string) error {
	return p.run(ctx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	var html string
	err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (p *chromePage) Close() error {
	p.cancel()
	return nil
}
