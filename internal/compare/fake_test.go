package compare

import (
	"context"
	"errors"
	"sync"
)

var testSelectors = Selectors{
	Form:               "form",
	AmountInput:        "input[name='amount']",
	PaymentMethodInput: "select[name='paymentMethod']",
	SubmitButton:       "button[type='submit']",
	Results:            "#results",
	Loading:            ".loading",
}

type fakePage struct {
	html        string
	navigateErr error
	waitErr     error
	evaluateErr error
	clickErr    error
	htmlErr     error
	panicOnHTML bool
	notReady    bool

	mutex     sync.Mutex
	navigated []string
	clicked   []string
	scripts   []string
	closed    bool
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.navigated = append(p.navigated, url)
	return p.navigateErr
}

func (p *fakePage) WaitVisible(ctx context.Context, selector string) error {
	return p.waitErr
}

func (p *fakePage) Evaluate(ctx context.Context, script string, out any) error {
	p.mutex.Lock()
	p.scripts = append(p.scripts, script)
	p.mutex.Unlock()

	if p.evaluateErr != nil {
		return p.evaluateErr
	}
	switch v := out.(type) {
	case *formState:
		*v = formState{AmountFound: true, MethodFound: true, Changed: []string{"amount"}}
	case *bool:
		if script == resultsReadyScript(testSelectors) {
			*v = !p.notReady
			return nil
		}
		*v = true
	default:
		return errors.New("unexpected evaluate target")
	}
	return nil
}

func (p *fakePage) Click(ctx context.Context, selector string) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.clicked = append(p.clicked, selector)
	return p.clickErr
}

func (p *fakePage) HTML(ctx context.Context) (string, error) {
	if p.panicOnHTML {
		panic("renderer crashed")
	}
	return p.html, p.htmlErr
}

func (p *fakePage) Close() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.closed = true
	return nil
}

// fakeBrowser hands out its pages in order, one per pair.
type fakeBrowser struct {
	mutex      sync.Mutex
	pages      []*fakePage
	next       int
	newPageErr error
	closed     bool
}

func (b *fakeBrowser) NewPage(ctx context.Context) (Page, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.newPageErr != nil {
		return nil, b.newPageErr
	}
	if b.next >= len(b.pages) {
		return nil, errors.New("no more pages")
	}
	page := b.pages[b.next]
	b.next++
	return page, nil
}

func (b *fakeBrowser) Close() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.closed = true
	return nil
}

func launcher(browser *fakeBrowser) BrowserLauncher {
	return func(ctx context.Context) (Browser, error) {
		return browser, nil
	}
}
