package compare

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"remitscout-backend/internal/components/chrono"
	"remitscout-backend/internal/components/telemetry"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/PuerkitoBio/purell"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type State string

const (
	STATE_NAVIGATE         State = "NAVIGATE"
	STATE_WAIT_FORM        State = "WAIT_FORM"
	STATE_RECONCILE_INPUTS State = "RECONCILE_INPUTS"
	STATE_SUBMIT           State = "SUBMIT"
	STATE_WAIT_RESULTS     State = "WAIT_RESULTS"
	STATE_EXTRACT          State = "EXTRACT"
	STATE_VALIDATE         State = "VALIDATE"
	STATE_DONE             State = "DONE"
	STATE_ERROR            State = "ERROR"
)

const (
	report_pair_wait_form    = "pair-scraper.wait-form"
	report_pair_reconcile    = "pair-scraper.reconcile-inputs"
	report_pair_submit       = "pair-scraper.submit"
	report_pair_wait_results = "pair-scraper.wait-results"
	report_pair_validate     = "pair-scraper.validate"
	report_pair_failed       = "pair-scraper.scrape"
)

var errResultsTimeout = errors.New("results did not finish loading")

// pairScraper runs the state machine of a single pair against one page.
type pairScraper struct {
	selectors  Selectors
	timeouts   Timeouts
	strategies []Strategy
	validator  Validator
	matcher    ProviderMatcher
	time       chrono.TimeAPI
	tel        telemetry.API
}

type pairRun struct {
	pair   Pair
	page   Page
	state  State
	quotes []Quote
	err    error
	span   trace.Span
}

// scrape never fails, a pair that cannot be scraped yields exactly one error record.
func (s *pairScraper) scrape(ctx context.Context, page Page, pair Pair) (quotes []Quote) {
	ctx, span := tracer.Start(ctx, "scrapePair")
	defer span.End()
	span.SetAttributes(attribute.String("pair", pair.Key()))

	run := &pairRun{pair: pair, page: page, state: STATE_NAVIGATE, span: span}

	defer func() {
		recovered := recover()
		if recovered != nil {
			err := fmt.Errorf("panic in %s: %v", run.state, recovered)
			quotes = []Quote{s.fail(run, err)}
		}
	}()

	for {
		span.AddEvent(string(run.state))
		s.tel.ReportDebug("pair state", telemetry.KV{Key: "pair", Value: pair.Key()}, telemetry.KV{Key: "state", Value: run.state})

		switch run.state {
		case STATE_NAVIGATE:
			s.navigate(ctx, run)
		case STATE_WAIT_FORM:
			s.waitForm(ctx, run)
		case STATE_RECONCILE_INPUTS:
			s.reconcileInputs(ctx, run)
		case STATE_SUBMIT:
			s.submit(ctx, run)
		case STATE_WAIT_RESULTS:
			s.waitResults(ctx, run)
		case STATE_EXTRACT:
			s.extract(ctx, run)
		case STATE_VALIDATE:
			s.validate(run)
		case STATE_DONE:
			return s.enrich(run.pair, run.quotes, s.time.Now())
		case STATE_ERROR:
			return []Quote{s.fail(run, run.err)}
		default:
			run.err = fmt.Errorf("unknown state '%s'", run.state)
			run.state = STATE_ERROR
		}
	}
}

func (s *pairScraper) fail(run *pairRun, err error) Quote {
	run.span.RecordError(err)
	run.span.SetStatus(codes.Error, "pair scrape failed")
	s.tel.ReportWarning(report_pair_failed, err, run.pair.Key())
	return s.errorRecord(run.pair, err)
}

// errorRecord is the single record standing in for every quote of a failed pair.
func (s *pairScraper) errorRecord(pair Pair, err error) Quote {
	record := s.enrich(pair, []Quote{{Status: STATUS_ERROR, Message: err.Error()}}, s.time.Now())
	return record[0]
}

func (s *pairScraper) navigate(ctx context.Context, run *pairRun) {
	ctx, cancel := context.WithTimeout(ctx, s.timeouts.Navigate)
	defer cancel()

	err := run.page.Navigate(ctx, run.pair.URL)
	if err != nil {
		run.err = fmt.Errorf("navigate to '%s': %w", run.pair.URL, err)
		run.state = STATE_ERROR
		return
	}
	run.state = STATE_WAIT_FORM
}

func (s *pairScraper) waitForm(ctx context.Context, run *pairRun) {
	run.state = STATE_RECONCILE_INPUTS
	if s.selectors.Form == "" {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeouts.Form)
	defer cancel()

	err := run.page.WaitVisible(ctx, s.selectors.Form)
	if err != nil {
		s.tel.ReportWarning(
			report_pair_wait_form,
			fmt.Errorf("form not visible, continuing: %w", err),
			run.pair.Key(),
		)
	}
}

func (s *pairScraper) reconcileInputs(ctx context.Context, run *pairRun) {
	run.state = STATE_SUBMIT

	ctx, cancel := context.WithTimeout(ctx, s.timeouts.Form)
	defer cancel()

	var state formState
	err := run.page.Evaluate(ctx, reconcileScript(s.selectors, run.pair), &state)
	if err != nil {
		s.tel.ReportWarning(
			report_pair_reconcile,
			fmt.Errorf("reconcile inputs, continuing: %w", err),
			run.pair.Key(),
		)
		return
	}
	if len(state.Changed) > 0 {
		s.tel.ReportDebug(
			"reconciled inputs",
			telemetry.KV{Key: "pair", Value: run.pair.Key()},
			telemetry.KV{Key: "changed", Value: strings.Join(state.Changed, ",")},
		)
	}
}

func (s *pairScraper) submit(ctx context.Context, run *pairRun) {
	run.state = STATE_WAIT_RESULTS

	ctx, cancel := context.WithTimeout(ctx, s.timeouts.Form)
	defer cancel()

	var present bool
	err := run.page.Evaluate(ctx, existsScript(s.selectors.SubmitButton), &present)
	if err != nil {
		s.tel.ReportWarning(report_pair_submit, fmt.Errorf("look up submit control: %w", err), run.pair.Key())
		return
	}
	if !present {
		return
	}
	err = run.page.Click(ctx, s.selectors.SubmitButton)
	if err != nil {
		s.tel.ReportWarning(report_pair_submit, fmt.Errorf("click submit control: %w", err), run.pair.Key())
	}
}

func (s *pairScraper) waitResults(ctx context.Context, run *pairRun) {
	ctx, cancel := context.WithTimeout(ctx, s.timeouts.Results)
	defer cancel()

	err := s.pollResults(ctx, run.page)
	if err != nil {
		s.tel.ReportWarning(
			report_pair_wait_results,
			fmt.Errorf("extracting whatever is rendered: %w", err),
			run.pair.Key(),
		)
	}
	run.state = STATE_EXTRACT
}

func (s *pairScraper) pollResults(ctx context.Context, page Page) error {
	interval := s.timeouts.Poll
	if interval <= 0 {
		interval = DefaultTimeouts().Poll
	}
	script := resultsReadyScript(s.selectors)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for {
		var ready bool
		err := page.Evaluate(ctx, script, &ready)
		if err == nil && ready {
			return nil
		}
		if err != nil {
			lastErr = err
		}

		select {
		case <-ctx.Done():
			if lastErr != nil {
				return fmt.Errorf("%w: %w", errResultsTimeout, lastErr)
			}
			return errResultsTimeout
		case <-ticker.C:
		}
	}
}

func (s *pairScraper) extract(ctx context.Context, run *pairRun) {
	ctx, cancel := context.WithTimeout(ctx, s.timeouts.Results)
	defer cancel()

	rendered, err := run.page.HTML(ctx)
	if err != nil {
		run.err = fmt.Errorf("read page html: %w", err)
		run.state = STATE_ERROR
		return
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rendered))
	if err != nil {
		run.err = fmt.Errorf("parse page html: %w", err)
		run.state = STATE_ERROR
		return
	}

	run.quotes = []Quote{}
	for _, strategy := range s.strategies {
		quotes := strategy.Extract(doc)
		if len(quotes) > 0 {
			run.span.SetAttributes(attribute.String("strategy", strategy.Name()))
			run.quotes = quotes
			break
		}
	}
	run.state = STATE_VALIDATE
}

func (s *pairScraper) validate(run *pairRun) {
	run.state = STATE_DONE
	if !s.validator.Reasonable(run.pair.TargetCurrency, run.quotes) {
		s.tel.ReportWarning(
			report_pair_validate,
			fmt.Errorf(
				"no plausible %s->%s exchange rate among %d quotes",
				run.pair.SourceCurrency,
				run.pair.TargetCurrency,
				len(run.quotes),
			),
			run.pair.Key(),
		)
	}
}

func resolveLink(base, href string) string {
	if href == "" {
		return ""
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := baseURL.Parse(href)
	if err != nil {
		return href
	}
	return purell.NormalizeURL(ref, purell.FlagsSafe|purell.FlagRemoveFragment)
}

// enrich copies the request echo onto every quote and resolves provider codes and links.
func (s *pairScraper) enrich(pair Pair, quotes []Quote, scrapedAt time.Time) []Quote {
	stamp := scrapedAt.UTC().Format(time.RFC3339)
	out := make([]Quote, len(quotes))
	for i, q := range quotes {
		q.FromCountry = pair.FromCountry
		q.ToCountry = pair.ToCountry
		q.SourceCurrency = pair.SourceCurrency
		q.TargetCurrency = pair.TargetCurrency
		q.Amount = pair.Amount
		q.PaymentMethod = pair.PaymentMethod
		q.ScrapedAt = stamp
		if q.ProviderName != "" && q.ProviderCode == "" {
			q.ProviderCode = s.matcher.Match(q.ProviderName)
		}
		q.Link = resolveLink(pair.URL, q.Link)
		out[i] = q
	}
	return out
}
