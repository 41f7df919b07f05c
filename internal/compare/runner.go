package compare

import (
	"context"
	"fmt"
	"remitscout-backend/internal/components/assert"
	"remitscout-backend/internal/components/chrono"
	"remitscout-backend/internal/components/telemetry"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("remitscout/compare")

const (
	report_runner_launch   = "runner.launch"
	report_runner_new_page = "runner.new-page"
	report_runner_close    = "runner.close"
	report_runner_pair     = "runner.pair"
)

type RunnerOptions struct {
	Selectors Selectors
	Timeouts  Timeouts
	Bands     map[string]Band
	// KnownProviders maps provider codes to display names for provider code matching.
	KnownProviders map[string]string
	// Strategies defaults to DefaultStrategies(Selectors).
	Strategies []Strategy
}

// Runner scrapes pairs one after another inside a single browser.
type Runner struct {
	launch  BrowserLauncher
	scraper *pairScraper
	time    chrono.TimeAPI
	tel     telemetry.API
}

func NewRunner(launch BrowserLauncher, opts RunnerOptions, timeAPI chrono.TimeAPI, tel telemetry.API) (*Runner, error) {
	assert.NotNil(launch, "browser launcher")
	assert.NotNil(timeAPI, "time")
	assert.NotNil(tel, "telemetry")

	tel = telemetry.NewScopedAPI("compare", tel)

	validator, err := NewValidator(opts.Bands)
	if err != nil {
		return nil, err
	}
	strategies := opts.Strategies
	if len(strategies) == 0 {
		strategies = DefaultStrategies(opts.Selectors)
	}
	timeouts := opts.Timeouts
	if timeouts == (Timeouts{}) {
		timeouts = DefaultTimeouts()
	}

	return &Runner{
		launch: launch,
		scraper: &pairScraper{
			selectors:  opts.Selectors,
			timeouts:   timeouts,
			strategies: strategies,
			validator:  validator,
			matcher:    NewProviderMatcher(opts.KnownProviders),
			time:       timeAPI,
			tel:        tel,
		},
		time: timeAPI,
		tel:  tel,
	}, nil
}

// Run scrapes every pair, failures are isolated to the pair they happened in.
func (r *Runner) Run(ctx context.Context, pairs []Pair) Result {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()

	result := Result{
		RunID:     uuid.NewString(),
		StartedAt: r.time.Now(),
		Pairs:     pairs,
		Quotes:    make(map[string][]Quote, len(pairs)),
	}
	span.SetAttributes(
		attribute.String("run_id", result.RunID),
		attribute.Int("pairs", len(pairs)),
	)

	browser, err := r.launch(ctx)
	if err != nil {
		r.tel.ReportBroken(report_runner_launch, fmt.Errorf("launch browser: %w", err))
		for _, pair := range pairs {
			result.Quotes[pair.Key()] = []Quote{
				r.scraper.errorRecord(pair, fmt.Errorf("launch browser: %w", err)),
			}
		}
		result.FinishedAt = r.time.Now()
		return result
	}
	defer func() {
		err := browser.Close()
		if err != nil {
			r.tel.ReportWarning(report_runner_close, fmt.Errorf("close browser: %w", err))
		}
	}()

	for _, pair := range pairs {
		key := pair.Key()
		if _, exists := result.Quotes[key]; exists {
			r.tel.ReportWarning(report_runner_pair, fmt.Errorf("duplicate pair key '%s', later pair wins", key))
		}
		result.Quotes[key] = r.runPair(ctx, browser, pair)
	}

	result.FinishedAt = r.time.Now()
	quotes, errs := result.Counts()
	r.tel.ReportCount("runner.quotes", int64(quotes))
	r.tel.ReportCount("runner.errors", int64(errs))
	return result
}

func (r *Runner) runPair(ctx context.Context, browser Browser, pair Pair) (quotes []Quote) {
	defer func() {
		recovered := recover()
		if recovered != nil {
			quotes = []Quote{r.scraper.errorRecord(pair, fmt.Errorf("panic: %v", recovered))}
		}
	}()

	page, err := browser.NewPage(ctx)
	if err != nil {
		r.tel.ReportWarning(report_runner_new_page, err, pair.Key())
		return []Quote{r.scraper.errorRecord(pair, err)}
	}
	defer func() {
		err := page.Close()
		if err != nil {
			r.tel.ReportWarning(report_runner_close, fmt.Errorf("close page: %w", err), pair.Key())
		}
	}()

	return r.scraper.scrape(ctx, page, pair)
}
