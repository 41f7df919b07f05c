package providers

import (
	"context"
	"fmt"
	"net/http"
	"remitscout-backend/internal/components/assert"
	"remitscout-backend/internal/components/telemetry"
	"slices"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/purell"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	report_discoverer_discover = "discoverer.discover"
	report_discoverer_dump     = "discoverer.dump"
)

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// Website is a provider homepage found by probing candidate domains.
type Website struct {
	URL  string
	Body []byte
	// Override is set when the url came from the domain override table rather than a template.
	Override bool
}

// Finder locates the official website of a provider code.
//
// note: fault injection point
type Finder interface {
	Discover(ctx context.Context, code string) (Website, bool)
}

type DiscovererOptions struct {
	// ProbeTimeout bounds each candidate request, defaults to 5s.
	ProbeTimeout time.Duration
	// RequestsPerSecond and Burst rate limit probes across all providers.
	RequestsPerSecond float64
	Burst             int
	UserAgent         string
	CloudflareBypass  bool
	// DumpDir writes every probe exchange to files for debugging extraction, empty disables it.
	DumpDir string
}

// Discoverer probes the override and templated domains of a code in order,
// the first one answering 200 wins.
type Discoverer struct {
	http         *resty.Client
	tables       Tables
	probeTimeout time.Duration
	tel          telemetry.API
}

func NewDiscoverer(tables Tables, opts DiscovererOptions, tel telemetry.API) *Discoverer {
	assert.NotNil(tel, "telemetry")

	if opts.ProbeTimeout == 0 {
		opts.ProbeTimeout = 5 * time.Second
	}
	if opts.RequestsPerSecond == 0 {
		opts.RequestsPerSecond = 2
	}
	if opts.Burst == 0 {
		opts.Burst = 2
	}
	if opts.UserAgent == "" {
		opts.UserAgent = browserUserAgent
	}

	httpClient := resty.New()
	if opts.CloudflareBypass {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}
	httpClient.SetHeader("user-agent", opts.UserAgent)
	httpClient.SetHeader("accept", "text/html,application/xhtml+xml")
	httpClient.SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))

	rateLimiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst)
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(httpClient, tel)
	if opts.DumpDir != "" {
		err := telemetry.DumpResty(httpClient, opts.DumpDir)
		if err != nil {
			tel.ReportWarning(report_discoverer_dump, err, opts.DumpDir)
		}
	}

	return &Discoverer{
		http:         httpClient,
		tables:       tables,
		probeTimeout: opts.ProbeTimeout,
		tel:          tel,
	}
}

func normalizeSiteURL(raw string) string {
	normalized, err := purell.NormalizeURLString(
		raw,
		purell.FlagsSafe|purell.FlagRemoveTrailingSlash|purell.FlagRemoveFragment,
	)
	if err != nil {
		return raw
	}
	return normalized
}

func (d *Discoverer) probe(ctx context.Context, candidate string) (*resty.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, d.probeTimeout)
	defer cancel()
	return d.http.R().SetContext(ctx).Get(candidate)
}

func (d *Discoverer) Discover(ctx context.Context, code string) (Website, bool) {
	ctx, span := tracer.Start(ctx, "discover")
	defer span.End()

	overrides := d.tables.DomainOverrides[code]
	for _, candidate := range d.tables.candidates(code) {
		res, err := d.probe(ctx, candidate)
		if err != nil {
			d.tel.ReportDebug("probe failed", candidate, err)
			continue
		}
		if res.StatusCode() != http.StatusOK {
			d.tel.ReportDebug("probe rejected", candidate, res.StatusCode())
			continue
		}
		return Website{
			URL:      normalizeSiteURL(candidate),
			Body:     res.Body(),
			Override: slices.Contains(overrides, candidate),
		}, true
	}

	d.tel.ReportWarning(
		report_discoverer_discover,
		fmt.Errorf("no website found for provider '%s'", code),
	)
	return Website{}, false
}
