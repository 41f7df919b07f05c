package providers

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"remitscout-backend/internal/components/assert"
	"remitscout-backend/internal/components/telemetry"
	"remitscout-backend/internal/components/textutil"

	"dario.cat/mergo"
	"github.com/PuerkitoBio/goquery"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("remitscout/providers")

const (
	report_scraper_scrape = "scraper.scrape-provider-info"
	report_scraper_merge  = "scraper.merge"
	report_scraper_code   = "scraper.validate-code"
)

// codes are substituted into domain templates, so they must stay a single dns label
var validCode = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// Scraper assembles provider profiles from the provider's website and curated data.
// Profiles are cached for the lifetime of the Scraper.
type Scraper struct {
	finder     Finder
	tables     Tables
	regulators regulatorMatcher
	cache      *expirable.LRU[string, Profile]
	tel        telemetry.API
}

func NewScraper(finder Finder, tables Tables, tel telemetry.API) *Scraper {
	assert.NotNil(finder, "finder")
	assert.NotNil(tel, "telemetry")

	return &Scraper{
		finder:     finder,
		tables:     tables,
		regulators: newRegulatorMatcher(tables.Regulators),
		// size 0 and ttl 0 make the lru unbounded and non-expiring
		cache: expirable.NewLRU[string, Profile](0, nil, 0),
		tel:   telemetry.NewScopedAPI("providers", tel),
	}
}

// ScrapeProviderInfo never fails, codes it knows nothing about resolve to a default profile.
func (s *Scraper) ScrapeProviderInfo(ctx context.Context, code string) Profile {
	code = textutil.NormalizeName(code)
	if code == "" {
		code = "unknown"
	}

	ctx, span := tracer.Start(ctx, "ScrapeProviderInfo")
	defer span.End()
	span.SetAttributes(attribute.String("provider_code", code))

	cached, ok := s.cache.Get(code)
	if ok {
		span.AddEvent("cache hit")
		return cached.clone()
	}

	var scraped Profile
	if validCode.MatchString(code) {
		var err error
		scraped, err = s.scrape(ctx, code)
		if err != nil {
			span.RecordError(err)
			s.tel.ReportWarning(report_scraper_scrape, err, code)
			scraped = Profile{}
		}
	} else {
		s.tel.ReportWarning(report_scraper_code, fmt.Errorf("provider code '%s' is not a domain label, skipping discovery", code))
	}

	profile := s.merge(code, scraped)
	s.cache.Add(code, profile)
	return profile.clone()
}

// ScrapeMany resolves every code in order.
func (s *Scraper) ScrapeMany(ctx context.Context, codes []string) []Profile {
	out := make([]Profile, len(codes))
	for i, code := range codes {
		out[i] = s.ScrapeProviderInfo(ctx, code)
	}
	return out
}

func (s *Scraper) scrape(ctx context.Context, code string) (profile Profile, err error) {
	defer func() {
		recovered := recover()
		if recovered != nil {
			err = fmt.Errorf("scrape panicked: %v", recovered)
		}
	}()

	site, found := s.finder.Discover(ctx, code)
	if !found {
		return Profile{}, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(site.Body))
	if err != nil {
		return Profile{}, fmt.Errorf("parse homepage '%s': %w", site.URL, err)
	}

	profile = extractProfile(doc, code, s.regulators)
	if s.trustsDiscoveredURL(code, site) {
		profile.URL = &site.URL
	}
	return profile, nil
}

// trustsDiscoveredURL rejects a templated domain for codes whose official domain is
// curated, the curated url is used instead.
func (s *Scraper) trustsDiscoveredURL(code string, site Website) bool {
	if site.Override || len(s.tables.DomainOverrides[code]) == 0 {
		return true
	}
	curated, ok := s.tables.KnownProviders[code]
	return !ok || curated.URL == nil
}

// merge overlays the scraped profile then the curated entry on top of the default profile.
// A discovered url is preferred over the curated one.
func (s *Scraper) merge(code string, scraped Profile) Profile {
	merged := defaultProfile(code)
	discoveredURL := scraped.URL
	scraped.URL = nil

	err := mergo.Merge(&merged, scraped.clone(), mergo.WithOverride)
	if err != nil {
		s.tel.ReportBroken(report_scraper_merge, fmt.Errorf("merge scraped profile: %w", err), code)
	}

	curated, ok := s.tables.KnownProviders[code]
	if ok {
		err = mergo.Merge(&merged, curated.clone(), mergo.WithOverride)
		if err != nil {
			s.tel.ReportBroken(report_scraper_merge, fmt.Errorf("merge curated profile: %w", err), code)
		}
	}

	if discoveredURL != nil {
		url := *discoveredURL
		merged.URL = &url
	}
	merged.Code = code
	return merged
}
