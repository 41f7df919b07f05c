package rates

import (
	"context"
	"errors"
	"fmt"
	"remitscout-backend/internal/components/assert"
	"remitscout-backend/internal/components/chrono"
	"remitscout-backend/internal/components/telemetry"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("remitscout/rates")

const (
	report_cache_memory_hit  = "cache.memory-hit"
	report_cache_durable_hit = "cache.durable-hit"
	report_cache_miss        = "cache.miss"
	report_service_durable   = "service.durable-get"
	report_service_fetch     = "service.fetch"
)

type Options struct {
	// CurrentTTL is how long a current rate stays in the in-process tier.
	CurrentTTL time.Duration
	// HistoricalTTL is how long point and range records stay in the in-process tier.
	HistoricalTTL time.Duration
	// CurrentFreshness is the maximum age of a durable current rate that is still served.
	CurrentFreshness time.Duration
	// MemorySize bounds the entries of each in-process LRU, 0 means unbounded.
	MemorySize int

	WriteQueueSize int
	WriteTimeout   time.Duration
}

func DefaultOptions() Options {
	return Options{
		CurrentTTL:       300 * time.Second,
		HistoricalTTL:    3600 * time.Second,
		CurrentFreshness: 5 * time.Minute,
		MemorySize:       1024,
		WriteQueueSize:   256,
		WriteTimeout:     5 * time.Second,
	}
}

// Service serves rates from the in-process tier, then the durable tier, then the rate api.
type Service struct {
	upstream Upstream
	store    DurableStore
	memory   memoryTier
	writer   *bestEffortWriter
	time     chrono.TimeAPI
	tel      telemetry.API

	freshness time.Duration
}

func NewService(
	upstream Upstream,
	store DurableStore,
	timeAPI chrono.TimeAPI,
	tel telemetry.API,
	opts Options,
) *Service {
	assert.NotNil(upstream, "upstream")
	assert.NotNil(store, "durable store")
	assert.NotNil(timeAPI, "time")
	assert.NotNil(tel, "telemetry")

	tel = telemetry.NewScopedAPI("rates", tel)

	return &Service{
		upstream:  upstream,
		store:     store,
		memory:    newMemoryTier(opts.MemorySize, opts.CurrentTTL, opts.HistoricalTTL),
		writer:    newBestEffortWriter(store, opts.WriteQueueSize, opts.WriteTimeout, tel),
		time:      timeAPI,
		tel:       tel,
		freshness: opts.CurrentFreshness,
	}
}

type lookup struct {
	op      string
	kind    Kind
	timeKey string
	query   Query
}

func normalizePair(source, target string) (string, string, error) {
	source, err := NormalizeCurrency(source)
	if err != nil {
		return "", "", err
	}
	target, err = NormalizeCurrency(target)
	if err != nil {
		return "", "", err
	}
	return source, target, nil
}

func (s *Service) GetCurrentRate(ctx context.Context, source, target string) (Record, error) {
	source, target, err := normalizePair(source, target)
	if err != nil {
		return Record{}, fmt.Errorf("get current rate: %w", err)
	}
	return s.resolve(ctx, lookup{
		op:    "GetCurrentRate",
		kind:  KIND_CURRENT,
		query: Query{Source: source, Target: target},
	})
}

func (s *Service) GetHistoricalRate(ctx context.Context, source, target string, at time.Time) (Record, error) {
	source, target, err := normalizePair(source, target)
	if err != nil {
		return Record{}, fmt.Errorf("get historical rate: %w", err)
	}
	at = at.UTC()
	return s.resolve(ctx, lookup{
		op:      "GetHistoricalRate",
		kind:    KIND_HISTORICAL_POINT,
		timeKey: pointTimeKey(at),
		query:   Query{Source: source, Target: target, Time: &at},
	})
}

func (s *Service) GetHistoricalRates(
	ctx context.Context,
	source, target string,
	from, to time.Time,
	grouping Grouping,
) (Record, error) {
	source, target, err := normalizePair(source, target)
	if err != nil {
		return Record{}, fmt.Errorf("get historical rates: %w", err)
	}
	if !grouping.valid() {
		return Record{}, fmt.Errorf("get historical rates: %w: '%s'", ErrInvalidGrouping, grouping)
	}
	from = from.UTC()
	to = to.UTC()
	return s.resolve(ctx, lookup{
		op:      "GetHistoricalRates",
		kind:    KIND_HISTORICAL_RANGE,
		timeKey: rangeTimeKey(from, to, grouping),
		query: Query{
			Source: source,
			Target: target,
			From:   &from,
			To:     &to,
			Group:  grouping,
		},
	})
}

func (s *Service) fresh(record Record) bool {
	if record.Kind != KIND_CURRENT {
		return true
	}
	return s.time.Now().Sub(record.CreatedAt) <= s.freshness
}

func (s *Service) resolve(ctx context.Context, l lookup) (Record, error) {
	ctx, span := tracer.Start(ctx, l.op)
	defer span.End()

	key := cacheKey(l.kind, l.query.Source, l.query.Target, l.timeKey)
	span.SetAttributes(attribute.String("cache_key", key))

	cached, ok := s.memory.get(l.kind, key)
	if ok {
		span.AddEvent("memory hit")
		s.tel.ReportCount(report_cache_memory_hit, 1)
		return cached, nil
	}

	stored, err := s.store.Get(ctx, key)
	switch {
	case err == nil && s.fresh(stored):
		span.AddEvent("durable hit")
		s.tel.ReportCount(report_cache_durable_hit, 1)
		s.memory.set(stored)
		return stored, nil
	case err == nil:
		span.AddEvent("durable record stale", trace.WithAttributes(
			attribute.String("created_at", stored.CreatedAt.Format(time.RFC3339)),
		))
	case errors.Is(err, ErrNotFound):
	default:
		s.tel.ReportWarning(
			report_service_durable,
			fmt.Errorf("durable read failed, treating as miss: %w", err),
			key,
		)
	}

	s.tel.ReportCount(report_cache_miss, 1)

	body, err := s.upstream.Fetch(ctx, l.query)
	if err != nil {
		return Record{}, s.fail(span, l.op, err)
	}
	elements, err := decodeRateArray(body)
	if err != nil {
		s.tel.ReportBroken(report_service_fetch, err, key)
		return Record{}, s.fail(span, l.op, err)
	}

	payload := body
	if l.kind != KIND_HISTORICAL_RANGE {
		payload = elements[0]
	}
	record := Record{
		Source:    l.query.Source,
		Target:    l.query.Target,
		Kind:      l.kind,
		TimeKey:   l.timeKey,
		Payload:   payload,
		CreatedAt: s.time.Now(),
	}

	s.writer.Enqueue(record)
	s.memory.set(record)

	return record, nil
}

func (s *Service) fail(span trace.Span, op string, err error) error {
	kind := ErrUpstreamUnavailable
	switch {
	case errors.Is(err, ErrAuthentication):
		kind = ErrAuthentication
	case errors.Is(err, ErrUpstreamData):
		kind = ErrUpstreamData
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, kind.Error())
	return newError(op, kind, err)
}

// WaitForWrites blocks until every pending durable write has finished.
func (s *Service) WaitForWrites() {
	s.writer.Wait()
}

// Close drains pending durable writes, the durable store itself is left open.
func (s *Service) Close() {
	s.writer.Close()
}
