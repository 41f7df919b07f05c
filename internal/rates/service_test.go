package rates

import (
	"context"
	"encoding/json"
	"errors"
	"remitscout-backend/internal/components/chrono"
	"remitscout-backend/internal/components/telemetry"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeUpstream struct {
	mutex   sync.Mutex
	queries []Query
	body    json.RawMessage
	err     error
}

func (f *fakeUpstream) Fetch(ctx context.Context, q Query) (json.RawMessage, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.queries = append(f.queries, q)
	return f.body, f.err
}

func (f *fakeUpstream) calls() int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return len(f.queries)
}

type failingStore struct{}

func (failingStore) Get(ctx context.Context, key string) (Record, error) {
	return Record{}, ErrNotFound
}

func (failingStore) Put(ctx context.Context, record Record) error {
	return errors.New("disk full")
}

func (failingStore) Close() error {
	return nil
}

var epoch = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type serviceFixture struct {
	service  *Service
	upstream *fakeUpstream
	time     *chrono.FakeTime
	tel      *telemetry.RecorderAPI
}

func newServiceFixture(t *testing.T, store DurableStore, opts Options) serviceFixture {
	tel := telemetry.NewRecorderAPI(nil)
	if store == nil {
		var err error
		store, err = OpenBadgerStore("", tel)
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
	}
	upstream := &fakeUpstream{
		body: json.RawMessage(`[{"rate":1.1687,"source":"GBP","target":"EUR","time":"2024-06-01T12:00:00Z"}]`),
	}
	fakeTime := chrono.NewFakeTime(epoch)
	service := NewService(upstream, store, fakeTime, tel, opts)
	t.Cleanup(service.Close)

	return serviceFixture{
		service:  service,
		upstream: upstream,
		time:     fakeTime,
		tel:      tel,
	}
}

func TestCurrentRateServedFromMemory(t *testing.T) {
	f := newServiceFixture(t, nil, DefaultOptions())
	ctx := context.Background()

	first, err := f.service.GetCurrentRate(ctx, "gbp", "eur")
	require.NoError(t, err)
	require.Equal(t, "GBP", first.Source)
	require.Equal(t, "EUR", first.Target)
	require.Equal(t, KIND_CURRENT, first.Kind)
	require.JSONEq(t, `{"rate":1.1687,"source":"GBP","target":"EUR","time":"2024-06-01T12:00:00Z"}`, string(first.Payload))

	f.time.Advance(4 * time.Minute)

	second, err := f.service.GetCurrentRate(ctx, "GBP", "EUR")
	require.NoError(t, err)
	require.Equal(t, 1, f.upstream.calls())
	require.Equal(t, first.Payload, second.Payload)
	require.Equal(t, int64(1), f.tel.Counted(report_cache_memory_hit))
	require.Equal(t, int64(1), f.tel.Counted(report_cache_miss))

	observations, err := second.Observations()
	require.NoError(t, err)
	require.Len(t, observations, 1)
	require.Equal(t, 1.1687, observations[0].Rate)
}

func TestCurrentRateFallsBackToDurable(t *testing.T) {
	opts := DefaultOptions()
	opts.CurrentTTL = 20 * time.Millisecond
	f := newServiceFixture(t, nil, opts)
	ctx := context.Background()

	first, err := f.service.GetCurrentRate(ctx, "GBP", "EUR")
	require.NoError(t, err)
	f.service.WaitForWrites()

	time.Sleep(50 * time.Millisecond)
	f.time.Advance(2 * time.Minute)

	second, err := f.service.GetCurrentRate(ctx, "GBP", "EUR")
	require.NoError(t, err)
	require.Equal(t, 1, f.upstream.calls())
	require.JSONEq(t, string(first.Payload), string(second.Payload))
	require.Equal(t, int64(1), f.tel.Counted(report_cache_durable_hit))
}

func TestCurrentRateStaleDurableRefetches(t *testing.T) {
	opts := DefaultOptions()
	opts.CurrentTTL = 20 * time.Millisecond
	f := newServiceFixture(t, nil, opts)
	ctx := context.Background()

	_, err := f.service.GetCurrentRate(ctx, "GBP", "EUR")
	require.NoError(t, err)
	f.service.WaitForWrites()

	time.Sleep(50 * time.Millisecond)
	f.time.Advance(6 * time.Minute)

	refreshed, err := f.service.GetCurrentRate(ctx, "GBP", "EUR")
	require.NoError(t, err)
	require.Equal(t, 2, f.upstream.calls())
	require.Equal(t, f.time.Now(), refreshed.CreatedAt)
}

func TestHistoricalDurableIgnoresFreshness(t *testing.T) {
	opts := DefaultOptions()
	opts.HistoricalTTL = 20 * time.Millisecond
	f := newServiceFixture(t, nil, opts)
	ctx := context.Background()
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	first, err := f.service.GetHistoricalRate(ctx, "GBP", "EUR", at)
	require.NoError(t, err)
	require.Equal(t, "2024-01-02T03:04:05Z", first.TimeKey)
	f.service.WaitForWrites()

	time.Sleep(50 * time.Millisecond)
	f.time.Advance(12 * time.Hour)

	_, err = f.service.GetHistoricalRate(ctx, "GBP", "EUR", at)
	require.NoError(t, err)
	require.Equal(t, 1, f.upstream.calls())
	require.NotNil(t, f.upstream.queries[0].Time)
	require.True(t, at.Equal(*f.upstream.queries[0].Time))
}

func TestHistoricalRangeKeepsWholeArray(t *testing.T) {
	f := newServiceFixture(t, nil, DefaultOptions())
	f.upstream.body = json.RawMessage(`[
		{"rate":1.16,"source":"GBP","target":"EUR","time":"2024-01-01T00:00:00Z"},
		{"rate":1.17,"source":"GBP","target":"EUR","time":"2024-01-02T00:00:00Z"}
	]`)
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	record, err := f.service.GetHistoricalRates(context.Background(), "GBP", "EUR", from, to, GROUP_DAY)
	require.NoError(t, err)
	require.Equal(t, KIND_HISTORICAL_RANGE, record.Kind)
	require.Equal(t, "2024-01-01T00:00:00Z_2024-01-02T00:00:00Z_day", record.TimeKey)

	observations, err := record.Observations()
	require.NoError(t, err)
	require.Len(t, observations, 2)
	require.Equal(t, 1.17, observations[1].Rate)

	query := f.upstream.queries[0]
	require.Equal(t, GROUP_DAY, query.Group)
	require.Equal(t, "2024-01-01T00:00:00Z", query.params()["from"])
	require.Equal(t, "2024-01-02T00:00:00Z", query.params()["to"])
}

func TestUpstreamFailures(t *testing.T) {
	testCases := []struct {
		name   string
		body   string
		err    error
		expect error
	}{
		{name: "empty body", body: "", expect: ErrUpstreamData},
		{name: "empty array", body: "[]", expect: ErrUpstreamData},
		{name: "not an array", body: `{"rate":1.2}`, expect: ErrUpstreamData},
		{name: "unauthorized", err: ErrAuthentication, expect: ErrAuthentication},
		{name: "unavailable", err: ErrUpstreamUnavailable, expect: ErrUpstreamUnavailable},
		{name: "unclassified", err: errors.New("connection reset"), expect: ErrUpstreamUnavailable},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			f := newServiceFixture(t, nil, DefaultOptions())
			f.upstream.body = json.RawMessage(test.body)
			f.upstream.err = test.err

			_, err := f.service.GetCurrentRate(context.Background(), "GBP", "USD")
			require.ErrorIs(t, err, test.expect)

			var rateErr *Error
			require.True(t, errors.As(err, &rateErr))
			require.Equal(t, test.expect, rateErr.Kind)
			require.Equal(t, "GetCurrentRate", rateErr.Op)
			require.Equal(t, "rates temporarily unavailable", UserMessage(err))

			f.service.WaitForWrites()
			_, err = f.service.GetCurrentRate(context.Background(), "GBP", "USD")
			require.Error(t, err)
			require.Equal(t, 2, f.upstream.calls())
		})
	}
}

func TestDurableWriteFailureIsSwallowed(t *testing.T) {
	f := newServiceFixture(t, failingStore{}, DefaultOptions())

	record, err := f.service.GetCurrentRate(context.Background(), "GBP", "INR")
	require.NoError(t, err)
	require.Equal(t, "INR", record.Target)

	f.service.WaitForWrites()
	broken := f.tel.Reports(telemetry.REPORT_BROKEN, report_writer_put)
	require.Len(t, broken, 1)
}

func TestInvalidInputNeverReachesUpstream(t *testing.T) {
	f := newServiceFixture(t, nil, DefaultOptions())
	ctx := context.Background()

	_, err := f.service.GetCurrentRate(ctx, "GB", "EUR")
	require.ErrorIs(t, err, ErrInvalidCurrency)
	require.Equal(t, "unsupported currency request", UserMessage(err))

	_, err = f.service.GetCurrentRate(ctx, "GBP", "E1R")
	require.ErrorIs(t, err, ErrInvalidCurrency)

	_, err = f.service.GetHistoricalRates(ctx, "GBP", "EUR", epoch, epoch, Grouping("week"))
	require.ErrorIs(t, err, ErrInvalidGrouping)

	require.Equal(t, 0, f.upstream.calls())
}
