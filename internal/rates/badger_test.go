package rates

import (
	"context"
	"encoding/json"
	"remitscout-backend/internal/components/telemetry"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestBadgerStore(t *testing.T) {
	store, err := OpenBadgerStore("", telemetry.NewRecorderAPI(nil))
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	_, err = store.Get(ctx, cacheKey(KIND_CURRENT, "GBP", "EUR", ""))
	require.ErrorIs(t, err, ErrNotFound)

	older := Record{
		Source:    "GBP",
		Target:    "EUR",
		Kind:      KIND_CURRENT,
		Payload:   json.RawMessage(`{"rate":1.1}`),
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	newer := older
	newer.Payload = json.RawMessage(`{"rate":1.2}`)
	newer.CreatedAt = older.CreatedAt.Add(time.Minute)

	require.NoError(t, store.Put(ctx, older))
	require.NoError(t, store.Put(ctx, newer))

	cached, err := store.Get(ctx, older.Key())
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(newer, cached))

	_, err = store.Get(ctx, cacheKey(KIND_CURRENT, "EUR", "GBP", ""))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestBadgerStoreExpiry(t *testing.T) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	store := NewBadgerStore(db)
	store.ttl = time.Second
	defer store.Close()
	ctx := context.Background()

	record := Record{
		Source:  "GBP",
		Target:  "USD",
		Kind:    KIND_HISTORICAL_POINT,
		TimeKey: "2024-01-01T00:00:00Z",
		Payload: json.RawMessage(`{"rate":1.27}`),
	}
	require.NoError(t, store.Put(ctx, record))

	_, err = store.Get(ctx, record.Key())
	require.NoError(t, err)

	time.Sleep(2 * time.Second)
	_, err = store.Get(ctx, record.Key())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCacheKeys(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	testCases := []struct {
		record Record
		expect string
	}{
		{
			record: Record{Source: "GBP", Target: "EUR", Kind: KIND_CURRENT},
			expect: "current:GBP:EUR:",
		},
		{
			record: Record{Source: "GBP", Target: "EUR", Kind: KIND_HISTORICAL_POINT, TimeKey: pointTimeKey(from)},
			expect: "historical_point:GBP:EUR:2024-01-01T00:00:00Z",
		},
		{
			record: Record{Source: "USD", Target: "INR", Kind: KIND_HISTORICAL_RANGE, TimeKey: rangeTimeKey(from, to, GROUP_HOUR)},
			expect: "historical_range:USD:INR:2024-01-01T00:00:00Z_2024-02-01T00:00:00Z_hour",
		},
	}

	for _, test := range testCases {
		require.Equal(t, test.expect, test.record.Key())
	}
}
