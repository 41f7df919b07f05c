package telemetry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScopedAPI(t *testing.T) {
	recorder := NewRecorderAPI(nil)
	scoped := NewScopedAPI("rates", recorder)

	scoped.ReportWarning("service.durable-get", errors.New("closed"))
	scoped.ReportBroken("api-client.fetch", errors.New("boom"))
	scoped.ReportCount("cache.miss", 2)
	scoped.ReportCount("cache.miss", 3)

	warnings := recorder.Reports(REPORT_WARNING, "service.durable-get")
	require.Len(t, warnings, 1)
	require.Equal(t, "rates: service.durable-get", warnings[0].ID)
	require.Len(t, recorder.Reports(REPORT_BROKEN, "rates: "), 1)
	require.Empty(t, recorder.Reports(REPORT_WARNING, "api-client"))
	require.Equal(t, int64(5), recorder.Counted("cache.miss"))
}

func TestRecorderForwards(t *testing.T) {
	inner := NewRecorderAPI(nil)
	outer := NewRecorderAPI(inner)

	outer.ReportDebug("hello", KV{Key: "pair", Value: "uk_to_india"})
	reports := inner.Reports(REPORT_DEBUG, "hello")
	require.Len(t, reports, 1)
	require.Equal(t, "pair=uk_to_india", reports[0].Params[0].(KV).String())
}
