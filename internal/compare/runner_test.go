package compare

import (
	"context"
	"errors"
	"remitscout-backend/internal/components/chrono"
	"remitscout-backend/internal/components/telemetry"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

var gbpEur = Pair{
	FromCountry:    "uk",
	ToCountry:      "germany",
	SourceCurrency: "GBP",
	TargetCurrency: "EUR",
	Amount:         1000,
	PaymentMethod:  "bank_transfer",
	URL:            "https://compare.test/gbp/eur",
}

var gbpInr = Pair{
	FromCountry:    "uk",
	ToCountry:      "india",
	SourceCurrency: "GBP",
	TargetCurrency: "INR",
	Amount:         500,
	PaymentMethod:  "debit_card",
	URL:            "https://compare.test/gbp/inr",
}

const acmePage = `<html><body>
<form><input name="amount" value="1000"></form>
<div id="results"><table>
	<thead><tr><th>Provider</th><th>Recipient gets</th><th>Rate</th><th>Fee</th></tr></thead>
	<tbody>
		<tr><td>Acme</td><td>€1,150</td><td>1.15</td><td>£5</td></tr>
	</tbody>
</table></div>
</body></html>`

func newTestRunner(t *testing.T, browser *fakeBrowser) (*Runner, *telemetry.RecorderAPI) {
	tel := telemetry.NewRecorderAPI(nil)
	runner, err := NewRunner(launcher(browser), RunnerOptions{
		Selectors: testSelectors,
		Timeouts: Timeouts{
			Navigate: time.Second,
			Form:     time.Second,
			Results:  100 * time.Millisecond,
			Poll:     10 * time.Millisecond,
		},
		Bands: map[string]Band{
			"EUR": {Min: "1.10", Max: "1.20"},
			"USD": {Min: "1.20", Max: "1.40"},
			"INR": {Min: "100", Max: "120"},
		},
		KnownProviders: map[string]string{
			"wise":         "Wise",
			"westernunion": "Western Union",
		},
	}, chrono.NewFakeTime(epoch), tel)
	require.NoError(t, err)
	return runner, tel
}

func TestAcmeEndToEnd(t *testing.T) {
	page := &fakePage{html: acmePage}
	browser := &fakeBrowser{pages: []*fakePage{page}}
	runner, tel := newTestRunner(t, browser)

	result := runner.Run(context.Background(), []Pair{gbpEur})

	_, err := uuid.Parse(result.RunID)
	require.NoError(t, err)
	require.Len(t, result.Quotes, 1)

	quotes := result.Quotes["uk_to_germany"]
	require.Len(t, quotes, 1)
	require.Equal(t, Quote{
		Status:          STATUS_OK,
		ProviderName:    "Acme",
		RecipientAmount: "€1,150",
		ExchangeRate:    "1.15",
		Fee:             "£5",
		FromCountry:     "uk",
		ToCountry:       "germany",
		SourceCurrency:  "GBP",
		TargetCurrency:  "EUR",
		Amount:          1000,
		PaymentMethod:   "bank_transfer",
		ScrapedAt:       "2024-06-01T12:00:00Z",
	}, quotes[0])

	require.Equal(t, []string{gbpEur.URL}, page.navigated)
	require.Equal(t, []string{testSelectors.SubmitButton}, page.clicked)
	require.True(t, page.closed)
	require.True(t, browser.closed)
	require.Empty(t, tel.Reports(telemetry.REPORT_WARNING, "pair-scraper"))
}

func TestQuotesAndUnavailablePartition(t *testing.T) {
	page := &fakePage{html: `<div id="results"><table><tbody>
		<tr><td><img src="w.png" alt="Wise"></td><td><strong>€1,162.40</strong></td><td><span data-value="1.1674">1.1674 EUR</span></td><td>Fee: £4.14</td><td><a href="/go/wise?ref=1#top">Go</a></td></tr>
		<tr><td>Western Union</td><td>Recipient gets €1,120.00</td><td>Exchange rate 1.1290</td><td>Transfer fee £0.99</td></tr>
		<tr><td>SlowBank</td><td>Not available for this route</td></tr>
		<tr><td></td><td>ignored</td><td>x</td><td>y</td></tr>
	</tbody></table></div>`}
	runner, _ := newTestRunner(t, &fakeBrowser{pages: []*fakePage{page}})

	quotes := runner.Run(context.Background(), []Pair{gbpEur}).Quotes["uk_to_germany"]
	require.Len(t, quotes, 3)

	require.Equal(t, STATUS_OK, quotes[0].Status)
	require.Equal(t, "Wise", quotes[0].ProviderName)
	require.Equal(t, "wise", quotes[0].ProviderCode)
	require.Equal(t, "€1,162.40", quotes[0].RecipientAmount)
	require.Equal(t, "1.1674", quotes[0].ExchangeRate)
	require.Equal(t, "£4.14", quotes[0].Fee)
	require.Equal(t, "https://compare.test/go/wise?ref=1", quotes[0].Link)

	require.Equal(t, STATUS_OK, quotes[1].Status)
	require.Equal(t, "westernunion", quotes[1].ProviderCode)
	require.Equal(t, "€1,120.00", quotes[1].RecipientAmount)
	require.Equal(t, "1.1290", quotes[1].ExchangeRate)
	require.Equal(t, "£0.99", quotes[1].Fee)

	require.Equal(t, STATUS_UNAVAILABLE, quotes[2].Status)
	require.Equal(t, "SlowBank", quotes[2].ProviderName)
	require.Equal(t, "Not available for this route", quotes[2].Reason)
	require.Empty(t, quotes[2].ExchangeRate)

	for _, q := range quotes {
		require.NotEqual(t, STATUS_ERROR, q.Status)
		require.Equal(t, 1000, q.Amount)
	}
}

func TestExtractionFailureYieldsSingleErrorRecord(t *testing.T) {
	testCases := []struct {
		name string
		page *fakePage
	}{
		{name: "navigation fails", page: &fakePage{html: acmePage, navigateErr: errors.New("net::ERR_NAME_NOT_RESOLVED")}},
		{name: "html read fails", page: &fakePage{html: acmePage, htmlErr: errors.New("target closed")}},
		{name: "extraction panics", page: &fakePage{html: acmePage, panicOnHTML: true}},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			healthy := &fakePage{html: acmePage}
			runner, tel := newTestRunner(t, &fakeBrowser{pages: []*fakePage{test.page, healthy}})

			result := runner.Run(context.Background(), []Pair{gbpInr, gbpEur})

			failed := result.Quotes["uk_to_india"]
			require.Len(t, failed, 1)
			require.Equal(t, STATUS_ERROR, failed[0].Status)
			require.NotEmpty(t, failed[0].Message)
			require.Empty(t, failed[0].ProviderName)
			require.Equal(t, "INR", failed[0].TargetCurrency)
			require.Equal(t, 500, failed[0].Amount)
			require.Equal(t, "2024-06-01T12:00:00Z", failed[0].ScrapedAt)
			require.True(t, test.page.closed)

			require.Len(t, result.Quotes["uk_to_germany"], 1)
			require.Equal(t, "Acme", result.Quotes["uk_to_germany"][0].ProviderName)

			require.Len(t, tel.Reports(telemetry.REPORT_WARNING, report_pair_failed), 1)
			quotes, errs := result.Counts()
			require.Equal(t, 1, quotes)
			require.Equal(t, 1, errs)
		})
	}
}

func TestPlausibilityIsAdvisory(t *testing.T) {
	page := &fakePage{html: `<div id="results"><table><tbody>
		<tr><td>Acme</td><td>€50</td><td>0.05</td><td>£5</td></tr>
	</tbody></table></div>`}
	runner, tel := newTestRunner(t, &fakeBrowser{pages: []*fakePage{page}})

	quotes := runner.Run(context.Background(), []Pair{gbpEur}).Quotes["uk_to_germany"]
	require.Len(t, quotes, 1)
	require.Equal(t, "0.05", quotes[0].ExchangeRate)
	require.Equal(t, STATUS_OK, quotes[0].Status)
	require.Len(t, tel.Reports(telemetry.REPORT_WARNING, report_pair_validate), 1)
}

func TestNonFatalStepsOnlyWarn(t *testing.T) {
	page := &fakePage{
		html:        acmePage,
		waitErr:     context.DeadlineExceeded,
		evaluateErr: errors.New("execution context was destroyed"),
	}
	runner, tel := newTestRunner(t, &fakeBrowser{pages: []*fakePage{page}})

	quotes := runner.Run(context.Background(), []Pair{gbpEur}).Quotes["uk_to_germany"]
	require.Len(t, quotes, 1)
	require.Equal(t, "Acme", quotes[0].ProviderName)

	require.Len(t, tel.Reports(telemetry.REPORT_WARNING, report_pair_wait_form), 1)
	require.Len(t, tel.Reports(telemetry.REPORT_WARNING, report_pair_reconcile), 1)
	require.Len(t, tel.Reports(telemetry.REPORT_WARNING, report_pair_submit), 1)
	require.Len(t, tel.Reports(telemetry.REPORT_WARNING, report_pair_wait_results), 1)
	require.Empty(t, page.clicked)
}

func TestResultsTimeoutExtractsWhatIsRendered(t *testing.T) {
	page := &fakePage{html: acmePage, notReady: true}
	runner, tel := newTestRunner(t, &fakeBrowser{pages: []*fakePage{page}})

	quotes := runner.Run(context.Background(), []Pair{gbpEur}).Quotes["uk_to_germany"]
	require.Len(t, quotes, 1)
	require.Len(t, tel.Reports(telemetry.REPORT_WARNING, report_pair_wait_results), 1)
}

func TestZeroPollIntervalFallsBackToDefault(t *testing.T) {
	page := &fakePage{html: acmePage}
	tel := telemetry.NewRecorderAPI(nil)
	runner, err := NewRunner(launcher(&fakeBrowser{pages: []*fakePage{page}}), RunnerOptions{
		Selectors: testSelectors,
		Timeouts: Timeouts{
			Navigate: time.Second,
			Form:     time.Second,
			Results:  100 * time.Millisecond,
		},
	}, chrono.NewFakeTime(epoch), tel)
	require.NoError(t, err)

	quotes := runner.Run(context.Background(), []Pair{gbpEur}).Quotes["uk_to_germany"]
	require.Len(t, quotes, 1)
	require.Equal(t, STATUS_OK, quotes[0].Status)
	require.Equal(t, "Acme", quotes[0].ProviderName)
	require.Empty(t, tel.Reports(telemetry.REPORT_WARNING, report_pair_failed))
}

func TestEmptyPageYieldsNoQuotes(t *testing.T) {
	page := &fakePage{html: `<html><body><p>We could not find any offers.</p></body></html>`}
	runner, tel := newTestRunner(t, &fakeBrowser{pages: []*fakePage{page}})

	result := runner.Run(context.Background(), []Pair{gbpEur})
	quotes, ok := result.Quotes["uk_to_germany"]
	require.True(t, ok)
	require.NotNil(t, quotes)
	require.Empty(t, quotes)
	require.Len(t, tel.Reports(telemetry.REPORT_WARNING, report_pair_validate), 1)
}

func TestLaunchFailure(t *testing.T) {
	tel := telemetry.NewRecorderAPI(nil)
	runner, err := NewRunner(func(ctx context.Context) (Browser, error) {
		return nil, errors.New("chrome not found")
	}, RunnerOptions{Selectors: testSelectors}, chrono.NewFakeTime(epoch), tel)
	require.NoError(t, err)

	result := runner.Run(context.Background(), []Pair{gbpEur, gbpInr})
	require.Len(t, result.Quotes, 2)
	for _, quotes := range result.Quotes {
		require.Len(t, quotes, 1)
		require.Equal(t, STATUS_ERROR, quotes[0].Status)
		require.Contains(t, quotes[0].Message, "chrome not found")
	}
	require.Len(t, tel.Reports(telemetry.REPORT_BROKEN, report_runner_launch), 1)
}

func TestNewPageFailure(t *testing.T) {
	runner, _ := newTestRunner(t, &fakeBrowser{newPageErr: errors.New("too many tabs")})

	quotes := runner.Run(context.Background(), []Pair{gbpEur}).Quotes["uk_to_germany"]
	require.Len(t, quotes, 1)
	require.Equal(t, STATUS_ERROR, quotes[0].Status)
}

func chronoAt(now time.Time) *chrono.FakeTime {
	return chrono.NewFakeTime(now)
}
