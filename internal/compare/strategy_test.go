package compare

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func parseDoc(t *testing.T, html string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func extractFirst(strategies []Strategy, doc *goquery.Document) (string, []Quote) {
	for _, s := range strategies {
		quotes := s.Extract(doc)
		if len(quotes) > 0 {
			return s.Name(), quotes
		}
	}
	return "", nil
}

func TestTableStrategy(t *testing.T) {
	testCases := []struct {
		name     string
		html     string
		expected []Quote
	}{
		{
			name: "rows without tbody",
			html: `<table>
				<tr><th>Provider</th><th>Gets</th><th>Rate</th><th>Fee</th></tr>
				<tr><td>Acme</td><td>€1,150</td><td>1.15</td><td>£5</td></tr>
			</table>`,
			expected: []Quote{{
				Status:          STATUS_OK,
				ProviderName:    "Acme",
				RecipientAmount: "€1,150",
				ExchangeRate:    "1.15",
				Fee:             "£5",
			}},
		},
		{
			name: "only the results container is read",
			html: `<table><tr><td>Ad</td><td>x</td><td>y</td><td>z</td></tr></table>
			<div id="results"><table><tbody>
				<tr><td>Acme</td><td>€1,150</td><td>1.15</td><td>£5</td></tr>
				<tr><td>Closed Ltd</td><td>Unavailable</td><td></td></tr>
			</tbody></table></div>`,
			expected: []Quote{
				{
					Status:          STATUS_OK,
					ProviderName:    "Acme",
					RecipientAmount: "€1,150",
					ExchangeRate:    "1.15",
					Fee:             "£5",
				},
				{Status: STATUS_UNAVAILABLE, ProviderName: "Closed Ltd"},
			},
		},
		{
			name:     "single cell rows are ignored",
			html:     `<div id="results"><table><tr><td>Sponsored</td></tr></table></div>`,
			expected: []Quote{},
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			quotes := TableStrategy{Container: "#results"}.Extract(parseDoc(t, test.html))
			require.Equal(t, test.expected, quotes)
		})
	}
}

func TestCardStrategyFallback(t *testing.T) {
	doc := parseDoc(t, `<html><body><div id="results">
		<article>
			<div class="provider-card">
				<h3>Remitly</h3>
				<div class="details"><span>Exchange rate</span><span>1.1480</span></div>
				<div><span>Fee</span><span>£1.99</span></div>
				<div><span>Recipient gets</span><span>€1,146.00</span></div>
				<a href="https://remitly.com/go">Send</a>
			</div>
		</article>
		<li><h3>Ghost</h3></li>
	</div></body></html>`)

	name, quotes := extractFirst(DefaultStrategies(Selectors{Results: "#results"}), doc)
	require.Equal(t, "card", name)
	require.Equal(t, []Quote{{
		Status:          STATUS_OK,
		ProviderName:    "Remitly",
		ExchangeRate:    "1.1480",
		Fee:             "£1.99",
		RecipientAmount: "€1,146.00",
		Link:            "https://remitly.com/go",
	}}, quotes)
}

func TestTableStrategyWinsOverCards(t *testing.T) {
	doc := parseDoc(t, `<div id="results">
		<table><tbody><tr><td>Acme</td><td>€1,150</td><td>1.15</td><td>£5</td></tr></tbody></table>
		<div class="provider-card"><h3>Other</h3><span>Fee: £1</span></div>
	</div>`)

	name, quotes := extractFirst(DefaultStrategies(Selectors{Results: "#results"}), doc)
	require.Equal(t, "table", name)
	require.Len(t, quotes, 1)
	require.Equal(t, "Acme", quotes[0].ProviderName)
}

func TestStripLabel(t *testing.T) {
	testCases := []struct {
		text     string
		expected string
	}{
		{text: "Fee: £4.14", expected: "£4.14"},
		{text: "Transfer fee £0.99", expected: "£0.99"},
		{text: "Exchange rate 1.1290", expected: "1.1290"},
		{text: "Recipient gets €1,120.00", expected: "€1,120.00"},
		{text: "€1,120.00", expected: "€1,120.00"},
	}
	for _, test := range testCases {
		require.Equal(t, test.expected, stripLabel(test.text), test.text)
	}
}
