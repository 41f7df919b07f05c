package compare

import (
	"regexp"
	"remitscout-backend/internal/components/htmlutil"
	"remitscout-backend/internal/components/textutil"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Strategy pulls quotes out of a rendered comparison page. Extracted quotes only carry
// provider fields, the request echo is added later.
type Strategy interface {
	Name() string
	Extract(doc *goquery.Document) []Quote
}

// DefaultStrategies is the order strategies are tried in, the first one yielding a quote wins.
func DefaultStrategies(selectors Selectors) []Strategy {
	return []Strategy{
		TableStrategy{Container: selectors.Results},
		CardStrategy{Container: selectors.Results},
	}
}

var labelPrefix = regexp.MustCompile(`(?i)^\s*(recipient gets|exchange rate|transfer fee|fee|rate)\s*:?\s*`)

func stripLabel(text string) string {
	return strings.TrimSpace(labelPrefix.ReplaceAllString(text, ""))
}

func container(doc *goquery.Document, selector string) *goquery.Selection {
	if selector != "" {
		found := doc.Find(selector).First()
		if found.Length() > 0 {
			return found
		}
	}
	return doc.Selection
}

func imageName(sel *goquery.Selection) string {
	alt, _ := sel.Find("img[alt]").First().Attr("alt")
	return htmlutil.CleanText(alt)
}

func firstLink(sel *goquery.Selection) string {
	href, _ := sel.Find("a[href]").First().Attr("href")
	return strings.TrimSpace(href)
}

// TableStrategy reads rows of a structured results table. Rows with at least four cells are
// offers (provider, recipient amount, rate, fee), rows with two or three are unavailable providers.
type TableStrategy struct {
	Container string
}

func (TableStrategy) Name() string {
	return "table"
}

// cellValue prefers labelled sub-elements over the cell's text.
func cellValue(cell *goquery.Selection) string {
	for _, selector := range []string{"[data-value]", ".value", "strong"} {
		el := cell.Find(selector).First()
		if el.Length() == 0 {
			continue
		}
		if v := htmlutil.CleanText(el.AttrOr("data-value", "")); v != "" {
			return v
		}
		if text := htmlutil.SelectionText(el); text != "" {
			return text
		}
	}
	return stripLabel(htmlutil.SelectionText(cell))
}

func (t TableStrategy) Extract(doc *goquery.Document) []Quote {
	root := container(doc, t.Container)

	rows := root.Find("tbody tr")
	if rows.Length() == 0 {
		rows = root.Find("tr").FilterFunction(func(_ int, row *goquery.Selection) bool {
			return row.Find("td").Length() > 0
		})
	}

	quotes := []Quote{}
	rows.Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		first := cells.First()
		name := imageName(first)
		if name == "" {
			name = htmlutil.SelectionText(first)
		}
		if name == "" {
			return
		}

		switch n := cells.Length(); {
		case n >= 4:
			quotes = append(quotes, Quote{
				Status:          STATUS_OK,
				ProviderName:    name,
				RecipientAmount: cellValue(cells.Eq(1)),
				ExchangeRate:    cellValue(cells.Eq(2)),
				Fee:             cellValue(cells.Eq(3)),
				Link:            firstLink(row),
			})
		case n >= 2:
			quotes = append(quotes, Quote{
				Status:       STATUS_UNAVAILABLE,
				ProviderName: name,
				Reason:       htmlutil.SelectionText(cells.Last()),
			})
		}
	})
	return quotes
}

const cardSelector = `[class*="card"], [class*="provider"], li, article`

var (
	rateKeywords   = []string{"rate", "exchange"}
	feeKeywords    = []string{"fee", "cost"}
	amountKeywords = []string{"gets", "amount", "recipient"}
)

// CardStrategy loosely reads card-like containers. A card needs a name and at least one
// of rate, fee or recipient amount, nested cards win over the card wrapping them.
type CardStrategy struct {
	Container string
}

func (CardStrategy) Name() string {
	return "card"
}

func cardName(card *goquery.Selection) (string, *html.Node) {
	if name := imageName(card); name != "" {
		return name, nil
	}
	for _, selector := range []string{"h1, h2, h3, h4, h5, h6", `[class*="name"]`} {
		el := card.Find(selector).First()
		if text := htmlutil.SelectionText(el); text != "" {
			return text, el.Get(0)
		}
	}
	return "", nil
}

// leafBlocks returns the elements of a card holding text directly, in document order.
func leafBlocks(card *goquery.Selection, skip *html.Node) []*goquery.Selection {
	out := []*goquery.Selection{}
	card.Find("*").Each(func(_ int, el *goquery.Selection) {
		node := el.Get(0)
		if node == skip || el.Children().Length() > 0 || goquery.NodeName(el) == "img" {
			return
		}
		if htmlutil.SelectionText(el) == "" {
			return
		}
		out = append(out, el)
	})
	return out
}

func cardQuote(card *goquery.Selection) (Quote, bool) {
	name, nameNode := cardName(card)
	if name == "" {
		return Quote{}, false
	}
	quote := Quote{
		Status:       STATUS_OK,
		ProviderName: name,
		Link:         firstLink(card),
	}

	blocks := leafBlocks(card, nameNode)
	for i, block := range blocks {
		text := htmlutil.SelectionText(block)
		value := stripLabel(text)
		if value == "" && i+1 < len(blocks) {
			// a bare label, its value lives in the next block
			value = htmlutil.SelectionText(blocks[i+1])
		}

		switch {
		case quote.ExchangeRate == "" && textutil.MatchAny(text, rateKeywords):
			quote.ExchangeRate = value
		case quote.Fee == "" && textutil.MatchAny(text, feeKeywords):
			quote.Fee = value
		case quote.RecipientAmount == "" && textutil.MatchAny(text, amountKeywords):
			quote.RecipientAmount = value
		}
	}

	if quote.ExchangeRate == "" && quote.Fee == "" && quote.RecipientAmount == "" {
		return Quote{}, false
	}
	return quote, true
}

func isAncestor(ancestor, node *html.Node) bool {
	for p := node.Parent; p != nil; p = p.Parent {
		if p == ancestor {
			return true
		}
	}
	return false
}

func (c CardStrategy) Extract(doc *goquery.Document) []Quote {
	root := container(doc, c.Container)

	type candidate struct {
		node  *html.Node
		quote Quote
	}
	candidates := []candidate{}
	root.Find(cardSelector).Each(func(_ int, card *goquery.Selection) {
		quote, ok := cardQuote(card)
		if ok {
			candidates = append(candidates, candidate{node: card.Get(0), quote: quote})
		}
	})

	quotes := []Quote{}
	for _, outer := range candidates {
		wrapsAnother := false
		for _, inner := range candidates {
			if inner.node != outer.node && isAncestor(outer.node, inner.node) {
				wrapsAnother = true
				break
			}
		}
		if !wrapsAnother {
			quotes = append(quotes, outer.quote)
		}
	}
	return quotes
}
