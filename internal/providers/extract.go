package providers

import (
	"regexp"
	"remitscout-backend/internal/components/htmlutil"
	"remitscout-backend/internal/components/textutil"
	"slices"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	maxNameLength         = 50
	maxRegulationLength   = 100
	maxHeadquartersLength = 60
)

var genericNames = []string{"home", "homepage", "home page", "welcome", "index"}

var titleSeparator = regexp.MustCompile(`\s+[-–]\s+|[|:·]`)

func acceptableName(name string) bool {
	if name == "" || len([]rune(name)) > maxNameLength {
		return false
	}
	return !slices.Contains(genericNames, strings.ToLower(name))
}

func extractName(doc *goquery.Document, code string) string {
	candidates := []string{
		htmlutil.MetaContent(doc, `meta[property="og:site_name"]`),
		htmlutil.MetaContent(doc, `meta[name="application-name"]`),
		htmlutil.MetaContent(doc, `meta[property="og:title"]`),
	}
	title := htmlutil.SelectionText(doc.Find("title").First())
	if title != "" {
		candidates = append(candidates, strings.TrimSpace(titleSeparator.Split(title, 2)[0]))
	}

	for _, c := range candidates {
		if acceptableName(c) {
			return c
		}
	}
	return textutil.TitleCase(code)
}

func extractDescription(doc *goquery.Document, name string) string {
	for _, selector := range []string{
		`meta[name="description"]`,
		`meta[property="og:description"]`,
		`meta[name="twitter:description"]`,
	} {
		content := htmlutil.MetaContent(doc, selector)
		if content != "" {
			return content
		}
	}

	about := doc.Find(`[id*="about"] p, [class*="about"] p`).First()
	text := htmlutil.SelectionText(about)
	if text != "" {
		return text
	}

	return defaultDescription(name)
}

var regulationKeywords = []string{"regulated", "authorised", "authorized", "licensed"}

const regulatoryRegions = `footer, ` +
	`[id*="legal"], [class*="legal"], ` +
	`[id*="compliance"], [class*="compliance"], ` +
	`[id*="regulat"], [class*="regulat"], ` +
	`[id*="footer"], [class*="footer"]`

// regulatorMatcher finds regulator names in text. All-caps abbreviations match
// case-sensitively so "SEC" does not match "second".
type regulatorMatcher struct {
	patterns []*regexp.Regexp
}

func newRegulatorMatcher(regulators []string) regulatorMatcher {
	patterns := make([]*regexp.Regexp, 0, len(regulators))
	for _, r := range regulators {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		expr := `\b` + regexp.QuoteMeta(r) + `\b`
		if strings.ToUpper(r) != r {
			expr = `(?i)` + expr
		}
		patterns = append(patterns, regexp.MustCompile(expr))
	}
	return regulatorMatcher{patterns: patterns}
}

func (m regulatorMatcher) mentions(text string) bool {
	for _, p := range m.patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

func extractRegulations(doc *goquery.Document, regulators regulatorMatcher) []string {
	seen := map[string]bool{}
	out := []string{}
	doc.Find(regulatoryRegions).Each(func(_ int, region *goquery.Selection) {
		for _, sentence := range htmlutil.Sentences(htmlutil.SelectionText(region)) {
			if len([]rune(sentence)) > maxRegulationLength || seen[sentence] {
				continue
			}
			if !regulators.mentions(sentence) && !textutil.MatchAny(sentence, regulationKeywords) {
				continue
			}
			seen[sentence] = true
			out = append(out, sentence)
		}
	})
	slices.Sort(out)
	return out
}

var headquartersTriggers = []string{
	"headquartered in",
	"headquarters are in",
	"headquarters is in",
	"headquarters in",
	"headquarters:",
	"headquarters",
	"based in",
}

func extractHeadquarters(sentences []string) *string {
	for _, sentence := range sentences {
		lower := strings.ToLower(sentence)
		for _, trigger := range headquartersTriggers {
			idx := strings.Index(lower, trigger)
			if idx < 0 || idx+len(trigger) > len(sentence) {
				continue
			}
			location := trimLocation(sentence[idx+len(trigger):])
			if location == "" || len([]rune(location)) > maxHeadquartersLength {
				break
			}
			return &location
		}
	}
	return nil
}

// trimLocation keeps at most a "city, country" pair and cuts at the end of the sentence.
func trimLocation(tail string) string {
	tail = strings.TrimLeft(tail, " :,-")
	if strings.HasPrefix(strings.ToLower(tail), "the ") {
		tail = tail[4:]
	}
	if end := strings.IndexAny(tail, ".;!?"); end >= 0 {
		tail = tail[:end]
	}
	parts := strings.Split(tail, ",")
	if len(parts) > 2 {
		parts = parts[:2]
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return strings.Trim(strings.Join(parts, ", "), ", ")
}

var (
	establishedTriggers = []string{"established", "founded", "since"}
	yearRegex           = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)
)

func extractEstablished(sentences []string) *int {
	for _, sentence := range sentences {
		if !textutil.MatchAny(sentence, establishedTriggers) {
			continue
		}
		match := yearRegex.FindString(sentence)
		if match == "" {
			continue
		}
		year, err := strconv.Atoi(match)
		if err != nil {
			continue
		}
		return &year
	}
	return nil
}

// extractProfile pulls whatever structured data it can out of a provider's homepage.
// Fields it cannot find are left empty.
func extractProfile(doc *goquery.Document, code string, regulators regulatorMatcher) Profile {
	name := extractName(doc, code)
	sentences := htmlutil.Sentences(htmlutil.SelectionText(doc.Find("body")))

	return Profile{
		Code:         code,
		Name:         name,
		Description:  extractDescription(doc, name),
		Regulations:  extractRegulations(doc, regulators),
		Headquarters: extractHeadquarters(sentences),
		Established:  extractEstablished(sentences),
	}
}
