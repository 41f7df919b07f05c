package compare

import (
	"remitscout-backend/internal/components/textutil"
	"sort"

	"github.com/antzucaro/matchr"
)

const providerMatchThreshold = 0.92

// ProviderMatcher maps a displayed provider name to a known provider code.
type ProviderMatcher struct {
	codes []string
	names map[string][]string
}

// NewProviderMatcher takes known providers as code -> display name.
func NewProviderMatcher(known map[string]string) ProviderMatcher {
	m := ProviderMatcher{names: map[string][]string{}}
	for code, name := range known {
		m.codes = append(m.codes, code)
		m.names[code] = []string{textutil.NormalizeName(code), textutil.NormalizeName(name)}
	}
	// deterministic tie breaking
	sort.Strings(m.codes)
	return m
}

// Match returns the code of the closest known provider, or "" when nothing is close enough.
func (m ProviderMatcher) Match(name string) string {
	normalized := textutil.NormalizeName(name)
	if normalized == "" {
		return ""
	}

	bestCode := ""
	bestScore := 0.0
	for _, code := range m.codes {
		for _, candidate := range m.names[code] {
			if candidate == "" {
				continue
			}
			score := matchr.JaroWinkler(normalized, candidate, false)
			if score > bestScore {
				bestScore = score
				bestCode = code
			}
		}
	}
	if bestScore < providerMatchThreshold {
		return ""
	}
	return bestCode
}
