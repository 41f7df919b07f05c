package textutil

import (
	"regexp"
	"strings"
	"unicode"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// NormalizeName lowercases a name and removes all whitespace from it.
func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.Trim(name, " \n\t")
	name = whitespaceRegex.ReplaceAllString(name, "")
	return name
}

// MatchAny reports whether the lowercased text contains any of the matchers.
func MatchAny(text string, matchers []string) bool {
	text = strings.ToLower(text)
	for _, m := range matchers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

var wordSeparator = regexp.MustCompile(`[-_.\s]+`)

// TitleCase turns an identifier like "western-union" into "Western Union".
func TitleCase(ident string) string {
	words := wordSeparator.Split(strings.TrimSpace(ident), -1)
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w == "" {
			continue
		}
		runes := []rune(strings.ToLower(w))
		runes[0] = unicode.ToUpper(runes[0])
		out = append(out, string(runes))
	}
	return strings.Join(out, " ")
}
