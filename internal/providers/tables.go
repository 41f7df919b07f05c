package providers

import (
	_ "embed"
	"fmt"
	"remitscout-backend/internal/components/configutil"
	"strings"
)

//go:embed tables.json5
var embeddedTables []byte

// Tables is the curated, read-only data the scraper works with.
type Tables struct {
	KnownProviders  map[string]Profile  `json:"known_providers"`
	DomainOverrides map[string][]string `json:"domain_overrides"`
	DomainTemplates []string            `json:"domain_templates"`
	Regulators      []string            `json:"regulators"`
}

// DefaultTables decodes the tables compiled into the binary.
func DefaultTables() (Tables, error) {
	tables, err := configutil.Decode[Tables](embeddedTables)
	if err != nil {
		return Tables{}, fmt.Errorf("decode embedded provider tables: %w", err)
	}
	return tables, nil
}

// LoadTables merges the file at path (if any) over the embedded tables.
func LoadTables(path string) (Tables, error) {
	tables, err := DefaultTables()
	if err != nil {
		return Tables{}, err
	}
	tables, err = configutil.ReadOver(tables, path)
	if err != nil {
		return Tables{}, fmt.Errorf("read provider tables '%s': %w", path, err)
	}
	return tables, nil
}

// candidates lists the urls to probe for a code, overrides first.
func (t Tables) candidates(code string) []string {
	out := []string{}
	seen := map[string]bool{}
	add := func(u string) {
		if seen[u] {
			return
		}
		seen[u] = true
		out = append(out, u)
	}
	for _, u := range t.DomainOverrides[code] {
		add(u)
	}
	for _, template := range t.DomainTemplates {
		add(strings.ReplaceAll(template, "{code}", code))
	}
	return out
}
