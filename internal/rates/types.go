package rates

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type Kind string

const (
	KIND_CURRENT          Kind = "current"
	KIND_HISTORICAL_POINT Kind = "historical_point"
	KIND_HISTORICAL_RANGE Kind = "historical_range"
)

// Grouping is the interval a historical range is bucketed into by the rate api.
type Grouping string

const (
	GROUP_DAY    Grouping = "day"
	GROUP_HOUR   Grouping = "hour"
	GROUP_MINUTE Grouping = "minute"
)

func (g Grouping) valid() bool {
	switch g {
	case GROUP_DAY, GROUP_HOUR, GROUP_MINUTE:
		return true
	}
	return false
}

// Observation is a single rate quoted by the rate api.
type Observation struct {
	Rate   float64 `json:"rate"`
	Source string  `json:"source"`
	Target string  `json:"target"`
	Time   string  `json:"time"`
}

// Record is a cached rate lookup. Payload is passed through unchanged from the rate api:
// the first array element for point lookups, the whole array for ranges.
type Record struct {
	Source    string          `json:"source"`
	Target    string          `json:"target"`
	Kind      Kind            `json:"kind"`
	TimeKey   string          `json:"timeKey,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Key identifies the record in both cache tiers.
func (r Record) Key() string {
	return cacheKey(r.Kind, r.Source, r.Target, r.TimeKey)
}

// Observations decodes the payload regardless of kind.
func (r Record) Observations() ([]Observation, error) {
	if r.Kind == KIND_HISTORICAL_RANGE {
		var out []Observation
		err := json.Unmarshal(r.Payload, &out)
		return out, err
	}
	var single Observation
	err := json.Unmarshal(r.Payload, &single)
	if err != nil {
		return nil, err
	}
	return []Observation{single}, nil
}

func cacheKey(kind Kind, source, target, timeKey string) string {
	return fmt.Sprintf("%s:%s:%s:%s", kind, source, target, timeKey)
}

func pointTimeKey(at time.Time) string {
	return at.UTC().Format(time.RFC3339)
}

func rangeTimeKey(from, to time.Time, group Grouping) string {
	return fmt.Sprintf(
		"%s_%s_%s",
		from.UTC().Format(time.RFC3339),
		to.UTC().Format(time.RFC3339),
		group,
	)
}

// Query is the set of parameters sent to the rate api.
type Query struct {
	Source string
	Target string
	Time   *time.Time
	From   *time.Time
	To     *time.Time
	Group  Grouping
}

func (q Query) params() map[string]string {
	params := map[string]string{
		"source": q.Source,
		"target": q.Target,
	}
	if q.Time != nil {
		params["time"] = q.Time.UTC().Format(time.RFC3339)
	}
	if q.From != nil {
		params["from"] = q.From.UTC().Format(time.RFC3339)
	}
	if q.To != nil {
		params["to"] = q.To.UTC().Format(time.RFC3339)
	}
	if q.Group != "" {
		params["group"] = string(q.Group)
	}
	return params
}

// NormalizeCurrency upper-cases a currency code, it fails if the code is not 3 ascii letters.
func NormalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return "", fmt.Errorf("%w: '%s'", ErrInvalidCurrency, code)
	}
	for _, c := range code {
		if c < 'A' || c > 'Z' {
			return "", fmt.Errorf("%w: '%s'", ErrInvalidCurrency, code)
		}
	}
	return code, nil
}
