package compare

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

type band struct {
	min decimal.Decimal
	max decimal.Decimal
}

// Validator checks extracted exchange rates against plausible bands per target currency.
// Its verdict is diagnostic only.
type Validator struct {
	bands map[string]band
}

func NewValidator(bands map[string]Band) (Validator, error) {
	parsed := make(map[string]band, len(bands))
	for currency, b := range bands {
		lo, err := decimal.NewFromString(b.Min)
		if err != nil {
			return Validator{}, fmt.Errorf("band %s min '%s': %w", currency, b.Min, err)
		}
		hi, err := decimal.NewFromString(b.Max)
		if err != nil {
			return Validator{}, fmt.Errorf("band %s max '%s': %w", currency, b.Max, err)
		}
		if lo.GreaterThan(hi) {
			return Validator{}, fmt.Errorf("band %s: min %s is above max %s", currency, lo, hi)
		}
		parsed[strings.ToUpper(currency)] = band{min: lo, max: hi}
	}
	return Validator{bands: parsed}, nil
}

var decimalNumber = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)

// ParseRate extracts the rate of a display string like "1.1523" or "1 GBP = 1.1523 EUR",
// commas are read as thousands separators.
func ParseRate(text string) (decimal.Decimal, bool) {
	if idx := strings.LastIndex(text, "="); idx >= 0 {
		text = text[idx+1:]
	}
	match := decimalNumber.FindString(text)
	if match == "" {
		return decimal.Decimal{}, false
	}
	value, err := decimal.NewFromString(strings.ReplaceAll(match, ",", ""))
	if err != nil {
		return decimal.Decimal{}, false
	}
	return value, true
}

// Reasonable reports whether at least one offer's rate lies inside the band of the target
// currency. Currencies without a band are always reasonable.
func (v Validator) Reasonable(targetCurrency string, quotes []Quote) bool {
	b, ok := v.bands[strings.ToUpper(targetCurrency)]
	if !ok {
		return true
	}
	for _, q := range quotes {
		if q.Status != STATUS_OK {
			continue
		}
		rate, ok := ParseRate(q.ExchangeRate)
		if !ok {
			continue
		}
		if rate.GreaterThanOrEqual(b.min) && rate.LessThanOrEqual(b.max) {
			return true
		}
	}
	return false
}
