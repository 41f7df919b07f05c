package compare

import (
	"fmt"
	"time"
)

// Pair is one comparison query, processed independently of every other pair.
type Pair struct {
	FromCountry    string `json:"fromCountry"`
	ToCountry      string `json:"toCountry"`
	SourceCurrency string `json:"sourceCurrency"`
	TargetCurrency string `json:"targetCurrency"`
	Amount         int    `json:"amount"`
	PaymentMethod  string `json:"paymentMethod"`
	// URL is the comparison page preconfigured for this pair.
	URL string `json:"url"`
}

func (p Pair) Key() string {
	return fmt.Sprintf("%s_to_%s", p.FromCountry, p.ToCountry)
}

type Status string

const (
	STATUS_OK          Status = "ok"
	STATUS_UNAVAILABLE Status = "unavailable"
	STATUS_ERROR       Status = "error"
)

// Quote is a single provider offer, an unavailable provider, or the error record of a failed pair.
type Quote struct {
	Status Status `json:"status"`

	ProviderName    string `json:"providerName,omitempty"`
	ProviderCode    string `json:"providerCode,omitempty"`
	RecipientAmount string `json:"recipientAmount,omitempty"`
	ExchangeRate    string `json:"exchangeRate,omitempty"`
	Fee             string `json:"fee,omitempty"`
	Link            string `json:"link,omitempty"`
	Reason          string `json:"reason,omitempty"`
	Message         string `json:"message,omitempty"`

	FromCountry    string `json:"fromCountry"`
	ToCountry      string `json:"toCountry"`
	SourceCurrency string `json:"sourceCurrency"`
	TargetCurrency string `json:"targetCurrency"`
	Amount         int    `json:"amount"`
	PaymentMethod  string `json:"paymentMethod"`
	ScrapedAt      string `json:"scrapedAt"`
}

// Result is everything one run produced.
type Result struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	// Pairs keeps the order pairs were processed in.
	Pairs  []Pair
	Quotes map[string][]Quote
}

// Counts returns the number of ok/unavailable quotes and error records in the result.
func (r Result) Counts() (quotes, errors int) {
	for _, list := range r.Quotes {
		for _, q := range list {
			if q.Status == STATUS_ERROR {
				errors++
				continue
			}
			quotes++
		}
	}
	return quotes, errors
}
