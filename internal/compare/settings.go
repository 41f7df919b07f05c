package compare

import (
	_ "embed"
	"fmt"
	"remitscout-backend/internal/components/configutil"
	"time"
)

//go:embed settings.json5
var embeddedSettings []byte

// Selectors locate the interactive parts of a comparison page.
type Selectors struct {
	Form               string `json:"form"`
	AmountInput        string `json:"amountInput"`
	PaymentMethodInput string `json:"paymentMethodInput"`
	SubmitButton       string `json:"submitButton"`
	Results            string `json:"results"`
	Loading            string `json:"loading"`
}

// Band is an inclusive range of plausible exchange rates, bounds are decimal strings.
type Band struct {
	Min string `json:"min"`
	Max string `json:"max"`
}

type TimeoutSettings struct {
	Navigate string `json:"navigate"`
	Form     string `json:"form"`
	Results  string `json:"results"`
	Poll     string `json:"poll"`
}

type Settings struct {
	Pairs     []Pair          `json:"pairs"`
	Selectors Selectors       `json:"selectors"`
	Bands     map[string]Band `json:"bands"`
	Timeouts  TimeoutSettings `json:"timeouts"`
}

// Timeouts bound each waiting step of a pair scrape.
type Timeouts struct {
	Navigate time.Duration
	Form     time.Duration
	Results  time.Duration
	Poll     time.Duration
}

func DefaultTimeouts() Timeouts {
	return Timeouts{
		Navigate: 60 * time.Second,
		Form:     15 * time.Second,
		Results:  30 * time.Second,
		Poll:     500 * time.Millisecond,
	}
}

// Parse turns the duration strings into Timeouts, empty values keep their default.
// Zero and negative durations are rejected.
func (t TimeoutSettings) Parse() (Timeouts, error) {
	out := DefaultTimeouts()
	fields := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{name: "navigate", value: t.Navigate, dst: &out.Navigate},
		{name: "form", value: t.Form, dst: &out.Form},
		{name: "results", value: t.Results, dst: &out.Results},
		{name: "poll", value: t.Poll, dst: &out.Poll},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		d, err := time.ParseDuration(f.value)
		if err != nil {
			return Timeouts{}, fmt.Errorf("timeouts.%s: %w", f.name, err)
		}
		if d <= 0 {
			return Timeouts{}, fmt.Errorf("timeouts.%s: must be positive, got '%s'", f.name, f.value)
		}
		*f.dst = d
	}
	return out, nil
}

func DefaultSettings() (Settings, error) {
	settings, err := configutil.Decode[Settings](embeddedSettings)
	if err != nil {
		return Settings{}, fmt.Errorf("decode embedded compare settings: %w", err)
	}
	return settings, nil
}

// LoadSettings merges the file at path (if any) over the embedded settings.
func LoadSettings(path string) (Settings, error) {
	settings, err := DefaultSettings()
	if err != nil {
		return Settings{}, err
	}
	settings, err = configutil.ReadOver(settings, path)
	if err != nil {
		return Settings{}, fmt.Errorf("read compare settings '%s': %w", path, err)
	}
	return settings, nil
}
