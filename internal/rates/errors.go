package rates

import (
	"errors"
	"fmt"
)

var (
	// ErrUpstreamUnavailable means the rate api could not be reached or failed, retrying later may help.
	ErrUpstreamUnavailable = errors.New("rate api unavailable")
	// ErrAuthentication means the rate api rejected the configured client credentials (HTTP 401).
	ErrAuthentication = errors.New("rate api rejected client credentials")
	// ErrUpstreamData means the rate api answered but the body was missing, not an array or empty.
	ErrUpstreamData = errors.New("rate api returned an invalid response")

	ErrInvalidCurrency = errors.New("invalid currency code")
	ErrInvalidGrouping = errors.New("invalid grouping")
)

// Error is returned by every Service operation that fails because of the rate api.
// Use errors.Is with one of the Err* kinds to tell failures apart.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	if errors.Is(e.Err, e.Kind) {
		return fmt.Sprintf("%s: %s", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(op string, kind error, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// UserMessage is what end users should see for a failed rate lookup.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCurrency), errors.Is(err, ErrInvalidGrouping):
		return "unsupported currency request"
	default:
		return "rates temporarily unavailable"
	}
}
