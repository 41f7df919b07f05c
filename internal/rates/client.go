package rates

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"remitscout-backend/internal/components/assert"
	"remitscout-backend/internal/components/telemetry"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	report_api_client_fetch = "api-client.fetch"
	report_api_client_auth  = "api-client.auth"
)

// Upstream is the source of truth behind both cache tiers.
//
// note: fault injection point
type Upstream interface {
	// Fetch returns the raw response body of a rate query.
	Fetch(ctx context.Context, q Query) (json.RawMessage, error)
}

type APIClientOptions struct {
	BaseURL string
	// Path of the rates endpoint relative to BaseURL, defaults to "/v1/rates".
	Path string

	ClientID     string
	ClientSecret string
	// TokenURL enables the oauth2 client credentials flow, when empty the bearer token
	// is base64("<client id>:<client secret>").
	TokenURL string
	Scopes   []string

	Timeout time.Duration
}

// APIClient talks to the partner rate api.
type APIClient struct {
	http        *resty.Client
	path        string
	tokens      oauth2.TokenSource
	staticToken string
	tel         telemetry.API
}

func NewAPIClient(opts APIClientOptions, tel telemetry.API) *APIClient {
	assert.NotEmptyStr(opts.BaseURL, "rate api base url")
	assert.NotNil(tel, "telemetry")

	tel = telemetry.NewScopedAPI("rate_api", tel)

	if opts.Path == "" {
		opts.Path = "/v1/rates"
	}
	if opts.Timeout == 0 {
		opts.Timeout = time.Second * 10
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(opts.BaseURL)
	httpClient.SetTimeout(opts.Timeout)
	httpClient.SetHeader("accept", "application/json")
	telemetry.InstrumentResty(httpClient, tel)

	c := &APIClient{
		http: httpClient,
		path: opts.Path,
		tel:  tel,
	}

	if opts.TokenURL != "" {
		cfg := clientcredentials.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			TokenURL:     opts.TokenURL,
			Scopes:       opts.Scopes,
		}
		tokenCtx := context.WithValue(
			context.Background(),
			oauth2.HTTPClient,
			&http.Client{Timeout: opts.Timeout},
		)
		c.tokens = cfg.TokenSource(tokenCtx)
	} else {
		c.staticToken = base64.StdEncoding.EncodeToString(
			[]byte(opts.ClientID + ":" + opts.ClientSecret),
		)
	}

	return c
}

func (c *APIClient) token() (string, error) {
	if c.tokens == nil {
		return c.staticToken, nil
	}

	tok, err := c.tokens.Token()
	if err == nil {
		return tok.AccessToken, nil
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) &&
		((retrieveErr.Response != nil && retrieveErr.Response.StatusCode == http.StatusUnauthorized) ||
			retrieveErr.ErrorCode == "invalid_client") {
		c.tel.ReportBroken(
			report_api_client_auth,
			fmt.Errorf("token endpoint rejected client credentials, check the configured client id/secret: %w", err),
		)
		return "", fmt.Errorf("%w: %w", ErrAuthentication, err)
	}

	c.tel.ReportBroken(report_api_client_auth, fmt.Errorf("fetch token: %w", err))
	return "", fmt.Errorf("%w: fetch token: %w", ErrUpstreamUnavailable, err)
}

func (c *APIClient) Fetch(ctx context.Context, q Query) (json.RawMessage, error) {
	token, err := c.token()
	if err != nil {
		return nil, err
	}

	params := q.params()
	c.tel.ReportDebug("fetch rates", params)

	res, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParams(params).
		Get(c.path)
	if err != nil {
		c.tel.ReportBroken(
			report_api_client_fetch,
			fmt.Errorf("fetch: %w", err),
			q.Source,
			q.Target,
		)
		return nil, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}

	if res.StatusCode() == http.StatusUnauthorized {
		c.tel.ReportBroken(
			report_api_client_auth,
			fmt.Errorf("rate api returned 401, check the configured client id/secret"),
		)
		return nil, ErrAuthentication
	}
	if res.IsError() {
		err := fmt.Errorf("%w: status %s", ErrUpstreamUnavailable, res.Status())
		c.tel.ReportBroken(report_api_client_fetch, err, q.Source, q.Target)
		return nil, err
	}

	return json.RawMessage(res.Body()), nil
}

// decodeRateArray validates that a rate api body is a non-empty json array.
func decodeRateArray(body json.RawMessage) ([]json.RawMessage, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrUpstreamData)
	}
	var elements []json.RawMessage
	err := json.Unmarshal(body, &elements)
	if err != nil {
		return nil, fmt.Errorf("%w: expected an array: %w", ErrUpstreamData, err)
	}
	if len(elements) == 0 {
		return nil, fmt.Errorf("%w: empty array", ErrUpstreamData)
	}
	return elements, nil
}
