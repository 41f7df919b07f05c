package rates

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"remitscout-backend/internal/components/telemetry"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func rateAPI(t *testing.T, expectAuth string, status int, body string) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/rates" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Header.Get("Authorization") != expectAuth {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestAPIClientStaticBearer(t *testing.T) {
	expectAuth := "Bearer " + base64.StdEncoding.EncodeToString([]byte("id:secret"))

	var seen map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, expectAuth, r.Header.Get("Authorization"))
		seen = map[string]string{}
		for k := range r.URL.Query() {
			seen[k] = r.URL.Query().Get(k)
		}
		fmt.Fprint(w, `[{"rate":1.25,"source":"GBP","target":"USD","time":"2024-01-01T00:00:00Z"}]`)
	}))
	defer server.Close()

	client := NewAPIClient(APIClientOptions{
		BaseURL:      server.URL,
		ClientID:     "id",
		ClientSecret: "secret",
	}, telemetry.NewRecorderAPI(nil))

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	body, err := client.Fetch(context.Background(), Query{Source: "GBP", Target: "USD", Time: &at})
	require.NoError(t, err)
	require.JSONEq(t, `[{"rate":1.25,"source":"GBP","target":"USD","time":"2024-01-01T00:00:00Z"}]`, string(body))
	require.Equal(t, map[string]string{
		"source": "GBP",
		"target": "USD",
		"time":   "2024-01-01T00:00:00Z",
	}, seen)
}

func TestAPIClientStatusMapping(t *testing.T) {
	goodAuth := "Bearer " + base64.StdEncoding.EncodeToString([]byte("id:secret"))

	testCases := []struct {
		name   string
		secret string
		status int
		expect error
	}{
		{name: "bad credentials", secret: "wrong", status: http.StatusOK, expect: ErrAuthentication},
		{name: "server error", secret: "secret", status: http.StatusInternalServerError, expect: ErrUpstreamUnavailable},
		{name: "throttled", secret: "secret", status: http.StatusTooManyRequests, expect: ErrUpstreamUnavailable},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			server := rateAPI(t, goodAuth, test.status, "[]")
			tel := telemetry.NewRecorderAPI(nil)
			client := NewAPIClient(APIClientOptions{
				BaseURL:      server.URL,
				ClientID:     "id",
				ClientSecret: test.secret,
			}, tel)

			_, err := client.Fetch(context.Background(), Query{Source: "GBP", Target: "EUR"})
			require.ErrorIs(t, err, test.expect)
			require.NotEmpty(t, tel.Reports(telemetry.REPORT_BROKEN, "api-client"))
		})
	}
}

func TestAPIClientTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := NewAPIClient(APIClientOptions{
		BaseURL: url,
		Timeout: time.Second,
	}, telemetry.NewRecorderAPI(nil))

	_, err := client.Fetch(context.Background(), Query{Source: "GBP", Target: "EUR"})
	require.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestAPIClientClientCredentials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		id, secret, ok := r.BasicAuth()
		if !ok {
			require.NoError(t, r.ParseForm())
			id = r.PostForm.Get("client_id")
			secret = r.PostForm.Get("client_secret")
		}
		if id != "id" || secret != "secret" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":"invalid_client"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"issued-token","token_type":"bearer","expires_in":3600}`)
	})
	mux.HandleFunc("/v1/rates", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer issued-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `[{"rate":104.2,"source":"GBP","target":"INR","time":"2024-01-01T00:00:00Z"}]`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewAPIClient(APIClientOptions{
		BaseURL:      server.URL,
		TokenURL:     server.URL + "/oauth/token",
		ClientID:     "id",
		ClientSecret: "secret",
	}, telemetry.NewRecorderAPI(nil))
	body, err := client.Fetch(context.Background(), Query{Source: "GBP", Target: "INR"})
	require.NoError(t, err)
	require.Contains(t, string(body), "104.2")

	rejected := NewAPIClient(APIClientOptions{
		BaseURL:      server.URL,
		TokenURL:     server.URL + "/oauth/token",
		ClientID:     "id",
		ClientSecret: "nope",
	}, telemetry.NewRecorderAPI(nil))
	_, err = rejected.Fetch(context.Background(), Query{Source: "GBP", Target: "INR"})
	require.ErrorIs(t, err, ErrAuthentication)
}
