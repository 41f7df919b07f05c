package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"remitscout-backend/internal/components/telemetry"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCandidatesOrder(t *testing.T) {
	tables, err := DefaultTables()
	require.NoError(t, err)

	require.Equal(t, []string{
		"https://acme.com",
		"https://www.acme.com",
		"https://acme.co.uk",
		"https://www.acme.co.uk",
		"https://acme.io",
		"https://acme.org",
	}, tables.candidates("acme"))

	wise := tables.candidates("wise")
	require.Equal(t, "https://wise.com", wise[0])
	require.Len(t, wise, 6, "the override duplicates the first template")
}

type probeLog struct {
	mutex sync.Mutex
	paths []string
}

func (l *probeLog) add(path string) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.paths = append(l.paths, path)
}

func TestDiscoverFirstOKWins(t *testing.T) {
	log := &probeLog{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.add(r.URL.Path)
		switch r.URL.Path {
		case "/slow/acme":
			time.Sleep(300 * time.Millisecond)
			fmt.Fprint(w, "too late")
		case "/ok/acme/", "/also-ok/acme":
			fmt.Fprintf(w, "<html><title>%s</title></html>", r.URL.Path)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	tables := Tables{
		DomainOverrides: map[string][]string{
			"acme": {server.URL + "/slow/acme"},
		},
		DomainTemplates: []string{
			server.URL + "/missing/{code}",
			server.URL + "/ok/{code}/",
			server.URL + "/also-ok/{code}",
		},
	}

	discoverer := NewDiscoverer(tables, DiscovererOptions{
		ProbeTimeout:      100 * time.Millisecond,
		RequestsPerSecond: 100,
		Burst:             10,
	}, telemetry.NewRecorderAPI(nil))

	site, found := discoverer.Discover(context.Background(), "acme")
	require.True(t, found)
	require.Equal(t, server.URL+"/ok/acme", site.URL)
	require.Contains(t, string(site.Body), "/ok/acme")
	require.False(t, site.Override)
	require.Equal(t, []string{"/slow/acme", "/missing/acme", "/ok/acme/"}, log.paths)
}

func TestDiscoverNothing(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	tel := telemetry.NewRecorderAPI(nil)
	discoverer := NewDiscoverer(Tables{
		DomainTemplates: []string{server.URL + "/{code}", server.URL + "/www/{code}"},
	}, DiscovererOptions{RequestsPerSecond: 100, Burst: 10}, tel)

	_, found := discoverer.Discover(context.Background(), "nobody")
	require.False(t, found)
	require.Len(t, tel.Reports(telemetry.REPORT_WARNING, report_discoverer_discover), 1)
}

func TestDiscoverMarksOverrideSites(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><title>Acme</title></html>")
	}))
	defer server.Close()

	discoverer := NewDiscoverer(Tables{
		DomainOverrides: map[string][]string{"acme": {server.URL + "/official"}},
		DomainTemplates: []string{server.URL + "/{code}"},
	}, DiscovererOptions{RequestsPerSecond: 100, Burst: 10}, telemetry.NewRecorderAPI(nil))

	site, found := discoverer.Discover(context.Background(), "acme")
	require.True(t, found)
	require.True(t, site.Override)
	require.Equal(t, server.URL+"/official", site.URL)
}
