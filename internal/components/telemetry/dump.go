package telemetry

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

func formatHeaders(headers http.Header) string {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	lines := []string{}
	for _, k := range keys {
		for _, v := range headers[k] {
			lines = append(lines, fmt.Sprintf("%s: %s", k, v))
		}
	}
	return strings.Join(lines, "\n")
}

// 1: request method
// 2: request url
// 3: request headers in ("Key: Value" format)
// 4: response status
// 5: response headers in ("Key: Value" format)
// 6: response body
const dumpTemplate = `---- REQUEST ----

%s %s

%s

---- RESPONSE ----

%s

%s

%s`

func formatExchange(res *resty.Response) string {
	var requestHeaders http.Header
	if res.Request.RawRequest != nil {
		requestHeaders = res.Request.RawRequest.Header
	}
	return fmt.Sprintf(
		dumpTemplate,
		res.Request.Method, res.Request.URL,
		formatHeaders(requestHeaders),
		res.Status(),
		formatHeaders(res.Header()),
		res.String(),
	)
}

func dumpName(id uint64, rawURL string) string {
	host := "request"
	parsed, err := url.Parse(rawURL)
	if err == nil && parsed.Hostname() != "" {
		host = parsed.Hostname()
	}
	return fmt.Sprintf("%04d-%s.txt", id, host)
}

// DumpResty writes every request/response exchange of the client into its own file under dir.
// The directory is emptied first so a dump only ever holds one process' traffic.
func DumpResty(client *resty.Client, dir string) error {
	err := os.RemoveAll(dir)
	if err != nil {
		return fmt.Errorf("clear dump dir: %w", err)
	}
	err = os.MkdirAll(dir, 0777)
	if err != nil {
		return fmt.Errorf("create dump dir: %w", err)
	}

	var idcounter uint64
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		id := atomic.AddUint64(&idcounter, 1)
		name := dumpName(id, res.Request.URL)
		err := os.WriteFile(filepath.Join(dir, name), []byte(formatExchange(res)), 0600)
		if err != nil {
			slog.Warn("failed to write http dump", "file", name, "err", err)
		}
		return nil
	})
	return nil
}
