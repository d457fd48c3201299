package importer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	appLog "icsimport/internal/log"
)

// FetchError marks a transport failure or non-2xx response while
// retrieving the .ics resource.
type FetchError struct {
	URL    string
	Status int // 0 on transport errors
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d", redactURL(e.URL), e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", redactURL(e.URL), e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

const defaultFetchTimeout = 15 * time.Second

// HTTPFetcher retrieves .ics documents. The document is transient: it
// lives only within one import flow, so nothing is cached.
type HTTPFetcher struct {
	client *http.Client
}

func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &HTTPFetcher{client: &http.Client{Timeout: timeout}}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: url, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	appLog.Info("ics fetched", "url", redactURL(url), "bytes", len(body))
	return body, nil
}

// redactURL trims an ICS URL down to its host for logging; paths and
// query strings of calendar feeds routinely embed access tokens.
func redactURL(u string) string {
	const suffix = "/...(redacted)"
	i := strings.Index(u, "://")
	if i < 0 {
		return "ics://...(redacted)"
	}
	rest := u[i+3:]
	if j := strings.IndexByte(rest, '/'); j >= 0 {
		return u[:i+3+j] + suffix
	}
	return u + suffix
}
