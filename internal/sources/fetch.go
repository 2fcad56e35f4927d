package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"arkimedes/internal/services"
)

// Document is raw source content with the location it came from.
type Document struct {
	Location string
	Data     []byte
}

// Fetcher reads sources from disk or over HTTP.
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
}

// FetchOption configures a Fetcher.
type FetchOption func(*Fetcher)

// WithFetchClient overrides the default HTTP client.
func WithFetchClient(client *http.Client) FetchOption {
	return func(f *Fetcher) {
		if client != nil {
			f.httpClient = client
		}
	}
}

// WithFetchUserAgent sets the User-Agent header on HTTP fetches.
func WithFetchUserAgent(ua string) FetchOption {
	return func(f *Fetcher) { f.userAgent = strings.TrimSpace(ua) }
}

// NewFetcher builds a Fetcher whose HTTP requests time out after timeout.
func NewFetcher(timeout time.Duration, opts ...FetchOption) *Fetcher {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	f := &Fetcher{httpClient: &http.Client{Timeout: timeout}}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// IsURL reports whether location names a remote source.
func IsURL(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// Fetch returns the content at location, a URL or a file path.
func (f *Fetcher) Fetch(ctx context.Context, location string) (Document, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return Document{}, errors.New("source location must not be empty")
	}
	if !IsURL(location) {
		data, err := os.ReadFile(location)
		if err != nil {
			return Document{}, fmt.Errorf("read source: %w", err)
		}
		return Document{Location: location, Data: data}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return Document{}, fmt.Errorf("build request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	start := time.Now()
	resp, err := f.httpClient.Do(req)
	latency := time.Since(start)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Document{}, services.Wrap(services.ErrTimeout, "sources", "fetch", fmt.Sprintf("%s (latency=%v)", location, latency), err)
		}
		return Document{}, fmt.Errorf("fetch %s (latency=%v): %w", location, latency, err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return Document{}, services.Wrap(services.ErrNotFound, "sources", "fetch", fmt.Sprintf("%s returned 404", location), nil)
	case resp.StatusCode != http.StatusOK:
		_, _ = io.Copy(io.Discard, resp.Body)
		return Document{}, fmt.Errorf("fetch %s returned %d (latency=%v)", location, resp.StatusCode, latency)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Document{}, fmt.Errorf("read %s: %w", location, err)
	}
	return Document{Location: location, Data: data}, nil
}

// FetchAll fetches every location in order, stopping at the first failure.
func (f *Fetcher) FetchAll(ctx context.Context, locations []string) ([]Document, error) {
	docs := make([]Document, 0, len(locations))
	for _, loc := range locations {
		doc, err := f.Fetch(ctx, loc)
		if err != nil {
			return docs, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
