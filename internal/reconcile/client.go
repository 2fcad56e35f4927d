package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Searcher returns authority candidates for a name.
type Searcher interface {
	Search(ctx context.Context, name string) ([]Candidate, error)
}

// Client queries the LC name authority file through its suggest service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
}

var _ Searcher = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = strings.TrimSpace(ua)
	}
}

// New creates a client for the authority service at baseURL.
func New(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("reconcile base url required")
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

type suggestResponse struct {
	Hits []struct {
		SuggestLabel string `json:"suggestLabel"`
		ALabel       string `json:"aLabel"`
		URI          string `json:"uri"`
	} `json:"hits"`
}

// Search returns the authorized headings suggested for name.
func (c *Client) Search(ctx context.Context, name string) ([]Candidate, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("name must not be empty")
	}
	endpoint, err := url.Parse(c.baseURL + "/authorities/names/suggest2")
	if err != nil {
		return nil, fmt.Errorf("parse authority url: %w", err)
	}
	params := url.Values{}
	params.Set("q", name)
	params.Set("searchtype", "keyword")
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return nil, fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("authority search returned %d (latency=%v)", resp.StatusCode, latency)
	}

	var payload suggestResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode authority response: %w", err)
	}
	out := make([]Candidate, 0, len(payload.Hits))
	for _, hit := range payload.Hits {
		label := strings.TrimSpace(hit.ALabel)
		if label == "" {
			label = strings.TrimSpace(hit.SuggestLabel)
		}
		if label == "" {
			continue
		}
		out = append(out, Candidate{Label: label, URI: hit.URI})
	}
	return out, nil
}
