package ezid

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"arkimedes/internal/logging"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultPollAttempts = 60
)

// DownloadOptions selects the format of a batch download.
type DownloadOptions struct {
	// Format is anvl, csv or xml.
	Format string
	// Compression is gzip or zip.
	Compression string
	// Columns lists the fields a csv download returns, in order.
	Columns []string
	// Params carries any further registry download parameters.
	Params url.Values
}

// PollPolicy controls how long FetchDownload waits for the archive.
type PollPolicy struct {
	Interval time.Duration
	Attempts int
}

// DefaultPollPolicy checks every five seconds for five minutes.
func DefaultPollPolicy() PollPolicy {
	return PollPolicy{Interval: defaultPollInterval, Attempts: defaultPollAttempts}
}

// ErrDownloadNotReady is returned when the archive did not appear in time.
var ErrDownloadNotReady = errors.New("ezid: download not ready")

func (o DownloadOptions) values() (url.Values, error) {
	format := strings.ToLower(strings.TrimSpace(o.Format))
	if format == "" {
		format = "anvl"
	}
	switch format {
	case "anvl", "csv", "xml":
	default:
		return nil, &ValidationError{Field: "format", Reason: fmt.Sprintf("unsupported download format %q", o.Format)}
	}
	compression := strings.ToLower(strings.TrimSpace(o.Compression))
	if compression == "" {
		compression = "zip"
	}
	switch compression {
	case "gzip", "zip":
	default:
		return nil, &ValidationError{Field: "compression", Reason: fmt.Sprintf("unsupported compression %q", o.Compression)}
	}
	if format == "csv" && len(o.Columns) == 0 {
		return nil, &ValidationError{Field: "columns", Reason: "csv downloads require at least one column"}
	}

	values := url.Values{}
	for key, vals := range o.Params {
		for _, v := range vals {
			values.Add(key, v)
		}
	}
	values.Set("format", format)
	values.Set("compression", compression)
	for _, column := range o.Columns {
		if column = strings.TrimSpace(column); column != "" {
			values.Add("column", column)
		}
	}
	return values, nil
}

// RequestDownload asks the registry to prepare a batch download and returns
// the URL the archive will appear at.
func (c *Client) RequestDownload(ctx context.Context, opts DownloadOptions) (string, error) {
	values, err := opts.values()
	if err != nil {
		return "", err
	}
	ctx, span := c.tracer.Start(ctx, "ezid.download_request")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("download_request"), strings.NewReader(values.Encode()))
	if err != nil {
		return "", fmt.Errorf("ezid: build download request: %w", err)
	}
	c.decorate(req)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		if ctx.Err() != nil {
			return "", fmt.Errorf("ezid: download request: %w", ctx.Err())
		}
		return "", &TransientError{Message: "download request", Err: err}
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", &TransientError{Status: resp.StatusCode, Message: "read download response", Err: err}
	}
	parsed, err := parseResponse(resp.StatusCode, resp.Header.Get("Retry-After"), payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, Classify(err))
		return "", err
	}
	if parsed.identifier == "" {
		return "", &RegistryError{Status: resp.StatusCode, Message: "download request returned no url"}
	}
	span.SetAttributes(attribute.String("ezid.download_url", parsed.identifier))
	return parsed.identifier, nil
}

// FetchDownload polls downloadURL until the archive is ready and copies it to
// w. It returns ErrDownloadNotReady when every poll came back empty.
func (c *Client) FetchDownload(ctx context.Context, downloadURL string, w io.Writer, policy PollPolicy) (int64, error) {
	if strings.TrimSpace(downloadURL) == "" {
		return 0, &ValidationError{Field: "url", Reason: "download url required"}
	}
	if policy.Attempts <= 0 {
		policy.Attempts = defaultPollAttempts
	}
	if policy.Interval < 0 {
		policy.Interval = 0
	}
	logger := logging.WithContext(ctx, c.logger)

	for attempt := 1; attempt <= policy.Attempts; attempt++ {
		n, ready, err := c.fetchOnce(ctx, downloadURL, w)
		if err != nil {
			return n, err
		}
		if ready {
			logger.Info("download retrieved",
				logging.String("url", downloadURL),
				logging.Int64("bytes", n),
				logging.Int("polls", attempt),
			)
			return n, nil
		}
		logger.Debug("download not ready", logging.Int("attempt", attempt))
		if attempt < policy.Attempts {
			if err := c.sleeper(ctx, policy.Interval); err != nil {
				return 0, err
			}
		}
	}
	return 0, fmt.Errorf("%w after %d polls: %s", ErrDownloadNotReady, policy.Attempts, downloadURL)
}

func (c *Client) fetchOnce(ctx context.Context, downloadURL string, w io.Writer) (int64, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return 0, false, fmt.Errorf("ezid: build download fetch: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, false, ctx.Err()
		}
		// The archive host drops connections while preparing; keep polling.
		return 0, false, nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return 0, false, nil
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, false, fmt.Errorf("ezid: write download: %w", err)
	}
	return n, true, nil
}

// DownloadFileName returns the archive name embedded in a download URL.
func DownloadFileName(downloadURL string) string {
	parsed, err := url.Parse(downloadURL)
	if err != nil || parsed.Path == "" {
		return path.Base(downloadURL)
	}
	return path.Base(parsed.Path)
}
