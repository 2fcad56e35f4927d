package ezid

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"arkimedes/internal/anvl"
	"arkimedes/internal/logging"
	"arkimedes/internal/services"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	defaultUserAgent   = "arkimedes"
	maxResponseBytes   = 16 << 20
	tracerName         = "arkimedes/internal/ezid"

	statusSuccess = "success"
	statusError   = "error"
)

// Config captures the registry endpoint and credentials. The client treats
// credentials as opaque and passes them through as HTTP basic auth.
type Config struct {
	BaseURL        string
	Username       string
	Password       string
	Shoulder       string
	UserAgent      string
	TimeoutSeconds int
}

// Executor runs one request. *Client implements it; decorators such as the
// mirror tracker wrap it.
type Executor interface {
	Execute(ctx context.Context, req Request) (Result, error)
}

// Client performs registry operations. It holds only read-only configuration
// and is safe for concurrent use.
type Client struct {
	cfg        Config
	baseURL    *url.URL
	httpClient *http.Client
	tracer     trace.Tracer
	logger     *slog.Logger
	sleeper    func(context.Context, time.Duration) error
}

var _ Executor = (*Client)(nil)

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTracer overrides the tracer used for request spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Client) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

// WithLogger attaches a logger for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSleeper overrides how download polling waits (useful for tests).
func WithSleeper(sleeper func(context.Context, time.Duration) error) Option {
	return func(c *Client) {
		if sleeper != nil {
			c.sleeper = sleeper
		}
	}
}

// New constructs a client. It validates the configuration but performs no
// network I/O.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	if cfg.BaseURL == "" {
		return nil, errors.New("ezid: base url required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("ezid: parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("ezid: base url %q must use http or https", cfg.BaseURL)
	}
	cfg.Username = strings.TrimSpace(cfg.Username)
	cfg.Shoulder = strings.TrimSpace(cfg.Shoulder)
	cfg.UserAgent = strings.TrimSpace(cfg.UserAgent)
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg:        cfg,
		baseURL:    base,
		httpClient: &http.Client{Timeout: timeout},
		tracer:     otel.Tracer(tracerName),
		logger:     logging.NewNop(),
		sleeper:    sleepContext,
	}
	for _, opt := range opts {
		opt(client)
	}
	client.logger = logging.NewComponentLogger(client.logger, "ezid")
	return client, nil
}

// Shoulder returns the configured default shoulder.
func (c *Client) Shoulder() string { return c.cfg.Shoulder }

// Execute dispatches req to the matching operation.
func (c *Client) Execute(ctx context.Context, req Request) (Result, error) {
	switch r := req.(type) {
	case MintRequest:
		return c.Mint(ctx, r.Shoulder, r.Record)
	case UpdateRequest:
		return c.Update(ctx, r.Identifier, r.Record)
	case QueryRequest:
		return c.Query(ctx, r.Identifier)
	case nil:
		return Result{}, &ValidationError{Reason: "nil request"}
	default:
		return Result{}, &InvalidActionError{Value: fmt.Sprintf("%T", req)}
	}
}

// Mint creates a new identifier under shoulder (or the configured default).
// Mint is not idempotent: every call creates a distinct identifier.
func (c *Client) Mint(ctx context.Context, shoulder string, rec anvl.Record) (Result, error) {
	shoulder = strings.TrimSpace(shoulder)
	if shoulder == "" {
		shoulder = c.cfg.Shoulder
	}
	if shoulder == "" {
		return Result{}, &ValidationError{Field: "shoulder", Reason: "mint requires a shoulder"}
	}
	if id := strings.TrimSpace(rec.Identifier()); id != "" {
		return Result{}, &ValidationError{Field: anvl.KeyIdentifier, Reason: "mint assigns the identifier; remove " + id}
	}
	body := rec.Without(anvl.KeyIdentifier)

	resp, err := c.roundTrip(ctx, ActionMint, http.MethodPost, "shoulder/"+shoulder, &body)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Identifier: resp.identifier,
		Shadow:     resp.shadow,
		Record:     body.WithFirst(anvl.KeyIdentifier, resp.identifier).Merge(resp.extra),
	}, nil
}

// Update replaces metadata of an existing identifier.
func (c *Client) Update(ctx context.Context, identifier string, rec anvl.Record) (Result, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return Result{}, &ValidationError{Field: anvl.KeyIdentifier, Reason: "update requires an identifier"}
	}
	body := rec.Without(anvl.KeyIdentifier)

	resp, err := c.roundTrip(ctx, ActionUpdate, http.MethodPost, "id/"+identifier, &body)
	if err != nil {
		return Result{}, annotateNotFound(err, identifier)
	}
	id := firstNonEmpty(resp.identifier, identifier)
	return Result{
		Identifier: id,
		Shadow:     resp.shadow,
		Record:     body.WithFirst(anvl.KeyIdentifier, id).Merge(resp.extra),
	}, nil
}

// Query reads the current metadata of an identifier without changing it.
func (c *Client) Query(ctx context.Context, identifier string) (Result, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return Result{}, &ValidationError{Field: anvl.KeyIdentifier, Reason: "query requires an identifier"}
	}
	resp, err := c.roundTrip(ctx, ActionQuery, http.MethodGet, "id/"+identifier, nil)
	if err != nil {
		return Result{}, annotateNotFound(err, identifier)
	}
	id := firstNonEmpty(resp.identifier, identifier)
	return Result{
		Identifier: id,
		Shadow:     resp.shadow,
		Record:     resp.extra.WithFirst(anvl.KeyIdentifier, id),
	}, nil
}

// Ping verifies the endpoint is reachable and the credentials are accepted.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.roundTrip(ctx, 0, http.MethodGet, "login", nil)
	return err
}

type response struct {
	identifier string
	shadow     string
	extra      anvl.Record
}

func (c *Client) roundTrip(ctx context.Context, action Action, method, path string, body *anvl.Record) (response, error) {
	op := "login"
	if action.Valid() {
		op = action.String()
	}
	ctx, span := c.tracer.Start(ctx, "ezid."+op, trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("ezid.action", op),
			attribute.String("ezid.path", path),
			attribute.String("http.request.method", method),
		))
	defer span.End()
	if sc := span.SpanContext(); sc.HasTraceID() {
		ctx = services.WithTraceID(ctx, sc.TraceID().String())
	}

	resp, status, err := c.send(ctx, method, path, body)
	span.SetAttributes(attribute.Int("http.response.status_code", status))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, Classify(err))
		return response{}, err
	}
	span.SetAttributes(attribute.String("ezid.identifier", resp.identifier))
	span.SetStatus(codes.Ok, "")
	return resp, nil
}

func (c *Client) send(ctx context.Context, method, path string, body *anvl.Record) (response, int, error) {
	endpoint := c.endpoint(path)
	var reader io.Reader
	if body != nil {
		reader = strings.NewReader(anvl.Encode(*body))
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return response{}, 0, fmt.Errorf("ezid: build request: %w", err)
	}
	c.decorate(req)
	if body != nil {
		req.Header.Set("Content-Type", "text/plain; charset=UTF-8")
	}

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(ctxErr, context.Canceled) {
			return response{}, 0, fmt.Errorf("ezid: %s %s canceled: %w", method, path, ctxErr)
		}
		return response{}, 0, &TransientError{
			Message: fmt.Sprintf("%s %s (latency=%v)", method, path, latency.Round(time.Millisecond)),
			Err:     err,
		}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return response{}, resp.StatusCode, &TransientError{Status: resp.StatusCode, Message: "read response body", Err: err}
	}
	logging.WithContext(ctx, c.logger).Debug("registry request",
		logging.String("method", method),
		logging.String("path", path),
		logging.Int("status", resp.StatusCode),
		logging.Duration("latency", latency),
	)
	parsed, err := parseResponse(resp.StatusCode, resp.Header.Get("Retry-After"), payload)
	return parsed, resp.StatusCode, err
}

func (c *Client) decorate(req *http.Request) {
	if c.cfg.Username != "" || c.cfg.Password != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}
	req.Header.Set("Accept", "text/plain")
	req.Header.Set("User-Agent", c.cfg.UserAgent)
}

// endpoint joins path onto the base URL. Identifiers keep their slashes and
// colons; every other reserved byte is escaped segment by segment.
func (c *Client) endpoint(path string) string {
	segments := strings.Split(path, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return c.baseURL.String() + "/" + strings.Join(segments, "/")
}

// parseResponse classifies a registry reply. The body is ANVL whose first
// pair is either "success: <id>[ | <shadow>]" or "error: <message>".
func parseResponse(status int, retryAfter string, payload []byte) (response, error) {
	text := string(payload)
	if isTransientStatus(status) {
		delay, _ := parseRetryAfter(retryAfter)
		return response{}, &TransientError{Status: status, Message: statusMessage(text, status), RetryAfter: delay}
	}

	rec, decodeErr := anvl.Decode(text)
	if decodeErr != nil {
		if status == http.StatusNotFound {
			return response{}, &NotFoundError{Message: statusMessage(text, status)}
		}
		if status >= http.StatusMultipleChoices {
			return response{}, &RegistryError{Status: status, Message: statusMessage(text, status)}
		}
		return response{}, fmt.Errorf("ezid: decode response: %w", decodeErr)
	}

	pairs := rec.Pairs()
	if len(pairs) == 0 || (pairs[0].Key != statusSuccess && pairs[0].Key != statusError) {
		switch {
		case status == http.StatusNotFound:
			return response{}, &NotFoundError{Message: http.StatusText(status)}
		case status >= http.StatusMultipleChoices:
			return response{}, &RegistryError{Status: status, Message: statusMessage(text, status)}
		default:
			return response{}, fmt.Errorf("ezid: decode response: %w", &anvl.FormatError{
				Line:    1,
				Content: firstLine(text),
				Reason:  "missing success or error status line",
			})
		}
	}

	head := pairs[0]
	extra := rec.Without(head.Key)
	if head.Key == statusError || status >= http.StatusMultipleChoices {
		message := strings.TrimSpace(head.Value)
		if status == http.StatusNotFound || strings.Contains(strings.ToLower(message), "no such identifier") {
			return response{}, &NotFoundError{Message: message}
		}
		if status < http.StatusMultipleChoices {
			status = http.StatusBadRequest
		}
		return response{}, &RegistryError{Status: status, Message: message}
	}

	identifier, shadow, _ := strings.Cut(head.Value, " | ")
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return response{}, fmt.Errorf("ezid: decode response: %w", &anvl.FormatError{
			Line:    1,
			Content: firstLine(text),
			Reason:  "success status without identifier",
		})
	}
	return response{
		identifier: identifier,
		shadow:     strings.TrimSpace(shadow),
		extra:      extra,
	}, nil
}

func isTransientStatus(status int) bool {
	return status == http.StatusRequestTimeout ||
		status == http.StatusTooManyRequests ||
		status >= http.StatusInternalServerError
}

func statusMessage(body string, status int) string {
	line := firstLine(body)
	if _, msg, ok := strings.Cut(line, ":"); ok && strings.HasPrefix(line, statusError) {
		line = strings.TrimSpace(msg)
	}
	if line == "" {
		return http.StatusText(status)
	}
	return line
}

func firstLine(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

func annotateNotFound(err error, identifier string) error {
	var notFound *NotFoundError
	if errors.As(err, &notFound) && notFound.Identifier == "" {
		notFound.Identifier = identifier
	}
	return err
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
