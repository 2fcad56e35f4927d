package ezid_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"arkimedes/internal/anvl"
	"arkimedes/internal/ezid"
	"arkimedes/internal/testsupport"
)

const shoulder = "ark:/99999/fk4"

func newClient(t *testing.T, baseURL string, opts ...ezid.Option) *ezid.Client {
	t.Helper()
	client, err := ezid.New(ezid.Config{
		BaseURL:  baseURL,
		Username: "apitest",
		Password: "secret",
		Shoulder: shoulder,
	}, opts...)
	if err != nil {
		t.Fatalf("ezid.New: %v", err)
	}
	return client
}

type countingTransport struct {
	calls atomic.Int32
}

func (c *countingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	c.calls.Add(1)
	return nil, errors.New("dial refused")
}

func TestNewRequiresBaseURL(t *testing.T) {
	if _, err := ezid.New(ezid.Config{}); err == nil {
		t.Fatal("expected error when base url missing")
	}
	if _, err := ezid.New(ezid.Config{BaseURL: "ftp://example.org"}); err == nil {
		t.Fatal("expected error for non-http base url")
	}
}

func TestInvalidActionFailsWithoutNetwork(t *testing.T) {
	transport := &countingTransport{}
	client := newClient(t, "http://127.0.0.1:1", ezid.WithHTTPClient(&http.Client{Transport: transport}))

	rec := anvl.MustNew(anvl.Pair{Key: "_id", Value: "ark:/99999/fk41"})
	req, err := ezid.ParseRequest("delete", rec, "")
	var invalid *ezid.InvalidActionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidActionError, got %v", err)
	}
	if req != nil {
		t.Fatalf("expected no request, got %#v", req)
	}
	if !strings.Contains(err.Error(), "delete") {
		t.Fatalf("error should name the action: %v", err)
	}
	if _, err := client.Execute(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil request")
	}
	if n := transport.calls.Load(); n != 0 {
		t.Fatalf("expected no connection attempts, got %d", n)
	}
}

func TestMintTwiceYieldsDistinctIdentifiers(t *testing.T) {
	reg := testsupport.NewRegistry(t)
	client := newClient(t, reg.URL)
	rec := anvl.MustNew(
		anvl.Pair{Key: "dc.title", Value: "Conservation report"},
		anvl.Pair{Key: "_target", Value: "http://example.org/a"},
	)

	first, err := client.Mint(context.Background(), "", rec)
	if err != nil {
		t.Fatalf("first mint: %v", err)
	}
	second, err := client.Mint(context.Background(), "", rec)
	if err != nil {
		t.Fatalf("second mint: %v", err)
	}
	if first.Identifier == second.Identifier {
		t.Fatalf("expected distinct identifiers, both were %q", first.Identifier)
	}
	if !strings.HasPrefix(first.Identifier, shoulder) {
		t.Fatalf("identifier %q not under shoulder", first.Identifier)
	}
	if keys := first.Record.Keys(); keys[0] != "_id" {
		t.Fatalf("expected _id first, got %v", keys)
	}
	if first.Record.Value("dc.title") != "Conservation report" {
		t.Fatalf("unexpected result record %s", first.Record)
	}
	stored, ok := reg.Record(first.Identifier)
	if !ok || stored.Value("_target") != "http://example.org/a" {
		t.Fatalf("registry did not store the submitted record: %v", stored)
	}
}

func TestQueryTwiceReturnsEqualRecords(t *testing.T) {
	reg := testsupport.NewRegistry(t)
	reg.Put("ark:/99999/fk47", anvl.MustNew(
		anvl.Pair{Key: "_profile", Value: "dc"},
		anvl.Pair{Key: "dc.title", Value: "Line one\nline two"},
	))
	client := newClient(t, reg.URL)

	first, err := client.Query(context.Background(), "ark:/99999/fk47")
	if err != nil {
		t.Fatalf("first query: %v", err)
	}
	second, err := client.Query(context.Background(), "ark:/99999/fk47")
	if err != nil {
		t.Fatalf("second query: %v", err)
	}
	if !first.Record.Equal(second.Record) {
		t.Fatalf("query results differ:\n%s\n---\n%s", first.Record, second.Record)
	}
	if first.Record.Value("dc.title") != "Line one\nline two" {
		t.Fatalf("escaped value not restored: %q", first.Record.Value("dc.title"))
	}
	if first.Record.Identifier() != "ark:/99999/fk47" {
		t.Fatalf("unexpected identifier %q", first.Record.Identifier())
	}
}

func TestUpdateMissingIdentifierIsNotFound(t *testing.T) {
	reg := testsupport.NewRegistry(t)
	client := newClient(t, reg.URL)

	_, err := client.Update(context.Background(), "ark:/99999/fk4missing", anvl.MustNew(anvl.Pair{Key: "dc.title", Value: "x"}))
	var notFound *ezid.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if notFound.Identifier != "ark:/99999/fk4missing" {
		t.Fatalf("expected identifier on error, got %q", notFound.Identifier)
	}
}

func TestUpdateMergesResponse(t *testing.T) {
	reg := testsupport.NewRegistry(t)
	reg.Put("ark:/99999/fk42", anvl.MustNew(anvl.Pair{Key: "dc.title", Value: "Old"}))
	client := newClient(t, reg.URL)

	res, err := client.Update(context.Background(), "ark:/99999/fk42", anvl.MustNew(anvl.Pair{Key: "dc.title", Value: "New"}))
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if res.Identifier != "ark:/99999/fk42" || res.Record.Value("dc.title") != "New" {
		t.Fatalf("unexpected result %+v", res)
	}
	stored, _ := reg.Record("ark:/99999/fk42")
	if stored.Value("dc.title") != "New" {
		t.Fatalf("registry not updated: %s", stored)
	}
}

func TestServerErrorIsTransient(t *testing.T) {
	reg := testsupport.NewRegistry(t)
	reg.Script("POST /shoulder/"+shoulder, testsupport.Reply{Status: http.StatusServiceUnavailable, Body: "error: server busy", RetryAfter: "3"})
	client := newClient(t, reg.URL)

	_, err := client.Mint(context.Background(), "", anvl.MustNew(anvl.Pair{Key: "dc.title", Value: "x"}))
	var transient *ezid.TransientError
	if !errors.As(err, &transient) {
		t.Fatalf("expected TransientError, got %v", err)
	}
	if transient.Status != http.StatusServiceUnavailable || transient.RetryAfter != 3*time.Second {
		t.Fatalf("unexpected transient error %+v", transient)
	}
	if !strings.Contains(transient.Message, "server busy") {
		t.Fatalf("expected registry message, got %q", transient.Message)
	}
}

func TestTooManyRequestsIsTransient(t *testing.T) {
	reg := testsupport.NewRegistry(t)
	reg.Script("GET /id/ark:/99999/fk41", testsupport.Reply{Status: http.StatusTooManyRequests})
	client := newClient(t, reg.URL)
	if _, err := client.Query(context.Background(), "ark:/99999/fk41"); !ezid.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestRejectionIsRegistryError(t *testing.T) {
	reg := testsupport.NewRegistry(t)
	reg.Script("POST /shoulder/"+shoulder, testsupport.Reply{Status: http.StatusBadRequest, Body: "error: bad request - element 'dc.type' has invalid value"})
	client := newClient(t, reg.URL)

	_, err := client.Mint(context.Background(), "", anvl.MustNew(anvl.Pair{Key: "dc.type", Value: "bogus"}))
	var registryErr *ezid.RegistryError
	if !errors.As(err, &registryErr) {
		t.Fatalf("expected RegistryError, got %v", err)
	}
	if registryErr.Status != http.StatusBadRequest || !strings.Contains(registryErr.Message, "dc.type") {
		t.Fatalf("unexpected registry error %+v", registryErr)
	}
}

func TestUnauthorizedIsRegistryError(t *testing.T) {
	reg := testsupport.NewRegistry(t)
	reg.Username = "someone-else"
	reg.Password = "pw"
	client := newClient(t, reg.URL)
	err := client.Ping(context.Background())
	if ezid.Classify(err) != ezid.KindRegistry {
		t.Fatalf("expected registry error, got %v", err)
	}
}

func TestPingSucceedsWithCredentials(t *testing.T) {
	reg := testsupport.NewRegistry(t)
	reg.Username = "apitest"
	reg.Password = "secret"
	client := newClient(t, reg.URL)
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestUndecodableResponseIsFormatError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html>maintenance</html>")
	}))
	t.Cleanup(server.Close)
	client := newClient(t, server.URL)

	_, err := client.Query(context.Background(), "ark:/99999/fk41")
	var formatErr *anvl.FormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("expected FormatError, got %v", err)
	}
	if ezid.Classify(err) != ezid.KindFormat {
		t.Fatalf("unexpected class %q", ezid.Classify(err))
	}
}

func TestMissingStatusLineIsFormatError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "dc.title: no status here\n")
	}))
	t.Cleanup(server.Close)
	client := newClient(t, server.URL)

	_, err := client.Query(context.Background(), "ark:/99999/fk41")
	var formatErr *anvl.FormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("expected FormatError, got %v", err)
	}
}

func TestMintReportsShadowIdentifier(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "success: doi:10.5072/FK2ABC | ark:/b5072/fk2abc\n")
	}))
	t.Cleanup(server.Close)
	client := newClient(t, server.URL)

	res, err := client.Mint(context.Background(), "doi:10.5072/FK2", anvl.MustNew(anvl.Pair{Key: "datacite.title", Value: "x"}))
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if res.Identifier != "doi:10.5072/FK2ABC" || res.Shadow != "ark:/b5072/fk2abc" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestMintRejectsSuccessWithoutIdentifier(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, "success: \n")
	}))
	t.Cleanup(server.Close)
	client := newClient(t, server.URL)

	res, err := client.Mint(context.Background(), "ark:/99999/fk4", anvl.MustNew(anvl.Pair{Key: "dc.title", Value: "x"}))
	var formatErr *anvl.FormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("expected FormatError, got %v (result %+v)", err, res)
	}
	if !strings.Contains(formatErr.Reason, "without identifier") {
		t.Fatalf("unexpected reason %q", formatErr.Reason)
	}
}

func TestRequestCarriesCredentialsAndBody(t *testing.T) {
	var gotPath, gotBody, gotType, gotAgent string
	var gotUser, gotPass string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		gotAgent = r.Header.Get("User-Agent")
		gotUser, gotPass, _ = r.BasicAuth()
		payload, _ := io.ReadAll(r.Body)
		gotBody = string(payload)
		_, _ = io.WriteString(w, "success: ark:/99999/fk41\n")
	}))
	t.Cleanup(server.Close)
	client := newClient(t, server.URL)

	rec := anvl.MustNew(
		anvl.Pair{Key: "dc.title", Value: "50% off: now"},
		anvl.Pair{Key: "dc.creator", Value: "Smith"},
	)
	if _, err := client.Update(context.Background(), "ark:/99999/fk41", rec); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if gotPath != "/id/ark:/99999/fk41" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotBody != "dc.title: 50%25 off: now\ndc.creator: Smith" {
		t.Fatalf("unexpected body %q", gotBody)
	}
	if !strings.HasPrefix(gotType, "text/plain") {
		t.Fatalf("unexpected content type %q", gotType)
	}
	if gotUser != "apitest" || gotPass != "secret" {
		t.Fatalf("unexpected credentials %q/%q", gotUser, gotPass)
	}
	if gotAgent == "" {
		t.Fatal("expected user agent")
	}
}

func TestTransportFailureIsTransient(t *testing.T) {
	client := newClient(t, "http://127.0.0.1:1", ezid.WithHTTPClient(&http.Client{Transport: &countingTransport{}}))
	_, err := client.Query(context.Background(), "ark:/99999/fk41")
	if !ezid.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestCanceledContextIsNotTransient(t *testing.T) {
	reg := testsupport.NewRegistry(t)
	client := newClient(t, reg.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Query(ctx, "ark:/99999/fk41")
	if ezid.IsTransient(err) {
		t.Fatalf("canceled call should not be retried: %v", err)
	}
	if ezid.Classify(err) != ezid.KindCanceled {
		t.Fatalf("unexpected class %q", ezid.Classify(err))
	}
}

func TestExecuteRecordsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	reg := testsupport.NewRegistry(t)
	client := newClient(t, reg.URL, ezid.WithTracer(provider.Tracer("test")))

	req, err := ezid.NewRequest(ezid.ActionMint, anvl.MustNew(anvl.Pair{Key: "dc.title", Value: "x"}), "")
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if _, err := client.Execute(context.Background(), req); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	spans := recorder.Ended()
	if len(spans) != 1 || spans[0].Name() != "ezid.mint" {
		t.Fatalf("unexpected spans %v", spans)
	}
}
