package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kingrea/qc-desk/internal/inspection"
	"github.com/kingrea/qc-desk/internal/stubapi"
)

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) Printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, format)
}

func startStub(t *testing.T, opts ...stubapi.Option) *stubapi.Server {
	t.Helper()
	srv := stubapi.NewServer(stubapi.Settings{Host: "127.0.0.1", Port: 0}, opts...)
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
	})
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("start stub: %v", err)
	}
	return srv
}

func TestNewClientValidatesBaseURL(t *testing.T) {
	for _, bad := range []string{"", "localhost:5000", "ftp://example.com", "http://"} {
		if _, err := NewClient(bad); err == nil {
			t.Fatalf("expected error for base url %q", bad)
		}
	}
	c, err := NewClient("http://localhost:5000/", WithItemsPath("records/"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if got := c.ItemsURL(); got != "http://localhost:5000/records" {
		t.Fatalf("items url = %q", got)
	}
}

func TestClientCRUDRoundTrip(t *testing.T) {
	srv := startStub(t)
	logger := &recordingLogger{}
	c, err := NewClient(srv.BaseURL(), WithLogger(logger), WithTimeout(2*time.Second))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	ctx := context.Background()

	records, err := c.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected empty list, got %d", len(records))
	}

	created, err := c.Create(ctx, inspection.Record{
		ID:              "client-side-id",
		SalesType:       inspection.SalesExport,
		Customer:        "ACME",
		ProductionOrder: "MO20261018000001",
		Defects:         []inspection.Defect{{Category: inspection.CategoryAppearanceNG, Status: "scratch"}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" || created.ID == "client-side-id" {
		t.Fatalf("expected server-assigned id, got %q", created.ID)
	}

	created.Operator = "王小明"
	if _, err := c.Update(ctx, created.ID, created); err != nil {
		t.Fatalf("update: %v", err)
	}
	records, err = c.List(ctx)
	if err != nil {
		t.Fatalf("list after update: %v", err)
	}
	if len(records) != 1 || records[0].Operator != "王小明" {
		t.Fatalf("unexpected records after update: %#v", records)
	}
	if len(records[0].Defects) != 1 || records[0].Defects[0].Category != inspection.CategoryAppearanceNG {
		t.Fatalf("defects not round-tripped: %#v", records[0].Defects)
	}

	if err := c.Delete(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := c.Delete(ctx, created.ID); !IsNotFound(err) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
	if len(logger.lines) == 0 {
		t.Fatalf("expected requests to be logged")
	}
}

func TestClientStatusErrorCarriesServerMessage(t *testing.T) {
	srv := startStub(t)
	c, err := NewClient(srv.BaseURL())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = c.Update(context.Background(), "nope", inspection.Record{})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusNotFound || statusErr.Message != "item not found" {
		t.Fatalf("unexpected status error: %#v", statusErr)
	}
}

func TestClientRequiresIDs(t *testing.T) {
	c, err := NewClient("http://127.0.0.1:1")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := c.Update(context.Background(), " ", inspection.Record{}); err == nil {
		t.Fatalf("expected update without id to fail")
	}
	if err := c.Delete(context.Background(), ""); err == nil {
		t.Fatalf("expected delete without id to fail")
	}
}

func TestClientReportsTransportErrors(t *testing.T) {
	srv := startStub(t)
	base := srv.BaseURL()
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	c, err := NewClient(base, WithTimeout(500*time.Millisecond))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = c.List(context.Background())
	if err == nil {
		t.Fatalf("expected transport error")
	}
	if !strings.Contains(err.Error(), "GET") {
		t.Fatalf("error should name the method: %v", err)
	}
}

func TestClientSendsRequestID(t *testing.T) {
	stub := startStub(t)
	var seen string
	transport := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		seen = r.Header.Get("X-Request-ID")
		return http.DefaultTransport.RoundTrip(r)
	})
	c, err := NewClient(stub.BaseURL(),
		WithRequestID(func() string { return "req-42" }),
		WithHTTPClient(&http.Client{Transport: transport}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := c.List(context.Background()); err != nil {
		t.Fatalf("list: %v", err)
	}
	if seen != "req-42" {
		t.Fatalf("X-Request-ID = %q, want req-42", seen)
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
