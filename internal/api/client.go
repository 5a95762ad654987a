// Package api talks to the inspection record REST service.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kingrea/qc-desk/internal/inspection"
)

const (
	// DefaultItemsPath is where the service exposes the record collection.
	DefaultItemsPath = "/api/items"
	// DefaultTimeout bounds a single request.
	DefaultTimeout = 10 * time.Second

	maxErrorBody = 4 << 10
)

// Logger is satisfied by logging.Logger and logbook adapters.
type Logger interface {
	Printf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// StatusError reports a non-2xx response.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: %s %s: %d %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("api: %s %s: %d %s", e.Method, e.URL, e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the service.
func IsNotFound(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound
}

// Client issues the four collection calls the front end needs.
type Client struct {
	baseURL    string
	itemsPath  string
	timeout    time.Duration
	httpClient *http.Client
	logger     Logger
	requestID  func() string
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithItemsPath overrides DefaultItemsPath.
func WithItemsPath(path string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(path); trimmed != "" {
			c.itemsPath = "/" + strings.Trim(trimmed, "/")
		}
	}
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger records each request.
func WithLogger(l Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRequestID lets tests pin X-Request-ID values.
func WithRequestID(fn func() string) Option {
	return func(c *Client) {
		if fn != nil {
			c.requestID = fn
		}
	}
}

// NewClient validates baseURL and returns a client for it.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("api: parse base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("api: base url %q must use http or https", baseURL)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("api: base url %q has no host", baseURL)
	}
	c := &Client{
		baseURL:    trimmed,
		itemsPath:  DefaultItemsPath,
		timeout:    DefaultTimeout,
		httpClient: &http.Client{},
		logger:     nopLogger{},
		requestID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// ItemsURL returns the collection endpoint.
func (c *Client) ItemsURL() string {
	return c.baseURL + c.itemsPath
}

func (c *Client) itemURL(id string) string {
	return c.ItemsURL() + "/" + url.PathEscape(id)
}

// List fetches every record in server order.
func (c *Client) List(ctx context.Context) ([]inspection.Record, error) {
	var records []inspection.Record
	if err := c.do(ctx, http.MethodGet, c.ItemsURL(), nil, &records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []inspection.Record{}
	}
	return records, nil
}

// Create posts a new record and returns the server's copy when one is sent back.
func (c *Client) Create(ctx context.Context, rec inspection.Record) (inspection.Record, error) {
	rec.ID = ""
	var created inspection.Record
	if err := c.do(ctx, http.MethodPost, c.ItemsURL(), rec, &created); err != nil {
		return inspection.Record{}, err
	}
	return created, nil
}

// Update replaces the fields of record id.
func (c *Client) Update(ctx context.Context, id string, rec inspection.Record) (inspection.Record, error) {
	if strings.TrimSpace(id) == "" {
		return inspection.Record{}, fmt.Errorf("api: update requires a record id")
	}
	rec.ID = ""
	var updated inspection.Record
	if err := c.do(ctx, http.MethodPut, c.itemURL(id), rec, &updated); err != nil {
		return inspection.Record{}, err
	}
	return updated, nil
}

// Delete removes record id.
func (c *Client) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("api: delete requires a record id")
	}
	return c.do(ctx, http.MethodDelete, c.itemURL(id), nil, nil)
}

func (c *Client) do(ctx context.Context, method, target string, body any, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("api: encode %s body: %w", method, err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("api: build %s %s: %w", method, target, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	reqID := c.requestID()
	req.Header.Set("X-Request-ID", reqID)

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Printf("api: %s %s [%s] failed: %v", method, target, reqID, err)
		return fmt.Errorf("api: %s %s: %w", method, target, err)
	}
	defer resp.Body.Close()
	c.logger.Printf("api: %s %s [%s] -> %d in %s", method, target, reqID, resp.StatusCode, time.Since(started).Round(time.Millisecond))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{
			Method:     method,
			URL:        target,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.Body),
		}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("api: read %s response: %w", method, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("api: decode %s response: %w", method, err)
	}
	return nil
}

func errorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil {
		return ""
	}
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &payload) == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return strings.TrimSpace(string(data))
}
