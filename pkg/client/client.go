// Package client is a small HTTP client for the helper's coordinator surface.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/chaosswarm/chaosswarm/pkg/api"
	"github.com/chaosswarm/chaosswarm/pkg/observability"
)

// DefaultTimeout bounds a whole submission round trip. It sits above the
// helper's own request budget so the server answers first.
const DefaultTimeout = 35 * time.Second

// APIError is returned when the helper answers with a body that is not a
// submission response
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("helper responded %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("helper responded %d: %s", e.StatusCode, e.Body)
}

// Client talks to one helper
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New creates a client for the helper at address. A bare host:port is
// treated as http.
func New(address string, timeout time.Duration, opts ...Option) *Client {
	if !strings.Contains(address, "://") {
		address = "http://" + address
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &Client{
		baseURL: strings.TrimRight(address, "/"),
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   timeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the normalized helper address
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Submit posts a submission. The decoded response is returned whatever the
// HTTP status, so callers inspect its Status; an error means no submission
// response could be read.
func (c *Client) Submit(ctx context.Context, req api.SubmitRequest, requestID string) (api.SubmitResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return api.SubmitResponse{}, fmt.Errorf("failed to encode submission: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/submit", bytes.NewReader(body))
	if err != nil {
		return api.SubmitResponse{}, fmt.Errorf("failed to build request: %w", err)
	}
	if requestID == "" {
		requestID = uuid.New().String()
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(observability.RequestIDHeader, requestID)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return api.SubmitResponse{}, fmt.Errorf("failed to reach helper at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return api.SubmitResponse{}, fmt.Errorf("failed to read response: %w", err)
	}

	var out api.SubmitResponse
	if err := json.Unmarshal(raw, &out); err != nil || out.Status == "" {
		return api.SubmitResponse{}, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	return out, nil
}

// Health checks the helper answers /health
func (c *Client) Health(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to reach helper at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode}
	}
	return nil
}
