// Package client calls the risk assessment HTTP service.
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

	"github.com/liamcoop/cvrisk/mapper"
	"github.com/liamcoop/cvrisk/rules"
)

const (
	assessPath = "/api/risk-assessment"

	// DefaultTimeout bounds each request unless WithTimeout or WithHTTPClient overrides it
	DefaultTimeout = 30 * time.Second

	// DefaultErrorMessage is reported when the service fails without a message
	DefaultErrorMessage = "無法取得風險評估結果"

	maxErrorBody = 64 << 10
)

// APIError is a non-2xx response from the service
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("risk assessment failed with status %d: %s", e.StatusCode, e.Message)
}

// Client handles risk assessment API requests
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	now        func() time.Time
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. A nil client selects the default.
// The given client is never modified.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout. It applies to a copy of the HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// New creates a client for the service at baseURL
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if c.timeout > 0 {
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}
	return c
}

// Assess submits a normalized input and returns the verdict
func (c *Client) Assess(ctx context.Context, in rules.ClinicalInput) (*rules.Verdict, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+assessPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		message := strings.TrimSpace(string(msg))
		if message == "" {
			message = DefaultErrorMessage
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: message}
	}

	var verdict rules.Verdict
	if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &verdict, nil
}

// AssessForm maps raw form state to an input and submits it
func (c *Client) AssessForm(ctx context.Context, form mapper.FormData) (*rules.Verdict, error) {
	return c.Assess(ctx, mapper.BuildInput(form, c.now()))
}
