// Package upstream is the I/O boundary to the agent backend. It speaks to
// five endpoints (streaming chat, batch chat, documents list, document
// export, health) and classifies failures into the two classes the
// dispatcher cares about: connection-level (UnreachableError) and
// application-level (StatusError).
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/agentbridge/gateway/internal/domain"
)

const defaultHealthTimeout = 5 * time.Second

// ClientOption configures the client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHealthTimeout bounds the health probe. Values above the 5s ceiling
// are clamped.
func WithHealthTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 && d <= defaultHealthTimeout {
			c.healthTimeout = d
		}
	}
}

// Client issues requests to the agent backend.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	healthTimeout time.Duration
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		httpClient:    http.DefaultClient,
		healthTimeout: defaultHealthTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL reports the configured backend location, used in remediation hints.
func (c *Client) BaseURL() string { return c.baseURL }

// StreamReply is a successful answer from the streaming chat endpoint.
// Body is live: the caller owns closing it.
type StreamReply struct {
	ContentType string
	Body        io.ReadCloser
}

// StreamChat invokes the streaming chat endpoint. A transport failure comes
// back as *domain.UnreachableError, a non-2xx status as *domain.StatusError
// with the upstream error body attached.
func (c *Client) StreamChat(ctx context.Context, msg domain.ChatMessage, credential string) (*StreamReply, error) {
	resp, err := c.postJSON(ctx, "/chat/stream", msg, credential)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, drainStatusError(resp)
	}

	return &StreamReply{
		ContentType: resp.Header.Get("Content-Type"),
		Body:        resp.Body,
	}, nil
}

// BatchChat invokes the synchronous chat endpoint and returns the raw reply
// body. Error classes match StreamChat.
func (c *Client) BatchChat(ctx context.Context, msg domain.ChatMessage, credential string) ([]byte, error) {
	resp, err := c.postJSON(ctx, "/chat", msg, credential)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, drainStatusError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read batch reply: %w", err)
	}
	return body, nil
}

// ListDocuments forwards the caller's query string verbatim and returns the
// upstream JSON unmodified.
func (c *Client) ListDocuments(ctx context.Context, rawQuery, credential string) ([]byte, error) {
	url := c.baseURL + "/documents"
	if rawQuery != "" {
		url += "?" + rawQuery
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(httpReq, credential)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &domain.UnreachableError{Backend: c.baseURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, drainStatusError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read documents reply: %w", err)
	}
	return body, nil
}

// ExportReply is a successful answer from the export endpoint. Body is the
// live upstream stream; the caller relays and closes it.
type ExportReply struct {
	Header http.Header
	Body   io.ReadCloser
}

// ExportDocument forwards an opaque export request body. On success the
// upstream body is handed back unread so large exports are never
// materialized here.
func (c *Client) ExportDocument(ctx context.Context, body io.Reader, credential string) (*ExportReply, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/documents/export", body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(httpReq, credential)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &domain.UnreachableError{Backend: c.baseURL, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, drainStatusError(resp)
	}

	return &ExportReply{
		Header: resp.Header,
		Body:   resp.Body,
	}, nil
}

// CheckHealth probes the backend diagnostic endpoint with a bounded timeout.
// It never returns an error: the outcome is folded into the ternary result.
func (c *Client) CheckHealth(ctx context.Context) domain.HealthResult {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	result := domain.HealthResult{Backend: c.baseURL}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		result.Status = domain.HealthUnreachable
		result.Reason = err.Error()
		return result
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		result.Status = domain.HealthUnreachable
		result.Reason = err.Error()
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		result.Status = domain.HealthHealthy
		return result
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	result.Status = domain.HealthUnhealthy
	result.Reason = fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	return result
}

func (c *Client) postJSON(ctx context.Context, path string, msg domain.ChatMessage, credential string) (*http.Response, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(httpReq, credential)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &domain.UnreachableError{Backend: c.baseURL, Err: err}
	}
	return resp, nil
}

func (c *Client) setHeaders(req *http.Request, credential string) {
	if req.Body != nil || req.Method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}
	req.Header.Set("User-Agent", "agent-bridge/1.0")
}

// drainStatusError consumes and closes a non-success response body into a
// StatusError so the dispatcher can propagate it verbatim.
func drainStatusError(resp *http.Response) error {
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	return &domain.StatusError{StatusCode: resp.StatusCode, Body: body}
}
