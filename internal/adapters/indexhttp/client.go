// Package indexhttp is the HTTP transport to the remote code-indexing server.
package indexhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bnema/scout-cli/internal/domain"
	"github.com/bnema/scout-cli/internal/ports"
)

const (
	apiPrefix       = "/api/v1"
	sessionHeader   = "X-Session-Id"
	maxResponseSize = 1 << 20
	defaultTimeout  = 30 * time.Second
)

// Client implements ports.IndexClient against a scout-server instance.
// SessionID may be empty for the session-creation and health calls.
type Client struct {
	baseURL    string
	sessionID  string
	httpClient *http.Client
}

var _ ports.IndexClient = (*Client)(nil)

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

func WithSession(id string) Option {
	return func(c *Client) { c.sessionID = id }
}

// WithHTTPClient replaces the underlying client, for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func New(host string, port int, opts ...Option) *Client {
	c := &Client{
		baseURL:    fmt.Sprintf("http://%s:%d%s", host, port, apiPrefix),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the prefix all requests are sent under, for diagnostics.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) Get(ctx context.Context, path string, params url.Values) (map[string]any, error) {
	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return c.do(req)
}

func (c *Client) Post(ctx context.Context, path string, body any) (map[string]any, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) Delete(ctx context.Context, path string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) (map[string]any, error) {
	if c.sessionID != "" {
		req.Header.Set(sessionHeader, c.sessionID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrServerUnreachable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode == http.StatusGone {
		return nil, domain.ErrSessionInvalid
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &domain.RemoteError{
			Status:  resp.StatusCode,
			Message: errorMessage(data),
		}
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]any{}, nil
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		// Some endpoints return bare arrays; wrap them so callers always
		// get a map.
		var list []any
		if listErr := json.Unmarshal(data, &list); listErr == nil {
			return map[string]any{"results": list}, nil
		}
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return result, nil
}

// errorMessage extracts a human-readable message from an error response,
// falling back to the raw body.
func errorMessage(data []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return strings.TrimSpace(string(data))
}
