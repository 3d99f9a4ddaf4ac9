// Package iconfetch retrieves favicon images over HTTP and discovers icon
// candidates declared in page HTML. It is the network collaborator the
// favicon store delegates to; the store itself never owns transport policy.
package iconfetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxIconBytes caps how much of a response body is read. Favicon payloads
// are small; anything larger is either misconfigured or hostile.
const maxIconBytes = 1 << 20

// Client fetches icon bytes.
type Client struct {
	http    *http.Client
	headers map[string]string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithHeader adds a header to every fetch (e.g. a User-Agent the origin
// expects).
func WithHeader(key, value string) Option {
	return func(c *Client) { c.headers[key] = value }
}

// NewClient creates a Client with a 15s default timeout.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{Timeout: 15 * time.Second},
		headers: map[string]string{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Fetch retrieves the bytes at url, capped at maxIconBytes.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxIconBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("fetch %s: empty body", url)
	}
	return data, nil
}
