// Package historyclient is the small REST client feature facades use to
// fetch history and occupancy data, grounded on the teacher's
// modules/httpclient service wrapper: a thin struct around *http.Client
// with a base URL, a timeout, and a typed JSON Get.
package historyclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Client fetches JSON resources from a REST backend on behalf of feature
// facades. It performs no retries; callers that need a retry envelope
// build it around Get themselves. (The typing facade's presence-get
// retry envelope wraps Presence.Get, not this client.)
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a Client against baseURL with the given request timeout.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// Get issues a GET request against path (resolved relative to baseURL)
// and decodes the JSON response body into out.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("historyclient: invalid base url: %w", err)
	}
	u.Path = u.Path + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("historyclient: build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("historyclient: request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("historyclient: %s returned status %d", path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("historyclient: decode %s: %w", path, err)
	}
	return nil
}
