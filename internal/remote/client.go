// Implements the HTTP transfer client with rate limiting.

package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/slotdb/slotdb/internal/table"
)

// requestTimeout bounds a single round trip, including the response body.
const requestTimeout = 30 * time.Second

// StatusError is returned when the server replies with a 4xx or 5xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("server returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Body)
}

// Client is a rate-limited HTTP client for record transfer endpoints.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
}

// New creates a transfer client. requestsPerSecond caps the outbound request
// rate; zero or negative disables rate limiting.
func New(requestsPerSecond float64) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
	}
	if requestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
	return c
}

// do performs an HTTP request and returns the response body.
func (c *Client) do(ctx context.Context, method, url string, headers map[string]string, body any) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(respBody)),
		}
	}

	return respBody, nil
}

// Get fetches the URL and returns the raw response body.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, url, headers, nil)
}

// Post sends body as JSON to the URL.
func (c *Client) Post(ctx context.Context, url string, headers map[string]string, body any) ([]byte, error) {
	return c.do(ctx, http.MethodPost, url, headers, body)
}

// Put sends body as JSON to the URL.
func (c *Client) Put(ctx context.Context, url string, headers map[string]string, body any) ([]byte, error) {
	return c.do(ctx, http.MethodPut, url, headers, body)
}

// Delete sends a DELETE request. body identifies the records to remove and
// may be nil.
func (c *Client) Delete(ctx context.Context, url string, headers map[string]string, body any) ([]byte, error) {
	return c.do(ctx, http.MethodDelete, url, headers, body)
}

// FetchRecords fetches the URL and parses the response as a record array.
func (c *Client) FetchRecords(ctx context.Context, url string, headers map[string]string) ([]table.Record, error) {
	data, err := c.Get(ctx, url, headers)
	if err != nil {
		return nil, err
	}

	var recs []table.Record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("failed to parse records response: %w", err)
	}
	return recs, nil
}
