// Package fetch downloads remote files for the download action.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultMaxRedirects is the redirect cap used when none is configured.
	DefaultMaxRedirects = 3
	defaultUserAgent    = "pienkuu"
)

// ErrTooManyRedirects is wrapped by NetworkError when the redirect cap is hit.
var ErrTooManyRedirects = errors.New("too many redirects")

// Config holds configuration for constructing a new Client.
type Config struct {
	MaxRedirects   int // <= 0 means DefaultMaxRedirects
	TimeoutSeconds int // <= 0 means no timeout
	UserAgent      string
}

// Client fetches URLs and returns the raw response body.
type Client struct {
	httpClient   *http.Client
	maxRedirects int
	userAgent    string
}

// NetworkError is returned for transport failures and unsuccessful
// responses.
type NetworkError struct {
	URL        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch: GET %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch: GET %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// NewClient creates a new Client from the given configuration.
func NewClient(cfg Config) *Client {
	maxRedirects := cfg.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = DefaultMaxRedirects
	}

	userAgent := defaultUserAgent
	if cfg.UserAgent != "" {
		userAgent = cfg.UserAgent
	}

	c := &Client{
		maxRedirects: maxRedirects,
		userAgent:    userAgent,
	}
	c.httpClient = &http.Client{
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) > c.maxRedirects {
				return fmt.Errorf("stopped after %d redirects: %w", c.maxRedirects, ErrTooManyRedirects)
			}
			return nil
		},
	}
	if cfg.TimeoutSeconds > 0 {
		c.httpClient.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return c
}

// Get performs a single GET request and returns the body bytes as sent by
// the server. The body is neither decompressed nor parsed. There are no
// retries.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept-Encoding", "identity")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &NetworkError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: fmt.Errorf("read response body: %w", err)}
	}
	return body, nil
}
