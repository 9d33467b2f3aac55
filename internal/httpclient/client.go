// Package httpclient provides the HTTP client used to talk to the arcade backend.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	// DefaultTimeout is the default timeout for a single HTTP request
	DefaultTimeout = 10 * time.Second

	// DefaultMaxRetries is the default number of attempts for a request
	DefaultMaxRetries = 3

	// MaxResponseSize is the largest response body the client will read (10 MB)
	MaxResponseSize = 10 * 1024 * 1024

	// UserAgent is the user agent sent with every request
	UserAgent = "joingroup/1.0"
)

// Client is an interface for HTTP operations
type Client interface {
	// Get performs an HTTP GET request and returns the response body
	Get(ctx context.Context, url string) ([]byte, error)
}

// DefaultClient implements Client with retries on transient failures
type DefaultClient struct {
	client      *http.Client
	maxRetries  uint
	initialWait time.Duration
}

// Option configures a DefaultClient
type Option func(*DefaultClient)

// WithMaxRetries sets the total number of attempts per request. Values below one mean one attempt.
func WithMaxRetries(n int) Option {
	return func(c *DefaultClient) {
		if n < 1 {
			n = 1
		}
		c.maxRetries = uint(n)
	}
}

// WithInitialBackoff sets the wait before the first retry
func WithInitialBackoff(d time.Duration) Option {
	return func(c *DefaultClient) {
		if d > 0 {
			c.initialWait = d
		}
	}
}

// WithTransport sets the round tripper used for requests
func WithTransport(rt http.RoundTripper) Option {
	return func(c *DefaultClient) {
		c.client.Transport = rt
	}
}

// NewDefaultClient creates a new client with the given per-request timeout.
// A timeout of zero uses DefaultTimeout.
func NewDefaultClient(timeout time.Duration, opts ...Option) *DefaultClient {
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	c := &DefaultClient{
		client:      &http.Client{Timeout: timeout},
		maxRetries:  DefaultMaxRetries,
		initialWait: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get performs an HTTP GET request. Network errors, 429 and 5xx responses are retried
// with exponential backoff; other HTTP errors are returned right away as *HTTPError.
func (c *DefaultClient) Get(ctx context.Context, url string) ([]byte, error) {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = c.initialWait

	attempt := 0
	operation := func() ([]byte, error) {
		attempt++
		return c.get(ctx, url)
	}

	data, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(c.maxRetries),
		backoff.WithNotify(func(err error, wait time.Duration) {
			slog.Debug("Retrying request",
				"url", url,
				"attempt", attempt,
				"wait", wait,
				"error", err)
		}),
	)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// get performs a single attempt and marks errors that are not worth retrying as permanent
func (c *DefaultClient) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(fmt.Errorf("failed to execute request: %w", err))
		}
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		httpErr := &HTTPError{
			StatusCode: resp.StatusCode,
			URL:        url,
			Message:    http.StatusText(resp.StatusCode),
		}
		if httpErr.Retryable() {
			return nil, httpErr
		}
		return nil, backoff.Permanent(httpErr)
	}

	if resp.ContentLength > MaxResponseSize {
		return nil, backoff.Permanent(fmt.Errorf("response size %d bytes exceeds maximum allowed size of %.2f MB",
			resp.ContentLength, float64(MaxResponseSize)/(1024*1024)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(body) > MaxResponseSize {
		return nil, backoff.Permanent(fmt.Errorf("response body exceeds maximum allowed size of %.2f MB",
			float64(MaxResponseSize)/(1024*1024)))
	}

	return body, nil
}

// IsNotFound reports whether err is an HTTP 404 from the backend
func IsNotFound(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound
}
