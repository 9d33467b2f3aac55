// Package transfer sends a payment once a duplicate check has finished, giving up
// when the check takes longer than the allowed wait.
package transfer

//go:generate mockgen -destination=mocks/mock_checker.go -package=mocks -source=checker.go Checker

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/stacklok/joingroup/internal/httpclient"
)

// ErrMalformedResponse is returned when the backend answer cannot be interpreted
var ErrMalformedResponse = errors.New("malformed duplicate check response")

// Checker reports whether the payment about to be sent was already sent
type Checker interface {
	HasDuplicate(ctx context.Context) (bool, error)
}

// HTTPChecker asks the backend's /payments/duplicate endpoint
type HTTPChecker struct {
	client  httpclient.Client
	baseURL string
	delay   time.Duration
}

// NewHTTPChecker creates a checker. delay is forwarded to the backend to simulate a slow check.
func NewHTTPChecker(client httpclient.Client, baseURL string, delay time.Duration) *HTTPChecker {
	return &HTTPChecker{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		delay:   delay,
	}
}

// HasDuplicate performs the check
func (c *HTTPChecker) HasDuplicate(ctx context.Context) (bool, error) {
	query := url.Values{}
	query.Set("delay", c.delay.String())
	target := c.baseURL + "/payments/duplicate?" + query.Encode()

	data, err := c.client.Get(ctx, target)
	if err != nil {
		return false, fmt.Errorf("duplicate check failed: %w", err)
	}

	duplicate := gjson.GetBytes(data, "duplicate")
	if !duplicate.IsBool() {
		return false, fmt.Errorf("%w: %s", ErrMalformedResponse, string(data))
	}
	return duplicate.Bool(), nil
}
