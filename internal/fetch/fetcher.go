// Package fetch runs batches of record fetches against the arcade backend and
// joins them into a single completion.
package fetch

//go:generate mockgen -destination=mocks/mock_fetcher.go -package=mocks -source=fetcher.go Fetcher

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/stacklok/joingroup/internal/httpclient"
	"github.com/stacklok/joingroup/internal/records"
)

// Fetcher retrieves a single record
type Fetcher interface {
	// Fetch returns the record ref points at
	Fetch(ctx context.Context, ref records.Ref) (records.Record, error)
}

// HTTPFetcher fetches records from the backend over HTTP
type HTTPFetcher struct {
	client  httpclient.Client
	baseURL string
}

// NewHTTPFetcher creates a fetcher for the backend at baseURL
func NewHTTPFetcher(client httpclient.Client, baseURL string) *HTTPFetcher {
	return &HTTPFetcher{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Fetch GETs <baseURL>/<kind>/<id> and decodes the payload
func (f *HTTPFetcher) Fetch(ctx context.Context, ref records.Ref) (records.Record, error) {
	target := f.baseURL + "/" + url.PathEscape(string(ref.Kind)) + "/" + url.PathEscape(ref.ID)

	data, err := f.client.Get(ctx, target)
	if err != nil {
		return records.Record{}, fmt.Errorf("failed to fetch %s: %w", ref, err)
	}

	record, err := records.Decode(ref.Kind, data)
	if err != nil {
		return records.Record{}, fmt.Errorf("failed to decode %s: %w", ref, err)
	}
	if record.ID != ref.ID {
		return records.Record{}, fmt.Errorf("failed to decode %s: %w: backend returned id %q",
			ref, records.ErrMalformedRecord, record.ID)
	}
	return record, nil
}
