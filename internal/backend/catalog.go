// Package backend serves the mock arcade backend the fetch flows run against.
package backend

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/stacklok/joingroup/internal/records"
)

// Catalog is an in-memory, concurrency-safe record store
type Catalog struct {
	mu      sync.RWMutex
	records map[records.Kind]map[string]records.Record
}

// NewCatalog creates an empty catalog
func NewCatalog() *Catalog {
	return &Catalog{
		records: make(map[records.Kind]map[string]records.Record),
	}
}

// DefaultCatalog returns a catalog seeded with the stock arcade data
func DefaultCatalog() *Catalog {
	c := NewCatalog()
	for _, r := range []records.Record{
		{Kind: records.KindGame, ID: "1", Value: "Pacman"},
		{Kind: records.KindGame, ID: "2", Value: "Donkey Kong"},
		{Kind: records.KindGame, ID: "3", Value: "Space Invaders"},
		{Kind: records.KindProfile, ID: "1", Value: "Jonathan"},
		{Kind: records.KindEntitlement, ID: "1", Value: "premium"},
		{Kind: records.KindPreference, ID: "1", Value: "car"},
	} {
		// The seed data is valid by construction
		_ = c.Put(r)
	}
	return c
}

// Put adds or replaces a record
func (c *Catalog) Put(r records.Record) error {
	if r.Kind.Field() == "" {
		return fmt.Errorf("%w: %q", records.ErrUnknownKind, r.Kind)
	}
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("%w: record id is required", records.ErrMalformedRecord)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	byID, ok := c.records[r.Kind]
	if !ok {
		byID = make(map[string]records.Record)
		c.records[r.Kind] = byID
	}
	byID[r.ID] = r
	return nil
}

// Get returns the record ref points at
func (c *Catalog) Get(ref records.Ref) (records.Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	r, ok := c.records[ref.Kind][ref.ID]
	return r, ok
}

// List returns every record of kind ordered by id
func (c *Catalog) List(kind records.Kind) []records.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]records.Record, 0, len(c.records[kind]))
	for _, r := range c.records[kind] {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b records.Record) int {
		return strings.Compare(a.ID, b.ID)
	})
	return out
}
