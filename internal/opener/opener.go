// Package opener hands documents off to whatever application handles the app URL scheme.
package opener

//go:generate mockgen -destination=mocks/mock_opener.go -package=mocks -source=opener.go URLOpener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/pkg/browser"
)

// DefaultScheme is the URL scheme documents are opened with
const DefaultScheme = "joingroup"

// ErrCannotOpen is returned when no handler accepts the document URL
var ErrCannotOpen = errors.New("no handler can open url")

// URLOpener opens URLs with the platform handler
type URLOpener interface {
	// CanOpen reports whether Open would be able to handle rawURL
	CanOpen(rawURL string) bool
	// Open hands rawURL to its handler
	Open(ctx context.Context, rawURL string) error
}

// BrowserOpener opens URLs with the system browser, limited to an allow list of schemes
type BrowserOpener struct {
	schemes map[string]bool
	open    func(string) error
}

// NewBrowserOpener creates an opener accepting http, https and the given extra schemes
func NewBrowserOpener(extraSchemes ...string) *BrowserOpener {
	schemes := map[string]bool{"http": true, "https": true}
	for _, s := range extraSchemes {
		schemes[strings.ToLower(s)] = true
	}
	return &BrowserOpener{
		schemes: schemes,
		open:    browser.OpenURL,
	}
}

// CanOpen reports whether rawURL is absolute and uses an allowed scheme
func (b *BrowserOpener) CanOpen(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || !u.IsAbs() {
		return false
	}
	return b.schemes[strings.ToLower(u.Scheme)]
}

// Open launches the system handler for rawURL
func (b *BrowserOpener) Open(ctx context.Context, rawURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !b.CanOpen(rawURL) {
		return fmt.Errorf("%w: %s", ErrCannotOpen, rawURL)
	}
	if err := b.open(rawURL); err != nil {
		return fmt.Errorf("failed to open %s: %w", rawURL, err)
	}
	return nil
}

// Mode is how a document is opened
type Mode string

const (
	// ModeView opens the document read-only
	ModeView Mode = "view"
	// ModeEdit opens the document for editing
	ModeEdit Mode = "edit"
)

// ParseMode validates s as a Mode
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(s)); m {
	case ModeView, ModeEdit:
		return m, nil
	default:
		return "", fmt.Errorf("invalid mode %q, must be %q or %q", s, ModeView, ModeEdit)
	}
}

// Document is something that can be opened by id
type Document struct {
	ID string
}

// DocumentOpener builds document URLs and passes them to a URLOpener
type DocumentOpener struct {
	opener URLOpener
	scheme string
}

// NewDocumentOpener creates a DocumentOpener. An empty scheme means DefaultScheme.
func NewDocumentOpener(opener URLOpener, scheme string) *DocumentOpener {
	if scheme == "" {
		scheme = DefaultScheme
	}
	return &DocumentOpener{opener: opener, scheme: scheme}
}

// URL returns the address doc is opened with in mode
func (d *DocumentOpener) URL(doc Document, mode Mode) string {
	query := url.Values{}
	query.Set("id", doc.ID)
	query.Set("mode", string(mode))
	return d.scheme + "://open?" + query.Encode()
}

// Open opens doc in mode, returning ErrCannotOpen when the opener refuses the URL
func (d *DocumentOpener) Open(ctx context.Context, doc Document, mode Mode) error {
	if doc.ID == "" {
		return errors.New("document id is required")
	}

	target := d.URL(doc, mode)
	if !d.opener.CanOpen(target) {
		slog.Warn("No handler for document URL", "url", target)
		return fmt.Errorf("%w: %s", ErrCannotOpen, target)
	}

	slog.Debug("Opening document", "id", doc.ID, "mode", string(mode), "url", target)
	return d.opener.Open(ctx, target)
}
