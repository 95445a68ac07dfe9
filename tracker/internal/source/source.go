// Package source defines the page retrieval collaborator the tracker
// consumes. Concrete openers live in the fetcher and browser packages.
package source

import (
	"context"
	"errors"

	"github.com/hazyhaar/pagetrack/snapshot"
)

// ErrClosed is returned by Handle reads after Close.
var ErrClosed = errors.New("source: handle closed")

// OpenOptions controls a single Open call.
type OpenOptions struct {
	// Refresh asks the opener to bypass any cached copy of the page.
	Refresh bool
}

// Page is an opened page. Close releases it.
type Page interface {
	Headings(ctx context.Context) ([]snapshot.Heading, error)
	HTML(ctx context.Context) (string, error)
	Close() error
}

// TextPage is a Page that can also produce visible text.
type TextPage interface {
	Page
	Text(ctx context.Context) (string, error)
}

// Opener opens pages by URL.
type Opener interface {
	Open(ctx context.Context, url string, opts OpenOptions) (*Handle, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, url string, opts OpenOptions) (*Handle, error)

func (f OpenerFunc) Open(ctx context.Context, url string, opts OpenOptions) (*Handle, error) {
	return f(ctx, url, opts)
}

// Handle wraps a Page with its text capability resolved once.
type Handle struct {
	page   Page
	text   TextPage
	closed bool
}

// NewHandle wraps p. A p implementing TextPage gives the handle text.
func NewHandle(p Page) *Handle {
	h := &Handle{page: p}
	if tp, ok := p.(TextPage); ok {
		h.text = tp
	}
	return h
}

// HasText reports whether Text reads from the page.
func (h *Handle) HasText() bool { return h.text != nil }

func (h *Handle) Headings(ctx context.Context) ([]snapshot.Heading, error) {
	if h.closed {
		return nil, ErrClosed
	}
	return h.page.Headings(ctx)
}

func (h *Handle) HTML(ctx context.Context) (string, error) {
	if h.closed {
		return "", ErrClosed
	}
	return h.page.HTML(ctx)
}

// Text returns the page text, or "" when the page has no text capability.
func (h *Handle) Text(ctx context.Context) (string, error) {
	if h.closed {
		return "", ErrClosed
	}
	if h.text == nil {
		return "", nil
	}
	return h.text.Text(ctx)
}

// Close releases the page. Subsequent calls return nil.
func (h *Handle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	return h.page.Close()
}
