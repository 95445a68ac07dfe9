// Package fetcher implements the HTTP opener: a single GET per page, no
// JavaScript. Bodies are cached in process so that non-refresh opens can be
// served without a round trip and refresh opens can revalidate.
package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/hazyhaar/pagetrack/horosafe"
	"github.com/hazyhaar/pagetrack/snapshot"
	"github.com/hazyhaar/pagetrack/tracker/internal/pageparse"
	"github.com/hazyhaar/pagetrack/tracker/internal/source"
)

// DefaultUserAgent is sent when no user agent is configured.
const DefaultUserAgent = "Mozilla/5.0 (compatible; pagetrack/1.0)"

const defaultTimeout = 30 * time.Second

// StatusError reports a response status the fetcher does not accept.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetcher: %s: unexpected status %d", e.URL, e.Code)
}

// Result is the outcome of a fetch.
type Result struct {
	URL        string
	Body       string
	StatusCode int
	ETag       string
	LastMod    string
	// Cached is true when the body came from the in-process cache, either
	// directly or after a 304.
	Cached bool
}

type entry struct {
	body    string
	etag    string
	lastMod string
}

// Fetcher performs HTTP GETs and opens the result as a page.
type Fetcher struct {
	client  *http.Client
	timeout time.Duration // 0 keeps the client's own timeout
	ua      string
	maxBody int64
	guard   bool
	text    *pageparse.TextExtractor
	logger  *slog.Logger

	mu    sync.Mutex
	cache map[string]entry
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClient sets a custom HTTP client. The client is never modified; a
// WithTimeout applies to a copy.
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		if ua != "" {
			f.ua = ua
		}
	}
}

// WithTimeout sets the request timeout. Default: 30s.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithMaxBody caps the response body. Default: horosafe.MaxResponseBody.
func WithMaxBody(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBody = n
		}
	}
}

// WithURLGuard rejects URLs aimed at private or loopback addresses.
func WithURLGuard(on bool) Option {
	return func(f *Fetcher) { f.guard = on }
}

// WithTextMode selects text extraction. TextNone opens pages without the
// text capability.
func WithTextMode(m pageparse.TextMode) Option {
	return func(f *Fetcher) { f.text = pageparse.NewTextExtractor(m) }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// New creates a Fetcher with sensible defaults.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		ua:      DefaultUserAgent,
		maxBody: horosafe.MaxResponseBody,
		text:    pageparse.NewTextExtractor(pageparse.TextPlain),
		logger:  slog.Default(),
		cache:   make(map[string]entry),
	}
	for _, o := range opts {
		o(f)
	}
	switch {
	case f.client == nil:
		timeout := f.timeout
		if timeout == 0 {
			timeout = defaultTimeout
		}
		f.client = &http.Client{Timeout: timeout}
	case f.timeout > 0:
		c := *f.client
		c.Timeout = f.timeout
		f.client = &c
	}
	return f
}

// Open fetches pageURL and returns it as a handle.
func (f *Fetcher) Open(ctx context.Context, pageURL string, opts source.OpenOptions) (*source.Handle, error) {
	res, err := f.Fetch(ctx, pageURL, opts.Refresh)
	if err != nil {
		return nil, err
	}
	return f.handle(res), nil
}

func (f *Fetcher) handle(res *Result) *source.Handle {
	p := &page{url: res.URL, body: res.Body}
	if f.text.Mode() == pageparse.TextNone {
		return source.NewHandle(p)
	}
	return source.NewHandle(&textPage{page: p, text: f.text})
}

// Fetch GETs pageURL. Without refresh a cached body is returned as is.
// With refresh the request bypasses intermediary caches and revalidates
// the cached copy; a 304 reuses it.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string, refresh bool) (*Result, error) {
	if f.guard {
		if err := horosafe.ValidateURL(pageURL); err != nil {
			return nil, fmt.Errorf("fetcher: %w", err)
		}
	}

	cached, hit := f.lookup(pageURL)
	if hit && !refresh {
		f.logger.Debug("fetcher: cache hit", "url", pageURL)
		return &Result{URL: pageURL, Body: cached.body, StatusCode: http.StatusOK,
			ETag: cached.etag, LastMod: cached.lastMod, Cached: true}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetcher: new request: %w", err)
	}
	req.Header.Set("User-Agent", f.ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	if refresh {
		req.Header.Set("Cache-Control", "no-cache")
		req.Header.Set("Pragma", "no-cache")
		if hit && cached.etag != "" {
			req.Header.Set("If-None-Match", cached.etag)
		}
		if hit && cached.lastMod != "" {
			req.Header.Set("If-Modified-Since", cached.lastMod)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetcher: do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified && hit {
		f.logger.Debug("fetcher: not modified", "url", pageURL)
		return &Result{URL: pageURL, Body: cached.body, StatusCode: resp.StatusCode,
			ETag: cached.etag, LastMod: cached.lastMod, Cached: true}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: pageURL, Code: resp.StatusCode}
	}

	body, err := horosafe.LimitedReadAll(resp.Body, f.maxBody)
	if err != nil {
		return nil, fmt.Errorf("fetcher: read body: %w", err)
	}

	res := &Result{
		URL:        pageURL,
		Body:       string(body),
		StatusCode: resp.StatusCode,
		ETag:       resp.Header.Get("ETag"),
		LastMod:    resp.Header.Get("Last-Modified"),
	}
	f.store(pageURL, entry{body: res.Body, etag: res.ETag, lastMod: res.LastMod})

	f.logger.Debug("fetcher: fetched",
		"url", pageURL, "status", resp.StatusCode, "size", len(body))
	return res, nil
}

// Forget drops the cached copy of pageURL.
func (f *Fetcher) Forget(pageURL string) {
	f.mu.Lock()
	delete(f.cache, pageURL)
	f.mu.Unlock()
}

func (f *Fetcher) lookup(pageURL string) (entry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.cache[pageURL]
	return e, ok
}

func (f *Fetcher) store(pageURL string, e entry) {
	f.mu.Lock()
	f.cache[pageURL] = e
	f.mu.Unlock()
}

// page is a fetched body. Headings are parsed lazily.
type page struct {
	url  string
	body string
}

func (p *page) Headings(context.Context) ([]snapshot.Heading, error) {
	return pageparse.Headings(p.body)
}

func (p *page) HTML(context.Context) (string, error) { return p.body, nil }

func (p *page) Close() error { return nil }

type textPage struct {
	*page
	text *pageparse.TextExtractor
}

func (p *textPage) Text(context.Context) (string, error) {
	return p.text.Text(p.body, p.url), nil
}
