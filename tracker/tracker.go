// Package tracker captures pages, compares each capture with the one stored
// before it and reports structural deltas. A Tracker works on one URL at a
// time; TrackPages runs a batch sequentially and isolates per-item failures.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/pagetrack/idgen"
	"github.com/hazyhaar/pagetrack/kvstore"
	"github.com/hazyhaar/pagetrack/snapshot"
	"github.com/hazyhaar/pagetrack/tracker/internal/delta"
	"github.com/hazyhaar/pagetrack/tracker/internal/sink"
	"github.com/hazyhaar/pagetrack/tracker/internal/snapstore"
	"github.com/hazyhaar/pagetrack/tracker/internal/source"
)

// Tracker runs the capture, persist and diff cycle.
type Tracker struct {
	opener source.Opener
	store  *snapstore.Store
	delta  *delta.Computor
	sinks  *sink.Router

	namespace string
	differ    delta.Differ
	sinkList  []sink.Sink
	now       func() time.Time
	newID     idgen.Generator
	logger    *slog.Logger
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// WithDiffer replaces the default line differ.
func WithDiffer(d Differ) Option {
	return func(t *Tracker) { t.differ = d }
}

// WithSinks adds sinks notified of every detected change.
func WithSinks(sinks ...Sink) Option {
	return func(t *Tracker) { t.sinkList = append(t.sinkList, sinks...) }
}

// WithClock overrides time.Now for snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithIDGenerator overrides the snapshot ID generator.
func WithIDGenerator(g idgen.Generator) Option {
	return func(t *Tracker) { t.newID = g }
}

// WithNamespace overrides the storage namespace ("tracker").
func WithNamespace(name string) Option {
	return func(t *Tracker) { t.namespace = name }
}

// New creates a Tracker reading pages through opener and storing snapshots
// through provider.
func New(opener Opener, provider kvstore.Provider, opts ...Option) (*Tracker, error) {
	if opener == nil {
		return nil, errors.New("tracker: nil opener")
	}
	if provider == nil {
		return nil, errors.New("tracker: nil storage provider")
	}
	t := &Tracker{
		opener:    opener,
		namespace: snapstore.DefaultNamespace,
		now:       time.Now,
		newID:     idgen.Default,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(t)
	}
	t.store = snapstore.New(provider,
		snapstore.WithNamespace(t.namespace),
		snapstore.WithLogger(t.logger))
	t.delta = delta.New(t.differ)
	t.sinks = sink.NewRouter(t.logger, t.sinkList...)
	return t, nil
}

// Close closes every sink.
func (t *Tracker) Close() error {
	return t.sinks.Close()
}

// TrackPage captures url, persists the capture and compares it with the
// previously stored one. The new snapshot is written even when nothing
// changed. A previous snapshot that cannot be read counts as a first visit.
func (t *Tracker) TrackPage(ctx context.Context, url string, opts Options) (*TrackResult, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: TrackPage expects a non-empty URL", ErrValidation)
	}

	page, err := t.capture(ctx, url, opts)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	snap := &snapshot.Snapshot{
		ID:        t.newID(),
		URL:       url,
		Headings:  page.headings,
		HTML:      page.html,
		Text:      page.text,
		FetchedAt: t.now().UTC(),
	}

	previous, found := t.store.ReadPrevious(ctx, url, opts.Storage)
	if err := t.store.WriteSnapshot(ctx, url, snap, opts.Storage); err != nil {
		return nil, &StorageWriteError{URL: url, Key: snapstore.StorageKey(url), Err: err}
	}

	if !found {
		t.logger.Info("tracker: first visit", "url", url, "first_visit", true)
		return &TrackResult{URL: url, FirstVisit: true, Snapshot: snap}, nil
	}

	d := t.delta.Compute(previous, snap)
	res := &TrackResult{URL: url, Snapshot: snap, Previous: previous, Delta: d}
	t.logger.Info("tracker: tracked", "url", url, "first_visit", false, "changed", d != nil)
	if d != nil {
		t.notify(ctx, res)
	}
	return res, nil
}

// TrackPages tracks urls one after another in input order. Per-item
// failures, including invalid URLs, become results carrying only URL and
// Error. Once ctx is done the remaining URLs fail with ctx.Err().
func (t *Tracker) TrackPages(ctx context.Context, urls []string, opts Options) (*BatchResult, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("%w: TrackPages expects a non-empty list of URLs", ErrValidation)
	}

	out := &BatchResult{
		Results: make([]TrackResult, 0, len(urls)),
		Changes: []TrackResult{},
	}
	for _, u := range urls {
		if err := ctx.Err(); err != nil {
			out.Results = append(out.Results, TrackResult{URL: u, Error: err.Error()})
			continue
		}
		res, err := t.TrackPage(ctx, u, opts)
		if err != nil {
			t.logger.Warn("tracker: track failed", "url", u, "error", err)
			out.Results = append(out.Results, TrackResult{URL: u, Error: err.Error()})
			continue
		}
		out.Results = append(out.Results, *res)
	}
	for _, r := range out.Results {
		if r.Changed() {
			out.Changes = append(out.Changes, r)
		}
	}

	t.logger.Info("tracker: batch done", "urls", len(urls), "changes", len(out.Changes))
	return out, nil
}

type captured struct {
	headings []snapshot.Heading
	html     string
	text     string
}

// capture opens url and extracts its content. The handle is closed before
// capture returns, whatever the outcome.
func (t *Tracker) capture(ctx context.Context, url string, opts Options) (*captured, error) {
	h, err := t.opener.Open(ctx, url, source.OpenOptions{Refresh: !opts.NoRefresh})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := h.Close(); err != nil {
			t.logger.Debug("tracker: close page", "url", url, "error", err)
		}
	}()

	headings, err := h.Headings(ctx)
	if err != nil {
		return nil, fmt.Errorf("headings: %w", err)
	}
	if headings == nil {
		headings = []snapshot.Heading{}
	}
	html, err := h.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("html: %w", err)
	}
	var text string
	if h.HasText() {
		if text, err = h.Text(ctx); err != nil {
			return nil, fmt.Errorf("text: %w", err)
		}
	}
	return &captured{headings: headings, html: html, text: text}, nil
}

func (t *Tracker) notify(ctx context.Context, res *TrackResult) {
	if t.sinks.Len() == 0 {
		return
	}
	c := &snapshot.Change{
		URL:        res.URL,
		Snapshot:   res.Snapshot,
		Previous:   res.Previous,
		Delta:      res.Delta,
		DetectedAt: t.now().UTC(),
	}
	// Router logs each failing sink; the result stands either way.
	_ = t.sinks.Send(ctx, c)
}
