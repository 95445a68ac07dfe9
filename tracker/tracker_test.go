package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/hazyhaar/pagetrack/idgen"
	"github.com/hazyhaar/pagetrack/kvstore"
	"github.com/hazyhaar/pagetrack/snapshot"
	"github.com/hazyhaar/pagetrack/tracker/internal/snapstore"
)

// fakePage serves fixed content and counts closes.
type fakePage struct {
	headings []snapshot.Heading
	html     string
	htmlErr  error
	site     *fakeSite
}

func (p *fakePage) Headings(context.Context) ([]snapshot.Heading, error) { return p.headings, nil }

func (p *fakePage) HTML(context.Context) (string, error) {
	if p.htmlErr != nil {
		return "", p.htmlErr
	}
	return p.html, nil
}

func (p *fakePage) Close() error { p.site.closes++; return nil }

type fakeTextPage struct {
	*fakePage
	text string
}

func (p *fakeTextPage) Text(context.Context) (string, error) { return p.text, nil }

type content struct {
	headings []snapshot.Heading
	html     string
	text     string
	noText   bool
	htmlErr  error
}

// fakeSite is an Opener over an in-memory set of pages.
type fakeSite struct {
	pages  map[string]content
	opens  int
	closes int
	opts   []OpenOptions
	onOpen func(url string)
}

func newSite() *fakeSite { return &fakeSite{pages: make(map[string]content)} }

func (s *fakeSite) set(url string, c content) { s.pages[url] = c }

func (s *fakeSite) Open(_ context.Context, url string, opts OpenOptions) (*Handle, error) {
	if s.onOpen != nil {
		s.onOpen(url)
	}
	c, ok := s.pages[url]
	if !ok {
		return nil, errors.New("connection refused")
	}
	s.opens++
	s.opts = append(s.opts, opts)
	p := &fakePage{headings: c.headings, html: c.html, htmlErr: c.htmlErr, site: s}
	if c.noText {
		return NewHandle(p), nil
	}
	return NewHandle(&fakeTextPage{fakePage: p, text: c.text}), nil
}

var (
	t0     = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	silent = slog.New(slog.NewTextHandler(io.Discard, nil))
)

func newTracker(t *testing.T, site *fakeSite, provider kvstore.Provider, opts ...Option) *Tracker {
	t.Helper()
	now := t0
	base := []Option{
		WithLogger(silent),
		WithIDGenerator(idgen.Sequence("snap_")),
		WithClock(func() time.Time { now = now.Add(time.Minute); return now }),
	}
	tr, err := New(site, provider, append(base, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { tr.Close() })
	return tr
}

func page(html string, headings ...string) content {
	var hs []snapshot.Heading
	for _, h := range headings {
		hs = append(hs, snapshot.Heading{Level: 1, Text: h})
	}
	return content{headings: hs, html: html, text: strings.Join(headings, "\n")}
}

func TestTrackPage_FirstVisit(t *testing.T) {
	site := newSite()
	site.set("https://example.com", page("<h1>News</h1>", "News"))
	tr := newTracker(t, site, kvstore.NewMemory())

	res, err := tr.TrackPage(context.Background(), "https://example.com", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !res.FirstVisit || res.Delta != nil || res.Previous != nil {
		t.Fatalf("got %+v, want first visit without delta", res)
	}
	want := &snapshot.Snapshot{
		ID:        "snap_1",
		URL:       "https://example.com",
		Headings:  []snapshot.Heading{{Level: 1, Text: "News"}},
		HTML:      "<h1>News</h1>",
		Text:      "News",
		FetchedAt: t0.Add(time.Minute),
	}
	if diff := cmp.Diff(want, res.Snapshot); diff != "" {
		t.Fatalf("snapshot (-want +got):\n%s", diff)
	}
}

func TestTrackPage_Unchanged(t *testing.T) {
	site := newSite()
	site.set("https://example.com", page("<h1>News</h1>", "News"))
	tr := newTracker(t, site, kvstore.NewMemory())
	ctx := context.Background()

	first, err := tr.TrackPage(ctx, "https://example.com", Options{})
	if err != nil {
		t.Fatal(err)
	}
	second, err := tr.TrackPage(ctx, "https://example.com", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if second.FirstVisit || second.Delta != nil {
		t.Fatalf("got firstVisit=%v delta=%+v, want unchanged", second.FirstVisit, second.Delta)
	}
	if diff := cmp.Diff(first.Snapshot, second.Previous); diff != "" {
		t.Fatalf("previous (-first +got):\n%s", diff)
	}
	if second.Snapshot.ID == first.Snapshot.ID {
		t.Error("unchanged capture must still be a new snapshot")
	}
}

func TestTrackPage_HeadingsChanged(t *testing.T) {
	site := newSite()
	site.set("https://example.com", page("<p>x</p>", "News"))
	tr := newTracker(t, site, kvstore.NewMemory())
	ctx := context.Background()

	if _, err := tr.TrackPage(ctx, "https://example.com", Options{}); err != nil {
		t.Fatal(err)
	}
	c := page("<p>x</p>", "News")
	c.headings = append(c.headings, snapshot.Heading{Level: 2, Text: "Breaking"})
	c.text = "News"
	site.set("https://example.com", c)

	res, err := tr.TrackPage(ctx, "https://example.com", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Delta == nil || res.Delta.Headings == nil {
		t.Fatalf("expected headings delta, got %+v", res.Delta)
	}
	if res.Delta.HTML != nil || res.Delta.Text != nil {
		t.Errorf("only headings changed, got %+v", res.Delta)
	}
	if got := res.Delta.Headings[0].Added; len(got) != 1 || got[0] != "h2 Breaking" {
		t.Errorf("added: got %v", got)
	}
}

func TestTrackPage_PersistsUnconditionally(t *testing.T) {
	site := newSite()
	site.set("https://example.com", page("<p>v1</p>"))
	mem := kvstore.NewMemory()
	tr := newTracker(t, site, mem)
	ctx := context.Background()

	tr.TrackPage(ctx, "https://example.com", Options{})
	tr.TrackPage(ctx, "https://example.com", Options{})
	site.set("https://example.com", page("<p>v2</p>"))
	res, err := tr.TrackPage(ctx, "https://example.com", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Previous.ID != "snap_2" {
		t.Errorf("previous: got %s, want the unchanged snap_2", res.Previous.ID)
	}
	if got := mem.Len("tracker"); got != 1 {
		t.Errorf("records: got %d, want 1 (overwrite)", got)
	}
}

func TestTrackPage_CorruptRecordIsFirstVisit(t *testing.T) {
	ctx := context.Background()
	site := newSite()
	site.set("https://example.com", page("<p>x</p>"))
	mem := kvstore.NewMemory()
	ns, _ := mem.Namespace(ctx, "tracker", nil)
	ns.Save(ctx, kvstore.Record{Path: snapstore.StorageKey("https://example.com"), DataBase64: "e25vdCBqc29u"})

	tr := newTracker(t, site, mem)
	res, err := tr.TrackPage(ctx, "https://example.com", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !res.FirstVisit {
		t.Fatal("corrupt previous record must read as a first visit")
	}
	again, _ := tr.TrackPage(ctx, "https://example.com", Options{})
	if again.FirstVisit {
		t.Error("corrupt record was not overwritten")
	}
}

func TestTrackPage_Validation(t *testing.T) {
	site := newSite()
	tr := newTracker(t, site, kvstore.NewMemory())
	if _, err := tr.TrackPage(context.Background(), "", Options{}); !errors.Is(err, ErrValidation) {
		t.Errorf("TrackPage(\"\"): got %v, want ErrValidation", err)
	}
	if site.opens != 0 {
		t.Errorf("invalid URLs must not be fetched, opens=%d", site.opens)
	}
}

// WHY: only the empty string is rejected up front; a blank URL is the
// opener's problem and surfaces as a fetch failure.
func TestTrackPage_BlankURLIsFetchError(t *testing.T) {
	site := newSite()
	var attempts int
	site.onOpen = func(string) { attempts++ }
	tr := newTracker(t, site, kvstore.NewMemory())
	for _, u := range []string{"   ", "\t\n"} {
		_, err := tr.TrackPage(context.Background(), u, Options{})
		var fe *FetchError
		if !errors.As(err, &fe) {
			t.Errorf("TrackPage(%q): got %v, want FetchError", u, err)
		}
		if errors.Is(err, ErrValidation) {
			t.Errorf("TrackPage(%q): blank URL must not be a validation error", u)
		}
	}
	if attempts != 2 {
		t.Errorf("open attempts: got %d, want 2", attempts)
	}
}

func TestTrackPage_FetchError(t *testing.T) {
	tr := newTracker(t, newSite(), kvstore.NewMemory())
	_, err := tr.TrackPage(context.Background(), "https://down.example", Options{})
	var fe *FetchError
	if !errors.As(err, &fe) || fe.URL != "https://down.example" {
		t.Fatalf("got %v, want FetchError", err)
	}
}

func TestTrackPage_ClosesOnEveryPath(t *testing.T) {
	site := newSite()
	site.set("https://ok.example", page("<p>x</p>"))
	site.set("https://bad.example", content{htmlErr: errors.New("detached")})
	tr := newTracker(t, site, kvstore.NewMemory())
	ctx := context.Background()

	if _, err := tr.TrackPage(ctx, "https://ok.example", Options{}); err != nil {
		t.Fatal(err)
	}
	_, err := tr.TrackPage(ctx, "https://bad.example", Options{})
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("got %v, want FetchError", err)
	}
	if site.closes != site.opens || site.closes != 2 {
		t.Errorf("opens=%d closes=%d, want 2 and 2", site.opens, site.closes)
	}
}

// failingSave accepts reads and rejects every write.
type failingSave struct{ *kvstore.Memory }

type failingNamespace struct{ kvstore.Namespace }

func (failingNamespace) Save(context.Context, kvstore.Record) error { return errors.New("disk full") }

func (f failingSave) Namespace(ctx context.Context, name string, opts kvstore.Options) (kvstore.Namespace, error) {
	ns, err := f.Memory.Namespace(ctx, name, opts)
	if err != nil {
		return nil, err
	}
	return failingNamespace{ns}, nil
}

func TestTrackPage_StorageWriteErrorPropagates(t *testing.T) {
	site := newSite()
	site.set("https://example.com", page("<p>x</p>"))
	var notified int
	tr := newTracker(t, site, failingSave{kvstore.NewMemory()},
		WithSinks(NewCallbackSink(func(context.Context, *Change) error { notified++; return nil })))

	_, err := tr.TrackPage(context.Background(), "https://example.com", Options{})
	var we *StorageWriteError
	if !errors.As(err, &we) {
		t.Fatalf("got %v, want StorageWriteError", err)
	}
	if we.Key != "tracker/https___example_com.json" {
		t.Errorf("key: got %q", we.Key)
	}
	if site.closes != 1 {
		t.Errorf("page not closed before storage failure")
	}
	if notified != 0 {
		t.Error("sinks notified despite failed write")
	}
}

func TestTrackPage_RefreshOption(t *testing.T) {
	site := newSite()
	site.set("https://example.com", page("<p>x</p>"))
	tr := newTracker(t, site, kvstore.NewMemory())
	ctx := context.Background()

	tr.TrackPage(ctx, "https://example.com", Options{})
	tr.TrackPage(ctx, "https://example.com", Options{NoRefresh: true})
	if !site.opts[0].Refresh || site.opts[1].Refresh {
		t.Errorf("refresh flags: got %+v", site.opts)
	}
}

func TestTrackPage_NoTextCapability(t *testing.T) {
	site := newSite()
	c := page("<p>x</p>", "T")
	c.noText = true
	site.set("https://example.com", c)
	tr := newTracker(t, site, kvstore.NewMemory())

	res, err := tr.TrackPage(context.Background(), "https://example.com", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Snapshot.Text != "" {
		t.Errorf("text: got %q, want empty", res.Snapshot.Text)
	}
}

func TestTrackPage_ScopeIsolation(t *testing.T) {
	site := newSite()
	site.set("https://example.com", page("<p>x</p>"))
	tr := newTracker(t, site, kvstore.NewMemory())
	ctx := context.Background()

	a := Options{Storage: kvstore.Options{kvstore.ScopeKey: "a"}}
	b := Options{Storage: kvstore.Options{kvstore.ScopeKey: "b"}}
	tr.TrackPage(ctx, "https://example.com", a)
	res, err := tr.TrackPage(ctx, "https://example.com", b)
	if err != nil {
		t.Fatal(err)
	}
	if !res.FirstVisit {
		t.Error("scope b must not see scope a snapshots")
	}
}

func TestTrackPage_Sinks(t *testing.T) {
	site := newSite()
	site.set("https://example.com", page("<p>v1</p>"))
	var got []*Change
	tr := newTracker(t, site, kvstore.NewMemory(), WithSinks(
		NewCallbackSink(func(context.Context, *Change) error { return errors.New("sink down") }),
		NewCallbackSink(func(_ context.Context, c *Change) error { got = append(got, c); return nil }),
	))
	ctx := context.Background()

	tr.TrackPage(ctx, "https://example.com", Options{})
	tr.TrackPage(ctx, "https://example.com", Options{})
	site.set("https://example.com", page("<p>v2</p>"))
	res, err := tr.TrackPage(ctx, "https://example.com", Options{})
	if err != nil {
		t.Fatalf("sink failure leaked into result: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("changes delivered: got %d, want 1", len(got))
	}
	if got[0].Delta != res.Delta || got[0].Snapshot != res.Snapshot {
		t.Error("change does not carry the result's delta and snapshot")
	}
}

func TestTrackPages_Mixed(t *testing.T) {
	site := newSite()
	site.set("ok1", page("<p>a</p>"))
	site.set("ok2", page("<p>b</p>"))
	site.set("ok3", page("<p>c</p>"))
	tr := newTracker(t, site, kvstore.NewMemory())
	ctx := context.Background()

	if _, err := tr.TrackPages(ctx, []string{"ok1", "ok2", "ok3"}, Options{}); err != nil {
		t.Fatal(err)
	}
	// ok2 stays the same; ok1 and ok3 change.
	site.set("ok1", page("<p>a2</p>"))
	site.set("ok3", page("<p>c2</p>"))

	urls := []string{"ok1", "broken", "ok2", "ok3"}
	out, err := tr.TrackPages(ctx, urls, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Results) != len(urls) {
		t.Fatalf("results: got %d, want %d", len(out.Results), len(urls))
	}
	for i, u := range urls {
		if out.Results[i].URL != u {
			t.Errorf("results[%d].URL = %q, want %q", i, out.Results[i].URL, u)
		}
	}
	broken := out.Results[1]
	if broken.Error == "" || broken.Snapshot != nil || broken.FirstVisit || broken.Delta != nil {
		t.Errorf("broken item: got %+v, want only URL and Error", broken)
	}
	unchanged := out.Results[2]
	if unchanged.Failed() || unchanged.FirstVisit || unchanged.Delta != nil {
		t.Errorf("ok2: got %+v, want a successful result with no delta", unchanged)
	}
	if len(out.Changes) != 2 || out.Changes[0].URL != "ok1" || out.Changes[1].URL != "ok3" {
		t.Errorf("changes: got %+v, want ok1 then ok3", out.Changes)
	}
}

func TestTrackPages_FirstVisitsAreNotChanges(t *testing.T) {
	site := newSite()
	site.set("a", page("x"))
	tr := newTracker(t, site, kvstore.NewMemory())

	out, err := tr.TrackPages(context.Background(), []string{"a", ""}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Changes) != 0 {
		t.Errorf("changes: got %d, want 0", len(out.Changes))
	}
	if !strings.Contains(out.Results[1].Error, "non-empty URL") {
		t.Errorf("per-item validation: got %q", out.Results[1].Error)
	}
	data, _ := json.Marshal(out)
	if !strings.Contains(string(data), `"changes":[]`) {
		t.Errorf("empty changes must encode as []: %s", data)
	}
}

func TestTrackPages_EmptyInput(t *testing.T) {
	tr := newTracker(t, newSite(), kvstore.NewMemory())
	for _, urls := range [][]string{nil, {}} {
		if _, err := tr.TrackPages(context.Background(), urls, Options{}); !errors.Is(err, ErrValidation) {
			t.Errorf("TrackPages(%v): got %v, want ErrValidation", urls, err)
		}
	}
}

func TestTrackPages_Cancelled(t *testing.T) {
	site := newSite()
	for _, u := range []string{"a", "b", "c"} {
		site.set(u, page("x"))
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	site.onOpen = func(url string) {
		if url == "a" {
			cancel()
		}
	}
	tr := newTracker(t, site, kvstore.NewMemory())

	out, err := tr.TrackPages(ctx, []string{"a", "b", "c"}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Results) != 3 {
		t.Fatalf("results: got %d, want 3", len(out.Results))
	}
	for _, r := range out.Results[1:] {
		if r.Error != context.Canceled.Error() {
			t.Errorf("%s: got error %q, want %q", r.URL, r.Error, context.Canceled)
		}
	}
	if site.opens != 1 {
		t.Errorf("opens after cancel: got %d, want 1", site.opens)
	}
}

func TestTrackResult_FailedJSON(t *testing.T) {
	data, err := json.Marshal(TrackResult{URL: "broken", Error: "boom"})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"url":"broken","error":"boom"}` {
		t.Errorf("got %s", data)
	}
}

func TestNew_NilCollaborators(t *testing.T) {
	if _, err := New(nil, kvstore.NewMemory()); err == nil {
		t.Error("expected error for nil opener")
	}
	if _, err := New(newSite(), nil); err == nil {
		t.Error("expected error for nil provider")
	}
}
