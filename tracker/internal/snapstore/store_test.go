package snapstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/hazyhaar/pagetrack/kvstore"
	"github.com/hazyhaar/pagetrack/snapshot"
)

func TestStorageKey(t *testing.T) {
	tests := []struct {
		url, want string
	}{
		{"https://example.com/a?b=1", "tracker/https___example_com_a_b_1.json"},
		{"ABCxyz019", "tracker/ABCxyz019.json"},
		{"", "tracker/.json"},
		{"https://例え.jp", "tracker/https______jp.json"},
	}
	for _, tt := range tests {
		if got := StorageKey(tt.url); got != tt.want {
			t.Errorf("StorageKey(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestStorageKey_Deterministic(t *testing.T) {
	u := "https://example.com/path?q=été"
	if StorageKey(u) != StorageKey(u) {
		t.Fatal("StorageKey not deterministic")
	}
}

func TestStorageKey_KnownCollision(t *testing.T) {
	// Distinct URLs, same slot: an accepted limitation.
	if StorageKey("https://a.b/c") != StorageKey("https://a_b/c") {
		t.Fatal("expected sanitized keys to collide")
	}
}

func sampleSnapshot() *snapshot.Snapshot {
	return &snapshot.Snapshot{
		ID:        "snap-1",
		URL:       "https://example.com",
		Headings:  []snapshot.Heading{{Level: 1, Text: "Café ☕"}},
		HTML:      "<h1>Café ☕</h1>",
		Text:      "Café ☕",
		FetchedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestWriteThenRead(t *testing.T) {
	ctx := context.Background()
	s := New(kvstore.NewMemory())

	want := sampleSnapshot()
	if err := s.WriteSnapshot(ctx, want.URL, want, nil); err != nil {
		t.Fatal(err)
	}
	got, ok := s.ReadPrevious(ctx, want.URL, nil)
	if !ok {
		t.Fatal("expected previous snapshot")
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestReadPrevious_Missing(t *testing.T) {
	s := New(kvstore.NewMemory())
	if snap, ok := s.ReadPrevious(context.Background(), "https://never.seen", nil); ok || snap != nil {
		t.Fatalf("expected absent, got %+v", snap)
	}
}

func TestReadPrevious_CorruptRecordsAreAbsent(t *testing.T) {
	ctx := context.Background()
	payloads := map[string]string{
		"empty payload":  "",
		"invalid base64": "%%%not-base64%%%",
		"not json":       "bm90IGpzb24=", // "not json"
		"truncated json": "eyJ1cmwiOiJo", // `{"url":"h`
		"json null":      "bnVsbA==",     // "null"
	}
	for name, payload := range payloads {
		mem := kvstore.NewMemory()
		ns, _ := mem.Namespace(ctx, DefaultNamespace, nil)
		url := "https://example.com/" + name
		if err := ns.Save(ctx, kvstore.Record{Path: StorageKey(url), DataBase64: payload}); err != nil {
			t.Fatal(err)
		}
		s := New(mem)
		if snap, ok := s.ReadPrevious(ctx, url, nil); ok || snap != nil {
			t.Errorf("%s: expected absent, got %+v", name, snap)
		}
	}
}

type failingProvider struct{ err error }

func (f failingProvider) Namespace(context.Context, string, kvstore.Options) (kvstore.Namespace, error) {
	return failingNamespace(f), nil
}

type failingNamespace struct{ err error }

func (f failingNamespace) Read(context.Context, string) (*kvstore.Record, error) { return nil, f.err }
func (f failingNamespace) Save(context.Context, kvstore.Record) error          { return f.err }

func TestReadPrevious_ReadErrorIsAbsent(t *testing.T) {
	s := New(failingProvider{err: errors.New("backend down")})
	if _, ok := s.ReadPrevious(context.Background(), "https://x", nil); ok {
		t.Fatal("expected absent on read error")
	}
}

func TestWriteSnapshot_ErrorPropagates(t *testing.T) {
	boom := errors.New("disk full")
	s := New(failingProvider{err: boom})
	err := s.WriteSnapshot(context.Background(), "https://x", sampleSnapshot(), nil)
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want wrapped %v", err, boom)
	}
}

func TestWriteSnapshot_Overwrites(t *testing.T) {
	ctx := context.Background()
	mem := kvstore.NewMemory()
	s := New(mem)

	first := sampleSnapshot()
	second := sampleSnapshot()
	second.ID = "snap-2"
	second.Text = "changed"

	if err := s.WriteSnapshot(ctx, first.URL, first, nil); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteSnapshot(ctx, second.URL, second, nil); err != nil {
		t.Fatal(err)
	}
	got, ok := s.ReadPrevious(ctx, first.URL, nil)
	if !ok || got.ID != "snap-2" {
		t.Fatalf("expected latest snapshot, got %+v", got)
	}
	if n := mem.Len(DefaultNamespace); n != 1 {
		t.Fatalf("records: got %d, want 1", n)
	}
}

func TestStore_NamespaceAndScope(t *testing.T) {
	ctx := context.Background()
	mem := kvstore.NewMemory()
	s := New(mem, WithNamespace("pages"))
	snap := sampleSnapshot()

	if err := s.WriteSnapshot(ctx, snap.URL, snap, kvstore.Options{kvstore.ScopeKey: "team"}); err != nil {
		t.Fatal(err)
	}
	if mem.Len("pages@team") != 1 {
		t.Fatal("expected record in scoped namespace")
	}
	if _, ok := s.ReadPrevious(ctx, snap.URL, nil); ok {
		t.Fatal("unscoped read must not see scoped record")
	}
	if _, ok := s.ReadPrevious(ctx, snap.URL, kvstore.Options{kvstore.ScopeKey: "team"}); !ok {
		t.Fatal("scoped read should see record")
	}
}
