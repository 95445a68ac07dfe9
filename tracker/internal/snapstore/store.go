// Package snapstore reads and writes the latest snapshot of a URL through a
// kvstore namespace. Records travel as base64 over the codec byte-string.
package snapstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/pagetrack/kvstore"
	"github.com/hazyhaar/pagetrack/snapshot"
	"github.com/hazyhaar/pagetrack/tracker/internal/codec"
)

// DefaultNamespace is the storage namespace snapshots live in.
const DefaultNamespace = "tracker"

// Store is the snapshot access pattern over a storage provider.
type Store struct {
	provider  kvstore.Provider
	namespace string
	logger    *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithNamespace overrides DefaultNamespace.
func WithNamespace(name string) Option {
	return func(s *Store) { s.namespace = name }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates a Store over provider.
func New(provider kvstore.Provider, opts ...Option) *Store {
	s := &Store{
		provider:  provider,
		namespace: DefaultNamespace,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ReadPrevious returns the last snapshot persisted for url. The boolean is
// false when there is none or when it cannot be read back; a missing,
// truncated or corrupt record is indistinguishable from a first visit.
func (s *Store) ReadPrevious(ctx context.Context, url string, opts kvstore.Options) (*snapshot.Snapshot, bool) {
	key := StorageKey(url)
	snap, err := s.read(ctx, key, opts)
	if err != nil {
		s.logger.Debug("snapstore: previous snapshot unreadable",
			"url", url, "key", key, "error", err)
		return nil, false
	}
	if snap == nil {
		return nil, false
	}
	return snap, true
}

func (s *Store) read(ctx context.Context, key string, opts kvstore.Options) (*snapshot.Snapshot, error) {
	ns, err := s.provider.Namespace(ctx, s.namespace, opts)
	if err != nil {
		return nil, fmt.Errorf("namespace: %w", err)
	}
	rec, err := ns.Read(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	if rec == nil || rec.DataBase64 == "" {
		return nil, nil
	}
	bin, err := codec.DecodeASCII(rec.DataBase64)
	if err != nil {
		return nil, err
	}
	snap, err := snapshot.UnmarshalSnapshot([]byte(codec.Decode(bin)))
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	return snap, nil
}

// WriteSnapshot persists snap as the latest snapshot of url, replacing any
// previous record.
func (s *Store) WriteSnapshot(ctx context.Context, url string, snap *snapshot.Snapshot, opts kvstore.Options) error {
	key := StorageKey(url)
	if snap == nil {
		snap = &snapshot.Snapshot{}
	}
	data, err := snapshot.MarshalSnapshot(snap)
	if err != nil {
		return fmt.Errorf("snapstore: marshal: %w", err)
	}
	payload, err := codec.EncodeASCII(codec.Encode(string(data)))
	if err != nil {
		return fmt.Errorf("snapstore: encode: %w", err)
	}
	ns, err := s.provider.Namespace(ctx, s.namespace, opts)
	if err != nil {
		return fmt.Errorf("snapstore: namespace: %w", err)
	}
	if err := ns.Save(ctx, kvstore.Record{Path: key, DataBase64: payload}); err != nil {
		return fmt.Errorf("snapstore: save %s: %w", key, err)
	}
	return nil
}
