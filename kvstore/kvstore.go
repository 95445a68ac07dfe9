// Package kvstore is the key-value storage collaborator used by pagetrack.
// A Provider hands out named Namespaces; a Namespace reads and saves
// base64-encoded records by path.
//
// Three backends are provided: Memory (tests, one-shot runs), SQLite
// (durable, single file) and Dir (one file per record). Callers depend on
// the Provider interface only, so the backend is a startup-time decision.
package kvstore

import (
	"context"
	"errors"
	"strings"
)

// Record is a single stored payload. DataBase64 is opaque to the store.
type Record struct {
	Path       string `json:"path"`
	DataBase64 string `json:"dataBase64"`
}

// Options is the open-ended pass-through bag forwarded by callers. The only
// key backends interpret is ScopeKey.
type Options map[string]string

// ScopeKey partitions a namespace: name "tracker" with scope "acme" is
// stored as "tracker@acme".
const ScopeKey = "scope"

// Namespace reads and saves records under one namespace.
type Namespace interface {
	// Read returns the record at path, or (nil, nil) when none exists.
	Read(ctx context.Context, path string) (*Record, error)
	// Save overwrites the record at rec.Path.
	Save(ctx context.Context, rec Record) error
}

// Provider resolves namespaces by name.
type Provider interface {
	Namespace(ctx context.Context, name string, opts Options) (Namespace, error)
}

// ErrEmptyPath is returned when a record path is empty.
var ErrEmptyPath = errors.New("kvstore: empty path")

// ErrEmptyNamespace is returned when a namespace name is empty.
var ErrEmptyNamespace = errors.New("kvstore: empty namespace")

// ResolveName applies the scope option to a namespace name.
func ResolveName(name string, opts Options) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyNamespace
	}
	if scope := strings.TrimSpace(opts[ScopeKey]); scope != "" {
		return name + "@" + scope, nil
	}
	return name, nil
}
