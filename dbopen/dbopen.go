// Package dbopen opens the SQLite file pagetrack keeps its snapshots and
// page registry in. Pragmas travel in the DSN so every pooled connection
// gets them, not just the first:
//
//	foreign_keys = ON
//	journal_mode = WAL
//	busy_timeout = 10000
//	synchronous  = NORMAL
//
// Usage:
//
//	db, err := dbopen.Open("data/pagetrack.db", kvstore.Schema)
//
// In tests:
//
//	db := dbopen.OpenMemory(t)
package dbopen

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

// BusyTimeout is the busy_timeout pragma, in milliseconds.
const BusyTimeout = 10_000

var pragmas = []string{
	"foreign_keys(1)",
	"journal_mode(WAL)",
	fmt.Sprintf("busy_timeout(%d)", BusyTimeout),
	"synchronous(NORMAL)",
}

// DSN returns the modernc.org/sqlite data source name for path with the
// pagetrack pragmas attached.
func DSN(path string) string {
	q := url.Values{"_pragma": pragmas}
	return "file:" + path + "?" + q.Encode()
}

// Open opens (or creates) the database at path, creating parent
// directories, and runs each schema statement in order.
func Open(path string, schemas ...string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("dbopen: mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("dbopen: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("dbopen: ping %s: %w", path, err)
	}
	for _, s := range schemas {
		if _, err := db.Exec(s); err != nil {
			db.Close()
			return nil, fmt.Errorf("dbopen: schema: %w", err)
		}
	}
	return db, nil
}

// OpenMemory opens an in-memory database for tests and closes it on cleanup.
// The pool is pinned to one connection: every ":memory:" connection is a
// separate database.
func OpenMemory(t testing.TB, schemas ...string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", DSN(":memory:"))
	if err != nil {
		t.Fatalf("dbopen.OpenMemory: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	for _, s := range schemas {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("dbopen.OpenMemory: schema: %v", err)
		}
	}
	return db
}
