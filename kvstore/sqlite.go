package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/pagetrack/dbopen"
)

// Schema for the kv_records table.
const Schema = `
CREATE TABLE IF NOT EXISTS kv_records (
	namespace   TEXT NOT NULL,
	path        TEXT NOT NULL,
	data_base64 TEXT NOT NULL,
	updated_at  INTEGER NOT NULL,
	PRIMARY KEY (namespace, path)
);
`

// SQLite is a Provider backed by a single kv_records table.
type SQLite struct {
	db *sql.DB
}

// NewSQLite wraps an open database and ensures the schema exists.
func NewSQLite(db *sql.DB) (*SQLite, error) {
	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("kvstore: sqlite schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// OpenSQLite opens (or creates) the database file at path with dbopen and
// returns a provider over it. Close the provider to release the file.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := dbopen.Open(path, Schema)
	if err != nil {
		return nil, fmt.Errorf("kvstore: open sqlite: %w", err)
	}
	return &SQLite{db: db}, nil
}

// DB returns the underlying database so other tables can share the file.
func (s *SQLite) DB() *sql.DB { return s.db }

// Close closes the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Namespace(_ context.Context, name string, opts Options) (Namespace, error) {
	resolved, err := ResolveName(name, opts)
	if err != nil {
		return nil, err
	}
	return &sqliteNamespace{db: s.db, name: resolved}, nil
}

type sqliteNamespace struct {
	db   *sql.DB
	name string
}

func (n *sqliteNamespace) Read(ctx context.Context, path string) (*Record, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	var data string
	err := n.db.QueryRowContext(ctx,
		`SELECT data_base64 FROM kv_records WHERE namespace = ? AND path = ?`,
		n.name, path).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("kvstore: sqlite read %s: %w", path, err)
	}
	return &Record{Path: path, DataBase64: data}, nil
}

func (n *sqliteNamespace) Save(ctx context.Context, rec Record) error {
	if rec.Path == "" {
		return ErrEmptyPath
	}
	_, err := dbopen.Exec(ctx, n.db, `
		INSERT INTO kv_records (namespace, path, data_base64, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(namespace, path) DO UPDATE SET
			data_base64 = excluded.data_base64,
			updated_at  = excluded.updated_at`,
		n.name, rec.Path, rec.DataBase64, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("kvstore: sqlite save %s: %w", rec.Path, err)
	}
	return nil
}
