package config

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hazyhaar/pagetrack/dbopen"
)

// PagesSchema for the tracked_pages table.
const PagesSchema = `
CREATE TABLE IF NOT EXISTS tracked_pages (
	url        TEXT PRIMARY KEY,
	status     TEXT NOT NULL DEFAULT 'active',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// DBPage is a row from the tracked_pages table.
type DBPage struct {
	URL       string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EnsurePagesSchema creates tracked_pages if missing.
func EnsurePagesSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, PagesSchema); err != nil {
		return fmt.Errorf("config: pages schema: %w", err)
	}
	return nil
}

// LoadPages reads all active pages, oldest first.
func LoadPages(ctx context.Context, db *sql.DB) ([]DBPage, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT url, status, created_at, updated_at
		FROM tracked_pages
		WHERE status = 'active'
		ORDER BY created_at, url
	`)
	if err != nil {
		return nil, fmt.Errorf("config: load pages: %w", err)
	}
	defer rows.Close()

	var pages []DBPage
	for rows.Next() {
		var p DBPage
		var created, updated int64
		if err := rows.Scan(&p.URL, &p.Status, &created, &updated); err != nil {
			return nil, fmt.Errorf("config: scan page: %w", err)
		}
		p.CreatedAt = time.UnixMilli(created).UTC()
		p.UpdatedAt = time.UnixMilli(updated).UTC()
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// SavePage inserts url or updates its status. status is "active" or
// "paused".
func SavePage(ctx context.Context, db *sql.DB, url, status string) error {
	if status != "active" && status != "paused" {
		return fmt.Errorf("config: unknown page status %q", status)
	}
	now := time.Now().UnixMilli()
	_, err := dbopen.Exec(ctx, db, `
		INSERT INTO tracked_pages (url, status, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			status     = excluded.status,
			updated_at = excluded.updated_at`,
		url, status, now, now)
	if err != nil {
		return fmt.Errorf("config: save page %s: %w", url, err)
	}
	return nil
}
