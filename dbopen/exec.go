package dbopen

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// execAttempts bounds Exec. busy_timeout already waits inside SQLite; the
// retries cover a second pagetrack process holding the write lock longer.
const execAttempts = 3

// Exec runs a write statement, retrying with 100/200 ms pauses while the
// database reports SQLITE_BUSY or SQLITE_LOCKED.
func Exec(ctx context.Context, db *sql.DB, query string, args ...any) (sql.Result, error) {
	var err error
	for i := range execAttempts {
		var res sql.Result
		if res, err = db.ExecContext(ctx, query, args...); err == nil {
			return res, nil
		}
		if !isBusy(err) || i == execAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("dbopen: exec: %w", ctx.Err())
		case <-time.After(time.Duration(100*(i+1)) * time.Millisecond):
		}
	}
	return nil, err
}

// isBusy reports whether err carries a busy or locked result code. Extended
// codes (SQLITE_BUSY_SNAPSHOT, ...) are masked down to their primary code.
func isBusy(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}
