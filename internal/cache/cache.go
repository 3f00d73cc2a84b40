package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite stores entries in a single cache_entries table. Reads and writes use
// separate handles; the writer is limited to one connection.
type SQLite struct {
	readDB  *sql.DB
	writeDB *sql.DB
}

func Open(dbPath string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}

	writeDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening write db: %w", err)
	}
	writeDB.SetMaxOpenConns(1)

	readDB, err := sql.Open("sqlite", dbPath+"?mode=ro")
	if err != nil {
		writeDB.Close()
		return nil, fmt.Errorf("opening read db: %w", err)
	}

	c := &SQLite{readDB: readDB, writeDB: writeDB}
	if err := c.init(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *SQLite) init() error {
	_, err := c.writeDB.Exec(`
		CREATE TABLE IF NOT EXISTS cache_entries (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			expires_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_cache_entries_expires_at ON cache_entries(expires_at);
	`)
	if err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

func (c *SQLite) Close() error {
	var errs []error
	if c.readDB != nil {
		errs = append(errs, c.readDB.Close())
	}
	if c.writeDB != nil {
		errs = append(errs, c.writeDB.Close())
	}
	return errors.Join(errs...)
}

func (c *SQLite) Get(ctx context.Context, key string) (Entry, bool, error) {
	var (
		e       Entry
		value   string
		expires int64
	)
	err := c.readDB.QueryRowContext(ctx,
		"SELECT key, value, expires_at FROM cache_entries WHERE key = ?", key,
	).Scan(&e.Key, &value, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("reading entry %s: %w", key, err)
	}
	e.Value = []byte(value)
	e.ExpiresAt = time.UnixMilli(expires)
	return e, true, nil
}

func (c *SQLite) Put(ctx context.Context, e Entry) error {
	_, err := c.writeDB.ExecContext(ctx, `
		INSERT INTO cache_entries (key, value, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			expires_at = excluded.expires_at
	`, e.Key, string(e.Value), e.ExpiresAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("upserting entry %s: %w", e.Key, err)
	}
	return nil
}

func (c *SQLite) DeleteIfExpired(ctx context.Context, key string, now time.Time) error {
	_, err := c.writeDB.ExecContext(ctx,
		"DELETE FROM cache_entries WHERE key = ? AND expires_at < ?", key, now.UnixMilli())
	if err != nil {
		return fmt.Errorf("deleting entry %s: %w", key, err)
	}
	return nil
}

// DeleteExpired removes every entry whose expiry is before now.
func (c *SQLite) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := c.writeDB.ExecContext(ctx, "DELETE FROM cache_entries WHERE expires_at < ?", now.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("deleting expired entries: %w", err)
	}
	return res.RowsAffected()
}

func (c *SQLite) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := c.readDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM cache_entries").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting entries: %w", err)
	}
	return n, nil
}

// Stats returns the entry count and the on-disk size of the database file.
func (c *SQLite) Stats(ctx context.Context, dbPath string) (int64, int64, error) {
	count, err := c.Count(ctx)
	if err != nil {
		return 0, 0, err
	}
	info, err := os.Stat(dbPath)
	if err != nil {
		return count, 0, fmt.Errorf("stat %s: %w", dbPath, err)
	}
	return count, info.Size(), nil
}
