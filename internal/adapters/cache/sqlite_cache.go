package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"traffic-probe-service/internal/domain"
)

// SQLite-backed key/value cache with a recorded write timestamp.
// Entries are written in one statement, so a concurrent reader sees either
// the prior entry or the new one, never a partial write. Concurrent writers
// to the same key are last-write-wins.
type SqliteCache struct {
	DB *sql.DB

	now func() time.Time
}

func NewSqliteCache(db *sql.DB) *SqliteCache {
	return &SqliteCache{DB: db, now: time.Now}
}

// InitSqliteSchema creates the cache table.
func InitSqliteSchema(db *sql.DB) error {
	if db == nil {
		return errors.New("init cache schema: DB is nil")
	}

	q := `
	CREATE TABLE IF NOT EXISTS flow_cache (
        key TEXT PRIMARY KEY,
        written_at INTEGER NOT NULL,
        payload BLOB NOT NULL
    );
	`
	if _, err := db.Exec(q); err != nil {
		return fmt.Errorf("init cache schema: %w", err)
	}
	return nil
}

// Write stores payload under key, overwriting any prior entry.
func (s *SqliteCache) Write(ctx context.Context, key string, payload []byte) error {
	if s.DB == nil {
		return &domain.StorageError{Op: "write", Key: key, Err: errors.New("db is nil")}
	}
	if key == "" {
		return &domain.StorageError{Op: "write", Key: key, Err: errors.New("key must be non-empty")}
	}

	q := `
	INSERT OR REPLACE INTO flow_cache (key, written_at, payload)
    VALUES (?, ?, ?);
	`
	if _, err := s.DB.ExecContext(ctx, q, key, s.now().Unix(), payload); err != nil {
		return &domain.StorageError{Op: "write", Key: key, Err: err}
	}
	return nil
}

// Read returns the payload when the entry's age is at most maxAge.
// Expired entries stay on disk for stale-tolerant reads with a larger maxAge.
func (s *SqliteCache) Read(ctx context.Context, key string, maxAge time.Duration) ([]byte, bool, error) {
	if s.DB == nil {
		return nil, false, &domain.StorageError{Op: "read", Key: key, Err: errors.New("db is nil")}
	}

	q := `
	SELECT written_at, payload
    FROM flow_cache
    WHERE key = ?;
	`
	var writtenAt int64
	var payload []byte
	err := s.DB.QueryRowContext(ctx, q, key).Scan(&writtenAt, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &domain.StorageError{Op: "read", Key: key, Err: err}
	}

	if s.now().Unix()-writtenAt > int64(maxAge.Seconds()) {
		return nil, false, nil
	}
	return payload, true, nil
}
