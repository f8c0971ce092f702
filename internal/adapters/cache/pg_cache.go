package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"traffic-probe-service/internal/domain"
)

// Postgres-backed key/value cache with a recorded write timestamp.
// Used when two collectors on different hosts share cache state; the upsert
// keeps concurrent same-key writers last-write-wins, matching the SQLite
// adapter's contract.
type PGCache struct {
	DB *sql.DB

	now func() time.Time
}

func NewPGCache(db *sql.DB) *PGCache {
	return &PGCache{DB: db, now: time.Now}
}

// InitPGSchema creates the cache table.
func InitPGSchema(db *sql.DB) error {
	if db == nil {
		return errors.New("init cache schema: DB is nil")
	}

	q := `
	CREATE TABLE IF NOT EXISTS flow_cache (
        key TEXT PRIMARY KEY,
        written_at BIGINT NOT NULL,
        payload BYTEA NOT NULL
    );
	`
	if _, err := db.Exec(q); err != nil {
		return fmt.Errorf("init cache schema: %w", err)
	}
	return nil
}

func (s *PGCache) Write(ctx context.Context, key string, payload []byte) error {
	if s.DB == nil {
		return &domain.StorageError{Op: "write", Key: key, Err: errors.New("db is nil")}
	}
	if key == "" {
		return &domain.StorageError{Op: "write", Key: key, Err: errors.New("key must be non-empty")}
	}

	q := `
	INSERT INTO flow_cache (key, written_at, payload)
    VALUES ($1, $2, $3)
	ON CONFLICT (key) DO UPDATE
	SET written_at = EXCLUDED.written_at,
		payload = EXCLUDED.payload;
	`
	if _, err := s.DB.ExecContext(ctx, q, key, s.now().Unix(), payload); err != nil {
		return &domain.StorageError{Op: "write", Key: key, Err: err}
	}
	return nil
}

func (s *PGCache) Read(ctx context.Context, key string, maxAge time.Duration) ([]byte, bool, error) {
	if s.DB == nil {
		return nil, false, &domain.StorageError{Op: "read", Key: key, Err: errors.New("db is nil")}
	}

	q := `
	SELECT written_at, payload
    FROM flow_cache
    WHERE key = $1;
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
