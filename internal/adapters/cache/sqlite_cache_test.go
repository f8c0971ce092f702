package cache

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func newTestSqliteCache(t *testing.T) (*SqliteCache, *time.Time) {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := InitSqliteSchema(db); err != nil {
		t.Fatalf("init schema: %v", err)
	}

	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	c := NewSqliteCache(db)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestSqliteCacheReadWithinTTL(t *testing.T) {
	c, now := newTestSqliteCache(t)
	ctx := context.Background()

	if err := c.Write(ctx, "tt_v4_abs10_flow_ha_shalom_32.064_34.791", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	// Fresh read just inside the TTL.
	*now = now.Add(299 * time.Second)
	payload, ok, err := c.Read(ctx, "tt_v4_abs10_flow_ha_shalom_32.064_34.791", 300*time.Second)
	if err != nil || !ok {
		t.Fatalf("read inside TTL: ok=%v err=%v", ok, err)
	}
	if string(payload) != `{"a":1}` {
		t.Fatalf("payload = %q", payload)
	}

	// Read exactly at the TTL boundary is still fresh.
	*now = now.Add(1 * time.Second)
	if _, ok, _ := c.Read(ctx, "tt_v4_abs10_flow_ha_shalom_32.064_34.791", 300*time.Second); !ok {
		t.Fatal("read at exactly maxAge should hit")
	}

	// One second past the TTL the entry is treated as absent, not as an error.
	*now = now.Add(1 * time.Second)
	_, ok, err = c.Read(ctx, "tt_v4_abs10_flow_ha_shalom_32.064_34.791", 300*time.Second)
	if err != nil {
		t.Fatalf("expired read returned error: %v", err)
	}
	if ok {
		t.Fatal("expired read should miss")
	}
}

func TestSqliteCacheStaleEntryServesLargerMaxAge(t *testing.T) {
	c, now := newTestSqliteCache(t)
	ctx := context.Background()

	if err := c.Write(ctx, "tomtom_batch_v4_abs10_flow", []byte(`{"segments":[]}`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	*now = now.Add(2 * time.Hour)
	if _, ok, _ := c.Read(ctx, "tomtom_batch_v4_abs10_flow", 300*time.Second); ok {
		t.Fatal("2h-old entry should miss at 300s TTL")
	}
	payload, ok, err := c.Read(ctx, "tomtom_batch_v4_abs10_flow", 24*time.Hour)
	if err != nil || !ok {
		t.Fatalf("stale-tolerant read: ok=%v err=%v", ok, err)
	}
	if string(payload) != `{"segments":[]}` {
		t.Fatalf("payload = %q", payload)
	}
}

func TestSqliteCacheMissingKey(t *testing.T) {
	c, _ := newTestSqliteCache(t)

	_, ok, err := c.Read(context.Background(), "nope", time.Minute)
	if err != nil {
		t.Fatalf("missing key returned error: %v", err)
	}
	if ok {
		t.Fatal("missing key should miss")
	}
}

func TestSqliteCacheOverwrite(t *testing.T) {
	c, now := newTestSqliteCache(t)
	ctx := context.Background()

	if err := c.Write(ctx, "k", []byte("v1")); err != nil {
		t.Fatalf("write v1: %v", err)
	}
	*now = now.Add(10 * time.Minute)
	if err := c.Write(ctx, "k", []byte("v2")); err != nil {
		t.Fatalf("write v2: %v", err)
	}

	// The overwrite refreshed the timestamp, so a short TTL still hits.
	payload, ok, err := c.Read(ctx, "k", time.Minute)
	if err != nil || !ok {
		t.Fatalf("read after overwrite: ok=%v err=%v", ok, err)
	}
	if string(payload) != "v2" {
		t.Fatalf("payload = %q, want v2", payload)
	}
}
