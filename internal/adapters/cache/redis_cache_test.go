package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisCache(t *testing.T) (*RedisCache, *time.Time) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	c := NewRedisCache(client)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestRedisCacheRoundTrip(t *testing.T) {
	c, now := newTestRedisCache(t)
	ctx := context.Background()

	if err := c.Write(ctx, "tomtom_batch_v4_abs10_flow", []byte(`{"source_id":"tomtom_flow_v4"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	payload, ok, err := c.Read(ctx, "tomtom_batch_v4_abs10_flow", 300*time.Second)
	if err != nil || !ok {
		t.Fatalf("read: ok=%v err=%v", ok, err)
	}
	if string(payload) != `{"source_id":"tomtom_flow_v4"}` {
		t.Fatalf("payload = %q", payload)
	}

	*now = now.Add(301 * time.Second)
	if _, ok, _ := c.Read(ctx, "tomtom_batch_v4_abs10_flow", 300*time.Second); ok {
		t.Fatal("expired read should miss")
	}

	// The same entry still serves a stale-tolerant reader.
	if _, ok, _ := c.Read(ctx, "tomtom_batch_v4_abs10_flow", 24*time.Hour); !ok {
		t.Fatal("stale-tolerant read should hit")
	}
}

func TestRedisCacheMissingKey(t *testing.T) {
	c, _ := newTestRedisCache(t)

	_, ok, err := c.Read(context.Background(), "nope", time.Minute)
	if err != nil {
		t.Fatalf("missing key returned error: %v", err)
	}
	if ok {
		t.Fatal("missing key should miss")
	}
}
