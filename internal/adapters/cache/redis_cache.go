package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"traffic-probe-service/internal/domain"
)

// Entries carry their own write timestamp instead of a Redis TTL because the
// read contract takes the max age at read time: the same entry must serve a
// 5-minute fresh read and a 24-hour stale-fallback read. A hard expiry evicts
// entries no stale-tolerant reader would accept anymore.
const redisHardExpiry = 48 * time.Hour

type redisEnvelope struct {
	Ts      int64  `json:"ts"`
	Payload []byte `json:"payload"`
}

// Redis-backed key/value cache with a recorded write timestamp.
type RedisCache struct {
	Client *redis.Client

	now func() time.Time
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{Client: client, now: time.Now}
}

func (s *RedisCache) Write(ctx context.Context, key string, payload []byte) error {
	if s.Client == nil {
		return &domain.StorageError{Op: "write", Key: key, Err: errors.New("client is nil")}
	}
	if key == "" {
		return &domain.StorageError{Op: "write", Key: key, Err: errors.New("key must be non-empty")}
	}

	env := redisEnvelope{Ts: s.now().Unix(), Payload: payload}
	b, err := json.Marshal(env)
	if err != nil {
		return &domain.StorageError{Op: "write", Key: key, Err: err}
	}

	if err := s.Client.Set(ctx, key, b, redisHardExpiry).Err(); err != nil {
		return &domain.StorageError{Op: "write", Key: key, Err: err}
	}
	return nil
}

func (s *RedisCache) Read(ctx context.Context, key string, maxAge time.Duration) ([]byte, bool, error) {
	if s.Client == nil {
		return nil, false, &domain.StorageError{Op: "read", Key: key, Err: errors.New("client is nil")}
	}

	b, err := s.Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &domain.StorageError{Op: "read", Key: key, Err: err}
	}

	var env redisEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, false, &domain.StorageError{Op: "read", Key: key, Err: err}
	}

	if s.now().Unix()-env.Ts > int64(maxAge.Seconds()) {
		return nil, false, nil
	}
	return env.Payload, true, nil
}
