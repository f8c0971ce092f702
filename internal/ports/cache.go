package ports

import (
	"context"
	"time"
)

// Port: key/value persistence with a recorded write timestamp and an
// age-based read contract. Payloads are opaque to the store.
type Cache interface {
	// Write stores payload under key with the current timestamp, replacing
	// any prior entry. The write is atomic from the caller's perspective.
	Write(ctx context.Context, key string, payload []byte) error

	// Read returns the payload only when an entry exists and its age is at
	// most maxAge. A missing or expired entry is (nil, false, nil): absence
	// is a normal outcome driving cache-miss logic upstream, not an error.
	Read(ctx context.Context, key string, maxAge time.Duration) ([]byte, bool, error)
}
