// Package cache defines the byte cache shared by checkout idempotency
// replays and positive access decisions.
package cache

import (
	"context"
	"time"
)

// Cache stores opaque values under string keys. Callers namespace their
// keys ("idem:" for replays, "authz:" for decisions) because backends may
// be shared between them.
type Cache interface {
	// Get reports found=false on a miss; err is reserved for backend
	// failures, which callers treat as a miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value for at most ttl. Backends with a fixed TTL (a
	// JetStream KV bucket) may expire entries earlier but never later.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Clear drops every entry. The module host calls it on tenant events.
	Clear(ctx context.Context) error
}
