// Package cache provides TTL caches that can be injected into the components that need to persist fetched data.
package cache

import (
	"context"
	"time"
)

// A key-value cache whose entries expire after a TTL.
type Cache interface {
	// Returns the value stored for `key`, and whether it was found and has not expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Stores `value` for `key`. A zero or negative `ttl` means the entry never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Removes the entry for `key`, if any.
	Invalidate(ctx context.Context, key string) error
}
