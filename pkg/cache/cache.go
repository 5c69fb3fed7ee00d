// Package cache provides byte-oriented caching for effect results.
//
// Applying an effect to an image is deterministic: the same input bytes and
// the same effect always produce the same output. The effect pipeline uses
// this package to skip recomputation when a user re-applies an effect to a
// state already seen (for example after undo followed by the same filter).
//
// # Backends
//
//   - [NullCache]: caching disabled
//   - [FileCache]: one file per entry under a directory, for CLI usage
//   - [RedisCache]: shared cache for multi-instance API deployments
//
// # Keys
//
// Keys are built by a [Keyer] so every backend shares one format. Wrap a
// keyer with [NewScopedKeyer] to isolate tenants.
package cache

import (
	"context"
	"time"
)

// Cache stores opaque byte values with an optional TTL.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the value and true on a hit, or nil and false on a miss.
	// Expired entries are reported as misses.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of 0 means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Default TTLs.
const (
	// TTLEffect is how long computed effect results are kept.
	TTLEffect = 24 * time.Hour
)
