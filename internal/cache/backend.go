// Package cache implements the cache store: byte-level backends (in-memory, memcached, redis)
// and a typed WeatherRecord store over them.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Backend.Get when the key is absent or expired.
var ErrNotFound = errors.New("cache: key not found")

// Backend is a key-value store with per-key TTL. Implementations must be safe for concurrent use.
// Delete of a missing key is not an error.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}
