package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryBackend implements Backend using an in-memory map with TTL-based expiration.
// Expired entries are removed on access. Safe for concurrent use.
type MemoryBackend struct {
	mu   sync.Mutex
	data map[string]memoryEntry
	now  func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		data: make(map[string]memoryEntry),
		now:  time.Now,
	}
}

// Get returns the stored bytes, or ErrNotFound on miss or expiration.
func (c *MemoryBackend) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	if !c.now().Before(entry.expiresAt) {
		delete(c.data, key)
		return nil, ErrNotFound
	}
	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, nil
}

// Set stores value until ttl elapses. Existing entries are replaced.
func (c *MemoryBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stored := make([]byte, len(value))
	copy(stored, value)

	c.mu.Lock()
	c.data[key] = memoryEntry{value: stored, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

func (c *MemoryBackend) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.data, key)
	c.mu.Unlock()
	return nil
}

// Ping always succeeds.
func (c *MemoryBackend) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (c *MemoryBackend) Close() error {
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryBackend) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}
