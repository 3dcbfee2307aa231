package cache

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// maxRelativeExp is the largest expiration memcached treats as relative seconds (30 days).
const maxRelativeExp = 30 * 24 * 60 * 60

// MemcachedOptions configures MemcachedBackend.
type MemcachedOptions struct {
	Addrs        string // comma-separated host:port list
	Timeout      time.Duration
	MaxIdleConns int
}

// MemcachedBackend implements Backend using memcached.
type MemcachedBackend struct {
	client *memcache.Client
}

// NewMemcachedBackend creates a MemcachedBackend. Addrs defaults to localhost:11211; zero
// timeout and idle conns keep the client defaults.
func NewMemcachedBackend(opts MemcachedOptions) *MemcachedBackend {
	servers := parseAddrs(opts.Addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if opts.Timeout > 0 {
		client.Timeout = opts.Timeout
	}
	if opts.MaxIdleConns > 0 {
		client.MaxIdleConns = opts.MaxIdleConns
	}
	return &MemcachedBackend{client: client}
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

// memcacheKey escapes characters memcached rejects in keys (spaces, control characters).
func memcacheKey(k string) string {
	return url.PathEscape(k)
}

func (c *MemcachedBackend) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	item, err := c.client.Get(memcacheKey(key))
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return item.Value, nil
}

// Set stores value with a relative expiration. TTLs memcached cannot express as relative
// seconds are clamped to one hour.
func (c *MemcachedBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	expSec := int32(ttl.Seconds())
	if expSec <= 0 || expSec > maxRelativeExp {
		expSec = 3600
	}
	return c.client.Set(&memcache.Item{
		Key:        memcacheKey(key),
		Value:      value,
		Expiration: expSec,
	})
}

func (c *MemcachedBackend) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := c.client.Delete(memcacheKey(key))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil
	}
	return err
}

// Ping checks if memcached is reachable. Used for health checks.
func (c *MemcachedBackend) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.client.Ping()
}

// Close closes the memcached client connections. Call during shutdown.
func (c *MemcachedBackend) Close() error {
	return c.client.Close()
}
