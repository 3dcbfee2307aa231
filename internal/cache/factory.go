package cache

import "fmt"

const (
	BackendRedis     = "redis"
	BackendMemcached = "memcached"
	BackendMemory    = "in_memory"
)

// BackendConfig selects and configures a Backend.
type BackendConfig struct {
	Type      string
	Redis     RedisOptions
	Memcached MemcachedOptions
}

// NewBackend builds the backend named by cfg.Type. Empty defaults to redis.
func NewBackend(cfg BackendConfig) (Backend, error) {
	switch cfg.Type {
	case "", BackendRedis:
		return NewRedisBackend(cfg.Redis), nil
	case BackendMemcached:
		return NewMemcachedBackend(cfg.Memcached), nil
	case BackendMemory:
		return NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unsupported cache backend %q", cfg.Type)
	}
}
