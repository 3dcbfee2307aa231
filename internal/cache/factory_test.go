package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBackend(t *testing.T) {
	tests := []struct {
		name    string
		cfg     BackendConfig
		want    interface{}
		wantErr bool
	}{
		{name: "default is redis", cfg: BackendConfig{}, want: &RedisBackend{}},
		{name: "redis", cfg: BackendConfig{Type: BackendRedis, Redis: RedisOptions{Addr: "localhost:6390"}}, want: &RedisBackend{}},
		{name: "memcached", cfg: BackendConfig{Type: BackendMemcached}, want: &MemcachedBackend{}},
		{name: "in memory", cfg: BackendConfig{Type: BackendMemory}, want: &MemoryBackend{}},
		{name: "unknown", cfg: BackendConfig{Type: "etcd"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewBackend(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, got)
			_ = got.Close()
		})
	}
}

func TestMemcacheKey_EscapesSpaces(t *testing.T) {
	assert.Equal(t, "weather:city:new%20york", memcacheKey("weather:city:new york"))
	assert.Equal(t, "weather:coords:40.71,-74.01", memcacheKey("weather:coords:40.71,-74.01"))
}
