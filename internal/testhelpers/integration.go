//go:build integration
// +build integration

package testhelpers

import (
	"context"
	"os"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/kjstillabower/weather-cache-proxy/internal/cache"
	"github.com/kjstillabower/weather-cache-proxy/internal/client"
	"github.com/kjstillabower/weather-cache-proxy/internal/service"
)

// IntegrationTestConfig holds configuration for tests against the live provider.
type IntegrationTestConfig struct {
	APIKey        string
	CacheBackend  string // redis, memcached or in_memory
	RedisAddr     string
	MemcachedAddr string
}

// GetIntegrationConfig loads integration configuration from the environment.
// Skips the test when WEATHER_API_KEY is not set.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	t.Helper()
	apiKey := os.Getenv("WEATHER_API_KEY")
	if apiKey == "" {
		t.Skip("WEATHER_API_KEY not set, skipping integration test")
	}
	cfg := IntegrationTestConfig{
		APIKey:        apiKey,
		CacheBackend:  os.Getenv("INTEGRATION_CACHE_BACKEND"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		MemcachedAddr: os.Getenv("MEMCACHED_ADDRS"),
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = cache.BackendMemory
	}
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = "localhost:6379"
	}
	if cfg.MemcachedAddr == "" {
		cfg.MemcachedAddr = "localhost:11211"
	}
	return cfg
}

// SetupIntegrationService builds a service over the live provider and the configured backend.
// An unreachable backend falls back to in-memory so provider tests still run.
func SetupIntegrationService(t *testing.T, cfg IntegrationTestConfig) (*service.WeatherService, *cache.Store) {
	t.Helper()
	logger := zaptest.NewLogger(t)

	weatherClient, err := client.NewOpenWeatherClient(cfg.APIKey, "", "", 10*time.Second)
	if err != nil {
		t.Fatalf("NewOpenWeatherClient() error = %v", err)
	}

	backend, err := cache.NewBackend(cache.BackendConfig{
		Type:      cfg.CacheBackend,
		Redis:     cache.RedisOptions{Addr: cfg.RedisAddr},
		Memcached: cache.MemcachedOptions{Addrs: cfg.MemcachedAddr, Timeout: 500 * time.Millisecond, MaxIdleConns: 2},
	})
	if err != nil {
		t.Fatalf("NewBackend() error = %v", err)
	}
	store := cache.NewStore(backend)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if !store.Healthy(ctx) {
		t.Logf("%s backend unreachable, using in-memory cache", cfg.CacheBackend)
		_ = store.Close()
		store = cache.NewStore(cache.NewMemoryBackend())
	}
	t.Cleanup(func() { _ = store.Close() })

	svc := service.NewWeatherService(weatherClient, store, service.Options{TTL: 5 * time.Minute, Logger: logger})
	t.Cleanup(svc.Wait)
	return svc, store
}
