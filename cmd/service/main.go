package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-cache-proxy/internal/cache"
	"github.com/kjstillabower/weather-cache-proxy/internal/client"
	"github.com/kjstillabower/weather-cache-proxy/internal/config"
	httphandler "github.com/kjstillabower/weather-cache-proxy/internal/http"
	"github.com/kjstillabower/weather-cache-proxy/internal/lifecycle"
	"github.com/kjstillabower/weather-cache-proxy/internal/models"
	"github.com/kjstillabower/weather-cache-proxy/internal/normalize"
	"github.com/kjstillabower/weather-cache-proxy/internal/observability"
	"github.com/kjstillabower/weather-cache-proxy/internal/service"
	"github.com/kjstillabower/weather-cache-proxy/internal/validation"
)

const inFlightCheckInterval = 100 * time.Millisecond

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	weatherClient, err := client.NewOpenWeatherClient(cfg.WeatherAPIKey, cfg.WeatherAPIURL, cfg.GeocodingURL, cfg.WeatherAPITimeout)
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}
	weatherClient.SetLanguage(cfg.WeatherAPILanguage)
	if cfg.CircuitBreakerEnabled {
		weatherClient.SetCircuitBreaker(client.NewCircuitBreaker(breakerConfig(cfg)))
		logger.Info("circuit breaker enabled",
			zap.Int("failure_threshold", cfg.CircuitBreakerFailureThreshold),
			zap.Duration("open_timeout", cfg.CircuitBreakerOpenTimeout))
	}

	backend, err := cache.NewBackend(backendConfig(cfg))
	if err != nil {
		logger.Fatal("cache backend", zap.Error(err))
	}
	store := cache.NewStore(backend)
	logger.Info("cache backend", zap.String("type", cfg.CacheBackend))
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 2*time.Second)
	if !store.Healthy(pingCtx) {
		logger.Warn("cache unreachable at startup; serving uncached until it recovers")
	}
	pingCancel()

	dailyLoc, err := cfg.DailyLocation()
	if err != nil {
		logger.Fatal("daily timezone", zap.Error(err))
	}
	weatherService := service.NewWeatherService(weatherClient, store, service.Options{
		TTL:          cfg.CacheTTL,
		WriteTimeout: cfg.CacheWriteTimeout,
		Logger:       logger,
		Normalizer:   normalize.New(dailyLoc),
	})

	if len(cfg.TrackedLocations) > 0 {
		observability.SetTrackedLocations(cfg.TrackedLocations)
	}

	var stopWarming func()
	if locations := warmLocations(cfg.WarmLocations, logger); len(locations) > 0 {
		warmer := cache.NewCacheWarmer(weatherService, logger)
		scheduler, err := warmer.Schedule(locations, cfg.WarmInterval)
		if err != nil {
			logger.Fatal("cache warming", zap.Error(err))
		}
		stopWarming = scheduler.Stop
		logger.Info("cache warming scheduled", zap.Int("locations", len(locations)), zap.Duration("interval", cfg.WarmInterval))
	}

	handler := httphandler.NewHandler(weatherService, logger)
	router := httphandler.NewRouter(handler, logger, httphandler.RouterConfig{
		RequestTimeout: cfg.RequestTimeout,
		Limiter:        rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst),
		CORSOrigins:    cfg.CORSOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	if err := httphandler.WaitForInFlight(shutdownCtx, inFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if stopWarming != nil {
		stopWarming()
	}
	weatherService.Wait()

	if err := observability.FlushTelemetry(shutdownCtx, logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	if err := store.Close(); err != nil {
		logger.Error("cache close", zap.Error(err))
	}
	logger.Info("shutdown complete", zap.Duration("drain", time.Since(lifecycle.DrainingSince())))
}

func breakerConfig(cfg *config.Config) client.BreakerConfig {
	return client.BreakerConfig{
		Name:             "weather_api",
		FailureThreshold: uint32(cfg.CircuitBreakerFailureThreshold),
		HalfOpenRequests: uint32(cfg.CircuitBreakerHalfOpenRequests),
		OpenTimeout:      cfg.CircuitBreakerOpenTimeout,
	}
}

func backendConfig(cfg *config.Config) cache.BackendConfig {
	return cache.BackendConfig{
		Type: cfg.CacheBackend,
		Redis: cache.RedisOptions{
			Addr:         cfg.RedisAddr,
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			DialTimeout:  cfg.RedisDialTimeout,
			ReadTimeout:  cfg.RedisReadTimeout,
			WriteTimeout: cfg.RedisWriteTimeout,
		},
		Memcached: cache.MemcachedOptions{
			Addrs:        cfg.MemcachedAddrs,
			Timeout:      cfg.MemcachedTimeout,
			MaxIdleConns: cfg.MemcachedMaxIdleConns,
		},
	}
}

// warmLocations turns configured city names into validated locations, skipping invalid ones.
func warmLocations(cities []string, logger *zap.Logger) []models.Location {
	var out []models.Location
	for _, city := range cities {
		loc, err := validation.ParseLocation(city, "", "")
		if err != nil {
			logger.Warn("skipping warm location", zap.String("city", city), zap.Error(err))
			continue
		}
		out = append(out, loc)
	}
	return out
}
