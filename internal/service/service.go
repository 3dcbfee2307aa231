package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-cache-proxy/internal/cache"
	"github.com/kjstillabower/weather-cache-proxy/internal/client"
	"github.com/kjstillabower/weather-cache-proxy/internal/models"
	"github.com/kjstillabower/weather-cache-proxy/internal/normalize"
	"github.com/kjstillabower/weather-cache-proxy/internal/observability"
	"github.com/kjstillabower/weather-cache-proxy/internal/validation"
)

const (
	DefaultTTL          = 30 * time.Minute
	DefaultWriteTimeout = 2 * time.Second
)

// Store is the typed cache consumed by WeatherService. *cache.Store implements it.
type Store interface {
	Get(ctx context.Context, key string) cache.Lookup
	Set(ctx context.Context, key string, rec models.WeatherRecord, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Healthy(ctx context.Context) bool
}

// Options configures WeatherService. Zero values select defaults.
type Options struct {
	TTL          time.Duration
	WriteTimeout time.Duration // bound on each background cache write
	Logger       *zap.Logger
	Normalizer   *normalize.Normalizer
}

// WeatherService orchestrates weather retrieval using the cache-aside pattern: cache read,
// then on miss upstream fetch, normalize and a background cache write.
type WeatherService struct {
	client       client.WeatherClient
	store        Store
	normalizer   *normalize.Normalizer
	ttl          time.Duration
	writeTimeout time.Duration
	logger       *zap.Logger

	stampede *stampedeTracker
	writes   sync.WaitGroup
}

// NewWeatherService creates a WeatherService with the provided dependencies.
func NewWeatherService(c client.WeatherClient, store Store, opts Options) *WeatherService {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Normalizer == nil {
		opts.Normalizer = normalize.New(nil)
	}
	return &WeatherService{
		client:       c,
		store:        store,
		normalizer:   opts.Normalizer,
		ttl:          opts.TTL,
		writeTimeout: opts.WriteTimeout,
		logger:       opts.Logger,
		stampede:     newStampedeTracker(),
	}
}

// GetWeather returns weather for loc. The cache key is derived from loc as given, never from
// names echoed by upstream. Cache failures count as misses; upstream and validation errors
// are returned unchanged in kind.
func (s *WeatherService) GetWeather(ctx context.Context, loc models.Location) (models.WeatherRecord, error) {
	loc, err := validation.ValidateLocation(loc)
	if err != nil {
		return models.WeatherRecord{}, err
	}
	start := time.Now()
	logger := observability.LoggerFromContext(ctx, s.logger)
	key := CacheKey(loc)
	observability.RecordWeatherQuery(loc.String())

	lookup := s.store.Get(ctx, key)
	switch lookup.Outcome {
	case cache.Hit:
		logger.Debug("cache hit", zap.String("key", key))
		logger.Debug("weather served", zap.String("key", key), zap.Bool("cached", true), zap.Duration("duration", time.Since(start)))
		return lookup.Record, nil
	case cache.Error:
		logger.Warn("cache read failed, treating as miss", zap.String("key", key), zap.Error(lookup.Err))
	default:
		logger.Debug("cache miss, fetching upstream", zap.String("key", key))
	}

	n, release := s.stampede.begin(key)
	defer release()
	if n > 1 {
		label := observability.MetricLocationLabel(loc.String())
		observability.CacheStampedeDetectedTotal.WithLabelValues(label).Inc()
		observability.CacheStampedeConcurrency.WithLabelValues(label).Observe(float64(n))
	}

	current, err := s.client.FetchCurrent(ctx, loc)
	if err != nil {
		logger.Warn("upstream current conditions failed", zap.String("location", loc.String()),
			zap.String("category", string(client.CategorizeError(err))), zap.Error(err))
		return models.WeatherRecord{}, fmt.Errorf("fetch current weather for %s: %w", loc, err)
	}
	forecast, err := s.client.FetchForecast(ctx, current.Coord.Lat, current.Coord.Lon)
	if err != nil {
		logger.Warn("upstream forecast failed", zap.String("location", loc.String()),
			zap.String("category", string(client.CategorizeError(err))), zap.Error(err))
		return models.WeatherRecord{}, fmt.Errorf("fetch forecast for %s: %w", loc, err)
	}

	rec := s.normalizer.Normalize(current, forecast)
	rec.Cached = false
	rec.CacheExpiresAt = nil
	s.writeAsync(ctx, logger, key, rec)

	logger.Debug("weather served", zap.String("key", key), zap.Bool("cached", false), zap.Duration("duration", time.Since(start)))
	return rec, nil
}

// writeAsync stores rec on a goroutine detached from the request's cancellation.
// A failure is logged only.
func (s *WeatherService) writeAsync(ctx context.Context, logger *zap.Logger, key string, rec models.WeatherRecord) {
	s.writes.Add(1)
	go func() {
		defer s.writes.Done()
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.writeTimeout)
		defer cancel()
		if err := s.store.Set(wctx, key, rec, s.ttl); err != nil {
			logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
			return
		}
		logger.Debug("cached weather", zap.String("key", key), zap.Duration("ttl", s.ttl))
	}()
}

// Wait blocks until all background cache writes have finished.
func (s *WeatherService) Wait() {
	s.writes.Wait()
}

// Invalidate removes the cache entry for loc. Only validation errors are returned;
// a cache failure is logged.
func (s *WeatherService) Invalidate(ctx context.Context, loc models.Location) error {
	loc, err := validation.ValidateLocation(loc)
	if err != nil {
		return err
	}
	key := CacheKey(loc)
	logger := observability.LoggerFromContext(ctx, s.logger)
	if err := s.store.Delete(ctx, key); err != nil {
		logger.Warn("cache invalidation failed", zap.String("key", key), zap.Error(err))
		return nil
	}
	observability.CacheInvalidationsTotal.Inc()
	logger.Info("cache invalidated", zap.String("key", key))
	return nil
}

// Search returns location matches for query. Only validation errors are returned; any
// upstream failure yields an empty list.
func (s *WeatherService) Search(ctx context.Context, query string, limit int) ([]models.LocationMatch, error) {
	q, err := validation.ValidateSearch(query, limit)
	if err != nil {
		return nil, err
	}
	logger := observability.LoggerFromContext(ctx, s.logger)

	results, err := s.client.SearchLocations(ctx, q, limit)
	if err != nil {
		observability.SearchRequestsTotal.WithLabelValues("degraded").Inc()
		logger.Warn("location search failed", zap.String("query", q),
			zap.String("category", string(client.CategorizeError(err))), zap.Error(err))
		return []models.LocationMatch{}, nil
	}
	if len(results) == 0 {
		observability.SearchRequestsTotal.WithLabelValues("empty").Inc()
		return []models.LocationMatch{}, nil
	}
	observability.SearchRequestsTotal.WithLabelValues("ok").Inc()
	return results, nil
}

// CacheHealthy probes the cache backend. Used for health reporting only.
func (s *WeatherService) CacheHealthy(ctx context.Context) bool {
	return s.store.Healthy(ctx)
}
