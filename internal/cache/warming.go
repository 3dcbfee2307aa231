package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-cache-proxy/internal/models"
	"github.com/kjstillabower/weather-cache-proxy/internal/observability"
)

// WeatherFetcher is implemented by the service layer. A miss inside GetWeather populates the cache.
type WeatherFetcher interface {
	GetWeather(ctx context.Context, loc models.Location) (models.WeatherRecord, error)
}

// CacheWarmer warms the cache by prefetching weather for a list of locations.
type CacheWarmer struct {
	fetcher WeatherFetcher
	logger  *zap.Logger
	timeout time.Duration
}

// NewCacheWarmer creates a CacheWarmer. A nil logger disables logging.
func NewCacheWarmer(fetcher WeatherFetcher, logger *zap.Logger) *CacheWarmer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheWarmer{fetcher: fetcher, logger: logger, timeout: 30 * time.Second}
}

// Warm fetches weather for each location concurrently. Returns the joined per-location errors.
func (w *CacheWarmer) Warm(ctx context.Context, locations []models.Location) error {
	start := time.Now()
	observability.CacheWarmingTotal.Inc()
	w.logger.Info("warming cache", zap.Int("locations", len(locations)))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, loc := range locations {
		wg.Add(1)
		go func(loc models.Location) {
			defer wg.Done()
			if _, err := w.fetcher.GetWeather(ctx, loc); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("warm %s: %w", loc, err))
				mu.Unlock()
			}
		}(loc)
	}
	wg.Wait()

	duration := time.Since(start).Seconds()
	observability.CacheWarmingDurationSeconds.Observe(duration)
	w.logger.Info("cache warming complete",
		zap.Int("locations", len(locations)),
		zap.Int("errors", len(errs)),
		zap.Float64("duration_seconds", duration))
	if len(errs) > 0 {
		observability.CacheWarmingErrorsTotal.Inc()
		return errors.Join(errs...)
	}
	return nil
}

// Schedule warms immediately and then every interval on a gocron scheduler. Runs never overlap.
// The caller stops the returned scheduler on shutdown.
func (w *CacheWarmer) Schedule(locations []models.Location, interval time.Duration) (*gocron.Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("warm interval must be positive, got %s", interval)
	}
	s := gocron.NewScheduler(time.UTC)
	_, err := s.Every(interval).SingletonMode().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		defer cancel()
		if err := w.Warm(ctx, locations); err != nil {
			w.logger.Warn("cache warm failed", zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule cache warming: %w", err)
	}
	s.StartAsync()
	return s, nil
}
