package client

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/kjstillabower/weather-cache-proxy/internal/observability"
)

// BreakerConfig holds circuit breaker parameters for upstream calls.
type BreakerConfig struct {
	Name             string
	FailureThreshold uint32        // consecutive failures before opening
	HalfOpenRequests uint32        // probe requests allowed while half-open
	OpenTimeout      time.Duration // time spent open before probing
}

// NewCircuitBreaker builds a gobreaker instance that ignores NotFound answers (the provider is
// healthy; the caller asked for a place that does not exist) and reports transitions to metrics.
func NewCircuitBreaker(cfg BreakerConfig) *gobreaker.CircuitBreaker {
	if cfg.Name == "" {
		cfg.Name = "weather_api"
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.HalfOpenRequests == 0 {
		cfg.HalfOpenRequests = 1
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	threshold := cfg.FailureThreshold
	observability.CircuitBreakerState.WithLabelValues(cfg.Name).Set(0)

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrLocationNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			observability.CircuitBreakerTransitionsTotal.WithLabelValues(name, from.String(), to.String()).Inc()
			observability.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
