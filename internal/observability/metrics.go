package observability

import (
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation, capacity limits.
	HTTPRequestsInFlight prometheus.Gauge

	// Upstream call rate per endpoint (current, forecast, search). Watch for: error vs success ratio.
	WeatherAPICallsTotal *prometheus.CounterVec

	// Upstream latency per call. Watch for: p99 close to the 5s per-call timeout.
	WeatherAPIDuration *prometheus.HistogramVec

	// Cache lookups by outcome (hit, miss, error). Hit rate = hit/(hit+miss+error).
	CacheLookupsTotal *prometheus.CounterVec

	// Cache operation failures. Never surfaced to callers; a rising rate means the service runs always-miss.
	CacheErrorsTotal *prometheus.CounterVec

	// Cache operation latency by operation and result.
	CacheOperationDurationSeconds *prometheus.HistogramVec

	// Concurrent misses on the same key. The redundant fetch is accepted; this only measures it.
	CacheStampedeDetectedTotal *prometheus.CounterVec
	CacheStampedeConcurrency   *prometheus.HistogramVec

	// Manual invalidations via DELETE /api/cache.
	CacheInvalidationsTotal prometheus.Counter

	CacheWarmingTotal           prometheus.Counter
	CacheWarmingErrorsTotal     prometheus.Counter
	CacheWarmingDurationSeconds prometheus.Histogram

	// Total weather lookups.
	WeatherQueriesTotal prometheus.Counter

	// Per-location query count (allow-list; others go to "other").
	WeatherQueriesByLocationTotal *prometheus.CounterVec

	// Location searches by result (ok, empty, degraded).
	SearchRequestsTotal *prometheus.CounterVec

	// Rate limit denials. Watch for: overload, capacity exceeded.
	RateLimitDeniedTotal prometheus.Counter

	CircuitBreakerTransitionsTotal *prometheus.CounterVec
	CircuitBreakerState            *prometheus.GaugeVec

	// trackedLocations is built from config; used to resolve location for metrics.
	trackedLocationsMu sync.RWMutex
	trackedLocations   map[string]struct{}
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	WeatherAPICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherApiCallsTotal",
			Help: "Total number of upstream weather provider calls",
		},
		[]string{"endpoint", "status"},
	)
	WeatherAPIDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weatherApiDurationSeconds",
			Help:    "Upstream weather provider latency in seconds (per call)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint", "status"},
	)
	CacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheLookupsTotal",
			Help: "Total number of cache lookups by outcome (hit, miss, error)",
		},
		[]string{"outcome"},
	)
	CacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheErrorsTotal",
			Help: "Total number of cache operation failures",
		},
		[]string{"operation", "category"},
	)
	CacheOperationDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cacheOperationDurationSeconds",
			Help:    "Cache operation latency in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5},
		},
		[]string{"operation", "result"},
	)
	CacheStampedeDetectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheStampedeDetectedTotal",
			Help: "Cache misses that overlapped another in-flight miss for the same key",
		},
		[]string{"location"},
	)
	CacheStampedeConcurrency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cacheStampedeConcurrency",
			Help:    "Number of concurrent misses for a key when a stampede is detected",
			Buckets: []float64{2, 3, 5, 10, 25, 50},
		},
		[]string{"location"},
	)
	CacheInvalidationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheInvalidationsTotal",
			Help: "Total number of manual cache invalidations",
		},
	)
	CacheWarmingTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheWarmingTotal",
			Help: "Total number of cache warming runs",
		},
	)
	CacheWarmingErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheWarmingErrorsTotal",
			Help: "Cache warming runs with at least one failed location",
		},
	)
	CacheWarmingDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cacheWarmingDurationSeconds",
			Help:    "Cache warming run duration in seconds",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30},
		},
	)
	WeatherQueriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "weatherQueriesTotal",
			Help: "Total number of weather lookups",
		},
	)
	WeatherQueriesByLocationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherQueriesByLocationTotal",
			Help: "Weather queries by location (allow-list; others use location=other)",
		},
		[]string{"location"},
	)
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchRequestsTotal",
			Help: "Location searches by result (ok, empty, degraded)",
		},
		[]string{"result"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)
	CircuitBreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuitBreakerTransitionsTotal",
			Help: "Circuit breaker state transitions",
		},
		[]string{"component", "from", "to"},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"component"},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		WeatherAPICallsTotal, WeatherAPIDuration,
		CacheLookupsTotal, CacheErrorsTotal, CacheOperationDurationSeconds,
		CacheStampedeDetectedTotal, CacheStampedeConcurrency, CacheInvalidationsTotal,
		CacheWarmingTotal, CacheWarmingErrorsTotal, CacheWarmingDurationSeconds,
		WeatherQueriesTotal, WeatherQueriesByLocationTotal,
		SearchRequestsTotal,
		RateLimitDeniedTotal,
		CircuitBreakerTransitionsTotal, CircuitBreakerState,
	)
}

// SetTrackedLocations sets the allow-list for location metrics. Non-tracked locations increment "other".
func SetTrackedLocations(locations []string) {
	trackedLocationsMu.Lock()
	defer trackedLocationsMu.Unlock()
	trackedLocations = make(map[string]struct{}, len(locations))
	for _, loc := range locations {
		trackedLocations[normalizeLocationForMetrics(loc)] = struct{}{}
	}
}

// RecordWeatherQuery records a weather query for the given location.
func RecordWeatherQuery(location string) {
	WeatherQueriesTotal.Inc()
	WeatherQueriesByLocationTotal.WithLabelValues(MetricLocationLabel(location)).Inc()
}

// MetricLocationLabel returns the location itself when it is on the allow-list, "other" otherwise.
// Keeps label cardinality bounded.
func MetricLocationLabel(location string) string {
	loc := normalizeLocationForMetrics(location)
	trackedLocationsMu.RLock()
	_, ok := trackedLocations[loc] // nil map read is safe in Go
	trackedLocationsMu.RUnlock()
	if ok {
		return loc
	}
	return "other"
}

func normalizeLocationForMetrics(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	return s
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
