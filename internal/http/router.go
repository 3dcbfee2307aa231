package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-cache-proxy/internal/observability"
)

// RouterConfig holds the boundary-layer settings.
type RouterConfig struct {
	RequestTimeout time.Duration
	Limiter        *rate.Limiter // nil disables rate limiting
	CORSOrigins    []string
}

// NewRouter registers all routes. Rate limiting and the request timeout apply to /api only.
func NewRouter(h *Handler, logger *zap.Logger, cfg RouterConfig) http.Handler {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.HandleFunc("/", h.GetRoot).Methods(http.MethodGet)
	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(RateLimitMiddleware(cfg.Limiter))
	if cfg.RequestTimeout > 0 {
		api.Use(TimeoutMiddleware(cfg.RequestTimeout))
	}
	api.HandleFunc("/weather", h.GetWeather).Methods(http.MethodGet)
	api.HandleFunc("/search", h.SearchLocations).Methods(http.MethodGet)
	api.HandleFunc("/cache", h.InvalidateCache).Methods(http.MethodDelete)

	if len(cfg.CORSOrigins) == 0 {
		return router
	}
	return CORSMiddleware(cfg.CORSOrigins)(router)
}
