package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-cache-proxy/internal/client"
	"github.com/kjstillabower/weather-cache-proxy/internal/lifecycle"
	"github.com/kjstillabower/weather-cache-proxy/internal/models"
	"github.com/kjstillabower/weather-cache-proxy/internal/observability"
	"github.com/kjstillabower/weather-cache-proxy/internal/validation"
)

const (
	serviceName    = "Weather Cache Proxy"
	serviceVersion = "1.0.0"

	healthProbeTimeout = time.Second
)

// WeatherService is the orchestrator surface the handlers need. *service.WeatherService implements it.
type WeatherService interface {
	GetWeather(ctx context.Context, loc models.Location) (models.WeatherRecord, error)
	Invalidate(ctx context.Context, loc models.Location) error
	Search(ctx context.Context, query string, limit int) ([]models.LocationMatch, error)
	CacheHealthy(ctx context.Context) bool
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	svc    WeatherService
	logger *zap.Logger

	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler.
func NewHandler(svc WeatherService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// GetRoot handles GET /.
func (h *Handler) GetRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service":   serviceName,
		"status":    "running",
		"version":   serviceVersion,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// GetHealth handles GET /health. Cache state is reported but never fails the check; only
// draining returns 503.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	status, cacheState, code := "healthy", "connected", http.StatusOK
	if lifecycle.IsShuttingDown() {
		status, code = "shutting-down", http.StatusServiceUnavailable
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthProbeTimeout)
	defer cancel()
	if !h.svc.CacheHealthy(ctx) {
		cacheState = "disconnected"
		if status == "healthy" {
			status = "degraded"
		}
	}

	h.healthStatusMu.Lock()
	if prev := h.healthStatusPrev; prev != "" && prev != status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", status),
			zap.String("cache", cacheState))
	}
	h.healthStatusPrev = status
	h.healthStatusMu.Unlock()

	writeJSON(w, code, map[string]string{
		"status":    status,
		"cache":     cacheState,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// GetWeather handles GET /api/weather?city= or ?lat=&lon=.
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	loc, err := validation.ParseLocation(q.Get("city"), q.Get("lat"), q.Get("lon"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	rec, err := h.svc.GetWeather(r.Context(), loc)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type searchResponse struct {
	Query   string                 `json:"query"`
	Results []models.LocationMatch `json:"results"`
	Count   int                    `json:"count"`
}

// SearchLocations handles GET /api/search?q=&limit=.
func (h *Handler) SearchLocations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := validation.ParseLimit(q.Get("limit"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	query := q.Get("q")

	results, err := h.svc.Search(r.Context(), query, limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{Query: query, Results: results, Count: len(results)})
}

// InvalidateCache handles DELETE /api/cache?city= or ?lat=&lon=.
func (h *Handler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	loc, err := validation.ParseLocation(q.Get("city"), q.Get("lat"), q.Get("lon"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := h.svc.Invalidate(r.Context(), loc); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "cache entry removed",
	})
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format, with the correlation ID
// as requestId when present.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, detail string) {
	writeJSON(w, status, models.ErrorResponse{
		Error:     code,
		Detail:    detail,
		Timestamp: time.Now().UTC(),
		RequestID: observability.CorrelationID(r.Context()),
	})
}

// writeServiceError maps validation and upstream errors to status/code pairs. Details of
// unexpected errors are logged, not returned.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	logger := observability.LoggerFromContext(r.Context(), nil)

	var notFound *client.NotFoundError
	var upstream *client.UpstreamError
	switch {
	case errors.Is(err, validation.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, "INVALID_INPUT", err.Error())
	case errors.As(err, &notFound):
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", notFound.Error())
	case errors.Is(err, client.ErrTransport):
		logger.Debug("upstream unreachable", zap.Error(err))
		writeError(w, r, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "Unable to reach weather provider")
	case errors.As(err, &upstream):
		logger.Debug("upstream error", zap.Error(err))
		detail := "Weather provider returned an error"
		if errors.Is(err, client.ErrCircuitOpen) {
			detail = "Weather provider temporarily disabled after repeated failures"
		}
		writeError(w, r, http.StatusBadGateway, "UPSTREAM_ERROR", detail)
	default:
		logger.Error("unexpected error", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}
