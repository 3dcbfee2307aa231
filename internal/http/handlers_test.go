package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/weather-cache-proxy/internal/client"
	"github.com/kjstillabower/weather-cache-proxy/internal/lifecycle"
	"github.com/kjstillabower/weather-cache-proxy/internal/models"
	"github.com/kjstillabower/weather-cache-proxy/internal/validation"
)

// fakeService records the last call and returns canned results.
type fakeService struct {
	record     models.WeatherRecord
	weatherErr error
	matches    []models.LocationMatch
	searchErr  error
	healthy    bool

	lastLoc   models.Location
	lastQuery string
	lastLimit int
	calls     int
}

func (f *fakeService) GetWeather(ctx context.Context, loc models.Location) (models.WeatherRecord, error) {
	f.calls++
	f.lastLoc = loc
	return f.record, f.weatherErr
}

func (f *fakeService) Invalidate(ctx context.Context, loc models.Location) error {
	f.calls++
	f.lastLoc = loc
	return nil
}

func (f *fakeService) Search(ctx context.Context, query string, limit int) ([]models.LocationMatch, error) {
	f.calls++
	f.lastQuery, f.lastLimit = query, limit
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.matches, nil
}

func (f *fakeService) CacheHealthy(ctx context.Context) bool { return f.healthy }

func newTestRouter(svc WeatherService) http.Handler {
	return NewRouter(NewHandler(svc, zap.NewNop()), zap.NewNop(), RouterConfig{RequestTimeout: time.Second})
}

func serve(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var body models.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body
}

// TestGetRoot verifies the service banner.
func TestGetRoot(t *testing.T) {
	rec := serve(t, newTestRouter(&fakeService{}), http.MethodGet, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	_ = json.NewDecoder(rec.Body).Decode(&body)
	if body["status"] != "running" || body["version"] != serviceVersion {
		t.Errorf("body = %v", body)
	}
}

// TestGetHealth verifies cache state reporting and the draining override.
func TestGetHealth(t *testing.T) {
	tests := []struct {
		name         string
		healthy      bool
		shuttingDown bool
		wantCode     int
		wantStatus   string
		wantCache    string
	}{
		{"cache up", true, false, http.StatusOK, "healthy", "connected"},
		{"cache down", false, false, http.StatusOK, "degraded", "disconnected"},
		{"draining", true, true, http.StatusServiceUnavailable, "shutting-down", "connected"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lifecycle.SetShuttingDown(tt.shuttingDown)
			defer lifecycle.SetShuttingDown(false)

			rec := serve(t, newTestRouter(&fakeService{healthy: tt.healthy}), http.MethodGet, "/health")
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			var body map[string]string
			_ = json.NewDecoder(rec.Body).Decode(&body)
			if body["status"] != tt.wantStatus || body["cache"] != tt.wantCache {
				t.Errorf("body = %v, want status %q cache %q", body, tt.wantStatus, tt.wantCache)
			}
		})
	}
}

// TestGetHealth_LogsTransition verifies a status change is logged once.
func TestGetHealth_LogsTransition(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	svc := &fakeService{healthy: true}
	router := NewRouter(NewHandler(svc, zap.New(core)), zap.NewNop(), RouterConfig{})

	serve(t, router, http.MethodGet, "/health")
	svc.healthy = false
	serve(t, router, http.MethodGet, "/health")
	serve(t, router, http.MethodGet, "/health")

	entries := logs.FilterMessage("health status transition").All()
	if len(entries) != 1 {
		t.Fatalf("transition logs = %d, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["current_status"]; got != "degraded" {
		t.Errorf("current_status = %v, want degraded", got)
	}
}

// TestGetWeather_Success verifies the record is returned and the location parsed from the query.
func TestGetWeather_Success(t *testing.T) {
	svc := &fakeService{record: models.WeatherRecord{City: "London", Country: "GB", Cached: true}}
	rec := serve(t, newTestRouter(svc), http.MethodGet, "/api/weather?city=London")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if svc.lastLoc.City != "London" || svc.lastLoc.HasCoords() {
		t.Errorf("location = %+v", svc.lastLoc)
	}
	var body models.WeatherRecord
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.City != "London" || !body.Cached {
		t.Errorf("body = %+v", body)
	}
}

// TestGetWeather_Coords verifies lat/lon parsing.
func TestGetWeather_Coords(t *testing.T) {
	svc := &fakeService{}
	rec := serve(t, newTestRouter(svc), http.MethodGet, "/api/weather?lat=51.5&lon=-0.12")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !svc.lastLoc.HasCoords() || *svc.lastLoc.Lat != 51.5 || *svc.lastLoc.Lon != -0.12 {
		t.Errorf("location = %+v", svc.lastLoc)
	}
}

// TestGetWeather_InvalidQuery verifies 400 without reaching the service.
func TestGetWeather_InvalidQuery(t *testing.T) {
	for _, target := range []string{
		"/api/weather",
		"/api/weather?lat=10",
		"/api/weather?lat=abc&lon=1",
		"/api/weather?lat=91&lon=0",
		"/api/weather?city=London&lat=1&lon=2",
	} {
		t.Run(target, func(t *testing.T) {
			svc := &fakeService{}
			rec := serve(t, newTestRouter(svc), http.MethodGet, target)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if body := decodeError(t, rec); body.Error != "INVALID_INPUT" {
				t.Errorf("error = %q, want INVALID_INPUT", body.Error)
			}
			if svc.calls != 0 {
				t.Errorf("service calls = %d, want 0", svc.calls)
			}
		})
	}
}

// TestGetWeather_ErrorMapping verifies each error kind's status and code.
func TestGetWeather_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{"not found", fmt.Errorf("fetch: %w", &client.NotFoundError{Name: "Atlantis"}), http.StatusNotFound, "NOT_FOUND"},
		{"upstream", &client.UpstreamError{Endpoint: "weather", Status: 503}, http.StatusBadGateway, "UPSTREAM_ERROR"},
		{"circuit open", &client.UpstreamError{Endpoint: "weather", Err: client.ErrCircuitOpen}, http.StatusBadGateway, "UPSTREAM_ERROR"},
		{"transport", &client.TransportError{Endpoint: "weather", Timeout: true, Err: context.DeadlineExceeded}, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE"},
		{"service validation", fmt.Errorf("%w: bad", validation.ErrInvalidInput), http.StatusBadRequest, "INVALID_INPUT"},
		{"unexpected", fmt.Errorf("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, newTestRouter(&fakeService{weatherErr: tt.err}), http.MethodGet, "/api/weather?city=Atlantis")
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			body := decodeError(t, rec)
			if body.Error != tt.wantErr {
				t.Errorf("error = %q, want %q", body.Error, tt.wantErr)
			}
			if body.RequestID == "" {
				t.Error("requestId empty, want correlation ID")
			}
		})
	}
}

// TestGetWeather_NotFoundDetailNamesLocation verifies the 404 detail carries the location.
func TestGetWeather_NotFoundDetailNamesLocation(t *testing.T) {
	svc := &fakeService{weatherErr: &client.NotFoundError{Name: "Atlantis"}}
	rec := serve(t, newTestRouter(svc), http.MethodGet, "/api/weather?city=Atlantis")
	if body := decodeError(t, rec); body.Detail != `location "Atlantis" not found` {
		t.Errorf("detail = %q", body.Detail)
	}
}

// TestSearchLocations verifies the response envelope and limit handling.
func TestSearchLocations(t *testing.T) {
	svc := &fakeService{matches: []models.LocationMatch{{Name: "Paris", Country: "FR"}, {Name: "Paris", Country: "US", State: "Texas"}}}
	rec := serve(t, newTestRouter(svc), http.MethodGet, "/api/search?q=Paris&limit=3")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if svc.lastQuery != "Paris" || svc.lastLimit != 3 {
		t.Errorf("search(%q, %d), want (Paris, 3)", svc.lastQuery, svc.lastLimit)
	}
	var body searchResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Query != "Paris" || body.Count != 2 || len(body.Results) != 2 {
		t.Errorf("body = %+v", body)
	}
}

// TestSearchLocations_DefaultLimit verifies an absent limit becomes the default.
func TestSearchLocations_DefaultLimit(t *testing.T) {
	svc := &fakeService{}
	serve(t, newTestRouter(svc), http.MethodGet, "/api/search?q=Paris")
	if svc.lastLimit != validation.DefaultSearchLimit {
		t.Errorf("limit = %d, want %d", svc.lastLimit, validation.DefaultSearchLimit)
	}
}

// TestSearchLocations_EmptyResults verifies results serialize as [] and not null.
func TestSearchLocations_EmptyResults(t *testing.T) {
	svc := &fakeService{matches: []models.LocationMatch{}}
	rec := serve(t, newTestRouter(svc), http.MethodGet, "/api/search?q=Zzz")
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(rec.Body).Decode(&raw); err != nil {
		t.Fatal(err)
	}
	if string(raw["results"]) != "[]" {
		t.Errorf("results = %s, want []", raw["results"])
	}
}

// TestSearchLocations_Invalid verifies bad limits and service validation errors return 400.
func TestSearchLocations_Invalid(t *testing.T) {
	rec := serve(t, newTestRouter(&fakeService{}), http.MethodGet, "/api/search?q=Paris&limit=x")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", rec.Code)
	}

	svc := &fakeService{searchErr: fmt.Errorf("%w: query too short", validation.ErrInvalidInput)}
	rec = serve(t, newTestRouter(svc), http.MethodGet, "/api/search?q=P")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("short query status = %d, want 400", rec.Code)
	}
}

// TestInvalidateCache verifies DELETE /api/cache parses the location and acknowledges.
func TestInvalidateCache(t *testing.T) {
	svc := &fakeService{}
	rec := serve(t, newTestRouter(svc), http.MethodDelete, "/api/cache?city=London")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if svc.lastLoc.City != "London" {
		t.Errorf("location = %+v", svc.lastLoc)
	}
	var body map[string]string
	_ = json.NewDecoder(rec.Body).Decode(&body)
	if body["status"] != "success" {
		t.Errorf("body = %v", body)
	}

	rec = serve(t, newTestRouter(&fakeService{}), http.MethodDelete, "/api/cache")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing location status = %d, want 400", rec.Code)
	}
}

// TestMethodNotAllowed verifies routes are method-restricted.
func TestMethodNotAllowed(t *testing.T) {
	rec := serve(t, newTestRouter(&fakeService{}), http.MethodGet, "/api/cache?city=London")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}
