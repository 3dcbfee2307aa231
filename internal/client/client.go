package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/kjstillabower/weather-cache-proxy/internal/models"
	"github.com/kjstillabower/weather-cache-proxy/internal/observability"
)

const (
	// ForecastSlots is the number of 3-hour slots requested from the forecast endpoint (about 5 days).
	// The normalizer keeps at most 24 of them; the surplus keeps the daily window from underflowing.
	ForecastSlots = 40

	DefaultTimeout = 5 * time.Second
	DefaultBaseURL = "https://api.openweathermap.org/data/2.5"
	DefaultGeoURL  = "http://api.openweathermap.org/geo/1.0/direct"

	endpointCurrent  = "current"
	endpointForecast = "forecast"
	endpointSearch   = "search"
)

// WeatherClient is the upstream provider contract consumed by the orchestrator.
type WeatherClient interface {
	FetchCurrent(ctx context.Context, loc models.Location) (models.RawCurrent, error)
	FetchForecast(ctx context.Context, lat, lon float64) (models.RawForecast, error)
	SearchLocations(ctx context.Context, query string, limit int) ([]models.LocationMatch, error)
}

// OpenWeatherClient talks to the OpenWeatherMap current, forecast and geocoding endpoints.
// No call is retried; every call is bounded by timeout.
type OpenWeatherClient struct {
	apiKey  string
	baseURL string
	geoURL  string
	units   string
	lang    string
	timeout time.Duration
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewOpenWeatherClient(apiKey, baseURL, geoURL string, timeout time.Duration) (*OpenWeatherClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}
	if len(apiKey) < 10 {
		return nil, fmt.Errorf("%w: API key appears invalid (too short)", ErrInvalidAPIKey)
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if geoURL == "" {
		geoURL = DefaultGeoURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &OpenWeatherClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		geoURL:  geoURL,
		units:   "metric",
		lang:    "en",
		timeout: timeout,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// SetCircuitBreaker routes current and forecast calls through cb. Search is never guarded.
func (c *OpenWeatherClient) SetCircuitBreaker(cb *gobreaker.CircuitBreaker) {
	c.breaker = cb
}

// SetLanguage overrides the lang parameter sent upstream (default "en").
func (c *OpenWeatherClient) SetLanguage(lang string) {
	if lang != "" {
		c.lang = lang
	}
}

// FetchCurrent fetches current conditions by city name or coordinates. City wins when both are set;
// the two forms are never sent together.
func (c *OpenWeatherClient) FetchCurrent(ctx context.Context, loc models.Location) (models.RawCurrent, error) {
	params := c.baseParams()
	switch {
	case loc.IsCity():
		params.Set("q", loc.City)
	case loc.HasCoords():
		params.Set("lat", formatCoord(*loc.Lat))
		params.Set("lon", formatCoord(*loc.Lon))
	default:
		return models.RawCurrent{}, errors.New("city or coordinates required")
	}

	var raw models.RawCurrent
	err := c.guarded(func() error {
		return c.getJSON(ctx, endpointCurrent, c.baseURL+"/weather", params, loc.String(), &raw)
	})
	if err != nil {
		return models.RawCurrent{}, err
	}
	return raw, nil
}

// FetchForecast fetches the 3-hour-slot forecast list for the given coordinates.
func (c *OpenWeatherClient) FetchForecast(ctx context.Context, lat, lon float64) (models.RawForecast, error) {
	params := c.baseParams()
	params.Set("lat", formatCoord(lat))
	params.Set("lon", formatCoord(lon))
	params.Set("cnt", strconv.Itoa(ForecastSlots))

	var raw models.RawForecast
	err := c.guarded(func() error {
		return c.getJSON(ctx, endpointForecast, c.baseURL+"/forecast", params, formatCoord(lat)+","+formatCoord(lon), &raw)
	})
	if err != nil {
		return models.RawForecast{}, err
	}
	return raw, nil
}

// SearchLocations queries the geocoding endpoint. Any non-success status yields an empty result
// and a nil error; only transport failures are returned.
func (c *OpenWeatherClient) SearchLocations(ctx context.Context, query string, limit int) ([]models.LocationMatch, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("appid", c.apiKey)

	var raw []models.RawLocationMatch
	err := c.getJSON(ctx, endpointSearch, c.geoURL, params, query, &raw)
	if err != nil {
		var upstreamErr *UpstreamError
		var notFound *NotFoundError
		if errors.As(err, &upstreamErr) || errors.As(err, &notFound) {
			return []models.LocationMatch{}, nil
		}
		return nil, err
	}

	matches := make([]models.LocationMatch, 0, len(raw))
	for _, m := range raw {
		matches = append(matches, models.LocationMatch{
			Name:    m.Name,
			Country: m.Country,
			State:   m.State,
			Lat:     m.Lat,
			Lon:     m.Lon,
		})
	}
	return matches, nil
}

func (c *OpenWeatherClient) baseParams() url.Values {
	params := url.Values{}
	params.Set("appid", c.apiKey)
	params.Set("units", c.units)
	params.Set("lang", c.lang)
	return params
}

// guarded runs fn through the circuit breaker when one is configured.
func (c *OpenWeatherClient) guarded(fn func() error) error {
	if c.breaker == nil {
		return fn()
	}
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &UpstreamError{Endpoint: "weather_api", Status: http.StatusServiceUnavailable, Err: ErrCircuitOpen}
	}
	return err
}

func (c *OpenWeatherClient) getJSON(ctx context.Context, endpoint, rawURL string, params url.Values, name string, dest interface{}) error {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid API URL: %w", err)
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if corrID := observability.CorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues(endpoint, "error").Inc()
		observability.WeatherAPIDuration.WithLabelValues(endpoint, "error").Observe(time.Since(start).Seconds())
		return &TransportError{Endpoint: endpoint, Timeout: isTimeout(err), Err: err}
	}
	defer resp.Body.Close()

	status := statusLabel(resp.StatusCode)
	observability.WeatherAPICallsTotal.WithLabelValues(endpoint, status).Inc()
	observability.WeatherAPIDuration.WithLabelValues(endpoint, status).Observe(time.Since(start).Seconds())

	if resp.StatusCode == http.StatusNotFound {
		return &NotFoundError{Name: name}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &UpstreamError{Endpoint: endpoint, Status: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		if isTimeout(err) {
			return &TransportError{Endpoint: endpoint, Timeout: true, Err: err}
		}
		return &UpstreamError{Endpoint: endpoint, Status: resp.StatusCode, Err: fmt.Errorf("parse response: %w", err)}
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
