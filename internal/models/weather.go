package models

import "time"

// WeatherRecord is the canonical weather payload returned to callers and stored in the cache.
type WeatherRecord struct {
	City      string  `json:"city"`
	Country   string  `json:"country"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  int     `json:"timezone"` // offset from UTC in seconds

	Current CurrentWeather   `json:"current"`
	Hourly  []HourlyForecast `json:"hourly"`
	Daily   []DailyForecast  `json:"daily"`

	Cached         bool       `json:"cached"`
	CacheExpiresAt *time.Time `json:"cache_expires_at"`
}

type CurrentWeather struct {
	Temperature              float64   `json:"temperature"`
	FeelsLike                float64   `json:"feels_like"`
	Condition                string    `json:"condition"`
	ConditionDescription     string    `json:"condition_description"`
	Icon                     string    `json:"icon"`
	Humidity                 int       `json:"humidity"`
	WindSpeed                float64   `json:"wind_speed"`
	PrecipitationProbability int       `json:"precipitation_probability"`
	Timestamp                time.Time `json:"timestamp"`
}

// HourlyForecast is one upstream forecast slot (3 hours wide), not one wall-clock hour.
type HourlyForecast struct {
	Time                     time.Time `json:"time"`
	Temperature              float64   `json:"temperature"`
	Condition                string    `json:"condition"`
	Icon                     string    `json:"icon"`
	PrecipitationProbability int       `json:"precipitation_probability"`
	WindSpeed                float64   `json:"wind_speed"`
}

type DailyForecast struct {
	Date                     time.Time `json:"date"`
	TempMin                  float64   `json:"temp_min"`
	TempMax                  float64   `json:"temp_max"`
	Condition                string    `json:"condition"`
	Icon                     string    `json:"icon"`
	PrecipitationProbability int       `json:"precipitation_probability"`
	Humidity                 int       `json:"humidity"`
}

// LocationMatch is one geocoding search result.
type LocationMatch struct {
	Name    string  `json:"name"`
	Country string  `json:"country"`
	State   string  `json:"state"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// ErrorResponse is the error body written by the HTTP layer.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"requestId,omitempty"`
}
