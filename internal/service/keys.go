package service

import (
	"math"
	"strconv"
	"strings"

	"github.com/kjstillabower/weather-cache-proxy/internal/models"
)

const (
	cityKeyPrefix   = "weather:city:"
	coordsKeyPrefix = "weather:coords:"
)

// CacheKey derives the cache key from the location as supplied by the caller. City names are
// trimmed and lower-cased; coordinates are rounded to 2 decimals, so points closer than that
// share a key.
func CacheKey(loc models.Location) string {
	if loc.IsCity() {
		return cityKeyPrefix + strings.ToLower(strings.TrimSpace(loc.City))
	}
	if loc.HasCoords() {
		return coordsKeyPrefix + formatKeyCoord(*loc.Lat) + "," + formatKeyCoord(*loc.Lon)
	}
	return ""
}

func formatKeyCoord(v float64) string {
	r := math.Round(v*100) / 100
	if r == 0 {
		r = 0 // folds -0 into 0
	}
	return strconv.FormatFloat(r, 'f', 2, 64)
}
