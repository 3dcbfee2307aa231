// Package validation checks inbound location descriptors and search queries before any I/O.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/kjstillabower/weather-cache-proxy/internal/models"
)

const (
	MaxCityLength      = 100
	MinSearchLength    = 2
	MaxSearchLimit     = 10
	DefaultSearchLimit = 5
)

// ErrInvalidInput is wrapped by every error returned from this package.
var ErrInvalidInput = errors.New("invalid input")

var (
	ErrLocationMissing   = errors.New("either city or both lat and lon are required")
	ErrLocationAmbiguous = errors.New("provide either city or lat/lon, not both")
	ErrPartialCoords     = errors.New("lat and lon must be provided together")
)

type locationQuery struct {
	City string   `validate:"omitempty,max=100,cityname"`
	Lat  *float64 `validate:"omitempty,gte=-90,lte=90"`
	Lon  *float64 `validate:"omitempty,gte=-180,lte=180"`
}

type searchQuery struct {
	Query string `validate:"min=2,max=100"`
	Limit int    `validate:"gte=1,lte=10"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.ToLower(f.Name)
	})
	if err := v.RegisterValidation("cityname", isCityName); err != nil {
		panic(err)
	}
	return v
}

func isCityName(fl validator.FieldLevel) bool {
	for _, r := range fl.Field().String() {
		if !isAllowedCityRune(r) {
			return false
		}
	}
	return true
}

// isAllowedCityRune returns true for letters (Unicode), digits, space, comma, hyphen, period, apostrophe.
func isAllowedCityRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) {
		return true
	}
	switch r {
	case ' ', ',', '-', '.', '\'':
		return true
	}
	return false
}

// ValidateLocation returns loc in exactly one form: city (trimmed) or coordinates.
// A city together with coordinates, a lone coordinate, or nothing at all is invalid.
func ValidateLocation(loc models.Location) (models.Location, error) {
	city := strings.TrimSpace(loc.City)
	hasLat, hasLon := loc.Lat != nil, loc.Lon != nil

	switch {
	case city != "" && (hasLat || hasLon):
		return models.Location{}, invalid(ErrLocationAmbiguous)
	case city == "" && hasLat != hasLon:
		return models.Location{}, invalid(ErrPartialCoords)
	case city == "" && !hasLat:
		return models.Location{}, invalid(ErrLocationMissing)
	}

	q := locationQuery{City: city, Lat: loc.Lat, Lon: loc.Lon}
	if err := validate.Struct(q); err != nil {
		return models.Location{}, describe(err)
	}
	if city != "" {
		return models.CityLocation(city), nil
	}
	return models.CoordLocation(*loc.Lat, *loc.Lon), nil
}

// ParseLocation builds and validates a Location from raw query parameters. Empty strings are absent.
func ParseLocation(city, lat, lon string) (models.Location, error) {
	loc := models.Location{City: city}
	var err error
	if loc.Lat, err = parseCoord("lat", lat); err != nil {
		return models.Location{}, err
	}
	if loc.Lon, err = parseCoord("lon", lon); err != nil {
		return models.Location{}, err
	}
	return ValidateLocation(loc)
}

func parseCoord(name, s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a number", ErrInvalidInput, name)
	}
	return &v, nil
}

// ValidateSearch checks a search query (at least 2 characters after trimming) and limit (1-10).
// Returns the trimmed query.
func ValidateSearch(query string, limit int) (string, error) {
	q := searchQuery{Query: strings.TrimSpace(query), Limit: limit}
	if err := validate.Struct(q); err != nil {
		return "", describe(err)
	}
	return q.Query, nil
}

// ParseLimit parses the search limit parameter. Empty means DefaultSearchLimit.
func ParseLimit(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultSearchLimit, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: limit must be an integer", ErrInvalidInput)
	}
	return n, nil
}

func invalid(reason error) error {
	return fmt.Errorf("%w: %w", ErrInvalidInput, reason)
}

// describe turns the first validator failure into a caller-facing message.
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	fe := verrs[0]
	var msg string
	switch fe.Tag() {
	case "min":
		msg = fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		msg = fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "gte", "lte":
		msg = fmt.Sprintf("%s is out of range", fe.Field())
	case "cityname":
		msg = fmt.Sprintf("%s contains invalid characters", fe.Field())
	default:
		msg = fmt.Sprintf("%s is invalid", fe.Field())
	}
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}
