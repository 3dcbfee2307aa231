package models

import "strconv"

// Location identifies a place either by city name or by coordinates. Exactly one form is set
// on a validated Location; see validation.ParseLocation.
type Location struct {
	City string
	Lat  *float64
	Lon  *float64
}

// CityLocation returns a Location in city form.
func CityLocation(city string) Location {
	return Location{City: city}
}

// CoordLocation returns a Location in coordinate form.
func CoordLocation(lat, lon float64) Location {
	return Location{Lat: &lat, Lon: &lon}
}

// IsCity reports whether the location is in city form.
func (l Location) IsCity() bool {
	return l.City != ""
}

// HasCoords reports whether both coordinates are present.
func (l Location) HasCoords() bool {
	return l.Lat != nil && l.Lon != nil
}

// String renders the location for logs and error messages.
func (l Location) String() string {
	if l.IsCity() {
		return l.City
	}
	if l.HasCoords() {
		return strconv.FormatFloat(*l.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(*l.Lon, 'f', -1, 64)
	}
	return ""
}
