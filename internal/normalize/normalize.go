// Package normalize converts raw upstream payloads into the canonical weather record.
package normalize

import (
	"math"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/kjstillabower/weather-cache-proxy/internal/models"
)

const (
	// HourlySlots is the number of upstream 3-hour slots projected into the hourly sequence.
	HourlySlots = 12
	// DailyWindowSlots is the number of upstream slots aggregated into daily entries.
	DailyWindowSlots = 24
	// MaxDays caps the daily sequence.
	MaxDays = 3

	DefaultIcon = "01d"

	msToKmh = 3.6
)

// Normalizer is a pure transformation. Location controls calendar-date grouping for daily entries
// and Now stamps the current-conditions capture time.
type Normalizer struct {
	Location *time.Location
	Now      func() time.Time
}

// New returns a Normalizer grouping days in loc (time.Local when nil).
func New(loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.Local
	}
	return &Normalizer{Location: loc, Now: time.Now}
}

// Normalize assembles a WeatherRecord. Location identity comes from current, timezone from forecast.
func (n *Normalizer) Normalize(current models.RawCurrent, forecast models.RawForecast) models.WeatherRecord {
	return models.WeatherRecord{
		City:      current.Name,
		Country:   current.Sys.Country,
		Latitude:  current.Coord.Lat,
		Longitude: current.Coord.Lon,
		Timezone:  forecast.City.Timezone,
		Current:   n.Current(current),
		Hourly:    n.Hourly(forecast.List),
		Daily:     n.Daily(forecast.List),
	}
}

// Current extracts current conditions. Precipitation probability is always 0: the upstream
// current-conditions payload does not carry it.
func (n *Normalizer) Current(raw models.RawCurrent) models.CurrentWeather {
	var condition, description, icon string
	if len(raw.Weather) > 0 {
		condition = raw.Weather[0].Main
		description = capitalize(raw.Weather[0].Description)
		icon = raw.Weather[0].Icon
	}
	return models.CurrentWeather{
		Temperature:              round1(raw.Main.Temp),
		FeelsLike:                round1(raw.Main.FeelsLike),
		Condition:                condition,
		ConditionDescription:     description,
		Icon:                     icon,
		Humidity:                 raw.Main.Humidity,
		WindSpeed:                round1(raw.Wind.Speed * msToKmh),
		PrecipitationProbability: 0,
		Timestamp:                n.now().UTC(),
	}
}

// Hourly projects the first HourlySlots forecast slots one-to-one.
func (n *Normalizer) Hourly(slots []models.RawForecastSlot) []models.HourlyForecast {
	if len(slots) > HourlySlots {
		slots = slots[:HourlySlots]
	}
	out := make([]models.HourlyForecast, 0, len(slots))
	for _, s := range slots {
		condition, icon := firstWeather(s.Weather)
		out = append(out, models.HourlyForecast{
			Time:                     time.Unix(s.Dt, 0).In(n.location()),
			Temperature:              round1(s.Main.Temp),
			Condition:                condition,
			Icon:                     icon,
			PrecipitationProbability: int(s.Pop * 100),
			WindSpeed:                round1(s.Wind.Speed * msToKmh),
		})
	}
	return out
}

type dayGroup struct {
	date       time.Time
	temps      []float64
	conditions []string
	icons      []string
	pops       []float64
	humidity   []int
}

// Daily aggregates the first DailyWindowSlots slots by calendar date, sorted ascending and capped at MaxDays.
func (n *Normalizer) Daily(slots []models.RawForecastSlot) []models.DailyForecast {
	if len(slots) > DailyWindowSlots {
		slots = slots[:DailyWindowSlots]
	}
	loc := n.location()

	groups := make(map[string]*dayGroup)
	for _, s := range slots {
		t := time.Unix(s.Dt, 0).In(loc)
		k := t.Format("2006-01-02")
		g, ok := groups[k]
		if !ok {
			g = &dayGroup{date: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)}
			groups[k] = g
		}
		condition, icon := firstWeather(s.Weather)
		g.temps = append(g.temps, s.Main.Temp)
		g.conditions = append(g.conditions, condition)
		g.icons = append(g.icons, icon)
		g.pops = append(g.pops, s.Pop*100)
		g.humidity = append(g.humidity, s.Main.Humidity)
	}

	days := make([]*dayGroup, 0, len(groups))
	for _, g := range groups {
		days = append(days, g)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].date.Before(days[j].date) })
	if len(days) > MaxDays {
		days = days[:MaxDays]
	}

	out := make([]models.DailyForecast, 0, len(days))
	for _, g := range days {
		out = append(out, g.summarize())
	}
	return out
}

func (g *dayGroup) summarize() models.DailyForecast {
	minT, maxT := g.temps[0], g.temps[0]
	for _, t := range g.temps[1:] {
		minT = math.Min(minT, t)
		maxT = math.Max(maxT, t)
	}
	maxPop := g.pops[0]
	for _, p := range g.pops[1:] {
		maxPop = math.Max(maxPop, p)
	}
	sum := 0
	for _, h := range g.humidity {
		sum += h
	}

	icon := DefaultIcon
	if len(g.icons) > 0 {
		icon = g.icons[len(g.icons)/2]
	}

	return models.DailyForecast{
		Date:                     g.date,
		TempMin:                  round1(minT),
		TempMax:                  round1(maxT),
		Condition:                DominantCondition(g.conditions),
		Icon:                     icon,
		PrecipitationProbability: int(maxPop),
		Humidity:                 sum / len(g.humidity),
	}
}

// DominantCondition returns the most frequent value. Ties go to the value encountered first.
func DominantCondition(conditions []string) string {
	counts := make(map[string]int, len(conditions))
	order := make([]string, 0, len(conditions))
	for _, c := range conditions {
		if counts[c] == 0 {
			order = append(order, c)
		}
		counts[c]++
	}

	best, bestCount := "", 0
	for _, c := range order {
		if counts[c] > bestCount {
			best, bestCount = c, counts[c]
		}
	}
	return best
}

func firstWeather(w []models.RawWeather) (condition, icon string) {
	if len(w) == 0 {
		return "", ""
	}
	return w[0].Main, w[0].Icon
}

func (n *Normalizer) location() *time.Location {
	if n.Location == nil {
		return time.Local
	}
	return n.Location
}

func (n *Normalizer) now() time.Time {
	if n.Now == nil {
		return time.Now()
	}
	return n.Now()
}

// round1 rounds half away from zero to one decimal place.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
