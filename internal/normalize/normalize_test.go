package normalize

import (
	"testing"
	"time"

	"github.com/kjstillabower/weather-cache-proxy/internal/models"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestNormalizer() *Normalizer {
	return &Normalizer{Location: time.UTC, Now: func() time.Time { return fixedNow }}
}

func slot(t time.Time, temp float64, cond, icon string, pop float64, humidity int) models.RawForecastSlot {
	return models.RawForecastSlot{
		Dt:      t.Unix(),
		Main:    models.RawMain{Temp: temp, Humidity: humidity},
		Weather: []models.RawWeather{{Main: cond, Icon: icon}},
		Wind:    models.RawWind{Speed: 2.5},
		Pop:     pop,
	}
}

// threeDaySlots returns 24 slots, 8 per calendar date, starting at midnight UTC.
func threeDaySlots() []models.RawForecastSlot {
	start := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	slots := make([]models.RawForecastSlot, 0, 24)
	for i := 0; i < 24; i++ {
		slots = append(slots, slot(start.Add(time.Duration(i)*3*time.Hour), float64(10+i%8), "Clouds", "04d", 0.1, 70))
	}
	return slots
}

func TestCurrent_WindConversion(t *testing.T) {
	n := newTestNormalizer()
	got := n.Current(models.RawCurrent{Wind: models.RawWind{Speed: 10}})
	if got.WindSpeed != 36.0 {
		t.Errorf("WindSpeed = %v, want 36.0", got.WindSpeed)
	}
}

func TestCurrent_Fields(t *testing.T) {
	n := newTestNormalizer()
	raw := models.RawCurrent{
		Main:    models.RawMain{Temp: 18.26, FeelsLike: 17.94, Humidity: 63},
		Weather: []models.RawWeather{{Main: "Clouds", Description: "bROKEN clouds", Icon: "04d"}},
		Wind:    models.RawWind{Speed: 4.1},
	}

	got := n.Current(raw)
	if got.Temperature != 18.3 || got.FeelsLike != 17.9 {
		t.Errorf("temperatures = %v/%v, want 18.3/17.9", got.Temperature, got.FeelsLike)
	}
	if got.Condition != "Clouds" || got.Icon != "04d" {
		t.Errorf("condition/icon = %q/%q", got.Condition, got.Icon)
	}
	if got.ConditionDescription != "Broken clouds" {
		t.Errorf("ConditionDescription = %q, want %q", got.ConditionDescription, "Broken clouds")
	}
	if got.Humidity != 63 {
		t.Errorf("Humidity = %d, want 63", got.Humidity)
	}
	if got.WindSpeed != 14.8 {
		t.Errorf("WindSpeed = %v, want 14.8", got.WindSpeed)
	}
	if got.PrecipitationProbability != 0 {
		t.Errorf("PrecipitationProbability = %d, want 0", got.PrecipitationProbability)
	}
	if !got.Timestamp.Equal(fixedNow) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, fixedNow)
	}
}

func TestCurrent_EmptyWeatherList(t *testing.T) {
	got := newTestNormalizer().Current(models.RawCurrent{})
	if got.Condition != "" || got.Icon != "" || got.ConditionDescription != "" {
		t.Errorf("expected empty condition fields, got %+v", got)
	}
}

func TestHourly_TruncatesToTwelveSlots(t *testing.T) {
	slots := threeDaySlots()
	slots[0].Pop = 0.25
	slots[0].Wind.Speed = 10

	got := newTestNormalizer().Hourly(slots)
	if len(got) != HourlySlots {
		t.Fatalf("len(Hourly) = %d, want %d", len(got), HourlySlots)
	}
	if got[0].PrecipitationProbability != 25 {
		t.Errorf("PrecipitationProbability = %d, want 25", got[0].PrecipitationProbability)
	}
	if got[0].WindSpeed != 36.0 {
		t.Errorf("WindSpeed = %v, want 36.0", got[0].WindSpeed)
	}
	if !got[1].Time.Equal(time.Unix(slots[1].Dt, 0)) {
		t.Errorf("Time = %v, want %v", got[1].Time, time.Unix(slots[1].Dt, 0))
	}
}

func TestHourly_FewerSlots(t *testing.T) {
	got := newTestNormalizer().Hourly(threeDaySlots()[:3])
	if len(got) != 3 {
		t.Errorf("len(Hourly) = %d, want 3", len(got))
	}
}

func TestDaily_ThreeDates(t *testing.T) {
	got := newTestNormalizer().Daily(threeDaySlots())
	if len(got) != 3 {
		t.Fatalf("len(Daily) = %d, want 3", len(got))
	}
	for i, d := range got {
		if d.TempMin > d.TempMax {
			t.Errorf("day %d: TempMin %v > TempMax %v", i, d.TempMin, d.TempMax)
		}
		if i > 0 && !got[i-1].Date.Before(d.Date) {
			t.Errorf("day %d not sorted ascending: %v then %v", i, got[i-1].Date, d.Date)
		}
	}
	if got[0].TempMin != 10 || got[0].TempMax != 17 {
		t.Errorf("day 0 min/max = %v/%v, want 10/17", got[0].TempMin, got[0].TempMax)
	}
	want := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	if !got[0].Date.Equal(want) {
		t.Errorf("day 0 Date = %v, want %v", got[0].Date, want)
	}
}

func TestDaily_OnlyFirst24SlotsAndThreeDays(t *testing.T) {
	start := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	slots := make([]models.RawForecastSlot, 0, 40)
	for i := 0; i < 40; i++ {
		slots = append(slots, slot(start.Add(time.Duration(i)*3*time.Hour), 5, "Rain", "10d", 0, 50))
	}
	got := newTestNormalizer().Daily(slots)
	if len(got) != MaxDays {
		t.Errorf("len(Daily) = %d, want %d", len(got), MaxDays)
	}
}

func TestDaily_PartialFirstDayKeepsThreeEntries(t *testing.T) {
	// Starting at 15:00 the 24-slot window spans four dates; only the earliest three survive.
	start := time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC)
	slots := make([]models.RawForecastSlot, 0, 24)
	for i := 0; i < 24; i++ {
		slots = append(slots, slot(start.Add(time.Duration(i)*3*time.Hour), 5, "Rain", "10d", 0, 50))
	}
	got := newTestNormalizer().Daily(slots)
	if len(got) != 3 {
		t.Fatalf("len(Daily) = %d, want 3", len(got))
	}
	if got[0].Date.Day() != 2 || got[2].Date.Day() != 4 {
		t.Errorf("dates = %v..%v, want 2nd..4th", got[0].Date, got[2].Date)
	}
}

func TestDaily_Aggregates(t *testing.T) {
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	slots := []models.RawForecastSlot{
		slot(day, 12.34, "Clear", "01d", 0.2, 60),
		slot(day.Add(3*time.Hour), 8.06, "Clear", "01n", 0.55, 71),
		slot(day.Add(6*time.Hour), 15.56, "Rain", "10d", 0.1, 70),
	}

	got := newTestNormalizer().Daily(slots)
	if len(got) != 1 {
		t.Fatalf("len(Daily) = %d, want 1", len(got))
	}
	d := got[0]
	if d.Condition != "Clear" {
		t.Errorf("Condition = %q, want Clear", d.Condition)
	}
	if d.Icon != "01n" {
		t.Errorf("Icon = %q, want middle icon 01n", d.Icon)
	}
	if d.TempMin != 8.1 || d.TempMax != 15.6 {
		t.Errorf("min/max = %v/%v, want 8.1/15.6", d.TempMin, d.TempMax)
	}
	if d.PrecipitationProbability != 55 {
		t.Errorf("PrecipitationProbability = %d, want 55", d.PrecipitationProbability)
	}
	if d.Humidity != 67 {
		t.Errorf("Humidity = %d, want 67 (truncated mean)", d.Humidity)
	}
}

func TestDaily_Empty(t *testing.T) {
	if got := newTestNormalizer().Daily(nil); len(got) != 0 {
		t.Errorf("Daily(nil) = %v, want empty", got)
	}
}

func TestDaily_GroupsByConfiguredLocation(t *testing.T) {
	// 23:00 UTC is already the next day in UTC+2.
	loc := time.FixedZone("UTC+2", 2*3600)
	n := &Normalizer{Location: loc, Now: func() time.Time { return fixedNow }}
	base := time.Date(2025, 6, 2, 20, 0, 0, 0, time.UTC)
	slots := []models.RawForecastSlot{
		slot(base, 10, "Clear", "01d", 0, 50),
		slot(base.Add(3*time.Hour), 10, "Clear", "01d", 0, 50),
	}

	got := n.Daily(slots)
	if len(got) != 2 {
		t.Fatalf("len(Daily) = %d, want 2", len(got))
	}
	if got[1].Date.Day() != 3 || got[1].Date.Location() != loc {
		t.Errorf("second day = %v, want June 3 in UTC+2", got[1].Date)
	}
}

func TestDominantCondition(t *testing.T) {
	tests := []struct {
		name       string
		conditions []string
		want       string
	}{
		{"majority", []string{"Clear", "Clear", "Rain"}, "Clear"},
		{"majority later", []string{"Rain", "Clear", "Clear"}, "Clear"},
		{"tie first seen wins", []string{"Rain", "Clear", "Clear", "Rain"}, "Rain"},
		{"tie reversed", []string{"Clear", "Rain"}, "Clear"},
		{"single", []string{"Snow"}, "Snow"},
		{"empty", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DominantCondition(tt.conditions); got != tt.want {
				t.Errorf("DominantCondition(%v) = %q, want %q", tt.conditions, got, tt.want)
			}
		})
	}
}

func TestNormalize_IdentityAndTimezone(t *testing.T) {
	current := models.RawCurrent{Name: "Paris"}
	current.Sys.Country = "FR"
	current.Coord.Lat = 48.85
	current.Coord.Lon = 2.35
	forecast := models.RawForecast{List: threeDaySlots()}
	forecast.City.Name = "Paris Resolved"
	forecast.City.Timezone = 7200

	got := newTestNormalizer().Normalize(current, forecast)
	if got.City != "Paris" || got.Country != "FR" {
		t.Errorf("identity = %q/%q, want Paris/FR", got.City, got.Country)
	}
	if got.Latitude != 48.85 || got.Longitude != 2.35 {
		t.Errorf("coords = %v,%v", got.Latitude, got.Longitude)
	}
	if got.Timezone != 7200 {
		t.Errorf("Timezone = %d, want 7200", got.Timezone)
	}
	if len(got.Hourly) != 12 || len(got.Daily) != 3 {
		t.Errorf("len(hourly)=%d len(daily)=%d", len(got.Hourly), len(got.Daily))
	}
	if got.Cached || got.CacheExpiresAt != nil {
		t.Error("normalizer must not set cache metadata")
	}
}

func TestRound1(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{18.25, 18.3},
		{-3.44, -3.4},
		{36.0, 36.0},
		{14.76, 14.8},
	}
	for _, tt := range tests {
		if got := round1(tt.in); got != tt.want {
			t.Errorf("round1(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
