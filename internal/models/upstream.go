package models

// RawCurrent is the current-conditions payload returned by the upstream provider.
type RawCurrent struct {
	Name  string `json:"name"`
	Coord struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coord"`
	Sys struct {
		Country string `json:"country"`
	} `json:"sys"`
	Main    RawMain      `json:"main"`
	Weather []RawWeather `json:"weather"`
	Wind    RawWind      `json:"wind"`
	Dt      int64        `json:"dt"`
}

// RawForecast is the 3-hour-slot forecast payload returned by the upstream provider.
type RawForecast struct {
	List []RawForecastSlot `json:"list"`
	City struct {
		Name     string `json:"name"`
		Country  string `json:"country"`
		Timezone int    `json:"timezone"`
	} `json:"city"`
}

// RawForecastSlot is one forecast slot. Pop is a probability in [0, 1].
type RawForecastSlot struct {
	Dt      int64        `json:"dt"`
	Main    RawMain      `json:"main"`
	Weather []RawWeather `json:"weather"`
	Wind    RawWind      `json:"wind"`
	Pop     float64      `json:"pop"`
}

type RawMain struct {
	Temp      float64 `json:"temp"`
	FeelsLike float64 `json:"feels_like"`
	Humidity  int     `json:"humidity"`
}

type RawWeather struct {
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// RawWind carries wind speed in m/s (metric units).
type RawWind struct {
	Speed float64 `json:"speed"`
}

// RawLocationMatch is one entry of the upstream geocoding response.
type RawLocationMatch struct {
	Name    string  `json:"name"`
	Country string  `json:"country"`
	State   string  `json:"state"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}
