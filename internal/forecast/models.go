// Package forecast turns raw multi-day provider data into per-day display
// units, gated by the purchased tier's feature set.
package forecast

import "time"

// RawForecast is the provider's 5-day/3-hour forecast payload, decoded as-is.
// Entries arrive in chronological order, eight per full day.
type RawForecast struct {
	Cod  string             `json:"cod"`
	List []RawForecastEntry `json:"list"`
	City RawCity            `json:"city"`
}

// RawForecastEntry is one 3-hour forecast slot.
type RawForecastEntry struct {
	Dt   int64 `json:"dt"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		TempMin   float64 `json:"temp_min"`
		TempMax   float64 `json:"temp_max"`
		Pressure  int     `json:"pressure"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		ID          int    `json:"id"`
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Clouds struct {
		All int `json:"all"`
	} `json:"clouds"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

// RawCity carries location metadata: name, UTC offset in seconds, and the
// current day's sun times as Unix timestamps.
type RawCity struct {
	Name     string `json:"name"`
	Country  string `json:"country"`
	Timezone int    `json:"timezone"`
	Sunrise  int64  `json:"sunrise"`
	Sunset   int64  `json:"sunset"`
}

// RawAirQuality is the provider's air-pollution payload.
type RawAirQuality struct {
	List []struct {
		Main struct {
			AQI int `json:"aqi"`
		} `json:"main"`
		Components struct {
			PM25 float64 `json:"pm2_5"`
			O3   float64 `json:"o3"`
		} `json:"components"`
	} `json:"list"`
}

// RawBundle is everything one delivery needs from the provider. Air is nil
// when the purchased tier has no air-quality entitlement and the second
// request was skipped.
type RawBundle struct {
	Forecast  *RawForecast
	Air       *RawAirQuality
	FetchedAt time.Time
}

// LocalTime converts a provider Unix timestamp to the forecast location's
// local clock using the city's UTC offset.
func (c RawCity) LocalTime(unix int64) time.Time {
	loc := time.FixedZone("local", c.Timezone)
	return time.Unix(unix, 0).In(loc)
}
