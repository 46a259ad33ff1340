package forecast

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/BogdanDubenets/weather-bot-telegram/internal/types"
)

// dayLabels names forecast days relative to the first one, matching the
// six-day maximum window.
var dayLabels = []string{"TODAY", "TOMORROW", "DAY AFTER TOMORROW", "IN 3 DAYS", "IN 4 DAYS", "IN 5 DAYS"}

// aqiLabels maps the provider's 1..5 air quality index to a display label.
var aqiLabels = map[int]string{
	1: "Good 🟢",
	2: "Fair 🟡",
	3: "Moderate 🟠",
	4: "Poor 🔴",
	5: "Very poor 🟣",
}

// Formatter turns a raw provider bundle into ordered per-day display units.
// It is stateless and safe for concurrent use.
type Formatter struct {
	logger *slog.Logger
}

// NewFormatter creates a Formatter.
func NewFormatter(logger *slog.Logger) *Formatter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Formatter{logger: logger}
}

// dayBucket accumulates the 3-hour slots belonging to one calendar date.
type dayBucket struct {
	date    time.Time // midnight, location-local
	entries []RawForecastEntry
}

// Format produces exactly tier.Days ForecastDay units in chronological order,
// each carrying only the fields the tier's feature set enables.
//
// The provider returns 3-hour slots; they are grouped by calendar date in the
// forecast location's local time, with min/max temperatures aggregated across
// the date and headline conditions taken from the slot nearest 13:00. If the
// provider covered fewer distinct dates than the tier requires, Format fails
// with forecast_incomplete_data rather than padding.
func (f *Formatter) Format(bundle *RawBundle, tier types.Tier) ([]types.ForecastDay, error) {
	if bundle == nil || bundle.Forecast == nil || len(bundle.Forecast.List) == 0 {
		return nil, types.NewAppError(
			types.ErrCodeForecastIncompleteData,
			"provider returned no forecast entries",
			nil,
		)
	}

	city := bundle.Forecast.City
	buckets := bucketByDate(bundle.Forecast.List, city)

	if len(buckets) < tier.Days {
		f.logger.Warn("provider returned fewer forecast days than purchased",
			slog.Int("have", len(buckets)),
			slog.Int("want", tier.Days),
		)
		return nil, types.NewAppError(
			types.ErrCodeForecastIncompleteData,
			fmt.Sprintf("provider covered %d days, purchase requires %d", len(buckets), tier.Days),
			nil,
		)
	}

	var air *types.AirQuality
	if tier.Features.Has(types.FeatureAirQuality) && bundle.Air != nil && len(bundle.Air.List) > 0 {
		obs := bundle.Air.List[0]
		air = &types.AirQuality{
			AQI:  obs.Main.AQI,
			PM25: obs.Components.PM25,
			O3:   obs.Components.O3,
		}
	}

	days := make([]types.ForecastDay, 0, tier.Days)
	for i := 0; i < tier.Days; i++ {
		day := buildDay(buckets[i], i, city)

		if !tier.Features.Has(types.FeatureExtended) {
			day.Humidity = 0
			day.WindSpeed = 0
			day.Pressure = 0
			day.Clouds = 0
			day.FeelsLike = day.Temp
		}
		if tier.Features.Has(types.FeatureAirQuality) {
			day.Air = air
		}
		if tier.Features.Has(types.FeatureMoonPhase) {
			moon := MoonPhaseAt(day.Date)
			day.Moon = &moon
			sunrise := city.LocalTime(city.Sunrise)
			sunset := city.LocalTime(city.Sunset)
			day.Sunrise = &sunrise
			day.Sunset = &sunset
		}
		if tier.Features.Has(types.FeatureHealth) {
			day.HealthAdvice = healthAdvice(day)
		}

		days = append(days, day)
	}

	return days, nil
}

// bucketByDate groups forecast slots by their location-local calendar date,
// ordered chronologically. The map is keyed by the formatted date, not the
// midnight time.Time: == on time.Time compares the *Location pointer, and
// LocalTime builds a fresh zone per call, so time keys would never collide.
func bucketByDate(entries []RawForecastEntry, city RawCity) []dayBucket {
	byDate := make(map[string]*dayBucket)
	for _, e := range entries {
		local := city.LocalTime(e.Dt)
		key := local.Format(time.DateOnly)
		b, ok := byDate[key]
		if !ok {
			b = &dayBucket{date: time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())}
			byDate[key] = b
		}
		b.entries = append(b.entries, e)
	}

	buckets := make([]dayBucket, 0, len(byDate))
	for _, b := range byDate {
		buckets = append(buckets, *b)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].date.Before(buckets[j].date) })
	return buckets
}

// buildDay aggregates one date's slots: temperature range across the whole
// date, headline values from the slot nearest 13:00 local.
func buildDay(b dayBucket, index int, city RawCity) types.ForecastDay {
	head := b.entries[0]
	bestDist := middayDistance(city.LocalTime(head.Dt))
	tmin, tmax := head.Main.TempMin, head.Main.TempMax

	for _, e := range b.entries[1:] {
		if e.Main.TempMin < tmin {
			tmin = e.Main.TempMin
		}
		if e.Main.TempMax > tmax {
			tmax = e.Main.TempMax
		}
		if d := middayDistance(city.LocalTime(e.Dt)); d < bestDist {
			bestDist = d
			head = e
		}
	}

	day := types.ForecastDay{
		Date:      b.date,
		Label:     dayLabel(index),
		TempMin:   tmin,
		TempMax:   tmax,
		Temp:      head.Main.Temp,
		FeelsLike: head.Main.FeelsLike,
		Humidity:  head.Main.Humidity,
		WindSpeed: head.Wind.Speed,
		Pressure:  head.Main.Pressure,
		Clouds:    head.Clouds.All,
	}
	if len(head.Weather) > 0 {
		day.Conditions = head.Weather[0].Description
	}
	return day
}

func middayDistance(t time.Time) time.Duration {
	midday := time.Date(t.Year(), t.Month(), t.Day(), 13, 0, 0, 0, t.Location())
	d := t.Sub(midday)
	if d < 0 {
		d = -d
	}
	return d
}

func dayLabel(index int) string {
	if index < len(dayLabels) {
		return dayLabels[index]
	}
	return fmt.Sprintf("IN %d DAYS", index)
}

// healthAdvice derives a one-line recommendation from air quality and the
// day's temperature range.
func healthAdvice(day types.ForecastDay) string {
	var parts []string

	if day.Air != nil {
		switch {
		case day.Air.AQI >= 4:
			parts = append(parts, "Air quality is poor: limit outdoor exercise and keep windows closed.")
		case day.Air.AQI == 3:
			parts = append(parts, "Sensitive groups should shorten prolonged outdoor exertion.")
		}
	}
	switch {
	case day.TempMax >= 30:
		parts = append(parts, "Hot day ahead: drink water often and avoid the midday sun.")
	case day.TempMin <= -10:
		parts = append(parts, "Severe cold: dress in layers and cover exposed skin.")
	}

	if len(parts) == 0 {
		return "Conditions look comfortable; a good day to spend time outside."
	}
	return strings.Join(parts, " ")
}

// AQILabel returns the display label for an air quality index value.
func AQILabel(aqi int) string {
	if label, ok := aqiLabels[aqi]; ok {
		return label
	}
	return "Unknown"
}

// RenderDay renders one ForecastDay as the outbound chat message text.
// Sections appear only for the fields the purchased tier populated.
func RenderDay(day types.ForecastDay) string {
	var b strings.Builder

	fmt.Fprintf(&b, "📅 %s — %s\n", day.Label, day.Date.Format("Mon, 2 Jan"))
	fmt.Fprintf(&b, "\n🌡️ Temperature: %d°C", round(day.Temp))
	if day.FeelsLike != day.Temp {
		fmt.Fprintf(&b, " (feels like %d°C)", round(day.FeelsLike))
	}
	fmt.Fprintf(&b, "\n   📈 Min: %d°C | Max: %d°C\n", round(day.TempMin), round(day.TempMax))
	if day.Conditions != "" {
		fmt.Fprintf(&b, "   %s\n", day.Conditions)
	}

	if day.Humidity > 0 || day.WindSpeed > 0 || day.Pressure > 0 {
		fmt.Fprintf(&b, "\n💧 Humidity: %d%%\n", day.Humidity)
		fmt.Fprintf(&b, "💨 Wind: %.1f m/s\n", day.WindSpeed)
		fmt.Fprintf(&b, "🔽 Pressure: %d hPa\n", day.Pressure)
		fmt.Fprintf(&b, "☁️ Clouds: %d%%\n", day.Clouds)
	}

	if day.Air != nil {
		fmt.Fprintf(&b, "\n🌬️ Air quality: %s\n", AQILabel(day.Air.AQI))
		fmt.Fprintf(&b, "✅ PM2.5: %.1f µg/m³\n", day.Air.PM25)
		fmt.Fprintf(&b, "✅ O3: %.1f µg/m³\n", day.Air.O3)
	}

	if day.Moon != nil {
		fmt.Fprintf(&b, "\n%s Moon: %s\n", day.Moon.Icon, day.Moon.Name)
		if day.Sunrise != nil && day.Sunset != nil {
			fmt.Fprintf(&b, "🌅 Sunrise: %s | 🌇 Sunset: %s\n",
				day.Sunrise.Format("15:04"), day.Sunset.Format("15:04"))
		}
	}

	if day.HealthAdvice != "" {
		fmt.Fprintf(&b, "\n💡 %s\n", day.HealthAdvice)
	}

	return strings.TrimRight(b.String(), "\n")
}

func round(v float64) int {
	if v < 0 {
		return int(v - 0.5)
	}
	return int(v + 0.5)
}
