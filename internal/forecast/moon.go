package forecast

import (
	"math"
	"time"

	"github.com/BogdanDubenets/weather-bot-telegram/internal/types"
)

// moonPhases lists the eight named phases in cycle order. Phase boundaries
// sit at odd multiples of 1/16 of the synodic cycle, so "new moon" spans the
// wrap-around at 0.
var moonPhases = []types.MoonPhase{
	{Name: "New moon", Icon: "🌑"},
	{Name: "Waxing crescent", Icon: "🌒"},
	{Name: "First quarter", Icon: "🌓"},
	{Name: "Waxing gibbous", Icon: "🌔"},
	{Name: "Full moon", Icon: "🌕"},
	{Name: "Waning gibbous", Icon: "🌖"},
	{Name: "Last quarter", Icon: "🌗"},
	{Name: "Waning crescent", Icon: "🌘"},
}

// MoonPhaseAt computes the lunar phase for the given date using a simplified
// Julian-day approximation. Accuracy is within a day, which is all a weather
// digest needs.
func MoonPhaseAt(t time.Time) types.MoonPhase {
	year, month, day := t.Date()

	jd := 365.25*float64(year-1900) + math.Floor(30.6*float64(month)) + float64(day) - 694039.09
	age := jd*1.5336 + 0.18
	phase := age - math.Floor(age)

	switch {
	case phase < 0.0625 || phase >= 0.9375:
		return moonPhases[0]
	case phase < 0.1875:
		return moonPhases[1]
	case phase < 0.3125:
		return moonPhases[2]
	case phase < 0.4375:
		return moonPhases[3]
	case phase < 0.5625:
		return moonPhases[4]
	case phase < 0.6875:
		return moonPhases[5]
	case phase < 0.8125:
		return moonPhases[6]
	default:
		return moonPhases[7]
	}
}
