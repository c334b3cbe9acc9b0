package board

import (
	"fmt"
	"math"
	"time"
)

// Ago formats the distance from t to now the way cards show it,
// e.g. "5 minutes ago" or "about 2 hours ago".
func Ago(t, now time.Time) string {
	d := now.Sub(t)
	if d < 0 {
		return "in " + Distance(-d)
	}
	return Distance(d) + " ago"
}

// Distance renders d as an approximate human duration.
func Distance(d time.Duration) string {
	const (
		minute = time.Minute
		hour   = time.Hour
		day    = 24 * time.Hour
		month  = 30 * day
		year   = 365 * day
	)
	roundTo := func(d, unit time.Duration) int {
		return int(math.Round(float64(d) / float64(unit)))
	}
	plural := func(n int, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}

	switch {
	case d < 30*time.Second:
		return "less than a minute"
	case d < 90*time.Second:
		return "1 minute"
	case d < 44*minute+30*time.Second:
		return plural(roundTo(d, minute), "minute")
	case d < 89*minute+30*time.Second:
		return "about 1 hour"
	case d < 24*hour-30*time.Second:
		return "about " + plural(roundTo(d, hour), "hour")
	case d < 42*hour-30*time.Second:
		return "1 day"
	case d < 30*day-30*time.Second:
		return plural(roundTo(d, day), "day")
	case d < 45*day-30*time.Second:
		return "about 1 month"
	case d < 60*day-30*time.Second:
		return "about 2 months"
	case d < year:
		return plural(roundTo(d, month), "month")
	}

	years := int(d / year)
	rest := d - time.Duration(years)*year
	switch {
	case rest < 3*month:
		return "about " + plural(years, "year")
	case rest < 9*month:
		return "over " + plural(years, "year")
	}
	return "almost " + plural(years+1, "year")
}
