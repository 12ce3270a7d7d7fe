// Package markethours knows which calendar days Dukascopy can have data for.
// FX trades continuously from the Sunday evening open to the Friday close,
// so Sundays carry real ticks; Saturdays never do.
package markethours

import "time"

// HasData reports whether the UTC calendar day can hold historical data:
// not a Saturday, not a holiday, and strictly before today (the current day
// is still being written on the provider side).
func HasData(day, now time.Time) bool {
	return SkipReason(day, now) == ""
}

// SkipReason returns a short human-readable reason the day is skipped, or
// the empty string when the day is downloadable.
func SkipReason(day, now time.Time) string {
	d := day.UTC()
	switch {
	case d.Weekday() == time.Saturday:
		return "saturday"
	case IsHoliday(d):
		return "holiday"
	case !dayStart(d).Before(dayStart(now.UTC())):
		return "not yet published"
	}
	return ""
}

// Days returns every UTC calendar day from start through end inclusive.
// Filtering is the caller's business; resume bookkeeping needs the full list.
func Days(start, end time.Time) []time.Time {
	var days []time.Time
	for d := dayStart(start.UTC()); !d.After(dayStart(end.UTC())); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
