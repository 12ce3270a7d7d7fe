package markethours

import "time"

// FX market holidays that repeat every year. Dukascopy serves no tick data
// on these dates; requesting them just burns retries on 404s.
var fxHolidays = []struct {
	month time.Month
	day   int
}{
	{time.January, 1},   // New Year's Day
	{time.December, 25}, // Christmas
}

// pre-compute for fast lookup
var holidaySet map[string]bool

func init() {
	holidaySet = make(map[string]bool, len(fxHolidays))
	for _, h := range fxHolidays {
		holidaySet[monthDayKey(h.month, h.day)] = true
	}
}

// IsHoliday reports whether the UTC date is an FX market holiday.
func IsHoliday(t time.Time) bool {
	u := t.UTC()
	return holidaySet[monthDayKey(u.Month(), u.Day())]
}

func monthDayKey(month time.Month, day int) string {
	return time.Date(2000, month, day, 0, 0, 0, 0, time.UTC).Format("01-02")
}
