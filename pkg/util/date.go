package util

import (
	"strconv"
	"time"
)

// DateLayout is the calendar-day format used in every API payload.
const DateLayout = "2006-01-02"

// ParseDate tries YYYY-MM-DD, RFC3339 and unix seconds. Returns (t, true) if any worked.
func ParseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0).UTC(), true
	}
	return time.Time{}, false
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// StartOfDay truncates t to midnight UTC of its UTC calendar day.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ForecastDates returns the n calendar days following last. Weekends and
// holidays are not skipped.
func ForecastDates(last time.Time, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = FormatDate(last.AddDate(0, 0, i+1))
	}
	return out
}

// DayRange returns [to-days, to] aligned to whole UTC days.
func DayRange(to time.Time, days int) (time.Time, time.Time) {
	end := StartOfDay(to)
	return end.AddDate(0, 0, -days), end
}
