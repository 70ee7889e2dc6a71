package practice

import "time"

// dateKeyLayout is the layout of [DailyUsage.DateKey].
const dateKeyLayout = "2006-01-02"

// DailyUsage is the accumulated active practice time for one calendar day.
type DailyUsage struct {
	DateKey string  `json:"dateKey" yaml:"date_key"`
	Seconds float64 `json:"accumulatedSeconds" yaml:"accumulated_seconds"`
}

// DateKey returns the calendar-day key of t in t's own location.
func DateKey(t time.Time) string {
	return t.Format(dateKeyLayout)
}

// ParseDateKey parses a key produced by [DateKey] in loc.
func ParseDateKey(key string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(dateKeyLayout, key, loc)
}
