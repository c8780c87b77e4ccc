package calendar

import (
	"fmt"
	"time"
)

// Day is a calendar date without a time of day.
type Day struct {
	Year  int
	Month time.Month
	Day   int
}

// DayOf returns the date of t as observed in t's own offset.
// 2025-03-10T01:00:00+04:30 is 2025-03-10 even though it is still March 9th in UTC.
func DayOf(t time.Time) Day {
	y, m, d := t.Date()
	return Day{Year: y, Month: m, Day: d}
}

// ParseDay parses a YYYY-MM-DD date.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Day{}, fmt.Errorf("calendar: invalid day %q: %w", s, err)
	}
	return DayOf(t), nil
}

// Key formats the day as YYYY-MM-DD, which is also how the calendar service keys free slots.
func (d Day) Key() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Day) String() string { return d.Key() }

// Window is the UTC day [00:00, +24h) for the date. It does not depend on any caller offset.
func (d Day) Window() (start, end time.Time) {
	start = time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}
