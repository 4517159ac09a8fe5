package pricing

import (
	"fmt"
	"time"
)

// secondsPerYear uses a 365.25-day year.
const secondsPerYear = 365.25 * 24 * 3600

// Clock converts an expiry date into the fraction of a year left until the
// daily close. The default close is 20:00 UTC, a fixed stand-in for 4:00 PM
// US Eastern that ignores daylight saving.
type Clock struct {
	CloseHour   int
	CloseMinute int
	Location    *time.Location // defaults to UTC
	Now         func() time.Time
}

// DefaultClock returns the 20:00 UTC close clock driven by time.Now.
func DefaultClock() Clock {
	return Clock{CloseHour: 20, Location: time.UTC, Now: time.Now}
}

// CloseInstant composes the expiry date (YYYY-MM-DD) with the close time of day.
func (c Clock) CloseInstant(expiry string) (time.Time, error) {
	day, err := time.Parse("2006-01-02", expiry)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid expiry date %q: %w", expiry, err)
	}
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(day.Year(), day.Month(), day.Day(), c.CloseHour, c.CloseMinute, 0, 0, loc), nil
}

// YearsToExpiry returns the year fraction remaining until the close of the
// expiry date, or exactly 0 once the close has passed.
func (c Clock) YearsToExpiry(expiry string) (float64, error) {
	closeAt, err := c.CloseInstant(expiry)
	if err != nil {
		return 0, err
	}
	return YearsBetween(c.now(), closeAt), nil
}

// YearsBetween is the non-negative year fraction from now until closeAt.
func YearsBetween(now, closeAt time.Time) float64 {
	remaining := closeAt.Sub(now).Seconds()
	if remaining <= 0 {
		return 0.0
	}
	return remaining / secondsPerYear
}

// Hours converts a year fraction back to hours, for reporting.
func Hours(years float64) float64 {
	return years * 365.25 * 24
}

func (c Clock) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}
