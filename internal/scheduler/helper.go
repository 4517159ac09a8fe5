package scheduler

import (
	"fmt"
	"time"
)

// --------------------------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------------------------

// CombineDateTime combines a date, time-of-day (HH:MM),
// and location into a time.Time
func CombineDateTime(
	day time.Time,
	timeOfDay string,
	loc *time.Location,
) (time.Time, error) {

	// Parse HH:MM
	parsedTime, err := time.Parse("15:04", timeOfDay)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timeOfDay format (HH:MM): %w", err)
	}

	day = day.In(loc)
	return time.Date(
		day.Year(),
		day.Month(),
		day.Day(),
		parsedTime.Hour(),
		parsedTime.Minute(),
		0,
		0,
		loc,
	), nil
}

func isWeekday(t time.Time) bool {
	return t.Weekday() != time.Saturday && t.Weekday() != time.Sunday
}
