package service

import (
	"time"

	appErrors "github.com/noah-isme/tutoring-adm-api/pkg/errors"
)

// Midnight truncates a time to UTC midnight. Session dates are stored
// date-only; all comparisons happen on normalised values.
func Midnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// NextMatchingDates returns the first count dates on or after from whose
// weekday is in days. The scan is bounded by horizonDays; an empty weekday
// set or an exhausted horizon yields ErrScheduleUnresolvable rather than an
// unbounded walk.
func NextMatchingDates(from time.Time, days map[time.Weekday]bool, count, horizonDays int) ([]time.Time, error) {
	if count <= 0 {
		return nil, nil
	}
	if len(days) == 0 {
		return nil, appErrors.Clone(appErrors.ErrScheduleUnresolvable, "class group has no scheduled weekdays")
	}

	dates := make([]time.Time, 0, count)
	cursor := Midnight(from)
	for i := 0; i < horizonDays; i++ {
		if days[cursor.Weekday()] {
			dates = append(dates, cursor)
			if len(dates) == count {
				return dates, nil
			}
		}
		cursor = cursor.AddDate(0, 0, 1)
	}
	return nil, appErrors.ErrScheduleUnresolvable
}
