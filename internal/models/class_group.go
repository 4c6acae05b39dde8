package models

import (
	"time"

	"github.com/lib/pq"
)

// Weekday is the lowercase three-letter weekday code used in schedules.
type Weekday string

const (
	WeekdayMon Weekday = "mon"
	WeekdayTue Weekday = "tue"
	WeekdayWed Weekday = "wed"
	WeekdayThu Weekday = "thu"
	WeekdayFri Weekday = "fri"
	WeekdaySat Weekday = "sat"
	WeekdaySun Weekday = "sun"
)

var weekdayByCode = map[Weekday]time.Weekday{
	WeekdayMon: time.Monday,
	WeekdayTue: time.Tuesday,
	WeekdayWed: time.Wednesday,
	WeekdayThu: time.Thursday,
	WeekdayFri: time.Friday,
	WeekdaySat: time.Saturday,
	WeekdaySun: time.Sunday,
}

// Valid returns true when the code is a supported weekday.
func (w Weekday) Valid() bool {
	_, ok := weekdayByCode[w]
	return ok
}

// Time returns the time.Weekday for the code.
func (w Weekday) Time() time.Weekday {
	return weekdayByCode[w]
}

// WeekdaySet converts code strings into a set keyed by time.Weekday.
// Unknown codes are ignored; order and duplicates are irrelevant.
func WeekdaySet(codes []string) map[time.Weekday]bool {
	set := make(map[time.Weekday]bool, len(codes))
	for _, code := range codes {
		day := Weekday(code)
		if day.Valid() {
			set[day.Time()] = true
		}
	}
	return set
}

// ClassGroup is a named class meeting on a fixed set of weekdays.
type ClassGroup struct {
	ID              string         `db:"id" json:"id"`
	Name            string         `db:"name" json:"name"`
	DaysOfWeek      pq.StringArray `db:"days_of_week" json:"days_of_week"`
	StartTime       string         `db:"start_time" json:"start_time"`
	DurationMinutes int            `db:"duration_minutes" json:"duration_minutes"`
	Memo            *string        `db:"memo" json:"memo,omitempty"`
	Active          bool           `db:"active" json:"active"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}
