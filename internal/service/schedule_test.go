package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/tutoring-adm-api/pkg/errors"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestMidnight(t *testing.T) {
	in := time.Date(2026, 3, 2, 18, 45, 12, 0, time.UTC)
	assert.Equal(t, day(2026, 3, 2), Midnight(in))
}

func TestNextMatchingDatesMonWed(t *testing.T) {
	days := map[time.Weekday]bool{time.Monday: true, time.Wednesday: true}

	// 2026-03-02 is a Monday.
	dates, err := NextMatchingDates(day(2026, 3, 2), days, 8, 365)
	require.NoError(t, err)
	require.Len(t, dates, 8)

	expected := []time.Time{
		day(2026, 3, 2), day(2026, 3, 4),
		day(2026, 3, 9), day(2026, 3, 11),
		day(2026, 3, 16), day(2026, 3, 18),
		day(2026, 3, 23), day(2026, 3, 25),
	}
	assert.Equal(t, expected, dates)
}

func TestNextMatchingDatesStartsMidWeek(t *testing.T) {
	days := map[time.Weekday]bool{time.Monday: true, time.Wednesday: true}

	// Starting on a Tuesday skips to the next Wednesday.
	dates, err := NextMatchingDates(day(2026, 3, 3), days, 1, 365)
	require.NoError(t, err)
	require.Len(t, dates, 1)
	assert.Equal(t, day(2026, 3, 4), dates[0])
}

func TestNextMatchingDatesEmptyWeekdaySet(t *testing.T) {
	_, err := NextMatchingDates(day(2026, 3, 2), nil, 8, 365)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrScheduleUnresolvable.Code, appErrors.FromError(err).Code)
}

func TestNextMatchingDatesHorizonExhausted(t *testing.T) {
	days := map[time.Weekday]bool{time.Monday: true}

	_, err := NextMatchingDates(day(2026, 3, 2), days, 8, 10)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrScheduleUnresolvable.Code, appErrors.FromError(err).Code)
}

func TestNextMatchingDatesZeroCount(t *testing.T) {
	dates, err := NextMatchingDates(day(2026, 3, 2), map[time.Weekday]bool{time.Monday: true}, 0, 365)
	require.NoError(t, err)
	assert.Nil(t, dates)
}
