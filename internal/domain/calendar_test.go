package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func businessHours(holidays ...string) *BusinessCalendar {
	hmap := map[string]bool{}
	for _, h := range holidays {
		hmap[h] = true
	}
	return &BusinessCalendar{
		ID:       "test",
		Location: time.UTC,
		Weekdays: map[time.Weekday]bool{
			time.Monday:    true,
			time.Tuesday:   true,
			time.Wednesday: true,
			time.Thursday:  true,
			time.Friday:    true,
		},
		StartMinute: 9 * 60,
		EndMinute:   17 * 60,
		Holidays:    hmap,
	}
}

func TestAddBusinessSkipsWeekend(t *testing.T) {
	cal := businessHours()
	// Friday 16:00; one countable hour remains before the weekend.
	friday := time.Date(2026, 3, 6, 16, 0, 0, 0, time.UTC)
	require.Equal(t, time.Friday, friday.Weekday())

	deadline := cal.AddBusiness(friday, 4*time.Hour)

	monday := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, monday, deadline)
}

func TestAddBusinessStartsAtWindowOpen(t *testing.T) {
	cal := businessHours()
	saturday := time.Date(2026, 3, 7, 11, 0, 0, 0, time.UTC)

	deadline := cal.AddBusiness(saturday, 2*time.Hour)

	assert.Equal(t, time.Date(2026, 3, 9, 11, 0, 0, 0, time.UTC), deadline)
}

func TestAddBusinessSkipsHolidays(t *testing.T) {
	cal := businessHours("2026-03-09")
	friday := time.Date(2026, 3, 6, 16, 0, 0, 0, time.UTC)

	deadline := cal.AddBusiness(friday, 4*time.Hour)

	// Monday is a holiday, so the remaining three hours land on Tuesday.
	assert.Equal(t, time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC), deadline)
}

func TestAddBusinessNilCalendarIsWallClock(t *testing.T) {
	var cal *BusinessCalendar
	from := time.Date(2026, 3, 6, 16, 0, 0, 0, time.UTC)
	assert.Equal(t, from.Add(4*time.Hour), cal.AddBusiness(from, 4*time.Hour))
}

func TestBusinessBetween(t *testing.T) {
	cal := businessHours()
	friday := time.Date(2026, 3, 6, 16, 0, 0, 0, time.UTC)
	monday := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, 2*time.Hour, cal.BusinessBetween(friday, monday))
	assert.Equal(t, time.Duration(0), cal.BusinessBetween(monday, friday))
}

func TestBusinessBetweenOutsideWindow(t *testing.T) {
	cal := businessHours()
	// Saturday morning to Sunday night spans no countable time.
	sat := time.Date(2026, 3, 7, 8, 0, 0, 0, time.UTC)
	sun := time.Date(2026, 3, 8, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Duration(0), cal.BusinessBetween(sat, sun))
}

func TestBusinessBetweenIsInverseOfAddBusiness(t *testing.T) {
	cal := businessHours()
	from := time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC)
	for _, d := range []time.Duration{time.Hour, 7 * time.Hour, 30 * time.Hour} {
		deadline := cal.AddBusiness(from, d)
		assert.Equal(t, d, cal.BusinessBetween(from, deadline), "duration %s", d)
	}
}
