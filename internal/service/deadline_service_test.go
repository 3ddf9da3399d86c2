package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/sla-engine/internal/calendar"
	"github.com/spec-kit/sla-engine/internal/domain"
)

func weekdayCalendar() *domain.BusinessCalendar {
	return &domain.BusinessCalendar{
		ID:       "business-hours",
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
	}
}

func TestComputeDeadlineSkipsWeekend(t *testing.T) {
	calID := "business-hours"
	policy := testPolicy("tenant-1")
	policy.CalendarID = &calID
	calc := NewDeadlineCalculator(calendar.NewRegistry(weekdayCalendar()))

	friday := time.Date(2026, 3, 6, 16, 0, 0, 0, time.UTC)
	require.Equal(t, time.Friday, friday.Weekday())

	set := calc.Compute(policy, domain.TicketPriorityMedium, friday)

	// A 4h budget from Friday 16:00 lands Monday 12:00, not Friday 20:00.
	assert.Equal(t, time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC), set.FirstResponse.DeadlineAt)
	assert.Equal(t, (4 * time.Hour).Milliseconds(), set.FirstResponse.BudgetMs)
	assert.Equal(t, time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC), set.Resolution.DeadlineAt)
}

func TestComputeAppliesPriorityOverrides(t *testing.T) {
	calc := NewDeadlineCalculator(calendar.NewRegistry())
	policy := testPolicy("tenant-1")
	created := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

	set := calc.Compute(policy, domain.TicketPriorityUrgent, created)

	assert.Equal(t, time.Hour.Milliseconds(), set.FirstResponse.BudgetMs)
	assert.Equal(t, (2 * time.Hour).Milliseconds(), set.Resolution.BudgetMs)
	assert.Equal(t, created.Add(time.Hour), set.FirstResponse.DeadlineAt)
}

func TestComputeUnknownCalendarFallsBackToWallClock(t *testing.T) {
	missing := "nonexistent"
	policy := testPolicy("tenant-1")
	policy.CalendarID = &missing
	calc := NewDeadlineCalculator(calendar.NewRegistry())

	created := time.Date(2026, 3, 6, 16, 0, 0, 0, time.UTC)
	set := calc.Compute(policy, domain.TicketPriorityMedium, created)

	assert.Equal(t, created.Add(4*time.Hour), set.FirstResponse.DeadlineAt)
}
