package service

import (
	"time"

	"github.com/spec-kit/sla-engine/internal/calendar"
	"github.com/spec-kit/sla-engine/internal/domain"
)

// MetricDeadline is the computed budget and wall-clock deadline for one
// metric.
type MetricDeadline struct {
	BudgetMs   int64
	DeadlineAt time.Time
}

// DeadlineSet holds both metric deadlines for a ticket.
type DeadlineSet struct {
	FirstResponse MetricDeadline
	Resolution    MetricDeadline
}

// For returns the deadline for a metric.
func (d DeadlineSet) For(metric domain.SLAMetric) MetricDeadline {
	if metric == domain.MetricResolution {
		return d.Resolution
	}
	return d.FirstResponse
}

// DeadlineCalculator converts policy budgets into wall-clock deadlines by
// walking the policy's business-hours calendar forward from ticket creation.
// Budgets are countable time: N policy hours, not N wall-clock hours.
type DeadlineCalculator struct {
	calendars *calendar.Registry
}

// NewDeadlineCalculator constructs the calculator.
func NewDeadlineCalculator(calendars *calendar.Registry) *DeadlineCalculator {
	return &DeadlineCalculator{calendars: calendars}
}

// Compute applies priority overrides (falling back to the policy base hours)
// and walks the calendar from createdAt. A missing or unresolvable calendar
// falls back to wall-clock hours rather than failing closed.
func (c *DeadlineCalculator) Compute(policy *domain.SLAPolicy, priority domain.TicketPriority, createdAt time.Time) DeadlineSet {
	hours := policy.HoursFor(priority)
	cal := c.calendars.Resolve(policy.CalendarID)

	frBudget := hoursToDuration(hours.FirstResponseHours)
	resBudget := hoursToDuration(hours.ResolutionHours)

	return DeadlineSet{
		FirstResponse: MetricDeadline{
			BudgetMs:   frBudget.Milliseconds(),
			DeadlineAt: cal.AddBusiness(createdAt, frBudget),
		},
		Resolution: MetricDeadline{
			BudgetMs:   resBudget.Milliseconds(),
			DeadlineAt: cal.AddBusiness(createdAt, resBudget),
		},
	}
}

// Calendar resolves the calendar a policy's clocks measure countable time
// through; nil means wall clock.
func (c *DeadlineCalculator) Calendar(calendarID *string) *domain.BusinessCalendar {
	return c.calendars.Resolve(calendarID)
}

func hoursToDuration(hours float64) time.Duration {
	return time.Duration(hours * float64(time.Hour))
}
