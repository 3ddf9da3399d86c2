package domain

import "time"

// SLAMetric identifies which deadline a clock tracks.
type SLAMetric string

const (
	MetricFirstResponse SLAMetric = "first_response"
	MetricResolution    SLAMetric = "resolution"
)

// Metrics lists the tracked metrics in evaluation order.
var Metrics = []SLAMetric{MetricFirstResponse, MetricResolution}

// SLAClockState accumulates countable elapsed time for one ticket metric.
// Exactly one of Met/Breached may ever become true, and once either is set
// the metric is terminal.
type SLAClockState struct {
	TicketID     string
	TenantID     string
	Metric       SLAMetric
	PolicyID     string
	CalendarID   *string
	BudgetMs     int64
	DeadlineAt   time.Time
	ElapsedMs    int64
	LastResumeAt *time.Time // nil means paused
	Met          bool
	Breached     bool
	BreachedAt   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Terminal reports whether the metric reached a final state.
func (s *SLAClockState) Terminal() bool {
	return s.Met || s.Breached
}

// Running reports whether the clock is currently accruing time.
func (s *SLAClockState) Running() bool {
	return !s.Terminal() && s.LastResumeAt != nil
}

// ClockSnapshot is a point-in-time view of a clock.
type ClockSnapshot struct {
	TicketID    string
	Metric      SLAMetric
	ElapsedMs   int64
	RemainingMs int64
	BudgetMs    int64
	PercentUsed float64
	DeadlineAt  time.Time
	Running     bool
	Met         bool
	Breached    bool
}

// SnapshotAt computes elapsed/remaining lazily. While running the elapsed
// time includes the countable span since the last resume, measured through
// the supplied calendar (wall clock when cal is nil).
func (s *SLAClockState) SnapshotAt(now time.Time, cal *BusinessCalendar) ClockSnapshot {
	elapsed := s.ElapsedMs
	if s.Running() {
		elapsed += cal.BusinessBetween(*s.LastResumeAt, now).Milliseconds()
	}
	snap := ClockSnapshot{
		TicketID:    s.TicketID,
		Metric:      s.Metric,
		ElapsedMs:   elapsed,
		RemainingMs: s.BudgetMs - elapsed,
		BudgetMs:    s.BudgetMs,
		DeadlineAt:  s.DeadlineAt,
		Running:     s.Running(),
		Met:         s.Met,
		Breached:    s.Breached,
	}
	if s.BudgetMs > 0 {
		snap.PercentUsed = float64(elapsed) / float64(s.BudgetMs) * 100
	}
	return snap
}
