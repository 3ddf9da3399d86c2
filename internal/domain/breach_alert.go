package domain

import "time"

// AlertLevel grades how far past its budget a metric has gone.
type AlertLevel string

const (
	AlertLevelWarning  AlertLevel = "warning"
	AlertLevelCritical AlertLevel = "critical"
)

// BreachAlert records a detected SLA breach. At most one unacknowledged
// alert may exist per (ticket, metric); re-evaluation updates percent and
// level in place instead of duplicating.
type BreachAlert struct {
	ID             string
	TicketID       string
	TenantID       string
	BreachType     SLAMetric
	BreachPercent  float64
	AlertLevel     AlertLevel
	Acknowledged   bool
	AcknowledgedBy *string
	AcknowledgedAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// LevelForPercent maps a breach percentage onto an alert level. Breaches
// exist from the warning threshold upward, so anything below the critical
// threshold is a warning.
func LevelForPercent(percent, criticalAt float64) AlertLevel {
	if percent >= criticalAt {
		return AlertLevelCritical
	}
	return AlertLevelWarning
}
