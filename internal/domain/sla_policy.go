package domain

import "time"

// SLAPolicy defines time budgets for first response and resolution.
// Policies are versioned: editing a policy inserts a new version and tickets
// keep the version that was active when their clocks were created.
type SLAPolicy struct {
	ID                 string
	TenantID           string
	Name               string
	Version            int
	FirstResponseHours float64
	ResolutionHours    float64
	CalendarID         *string
	PriorityOverrides  map[TicketPriority]PolicyHours
	Active             bool
	CreatedAt          time.Time
}

// PolicyHours overrides both metric budgets for a single priority.
type PolicyHours struct {
	FirstResponseHours float64 `json:"first_response_hours" yaml:"first_response_hours"`
	ResolutionHours    float64 `json:"resolution_hours" yaml:"resolution_hours"`
}

// HoursFor returns the effective budgets for a priority, falling back to the
// policy base hours when no override exists.
func (p *SLAPolicy) HoursFor(priority TicketPriority) PolicyHours {
	if override, ok := p.PriorityOverrides[priority]; ok {
		return override
	}
	return PolicyHours{
		FirstResponseHours: p.FirstResponseHours,
		ResolutionHours:    p.ResolutionHours,
	}
}
