package dto

import (
	"time"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// CreatePolicyRequest payload for policy create and new-version calls.
type CreatePolicyRequest struct {
	Name               string                                       `json:"name"`
	FirstResponseHours float64                                      `json:"first_response_hours"`
	ResolutionHours    float64                                      `json:"resolution_hours"`
	CalendarID         *string                                      `json:"calendar_id"`
	PriorityOverrides  map[domain.TicketPriority]domain.PolicyHours `json:"priority_overrides"`
}

// PolicyResponse response.
type PolicyResponse struct {
	ID                 string                                       `json:"id"`
	Name               string                                       `json:"name"`
	Version            int                                          `json:"version"`
	FirstResponseHours float64                                      `json:"first_response_hours"`
	ResolutionHours    float64                                      `json:"resolution_hours"`
	CalendarID         *string                                      `json:"calendar_id"`
	PriorityOverrides  map[domain.TicketPriority]domain.PolicyHours `json:"priority_overrides,omitempty"`
	Active             bool                                         `json:"active"`
	CreatedAt          time.Time                                    `json:"created_at"`
}

// AlertResponse response.
type AlertResponse struct {
	ID             string            `json:"id"`
	TicketID       string            `json:"ticket_id"`
	BreachType     domain.SLAMetric  `json:"breach_type"`
	BreachPercent  float64           `json:"breach_percent"`
	AlertLevel     domain.AlertLevel `json:"alert_level"`
	Acknowledged   bool              `json:"acknowledged"`
	AcknowledgedBy *string           `json:"acknowledged_by"`
	AcknowledgedAt *time.Time        `json:"acknowledged_at"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// AcknowledgeAlertRequest payload; acknowledged_by falls back to the token's
// agent identity.
type AcknowledgeAlertRequest struct {
	AcknowledgedBy string `json:"acknowledged_by"`
}
