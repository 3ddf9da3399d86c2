package dto

import (
	"time"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	CustomerID     string                `json:"customer_id"`
	CustomerName   string                `json:"customer_name"`
	Subject        string                `json:"subject"`
	Priority       domain.TicketPriority `json:"priority"`
	SLAPolicyID    *string               `json:"sla_policy_id"`
	InitialNPAText string                `json:"initial_npa_text"`
}

// FirstResponseRequest payload; timestamps default to now.
type FirstResponseRequest struct {
	At *time.Time `json:"at"`
}

// ResolveRequest payload.
type ResolveRequest struct {
	At *time.Time `json:"at"`
}

// ChangePriorityRequest payload.
type ChangePriorityRequest struct {
	Priority domain.TicketPriority `json:"priority"`
}

// TicketResponse response.
type TicketResponse struct {
	ID              string                `json:"id"`
	CustomerID      string                `json:"customer_id"`
	CustomerName    string                `json:"customer_name"`
	AgentID         *string               `json:"agent_id"`
	AgentName       *string               `json:"agent_name"`
	Subject         string                `json:"subject"`
	Priority        domain.TicketPriority `json:"priority"`
	Status          domain.TicketStatus   `json:"status"`
	SLAPolicyID     *string               `json:"sla_policy_id"`
	SLATracked      bool                  `json:"sla_tracked"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
	FirstResponseAt *time.Time            `json:"first_response_at"`
	ResolvedAt      *time.Time            `json:"resolved_at"`
}

// ClockResponse is the live view of one metric clock.
type ClockResponse struct {
	Metric      domain.SLAMetric `json:"metric"`
	ElapsedMs   int64            `json:"elapsed_ms"`
	RemainingMs int64            `json:"remaining_ms"`
	BudgetMs    int64            `json:"budget_ms"`
	PercentUsed float64          `json:"percent_used"`
	DeadlineAt  time.Time        `json:"deadline_at"`
	Running     bool             `json:"running"`
	Met         bool             `json:"met"`
	Breached    bool             `json:"breached"`
}

// TicketSLAResponse is the per-ticket compliance view.
type TicketSLAResponse struct {
	Ticket     TicketResponse    `json:"ticket"`
	Clocks     []ClockResponse   `json:"clocks"`
	CurrentNPA *NPAEntryResponse `json:"current_npa,omitempty"`
}
