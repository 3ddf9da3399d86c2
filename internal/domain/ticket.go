package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusResolved   TicketStatus = "RESOLVED"
	TicketStatusClosed     TicketStatus = "CLOSED"
)

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

// ValidTicketPriority reports whether p is a known priority.
func ValidTicketPriority(p TicketPriority) bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// Ticket is the aggregate the SLA engine tracks. Agent and customer fields
// are denormalized; identity management lives outside the engine.
type Ticket struct {
	ID              string
	TenantID        string
	CustomerID      string
	CustomerName    string
	AgentID         *string
	AgentName       *string
	AgentEmail      *string
	Subject         string
	Priority        TicketPriority
	Status          TicketStatus
	SLAPolicyID     *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	FirstResponseAt *time.Time
	ResolvedAt      *time.Time
}

// HasSLA reports whether an SLA policy was locked in for this ticket.
func (t *Ticket) HasSLA() bool {
	return t.SLAPolicyID != nil && *t.SLAPolicyID != ""
}
