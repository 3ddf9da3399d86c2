package events

import (
	"time"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated      EventType = "ticket_created"
	EventFirstResponse      EventType = "ticket_first_response"
	EventTicketResolved     EventType = "ticket_resolved"
	EventPriorityChanged    EventType = "ticket_priority_changed"
	EventNPATransitioned    EventType = "npa_transitioned"
	EventClockPaused        EventType = "sla_clock_paused"
	EventClockResumed       EventType = "sla_clock_resumed"
	EventBreachDetected     EventType = "sla_breach_detected"
	EventAlertAcknowledged  EventType = "sla_alert_acknowledged"
	EventAIAnalysisStarted  EventType = "ai_analysis.started"
	EventAIAnalysisComplete EventType = "ai_analysis.completed"
	EventAIAnalysisFailed   EventType = "ai_analysis.failed"
)

// Event represents a domain event emitted by the engine. TenantID is always
// set; fan-out channels are tenant-scoped.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TenantID  string      `json:"tenant_id"`
	TicketID  string      `json:"ticket_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// BreachDetectedPayload payload.
type BreachDetectedPayload struct {
	AlertID       string            `json:"alert_id"`
	Metric        domain.SLAMetric  `json:"metric"`
	BreachPercent float64           `json:"breach_percent"`
	AlertLevel    domain.AlertLevel `json:"alert_level"`
	BreachedAt    time.Time         `json:"breached_at"`
}

// AlertAcknowledgedPayload payload.
type AlertAcknowledgedPayload struct {
	AlertID        string           `json:"alert_id"`
	Metric         domain.SLAMetric `json:"metric"`
	AcknowledgedBy string           `json:"acknowledged_by"`
}

// ClockPayload payload for pause/resume events.
type ClockPayload struct {
	Metric    domain.SLAMetric `json:"metric"`
	ElapsedMs int64            `json:"elapsed_ms"`
}

// NPATransitionedPayload payload.
type NPATransitionedPayload struct {
	EntryID        string          `json:"entry_id"`
	State          domain.NPAState `json:"state"`
	ExcludeFromSLA bool            `json:"exclude_from_sla"`
}

// MetricOutcomePayload payload for first-response/resolution events.
type MetricOutcomePayload struct {
	Metric    domain.SLAMetric `json:"metric"`
	Met       bool             `json:"met"`
	ElapsedMs int64            `json:"elapsed_ms"`
	BudgetMs  int64            `json:"budget_ms"`
}

// AIAnalysisPayload payload for cleanup lifecycle events.
type AIAnalysisPayload struct {
	EntryID string               `json:"entry_id"`
	Status  domain.CleanupStatus `json:"status"`
	Error   string               `json:"error,omitempty"`
}
