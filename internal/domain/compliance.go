package domain

import "time"

// MetricStats summarizes one metric's outcomes inside a window.
type MetricStats struct {
	Met              int     `json:"met"`
	Breached         int     `json:"breached"`
	ComplianceRate   float64 `json:"compliance_rate"`
	AverageTimeHours float64 `json:"average_time_hours"`
}

// ComplianceRate computes met/(met+breached)*100. An empty denominator
// reports 100 by convention; callers expose TotalTickets so zero-sample
// windows are distinguishable.
func ComplianceRate(met, breached int) float64 {
	total := met + breached
	if total == 0 {
		return 100
	}
	return float64(met) / float64(total) * 100
}

// ComplianceSnapshot is an aggregation result over terminal clock states.
type ComplianceSnapshot struct {
	Period        string      `json:"period,omitempty"`
	TotalTickets  int         `json:"total_tickets"`
	FirstResponse MetricStats `json:"first_response"`
	Resolution    MetricStats `json:"resolution"`
}

// AgentPerformance summarizes one agent's SLA outcomes.
type AgentPerformance struct {
	AgentID       string           `json:"agent_id"`
	AgentName     string           `json:"agent_name"`
	AgentEmail    string           `json:"agent_email"`
	TotalTickets  int              `json:"total_tickets"`
	FirstResponse AgentMetricStats `json:"first_response"`
	Resolution    AgentMetricStats `json:"resolution"`
}

// AgentMetricStats is the per-agent view of a metric.
type AgentMetricStats struct {
	Breaches       int     `json:"breaches"`
	ComplianceRate float64 `json:"compliance_rate"`
}

// CustomerPerformance summarizes SLA outcomes for one customer.
type CustomerPerformance struct {
	CustomerID                  string  `json:"customer_id"`
	CustomerName                string  `json:"customer_name"`
	TotalTickets                int     `json:"total_tickets"`
	AvgResolutionHours          float64 `json:"avg_resolution_hours"`
	AvgFirstResponseHours       float64 `json:"avg_first_response_hours"`
	FirstResponseBreaches       int     `json:"first_response_breaches"`
	FirstResponseComplianceRate float64 `json:"first_response_compliance_rate"`
	ResolutionBreaches          int     `json:"resolution_breaches"`
	ResolutionComplianceRate    float64 `json:"resolution_compliance_rate"`
}

// ComplianceRecord is the read-side row the aggregator consumes: a terminal
// clock joined with the ticket fields grouping needs.
type ComplianceRecord struct {
	TicketID        string
	Metric          SLAMetric
	Met             bool
	Breached        bool
	ElapsedMs       int64
	BudgetMs        int64
	TicketCreatedAt time.Time
	ResolvedAt      *time.Time
	AgentID         *string
	AgentName       *string
	AgentEmail      *string
	CustomerID      string
	CustomerName    string
}

// BucketTime returns the instant a record is bucketed by: first response by
// ticket creation, resolution by resolution time (falling back to creation
// for breached-but-unresolved tickets).
func (r *ComplianceRecord) BucketTime() time.Time {
	if r.Metric == MetricResolution && r.ResolvedAt != nil {
		return *r.ResolvedAt
	}
	return r.TicketCreatedAt
}
