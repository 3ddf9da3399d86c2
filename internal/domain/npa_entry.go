package domain

import "time"

// NPAState enumerates Next-Point-of-Action lifecycle states.
type NPAState string

const (
	NPAStateInvestigation   NPAState = "investigation"
	NPAStateWaitingCustomer NPAState = "waiting_customer"
	NPAStateWaitingVendor   NPAState = "waiting_vendor"
	NPAStateWaitingParts    NPAState = "waiting_parts"
	NPAStateSolution        NPAState = "solution"
	NPAStateImplementation  NPAState = "implementation"
	NPAStateTesting         NPAState = "testing"
	NPAStateDocumentation   NPAState = "documentation"
	NPAStateOther           NPAState = "other"
)

// ValidNPAState reports whether the value is a known state.
func ValidNPAState(s NPAState) bool {
	switch s {
	case NPAStateInvestigation, NPAStateWaitingCustomer, NPAStateWaitingVendor,
		NPAStateWaitingParts, NPAStateSolution, NPAStateImplementation,
		NPAStateTesting, NPAStateDocumentation, NPAStateOther:
		return true
	}
	return false
}

// DefaultExcludeFromSLA derives the SLA pause flag for a state: waiting on an
// external party stops the clock, everything else counts.
func DefaultExcludeFromSLA(s NPAState) bool {
	switch s {
	case NPAStateWaitingCustomer, NPAStateWaitingVendor, NPAStateWaitingParts:
		return true
	}
	return false
}

// CleanupStatus tracks the async AI text-cleanup lifecycle for an entry.
type CleanupStatus string

const (
	CleanupStatusNone      CleanupStatus = "none"
	CleanupStatusQueued    CleanupStatus = "queued"
	CleanupStatusRunning   CleanupStatus = "running"
	CleanupStatusCompleted CleanupStatus = "completed"
	CleanupStatusFailed    CleanupStatus = "failed"
)

// NPAEntry is one Next-Point-of-Action record. Entries are append-only; at
// most one entry per ticket has CompletedAt == nil and only that entry is
// mutable.
type NPAEntry struct {
	ID              string
	TicketID        string
	TenantID        string
	State           NPAState
	OriginalText    string
	CleanedText     *string
	CleanupStatus   CleanupStatus
	ExcludeFromSLA  bool
	CreatedAt       time.Time
	CompletedAt     *time.Time
	CompletionNotes string
}

// Current reports whether this is the ticket's open entry.
func (e *NPAEntry) Current() bool {
	return e.CompletedAt == nil
}
