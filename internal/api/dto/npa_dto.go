package dto

import (
	"time"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// NPATransitionRequest payload for PUT /tickets/:id/npa.
type NPATransitionRequest struct {
	State           domain.NPAState `json:"state"`
	Text            string          `json:"text"`
	ExcludeFromSLA  *bool           `json:"exclude_from_sla"`
	ExpectedEntryID *string         `json:"expected_entry_id"`
	CompletionNotes string          `json:"completion_notes"`
	TriggerCleanup  bool            `json:"trigger_cleanup"`
}

// NPAAppendRequest payload.
type NPAAppendRequest struct {
	Text           string `json:"text"`
	TriggerCleanup bool   `json:"trigger_cleanup"`
}

// NPASolutionRequest payload for closing the current entry as the solution.
type NPASolutionRequest struct {
	CompletionNotes string `json:"completion_notes"`
}

// NPAEntryResponse response.
type NPAEntryResponse struct {
	ID              string               `json:"id"`
	TicketID        string               `json:"ticket_id"`
	State           domain.NPAState      `json:"state"`
	OriginalText    string               `json:"original_text"`
	CleanedText     *string              `json:"cleaned_text"`
	CleanupStatus   domain.CleanupStatus `json:"cleanup_status"`
	ExcludeFromSLA  bool                 `json:"exclude_from_sla"`
	CreatedAt       time.Time            `json:"created_at"`
	CompletedAt     *time.Time           `json:"completed_at"`
	CompletionNotes string               `json:"completion_notes,omitempty"`
}
