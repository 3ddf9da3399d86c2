package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-engine/internal/api/dto"
	"github.com/spec-kit/sla-engine/internal/auth"
	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/service"
	apperrors "github.com/spec-kit/sla-engine/pkg/util"
)

// NPAHandler manages Next-Point-of-Action endpoints.
type NPAHandler struct {
	npa *service.NPAService
}

// NewNPAHandler constructs handler.
func NewNPAHandler(npa *service.NPAService) *NPAHandler {
	return &NPAHandler{npa: npa}
}

// Transition PUT /tickets/:id/npa.
func (h *NPAHandler) Transition(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("tenant principal required")
	}
	var req dto.NPATransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	entry, err := h.npa.Transition(c.UserContext(), principal.TenantID, c.Params("id"), service.TransitionInput{
		State:           req.State,
		Text:            req.Text,
		ExcludeFromSLA:  req.ExcludeFromSLA,
		ExpectedEntryID: req.ExpectedEntryID,
		CompletionNotes: req.CompletionNotes,
		TriggerCleanup:  req.TriggerCleanup,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": npaEntryResponse(entry)})
}

// Append POST /tickets/:id/npa/append.
func (h *NPAHandler) Append(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("tenant principal required")
	}
	var req dto.NPAAppendRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	entry, err := h.npa.Append(c.UserContext(), principal.TenantID, c.Params("id"), req.Text, req.TriggerCleanup)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": npaEntryResponse(entry)})
}

// CloseAsSolution POST /tickets/:id/npa/solution.
func (h *NPAHandler) CloseAsSolution(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("tenant principal required")
	}
	var req dto.NPASolutionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	entry, err := h.npa.CloseAsSolution(c.UserContext(), principal.TenantID, c.Params("id"), req.CompletionNotes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": npaEntryResponse(entry)})
}

// History GET /tickets/:id/npa/history.
func (h *NPAHandler) History(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("tenant principal required")
	}
	entries, err := h.npa.History(c.UserContext(), principal.TenantID, c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.NPAEntryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, npaEntryResponse(&entries[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func npaEntryResponse(entry *domain.NPAEntry) dto.NPAEntryResponse {
	return dto.NPAEntryResponse{
		ID:              entry.ID,
		TicketID:        entry.TicketID,
		State:           entry.State,
		OriginalText:    entry.OriginalText,
		CleanedText:     entry.CleanedText,
		CleanupStatus:   entry.CleanupStatus,
		ExcludeFromSLA:  entry.ExcludeFromSLA,
		CreatedAt:       entry.CreatedAt,
		CompletedAt:     entry.CompletedAt,
		CompletionNotes: entry.CompletionNotes,
	}
}
