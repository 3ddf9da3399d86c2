package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-engine/internal/api/dto"
	"github.com/spec-kit/sla-engine/internal/auth"
	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/service"
	apperrors "github.com/spec-kit/sla-engine/pkg/util"
)

// TicketsHandler manages ticket lifecycle endpoints.
type TicketsHandler struct {
	tickets *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService) *TicketsHandler {
	return &TicketsHandler{tickets: tickets}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("tenant principal required")
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.tickets.CreateTicket(c.UserContext(), principal.TenantID, service.CreateTicketInput{
		CustomerID:     req.CustomerID,
		CustomerName:   req.CustomerName,
		Subject:        req.Subject,
		Priority:       req.Priority,
		SLAPolicyID:    req.SLAPolicyID,
		InitialNPAText: req.InitialNPAText,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("tenant principal required")
	}
	ticket, err := h.tickets.Get(c.UserContext(), principal.TenantID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// SLACompliance GET /tickets/:id/sla-compliance.
func (h *TicketsHandler) SLACompliance(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("tenant principal required")
	}
	status, err := h.tickets.SLAStatus(c.UserContext(), principal.TenantID, c.Params("id"), time.Now())
	if err != nil {
		return err
	}

	resp := dto.TicketSLAResponse{
		Ticket: ticketResponse(status.Ticket),
		Clocks: make([]dto.ClockResponse, 0, len(status.Clocks)),
	}
	for _, snap := range status.Clocks {
		resp.Clocks = append(resp.Clocks, clockResponse(snap))
	}
	if status.CurrentNPA != nil {
		entry := npaEntryResponse(status.CurrentNPA)
		resp.CurrentNPA = &entry
	}
	return c.JSON(fiber.Map{"data": resp})
}

// FirstResponse POST /tickets/:id/first-response.
func (h *TicketsHandler) FirstResponse(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("tenant principal required")
	}
	var req dto.FirstResponseRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}

	input := service.FirstResponseInput{}
	if req.At != nil {
		input.At = *req.At
	}
	if principal.AgentID != "" {
		input.AgentID = &principal.AgentID
		input.AgentName = &principal.AgentName
		input.AgentEmail = &principal.AgentEmail
	}
	ticket, err := h.tickets.RecordFirstResponse(c.UserContext(), principal.TenantID, c.Params("id"), input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// Resolve POST /tickets/:id/resolve.
func (h *TicketsHandler) Resolve(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("tenant principal required")
	}
	var req dto.ResolveRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	at := time.Now()
	if req.At != nil {
		at = *req.At
	}
	ticket, err := h.tickets.Resolve(c.UserContext(), principal.TenantID, c.Params("id"), at)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// ChangePriority PUT /tickets/:id/priority.
func (h *TicketsHandler) ChangePriority(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("tenant principal required")
	}
	var req dto.ChangePriorityRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.tickets.ChangePriority(c.UserContext(), principal.TenantID, c.Params("id"), req.Priority)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

func ticketResponse(ticket *domain.Ticket) dto.TicketResponse {
	return dto.TicketResponse{
		ID:              ticket.ID,
		CustomerID:      ticket.CustomerID,
		CustomerName:    ticket.CustomerName,
		AgentID:         ticket.AgentID,
		AgentName:       ticket.AgentName,
		Subject:         ticket.Subject,
		Priority:        ticket.Priority,
		Status:          ticket.Status,
		SLAPolicyID:     ticket.SLAPolicyID,
		SLATracked:      ticket.HasSLA(),
		CreatedAt:       ticket.CreatedAt,
		UpdatedAt:       ticket.UpdatedAt,
		FirstResponseAt: ticket.FirstResponseAt,
		ResolvedAt:      ticket.ResolvedAt,
	}
}

func clockResponse(snap domain.ClockSnapshot) dto.ClockResponse {
	return dto.ClockResponse{
		Metric:      snap.Metric,
		ElapsedMs:   snap.ElapsedMs,
		RemainingMs: snap.RemainingMs,
		BudgetMs:    snap.BudgetMs,
		PercentUsed: snap.PercentUsed,
		DeadlineAt:  snap.DeadlineAt,
		Running:     snap.Running,
		Met:         snap.Met,
		Breached:    snap.Breached,
	}
}
