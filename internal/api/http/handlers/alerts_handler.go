package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-engine/internal/api/dto"
	"github.com/spec-kit/sla-engine/internal/auth"
	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/service"
	apperrors "github.com/spec-kit/sla-engine/pkg/util"
)

// AlertsHandler serves breach alert endpoints.
type AlertsHandler struct {
	alerts *service.AlertService
}

// NewAlertsHandler constructs handler.
func NewAlertsHandler(alerts *service.AlertService) *AlertsHandler {
	return &AlertsHandler{alerts: alerts}
}

// List GET /breach-alerts.
func (h *AlertsHandler) List(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("tenant principal required")
	}
	var acknowledged *bool
	if raw := c.Query("acknowledged"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return apperrors.NewValidationError("acknowledged must be boolean", nil)
		}
		acknowledged = &parsed
	}
	limit, _ := strconv.Atoi(c.Query("limit", "100"))

	alerts, err := h.alerts.List(c.UserContext(), principal.TenantID, acknowledged, limit)
	if err != nil {
		return err
	}
	items := make([]dto.AlertResponse, 0, len(alerts))
	for i := range alerts {
		items = append(items, alertResponse(&alerts[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Acknowledge POST /breach-alerts/:id/acknowledge.
func (h *AlertsHandler) Acknowledge(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("tenant principal required")
	}
	var req dto.AcknowledgeAlertRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	by := req.AcknowledgedBy
	if by == "" {
		by = principal.AgentID
	}

	alert, err := h.alerts.Acknowledge(c.UserContext(), principal.TenantID, c.Params("id"), by)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": alertResponse(alert)})
}

func alertResponse(alert *domain.BreachAlert) dto.AlertResponse {
	return dto.AlertResponse{
		ID:             alert.ID,
		TicketID:       alert.TicketID,
		BreachType:     alert.BreachType,
		BreachPercent:  alert.BreachPercent,
		AlertLevel:     alert.AlertLevel,
		Acknowledged:   alert.Acknowledged,
		AcknowledgedBy: alert.AcknowledgedBy,
		AcknowledgedAt: alert.AcknowledgedAt,
		CreatedAt:      alert.CreatedAt,
		UpdatedAt:      alert.UpdatedAt,
	}
}
