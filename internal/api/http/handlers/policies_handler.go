package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-engine/internal/api/dto"
	"github.com/spec-kit/sla-engine/internal/auth"
	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/service"
	apperrors "github.com/spec-kit/sla-engine/pkg/util"
)

// PoliciesHandler serves SLA policy management endpoints.
type PoliciesHandler struct {
	policies *service.PolicyService
}

// NewPoliciesHandler constructs handler.
func NewPoliciesHandler(policies *service.PolicyService) *PoliciesHandler {
	return &PoliciesHandler{policies: policies}
}

// Create POST /policies.
func (h *PoliciesHandler) Create(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("tenant principal required")
	}
	req, err := parsePolicyRequest(c)
	if err != nil {
		return err
	}
	policy, err := h.policies.Create(c.UserContext(), principal.TenantID, req)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": policyResponse(policy)})
}

// NewVersion PUT /policies/:id.
func (h *PoliciesHandler) NewVersion(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("tenant principal required")
	}
	req, err := parsePolicyRequest(c)
	if err != nil {
		return err
	}
	policy, err := h.policies.NewVersion(c.UserContext(), principal.TenantID, c.Params("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": policyResponse(policy)})
}

// Get GET /policies/:id.
func (h *PoliciesHandler) Get(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("tenant principal required")
	}
	policy, err := h.policies.Get(c.UserContext(), principal.TenantID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": policyResponse(policy)})
}

// List GET /policies.
func (h *PoliciesHandler) List(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("tenant principal required")
	}
	policies, err := h.policies.ListActive(c.UserContext(), principal.TenantID)
	if err != nil {
		return err
	}
	items := make([]dto.PolicyResponse, 0, len(policies))
	for i := range policies {
		items = append(items, policyResponse(&policies[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Deactivate DELETE /policies/:id.
func (h *PoliciesHandler) Deactivate(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("tenant principal required")
	}
	if err := h.policies.Deactivate(c.UserContext(), principal.TenantID, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func parsePolicyRequest(c *fiber.Ctx) (service.PolicyInput, error) {
	var req dto.CreatePolicyRequest
	if err := c.BodyParser(&req); err != nil {
		return service.PolicyInput{}, apperrors.NewValidationError("invalid payload", nil)
	}
	return service.PolicyInput{
		Name:               req.Name,
		FirstResponseHours: req.FirstResponseHours,
		ResolutionHours:    req.ResolutionHours,
		CalendarID:         req.CalendarID,
		PriorityOverrides:  req.PriorityOverrides,
	}, nil
}

func policyResponse(policy *domain.SLAPolicy) dto.PolicyResponse {
	return dto.PolicyResponse{
		ID:                 policy.ID,
		Name:               policy.Name,
		Version:            policy.Version,
		FirstResponseHours: policy.FirstResponseHours,
		ResolutionHours:    policy.ResolutionHours,
		CalendarID:         policy.CalendarID,
		PriorityOverrides:  policy.PriorityOverrides,
		Active:             policy.Active,
		CreatedAt:          policy.CreatedAt,
	}
}
