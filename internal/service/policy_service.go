package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/repository"
	apperrors "github.com/spec-kit/sla-engine/pkg/util"
)

// PolicyService manages versioned SLA policies. An edit never mutates an
// existing version; it deactivates the old row and inserts the next version,
// so clocks created under the old version keep their original budgets.
type PolicyService struct {
	policies repository.PolicyRepository
	logger   *zap.Logger
}

// NewPolicyService constructs the service.
func NewPolicyService(policies repository.PolicyRepository, logger *zap.Logger) *PolicyService {
	return &PolicyService{policies: policies, logger: logger}
}

// PolicyInput carries the budget definition for a create or new-version call.
type PolicyInput struct {
	Name               string
	FirstResponseHours float64
	ResolutionHours    float64
	CalendarID         *string
	PriorityOverrides  map[domain.TicketPriority]domain.PolicyHours
}

func (in PolicyInput) validate() error {
	if in.Name == "" {
		return apperrors.NewValidationError("policy name required", nil)
	}
	if in.FirstResponseHours <= 0 || in.ResolutionHours <= 0 {
		return apperrors.NewValidationError("policy hours must be positive", nil)
	}
	for priority, hours := range in.PriorityOverrides {
		if !domain.ValidTicketPriority(priority) {
			return apperrors.NewValidationError("unknown priority in overrides", map[string]any{"priority": priority})
		}
		if hours.FirstResponseHours <= 0 || hours.ResolutionHours <= 0 {
			return apperrors.NewValidationError("override hours must be positive", map[string]any{"priority": priority})
		}
	}
	return nil
}

// Create inserts version 1 of a new policy.
func (s *PolicyService) Create(ctx context.Context, tenantID string, input PolicyInput) (*domain.SLAPolicy, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	policy := &domain.SLAPolicy{
		TenantID:           tenantID,
		Name:               input.Name,
		Version:            1,
		FirstResponseHours: input.FirstResponseHours,
		ResolutionHours:    input.ResolutionHours,
		CalendarID:         input.CalendarID,
		PriorityOverrides:  input.PriorityOverrides,
		Active:             true,
	}
	if err := s.policies.Create(ctx, policy); err != nil {
		return nil, err
	}
	s.logger.Info("sla policy created",
		zap.String("tenant_id", tenantID),
		zap.String("policy_id", policy.ID),
		zap.String("name", policy.Name))
	return policy, nil
}

// NewVersion deactivates the given policy version and inserts the next one.
// Clocks already bound to the old version are untouched; only tickets created
// after this call resolve to the new budgets.
func (s *PolicyService) NewVersion(ctx context.Context, tenantID, policyID string, input PolicyInput) (*domain.SLAPolicy, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	previous, err := s.policies.GetByID(ctx, tenantID, policyID)
	if err != nil {
		return nil, err
	}
	if err := s.policies.Deactivate(ctx, tenantID, previous.ID); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	next := &domain.SLAPolicy{
		TenantID:           tenantID,
		Name:               input.Name,
		Version:            previous.Version + 1,
		FirstResponseHours: input.FirstResponseHours,
		ResolutionHours:    input.ResolutionHours,
		CalendarID:         input.CalendarID,
		PriorityOverrides:  input.PriorityOverrides,
		Active:             true,
	}
	if err := s.policies.Create(ctx, next); err != nil {
		return nil, err
	}
	s.logger.Info("sla policy versioned",
		zap.String("tenant_id", tenantID),
		zap.String("policy_id", next.ID),
		zap.Int("version", next.Version))
	return next, nil
}

// Get fetches one policy version.
func (s *PolicyService) Get(ctx context.Context, tenantID, policyID string) (*domain.SLAPolicy, error) {
	return s.policies.GetByID(ctx, tenantID, policyID)
}

// ListActive returns the active version of every policy for a tenant.
func (s *PolicyService) ListActive(ctx context.Context, tenantID string) ([]domain.SLAPolicy, error) {
	return s.policies.ListActive(ctx, tenantID)
}

// Deactivate retires a policy version without replacement.
func (s *PolicyService) Deactivate(ctx context.Context, tenantID, policyID string) error {
	return s.policies.Deactivate(ctx, tenantID, policyID)
}

// Resolve looks up the policy for a ticket at creation time. Any failure maps
// to ErrPolicyUnresolvable so callers can degrade to a ticket without SLA
// tracking instead of rejecting the create.
func (s *PolicyService) Resolve(ctx context.Context, tenantID string, policyID *string) (*domain.SLAPolicy, error) {
	if policyID == nil || *policyID == "" {
		return nil, apperrors.ErrPolicyUnresolvable
	}
	policy, err := s.policies.GetByID(ctx, tenantID, *policyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrPolicyUnresolvable
		}
		return nil, err
	}
	if !policy.Active {
		return nil, apperrors.ErrPolicyUnresolvable
	}
	return policy, nil
}
