package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/events"
	"github.com/spec-kit/sla-engine/internal/repository"
	apperrors "github.com/spec-kit/sla-engine/pkg/util"
)

// TicketService orchestrates the ticket lifecycle against the SLA engine:
// policy resolution on create, metric completion on first response and
// resolve, budget recompute on priority change.
type TicketService struct {
	tickets   repository.TicketRepository
	policySvc *PolicyService
	clockSvc  *ClockService
	npaSvc    *NPAService
	scheduler BreachScheduler
	dispatch  events.Dispatcher
	logger    *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	Policies   *PolicyService
	Clocks     *ClockService
	NPA        *NPAService
	Scheduler  BreachScheduler
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:   deps.TicketRepo,
		policySvc: deps.Policies,
		clockSvc:  deps.Clocks,
		npaSvc:    deps.NPA,
		scheduler: deps.Scheduler,
		dispatch:  deps.Dispatcher,
		logger:    deps.Logger,
	}
}

// CreateTicketInput carries a ticket create request.
type CreateTicketInput struct {
	CustomerID     string
	CustomerName   string
	Subject        string
	Priority       domain.TicketPriority
	SLAPolicyID    *string
	InitialNPAText string
}

// CreateTicket creates the ticket, locks in the resolved policy version,
// starts both SLA clocks and opens the initial investigation NPA entry.
// An unresolvable policy degrades the ticket to untracked instead of failing
// the create.
func (s *TicketService) CreateTicket(ctx context.Context, tenantID string, input CreateTicketInput) (*domain.Ticket, error) {
	if input.CustomerID == "" || input.Subject == "" {
		return nil, apperrors.NewValidationError("customer_id and subject required", nil)
	}
	if !domain.ValidTicketPriority(input.Priority) {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": input.Priority})
	}

	policy, err := s.policySvc.Resolve(ctx, tenantID, input.SLAPolicyID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrPolicyUnresolvable) {
			return nil, err
		}
		s.logger.Warn("sla policy unresolvable, creating ticket without sla tracking",
			zap.String("tenant_id", tenantID),
			zap.Stringp("policy_id", input.SLAPolicyID))
		policy = nil
	}

	ticket := &domain.Ticket{
		TenantID:     tenantID,
		CustomerID:   input.CustomerID,
		CustomerName: input.CustomerName,
		Subject:      input.Subject,
		Priority:     input.Priority,
		Status:       domain.TicketStatusOpen,
	}
	if policy != nil {
		ticket.SLAPolicyID = &policy.ID
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}

	if policy != nil {
		if err := s.clockSvc.Start(ctx, ticket, policy); err != nil {
			return nil, err
		}
	}

	npaText := input.InitialNPAText
	if npaText == "" {
		npaText = "Initial investigation of " + input.Subject
	}
	if _, err := s.npaSvc.Transition(ctx, tenantID, ticket.ID, TransitionInput{
		State: domain.NPAStateInvestigation,
		Text:  npaText,
	}); err != nil {
		return nil, err
	}

	s.publish(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TenantID: tenantID,
		TicketID: ticket.ID,
	})
	return ticket, nil
}

// FirstResponseInput optionally assigns the responding agent.
type FirstResponseInput struct {
	AgentID    *string
	AgentName  *string
	AgentEmail *string
	At         time.Time
}

// RecordFirstResponse stamps the first agent response and closes the
// first_response metric. Repeated calls are idempotent.
func (s *TicketService) RecordFirstResponse(ctx context.Context, tenantID, ticketID string, input FirstResponseInput) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, tenantID, ticketID)
	if err != nil {
		return nil, err
	}
	at := input.At
	if at.IsZero() {
		at = time.Now()
	}
	if ticket.FirstResponseAt != nil {
		return ticket, nil
	}

	if ticket.HasSLA() {
		if err := s.completeMetric(ctx, tenantID, ticketID, domain.MetricFirstResponse, at); err != nil {
			return nil, err
		}
	}

	ticket.FirstResponseAt = &at
	if ticket.Status == domain.TicketStatusOpen {
		ticket.Status = domain.TicketStatusInProgress
	}
	if input.AgentID != nil {
		ticket.AgentID = input.AgentID
		ticket.AgentName = input.AgentName
		ticket.AgentEmail = input.AgentEmail
	}
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

// Resolve closes the ticket's resolution metric and stamps the resolved
// status. A resolution is also a first response when none was recorded yet.
func (s *TicketService) Resolve(ctx context.Context, tenantID, ticketID string, at time.Time) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, tenantID, ticketID)
	if err != nil {
		return nil, err
	}
	if at.IsZero() {
		at = time.Now()
	}
	if ticket.ResolvedAt != nil {
		return ticket, nil
	}

	if ticket.HasSLA() {
		if ticket.FirstResponseAt == nil {
			if err := s.completeMetric(ctx, tenantID, ticketID, domain.MetricFirstResponse, at); err != nil {
				return nil, err
			}
		}
		if err := s.completeMetric(ctx, tenantID, ticketID, domain.MetricResolution, at); err != nil {
			return nil, err
		}
	}

	if ticket.FirstResponseAt == nil {
		ticket.FirstResponseAt = &at
	}
	ticket.ResolvedAt = &at
	ticket.Status = domain.TicketStatusResolved
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

// ChangePriority switches the ticket priority and re-derives budgets for any
// metric that is still open, preserving the elapsed countable time.
func (s *TicketService) ChangePriority(ctx context.Context, tenantID, ticketID string, priority domain.TicketPriority) (*domain.Ticket, error) {
	if !domain.ValidTicketPriority(priority) {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": priority})
	}
	ticket, err := s.tickets.GetByID(ctx, tenantID, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Priority == priority {
		return ticket, nil
	}
	previous := ticket.Priority
	ticket.Priority = priority
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, err
	}

	if ticket.HasSLA() {
		// The locked version, not the currently active one: Get accepts
		// inactive rows so versioned-out tickets keep their own policy.
		policy, err := s.policySvc.Get(ctx, tenantID, *ticket.SLAPolicyID)
		if err != nil {
			return nil, err
		}
		if err := s.clockSvc.RecomputeBudgets(ctx, ticket, policy); err != nil {
			return nil, err
		}
		if s.scheduler != nil {
			s.scheduler.Schedule(tenantID, ticketID)
		}
	}

	s.publish(ctx, events.Event{
		Type:     events.EventPriorityChanged,
		TenantID: tenantID,
		TicketID: ticketID,
		Payload: map[string]any{
			"previous_priority": previous,
			"priority":          priority,
		},
	})
	return ticket, nil
}

// TicketSLAStatus is the per-ticket compliance view.
type TicketSLAStatus struct {
	Ticket     *domain.Ticket
	Clocks     []domain.ClockSnapshot
	CurrentNPA *domain.NPAEntry
}

// SLAStatus returns the ticket with live clock snapshots and the open NPA
// entry.
func (s *TicketService) SLAStatus(ctx context.Context, tenantID, ticketID string, now time.Time) (*TicketSLAStatus, error) {
	ticket, err := s.tickets.GetByID(ctx, tenantID, ticketID)
	if err != nil {
		return nil, err
	}
	clocks, err := s.clockSvc.Snapshot(ctx, tenantID, ticketID, now)
	if err != nil {
		return nil, err
	}
	current, err := s.npaSvc.Current(ctx, tenantID, ticketID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	return &TicketSLAStatus{Ticket: ticket, Clocks: clocks, CurrentNPA: current}, nil
}

// Get fetches one ticket.
func (s *TicketService) Get(ctx context.Context, tenantID, ticketID string) (*domain.Ticket, error) {
	return s.tickets.GetByID(ctx, tenantID, ticketID)
}

// completeMetric closes one metric, absorbing the already-terminal signal and
// queueing a breach pass when the budget was blown.
func (s *TicketService) completeMetric(ctx context.Context, tenantID, ticketID string, metric domain.SLAMetric, at time.Time) error {
	snap, err := s.clockSvc.Complete(ctx, tenantID, ticketID, metric, at)
	if err != nil {
		if errors.Is(err, apperrors.ErrClockAlreadyTerminal) {
			s.logger.Debug("metric already terminal",
				zap.String("ticket_id", ticketID),
				zap.String("metric", string(metric)))
			return nil
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}
	if !snap.Met && s.scheduler != nil {
		s.scheduler.Schedule(tenantID, ticketID)
	}
	return nil
}

func (s *TicketService) publish(ctx context.Context, event events.Event) {
	if s.dispatch == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatch.Publish(ctx, event)
}
