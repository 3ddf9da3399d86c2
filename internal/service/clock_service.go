package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/events"
	"github.com/spec-kit/sla-engine/internal/repository"
	apperrors "github.com/spec-kit/sla-engine/pkg/util"
)

// ClockService owns SLA clock state: creation, pause/resume driven by the
// NPA state machine, lazy snapshots and terminal "met" transitions.
type ClockService struct {
	clocks     repository.ClockRepository
	calculator *DeadlineCalculator
	locks      *TicketLocks
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// ClockDependencies bundles collaborators for the clock service.
type ClockDependencies struct {
	ClockRepo  repository.ClockRepository
	Calculator *DeadlineCalculator
	Locks      *TicketLocks
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewClockService constructs the service.
func NewClockService(deps ClockDependencies) *ClockService {
	return &ClockService{
		clocks:     deps.ClockRepo,
		calculator: deps.Calculator,
		locks:      deps.Locks,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// Start creates running clocks for both metrics of a freshly created ticket.
func (s *ClockService) Start(ctx context.Context, ticket *domain.Ticket, policy *domain.SLAPolicy) error {
	deadlines := s.calculator.Compute(policy, ticket.Priority, ticket.CreatedAt)
	resumeAt := ticket.CreatedAt

	clocks := make([]domain.SLAClockState, 0, len(domain.Metrics))
	for _, metric := range domain.Metrics {
		deadline := deadlines.For(metric)
		clocks = append(clocks, domain.SLAClockState{
			TicketID:     ticket.ID,
			TenantID:     ticket.TenantID,
			Metric:       metric,
			PolicyID:     policy.ID,
			CalendarID:   policy.CalendarID,
			BudgetMs:     deadline.BudgetMs,
			DeadlineAt:   deadline.DeadlineAt,
			LastResumeAt: &resumeAt,
		})
	}
	return s.clocks.CreateBatch(ctx, clocks)
}

// Pause stops countable-time accrual on every non-terminal metric of a
// ticket. Pausing an already-paused clock is a no-op: duplicate events must
// not double count.
func (s *ClockService) Pause(ctx context.Context, tenantID, ticketID string, at time.Time) error {
	unlock := s.locks.Lock(ticketID)
	defer unlock()
	return s.eachOpenClock(ctx, tenantID, ticketID, func(clock *domain.SLAClockState) (bool, events.EventType) {
		if clock.LastResumeAt == nil {
			return false, ""
		}
		cal := s.calculator.Calendar(clock.CalendarID)
		clock.ElapsedMs += cal.BusinessBetween(*clock.LastResumeAt, at).Milliseconds()
		clock.LastResumeAt = nil
		return true, events.EventClockPaused
	})
}

// Resume restarts countable-time accrual on every non-terminal metric.
// Resuming a running clock is a no-op.
func (s *ClockService) Resume(ctx context.Context, tenantID, ticketID string, at time.Time) error {
	unlock := s.locks.Lock(ticketID)
	defer unlock()
	return s.eachOpenClock(ctx, tenantID, ticketID, func(clock *domain.SLAClockState) (bool, events.EventType) {
		if clock.LastResumeAt != nil {
			return false, ""
		}
		resumeAt := at
		clock.LastResumeAt = &resumeAt
		return true, events.EventClockResumed
	})
}

// Snapshot returns the lazily computed state of every clock on a ticket.
func (s *ClockService) Snapshot(ctx context.Context, tenantID, ticketID string, now time.Time) ([]domain.ClockSnapshot, error) {
	clocks, err := s.clocks.ListByTicket(ctx, tenantID, ticketID)
	if err != nil {
		return nil, err
	}
	snapshots := make([]domain.ClockSnapshot, 0, len(clocks))
	for i := range clocks {
		cal := s.calculator.Calendar(clocks[i].CalendarID)
		snapshots = append(snapshots, clocks[i].SnapshotAt(now, cal))
	}
	return snapshots, nil
}

// Complete handles the first qualifying event for a metric (first agent
// response, or resolution) and marks the clock terminal. It reports whether
// the metric was met; a metric already terminal yields ErrClockAlreadyTerminal.
func (s *ClockService) Complete(ctx context.Context, tenantID, ticketID string, metric domain.SLAMetric, at time.Time) (*domain.ClockSnapshot, error) {
	unlock := s.locks.Lock(ticketID)
	defer unlock()

	clock, err := s.clocks.Get(ctx, tenantID, ticketID, metric)
	if err != nil {
		return nil, err
	}
	if clock.Terminal() {
		return nil, apperrors.ErrClockAlreadyTerminal
	}

	cal := s.calculator.Calendar(clock.CalendarID)
	snap := clock.SnapshotAt(at, cal)
	met := snap.ElapsedMs <= clock.BudgetMs
	if met {
		won, err := s.clocks.MarkMet(ctx, tenantID, ticketID, metric, snap.ElapsedMs)
		if err != nil {
			return nil, err
		}
		if !won {
			return nil, apperrors.ErrClockAlreadyTerminal
		}
		snap.Met = true
		snap.Running = false
		s.publish(ctx, events.Event{
			Type:     eventForMetric(metric),
			TenantID: tenantID,
			TicketID: ticketID,
			Payload: events.MetricOutcomePayload{
				Metric:    metric,
				Met:       true,
				ElapsedMs: snap.ElapsedMs,
				BudgetMs:  clock.BudgetMs,
			},
		})
	}
	// The not-met case is left to breach evaluation so the alert path stays
	// single (event-driven and sweep share the same CAS).
	return &snap, nil
}

// RecomputeBudgets re-derives budget and deadline for non-terminal metrics
// after a priority change, preserving accumulated elapsed time.
func (s *ClockService) RecomputeBudgets(ctx context.Context, ticket *domain.Ticket, policy *domain.SLAPolicy) error {
	unlock := s.locks.Lock(ticket.ID)
	defer unlock()

	deadlines := s.calculator.Compute(policy, ticket.Priority, ticket.CreatedAt)
	clocks, err := s.clocks.ListByTicket(ctx, ticket.TenantID, ticket.ID)
	if err != nil {
		return err
	}
	for i := range clocks {
		clock := clocks[i]
		if clock.Terminal() {
			continue
		}
		deadline := deadlines.For(clock.Metric)
		clock.BudgetMs = deadline.BudgetMs
		clock.DeadlineAt = deadline.DeadlineAt
		if _, err := s.clocks.UpdateProgress(ctx, &clock); err != nil {
			return err
		}
	}
	return nil
}

// eachOpenClock applies a mutation to every non-terminal clock of a ticket
// and persists the ones the mutation actually changed.
func (s *ClockService) eachOpenClock(ctx context.Context, tenantID, ticketID string, mutate func(*domain.SLAClockState) (bool, events.EventType)) error {
	clocks, err := s.clocks.ListByTicket(ctx, tenantID, ticketID)
	if err != nil {
		return err
	}
	for i := range clocks {
		clock := clocks[i]
		if clock.Terminal() {
			continue
		}
		changed, eventType := mutate(&clock)
		if !changed {
			continue
		}
		applied, err := s.clocks.UpdateProgress(ctx, &clock)
		if err != nil {
			return err
		}
		if !applied {
			// Went terminal under a concurrent evaluation; the idempotency
			// guard absorbs this.
			s.logger.Debug("clock mutation skipped, already terminal",
				zap.String("ticket_id", ticketID),
				zap.String("metric", string(clock.Metric)))
			continue
		}
		s.publish(ctx, events.Event{
			Type:     eventType,
			TenantID: tenantID,
			TicketID: ticketID,
			Payload: events.ClockPayload{
				Metric:    clock.Metric,
				ElapsedMs: clock.ElapsedMs,
			},
		})
	}
	return nil
}

func (s *ClockService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func eventForMetric(metric domain.SLAMetric) events.EventType {
	if metric == domain.MetricResolution {
		return events.EventTicketResolved
	}
	return events.EventFirstResponse
}
