package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/events"
	"github.com/spec-kit/sla-engine/internal/observability"
	"github.com/spec-kit/sla-engine/internal/repository"
)

// BreachThresholds configure alert grading. Percentages are relative to the
// countable-time budget; defaults (100/150) are placeholders, not business
// constants.
type BreachThresholds struct {
	WarningPercent  float64
	CriticalPercent float64
}

// BreachService evaluates clocks against their budgets and emits breach
// transitions exactly once. Both the event-driven path and the periodic
// sweep funnel into EvaluateClock, whose terminal flip is a repository-level
// compare-and-set: whichever caller wins creates the alert, every loser is a
// silent no-op.
type BreachService struct {
	clocks     repository.ClockRepository
	alerts     repository.AlertRepository
	calculator *DeadlineCalculator
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	thresholds BreachThresholds
}

// BreachDependencies bundles collaborators for the breach service.
type BreachDependencies struct {
	ClockRepo  repository.ClockRepository
	AlertRepo  repository.AlertRepository
	Calculator *DeadlineCalculator
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Thresholds BreachThresholds
}

// NewBreachService constructs the service.
func NewBreachService(deps BreachDependencies) *BreachService {
	return &BreachService{
		clocks:     deps.ClockRepo,
		alerts:     deps.AlertRepo,
		calculator: deps.Calculator,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		thresholds: deps.Thresholds,
	}
}

// EvaluateTicket re-evaluates every clock of one ticket, the event-driven
// trigger after clock or NPA mutations.
func (s *BreachService) EvaluateTicket(ctx context.Context, tenantID, ticketID string, now time.Time) error {
	clocks, err := s.clocks.ListByTicket(ctx, tenantID, ticketID)
	if err != nil {
		return err
	}
	for i := range clocks {
		if _, err := s.EvaluateClock(ctx, &clocks[i], now); err != nil {
			return err
		}
	}
	return nil
}

// EvaluateClock checks one clock and performs the breach transition when the
// budget is exhausted. It reports whether this call detected the breach.
func (s *BreachService) EvaluateClock(ctx context.Context, clock *domain.SLAClockState, now time.Time) (bool, error) {
	if clock.Terminal() {
		return false, nil
	}
	cal := s.calculator.Calendar(clock.CalendarID)
	snap := clock.SnapshotAt(now, cal)
	if snap.RemainingMs > 0 {
		return false, nil
	}

	won, err := s.clocks.MarkBreached(ctx, clock.TenantID, clock.TicketID, clock.Metric, snap.ElapsedMs, now)
	if err != nil {
		return false, err
	}
	if !won {
		// A concurrent evaluation (sweep vs event-driven) got there first,
		// or the metric completed in the meantime.
		return false, nil
	}

	level := domain.LevelForPercent(snap.PercentUsed, s.thresholds.CriticalPercent)
	alert := &domain.BreachAlert{
		TicketID:      clock.TicketID,
		TenantID:      clock.TenantID,
		BreachType:    clock.Metric,
		BreachPercent: snap.PercentUsed,
		AlertLevel:    level,
	}
	if err := s.alerts.Upsert(ctx, alert); err != nil {
		return false, err
	}

	s.metrics.RecordBreach(string(clock.Metric), string(level))
	s.logger.Warn("sla breach detected",
		zap.String("tenant_id", clock.TenantID),
		zap.String("ticket_id", clock.TicketID),
		zap.String("metric", string(clock.Metric)),
		zap.Float64("percent_used", snap.PercentUsed))

	s.publish(ctx, events.Event{
		Type:     events.EventBreachDetected,
		TenantID: clock.TenantID,
		TicketID: clock.TicketID,
		Payload: events.BreachDetectedPayload{
			AlertID:       alert.ID,
			Metric:        clock.Metric,
			BreachPercent: snap.PercentUsed,
			AlertLevel:    level,
			BreachedAt:    now,
		},
	})
	return true, nil
}

func (s *BreachService) publish(ctx context.Context, event events.Event) {
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
