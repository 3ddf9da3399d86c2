package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/calendar"
	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/events"
	"github.com/spec-kit/sla-engine/internal/observability"
	"github.com/spec-kit/sla-engine/internal/repository"
)

type breachFixture struct {
	svc    *BreachService
	clocks *repository.MemoryClockRepository
	alerts *repository.MemoryAlertRepository
}

func newBreachFixture(t *testing.T) *breachFixture {
	t.Helper()
	clocks := repository.NewMemoryClockRepository(nil)
	alerts := repository.NewMemoryAlertRepository()
	svc := NewBreachService(BreachDependencies{
		ClockRepo:  clocks,
		AlertRepo:  alerts,
		Calculator: NewDeadlineCalculator(calendar.NewRegistry()),
		Dispatcher: events.NewInMemoryDispatcher(),
		Metrics:    observability.NewMetrics(),
		Logger:     zap.NewNop(),
		Thresholds: BreachThresholds{WarningPercent: 100, CriticalPercent: 150},
	})
	return &breachFixture{svc: svc, clocks: clocks, alerts: alerts}
}

func (f *breachFixture) seedClock(t *testing.T, ticketID string, budget time.Duration, resumedAgo time.Duration) domain.SLAClockState {
	t.Helper()
	resumed := time.Now().Add(-resumedAgo)
	clock := domain.SLAClockState{
		TicketID:     ticketID,
		TenantID:     "tenant-1",
		Metric:       domain.MetricFirstResponse,
		PolicyID:     "policy-1",
		BudgetMs:     budget.Milliseconds(),
		DeadlineAt:   resumed.Add(budget),
		LastResumeAt: &resumed,
	}
	require.NoError(t, f.clocks.CreateBatch(context.Background(), []domain.SLAClockState{clock}))
	return clock
}

func TestEvaluateClockWithinBudgetIsNoop(t *testing.T) {
	f := newBreachFixture(t)
	clock := f.seedClock(t, "ticket-1", 4*time.Hour, time.Hour)

	won, err := f.svc.EvaluateClock(context.Background(), &clock, time.Now())
	require.NoError(t, err)
	assert.False(t, won)

	alerts, err := f.alerts.List(context.Background(), "tenant-1", nil, 10)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestEvaluateClockDetectsBreachOnce(t *testing.T) {
	f := newBreachFixture(t)
	f.seedClock(t, "ticket-1", time.Hour, 2*time.Hour)
	ctx := context.Background()

	var wg sync.WaitGroup
	wins := make(chan bool, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			clock, err := f.clocks.Get(ctx, "tenant-1", "ticket-1", domain.MetricFirstResponse)
			if err != nil {
				return
			}
			won, err := f.svc.EvaluateClock(ctx, clock, time.Now())
			if err == nil && won {
				wins <- true
			}
		}()
	}
	wg.Wait()
	close(wins)

	assert.Len(t, wins, 1, "exactly one evaluation must win the breach transition")

	alerts, err := f.alerts.List(ctx, "tenant-1", nil, 10)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, domain.MetricFirstResponse, alerts[0].BreachType)

	clock, err := f.clocks.Get(ctx, "tenant-1", "ticket-1", domain.MetricFirstResponse)
	require.NoError(t, err)
	assert.True(t, clock.Breached)
	assert.False(t, clock.Met)
}

func TestEvaluateClockGradesCriticalBreaches(t *testing.T) {
	f := newBreachFixture(t)
	clock := f.seedClock(t, "ticket-1", time.Hour, 2*time.Hour)

	won, err := f.svc.EvaluateClock(context.Background(), &clock, time.Now())
	require.NoError(t, err)
	require.True(t, won)

	alerts, err := f.alerts.List(context.Background(), "tenant-1", nil, 10)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	// 2h elapsed on a 1h budget is 200%, past the 150% critical threshold.
	assert.Equal(t, domain.AlertLevelCritical, alerts[0].AlertLevel)
	assert.InDelta(t, 200, alerts[0].BreachPercent, 1)
}

func TestEvaluateClockSkipsTerminal(t *testing.T) {
	f := newBreachFixture(t)
	clock := f.seedClock(t, "ticket-1", time.Hour, 2*time.Hour)
	clock.Met = true

	won, err := f.svc.EvaluateClock(context.Background(), &clock, time.Now())
	require.NoError(t, err)
	assert.False(t, won)
}

func TestEvaluateTicketCoversAllMetrics(t *testing.T) {
	f := newBreachFixture(t)
	ctx := context.Background()
	resumed := time.Now().Add(-3 * time.Hour)
	clocks := []domain.SLAClockState{
		{
			TicketID: "ticket-1", TenantID: "tenant-1", Metric: domain.MetricFirstResponse,
			BudgetMs: time.Hour.Milliseconds(), LastResumeAt: &resumed,
		},
		{
			TicketID: "ticket-1", TenantID: "tenant-1", Metric: domain.MetricResolution,
			BudgetMs: (2 * time.Hour).Milliseconds(), LastResumeAt: &resumed,
		},
	}
	require.NoError(t, f.clocks.CreateBatch(ctx, clocks))

	require.NoError(t, f.svc.EvaluateTicket(ctx, "tenant-1", "ticket-1", time.Now()))

	alerts, err := f.alerts.List(ctx, "tenant-1", nil, 10)
	require.NoError(t, err)
	assert.Len(t, alerts, 2)
}

func TestAcknowledgedAlertSlotAllowsFreshAlert(t *testing.T) {
	f := newBreachFixture(t)
	ctx := context.Background()

	first := &domain.BreachAlert{
		TicketID: "ticket-1", TenantID: "tenant-1",
		BreachType: domain.MetricFirstResponse, BreachPercent: 120,
		AlertLevel: domain.AlertLevelWarning,
	}
	require.NoError(t, f.alerts.Upsert(ctx, first))

	// Unacknowledged re-evaluation updates in place.
	update := &domain.BreachAlert{
		TicketID: "ticket-1", TenantID: "tenant-1",
		BreachType: domain.MetricFirstResponse, BreachPercent: 160,
		AlertLevel: domain.AlertLevelCritical,
	}
	require.NoError(t, f.alerts.Upsert(ctx, update))
	assert.Equal(t, first.ID, update.ID)

	done, err := f.alerts.Acknowledge(ctx, "tenant-1", first.ID, "agent-7")
	require.NoError(t, err)
	require.True(t, done)

	// Once acknowledged the slot is free; a later breach raises a new alert.
	fresh := &domain.BreachAlert{
		TicketID: "ticket-1", TenantID: "tenant-1",
		BreachType: domain.MetricFirstResponse, BreachPercent: 180,
		AlertLevel: domain.AlertLevelCritical,
	}
	require.NoError(t, f.alerts.Upsert(ctx, fresh))
	assert.NotEqual(t, first.ID, fresh.ID)
}
