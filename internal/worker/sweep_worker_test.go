package worker

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
	"github.com/spec-kit/sla-engine/internal/service"
)

type recordingEvaluator struct {
	mu   sync.Mutex
	seen []string
}

func (e *recordingEvaluator) EvaluateClock(ctx context.Context, clock *domain.SLAClockState, now time.Time) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seen = append(e.seen, clock.TicketID+"|"+string(clock.Metric))
	return false, nil
}

func seedSweepClock(t *testing.T, repo *repository.MemoryClockRepository, ticketID string, budget, resumedAgo time.Duration) {
	t.Helper()
	resumed := time.Now().Add(-resumedAgo)
	clock := domain.SLAClockState{
		TicketID:     ticketID,
		TenantID:     "tenant-1",
		Metric:       domain.MetricFirstResponse,
		BudgetMs:     budget.Milliseconds(),
		DeadlineAt:   resumed.Add(budget),
		LastResumeAt: &resumed,
	}
	require.NoError(t, repo.CreateBatch(context.Background(), []domain.SLAClockState{clock}))
}

func TestSweepVisitsEveryOpenClockAcrossPages(t *testing.T) {
	clocks := repository.NewMemoryClockRepository(nil)
	for _, id := range []string{"t1", "t2", "t3", "t4", "t5"} {
		seedSweepClock(t, clocks, id, 4*time.Hour, time.Hour)
	}
	// A terminal clock must not be visited.
	done, err := clocks.MarkMet(context.Background(), "tenant-1", "t3", domain.MetricFirstResponse, 1000)
	require.NoError(t, err)
	require.True(t, done)

	evaluator := &recordingEvaluator{}
	sweep := NewSweepWorker(clocks, evaluator, nil, time.Minute, 2, observability.NewMetrics(), zap.NewNop())

	require.NoError(t, sweep.Sweep(context.Background()))

	assert.Len(t, evaluator.seen, 4)
	assert.NotContains(t, evaluator.seen, "t3|"+string(domain.MetricFirstResponse))
}

func TestSweepDetectsOverdueClocks(t *testing.T) {
	ctx := context.Background()
	clocks := repository.NewMemoryClockRepository(nil)
	alerts := repository.NewMemoryAlertRepository()
	breachSvc := service.NewBreachService(service.BreachDependencies{
		ClockRepo:  clocks,
		AlertRepo:  alerts,
		Calculator: service.NewDeadlineCalculator(calendar.NewRegistry()),
		Dispatcher: events.NewInMemoryDispatcher(),
		Metrics:    observability.NewMetrics(),
		Logger:     zap.NewNop(),
		Thresholds: service.BreachThresholds{WarningPercent: 100, CriticalPercent: 150},
	})

	seedSweepClock(t, clocks, "overdue", time.Hour, 2*time.Hour)
	seedSweepClock(t, clocks, "healthy", 4*time.Hour, time.Hour)

	sweep := NewSweepWorker(clocks, breachSvc, nil, time.Minute, 200, observability.NewMetrics(), zap.NewNop())
	require.NoError(t, sweep.Sweep(ctx))

	list, err := alerts.List(ctx, "tenant-1", nil, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "overdue", list[0].TicketID)

	clock, err := clocks.Get(ctx, "tenant-1", "overdue", domain.MetricFirstResponse)
	require.NoError(t, err)
	assert.True(t, clock.Breached)

	// A second pass finds nothing left to transition.
	require.NoError(t, sweep.Sweep(ctx))
	list, err = alerts.List(ctx, "tenant-1", nil, 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
