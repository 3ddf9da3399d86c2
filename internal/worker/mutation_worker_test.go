package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/observability"
)

type channelEvaluator struct {
	calls chan string
}

func (e *channelEvaluator) EvaluateTicket(ctx context.Context, tenantID, ticketID string, now time.Time) error {
	e.calls <- tenantID + "/" + ticketID
	return nil
}

func TestMutationPoolRunsScheduledEvaluations(t *testing.T) {
	evaluator := &channelEvaluator{calls: make(chan string, 8)}
	pool := NewMutationPool(evaluator, 4, 8, observability.NewMetrics(), zap.NewNop())
	pool.Start(context.Background())
	defer pool.Stop()

	pool.Schedule("tenant-1", "ticket-1")
	pool.Schedule("tenant-2", "ticket-2")

	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case call := <-evaluator.calls:
			got[call] = true
		case <-time.After(2 * time.Second):
			t.Fatal("scheduled evaluation never ran")
		}
	}
	assert.True(t, got["tenant-1/ticket-1"])
	assert.True(t, got["tenant-2/ticket-2"])
}

func TestScheduleDropsWhenShardFull(t *testing.T) {
	evaluator := &channelEvaluator{calls: make(chan string, 1)}
	// One shard of depth one, never started: the second task must be dropped
	// without blocking the caller.
	pool := NewMutationPool(evaluator, 1, 1, observability.NewMetrics(), zap.NewNop())

	done := make(chan struct{})
	go func() {
		pool.Schedule("tenant-1", "ticket-1")
		pool.Schedule("tenant-1", "ticket-2")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Schedule blocked on a full shard")
	}
}

func TestShardForIsStable(t *testing.T) {
	first := shardFor("tenant-1", 8)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, shardFor("tenant-1", 8))
	}
	assert.Less(t, first, 8)
	assert.GreaterOrEqual(t, first, 0)
}
