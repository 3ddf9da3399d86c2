package worker

import (
	"context"
	"hash/fnv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/sla-engine/internal/observability"
	"github.com/spec-kit/sla-engine/internal/service"
)

type mutationTask struct {
	tenantID   string
	ticketID   string
	enqueuedAt time.Time
}

// BreachEvaluator is the slice of the breach service the pool drives.
type BreachEvaluator interface {
	EvaluateTicket(ctx context.Context, tenantID, ticketID string, now time.Time) error
}

// MutationPool is the event-driven breach evaluation pool. Tasks are sharded
// by tenant hash so evaluations for one tenant stay ordered relative to each
// other while tenants proceed in parallel.
type MutationPool struct {
	evaluator BreachEvaluator
	shards    []chan mutationTask
	metrics   *observability.Metrics
	logger    *zap.Logger
	cancel    context.CancelFunc
	group     *errgroup.Group
}

// NewMutationPool sizes the pool. shards and depth fall back to sane values
// when non-positive.
func NewMutationPool(evaluator BreachEvaluator, shards, depth int, metrics *observability.Metrics, logger *zap.Logger) *MutationPool {
	if shards <= 0 {
		shards = 4
	}
	if depth <= 0 {
		depth = 256
	}
	channels := make([]chan mutationTask, shards)
	for i := range channels {
		channels[i] = make(chan mutationTask, depth)
	}
	return &MutationPool{
		evaluator: evaluator,
		shards:    channels,
		metrics:   metrics,
		logger:    logger,
	}
}

var _ service.BreachScheduler = (*MutationPool)(nil)

// Start launches one goroutine per shard.
func (p *MutationPool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	group, ctx := errgroup.WithContext(ctx)
	p.group = group
	for i := range p.shards {
		shard := p.shards[i]
		group.Go(func() error {
			return p.run(ctx, shard)
		})
	}
	p.logger.Info("mutation pool started", zap.Int("shards", len(p.shards)))
}

// Schedule queues a breach evaluation for a ticket. A full shard drops the
// task; the periodic sweep is the safety net for anything dropped here.
func (p *MutationPool) Schedule(tenantID, ticketID string) {
	task := mutationTask{tenantID: tenantID, ticketID: ticketID, enqueuedAt: time.Now()}
	shard := p.shards[shardFor(tenantID, len(p.shards))]
	select {
	case shard <- task:
	default:
		p.logger.Warn("mutation shard full, dropping evaluation",
			zap.String("tenant_id", tenantID),
			zap.String("ticket_id", ticketID))
	}
}

// Stop drains the pool and waits for in-flight evaluations.
func (p *MutationPool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	if p.group != nil {
		_ = p.group.Wait()
	}
}

func (p *MutationPool) run(ctx context.Context, shard <-chan mutationTask) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case task := <-shard:
			p.metrics.RecordQueueLag(time.Since(task.enqueuedAt))
			if err := p.evaluator.EvaluateTicket(ctx, task.tenantID, task.ticketID, time.Now()); err != nil {
				p.logger.Error("breach evaluation failed",
					zap.String("tenant_id", task.tenantID),
					zap.String("ticket_id", task.ticketID),
					zap.Error(err))
			}
		}
	}
}

func shardFor(tenantID string, shards int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(tenantID))
	return int(h.Sum32() % uint32(shards))
}
