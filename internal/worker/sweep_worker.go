package worker

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/observability"
	"github.com/spec-kit/sla-engine/internal/repository"
)

const sweepCursorKey = "sla:sweep:cursor"

// ClockEvaluator is the slice of the breach service the sweep drives.
type ClockEvaluator interface {
	EvaluateClock(ctx context.Context, clock *domain.SLAClockState, now time.Time) (bool, error)
}

// SweepWorker is the periodic safety net behind event-driven breach
// detection: it pages through every open clock and re-evaluates it. The
// cursor is checkpointed to Redis after each page so a restart resumes
// mid-scan instead of starting over.
type SweepWorker struct {
	clocks    repository.ClockRepository
	evaluator ClockEvaluator
	redis     *redis.Client
	interval  time.Duration
	pageSize  int
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewSweepWorker constructs the worker. A nil redis client disables
// checkpointing; every sweep then starts from the beginning.
func NewSweepWorker(clocks repository.ClockRepository, evaluator ClockEvaluator, redisClient *redis.Client, interval time.Duration, pageSize int, metrics *observability.Metrics, logger *zap.Logger) *SweepWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	if pageSize <= 0 {
		pageSize = 200
	}
	return &SweepWorker{
		clocks:    clocks,
		evaluator: evaluator,
		redis:     redisClient,
		interval:  interval,
		pageSize:  pageSize,
		metrics:   metrics,
		logger:    logger,
	}
}

// Run blocks until ctx is cancelled, sweeping on the configured cadence.
func (w *SweepWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("breach sweep started",
		zap.Duration("interval", w.interval),
		zap.Int("page_size", w.pageSize))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Error("breach sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep runs one full pass over the open clocks.
func (w *SweepWorker) Sweep(ctx context.Context) error {
	start := time.Now()
	cursor := w.loadCursor(ctx)
	pages := 0
	detected := 0

	for {
		page, err := w.clocks.ListOpen(ctx, cursor, w.pageSize)
		if err != nil {
			return err
		}
		pages++
		now := time.Now()
		for i := range page.Clocks {
			won, err := w.evaluator.EvaluateClock(ctx, &page.Clocks[i], now)
			if err != nil {
				w.logger.Error("sweep evaluation failed",
					zap.String("ticket_id", page.Clocks[i].TicketID),
					zap.String("metric", string(page.Clocks[i].Metric)),
					zap.Error(err))
				continue
			}
			if won {
				detected++
			}
		}

		cursor = page.NextCursor
		w.saveCursor(ctx, cursor)
		if cursor == "" {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	w.metrics.RecordSweep(time.Since(start), pages)
	if detected > 0 {
		w.logger.Info("breach sweep detected breaches",
			zap.Int("breaches", detected),
			zap.Int("pages", pages))
	}
	return nil
}

func (w *SweepWorker) loadCursor(ctx context.Context) string {
	if w.redis == nil {
		return ""
	}
	cursor, err := w.redis.Get(ctx, sweepCursorKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			w.logger.Warn("sweep cursor load failed", zap.Error(err))
		}
		return ""
	}
	return cursor
}

func (w *SweepWorker) saveCursor(ctx context.Context, cursor string) {
	if w.redis == nil {
		return
	}
	var err error
	if cursor == "" {
		err = w.redis.Del(ctx, sweepCursorKey).Err()
	} else {
		err = w.redis.Set(ctx, sweepCursorKey, cursor, w.interval*2).Err()
	}
	if err != nil {
		w.logger.Warn("sweep cursor save failed", zap.Error(err))
	}
}
