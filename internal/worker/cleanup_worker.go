package worker

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/sla-engine/internal/service"
)

// Cleaner turns raw NPA shorthand into customer-presentable text.
type Cleaner interface {
	Clean(ctx context.Context, text string) (string, error)
}

// CleanupRecorder is the slice of the NPA service the worker reports results
// to.
type CleanupRecorder interface {
	StartCleanup(ctx context.Context, tenantID, entryID string) error
	AttachCleanup(ctx context.Context, tenantID, entryID string, cleaned string, jobErr error) error
}

// CleanupWorker processes NPA text-cleanup jobs off a buffered queue. Results
// attach to the entry they were queued for even when that entry has since
// been superseded.
type CleanupWorker struct {
	cleaner  Cleaner
	recorder CleanupRecorder
	jobs     chan service.CleanupJob
	workers  int
	logger   *zap.Logger
	cancel   context.CancelFunc
	group    *errgroup.Group
}

// NewCleanupWorker constructs the worker; depth sizes the queue.
func NewCleanupWorker(cleaner Cleaner, recorder CleanupRecorder, depth int, logger *zap.Logger) *CleanupWorker {
	if depth <= 0 {
		depth = 128
	}
	return &CleanupWorker{
		cleaner:  cleaner,
		recorder: recorder,
		jobs:     make(chan service.CleanupJob, depth),
		workers:  2,
		logger:   logger,
	}
}

var _ service.CleanupEnqueuer = (*CleanupWorker)(nil)

// Enqueue queues a job. A full queue fails the job immediately rather than
// blocking the request path.
func (w *CleanupWorker) Enqueue(job service.CleanupJob) {
	select {
	case w.jobs <- job:
	default:
		w.logger.Warn("cleanup queue full, failing job",
			zap.String("entry_id", job.EntryID))
		_ = w.recorder.AttachCleanup(context.Background(), job.TenantID, job.EntryID, "", errQueueFull)
	}
}

// Start launches the worker goroutines.
func (w *CleanupWorker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	group, ctx := errgroup.WithContext(ctx)
	w.group = group
	for i := 0; i < w.workers; i++ {
		group.Go(func() error {
			return w.run(ctx)
		})
	}
}

// Stop cancels and waits for in-flight jobs.
func (w *CleanupWorker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	if w.group != nil {
		_ = w.group.Wait()
	}
}

func (w *CleanupWorker) run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case job := <-w.jobs:
			w.process(ctx, job)
		}
	}
}

func (w *CleanupWorker) process(ctx context.Context, job service.CleanupJob) {
	if err := w.recorder.StartCleanup(ctx, job.TenantID, job.EntryID); err != nil {
		w.logger.Error("cleanup start failed",
			zap.String("entry_id", job.EntryID),
			zap.Error(err))
		return
	}
	cleaned, err := w.cleaner.Clean(ctx, job.Text)
	if attachErr := w.recorder.AttachCleanup(ctx, job.TenantID, job.EntryID, cleaned, err); attachErr != nil {
		w.logger.Error("cleanup result attach failed",
			zap.String("entry_id", job.EntryID),
			zap.Error(attachErr))
	}
}

var errQueueFull = errors.New("cleanup queue full")

// NormalizingCleaner is the built-in cleaner: it collapses whitespace, strips
// trailing shorthand markers and sentence-cases the result. A real AI backend
// replaces it behind the Cleaner interface.
type NormalizingCleaner struct{}

// Clean normalizes the text.
func (NormalizingCleaner) Clean(_ context.Context, text string) (string, error) {
	fields := strings.Fields(text)
	out := strings.Join(fields, " ")
	out = strings.TrimRight(out, " .;,")
	if out == "" {
		return "", nil
	}
	out = strings.ToUpper(out[:1]) + out[1:]
	if !strings.HasSuffix(out, ".") && !strings.HasSuffix(out, "?") && !strings.HasSuffix(out, "!") {
		out += "."
	}
	return out, nil
}
