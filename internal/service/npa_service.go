package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/events"
	"github.com/spec-kit/sla-engine/internal/repository"
	apperrors "github.com/spec-kit/sla-engine/pkg/util"
)

// BreachScheduler queues an event-driven breach evaluation for a ticket.
// The mutation worker pool implements it.
type BreachScheduler interface {
	Schedule(tenantID, ticketID string)
}

// CleanupJob is an async NPA text-cleanup request for the AI collaborator.
type CleanupJob struct {
	TenantID string
	EntryID  string
	Text     string
}

// CleanupEnqueuer hands cleanup jobs to the background worker.
type CleanupEnqueuer interface {
	Enqueue(job CleanupJob)
}

// NPAService manages the per-ticket Next-Point-of-Action entries and drives
// SLA clock pause/resume from their exclude_from_sla flag.
type NPAService struct {
	entries   repository.NPARepository
	clockSvc  *ClockService
	locks     *TicketLocks
	cleanup   CleanupEnqueuer
	scheduler BreachScheduler
	dispatch  events.Dispatcher
	logger    *zap.Logger
}

// NPADependencies bundles collaborators for the NPA service.
type NPADependencies struct {
	NPARepo    repository.NPARepository
	Clocks     *ClockService
	Locks      *TicketLocks
	Cleanup    CleanupEnqueuer
	Scheduler  BreachScheduler
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewNPAService constructs the service.
func NewNPAService(deps NPADependencies) *NPAService {
	return &NPAService{
		entries:   deps.NPARepo,
		clockSvc:  deps.Clocks,
		locks:     deps.Locks,
		cleanup:   deps.Cleanup,
		scheduler: deps.Scheduler,
		dispatch:  deps.Dispatcher,
		logger:    deps.Logger,
	}
}

// SetCleanup wires the cleanup queue after construction. The worker needs
// the service to report results to, so the two are linked in this order.
func (s *NPAService) SetCleanup(cleanup CleanupEnqueuer) {
	s.cleanup = cleanup
}

// TransitionInput describes a state transition request.
type TransitionInput struct {
	State           domain.NPAState
	Text            string
	ExcludeFromSLA  *bool // explicit override; nil derives from the state
	ExpectedEntryID *string
	CompletionNotes string
	TriggerCleanup  bool
}

// Transition closes the current entry and creates a new current one, pausing
// or resuming the SLA clocks according to the resolved exclude_from_sla.
func (s *NPAService) Transition(ctx context.Context, tenantID, ticketID string, input TransitionInput) (*domain.NPAEntry, error) {
	if !domain.ValidNPAState(input.State) {
		return nil, apperrors.NewValidationError("unknown npa_state", map[string]any{"npa_state": input.State})
	}
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return nil, apperrors.NewValidationError("npa text required", nil)
	}

	now := time.Now()
	exclude := domain.DefaultExcludeFromSLA(input.State)
	if input.ExcludeFromSLA != nil {
		exclude = *input.ExcludeFromSLA
	}

	entry, err := s.replaceCurrent(ctx, tenantID, ticketID, input, text, exclude, now)
	if err != nil {
		return nil, err
	}

	// Clock mutations take the same per-ticket lock, so they happen after
	// the entry swap is released.
	if exclude {
		err = s.clockSvc.Pause(ctx, tenantID, ticketID, now)
	} else {
		err = s.clockSvc.Resume(ctx, tenantID, ticketID, now)
	}
	if err != nil {
		return nil, err
	}

	if input.TriggerCleanup {
		s.enqueueCleanup(ctx, entry)
	}
	s.publish(ctx, events.Event{
		Type:     events.EventNPATransitioned,
		TenantID: tenantID,
		TicketID: ticketID,
		Payload: events.NPATransitionedPayload{
			EntryID:        entry.ID,
			State:          entry.State,
			ExcludeFromSLA: entry.ExcludeFromSLA,
		},
	})
	if s.scheduler != nil {
		s.scheduler.Schedule(tenantID, ticketID)
	}
	return entry, nil
}

func (s *NPAService) replaceCurrent(ctx context.Context, tenantID, ticketID string, input TransitionInput, text string, exclude bool, now time.Time) (*domain.NPAEntry, error) {
	unlock := s.locks.Lock(ticketID)
	defer unlock()

	current, err := s.entries.GetCurrent(ctx, tenantID, ticketID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if input.ExpectedEntryID != nil {
		if current == nil || current.ID != *input.ExpectedEntryID {
			return nil, apperrors.NewInvalidStateTransition("npa entry superseded; refetch current state",
				map[string]any{"entry_id": *input.ExpectedEntryID})
		}
	}
	if current != nil {
		closed, err := s.entries.Close(ctx, tenantID, current.ID, now, input.CompletionNotes, nil)
		if err != nil {
			return nil, err
		}
		if !closed {
			return nil, apperrors.NewInvalidStateTransition("npa entry already closed",
				map[string]any{"entry_id": current.ID})
		}
	}

	status := domain.CleanupStatusNone
	if input.TriggerCleanup {
		status = domain.CleanupStatusQueued
	}
	entry := &domain.NPAEntry{
		TicketID:       ticketID,
		TenantID:       tenantID,
		State:          input.State,
		OriginalText:   text,
		CleanupStatus:  status,
		ExcludeFromSLA: exclude,
	}
	if err := s.entries.Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Append extends the current entry's text without closing it and re-queues
// cleanup.
func (s *NPAService) Append(ctx context.Context, tenantID, ticketID, text string, triggerCleanup bool) (*domain.NPAEntry, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.NewValidationError("npa text required", nil)
	}

	unlock := s.locks.Lock(ticketID)
	current, err := s.entries.GetCurrent(ctx, tenantID, ticketID)
	if err != nil {
		unlock()
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("current npa entry", map[string]any{"ticket_id": ticketID})
		}
		return nil, err
	}
	appended, err := s.entries.AppendText(ctx, tenantID, current.ID, text)
	if err != nil {
		unlock()
		return nil, err
	}
	if !appended {
		unlock()
		return nil, apperrors.NewInvalidStateTransition("npa entry already closed",
			map[string]any{"entry_id": current.ID})
	}
	entry, err := s.entries.GetByID(ctx, tenantID, current.ID)
	unlock()
	if err != nil {
		return nil, err
	}

	if triggerCleanup {
		s.enqueueCleanup(ctx, entry)
	}
	return entry, nil
}

// CloseAsSolution stamps the current entry as the solution and resumes any
// paused clocks: a solution is customer-facing and SLA-counting.
func (s *NPAService) CloseAsSolution(ctx context.Context, tenantID, ticketID, notes string) (*domain.NPAEntry, error) {
	now := time.Now()

	unlock := s.locks.Lock(ticketID)
	current, err := s.entries.GetCurrent(ctx, tenantID, ticketID)
	if err != nil {
		unlock()
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("current npa entry", map[string]any{"ticket_id": ticketID})
		}
		return nil, err
	}
	solution := domain.NPAStateSolution
	closed, err := s.entries.Close(ctx, tenantID, current.ID, now, notes, &solution)
	unlock()
	if err != nil {
		return nil, err
	}
	if !closed {
		return nil, apperrors.NewInvalidStateTransition("npa entry already closed",
			map[string]any{"entry_id": current.ID})
	}

	if err := s.clockSvc.Resume(ctx, tenantID, ticketID, now); err != nil {
		return nil, err
	}
	if s.scheduler != nil {
		s.scheduler.Schedule(tenantID, ticketID)
	}
	return s.entries.GetByID(ctx, tenantID, current.ID)
}

// History returns every entry for a ticket, newest first.
func (s *NPAService) History(ctx context.Context, tenantID, ticketID string) ([]domain.NPAEntry, error) {
	return s.entries.ListByTicket(ctx, tenantID, ticketID)
}

// Current returns the open entry for a ticket.
func (s *NPAService) Current(ctx context.Context, tenantID, ticketID string) (*domain.NPAEntry, error) {
	return s.entries.GetCurrent(ctx, tenantID, ticketID)
}

// StartCleanup marks an entry's cleanup as running; the worker calls this
// when it picks a job up.
func (s *NPAService) StartCleanup(ctx context.Context, tenantID, entryID string) error {
	if err := s.entries.SetCleanup(ctx, tenantID, entryID, domain.CleanupStatusRunning, nil); err != nil {
		return err
	}
	s.publishCleanup(ctx, tenantID, entryID, domain.CleanupStatusRunning, "")
	return nil
}

// AttachCleanup stores an async cleanup result. The entry may have been
// superseded since the job was queued; attachment is by entry id, never the
// current pointer.
func (s *NPAService) AttachCleanup(ctx context.Context, tenantID, entryID string, cleaned string, jobErr error) error {
	if jobErr != nil {
		if err := s.entries.SetCleanup(ctx, tenantID, entryID, domain.CleanupStatusFailed, nil); err != nil {
			return err
		}
		s.publishCleanup(ctx, tenantID, entryID, domain.CleanupStatusFailed, jobErr.Error())
		return nil
	}
	if err := s.entries.SetCleanup(ctx, tenantID, entryID, domain.CleanupStatusCompleted, &cleaned); err != nil {
		return err
	}
	s.publishCleanup(ctx, tenantID, entryID, domain.CleanupStatusCompleted, "")
	return nil
}

func (s *NPAService) enqueueCleanup(ctx context.Context, entry *domain.NPAEntry) {
	if s.cleanup == nil {
		return
	}
	s.cleanup.Enqueue(CleanupJob{
		TenantID: entry.TenantID,
		EntryID:  entry.ID,
		Text:     entry.OriginalText,
	})
	s.publishCleanup(ctx, entry.TenantID, entry.ID, domain.CleanupStatusQueued, "")
}

func (s *NPAService) publishCleanup(ctx context.Context, tenantID, entryID string, status domain.CleanupStatus, errMsg string) {
	eventType := events.EventAIAnalysisStarted
	switch status {
	case domain.CleanupStatusCompleted:
		eventType = events.EventAIAnalysisComplete
	case domain.CleanupStatusFailed:
		eventType = events.EventAIAnalysisFailed
	}
	s.publish(ctx, events.Event{
		Type:     eventType,
		TenantID: tenantID,
		Payload: events.AIAnalysisPayload{
			EntryID: entryID,
			Status:  status,
			Error:   errMsg,
		},
	})
}

func (s *NPAService) publish(ctx context.Context, event events.Event) {
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
