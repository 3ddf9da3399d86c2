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
	"github.com/spec-kit/sla-engine/internal/repository"
	apperrors "github.com/spec-kit/sla-engine/pkg/util"
)

type captureScheduler struct {
	mu    sync.Mutex
	calls []string
}

func (s *captureScheduler) Schedule(tenantID, ticketID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, ticketID)
}

type captureEnqueuer struct {
	jobs []CleanupJob
}

func (e *captureEnqueuer) Enqueue(job CleanupJob) {
	e.jobs = append(e.jobs, job)
}

type npaFixture struct {
	npa       *NPAService
	clocks    *ClockService
	scheduler *captureScheduler
	enqueuer  *captureEnqueuer
	ticket    *domain.Ticket
}

func newNPAFixture(t *testing.T) *npaFixture {
	t.Helper()
	locks := NewTicketLocks()
	clockRepo := repository.NewMemoryClockRepository(nil)
	clockSvc := NewClockService(ClockDependencies{
		ClockRepo:  clockRepo,
		Calculator: NewDeadlineCalculator(calendar.NewRegistry()),
		Locks:      locks,
		Dispatcher: events.NewInMemoryDispatcher(),
		Logger:     zap.NewNop(),
	})

	scheduler := &captureScheduler{}
	enqueuer := &captureEnqueuer{}
	npa := NewNPAService(NPADependencies{
		NPARepo:    repository.NewMemoryNPARepository(),
		Clocks:     clockSvc,
		Locks:      locks,
		Cleanup:    enqueuer,
		Scheduler:  scheduler,
		Dispatcher: events.NewInMemoryDispatcher(),
		Logger:     zap.NewNop(),
	})

	ticket := &domain.Ticket{
		ID:        "ticket-1",
		TenantID:  "tenant-1",
		Priority:  domain.TicketPriorityMedium,
		CreatedAt: time.Now(),
	}
	require.NoError(t, clockSvc.Start(context.Background(), ticket, testPolicy(ticket.TenantID)))
	return &npaFixture{npa: npa, clocks: clockSvc, scheduler: scheduler, enqueuer: enqueuer, ticket: ticket}
}

func (f *npaFixture) transition(t *testing.T, input TransitionInput) *domain.NPAEntry {
	t.Helper()
	entry, err := f.npa.Transition(context.Background(), f.ticket.TenantID, f.ticket.ID, input)
	require.NoError(t, err)
	return entry
}

func TestTransitionSupersedesCurrentEntry(t *testing.T) {
	f := newNPAFixture(t)
	ctx := context.Background()

	first := f.transition(t, TransitionInput{State: domain.NPAStateInvestigation, Text: "check logs"})
	second := f.transition(t, TransitionInput{
		State:           domain.NPAStateTesting,
		Text:            "verify fix on staging",
		CompletionNotes: "root cause found",
	})

	current, err := f.npa.Current(ctx, f.ticket.TenantID, f.ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, current.ID)

	history, err := f.npa.History(ctx, f.ticket.TenantID, f.ticket.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)

	currentCount := 0
	for _, entry := range history {
		if entry.Current() {
			currentCount++
		}
		if entry.ID == first.ID {
			assert.Equal(t, "root cause found", entry.CompletionNotes)
			assert.NotNil(t, entry.CompletedAt)
		}
	}
	assert.Equal(t, 1, currentCount)
}

func TestTransitionRejectsUnknownState(t *testing.T) {
	f := newNPAFixture(t)
	_, err := f.npa.Transition(context.Background(), f.ticket.TenantID, f.ticket.ID, TransitionInput{
		State: "daydreaming",
		Text:  "zzz",
	})
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "VALIDATION_FAILED", domainErr.Code)
}

func TestWaitingStatePausesAndActiveResumesClocks(t *testing.T) {
	f := newNPAFixture(t)
	ctx := context.Background()

	f.transition(t, TransitionInput{State: domain.NPAStateWaitingCustomer, Text: "asked for reproduction steps"})

	snaps, err := f.clocks.Snapshot(ctx, f.ticket.TenantID, f.ticket.ID, time.Now())
	require.NoError(t, err)
	for _, snap := range snaps {
		assert.False(t, snap.Running)
	}

	f.transition(t, TransitionInput{State: domain.NPAStateInvestigation, Text: "customer replied"})

	snaps, err = f.clocks.Snapshot(ctx, f.ticket.TenantID, f.ticket.ID, time.Now())
	require.NoError(t, err)
	for _, snap := range snaps {
		assert.True(t, snap.Running)
	}
}

func TestExplicitExcludeOverridesStateDefault(t *testing.T) {
	f := newNPAFixture(t)
	exclude := true

	f.transition(t, TransitionInput{
		State:          domain.NPAStateInvestigation,
		Text:           "long-running data migration",
		ExcludeFromSLA: &exclude,
	})

	snaps, err := f.clocks.Snapshot(context.Background(), f.ticket.TenantID, f.ticket.ID, time.Now())
	require.NoError(t, err)
	for _, snap := range snaps {
		assert.False(t, snap.Running)
	}
}

func TestStaleExpectedEntryIDConflicts(t *testing.T) {
	f := newNPAFixture(t)

	first := f.transition(t, TransitionInput{State: domain.NPAStateInvestigation, Text: "check logs"})
	f.transition(t, TransitionInput{State: domain.NPAStateTesting, Text: "verify"})

	// A stale client still holding the first entry's id must not clobber the
	// newer entry.
	_, err := f.npa.Transition(context.Background(), f.ticket.TenantID, f.ticket.ID, TransitionInput{
		State:           domain.NPAStateSolution,
		Text:            "done",
		ExpectedEntryID: &first.ID,
	})
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "INVALID_STATE_TRANSITION", domainErr.Code)
	assert.Equal(t, 409, domainErr.HTTPStatus)
}

func TestTransitionSchedulesBreachEvaluation(t *testing.T) {
	f := newNPAFixture(t)
	f.transition(t, TransitionInput{State: domain.NPAStateInvestigation, Text: "check logs"})
	assert.Contains(t, f.scheduler.calls, f.ticket.ID)
}

func TestCleanupAttachesToSupersededEntry(t *testing.T) {
	f := newNPAFixture(t)
	ctx := context.Background()

	first := f.transition(t, TransitionInput{
		State:          domain.NPAStateInvestigation,
		Text:           "chk lgs, see err 500",
		TriggerCleanup: true,
	})
	require.Len(t, f.enqueuer.jobs, 1)
	assert.Equal(t, first.ID, f.enqueuer.jobs[0].EntryID)

	second := f.transition(t, TransitionInput{State: domain.NPAStateTesting, Text: "verify"})

	// The async result lands on the entry it was queued for, not the current
	// one.
	require.NoError(t, f.npa.AttachCleanup(ctx, f.ticket.TenantID, first.ID, "Checked logs, found error 500.", nil))

	updated, err := f.npa.History(ctx, f.ticket.TenantID, f.ticket.ID)
	require.NoError(t, err)
	for _, entry := range updated {
		switch entry.ID {
		case first.ID:
			require.NotNil(t, entry.CleanedText)
			assert.Equal(t, "Checked logs, found error 500.", *entry.CleanedText)
			assert.Equal(t, domain.CleanupStatusCompleted, entry.CleanupStatus)
		case second.ID:
			assert.Nil(t, entry.CleanedText)
		}
	}
}

func TestCleanupFailureMarksEntry(t *testing.T) {
	f := newNPAFixture(t)
	ctx := context.Background()

	entry := f.transition(t, TransitionInput{
		State:          domain.NPAStateInvestigation,
		Text:           "raw notes",
		TriggerCleanup: true,
	})

	require.NoError(t, f.npa.AttachCleanup(ctx, f.ticket.TenantID, entry.ID, "", assert.AnError))

	current, err := f.npa.Current(ctx, f.ticket.TenantID, f.ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CleanupStatusFailed, current.CleanupStatus)
	assert.Nil(t, current.CleanedText)
}

func TestAppendExtendsCurrentEntry(t *testing.T) {
	f := newNPAFixture(t)
	ctx := context.Background()

	f.transition(t, TransitionInput{State: domain.NPAStateInvestigation, Text: "first note"})
	entry, err := f.npa.Append(ctx, f.ticket.TenantID, f.ticket.ID, "second note", false)
	require.NoError(t, err)
	assert.Contains(t, entry.OriginalText, "first note")
	assert.Contains(t, entry.OriginalText, "second note")
}

func TestAppendWithoutCurrentEntryIsNotFound(t *testing.T) {
	f := newNPAFixture(t)
	_, err := f.npa.Append(context.Background(), f.ticket.TenantID, "other-ticket", "note", false)
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, 404, domainErr.HTTPStatus)
}

func TestCloseAsSolutionResumesClocks(t *testing.T) {
	f := newNPAFixture(t)
	ctx := context.Background()

	f.transition(t, TransitionInput{State: domain.NPAStateWaitingCustomer, Text: "waiting on approval"})

	closed, err := f.npa.CloseAsSolution(ctx, f.ticket.TenantID, f.ticket.ID, "approved and shipped")
	require.NoError(t, err)
	assert.Equal(t, domain.NPAStateSolution, closed.State)
	assert.NotNil(t, closed.CompletedAt)

	_, err = f.npa.Current(ctx, f.ticket.TenantID, f.ticket.ID)
	assert.Error(t, err)

	snaps, err := f.clocks.Snapshot(ctx, f.ticket.TenantID, f.ticket.ID, time.Now())
	require.NoError(t, err)
	for _, snap := range snaps {
		assert.True(t, snap.Running)
	}
}
