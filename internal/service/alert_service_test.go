package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/events"
	"github.com/spec-kit/sla-engine/internal/repository"
	apperrors "github.com/spec-kit/sla-engine/pkg/util"
)

func newAlertFixture(t *testing.T) (*AlertService, *repository.MemoryAlertRepository) {
	t.Helper()
	repo := repository.NewMemoryAlertRepository()
	return NewAlertService(repo, events.NewInMemoryDispatcher(), zap.NewNop()), repo
}

func seedAlert(t *testing.T, repo *repository.MemoryAlertRepository) *domain.BreachAlert {
	t.Helper()
	alert := &domain.BreachAlert{
		TicketID:      "ticket-1",
		TenantID:      "tenant-1",
		BreachType:    domain.MetricFirstResponse,
		BreachPercent: 120,
		AlertLevel:    domain.AlertLevelWarning,
	}
	require.NoError(t, repo.Upsert(context.Background(), alert))
	return alert
}

func TestAcknowledgeAlert(t *testing.T) {
	svc, repo := newAlertFixture(t)
	alert := seedAlert(t, repo)

	acked, err := svc.Acknowledge(context.Background(), "tenant-1", alert.ID, "agent-7")
	require.NoError(t, err)
	assert.True(t, acked.Acknowledged)
	require.NotNil(t, acked.AcknowledgedBy)
	assert.Equal(t, "agent-7", *acked.AcknowledgedBy)
	assert.NotNil(t, acked.AcknowledgedAt)
}

func TestAcknowledgeAlertTwiceConflicts(t *testing.T) {
	svc, repo := newAlertFixture(t)
	alert := seedAlert(t, repo)
	ctx := context.Background()

	_, err := svc.Acknowledge(ctx, "tenant-1", alert.ID, "agent-7")
	require.NoError(t, err)

	_, err = svc.Acknowledge(ctx, "tenant-1", alert.ID, "agent-8")
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, 409, domainErr.HTTPStatus)
}

func TestAcknowledgeMissingAlertIsNotFound(t *testing.T) {
	svc, _ := newAlertFixture(t)

	_, err := svc.Acknowledge(context.Background(), "tenant-1", "no-such-alert", "agent-7")
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, 404, domainErr.HTTPStatus)
}

func TestAcknowledgeRequiresActor(t *testing.T) {
	svc, repo := newAlertFixture(t)
	alert := seedAlert(t, repo)

	_, err := svc.Acknowledge(context.Background(), "tenant-1", alert.ID, "")
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "VALIDATION_FAILED", domainErr.Code)
}

func TestListFiltersOnAcknowledged(t *testing.T) {
	svc, repo := newAlertFixture(t)
	ctx := context.Background()
	first := seedAlert(t, repo)

	other := &domain.BreachAlert{
		TicketID:      "ticket-2",
		TenantID:      "tenant-1",
		BreachType:    domain.MetricResolution,
		BreachPercent: 140,
		AlertLevel:    domain.AlertLevelWarning,
	}
	require.NoError(t, repo.Upsert(ctx, other))

	_, err := svc.Acknowledge(ctx, "tenant-1", first.ID, "agent-7")
	require.NoError(t, err)

	unacked := false
	open, err := svc.List(ctx, "tenant-1", &unacked, 10)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, other.ID, open[0].ID)

	all, err := svc.List(ctx, "tenant-1", nil, 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
