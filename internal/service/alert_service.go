package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/events"
	"github.com/spec-kit/sla-engine/internal/repository"
	apperrors "github.com/spec-kit/sla-engine/pkg/util"
)

// AlertService exposes breach alert listing and acknowledgement.
type AlertService struct {
	alerts   repository.AlertRepository
	dispatch events.Dispatcher
	logger   *zap.Logger
}

// NewAlertService constructs the service.
func NewAlertService(alerts repository.AlertRepository, dispatch events.Dispatcher, logger *zap.Logger) *AlertService {
	return &AlertService{alerts: alerts, dispatch: dispatch, logger: logger}
}

// List returns alerts for a tenant, optionally filtered on the acknowledged
// flag, newest first.
func (s *AlertService) List(ctx context.Context, tenantID string, acknowledged *bool, limit int) ([]domain.BreachAlert, error) {
	return s.alerts.List(ctx, tenantID, acknowledged, limit)
}

// Get fetches one alert.
func (s *AlertService) Get(ctx context.Context, tenantID, alertID string) (*domain.BreachAlert, error) {
	return s.alerts.GetByID(ctx, tenantID, alertID)
}

// Acknowledge marks an alert handled. Acknowledging twice is a conflict; the
// unacknowledged slot it frees lets a later re-breach raise a fresh alert.
func (s *AlertService) Acknowledge(ctx context.Context, tenantID, alertID, by string) (*domain.BreachAlert, error) {
	if by == "" {
		return nil, apperrors.NewValidationError("acknowledged_by required", nil)
	}
	done, err := s.alerts.Acknowledge(ctx, tenantID, alertID, by)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	alert, err := s.alerts.GetByID(ctx, tenantID, alertID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("breach alert", map[string]any{"alert_id": alertID})
		}
		return nil, err
	}
	if !done {
		return nil, apperrors.NewConflict("alert already acknowledged", map[string]any{"alert_id": alertID})
	}
	s.logger.Info("breach alert acknowledged",
		zap.String("tenant_id", tenantID),
		zap.String("alert_id", alertID),
		zap.String("acknowledged_by", by))

	if s.dispatch != nil {
		_ = s.dispatch.Publish(ctx, events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventAlertAcknowledged,
			TenantID:  tenantID,
			TicketID:  alert.TicketID,
			Timestamp: time.Now(),
			Payload: events.AlertAcknowledgedPayload{
				AlertID:        alert.ID,
				Metric:         alert.BreachType,
				AcknowledgedBy: by,
			},
		})
	}
	return alert, nil
}
