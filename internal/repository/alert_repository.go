package repository

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// AlertRepository encapsulates breach alert persistence. The partial unique
// index on (ticket_id, breach_type) WHERE NOT acknowledged backs the
// at-most-one-unacknowledged invariant; Upsert updates in place on conflict.
type AlertRepository interface {
	Upsert(ctx context.Context, alert *domain.BreachAlert) error
	GetByID(ctx context.Context, tenantID, id string) (*domain.BreachAlert, error)
	List(ctx context.Context, tenantID string, acknowledged *bool, limit int) ([]domain.BreachAlert, error)
	// Acknowledge flips the flag; returns false when the alert was already
	// acknowledged.
	Acknowledge(ctx context.Context, tenantID, id, by string) (bool, error)
}

type alertRepository struct {
	pool *pgxpool.Pool
}

// NewAlertRepository instantiates repository.
func NewAlertRepository(pool *pgxpool.Pool) AlertRepository {
	return &alertRepository{pool: pool}
}

const alertColumns = `id, ticket_id, tenant_id, breach_type, breach_percent, alert_level,
       acknowledged, acknowledged_by, acknowledged_at, created_at, updated_at`

func (r *alertRepository) Upsert(ctx context.Context, alert *domain.BreachAlert) error {
	const query = `
        INSERT INTO breach_alerts (ticket_id, tenant_id, breach_type, breach_percent, alert_level)
        VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (ticket_id, breach_type) WHERE NOT acknowledged
        DO UPDATE SET breach_percent=EXCLUDED.breach_percent, alert_level=EXCLUDED.alert_level, updated_at=NOW()
        RETURNING id, acknowledged, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		alert.TicketID,
		alert.TenantID,
		alert.BreachType,
		alert.BreachPercent,
		alert.AlertLevel,
	).Scan(&alert.ID, &alert.Acknowledged, &alert.CreatedAt, &alert.UpdatedAt)
}

func (r *alertRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.BreachAlert, error) {
	query := `SELECT ` + alertColumns + ` FROM breach_alerts WHERE tenant_id=$1 AND id=$2`
	return scanAlert(r.pool.QueryRow(ctx, query, tenantID, id))
}

func (r *alertRepository) List(ctx context.Context, tenantID string, acknowledged *bool, limit int) ([]domain.BreachAlert, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + alertColumns + ` FROM breach_alerts WHERE tenant_id=$1`
	args := []any{tenantID}
	if acknowledged != nil {
		args = append(args, *acknowledged)
		query += ` AND acknowledged=$2`
	}
	query += ` ORDER BY created_at DESC LIMIT ` + limitClause(limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.BreachAlert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *alert)
	}
	return result, rows.Err()
}

func (r *alertRepository) Acknowledge(ctx context.Context, tenantID, id, by string) (bool, error) {
	const query = `
        UPDATE breach_alerts SET acknowledged=TRUE, acknowledged_by=$1, acknowledged_at=NOW(), updated_at=NOW()
        WHERE tenant_id=$2 AND id=$3 AND NOT acknowledged`
	cmd, err := r.pool.Exec(ctx, query, by, tenantID, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func limitClause(limit int) string {
	return strconv.Itoa(limit)
}

func scanAlert(row pgx.Row) (*domain.BreachAlert, error) {
	var alert domain.BreachAlert
	if err := row.Scan(
		&alert.ID,
		&alert.TicketID,
		&alert.TenantID,
		&alert.BreachType,
		&alert.BreachPercent,
		&alert.AlertLevel,
		&alert.Acknowledged,
		&alert.AcknowledgedBy,
		&alert.AcknowledgedAt,
		&alert.CreatedAt,
		&alert.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &alert, nil
}
