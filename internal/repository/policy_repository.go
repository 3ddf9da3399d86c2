package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// PolicyRepository encapsulates SLA policy persistence. Policies are
// versioned rows: Create inserts a new version, existing rows are never
// updated in place.
type PolicyRepository interface {
	Create(ctx context.Context, policy *domain.SLAPolicy) error
	GetByID(ctx context.Context, tenantID, id string) (*domain.SLAPolicy, error)
	ListActive(ctx context.Context, tenantID string) ([]domain.SLAPolicy, error)
	Deactivate(ctx context.Context, tenantID, id string) error
}

type policyRepository struct {
	pool *pgxpool.Pool
}

// NewPolicyRepository instantiates repository.
func NewPolicyRepository(pool *pgxpool.Pool) PolicyRepository {
	return &policyRepository{pool: pool}
}

func (r *policyRepository) Create(ctx context.Context, policy *domain.SLAPolicy) error {
	overrides, err := json.Marshal(policy.PriorityOverrides)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO sla_policies (tenant_id, name, version, first_response_hours, resolution_hours, calendar_id, priority_overrides, active)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		policy.TenantID,
		policy.Name,
		policy.Version,
		policy.FirstResponseHours,
		policy.ResolutionHours,
		policy.CalendarID,
		overrides,
		policy.Active,
	).Scan(&policy.ID, &policy.CreatedAt)
}

func (r *policyRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.SLAPolicy, error) {
	const query = `
        SELECT id, tenant_id, name, version, first_response_hours, resolution_hours, calendar_id, priority_overrides, active, created_at
        FROM sla_policies WHERE tenant_id=$1 AND id=$2`
	return scanPolicy(r.pool.QueryRow(ctx, query, tenantID, id))
}

func (r *policyRepository) ListActive(ctx context.Context, tenantID string) ([]domain.SLAPolicy, error) {
	const query = `
        SELECT id, tenant_id, name, version, first_response_hours, resolution_hours, calendar_id, priority_overrides, active, created_at
        FROM sla_policies WHERE tenant_id=$1 AND active ORDER BY name, version DESC`
	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SLAPolicy
	for rows.Next() {
		policy, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *policy)
	}
	return result, rows.Err()
}

func (r *policyRepository) Deactivate(ctx context.Context, tenantID, id string) error {
	const query = `UPDATE sla_policies SET active=FALSE WHERE tenant_id=$1 AND id=$2`
	cmd, err := r.pool.Exec(ctx, query, tenantID, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanPolicy(row pgx.Row) (*domain.SLAPolicy, error) {
	var policy domain.SLAPolicy
	var overrides []byte
	if err := row.Scan(
		&policy.ID,
		&policy.TenantID,
		&policy.Name,
		&policy.Version,
		&policy.FirstResponseHours,
		&policy.ResolutionHours,
		&policy.CalendarID,
		&overrides,
		&policy.Active,
		&policy.CreatedAt,
	); err != nil {
		return nil, err
	}
	if len(overrides) > 0 {
		if err := json.Unmarshal(overrides, &policy.PriorityOverrides); err != nil {
			return nil, err
		}
	}
	return &policy, nil
}
