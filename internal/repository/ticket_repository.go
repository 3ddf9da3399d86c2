package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, tenantID, id string) (*domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (tenant_id, customer_id, customer_name, agent_id, agent_name, agent_email, subject, priority, status, sla_policy_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.TenantID,
		ticket.CustomerID,
		ticket.CustomerName,
		ticket.AgentID,
		ticket.AgentName,
		ticket.AgentEmail,
		ticket.Subject,
		ticket.Priority,
		ticket.Status,
		ticket.SLAPolicyID,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET agent_id=$1, agent_name=$2, agent_email=$3, priority=$4, status=$5,
            first_response_at=$6, resolved_at=$7, updated_at=NOW()
        WHERE tenant_id=$8 AND id=$9`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.AgentID,
		ticket.AgentName,
		ticket.AgentEmail,
		ticket.Priority,
		ticket.Status,
		ticket.FirstResponseAt,
		ticket.ResolvedAt,
		ticket.TenantID,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Ticket, error) {
	const query = `
        SELECT id, tenant_id, customer_id, customer_name, agent_id, agent_name, agent_email,
               subject, priority, status, sla_policy_id, created_at, updated_at, first_response_at, resolved_at
        FROM tickets WHERE tenant_id=$1 AND id=$2`
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, tenantID, id).Scan(
		&ticket.ID,
		&ticket.TenantID,
		&ticket.CustomerID,
		&ticket.CustomerName,
		&ticket.AgentID,
		&ticket.AgentName,
		&ticket.AgentEmail,
		&ticket.Subject,
		&ticket.Priority,
		&ticket.Status,
		&ticket.SLAPolicyID,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.FirstResponseAt,
		&ticket.ResolvedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}
