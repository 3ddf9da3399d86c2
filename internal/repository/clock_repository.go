package repository

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// ClockPage is one sweep page of open clocks plus the cursor for the next
// page. An empty NextCursor means the scan is complete.
type ClockPage struct {
	Clocks     []domain.SLAClockState
	NextCursor string
}

// ClockRepository encapsulates SLA clock persistence. Terminal transitions
// (MarkMet/MarkBreached) are compare-and-set: they only succeed on a
// non-terminal row, which is what guarantees exactly-once breach detection
// under concurrent sweep and event-driven evaluation.
type ClockRepository interface {
	CreateBatch(ctx context.Context, clocks []domain.SLAClockState) error
	Get(ctx context.Context, tenantID, ticketID string, metric domain.SLAMetric) (*domain.SLAClockState, error)
	ListByTicket(ctx context.Context, tenantID, ticketID string) ([]domain.SLAClockState, error)
	// UpdateProgress persists elapsed/resume/budget/deadline changes; it is a
	// no-op returning ErrNoRows semantics via affected-row count when the row
	// went terminal concurrently.
	UpdateProgress(ctx context.Context, clock *domain.SLAClockState) (bool, error)
	MarkMet(ctx context.Context, tenantID, ticketID string, metric domain.SLAMetric, elapsedMs int64) (bool, error)
	MarkBreached(ctx context.Context, tenantID, ticketID string, metric domain.SLAMetric, elapsedMs int64, at time.Time) (bool, error)
	// ListOpen pages through non-terminal clocks across all tenants for the
	// breach sweep. The cursor is opaque to callers.
	ListOpen(ctx context.Context, cursor string, limit int) (*ClockPage, error)
	// ListComplianceRecords returns terminal clocks joined with ticket fields
	// for aggregation, window-filtered by each metric's bucket time.
	ListComplianceRecords(ctx context.Context, tenantID string, start, end time.Time) ([]domain.ComplianceRecord, error)
}

type clockRepository struct {
	pool *pgxpool.Pool
}

// NewClockRepository instantiates repository.
func NewClockRepository(pool *pgxpool.Pool) ClockRepository {
	return &clockRepository{pool: pool}
}

func (r *clockRepository) CreateBatch(ctx context.Context, clocks []domain.SLAClockState) error {
	if len(clocks) == 0 {
		return nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const query = `
        INSERT INTO sla_clocks (ticket_id, tenant_id, metric, policy_id, calendar_id, budget_ms, deadline_at, elapsed_ms, last_resume_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	for i := range clocks {
		clock := &clocks[i]
		if _, err := tx.Exec(ctx, query,
			clock.TicketID,
			clock.TenantID,
			clock.Metric,
			clock.PolicyID,
			clock.CalendarID,
			clock.BudgetMs,
			clock.DeadlineAt,
			clock.ElapsedMs,
			clock.LastResumeAt,
		); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

const clockColumns = `ticket_id, tenant_id, metric, policy_id, calendar_id, budget_ms, deadline_at,
       elapsed_ms, last_resume_at, met, breached, breached_at, created_at, updated_at`

func (r *clockRepository) Get(ctx context.Context, tenantID, ticketID string, metric domain.SLAMetric) (*domain.SLAClockState, error) {
	query := `SELECT ` + clockColumns + ` FROM sla_clocks WHERE tenant_id=$1 AND ticket_id=$2 AND metric=$3`
	return scanClock(r.pool.QueryRow(ctx, query, tenantID, ticketID, metric))
}

func (r *clockRepository) ListByTicket(ctx context.Context, tenantID, ticketID string) ([]domain.SLAClockState, error) {
	query := `SELECT ` + clockColumns + ` FROM sla_clocks WHERE tenant_id=$1 AND ticket_id=$2 ORDER BY metric`
	rows, err := r.pool.Query(ctx, query, tenantID, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanClocks(rows)
}

func (r *clockRepository) UpdateProgress(ctx context.Context, clock *domain.SLAClockState) (bool, error) {
	const query = `
        UPDATE sla_clocks SET elapsed_ms=$1, last_resume_at=$2, budget_ms=$3, deadline_at=$4, updated_at=NOW()
        WHERE tenant_id=$5 AND ticket_id=$6 AND metric=$7 AND NOT met AND NOT breached`
	cmd, err := r.pool.Exec(ctx, query,
		clock.ElapsedMs,
		clock.LastResumeAt,
		clock.BudgetMs,
		clock.DeadlineAt,
		clock.TenantID,
		clock.TicketID,
		clock.Metric,
	)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *clockRepository) MarkMet(ctx context.Context, tenantID, ticketID string, metric domain.SLAMetric, elapsedMs int64) (bool, error) {
	const query = `
        UPDATE sla_clocks SET met=TRUE, elapsed_ms=$1, last_resume_at=NULL, updated_at=NOW()
        WHERE tenant_id=$2 AND ticket_id=$3 AND metric=$4 AND NOT met AND NOT breached`
	cmd, err := r.pool.Exec(ctx, query, elapsedMs, tenantID, ticketID, metric)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *clockRepository) MarkBreached(ctx context.Context, tenantID, ticketID string, metric domain.SLAMetric, elapsedMs int64, at time.Time) (bool, error) {
	const query = `
        UPDATE sla_clocks SET breached=TRUE, breached_at=$1, elapsed_ms=$2, last_resume_at=NULL, updated_at=NOW()
        WHERE tenant_id=$3 AND ticket_id=$4 AND metric=$5 AND NOT met AND NOT breached`
	cmd, err := r.pool.Exec(ctx, query, at, elapsedMs, tenantID, ticketID, metric)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *clockRepository) ListOpen(ctx context.Context, cursor string, limit int) (*ClockPage, error) {
	if limit <= 0 {
		limit = 200
	}
	cursorTicket, cursorMetric := splitClockCursor(cursor)
	query := `SELECT ` + clockColumns + `
        FROM sla_clocks
        WHERE NOT met AND NOT breached AND (ticket_id::text, metric) > ($1, $2)
        ORDER BY ticket_id::text, metric
        LIMIT $3`
	rows, err := r.pool.Query(ctx, query, cursorTicket, cursorMetric, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	clocks, err := scanClocks(rows)
	if err != nil {
		return nil, err
	}
	page := &ClockPage{Clocks: clocks}
	if len(clocks) == limit {
		last := clocks[len(clocks)-1]
		page.NextCursor = joinClockCursor(last.TicketID, last.Metric)
	}
	return page, nil
}

func (r *clockRepository) ListComplianceRecords(ctx context.Context, tenantID string, start, end time.Time) ([]domain.ComplianceRecord, error) {
	const query = `
        SELECT c.ticket_id, c.metric, c.met, c.breached, c.elapsed_ms, c.budget_ms,
               t.created_at, t.resolved_at, t.agent_id, t.agent_name, t.agent_email,
               t.customer_id, t.customer_name
        FROM sla_clocks c
        JOIN tickets t ON t.id = c.ticket_id
        WHERE c.tenant_id = $1
          AND (c.met OR c.breached)
          AND (
                (c.metric = 'first_response' AND t.created_at >= $2 AND t.created_at <= $3)
             OR (c.metric = 'resolution' AND COALESCE(t.resolved_at, t.created_at) >= $2 AND COALESCE(t.resolved_at, t.created_at) <= $3)
          )`
	rows, err := r.pool.Query(ctx, query, tenantID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ComplianceRecord
	for rows.Next() {
		var rec domain.ComplianceRecord
		if err := rows.Scan(
			&rec.TicketID,
			&rec.Metric,
			&rec.Met,
			&rec.Breached,
			&rec.ElapsedMs,
			&rec.BudgetMs,
			&rec.TicketCreatedAt,
			&rec.ResolvedAt,
			&rec.AgentID,
			&rec.AgentName,
			&rec.AgentEmail,
			&rec.CustomerID,
			&rec.CustomerName,
		); err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

func scanClock(row pgx.Row) (*domain.SLAClockState, error) {
	var clock domain.SLAClockState
	if err := row.Scan(
		&clock.TicketID,
		&clock.TenantID,
		&clock.Metric,
		&clock.PolicyID,
		&clock.CalendarID,
		&clock.BudgetMs,
		&clock.DeadlineAt,
		&clock.ElapsedMs,
		&clock.LastResumeAt,
		&clock.Met,
		&clock.Breached,
		&clock.BreachedAt,
		&clock.CreatedAt,
		&clock.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &clock, nil
}

func scanClocks(rows pgx.Rows) ([]domain.SLAClockState, error) {
	var result []domain.SLAClockState
	for rows.Next() {
		clock, err := scanClock(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *clock)
	}
	return result, rows.Err()
}

func splitClockCursor(cursor string) (string, string) {
	if cursor == "" {
		return "", ""
	}
	parts := strings.SplitN(cursor, "|", 2)
	if len(parts) != 2 {
		return cursor, ""
	}
	return parts[0], parts[1]
}

func joinClockCursor(ticketID string, metric domain.SLAMetric) string {
	return ticketID + "|" + string(metric)
}
