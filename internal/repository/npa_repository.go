package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// NPARepository encapsulates Next-Point-of-Action persistence. Entries are
// append-only; only the current (completed_at IS NULL) entry is mutable, and
// cleanup results attach by entry id so they survive supersession.
type NPARepository interface {
	Create(ctx context.Context, entry *domain.NPAEntry) error
	GetByID(ctx context.Context, tenantID, id string) (*domain.NPAEntry, error)
	GetCurrent(ctx context.Context, tenantID, ticketID string) (*domain.NPAEntry, error)
	ListByTicket(ctx context.Context, tenantID, ticketID string) ([]domain.NPAEntry, error)
	// Close stamps completed_at on a still-open entry; returns false when the
	// entry was already closed (stale client).
	Close(ctx context.Context, tenantID, id string, at time.Time, notes string, state *domain.NPAState) (bool, error)
	AppendText(ctx context.Context, tenantID, id, text string) (bool, error)
	SetCleanup(ctx context.Context, tenantID, id string, status domain.CleanupStatus, cleaned *string) error
}

type npaRepository struct {
	pool *pgxpool.Pool
}

// NewNPARepository instantiates repository.
func NewNPARepository(pool *pgxpool.Pool) NPARepository {
	return &npaRepository{pool: pool}
}

const npaColumns = `id, ticket_id, tenant_id, state, original_text, cleaned_text, cleanup_status,
       exclude_from_sla, created_at, completed_at, completion_notes`

func (r *npaRepository) Create(ctx context.Context, entry *domain.NPAEntry) error {
	const query = `
        INSERT INTO npa_entries (ticket_id, tenant_id, state, original_text, cleaned_text, cleanup_status, exclude_from_sla, completion_notes)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		entry.TicketID,
		entry.TenantID,
		entry.State,
		entry.OriginalText,
		entry.CleanedText,
		entry.CleanupStatus,
		entry.ExcludeFromSLA,
		entry.CompletionNotes,
	).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *npaRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.NPAEntry, error) {
	query := `SELECT ` + npaColumns + ` FROM npa_entries WHERE tenant_id=$1 AND id=$2`
	return scanNPAEntry(r.pool.QueryRow(ctx, query, tenantID, id))
}

func (r *npaRepository) GetCurrent(ctx context.Context, tenantID, ticketID string) (*domain.NPAEntry, error) {
	query := `SELECT ` + npaColumns + ` FROM npa_entries WHERE tenant_id=$1 AND ticket_id=$2 AND completed_at IS NULL`
	return scanNPAEntry(r.pool.QueryRow(ctx, query, tenantID, ticketID))
}

func (r *npaRepository) ListByTicket(ctx context.Context, tenantID, ticketID string) ([]domain.NPAEntry, error) {
	query := `SELECT ` + npaColumns + ` FROM npa_entries WHERE tenant_id=$1 AND ticket_id=$2 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, tenantID, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.NPAEntry
	for rows.Next() {
		entry, err := scanNPAEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *entry)
	}
	return result, rows.Err()
}

func (r *npaRepository) Close(ctx context.Context, tenantID, id string, at time.Time, notes string, state *domain.NPAState) (bool, error) {
	const query = `
        UPDATE npa_entries
        SET completed_at=$1, completion_notes=$2, state=COALESCE($3, state)
        WHERE tenant_id=$4 AND id=$5 AND completed_at IS NULL`
	cmd, err := r.pool.Exec(ctx, query, at, notes, state, tenantID, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *npaRepository) AppendText(ctx context.Context, tenantID, id, text string) (bool, error) {
	const query = `
        UPDATE npa_entries
        SET original_text = original_text || E'\n' || $1, cleanup_status='queued'
        WHERE tenant_id=$2 AND id=$3 AND completed_at IS NULL`
	cmd, err := r.pool.Exec(ctx, query, text, tenantID, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *npaRepository) SetCleanup(ctx context.Context, tenantID, id string, status domain.CleanupStatus, cleaned *string) error {
	// Intentionally no completed_at guard: cleanup results attach to
	// superseded entries too.
	const query = `
        UPDATE npa_entries SET cleanup_status=$1, cleaned_text=COALESCE($2, cleaned_text)
        WHERE tenant_id=$3 AND id=$4`
	cmd, err := r.pool.Exec(ctx, query, status, cleaned, tenantID, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanNPAEntry(row pgx.Row) (*domain.NPAEntry, error) {
	var entry domain.NPAEntry
	if err := row.Scan(
		&entry.ID,
		&entry.TicketID,
		&entry.TenantID,
		&entry.State,
		&entry.OriginalText,
		&entry.CleanedText,
		&entry.CleanupStatus,
		&entry.ExcludeFromSLA,
		&entry.CreatedAt,
		&entry.CompletedAt,
		&entry.CompletionNotes,
	); err != nil {
		return nil, err
	}
	return &entry, nil
}
