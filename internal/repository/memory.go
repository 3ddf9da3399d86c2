package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// In-memory repository implementations. They back the engine when no
// Postgres DSN is configured and carry the same compare-and-set semantics as
// the SQL implementations, which is what the exactly-once tests exercise.

// MemoryPolicyRepository is a map-backed PolicyRepository.
type MemoryPolicyRepository struct {
	mu       sync.RWMutex
	policies map[string]domain.SLAPolicy
}

// NewMemoryPolicyRepository constructs the repository.
func NewMemoryPolicyRepository() *MemoryPolicyRepository {
	return &MemoryPolicyRepository{policies: map[string]domain.SLAPolicy{}}
}

func (r *MemoryPolicyRepository) Create(ctx context.Context, policy *domain.SLAPolicy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if policy.ID == "" {
		policy.ID = uuid.NewString()
	}
	if policy.CreatedAt.IsZero() {
		policy.CreatedAt = time.Now()
	}
	r.policies[policy.ID] = *policy
	return nil
}

func (r *MemoryPolicyRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.SLAPolicy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	policy, ok := r.policies[id]
	if !ok || policy.TenantID != tenantID {
		return nil, pgx.ErrNoRows
	}
	return &policy, nil
}

func (r *MemoryPolicyRepository) ListActive(ctx context.Context, tenantID string) ([]domain.SLAPolicy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.SLAPolicy
	for _, policy := range r.policies {
		if policy.TenantID == tenantID && policy.Active {
			result = append(result, policy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].Version > result[j].Version
	})
	return result, nil
}

func (r *MemoryPolicyRepository) Deactivate(ctx context.Context, tenantID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	policy, ok := r.policies[id]
	if !ok || policy.TenantID != tenantID {
		return pgx.ErrNoRows
	}
	policy.Active = false
	r.policies[id] = policy
	return nil
}

// MemoryTicketRepository is a map-backed TicketRepository.
type MemoryTicketRepository struct {
	mu      sync.RWMutex
	tickets map[string]domain.Ticket
}

// NewMemoryTicketRepository constructs the repository.
func NewMemoryTicketRepository() *MemoryTicketRepository {
	return &MemoryTicketRepository{tickets: map[string]domain.Ticket{}}
}

func (r *MemoryTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	now := time.Now()
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = now
	}
	ticket.UpdatedAt = now
	r.tickets[ticket.ID] = *ticket
	return nil
}

func (r *MemoryTicketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.tickets[ticket.ID]
	if !ok || existing.TenantID != ticket.TenantID {
		return pgx.ErrNoRows
	}
	ticket.UpdatedAt = time.Now()
	r.tickets[ticket.ID] = *ticket
	return nil
}

func (r *MemoryTicketRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ticket, ok := r.tickets[id]
	if !ok || ticket.TenantID != tenantID {
		return nil, pgx.ErrNoRows
	}
	return &ticket, nil
}

// MemoryClockRepository is a map-backed ClockRepository with the same CAS
// guarantees as the SQL implementation.
type MemoryClockRepository struct {
	mu     sync.Mutex
	clocks map[string]domain.SLAClockState
	// tickets lets ListComplianceRecords join ticket fields without a
	// second repository dependency.
	tickets *MemoryTicketRepository
}

// NewMemoryClockRepository constructs the repository; tickets may be nil when
// compliance reads are not needed.
func NewMemoryClockRepository(tickets *MemoryTicketRepository) *MemoryClockRepository {
	return &MemoryClockRepository{clocks: map[string]domain.SLAClockState{}, tickets: tickets}
}

func clockKey(ticketID string, metric domain.SLAMetric) string {
	return ticketID + "|" + string(metric)
}

func (r *MemoryClockRepository) CreateBatch(ctx context.Context, clocks []domain.SLAClockState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for i := range clocks {
		clock := clocks[i]
		if clock.CreatedAt.IsZero() {
			clock.CreatedAt = now
		}
		clock.UpdatedAt = now
		r.clocks[clockKey(clock.TicketID, clock.Metric)] = clock
	}
	return nil
}

func (r *MemoryClockRepository) Get(ctx context.Context, tenantID, ticketID string, metric domain.SLAMetric) (*domain.SLAClockState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clock, ok := r.clocks[clockKey(ticketID, metric)]
	if !ok || clock.TenantID != tenantID {
		return nil, pgx.ErrNoRows
	}
	return &clock, nil
}

func (r *MemoryClockRepository) ListByTicket(ctx context.Context, tenantID, ticketID string) ([]domain.SLAClockState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.SLAClockState
	for _, metric := range domain.Metrics {
		if clock, ok := r.clocks[clockKey(ticketID, metric)]; ok && clock.TenantID == tenantID {
			result = append(result, clock)
		}
	}
	return result, nil
}

func (r *MemoryClockRepository) UpdateProgress(ctx context.Context, clock *domain.SLAClockState) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := clockKey(clock.TicketID, clock.Metric)
	existing, ok := r.clocks[key]
	if !ok || existing.TenantID != clock.TenantID || existing.Terminal() {
		return false, nil
	}
	existing.ElapsedMs = clock.ElapsedMs
	existing.LastResumeAt = clock.LastResumeAt
	existing.BudgetMs = clock.BudgetMs
	existing.DeadlineAt = clock.DeadlineAt
	existing.UpdatedAt = time.Now()
	r.clocks[key] = existing
	return true, nil
}

func (r *MemoryClockRepository) MarkMet(ctx context.Context, tenantID, ticketID string, metric domain.SLAMetric, elapsedMs int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := clockKey(ticketID, metric)
	existing, ok := r.clocks[key]
	if !ok || existing.TenantID != tenantID || existing.Terminal() {
		return false, nil
	}
	existing.Met = true
	existing.ElapsedMs = elapsedMs
	existing.LastResumeAt = nil
	existing.UpdatedAt = time.Now()
	r.clocks[key] = existing
	return true, nil
}

func (r *MemoryClockRepository) MarkBreached(ctx context.Context, tenantID, ticketID string, metric domain.SLAMetric, elapsedMs int64, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := clockKey(ticketID, metric)
	existing, ok := r.clocks[key]
	if !ok || existing.TenantID != tenantID || existing.Terminal() {
		return false, nil
	}
	existing.Breached = true
	existing.BreachedAt = &at
	existing.ElapsedMs = elapsedMs
	existing.LastResumeAt = nil
	existing.UpdatedAt = time.Now()
	r.clocks[key] = existing
	return true, nil
}

func (r *MemoryClockRepository) ListOpen(ctx context.Context, cursor string, limit int) (*ClockPage, error) {
	if limit <= 0 {
		limit = 200
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]string, 0, len(r.clocks))
	for key, clock := range r.clocks {
		if !clock.Terminal() && key > cursor {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	page := &ClockPage{}
	for _, key := range keys {
		if len(page.Clocks) == limit {
			last := page.Clocks[len(page.Clocks)-1]
			page.NextCursor = clockKey(last.TicketID, last.Metric)
			break
		}
		page.Clocks = append(page.Clocks, r.clocks[key])
	}
	return page, nil
}

func (r *MemoryClockRepository) ListComplianceRecords(ctx context.Context, tenantID string, start, end time.Time) ([]domain.ComplianceRecord, error) {
	r.mu.Lock()
	clocks := make([]domain.SLAClockState, 0, len(r.clocks))
	for _, clock := range r.clocks {
		if clock.TenantID == tenantID && clock.Terminal() {
			clocks = append(clocks, clock)
		}
	}
	r.mu.Unlock()

	var result []domain.ComplianceRecord
	for _, clock := range clocks {
		rec := domain.ComplianceRecord{
			TicketID:  clock.TicketID,
			Metric:    clock.Metric,
			Met:       clock.Met,
			Breached:  clock.Breached,
			ElapsedMs: clock.ElapsedMs,
			BudgetMs:  clock.BudgetMs,
		}
		if r.tickets != nil {
			ticket, err := r.tickets.GetByID(ctx, tenantID, clock.TicketID)
			if err == nil {
				rec.TicketCreatedAt = ticket.CreatedAt
				rec.ResolvedAt = ticket.ResolvedAt
				rec.AgentID = ticket.AgentID
				rec.AgentName = ticket.AgentName
				rec.AgentEmail = ticket.AgentEmail
				rec.CustomerID = ticket.CustomerID
				rec.CustomerName = ticket.CustomerName
			}
		}
		bucket := rec.BucketTime()
		if bucket.Before(start) || bucket.After(end) {
			continue
		}
		result = append(result, rec)
	}
	return result, nil
}

// MemoryNPARepository is a map-backed NPARepository.
type MemoryNPARepository struct {
	mu      sync.Mutex
	entries map[string]domain.NPAEntry
}

// NewMemoryNPARepository constructs the repository.
func NewMemoryNPARepository() *MemoryNPARepository {
	return &MemoryNPARepository{entries: map[string]domain.NPAEntry{}}
}

func (r *MemoryNPARepository) Create(ctx context.Context, entry *domain.NPAEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	r.entries[entry.ID] = *entry
	return nil
}

func (r *MemoryNPARepository) GetByID(ctx context.Context, tenantID, id string) (*domain.NPAEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[id]
	if !ok || entry.TenantID != tenantID {
		return nil, pgx.ErrNoRows
	}
	return &entry, nil
}

func (r *MemoryNPARepository) GetCurrent(ctx context.Context, tenantID, ticketID string) (*domain.NPAEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range r.entries {
		if entry.TenantID == tenantID && entry.TicketID == ticketID && entry.Current() {
			result := entry
			return &result, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *MemoryNPARepository) ListByTicket(ctx context.Context, tenantID, ticketID string) ([]domain.NPAEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.NPAEntry
	for _, entry := range r.entries {
		if entry.TenantID == tenantID && entry.TicketID == ticketID {
			result = append(result, entry)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (r *MemoryNPARepository) Close(ctx context.Context, tenantID, id string, at time.Time, notes string, state *domain.NPAState) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[id]
	if !ok || entry.TenantID != tenantID || !entry.Current() {
		return false, nil
	}
	entry.CompletedAt = &at
	entry.CompletionNotes = notes
	if state != nil {
		entry.State = *state
	}
	r.entries[id] = entry
	return true, nil
}

func (r *MemoryNPARepository) AppendText(ctx context.Context, tenantID, id, text string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[id]
	if !ok || entry.TenantID != tenantID || !entry.Current() {
		return false, nil
	}
	entry.OriginalText = strings.TrimRight(entry.OriginalText, "\n") + "\n" + text
	entry.CleanupStatus = domain.CleanupStatusQueued
	r.entries[id] = entry
	return true, nil
}

func (r *MemoryNPARepository) SetCleanup(ctx context.Context, tenantID, id string, status domain.CleanupStatus, cleaned *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[id]
	if !ok || entry.TenantID != tenantID {
		return pgx.ErrNoRows
	}
	entry.CleanupStatus = status
	if cleaned != nil {
		entry.CleanedText = cleaned
	}
	r.entries[id] = entry
	return nil
}

// MemoryAlertRepository is a map-backed AlertRepository.
type MemoryAlertRepository struct {
	mu     sync.Mutex
	alerts map[string]domain.BreachAlert
}

// NewMemoryAlertRepository constructs the repository.
func NewMemoryAlertRepository() *MemoryAlertRepository {
	return &MemoryAlertRepository{alerts: map[string]domain.BreachAlert{}}
}

func (r *MemoryAlertRepository) Upsert(ctx context.Context, alert *domain.BreachAlert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for id, existing := range r.alerts {
		if existing.TicketID == alert.TicketID && existing.BreachType == alert.BreachType && !existing.Acknowledged {
			existing.BreachPercent = alert.BreachPercent
			existing.AlertLevel = alert.AlertLevel
			existing.UpdatedAt = now
			r.alerts[id] = existing
			*alert = existing
			return nil
		}
	}
	alert.ID = uuid.NewString()
	alert.CreatedAt = now
	alert.UpdatedAt = now
	r.alerts[alert.ID] = *alert
	return nil
}

func (r *MemoryAlertRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.BreachAlert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	alert, ok := r.alerts[id]
	if !ok || alert.TenantID != tenantID {
		return nil, pgx.ErrNoRows
	}
	return &alert, nil
}

func (r *MemoryAlertRepository) List(ctx context.Context, tenantID string, acknowledged *bool, limit int) ([]domain.BreachAlert, error) {
	if limit <= 0 {
		limit = 100
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.BreachAlert
	for _, alert := range r.alerts {
		if alert.TenantID != tenantID {
			continue
		}
		if acknowledged != nil && alert.Acknowledged != *acknowledged {
			continue
		}
		result = append(result, alert)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *MemoryAlertRepository) Acknowledge(ctx context.Context, tenantID, id, by string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	alert, ok := r.alerts[id]
	if !ok || alert.TenantID != tenantID {
		return false, pgx.ErrNoRows
	}
	if alert.Acknowledged {
		return false, nil
	}
	now := time.Now()
	alert.Acknowledged = true
	alert.AcknowledgedBy = &by
	alert.AcknowledgedAt = &now
	alert.UpdatedAt = now
	r.alerts[id] = alert
	return true, nil
}
