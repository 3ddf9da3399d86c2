package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/repository"
	apperrors "github.com/spec-kit/sla-engine/pkg/util"
)

type complianceFixture struct {
	svc     *ComplianceService
	tickets *repository.MemoryTicketRepository
	clocks  *repository.MemoryClockRepository
}

func newComplianceFixture(t *testing.T) *complianceFixture {
	t.Helper()
	tickets := repository.NewMemoryTicketRepository()
	clocks := repository.NewMemoryClockRepository(tickets)
	return &complianceFixture{
		svc:     NewComplianceService(clocks, 366, zap.NewNop()),
		tickets: tickets,
		clocks:  clocks,
	}
}

func (f *complianceFixture) seedTicket(t *testing.T, id, agentID, customerID string, createdAt time.Time) {
	t.Helper()
	ticket := &domain.Ticket{
		ID:           id,
		TenantID:     "tenant-1",
		CustomerID:   customerID,
		CustomerName: "Customer " + customerID,
		Subject:      "subject",
		Priority:     domain.TicketPriorityMedium,
		Status:       domain.TicketStatusResolved,
		CreatedAt:    createdAt,
	}
	if agentID != "" {
		name := "Agent " + agentID
		ticket.AgentID = &agentID
		ticket.AgentName = &name
	}
	require.NoError(t, f.tickets.Create(context.Background(), ticket))
}

func (f *complianceFixture) seedOutcome(t *testing.T, ticketID string, metric domain.SLAMetric, met bool, elapsed time.Duration) {
	t.Helper()
	clock := domain.SLAClockState{
		TicketID:  ticketID,
		TenantID:  "tenant-1",
		Metric:    metric,
		BudgetMs:  (4 * time.Hour).Milliseconds(),
		ElapsedMs: elapsed.Milliseconds(),
		Met:       met,
		Breached:  !met,
	}
	require.NoError(t, f.clocks.CreateBatch(context.Background(), []domain.SLAClockState{clock}))
}

func window() (time.Time, time.Time) {
	return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 31, 23, 59, 59, 0, time.UTC)
}

func TestComplianceRates(t *testing.T) {
	f := newComplianceFixture(t)
	day := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"t1", "t2", "t3", "t4"} {
		f.seedTicket(t, id, "agent-1", "cust-1", day.Add(time.Duration(i)*time.Hour))
		f.seedOutcome(t, id, domain.MetricFirstResponse, id != "t4", time.Hour)
	}

	start, end := window()
	snapshot, err := f.svc.Compliance(context.Background(), "tenant-1", start, end)
	require.NoError(t, err)

	assert.Equal(t, 4, snapshot.TotalTickets)
	assert.Equal(t, 3, snapshot.FirstResponse.Met)
	assert.Equal(t, 1, snapshot.FirstResponse.Breached)
	assert.InDelta(t, 75, snapshot.FirstResponse.ComplianceRate, 0.01)
	assert.InDelta(t, 1, snapshot.FirstResponse.AverageTimeHours, 0.01)
	// No resolution outcomes in the window reports 100 by convention.
	assert.InDelta(t, 100, snapshot.Resolution.ComplianceRate, 0.01)
	assert.Zero(t, snapshot.Resolution.Met)
}

func TestComplianceWindowValidation(t *testing.T) {
	f := newComplianceFixture(t)
	ctx := context.Background()
	start, end := window()

	_, err := f.svc.Compliance(ctx, "tenant-1", end, start)
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "AGGREGATION_WINDOW_INVALID", domainErr.Code)
	assert.Equal(t, 400, domainErr.HTTPStatus)

	_, err = f.svc.Compliance(ctx, "tenant-1", start, start.AddDate(2, 0, 0))
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "AGGREGATION_WINDOW_INVALID", domainErr.Code)

	_, err = f.svc.Compliance(ctx, "tenant-1", time.Time{}, end)
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "AGGREGATION_WINDOW_INVALID", domainErr.Code)
}

func TestTrendsBucketsByDay(t *testing.T) {
	f := newComplianceFixture(t)
	f.seedTicket(t, "t1", "", "cust-1", time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	f.seedOutcome(t, "t1", domain.MetricFirstResponse, true, time.Hour)
	f.seedTicket(t, "t2", "", "cust-1", time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC))
	f.seedOutcome(t, "t2", domain.MetricFirstResponse, false, 6*time.Hour)

	start, end := window()
	trends, err := f.svc.Trends(context.Background(), "tenant-1", start, end, IntervalDay)
	require.NoError(t, err)

	require.Len(t, trends, 2)
	assert.Equal(t, "2026-03-10", trends[0].Period)
	assert.Equal(t, 1, trends[0].FirstResponse.Met)
	assert.Equal(t, "2026-03-12", trends[1].Period)
	assert.Equal(t, 1, trends[1].FirstResponse.Breached)
}

func TestTrendsRejectsUnknownInterval(t *testing.T) {
	f := newComplianceFixture(t)
	start, end := window()
	_, err := f.svc.Trends(context.Background(), "tenant-1", start, end, "month")
	assert.Error(t, err)
}

func TestByAgentSkipsUnassigned(t *testing.T) {
	f := newComplianceFixture(t)
	day := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	f.seedTicket(t, "t1", "agent-1", "cust-1", day)
	f.seedOutcome(t, "t1", domain.MetricFirstResponse, true, time.Hour)
	f.seedOutcome(t, "t1", domain.MetricResolution, false, 10*time.Hour)
	f.seedTicket(t, "t2", "", "cust-1", day)
	f.seedOutcome(t, "t2", domain.MetricFirstResponse, true, time.Hour)

	start, end := window()
	agents, err := f.svc.ByAgent(context.Background(), "tenant-1", start, end)
	require.NoError(t, err)

	require.Len(t, agents, 1)
	assert.Equal(t, "agent-1", agents[0].AgentID)
	assert.Equal(t, 1, agents[0].TotalTickets)
	assert.InDelta(t, 100, agents[0].FirstResponse.ComplianceRate, 0.01)
	assert.Equal(t, 1, agents[0].Resolution.Breaches)
	assert.InDelta(t, 0, agents[0].Resolution.ComplianceRate, 0.01)
}

func TestByCustomerAveragesAndLimit(t *testing.T) {
	f := newComplianceFixture(t)
	day := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	f.seedTicket(t, "t1", "agent-1", "cust-1", day)
	f.seedOutcome(t, "t1", domain.MetricResolution, true, 2*time.Hour)
	f.seedTicket(t, "t2", "agent-1", "cust-1", day)
	f.seedOutcome(t, "t2", domain.MetricResolution, false, 6*time.Hour)
	f.seedTicket(t, "t3", "agent-1", "cust-2", day)
	f.seedOutcome(t, "t3", domain.MetricResolution, true, time.Hour)

	start, end := window()
	customers, err := f.svc.ByCustomer(context.Background(), "tenant-1", start, end, 10)
	require.NoError(t, err)
	require.Len(t, customers, 2)

	// Highest ticket volume first.
	assert.Equal(t, "cust-1", customers[0].CustomerID)
	assert.Equal(t, 2, customers[0].TotalTickets)
	assert.InDelta(t, 4, customers[0].AvgResolutionHours, 0.01)
	assert.Equal(t, 1, customers[0].ResolutionBreaches)
	assert.InDelta(t, 50, customers[0].ResolutionComplianceRate, 0.01)

	limited, err := f.svc.ByCustomer(context.Background(), "tenant-1", start, end, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
