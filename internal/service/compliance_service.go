package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/repository"
	apperrors "github.com/spec-kit/sla-engine/pkg/util"
)

// TrendInterval buckets trend series by day or ISO week.
type TrendInterval string

const (
	IntervalDay  TrendInterval = "day"
	IntervalWeek TrendInterval = "week"
)

// ComplianceService is the read side: pure aggregation over terminal clock
// states. It never mutates engine state.
type ComplianceService struct {
	clocks  repository.ClockRepository
	maxDays int
	logger  *zap.Logger
}

// NewComplianceService constructs the service. maxDays caps the aggregation
// window; zero disables the cap.
func NewComplianceService(clocks repository.ClockRepository, maxDays int, logger *zap.Logger) *ComplianceService {
	return &ComplianceService{clocks: clocks, maxDays: maxDays, logger: logger}
}

// Compliance returns point-in-time statistics for a tenant window.
func (s *ComplianceService) Compliance(ctx context.Context, tenantID string, start, end time.Time) (*domain.ComplianceSnapshot, error) {
	records, err := s.windowRecords(ctx, tenantID, start, end)
	if err != nil {
		return nil, err
	}
	snapshot := aggregate(records)
	return &snapshot, nil
}

// Trends returns bucketed compliance series over the window.
func (s *ComplianceService) Trends(ctx context.Context, tenantID string, start, end time.Time, interval TrendInterval) ([]domain.ComplianceSnapshot, error) {
	if interval != IntervalDay && interval != IntervalWeek {
		return nil, apperrors.NewValidationError("interval must be day or week", nil)
	}
	records, err := s.windowRecords(ctx, tenantID, start, end)
	if err != nil {
		return nil, err
	}

	buckets := map[string][]domain.ComplianceRecord{}
	for _, rec := range records {
		key := bucketKey(rec.BucketTime(), interval)
		buckets[key] = append(buckets[key], rec)
	}

	periods := make([]string, 0, len(buckets))
	for period := range buckets {
		periods = append(periods, period)
	}
	sort.Strings(periods)

	trends := make([]domain.ComplianceSnapshot, 0, len(periods))
	for _, period := range periods {
		snapshot := aggregate(buckets[period])
		snapshot.Period = period
		trends = append(trends, snapshot)
	}
	return trends, nil
}

// ByAgent returns per-agent performance within the window. Records with no
// assigned agent are skipped.
func (s *ComplianceService) ByAgent(ctx context.Context, tenantID string, start, end time.Time) ([]domain.AgentPerformance, error) {
	records, err := s.windowRecords(ctx, tenantID, start, end)
	if err != nil {
		return nil, err
	}

	type agentAccum struct {
		perf    domain.AgentPerformance
		tickets map[string]bool
		frMet   int
		resMet  int
	}
	accums := map[string]*agentAccum{}
	for _, rec := range records {
		if rec.AgentID == nil {
			continue
		}
		accum, ok := accums[*rec.AgentID]
		if !ok {
			accum = &agentAccum{
				perf:    domain.AgentPerformance{AgentID: *rec.AgentID},
				tickets: map[string]bool{},
			}
			if rec.AgentName != nil {
				accum.perf.AgentName = *rec.AgentName
			}
			if rec.AgentEmail != nil {
				accum.perf.AgentEmail = *rec.AgentEmail
			}
			accums[*rec.AgentID] = accum
		}
		accum.tickets[rec.TicketID] = true
		switch rec.Metric {
		case domain.MetricFirstResponse:
			if rec.Breached {
				accum.perf.FirstResponse.Breaches++
			} else {
				accum.frMet++
			}
		case domain.MetricResolution:
			if rec.Breached {
				accum.perf.Resolution.Breaches++
			} else {
				accum.resMet++
			}
		}
	}

	result := make([]domain.AgentPerformance, 0, len(accums))
	for _, accum := range accums {
		accum.perf.TotalTickets = len(accum.tickets)
		accum.perf.FirstResponse.ComplianceRate = domain.ComplianceRate(accum.frMet, accum.perf.FirstResponse.Breaches)
		accum.perf.Resolution.ComplianceRate = domain.ComplianceRate(accum.resMet, accum.perf.Resolution.Breaches)
		result = append(result, accum.perf)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].TotalTickets > result[j].TotalTickets
	})
	return result, nil
}

// ByCustomer returns per-customer performance, worst offenders first by
// ticket volume, capped at limit.
func (s *ComplianceService) ByCustomer(ctx context.Context, tenantID string, start, end time.Time, limit int) ([]domain.CustomerPerformance, error) {
	records, err := s.windowRecords(ctx, tenantID, start, end)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	type customerAccum struct {
		perf       domain.CustomerPerformance
		tickets    map[string]bool
		frMet      int
		resMet     int
		frHoursSum float64
		frSamples  int
		resHours   float64
		resSamples int
	}
	accums := map[string]*customerAccum{}
	for _, rec := range records {
		accum, ok := accums[rec.CustomerID]
		if !ok {
			accum = &customerAccum{
				perf: domain.CustomerPerformance{
					CustomerID:   rec.CustomerID,
					CustomerName: rec.CustomerName,
				},
				tickets: map[string]bool{},
			}
			accums[rec.CustomerID] = accum
		}
		accum.tickets[rec.TicketID] = true
		hours := float64(rec.ElapsedMs) / float64(time.Hour.Milliseconds())
		switch rec.Metric {
		case domain.MetricFirstResponse:
			accum.frHoursSum += hours
			accum.frSamples++
			if rec.Breached {
				accum.perf.FirstResponseBreaches++
			} else {
				accum.frMet++
			}
		case domain.MetricResolution:
			accum.resHours += hours
			accum.resSamples++
			if rec.Breached {
				accum.perf.ResolutionBreaches++
			} else {
				accum.resMet++
			}
		}
	}

	result := make([]domain.CustomerPerformance, 0, len(accums))
	for _, accum := range accums {
		accum.perf.TotalTickets = len(accum.tickets)
		if accum.frSamples > 0 {
			accum.perf.AvgFirstResponseHours = accum.frHoursSum / float64(accum.frSamples)
		}
		if accum.resSamples > 0 {
			accum.perf.AvgResolutionHours = accum.resHours / float64(accum.resSamples)
		}
		accum.perf.FirstResponseComplianceRate = domain.ComplianceRate(accum.frMet, accum.perf.FirstResponseBreaches)
		accum.perf.ResolutionComplianceRate = domain.ComplianceRate(accum.resMet, accum.perf.ResolutionBreaches)
		result = append(result, accum.perf)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].TotalTickets > result[j].TotalTickets
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *ComplianceService) windowRecords(ctx context.Context, tenantID string, start, end time.Time) ([]domain.ComplianceRecord, error) {
	if err := s.validateWindow(start, end); err != nil {
		return nil, err
	}
	return s.clocks.ListComplianceRecords(ctx, tenantID, start, end)
}

func (s *ComplianceService) validateWindow(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return apperrors.NewAggregationWindowInvalid("start_date and end_date required")
	}
	if start.After(end) {
		return apperrors.NewAggregationWindowInvalid("start_date after end_date")
	}
	if s.maxDays > 0 && end.Sub(start) > time.Duration(s.maxDays)*24*time.Hour {
		return apperrors.NewAggregationWindowInvalid("window exceeds configured maximum")
	}
	return nil
}

func aggregate(records []domain.ComplianceRecord) domain.ComplianceSnapshot {
	var snapshot domain.ComplianceSnapshot
	tickets := map[string]bool{}
	var frHours, resHours float64
	var frSamples, resSamples int

	for _, rec := range records {
		tickets[rec.TicketID] = true
		hours := float64(rec.ElapsedMs) / float64(time.Hour.Milliseconds())
		switch rec.Metric {
		case domain.MetricFirstResponse:
			frHours += hours
			frSamples++
			if rec.Breached {
				snapshot.FirstResponse.Breached++
			} else {
				snapshot.FirstResponse.Met++
			}
		case domain.MetricResolution:
			resHours += hours
			resSamples++
			if rec.Breached {
				snapshot.Resolution.Breached++
			} else {
				snapshot.Resolution.Met++
			}
		}
	}

	snapshot.TotalTickets = len(tickets)
	snapshot.FirstResponse.ComplianceRate = domain.ComplianceRate(snapshot.FirstResponse.Met, snapshot.FirstResponse.Breached)
	snapshot.Resolution.ComplianceRate = domain.ComplianceRate(snapshot.Resolution.Met, snapshot.Resolution.Breached)
	if frSamples > 0 {
		snapshot.FirstResponse.AverageTimeHours = frHours / float64(frSamples)
	}
	if resSamples > 0 {
		snapshot.Resolution.AverageTimeHours = resHours / float64(resSamples)
	}
	return snapshot
}

func bucketKey(t time.Time, interval TrendInterval) string {
	if interval == IntervalWeek {
		year, week := t.ISOWeek()
		return weekKey(year, week)
	}
	return t.Format("2006-01-02")
}

func weekKey(year, week int) string {
	return fmt.Sprintf("%d-W%02d", year, week)
}
