package handlers

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-engine/internal/auth"
	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/service"
	apperrors "github.com/spec-kit/sla-engine/pkg/util"
)

// ComplianceHandler serves the aggregation endpoints.
type ComplianceHandler struct {
	compliance *service.ComplianceService
}

// NewComplianceHandler constructs handler.
func NewComplianceHandler(compliance *service.ComplianceService) *ComplianceHandler {
	return &ComplianceHandler{compliance: compliance}
}

// Compliance GET /compliance. format=csv streams an export; pdf and
// excel are recognized but unsupported.
func (h *ComplianceHandler) Compliance(c *fiber.Ctx) error {
	return h.serveCompliance(c, c.Query("format", "json"))
}

// Export GET /export. The download variant of Compliance; csv unless the
// caller asks otherwise.
func (h *ComplianceHandler) Export(c *fiber.Ctx) error {
	return h.serveCompliance(c, c.Query("format", "csv"))
}

func (h *ComplianceHandler) serveCompliance(c *fiber.Ctx, format string) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("tenant principal required")
	}
	start, end, err := parseWindow(c)
	if err != nil {
		return err
	}

	switch format {
	case "json", "csv":
	case "pdf", "excel":
		return apperrors.NewValidationError("export format not supported", map[string]any{"format": format})
	default:
		return apperrors.NewValidationError("unknown export format", map[string]any{"format": format})
	}

	snapshot, err := h.compliance.Compliance(c.UserContext(), principal.TenantID, start, end)
	if err != nil {
		return err
	}
	if format == "csv" {
		return writeComplianceCSV(c, snapshot)
	}
	return c.JSON(fiber.Map{"data": snapshot})
}

// Trends GET /compliance/trends.
func (h *ComplianceHandler) Trends(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("tenant principal required")
	}
	start, end, err := parseWindow(c)
	if err != nil {
		return err
	}
	interval := service.TrendInterval(c.Query("interval", string(service.IntervalDay)))
	trends, err := h.compliance.Trends(c.UserContext(), principal.TenantID, start, end, interval)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": trends})
}

// ByAgent GET /performance-by-agent.
func (h *ComplianceHandler) ByAgent(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("tenant principal required")
	}
	start, end, err := parseWindow(c)
	if err != nil {
		return err
	}
	agents, err := h.compliance.ByAgent(c.UserContext(), principal.TenantID, start, end)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": agents})
}

// ByCustomer GET /customers/performance.
func (h *ComplianceHandler) ByCustomer(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("tenant principal required")
	}
	start, end, err := parseWindow(c)
	if err != nil {
		return err
	}
	limit, _ := strconv.Atoi(c.Query("limit", "10"))
	customers, err := h.compliance.ByCustomer(c.UserContext(), principal.TenantID, start, end, limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": customers})
}

// parseWindow reads start_date/end_date query params. Dates accept RFC3339
// timestamps or bare 2006-01-02 dates; a bare end date covers its whole day.
func parseWindow(c *fiber.Ctx) (time.Time, time.Time, error) {
	start, err := parseWindowTime(c.Query("start_date"), false)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := parseWindowTime(c.Query("end_date"), true)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

func parseWindowTime(val string, endOfDay bool) (time.Time, error) {
	if val == "" {
		return time.Time{}, apperrors.NewAggregationWindowInvalid("start_date and end_date required")
	}
	if t, err := time.Parse(time.RFC3339, val); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", val)
	if err != nil {
		return time.Time{}, apperrors.NewAggregationWindowInvalid("dates must be RFC3339 or YYYY-MM-DD")
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

func writeComplianceCSV(c *fiber.Ctx, snapshot *domain.ComplianceSnapshot) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"metric", "met", "breached", "compliance_rate", "average_time_hours"})
	_ = w.Write(complianceRow("first_response", snapshot.FirstResponse))
	_ = w.Write(complianceRow("resolution", snapshot.Resolution))
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, "text/csv")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="sla-compliance.csv"`)
	return c.Send(buf.Bytes())
}

func complianceRow(metric string, stats domain.MetricStats) []string {
	return []string{
		metric,
		strconv.Itoa(stats.Met),
		strconv.Itoa(stats.Breached),
		strconv.FormatFloat(stats.ComplianceRate, 'f', 2, 64),
		strconv.FormatFloat(stats.AverageTimeHours, 'f', 2, 64),
	}
}
