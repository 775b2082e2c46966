package handlers

import (
	"bytes"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/petcare-queue/internal/analytics"
	"github.com/spec-kit/petcare-queue/internal/api/dto"
	"github.com/spec-kit/petcare-queue/internal/auth"
	"github.com/spec-kit/petcare-queue/internal/domain"
	"github.com/spec-kit/petcare-queue/internal/service"
	"github.com/spec-kit/petcare-queue/pkg/util"
)

// AnalyticsHandler serves administrator reports.
type AnalyticsHandler struct {
	reports Reporter
	now     func() time.Time
}

// NewAnalyticsHandler constructs handler.
func NewAnalyticsHandler(reports Reporter) *AnalyticsHandler {
	return &AnalyticsHandler{reports: reports, now: time.Now}
}

// Report GET /staff/analytics?granularity=&date=&line=.
func (h *AnalyticsHandler) Report(c *fiber.Ctx) error {
	report, err := h.build(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAnalyticsResponse(report)})
}

// Export GET /staff/analytics/export renders the same report as CSV.
func (h *AnalyticsHandler) Export(c *fiber.Ctx) error {
	report, err := h.build(c)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := analytics.WriteCSV(&buf, report.Buckets); err != nil {
		return util.NewInternalError(err)
	}
	name := fmt.Sprintf("tickets-%s-%s.csv", report.Granularity, report.Reference.Format(domain.DateLayout))
	c.Set(fiber.HeaderContentType, "text/csv")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Send(buf.Bytes())
}

func (h *AnalyticsHandler) build(c *fiber.Ctx) (*service.Report, error) {
	g := analytics.DayOfWeek
	if raw := c.Query("granularity"); raw != "" {
		parsed, err := analytics.ParseGranularity(raw)
		if err != nil {
			return nil, util.NewValidationError(err.Error(), map[string]any{"field": "granularity"})
		}
		g = parsed
	}

	ref := domain.DateOf(h.now())
	if raw := c.Query("date"); raw != "" {
		parsed, err := parseDate(raw, "date")
		if err != nil {
			return nil, err
		}
		ref = parsed
	}

	var line *domain.ServiceLine
	if raw := c.Query("line"); raw != "" {
		parsed, err := parseLine(raw, "line")
		if err != nil {
			return nil, err
		}
		line = &parsed
	}
	return h.reports.Report(c.UserContext(), auth.ActorFromContext(c), g, ref, line)
}
