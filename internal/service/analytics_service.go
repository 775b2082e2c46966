package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/spec-kit/petcare-queue/internal/analytics"
	"github.com/spec-kit/petcare-queue/internal/domain"
	"github.com/spec-kit/petcare-queue/internal/repository"
	"github.com/spec-kit/petcare-queue/pkg/util"
)

// Report is one folded analytics period.
type Report struct {
	Granularity analytics.Granularity
	Reference   time.Time
	Line        *domain.ServiceLine
	From        time.Time
	To          time.Time
	Buckets     []analytics.TimeBucket
	Totals      analytics.Totals
}

// AnalyticsService builds reports from the raw ticket set.
type AnalyticsService struct {
	tickets  repository.TicketRepository
	calendar analytics.Calendar
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewAnalyticsService constructs the service.
func NewAnalyticsService(tickets repository.TicketRepository, calendar analytics.Calendar, logger *zap.Logger) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{tickets: tickets, calendar: calendar, logger: logger, tracer: otel.Tracer(tracerName)}
}

// Report folds the tickets scheduled in the period containing ref.
// Administrators only.
func (s *AnalyticsService) Report(ctx context.Context, actor domain.Actor, g analytics.Granularity, ref time.Time, line *domain.ServiceLine) (*Report, error) {
	ctx, span := s.tracer.Start(ctx, "AnalyticsService.Report", trace.WithAttributes(
		attribute.String("analytics.granularity", string(g)),
		attribute.String("analytics.reference", ref.Format(domain.DateLayout)),
	))
	defer span.End()

	if actor.Role != domain.RoleAdmin {
		return nil, util.NewUnauthorized("analytics requires admin", map[string]any{"role": actor.Role})
	}

	from, to := s.calendar.Period(g, ref)
	raw, err := s.tickets.ListScheduledBetween(ctx, from, to, line)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load tickets")
		return nil, util.NewPersistenceFailure(err, map[string]any{"granularity": g})
	}

	buckets := analytics.Fold(g, raw, s.calendar.Buckets(g, ref))
	report := &Report{
		Granularity: g,
		Reference:   domain.DateOf(ref),
		Line:        line,
		From:        from,
		To:          to,
		Buckets:     buckets,
		Totals:      analytics.Summarize(buckets),
	}
	span.SetAttributes(attribute.Int("analytics.tickets", len(raw)))
	s.logger.Debug("analytics report built",
		zap.String("granularity", string(g)),
		zap.Time("from", from),
		zap.Time("to", to),
		zap.Int("tickets", len(raw)))
	return report, nil
}
