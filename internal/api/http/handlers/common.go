package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/spec-kit/petcare-queue/internal/analytics"
	"github.com/spec-kit/petcare-queue/internal/domain"
	"github.com/spec-kit/petcare-queue/internal/queue"
	"github.com/spec-kit/petcare-queue/internal/service"
	"github.com/spec-kit/petcare-queue/pkg/util"
)

// TicketService is the ticket surface the handlers call.
type TicketService interface {
	Create(ctx context.Context, actor domain.Actor, input service.CreateTicketInput) (*domain.Ticket, error)
	Get(ctx context.Context, ticketID string) (*domain.Ticket, error)
	Position(ctx context.Context, ticketID string) (queue.Position, error)
	Transition(ctx context.Context, actor domain.Actor, ticketID string, target domain.TicketStatus, message string) (*domain.Ticket, error)
	BulkTransition(ctx context.Context, actor domain.Actor, ids []string, target domain.TicketStatus, message string) (service.BulkResult, error)
	UpdateDetails(ctx context.Context, actor domain.Actor, ticketID string, input service.DetailsInput) (*domain.Ticket, error)
	Queue(ctx context.Context, line domain.ServiceLine) (queue.Snapshot, error)
	ListActivity(ctx context.Context, limit int) ([]domain.ActivityRecord, error)
}

// PositionTracker streams live positions of one ticket.
type PositionTracker interface {
	Track(ctx context.Context, ticketID string) <-chan queue.Position
}

// Reporter builds analytics reports.
type Reporter interface {
	Report(ctx context.Context, actor domain.Actor, g analytics.Granularity, ref time.Time, line *domain.ServiceLine) (*service.Report, error)
}

// Authenticator logs staff in.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*service.LoginResult, error)
}

func parseStatus(raw string) (domain.TicketStatus, error) {
	if strings.TrimSpace(raw) == "" {
		return "", util.NewValidationError("status is required", map[string]any{"field": "status"})
	}
	status, err := domain.ParseStatus(raw)
	if err != nil {
		return "", util.NewValidationError(err.Error(), map[string]any{"field": "status"})
	}
	return status, nil
}

func parseLine(raw, field string) (domain.ServiceLine, error) {
	line, err := domain.ParseServiceLine(raw)
	if err != nil {
		return "", util.NewValidationError(err.Error(), map[string]any{"field": field})
	}
	return line, nil
}

func parseDate(raw, field string) (time.Time, error) {
	d, err := domain.ParseDate(raw)
	if err != nil {
		return time.Time{}, util.NewValidationError(err.Error(), map[string]any{"field": field})
	}
	return d, nil
}
