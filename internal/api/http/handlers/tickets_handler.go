package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/spec-kit/petcare-queue/internal/api/dto"
	"github.com/spec-kit/petcare-queue/internal/auth"
	"github.com/spec-kit/petcare-queue/internal/domain"
	"github.com/spec-kit/petcare-queue/internal/queue"
	"github.com/spec-kit/petcare-queue/internal/service"
	"github.com/spec-kit/petcare-queue/pkg/util"
)

const (
	defaultHeartbeat = 15 * time.Second
	qrSize           = 256
)

// TicketsHandler serves the customer-facing ticket endpoints.
type TicketsHandler struct {
	tickets   TicketService
	tracker   PositionTracker
	publicURL string
	// base bounds every position stream; cancelling it ends them all.
	base      context.Context
	heartbeat time.Duration
}

// NewTicketsHandler constructs the handler. Streams end when base is done.
func NewTicketsHandler(base context.Context, tickets TicketService, tracker PositionTracker, publicURL string) *TicketsHandler {
	return &TicketsHandler{
		tickets:   tickets,
		tracker:   tracker,
		publicURL: strings.TrimRight(publicURL, "/"),
		base:      base,
		heartbeat: defaultHeartbeat,
	}
}

// CreateTicket POST /tickets and POST /staff/tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	line, err := parseLine(req.ServiceLine, "service_line")
	if err != nil {
		return err
	}
	date, err := parseDate(req.ScheduledDate, "scheduled_date")
	if err != nil {
		return err
	}
	input := service.CreateTicketInput{
		CustomerName:  req.CustomerName,
		Phone:         req.Phone,
		ServiceLine:   line,
		ScheduledDate: date,
		ScheduledTime: req.ScheduledTime,
		Note:          req.Note,
	}
	if req.InitialStatus != "" {
		if input.InitialStatus, err = parseStatus(req.InitialStatus); err != nil {
			return err
		}
	}

	actor := auth.ActorFromContext(c)
	ticket, err := h.tickets.Create(c.UserContext(), actor, input)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(ticket, actor.IsStaff())})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.tickets.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket, auth.ActorFromContext(c).IsStaff())})
}

// GetPosition GET /tickets/:id/position.
func (h *TicketsHandler) GetPosition(c *fiber.Ctx) error {
	pos, err := h.tickets.Position(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewPositionResponse(pos)})
}

// StreamPosition GET /tickets/:id/position/stream. Emits a "position"
// server-sent event on every change until the ticket leaves the live
// states or the client goes away.
func (h *TicketsHandler) StreamPosition(c *fiber.Ctx) error {
	ticketID := c.Params("id")
	if _, err := h.tickets.Get(c.UserContext(), ticketID); err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	ctx, cancel := context.WithCancel(h.base)
	positions := h.tracker.Track(ctx, ticketID)
	heartbeat := h.heartbeat

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()
		for {
			select {
			case pos, ok := <-positions:
				if !ok {
					return
				}
				if err := writeEvent(w, "position", dto.NewPositionResponse(pos)); err != nil {
					return
				}
				if settled(pos) {
					return
				}
			case <-ticker.C:
				// a failed flush means the client disconnected
				if _, err := w.WriteString(": keep-alive\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	})
	return nil
}

// TicketQRCode GET /tickets/:id/qr renders the tracking link as a PNG.
func (h *TicketsHandler) TicketQRCode(c *fiber.Ctx) error {
	ticket, err := h.tickets.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	png, err := qrcode.Encode(h.trackingURL(ticket.ID), qrcode.Medium, qrSize)
	if err != nil {
		return util.NewInternalError(fmt.Errorf("encode qr: %w", err))
	}
	c.Set(fiber.HeaderContentType, "image/png")
	c.Set(fiber.HeaderCacheControl, "public, max-age=86400")
	return c.Send(png)
}

func (h *TicketsHandler) trackingURL(ticketID string) string {
	return h.publicURL + "/tickets/" + ticketID + "/position"
}

// settled reports whether no further position change can follow.
func settled(p queue.Position) bool {
	return !p.Found || p.Cancelled || p.Status == domain.StatusCompleted
}

func writeEvent(w *bufio.Writer, event string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, body); err != nil {
		return err
	}
	return w.Flush()
}
