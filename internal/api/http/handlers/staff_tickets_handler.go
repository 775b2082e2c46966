package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/petcare-queue/internal/api/dto"
	"github.com/spec-kit/petcare-queue/internal/auth"
	"github.com/spec-kit/petcare-queue/internal/service"
	"github.com/spec-kit/petcare-queue/pkg/util"
)

// StaffTicketsHandler serves staff ticket operations.
type StaffTicketsHandler struct {
	tickets TicketService
}

// NewStaffTicketsHandler constructs handler.
func NewStaffTicketsHandler(tickets TicketService) *StaffTicketsHandler {
	return &StaffTicketsHandler{tickets: tickets}
}

// Transition POST /staff/tickets/:id/transition.
func (h *StaffTicketsHandler) Transition(c *fiber.Ctx) error {
	var req dto.TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	target, err := parseStatus(req.Status)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.Transition(c.UserContext(), auth.ActorFromContext(c), c.Params("id"), target, req.Message)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket, true)})
}

// BulkTransition POST /staff/tickets/bulk-transition. A partial failure
// answers 207 with the per-ticket outcome.
func (h *StaffTicketsHandler) BulkTransition(c *fiber.Ctx) error {
	var req dto.BulkTransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	target, err := parseStatus(req.Status)
	if err != nil {
		return err
	}
	result, err := h.tickets.BulkTransition(c.UserContext(), auth.ActorFromContext(c), req.IDs, target, req.Message)
	status := fiber.StatusOK
	switch {
	case util.IsCode(err, util.CodePartialBulkFailure):
		status = fiber.StatusMultiStatus
	case err != nil:
		return err
	}

	failed := result.Failed
	if failed == nil {
		failed = map[string]string{}
	}
	succeeded := result.Succeeded
	if succeeded == nil {
		succeeded = []string{}
	}
	return c.Status(status).JSON(fiber.Map{"data": dto.BulkTransitionResponse{
		Succeeded: succeeded,
		Failed:    failed,
		Tickets:   dto.NewTicketResponses(result.Tickets, true),
	}})
}

// UpdateDetails PATCH /staff/tickets/:id.
func (h *StaffTicketsHandler) UpdateDetails(c *fiber.Ctx) error {
	var req dto.UpdateDetailsRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	input := service.DetailsInput{
		CustomerName:  req.CustomerName,
		Note:          req.Note,
		Phone:         req.Phone,
		ScheduledTime: req.ScheduledTime,
	}
	if req.ServiceLine != nil {
		line, err := parseLine(*req.ServiceLine, "service_line")
		if err != nil {
			return err
		}
		input.ServiceLine = &line
	}
	if req.ScheduledDate != nil {
		date, err := parseDate(*req.ScheduledDate, "scheduled_date")
		if err != nil {
			return err
		}
		input.ScheduledDate = &date
	}

	ticket, err := h.tickets.UpdateDetails(c.UserContext(), auth.ActorFromContext(c), c.Params("id"), input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket, true)})
}

// Queue GET /staff/queue/:line.
func (h *StaffTicketsHandler) Queue(c *fiber.Ctx) error {
	line, err := parseLine(strings.ToUpper(c.Params("line")), "line")
	if err != nil {
		return err
	}
	snap, err := h.tickets.Queue(c.UserContext(), line)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewQueueResponse(snap)})
}

// Activity GET /staff/activity.
func (h *StaffTicketsHandler) Activity(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 0)
	if limit < 0 {
		return util.NewValidationError("limit must be positive", map[string]any{"field": "limit"})
	}
	records, err := h.tickets.ListActivity(c.UserContext(), limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewActivityResponses(records)})
}
