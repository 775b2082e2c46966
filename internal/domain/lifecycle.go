package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotPermitted      = errors.New("actor not permitted")
)

type edge struct {
	from TicketStatus
	to   TicketStatus
}

// permission names the role allowed to take one edge. lineScoped marks
// edges an operator may only take on its own line.
type permission struct {
	role       Role
	lineScoped bool
}

var allowedTransitions = map[edge]permission{
	{StatusPending, StatusWaiting}:   {role: RoleAdmin},
	{StatusPending, StatusCancelled}: {role: RoleAdmin},
	{StatusWaiting, StatusActive}:    {role: RoleOperator, lineScoped: true},
	{StatusWaiting, StatusCancelled}: {role: RoleAdmin},
	{StatusActive, StatusPayment}:    {role: RoleOperator, lineScoped: true},
	{StatusPayment, StatusCompleted}: {role: RoleAdmin},
}

// CanTransition reports whether to is directly reachable from from.
func CanTransition(from, to TicketStatus) bool {
	_, ok := allowedTransitions[edge{from, to}]
	return ok
}

// NextStatuses lists the statuses reachable from s in one step.
func NextStatuses(s TicketStatus) []TicketStatus {
	var out []TicketStatus
	for _, candidate := range []TicketStatus{StatusWaiting, StatusActive, StatusPayment, StatusCompleted, StatusCancelled} {
		if CanTransition(s, candidate) {
			out = append(out, candidate)
		}
	}
	return out
}

// CheckTransition validates moving ticket to target on behalf of actor.
// The returned error wraps ErrInvalidTransition or ErrNotPermitted and
// carries a reason an operator can act on.
func CheckTransition(actor Actor, ticket Ticket, target TicketStatus) error {
	perm, ok := allowedTransitions[edge{ticket.Status, target}]
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidTransition, unreachableReason(ticket.Status, target))
	}
	return perm.allows(actor, ticket, edge{ticket.Status, target})
}

// CheckRepeat validates re-issuing the move that put ticket in its
// current status. actor must hold the permission of an edge leading into
// that status; PENDING has none and is left to admins.
func CheckRepeat(actor Actor, ticket Ticket) error {
	denied := fmt.Errorf("%w: %s requires admin", ErrNotPermitted, ticket.Status)
	for e, perm := range allowedTransitions {
		if e.to != ticket.Status {
			continue
		}
		if denied = perm.allows(actor, ticket, e); denied == nil {
			return nil
		}
	}
	if ticket.Status == StatusPending && actor.Role == RoleAdmin {
		return nil
	}
	return denied
}

func (p permission) allows(actor Actor, ticket Ticket, e edge) error {
	if actor.Role != p.role {
		return fmt.Errorf("%w: %s requires %s", ErrNotPermitted, DescribeTransition(e.from, e.to), strings.ToLower(string(p.role)))
	}
	if p.lineScoped && actor.Line != ticket.ServiceLine {
		return fmt.Errorf("%w: not authorized for this service line (%s)", ErrNotPermitted, ticket.ServiceLine)
	}
	return nil
}

// CanEditDetails reports whether actor may edit the non-status details of
// ticket.
func CanEditDetails(actor Actor, ticket Ticket) error {
	switch {
	case actor.Role == RoleAdmin:
		return nil
	case actor.Operates(ticket.ServiceLine):
		return nil
	case actor.Role == RoleOperator:
		return fmt.Errorf("%w: not authorized for this service line (%s)", ErrNotPermitted, ticket.ServiceLine)
	}
	return fmt.Errorf("%w: staff role required", ErrNotPermitted)
}

// Editable reports whether details may be edited in status s.
func (s TicketStatus) Editable() bool {
	return s == StatusWaiting || s == StatusActive
}

// DescribeTransition renders the default log message for an edge.
func DescribeTransition(from, to TicketStatus) string {
	switch {
	case from == StatusPending && to == StatusWaiting:
		return "Request accepted, added to the waiting list"
	case from == StatusPending && to == StatusCancelled:
		return "Request rejected"
	case from == StatusWaiting && to == StatusActive:
		return "Service started"
	case from == StatusWaiting && to == StatusCancelled:
		return "Visit cancelled"
	case from == StatusActive && to == StatusPayment:
		return "Service finished, awaiting payment"
	case from == StatusPayment && to == StatusCompleted:
		return "Payment confirmed, visit completed"
	}
	return fmt.Sprintf("Status changed from %s to %s", from, to)
}

func unreachableReason(from, to TicketStatus) string {
	switch {
	case from == StatusCancelled:
		return "already cancelled"
	case from == StatusCompleted:
		return "already completed"
	case to == StatusCancelled:
		return fmt.Sprintf("cannot cancel a ticket in %s", from)
	}
	return fmt.Sprintf("%s cannot move to %s", from, to)
}
