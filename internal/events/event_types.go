package events

import (
	"time"

	"github.com/spec-kit/petcare-queue/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated        EventType = "ticket_created"
	EventTicketStatusChanged  EventType = "ticket_status_changed"
	EventTicketDetailsUpdated EventType = "ticket_details_updated"
)

// AllTypes lists every event type, for subscribers that react to any
// ticket change.
var AllTypes = []EventType{EventTicketCreated, EventTicketStatusChanged, EventTicketDetailsUpdated}

// Actor encapsulates actor metadata for an event.
type Actor struct {
	ID   string      `json:"id,omitempty"`
	Role domain.Role `json:"role"`
}

// Event represents a ticket change. It carries enough of the ticket for
// notification without a store read.
type Event struct {
	ID           string              `json:"id"`
	Type         EventType           `json:"type"`
	TicketID     string              `json:"ticket_id"`
	ServiceLine  domain.ServiceLine  `json:"service_line"`
	CustomerName string              `json:"customer_name"`
	Phone        string              `json:"phone,omitempty"`
	OldStatus    domain.TicketStatus `json:"old_status,omitempty"`
	NewStatus    domain.TicketStatus `json:"new_status"`
	Message      string              `json:"message,omitempty"`
	Actor        Actor               `json:"actor"`
	Timestamp    time.Time           `json:"timestamp"`
	Origin       string              `json:"origin,omitempty"`

	// Remote is set on events received from another instance.
	Remote bool `json:"-"`
}
