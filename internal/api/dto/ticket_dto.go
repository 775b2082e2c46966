package dto

import (
	"time"

	"github.com/spec-kit/petcare-queue/internal/domain"
	"github.com/spec-kit/petcare-queue/internal/queue"
)

// CreateTicketRequest payload. InitialStatus is only honored for
// administrators.
type CreateTicketRequest struct {
	CustomerName  string `json:"customer_name"`
	Phone         string `json:"phone"`
	ServiceLine   string `json:"service_line"`
	ScheduledDate string `json:"scheduled_date"`
	ScheduledTime string `json:"scheduled_time"`
	Note          string `json:"note"`
	InitialStatus string `json:"initial_status"`
}

// TransitionRequest payload.
type TransitionRequest struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// BulkTransitionRequest payload.
type BulkTransitionRequest struct {
	IDs     []string `json:"ids"`
	Status  string   `json:"status"`
	Message string   `json:"message"`
}

// UpdateDetailsRequest payload. Absent fields are left untouched.
type UpdateDetailsRequest struct {
	CustomerName  *string `json:"customer_name"`
	Phone         *string `json:"phone"`
	Note          *string `json:"note"`
	ServiceLine   *string `json:"service_line"`
	ScheduledDate *string `json:"scheduled_date"`
	ScheduledTime *string `json:"scheduled_time"`
}

// LogEntryResponse is one ticket log line.
type LogEntryResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// TicketResponse is the ticket document. Phone is only filled for staff.
type TicketResponse struct {
	ID            string              `json:"id"`
	CustomerName  string              `json:"customer_name"`
	Phone         string              `json:"phone,omitempty"`
	ServiceLine   domain.ServiceLine  `json:"service_line"`
	ScheduledDate string              `json:"scheduled_date"`
	ScheduledTime string              `json:"scheduled_time"`
	Note          string              `json:"note,omitempty"`
	Status        domain.TicketStatus `json:"status"`
	CompletedAt   *time.Time          `json:"completed_at,omitempty"`
	Log           []LogEntryResponse  `json:"log"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// NewTicketResponse maps a ticket; withPhone controls contact exposure.
func NewTicketResponse(t *domain.Ticket, withPhone bool) TicketResponse {
	resp := TicketResponse{
		ID:            t.ID,
		CustomerName:  t.CustomerName,
		ServiceLine:   t.ServiceLine,
		ScheduledDate: t.ScheduledDate.Format(domain.DateLayout),
		ScheduledTime: t.ScheduledTime,
		Note:          t.Note,
		Status:        t.Status,
		CompletedAt:   t.CompletedAt,
		Log:           make([]LogEntryResponse, 0, len(t.Log)),
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
	if withPhone {
		resp.Phone = t.Phone
	}
	for _, e := range t.Log {
		resp.Log = append(resp.Log, LogEntryResponse{Timestamp: e.Timestamp, Message: e.Message})
	}
	return resp
}

// NewTicketResponses maps a slice of tickets.
func NewTicketResponses(tickets []domain.Ticket, withPhone bool) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		out = append(out, NewTicketResponse(&tickets[i], withPhone))
	}
	return out
}

// BulkTransitionResponse reports per-ticket outcomes.
type BulkTransitionResponse struct {
	Succeeded []string          `json:"succeeded"`
	Failed    map[string]string `json:"failed"`
	Tickets   []TicketResponse  `json:"tickets"`
}

// ServingTicket is the minimal view of the ticket currently served, safe
// to show to other customers.
type ServingTicket struct {
	ID            string `json:"id"`
	ScheduledTime string `json:"scheduled_time"`
}

// PositionResponse is one live-position reading.
type PositionResponse struct {
	TicketID      string              `json:"ticket_id"`
	Found         bool                `json:"found"`
	Status        domain.TicketStatus `json:"status,omitempty"`
	InQueue       bool                `json:"in_queue"`
	Cancelled     bool                `json:"cancelled"`
	Notice        string              `json:"notice,omitempty"`
	PositionAhead int                 `json:"position_ahead"`
	TotalInQueue  int                 `json:"total_in_queue"`
	Serving       *ServingTicket      `json:"serving,omitempty"`
	ComputedAt    time.Time           `json:"computed_at"`
}

// NewPositionResponse maps a queue position.
func NewPositionResponse(p queue.Position) PositionResponse {
	resp := PositionResponse{
		TicketID:      p.TicketID,
		Found:         p.Found,
		Status:        p.Status,
		InQueue:       p.InQueue,
		Cancelled:     p.Cancelled,
		Notice:        p.Notice,
		PositionAhead: p.PositionAhead,
		TotalInQueue:  p.TotalInQueue,
		ComputedAt:    p.ComputedAt,
	}
	if p.Serving != nil {
		resp.Serving = &ServingTicket{ID: p.Serving.ID, ScheduledTime: p.Serving.ScheduledTime}
	}
	return resp
}

// QueueResponse is the staff view of one line.
type QueueResponse struct {
	ServiceLine domain.ServiceLine `json:"service_line"`
	Serving     *TicketResponse    `json:"serving"`
	Waiting     int                `json:"waiting"`
	Tickets     []TicketResponse   `json:"tickets"`
}

// NewQueueResponse maps a queue snapshot.
func NewQueueResponse(s queue.Snapshot) QueueResponse {
	resp := QueueResponse{
		ServiceLine: s.ServiceLine,
		Waiting:     s.Waiting(),
		Tickets:     NewTicketResponses(s.Ordered, true),
	}
	if s.Serving != nil {
		serving := NewTicketResponse(s.Serving, true)
		resp.Serving = &serving
	}
	return resp
}
