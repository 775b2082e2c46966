package domain

import (
	"fmt"
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for visit tickets.
type TicketStatus string

const (
	StatusPending   TicketStatus = "PENDING"
	StatusWaiting   TicketStatus = "WAITING"
	StatusActive    TicketStatus = "ACTIVE"
	StatusPayment   TicketStatus = "PAYMENT"
	StatusCompleted TicketStatus = "COMPLETED"
	StatusCancelled TicketStatus = "CANCELLED"
)

// legacyActiveLiteral is the older stored value for StatusActive. It is
// accepted on input and never produced.
const legacyActiveLiteral = "IN_SERVICE"

// ParseStatus maps an external literal onto a TicketStatus. Both ACTIVE
// literals resolve to StatusActive.
func ParseStatus(raw string) (TicketStatus, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(StatusPending):
		return StatusPending, nil
	case string(StatusWaiting):
		return StatusWaiting, nil
	case string(StatusActive), legacyActiveLiteral:
		return StatusActive, nil
	case string(StatusPayment):
		return StatusPayment, nil
	case string(StatusCompleted):
		return StatusCompleted, nil
	case string(StatusCancelled):
		return StatusCancelled, nil
	}
	return "", fmt.Errorf("unknown ticket status %q", raw)
}

// UnmarshalText implements encoding.TextUnmarshaler so JSON payloads go
// through ParseStatus.
func (s *TicketStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Scan lets pgx read the status column through ParseStatus.
func (s *TicketStatus) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return s.UnmarshalText([]byte(v))
	case []byte:
		return s.UnmarshalText(v)
	case nil:
		return fmt.Errorf("ticket status is null")
	}
	return fmt.Errorf("cannot scan %T into TicketStatus", src)
}

// IsTerminal reports whether no further transition is possible.
func (s TicketStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// InQueue reports whether the status counts toward queue position.
func (s TicketStatus) InQueue() bool {
	return s == StatusWaiting || s == StatusActive
}

// ServiceLine identifies one of the two independent queues.
type ServiceLine string

const (
	LineGrooming ServiceLine = "GROOMING"
	LineClinic   ServiceLine = "CLINIC"
)

// ServiceLines lists every supported line in display order.
var ServiceLines = []ServiceLine{LineGrooming, LineClinic}

// ParseServiceLine validates a service line literal.
func ParseServiceLine(raw string) (ServiceLine, error) {
	switch ServiceLine(strings.ToUpper(strings.TrimSpace(raw))) {
	case LineGrooming:
		return LineGrooming, nil
	case LineClinic:
		return LineClinic, nil
	}
	return "", fmt.Errorf("unknown service line %q", raw)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *ServiceLine) UnmarshalText(text []byte) error {
	parsed, err := ParseServiceLine(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// MaxNoteLength bounds the free-text note, in characters.
const MaxNoteLength = 200

// DateLayout and TimeLayout are the wire formats of the schedule fields.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// LogEntry is one immutable line of a ticket's activity log.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// Ticket is one customer visit.
type Ticket struct {
	ID            string
	CustomerName  string
	Phone         string
	ServiceLine   ServiceLine
	ScheduledDate time.Time
	ScheduledTime string
	Note          string
	Status        TicketStatus
	CompletedAt   *time.Time
	Log           []LogEntry
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ScheduleKey returns the ordering key used by the queue, comparable as a
// plain string.
func (t Ticket) ScheduleKey() string {
	return t.ScheduledDate.Format(DateLayout) + " " + t.ScheduledTime
}

// ParseDate parses a calendar date into midnight UTC.
func ParseDate(raw string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", raw)
	}
	return d, nil
}

// DateOf truncates t to its calendar date in t's location, expressed as
// midnight UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NormalizeTimeSlot validates an "HH:MM" slot and returns it zero-padded.
func NormalizeTimeSlot(raw string) (string, error) {
	parsed, err := time.Parse(TimeLayout, strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid time slot %q: expected HH:MM", raw)
	}
	return parsed.Format(TimeLayout), nil
}

// SlotHour returns the hour component of an "HH:MM" slot.
func SlotHour(slot string) (int, bool) {
	parsed, err := time.Parse(TimeLayout, slot)
	if err != nil {
		return 0, false
	}
	return parsed.Hour(), true
}
