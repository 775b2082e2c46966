// Package queue orders the live tickets of a service line and derives
// per-ticket positions from that order.
package queue

import (
	"slices"
	"strings"

	"github.com/spec-kit/petcare-queue/internal/domain"
)

// Snapshot is the ordered queue of one service line at one instant.
type Snapshot struct {
	ServiceLine domain.ServiceLine
	Ordered     []domain.Ticket
	// Serving is the first ACTIVE ticket in Ordered, nil when nobody is
	// being served.
	Serving *domain.Ticket
}

// Rank filters tickets to line and the WAITING/ACTIVE statuses, then sorts
// them ascending by scheduled date and time. Tickets sharing a slot keep
// their input order.
func Rank(tickets []domain.Ticket, line domain.ServiceLine) []domain.Ticket {
	ordered := make([]domain.Ticket, 0, len(tickets))
	for _, t := range tickets {
		if t.ServiceLine == line && t.Status.InQueue() {
			ordered = append(ordered, t)
		}
	}
	slices.SortStableFunc(ordered, func(a, b domain.Ticket) int {
		return strings.Compare(a.ScheduleKey(), b.ScheduleKey())
	})
	return ordered
}

// Build ranks tickets and designates the ticket currently being served.
func Build(tickets []domain.Ticket, line domain.ServiceLine) Snapshot {
	snap := Snapshot{ServiceLine: line, Ordered: Rank(tickets, line)}
	for i := range snap.Ordered {
		if snap.Ordered[i].Status == domain.StatusActive {
			snap.Serving = &snap.Ordered[i]
			break
		}
	}
	return snap
}

// RankOf returns the zero-based index of ticketID in the ordered queue. ok
// is false when the ticket is not in the queue (for example still
// PENDING); callers must not treat that as rank 0.
func (s Snapshot) RankOf(ticketID string) (rank int, ok bool) {
	for i := range s.Ordered {
		if s.Ordered[i].ID == ticketID {
			return i, true
		}
	}
	return -1, false
}

// Waiting counts the WAITING tickets in the snapshot.
func (s Snapshot) Waiting() int {
	n := 0
	for _, t := range s.Ordered {
		if t.Status == domain.StatusWaiting {
			n++
		}
	}
	return n
}
