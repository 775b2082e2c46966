package queue

import (
	"time"

	"github.com/spec-kit/petcare-queue/internal/domain"
)

// Position is what one watched ticket's observer sees.
type Position struct {
	TicketID string
	Found    bool
	Status   domain.TicketStatus
	// InQueue is false while the ticket is PENDING, PAYMENT or terminal.
	InQueue   bool
	Cancelled bool
	// Notice is a human-readable status line; set for cancellations.
	Notice string
	// PositionAhead and TotalInQueue are -1 when not applicable.
	PositionAhead int
	TotalInQueue  int
	Serving       *domain.Ticket
	ComputedAt    time.Time
}

// NotFound is the Position reported for a missing ticket.
func NotFound(ticketID string, now time.Time) Position {
	return Position{TicketID: ticketID, PositionAhead: -1, TotalInQueue: -1, ComputedAt: now}
}

// Locate computes the position of watched within lineSet. The watched
// ticket's own document wins over its copy in lineSet, since the two feeds
// may emit in either order.
func Locate(watched domain.Ticket, found bool, lineSet []domain.Ticket, now time.Time) Position {
	if !found {
		return NotFound(watched.ID, now)
	}
	pos := Position{
		TicketID:      watched.ID,
		Found:         true,
		Status:        watched.Status,
		PositionAhead: -1,
		TotalInQueue:  -1,
		ComputedAt:    now,
	}
	if watched.Status == domain.StatusCancelled {
		pos.Cancelled = true
		pos.Notice = cancellationNotice(watched)
		return pos
	}

	merged := make([]domain.Ticket, 0, len(lineSet)+1)
	replaced := false
	for _, t := range lineSet {
		if t.ID == watched.ID {
			merged = append(merged, watched)
			replaced = true
			continue
		}
		merged = append(merged, t)
	}
	if !replaced {
		merged = append(merged, watched)
	}

	snap := Build(merged, watched.ServiceLine)
	pos.TotalInQueue = len(snap.Ordered)
	if snap.Serving != nil {
		serving := *snap.Serving
		pos.Serving = &serving
	}
	if rank, ok := snap.RankOf(watched.ID); ok {
		pos.InQueue = true
		pos.PositionAhead = rank
	}
	return pos
}

func cancellationNotice(t domain.Ticket) string {
	if n := len(t.Log); n > 0 {
		return t.Log[n-1].Message
	}
	return "This visit has been cancelled"
}
