package queue

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/petcare-queue/internal/domain"
)

// TicketUpdate is one emission of the single-ticket feed. Found is false
// when the id does not (or no longer) resolve to a ticket.
type TicketUpdate struct {
	Ticket domain.Ticket
	Found  bool
}

// Feed is the live-subscription side of the ticket store. Each Watch call
// emits the current state immediately and again on every change; channels
// close when ctx ends.
type Feed interface {
	WatchTicket(ctx context.Context, ticketID string) <-chan TicketUpdate
	WatchLine(ctx context.Context, line domain.ServiceLine) <-chan []domain.Ticket
}

// Tracker keeps one watched ticket's Position current.
type Tracker struct {
	feed   Feed
	logger *zap.Logger
	now    func() time.Time
}

// NewTracker constructs a tracker over feed.
func NewTracker(feed Feed, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{feed: feed, logger: logger, now: time.Now}
}

// Track returns a channel of positions for ticketID. Only the latest
// position is buffered; a slow reader skips intermediate states. The
// channel closes when ctx is done or a feed closes.
func (t *Tracker) Track(ctx context.Context, ticketID string) <-chan Position {
	out := make(chan Position, 1)
	go t.run(ctx, ticketID, out)
	return out
}

func (t *Tracker) run(ctx context.Context, ticketID string, out chan Position) {
	defer close(out)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tickets := t.feed.WatchTicket(ctx, ticketID)
	var lines <-chan []domain.Ticket

	var (
		watched    TicketUpdate
		haveTicket bool
		lineSet    []domain.Ticket
		haveLine   bool
	)

	for {
		select {
		case <-ctx.Done():
			return
		case upd, ok := <-tickets:
			if !ok {
				return
			}
			watched, haveTicket = upd, true
			// the service line never changes, so one line subscription
			// serves the ticket's whole life
			if upd.Found && lines == nil {
				lines = t.feed.WatchLine(ctx, upd.Ticket.ServiceLine)
			}
		case set, ok := <-lines:
			if !ok {
				return
			}
			lineSet, haveLine = set, true
		}

		if !haveTicket {
			continue
		}
		if !watched.Found {
			publish(out, NotFound(ticketID, t.now()))
			continue
		}
		if !haveLine && watched.Ticket.Status != domain.StatusCancelled {
			continue
		}
		pos := Locate(watched.Ticket, true, lineSet, t.now())
		t.logger.Debug("position recomputed",
			zap.String("ticket_id", ticketID),
			zap.Int("ahead", pos.PositionAhead),
			zap.Int("total", pos.TotalInQueue))
		publish(out, pos)
	}
}

// publish replaces any unread position with p. The tracker goroutine is
// the only sender, so the send after draining never blocks.
func publish(out chan Position, p Position) {
	select {
	case <-out:
	default:
	}
	out <- p
}
