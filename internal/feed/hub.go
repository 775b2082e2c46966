package feed

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/petcare-queue/internal/domain"
	"github.com/spec-kit/petcare-queue/internal/events"
	"github.com/spec-kit/petcare-queue/internal/queue"
)

// Store is the read side the hub reloads from.
type Store interface {
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListLive(ctx context.Context, line domain.ServiceLine) ([]domain.Ticket, error)
}

type watcher struct {
	ticketID string
	line     domain.ServiceLine
	tickets  chan queue.TicketUpdate
	lines    chan []domain.Ticket
}

const defaultRetryDelay = time.Second

// Hub turns change events into reloaded documents for live watchers. It
// implements queue.Feed.
type Hub struct {
	store      Store
	logger     *zap.Logger
	retryDelay time.Duration

	mu           sync.Mutex
	seq          int
	watchers     map[int]*watcher
	dirtyTickets map[string]struct{}
	dirtyLines   map[domain.ServiceLine]struct{}
	wake         chan struct{}
}

var _ queue.Feed = (*Hub)(nil)

// NewHub builds a hub. Run must be started for watchers to receive
// anything.
func NewHub(store Store, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		store:        store,
		logger:       logger,
		retryDelay:   defaultRetryDelay,
		watchers:     make(map[int]*watcher),
		dirtyTickets: make(map[string]struct{}),
		dirtyLines:   make(map[domain.ServiceLine]struct{}),
		wake:         make(chan struct{}, 1),
	}
}

// Subscribe attaches the hub to every ticket event of d.
func (h *Hub) Subscribe(d events.Dispatcher) {
	for _, eventType := range events.AllTypes {
		d.Subscribe(eventType, h.Handle)
	}
}

// Handle marks the event's ticket and line for reload. It never blocks on
// the store.
func (h *Hub) Handle(_ context.Context, event events.Event) error {
	h.mu.Lock()
	if event.TicketID != "" {
		h.dirtyTickets[event.TicketID] = struct{}{}
	}
	if event.ServiceLine != "" {
		h.dirtyLines[event.ServiceLine] = struct{}{}
	}
	h.mu.Unlock()
	h.signal()
	return nil
}

// WatchTicket implements queue.Feed.
func (h *Hub) WatchTicket(ctx context.Context, ticketID string) <-chan queue.TicketUpdate {
	w := &watcher{ticketID: ticketID, tickets: make(chan queue.TicketUpdate, 1)}
	h.register(ctx, w, func() { h.dirtyTickets[ticketID] = struct{}{} })
	return w.tickets
}

// WatchLine implements queue.Feed.
func (h *Hub) WatchLine(ctx context.Context, line domain.ServiceLine) <-chan []domain.Ticket {
	w := &watcher{line: line, lines: make(chan []domain.Ticket, 1)}
	h.register(ctx, w, func() { h.dirtyLines[line] = struct{}{} })
	return w.lines
}

// register adds w and schedules its initial load. The watcher is removed
// and its channel closed when ctx ends.
func (h *Hub) register(ctx context.Context, w *watcher, markDirty func()) {
	h.mu.Lock()
	h.seq++
	id := h.seq
	h.watchers[id] = w
	markDirty()
	h.mu.Unlock()
	h.signal()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.watchers, id)
		if w.tickets != nil {
			close(w.tickets)
		}
		if w.lines != nil {
			close(w.lines)
		}
	}()
}

// Watchers reports the number of open subscriptions.
func (h *Hub) Watchers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.watchers)
}

func (h *Hub) signal() {
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

// Run reloads dirty tickets and lines until ctx ends. It is the only
// sender on watcher channels.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.wake:
		}

		h.mu.Lock()
		tickets, lines := h.dirtyTickets, h.dirtyLines
		h.dirtyTickets = make(map[string]struct{})
		h.dirtyLines = make(map[domain.ServiceLine]struct{})
		h.mu.Unlock()

		for id := range tickets {
			h.reloadTicket(ctx, id)
		}
		for line := range lines {
			h.reloadLine(ctx, line)
		}
	}
}

func (h *Hub) reloadTicket(ctx context.Context, id string) {
	if !h.watching(func(w *watcher) bool { return w.tickets != nil && w.ticketID == id }) {
		return
	}
	update := queue.TicketUpdate{}
	if _, err := uuid.Parse(id); err == nil {
		ticket, err := h.store.GetByID(ctx, id)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
		case err != nil:
			h.logger.Warn("reload ticket failed", zap.String("ticket_id", id), zap.Error(err))
			h.retry(ctx, func() { h.dirtyTickets[id] = struct{}{} })
			return
		default:
			update = queue.TicketUpdate{Ticket: *ticket, Found: true}
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, w := range h.watchers {
		if w.tickets != nil && w.ticketID == id {
			sendLatest(w.tickets, update)
		}
	}
}

func (h *Hub) reloadLine(ctx context.Context, line domain.ServiceLine) {
	if !h.watching(func(w *watcher) bool { return w.lines != nil && w.line == line }) {
		return
	}
	set, err := h.store.ListLive(ctx, line)
	if err != nil {
		h.logger.Warn("reload line failed", zap.String("service_line", string(line)), zap.Error(err))
		h.retry(ctx, func() { h.dirtyLines[line] = struct{}{} })
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, w := range h.watchers {
		if w.lines != nil && w.line == line {
			// each watcher gets its own copy
			sendLatest(w.lines, append([]domain.Ticket(nil), set...))
		}
	}
}

// retry marks a failed reload dirty again after retryDelay.
func (h *Hub) retry(ctx context.Context, markDirty func()) {
	time.AfterFunc(h.retryDelay, func() {
		if ctx.Err() != nil {
			return
		}
		h.mu.Lock()
		markDirty()
		h.mu.Unlock()
		h.signal()
	})
}

func (h *Hub) watching(match func(*watcher) bool) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, w := range h.watchers {
		if match(w) {
			return true
		}
	}
	return false
}

// sendLatest replaces an unread value. Callers hold h.mu, so no other
// sender can refill the buffer between the drain and the send.
func sendLatest[T any](ch chan T, v T) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}
