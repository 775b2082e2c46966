package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/petcare-queue/internal/domain"
	"github.com/spec-kit/petcare-queue/internal/events"
	"github.com/spec-kit/petcare-queue/internal/repository"
)

var errStoreDown = errors.New("store unavailable")

// memTickets is an in-memory TicketRepository with the same
// compare-and-set semantics as the postgres one. beforeApply, when set,
// runs before each ApplyChange and may fail it.
type memTickets struct {
	mu          sync.Mutex
	tickets     map[string]domain.Ticket
	order       []string
	beforeApply func(id string, change repository.TicketChange) error
	listErr     error
}

func newMemTickets() *memTickets {
	return &memTickets{tickets: map[string]domain.Ticket{}}
}

func (m *memTickets) seed(t domain.Ticket) domain.Ticket {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if len(t.Log) == 0 {
		t.Log = []domain.LogEntry{{Message: "Ticket created"}}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickets[t.ID] = t
	m.order = append(m.order, t.ID)
	return t
}

func (m *memTickets) snapshot(id string) domain.Ticket {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tickets[id]
}

func (m *memTickets) Create(_ context.Context, ticket *domain.Ticket) error {
	m.seed(*ticket)
	return nil
}

func (m *memTickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	t.Log = append([]domain.LogEntry(nil), t.Log...)
	return &t, nil
}

func (m *memTickets) ApplyChange(_ context.Context, id string, change repository.TicketChange) (*domain.Ticket, error) {
	if m.beforeApply != nil {
		if err := m.beforeApply(id, change); err != nil {
			return nil, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok || t.Status != change.ExpectedStatus {
		return nil, repository.ErrStatusChanged
	}
	t.Status = change.Status
	t.Log = append(append([]domain.LogEntry(nil), t.Log...), change.Entry)
	if change.CompletedAt != nil {
		t.CompletedAt = change.CompletedAt
	}
	if change.CustomerName != nil {
		t.CustomerName = *change.CustomerName
	}
	if change.Note != nil {
		t.Note = *change.Note
	}
	if change.Phone != nil {
		t.Phone = *change.Phone
	}
	m.tickets[id] = t
	return &t, nil
}

func (m *memTickets) ListLive(_ context.Context, line domain.ServiceLine) ([]domain.Ticket, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Ticket
	for _, id := range m.order {
		t := m.tickets[id]
		if t.ServiceLine == line && t.Status.InQueue() {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memTickets) ListScheduledBetween(_ context.Context, from, to time.Time, line *domain.ServiceLine) ([]domain.Ticket, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Ticket
	for _, id := range m.order {
		t := m.tickets[id]
		if t.ScheduledDate.Before(from) || !t.ScheduledDate.Before(to) {
			continue
		}
		if line != nil && t.ServiceLine != *line {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

type fakeActivity struct {
	mu      sync.Mutex
	records []domain.ActivityRecord
	err     error
}

func (f *fakeActivity) Record(_ context.Context, r *domain.ActivityRecord) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, *r)
	return nil
}

func (f *fakeActivity) List(_ context.Context, limit int) ([]domain.ActivityRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]domain.ActivityRecord(nil), f.records...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (d *recordingDispatcher) Publish(_ context.Context, e events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, e)
	return d.err
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) published() []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]events.Event(nil), d.events...)
}

type fakeStaff struct {
	accounts map[string]domain.StaffAccount
	err      error
}

func (f *fakeStaff) Create(_ context.Context, a *domain.StaffAccount) error {
	f.accounts[a.Username] = *a
	return nil
}

func (f *fakeStaff) GetByUsername(_ context.Context, username string) (*domain.StaffAccount, error) {
	if f.err != nil {
		return nil, f.err
	}
	a, ok := f.accounts[username]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &a, nil
}

type fakeSender struct {
	mu   sync.Mutex
	sent map[string][]string
	err  error
}

func (f *fakeSender) Send(_ context.Context, phone, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sent == nil {
		f.sent = map[string][]string{}
	}
	f.sent[phone] = append(f.sent[phone], text)
	return f.err
}

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *countingRecorder) RecordTransition(line, from, to, outcome string) {
	c.add(outcome)
}

func (c *countingRecorder) RecordNotification(eventType, outcome string) {
	c.add(eventType + ":" + outcome)
}

func (c *countingRecorder) add(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = map[string]int{}
	}
	c.counts[key]++
}

func (c *countingRecorder) get(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[key]
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
