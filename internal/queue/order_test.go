package queue

import (
	"testing"
	"time"

	"github.com/spec-kit/petcare-queue/internal/domain"
)

var day = time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)

func ticket(id string, line domain.ServiceLine, date time.Time, slot string, status domain.TicketStatus) domain.Ticket {
	return domain.Ticket{
		ID:            id,
		CustomerName:  "pet-" + id,
		ServiceLine:   line,
		ScheduledDate: date,
		ScheduledTime: slot,
		Status:        status,
		Log:           []domain.LogEntry{{Timestamp: date, Message: "Ticket created"}},
	}
}

func ids(tickets []domain.Ticket) []string {
	out := make([]string, len(tickets))
	for i, t := range tickets {
		out[i] = t.ID
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRankFiltersAndSorts(t *testing.T) {
	tomorrow := day.AddDate(0, 0, 1)
	set := []domain.Ticket{
		ticket("late", domain.LineGrooming, day, "11:00", domain.StatusWaiting),
		ticket("pending", domain.LineGrooming, day, "08:00", domain.StatusPending),
		ticket("clinic", domain.LineClinic, day, "09:00", domain.StatusWaiting),
		ticket("tomorrow", domain.LineGrooming, tomorrow, "09:00", domain.StatusWaiting),
		ticket("serving", domain.LineGrooming, day, "09:30", domain.StatusActive),
		ticket("paid", domain.LineGrooming, day, "09:00", domain.StatusPayment),
		ticket("done", domain.LineGrooming, day, "09:00", domain.StatusCompleted),
		ticket("early", domain.LineGrooming, day, "09:00", domain.StatusWaiting),
	}

	got := ids(Rank(set, domain.LineGrooming))
	want := []string{"early", "serving", "late", "tomorrow"}
	if !equalIDs(got, want) {
		t.Fatalf("Rank()=%v, want %v", got, want)
	}
}

func TestRankKeepsInputOrderForSameSlot(t *testing.T) {
	set := []domain.Ticket{
		ticket("b", domain.LineClinic, day, "10:00", domain.StatusWaiting),
		ticket("a", domain.LineClinic, day, "10:00", domain.StatusWaiting),
		ticket("c", domain.LineClinic, day, "10:00", domain.StatusWaiting),
	}
	got := ids(Rank(set, domain.LineClinic))
	if !equalIDs(got, []string{"b", "a", "c"}) {
		t.Fatalf("tie order not preserved: %v", got)
	}
}

func TestBuildReportsFirstActiveOnly(t *testing.T) {
	set := []domain.Ticket{
		ticket("w", domain.LineClinic, day, "09:00", domain.StatusWaiting),
		ticket("a2", domain.LineClinic, day, "10:00", domain.StatusActive),
		ticket("a1", domain.LineClinic, day, "09:30", domain.StatusActive),
	}
	snap := Build(set, domain.LineClinic)
	if snap.Serving == nil || snap.Serving.ID != "a1" {
		t.Fatalf("serving=%v, want a1", snap.Serving)
	}
	if snap.Waiting() != 1 {
		t.Fatalf("Waiting()=%d, want 1", snap.Waiting())
	}
}

func TestBuildWithoutActiveHasNoServing(t *testing.T) {
	snap := Build([]domain.Ticket{ticket("w", domain.LineClinic, day, "09:00", domain.StatusWaiting)}, domain.LineClinic)
	if snap.Serving != nil {
		t.Fatalf("expected nobody served, got %s", snap.Serving.ID)
	}
}

func TestRankOfBounds(t *testing.T) {
	set := []domain.Ticket{
		ticket("p", domain.LineGrooming, day, "08:00", domain.StatusPending),
		ticket("x", domain.LineGrooming, day, "09:00", domain.StatusActive),
		ticket("y", domain.LineGrooming, day, "09:10", domain.StatusWaiting),
		ticket("z", domain.LineGrooming, day, "09:20", domain.StatusWaiting),
	}
	snap := Build(set, domain.LineGrooming)
	for _, tk := range snap.Ordered {
		rank, ok := snap.RankOf(tk.ID)
		if !ok || rank < 0 || rank >= len(snap.Ordered) {
			t.Fatalf("RankOf(%s)=%d,%v out of bounds", tk.ID, rank, ok)
		}
	}
	if rank, ok := snap.RankOf("p"); ok || rank == 0 {
		t.Fatalf("pending ticket must not be in queue, got %d,%v", rank, ok)
	}
}

// An ACTIVE ticket at 09:00 puts a WAITING 09:30 ticket one place back
// until it leaves the queue.
func TestLocateFirstServedThenSecond(t *testing.T) {
	first := ticket("first", domain.LineGrooming, day, "09:00", domain.StatusActive)
	second := ticket("second", domain.LineGrooming, day, "09:30", domain.StatusWaiting)
	now := day.Add(9 * time.Hour)

	pos := Locate(second, true, []domain.Ticket{first, second}, now)
	if !pos.InQueue || pos.PositionAhead != 1 || pos.TotalInQueue != 2 {
		t.Fatalf("unexpected position %+v", pos)
	}
	if pos.Serving == nil || pos.Serving.ID != "first" {
		t.Fatalf("expected first to be served, got %+v", pos.Serving)
	}

	first.Status = domain.StatusPayment
	pos = Locate(second, true, []domain.Ticket{first, second}, now)
	if pos.PositionAhead != 0 || pos.TotalInQueue != 1 || pos.Serving != nil {
		t.Fatalf("after first left queue: %+v", pos)
	}
}

func TestLocatePrefersWatchedDocument(t *testing.T) {
	stale := ticket("me", domain.LineClinic, day, "10:00", domain.StatusPending)
	fresh := stale
	fresh.Status = domain.StatusWaiting
	other := ticket("other", domain.LineClinic, day, "09:00", domain.StatusWaiting)

	pos := Locate(fresh, true, []domain.Ticket{other, stale}, day)
	if !pos.InQueue || pos.PositionAhead != 1 {
		t.Fatalf("expected rank 1 from fresh document, got %+v", pos)
	}
}

func TestLocatePendingIsNotInQueue(t *testing.T) {
	me := ticket("me", domain.LineClinic, day, "08:00", domain.StatusPending)
	other := ticket("other", domain.LineClinic, day, "09:00", domain.StatusWaiting)
	pos := Locate(me, true, []domain.Ticket{other}, day)
	if pos.InQueue || pos.PositionAhead != -1 {
		t.Fatalf("pending ticket reported in queue: %+v", pos)
	}
	if pos.TotalInQueue != 1 {
		t.Fatalf("TotalInQueue=%d, want 1", pos.TotalInQueue)
	}
}

func TestLocateCancelledSuppressesQueue(t *testing.T) {
	me := ticket("me", domain.LineClinic, day, "09:00", domain.StatusCancelled)
	me.Log = append(me.Log, domain.LogEntry{Timestamp: day, Message: "Request rejected"})
	other := ticket("other", domain.LineClinic, day, "08:00", domain.StatusActive)

	pos := Locate(me, true, []domain.Ticket{other}, day)
	if !pos.Cancelled || pos.InQueue || pos.PositionAhead != -1 || pos.TotalInQueue != -1 || pos.Serving != nil {
		t.Fatalf("cancelled position not suppressed: %+v", pos)
	}
	if pos.Notice != "Request rejected" {
		t.Fatalf("Notice=%q", pos.Notice)
	}
}

func TestLocateNotFound(t *testing.T) {
	pos := Locate(domain.Ticket{ID: "ghost"}, false, nil, day)
	if pos.Found || pos.InQueue || pos.PositionAhead != -1 {
		t.Fatalf("unexpected %+v", pos)
	}
}
