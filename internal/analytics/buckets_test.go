package analytics

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/spec-kit/petcare-queue/internal/domain"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestHourBucketsAlwaysTwelve(t *testing.T) {
	cal := DefaultCalendar()
	for _, ref := range []time.Time{date(2026, 1, 1), date(2024, 2, 29), date(2026, 10, 16)} {
		buckets := cal.Buckets(Hour, ref)
		if len(buckets) != 12 {
			t.Fatalf("hour buckets for %s: %d, want 12", ref.Format(domain.DateLayout), len(buckets))
		}
		if buckets[0].Label != "09:00" || buckets[11].Label != "20:00" {
			t.Fatalf("labels %q..%q", buckets[0].Label, buckets[11].Label)
		}
	}
}

func TestDayOfMonthIsGapFree(t *testing.T) {
	cal := DefaultCalendar()
	cases := []struct {
		ref  time.Time
		days int
	}{
		{date(2026, 1, 15), 31},
		{date(2026, 2, 1), 28},
		{date(2024, 2, 10), 29},
		{date(2026, 4, 30), 30},
		{date(2026, 12, 31), 31},
	}
	for _, tt := range cases {
		buckets := cal.Buckets(DayOfMonth, tt.ref)
		if len(buckets) != tt.days {
			t.Fatalf("%s: %d buckets, want %d", tt.ref.Format("2006-01"), len(buckets), tt.days)
		}
		for i := 1; i < len(buckets); i++ {
			if buckets[i-1].Key >= buckets[i].Key {
				t.Fatalf("keys not ascending at %d: %s >= %s", i, buckets[i-1].Key, buckets[i].Key)
			}
		}
		if buckets[0].Label != "1" {
			t.Fatalf("first label %q", buckets[0].Label)
		}
	}
}

func TestDayOfWeekStartsMonday(t *testing.T) {
	cal := DefaultCalendar()
	// 2026-10-18 is a Sunday; its ISO week starts 2026-10-12.
	buckets := cal.Buckets(DayOfWeek, date(2026, 10, 18))
	if len(buckets) != 7 {
		t.Fatalf("got %d buckets", len(buckets))
	}
	if buckets[0].Key != "2026-10-12" || buckets[0].Label != "Mon" {
		t.Fatalf("first bucket %+v", buckets[0])
	}
	if buckets[6].Key != "2026-10-18" || buckets[6].Label != "Sun" {
		t.Fatalf("last bucket %+v", buckets[6])
	}
}

func TestMonthBuckets(t *testing.T) {
	buckets := DefaultCalendar().Buckets(Month, date(2026, 6, 3))
	if len(buckets) != 12 || buckets[0].Key != "2026-01" || buckets[11].Key != "2026-12" || buckets[0].Label != "Jan" {
		t.Fatalf("unexpected month buckets %+v", buckets)
	}
}

func TestFoldNothingKeepsShape(t *testing.T) {
	cal := DefaultCalendar()
	for _, g := range []Granularity{Hour, DayOfWeek, DayOfMonth, Month} {
		empty := cal.Buckets(g, date(2026, 10, 16))
		folded := Fold(g, nil, empty)
		if len(folded) != len(empty) {
			t.Fatalf("%s: len %d != %d", g, len(folded), len(empty))
		}
		for i := range folded {
			if folded[i] != empty[i] {
				t.Fatalf("%s: bucket %d changed: %+v", g, i, folded[i])
			}
			if folded[i].TotalCount != 0 || folded[i].CompletedCount != 0 || folded[i].CancelledCount != 0 {
				t.Fatalf("%s: non-zero bucket %+v", g, folded[i])
			}
		}
	}
}

func TestFoldCountsAndDropsOutOfRange(t *testing.T) {
	ref := date(2026, 10, 16)
	tk := func(d time.Time, slot string, s domain.TicketStatus) domain.Ticket {
		return domain.Ticket{ScheduledDate: d, ScheduledTime: slot, Status: s}
	}
	tickets := []domain.Ticket{
		tk(ref, "09:15", domain.StatusCompleted),
		tk(ref, "09:45", domain.StatusCancelled),
		tk(ref, "09:50", domain.StatusWaiting),
		tk(ref, "14:00", domain.StatusCompleted),
		tk(ref, "07:30", domain.StatusCompleted),
		tk(ref, "bogus", domain.StatusCompleted),
	}
	buckets := Fold(Hour, tickets, DefaultCalendar().Buckets(Hour, ref))

	nine := buckets[0]
	if nine.CompletedCount != 1 || nine.CancelledCount != 1 || nine.TotalCount != 3 || nine.InProcess() != 1 {
		t.Fatalf("09 bucket %+v", nine)
	}
	two := buckets[5]
	if two.Key != "14" || two.CompletedCount != 1 || two.TotalCount != 1 {
		t.Fatalf("14 bucket %+v", two)
	}
	totals := Summarize(buckets)
	if totals.Total != 4 || totals.Completed != 2 || totals.Cancelled != 1 || totals.InProcess != 1 {
		t.Fatalf("totals %+v", totals)
	}
}

func TestFoldMonthUsesYearMonth(t *testing.T) {
	tickets := []domain.Ticket{
		{ScheduledDate: date(2026, 3, 2), Status: domain.StatusCompleted},
		{ScheduledDate: date(2026, 3, 30), Status: domain.StatusCancelled},
		{ScheduledDate: date(2025, 3, 30), Status: domain.StatusCompleted},
	}
	buckets := Fold(Month, tickets, DefaultCalendar().Buckets(Month, date(2026, 1, 1)))
	if buckets[2].TotalCount != 2 || buckets[2].CompletedCount != 1 || buckets[2].CancelledCount != 1 {
		t.Fatalf("march bucket %+v", buckets[2])
	}
	if Summarize(buckets).Total != 2 {
		t.Fatalf("previous year ticket was not dropped")
	}
}

func TestPeriod(t *testing.T) {
	cal := DefaultCalendar()
	ref := date(2026, 10, 16)
	cases := []struct {
		g        Granularity
		from, to time.Time
	}{
		{Hour, ref, date(2026, 10, 17)},
		{DayOfWeek, date(2026, 10, 12), date(2026, 10, 19)},
		{DayOfMonth, date(2026, 10, 1), date(2026, 11, 1)},
		{Month, date(2026, 1, 1), date(2027, 1, 1)},
	}
	for _, tt := range cases {
		from, to := cal.Period(tt.g, ref)
		if !from.Equal(tt.from) || !to.Equal(tt.to) {
			t.Fatalf("%s: got [%s,%s)", tt.g, from, to)
		}
	}
}

func TestParseGranularity(t *testing.T) {
	if g, err := ParseGranularity("WEEK"); err != nil || g != DayOfWeek {
		t.Fatalf("got %s, %v", g, err)
	}
	if _, err := ParseGranularity("year"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	buckets := []TimeBucket{{Key: "09", Label: "09:00", CompletedCount: 2, CancelledCount: 1, TotalCount: 4}}
	if err := WriteCSV(&buf, buckets); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || lines[1] != "09,09:00,2,1,1,4" {
		t.Fatalf("unexpected csv %q", buf.String())
	}
}
