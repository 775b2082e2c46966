// Package analytics rolls ticket counts into fixed reporting buckets.
package analytics

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spec-kit/petcare-queue/internal/domain"
)

// Granularity selects the reporting calendar.
type Granularity string

const (
	Hour       Granularity = "hour"
	DayOfWeek  Granularity = "day-of-week"
	DayOfMonth Granularity = "day-of-month"
	Month      Granularity = "month"
)

// ParseGranularity validates a granularity literal. "week" and "day" are
// accepted as shorthands for the day-of-week and day-of-month calendars.
func ParseGranularity(raw string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(Hour):
		return Hour, nil
	case string(DayOfWeek), "week":
		return DayOfWeek, nil
	case string(DayOfMonth), "day":
		return DayOfMonth, nil
	case string(Month):
		return Month, nil
	}
	return "", fmt.Errorf("unknown granularity %q", raw)
}

// TimeBucket is one slot of a reporting calendar.
type TimeBucket struct {
	Key            string
	Label          string
	CompletedCount int
	CancelledCount int
	TotalCount     int
}

// InProcess counts tickets in the bucket that were neither completed nor
// cancelled when the raw set was read.
func (b TimeBucket) InProcess() int {
	return b.TotalCount - b.CompletedCount - b.CancelledCount
}

// Calendar holds the operating hours used by the hour granularity.
type Calendar struct {
	OpenHour  int
	CloseHour int
}

// DefaultCalendar is open from 09:00 through the 20:00 slot.
func DefaultCalendar() Calendar {
	return Calendar{OpenHour: 9, CloseHour: 20}
}

// Buckets generates the empty buckets of the period containing ref. The
// result depends only on g and ref, never on ticket data.
func (c Calendar) Buckets(g Granularity, ref time.Time) []TimeBucket {
	ref = domain.DateOf(ref)
	switch g {
	case Hour:
		out := make([]TimeBucket, 0, c.CloseHour-c.OpenHour+1)
		for h := c.OpenHour; h <= c.CloseHour; h++ {
			out = append(out, TimeBucket{Key: hourKey(h), Label: fmt.Sprintf("%02d:00", h)})
		}
		return out
	case DayOfWeek:
		start := weekStart(ref)
		out := make([]TimeBucket, 0, 7)
		for i := 0; i < 7; i++ {
			d := start.AddDate(0, 0, i)
			out = append(out, TimeBucket{Key: d.Format(domain.DateLayout), Label: d.Format("Mon")})
		}
		return out
	case DayOfMonth:
		first := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, time.UTC)
		days := first.AddDate(0, 1, -1).Day()
		out := make([]TimeBucket, 0, days)
		for i := 0; i < days; i++ {
			d := first.AddDate(0, 0, i)
			out = append(out, TimeBucket{Key: d.Format(domain.DateLayout), Label: strconv.Itoa(d.Day())})
		}
		return out
	case Month:
		out := make([]TimeBucket, 0, 12)
		for m := time.January; m <= time.December; m++ {
			d := time.Date(ref.Year(), m, 1, 0, 0, 0, 0, time.UTC)
			out = append(out, TimeBucket{Key: d.Format("2006-01"), Label: d.Format("Jan")})
		}
		return out
	}
	return nil
}

// Period returns the [from, to) date range whose tickets feed the buckets
// of g around ref.
func (c Calendar) Period(g Granularity, ref time.Time) (from, to time.Time) {
	ref = domain.DateOf(ref)
	switch g {
	case DayOfWeek:
		from = weekStart(ref)
		return from, from.AddDate(0, 0, 7)
	case DayOfMonth:
		from = time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, time.UTC)
		return from, from.AddDate(0, 1, 0)
	case Month:
		from = time.Date(ref.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
		return from, from.AddDate(1, 0, 0)
	}
	return ref, ref.AddDate(0, 0, 1)
}

// Fold counts tickets into a copy of buckets. Tickets whose key has no
// bucket are dropped.
func Fold(g Granularity, tickets []domain.Ticket, buckets []TimeBucket) []TimeBucket {
	out := make([]TimeBucket, len(buckets))
	copy(out, buckets)
	index := make(map[string]int, len(out))
	for i, b := range out {
		index[b.Key] = i
	}
	for _, t := range tickets {
		key, ok := bucketKey(g, t)
		if !ok {
			continue
		}
		i, ok := index[key]
		if !ok {
			continue
		}
		out[i].TotalCount++
		switch t.Status {
		case domain.StatusCompleted:
			out[i].CompletedCount++
		case domain.StatusCancelled:
			out[i].CancelledCount++
		}
	}
	return out
}

// Totals sums a bucket series.
type Totals struct {
	Completed int
	Cancelled int
	Total     int
	InProcess int
}

// Summarize adds up every bucket.
func Summarize(buckets []TimeBucket) Totals {
	var t Totals
	for _, b := range buckets {
		t.Completed += b.CompletedCount
		t.Cancelled += b.CancelledCount
		t.Total += b.TotalCount
	}
	t.InProcess = t.Total - t.Completed - t.Cancelled
	return t
}

func bucketKey(g Granularity, t domain.Ticket) (string, bool) {
	switch g {
	case Hour:
		h, ok := domain.SlotHour(t.ScheduledTime)
		if !ok {
			return "", false
		}
		return hourKey(h), true
	case DayOfWeek, DayOfMonth:
		return t.ScheduledDate.Format(domain.DateLayout), true
	case Month:
		return t.ScheduledDate.Format("2006-01"), true
	}
	return "", false
}

func hourKey(h int) string {
	return fmt.Sprintf("%02d", h)
}

// weekStart returns the Monday of d's ISO week.
func weekStart(d time.Time) time.Time {
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}
