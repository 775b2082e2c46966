package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spec-kit/petcare-queue/internal/analytics"
	"github.com/spec-kit/petcare-queue/internal/auth"
	"github.com/spec-kit/petcare-queue/internal/domain"
	"github.com/spec-kit/petcare-queue/internal/events"
	"github.com/spec-kit/petcare-queue/pkg/util"
)

func TestAnalyticsReportFoldsPeriod(t *testing.T) {
	repo := newMemTickets()
	repo.seed(domain.Ticket{ServiceLine: domain.LineGrooming, ScheduledDate: visitDay, ScheduledTime: "09:10", Status: domain.StatusCompleted})
	repo.seed(domain.Ticket{ServiceLine: domain.LineClinic, ScheduledDate: visitDay, ScheduledTime: "09:40", Status: domain.StatusCancelled})
	repo.seed(domain.Ticket{ServiceLine: domain.LineClinic, ScheduledDate: visitDay, ScheduledTime: "15:00", Status: domain.StatusWaiting})
	repo.seed(domain.Ticket{ServiceLine: domain.LineClinic, ScheduledDate: visitDay.AddDate(0, 0, 1), ScheduledTime: "09:00", Status: domain.StatusCompleted})

	svc := NewAnalyticsService(repo, analytics.DefaultCalendar(), nil)

	report, err := svc.Report(context.Background(), admin, analytics.Hour, visitDay, nil)
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if len(report.Buckets) != 12 {
		t.Fatalf("buckets %d", len(report.Buckets))
	}
	if report.Totals.Total != 3 || report.Totals.Completed != 1 || report.Totals.Cancelled != 1 || report.Totals.InProcess != 1 {
		t.Fatalf("totals %+v", report.Totals)
	}
	if nine := report.Buckets[0]; nine.TotalCount != 2 {
		t.Fatalf("09 bucket %+v", nine)
	}

	clinic := domain.LineClinic
	report, err = svc.Report(context.Background(), admin, analytics.DayOfWeek, visitDay, &clinic)
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if report.Totals.Total != 3 {
		t.Fatalf("clinic week totals %+v", report.Totals)
	}
}

func TestAnalyticsAdminOnly(t *testing.T) {
	svc := NewAnalyticsService(newMemTickets(), analytics.DefaultCalendar(), nil)
	for _, actor := range []domain.Actor{groomer, domain.Requester()} {
		if _, err := svc.Report(context.Background(), actor, analytics.Month, visitDay, nil); !util.IsCode(err, util.CodeUnauthorized) {
			t.Fatalf("%s: got %v", actor, err)
		}
	}
}

func TestAnalyticsStoreFailure(t *testing.T) {
	repo := newMemTickets()
	repo.listErr = errStoreDown
	svc := NewAnalyticsService(repo, analytics.DefaultCalendar(), nil)
	if _, err := svc.Report(context.Background(), admin, analytics.Month, visitDay, nil); !util.IsCode(err, util.CodePersistenceFailure) {
		t.Fatalf("got %v", err)
	}
}

func TestNotificationsSentForLocalEvents(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher(nil)
	sender := &fakeSender{}
	recorder := &countingRecorder{}
	svc := NewNotificationService(dispatcher, sender, recorder, "https://queue.example/", nil)
	svc.RegisterHandlers()

	ctx := context.Background()
	publish := func(e events.Event) {
		if err := dispatcher.Publish(ctx, e); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	publish(events.Event{Type: events.EventTicketCreated, TicketID: "t1", CustomerName: "Mochi", ServiceLine: domain.LineGrooming, Phone: "+62811"})
	publish(events.Event{Type: events.EventTicketStatusChanged, TicketID: "t1", CustomerName: "Mochi", ServiceLine: domain.LineGrooming, Phone: "+62811", NewStatus: domain.StatusActive})
	publish(events.Event{Type: events.EventTicketStatusChanged, TicketID: "t1", Phone: "+62811", NewStatus: domain.StatusPayment, Remote: true})
	publish(events.Event{Type: events.EventTicketStatusChanged, TicketID: "t2", NewStatus: domain.StatusActive})
	svc.Wait()

	msgs := sender.sent["+62811"]
	if len(msgs) != 2 {
		t.Fatalf("messages %v", msgs)
	}
	// deliveries run concurrently, so order is not fixed
	joined := strings.Join(msgs, "\n")
	if !strings.Contains(joined, "https://queue.example/tickets/t1/position") {
		t.Fatalf("tracking link missing: %v", msgs)
	}
	if !strings.Contains(joined, "your turn") {
		t.Fatalf("turn message missing: %v", msgs)
	}
	if recorder.get("ticket_status_changed:sent") != 1 || recorder.get("ticket_created:sent") != 1 {
		t.Fatalf("counts %v", recorder.counts)
	}
}

func TestNotificationFailureIsSwallowed(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher(nil)
	sender := &fakeSender{err: errors.New("gateway down")}
	recorder := &countingRecorder{}
	svc := NewNotificationService(dispatcher, sender, recorder, "", nil)
	svc.RegisterHandlers()

	err := dispatcher.Publish(context.Background(), events.Event{
		Type: events.EventTicketStatusChanged, TicketID: "t1", Phone: "+62811", NewStatus: domain.StatusCancelled, Message: "closed early",
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	svc.Wait()
	if recorder.get("ticket_status_changed:failed") != 1 {
		t.Fatalf("failure not counted: %v", recorder.counts)
	}
	if msgs := sender.sent["+62811"]; len(msgs) != 1 || !strings.Contains(msgs[0], "closed early") {
		t.Fatalf("messages %v", msgs)
	}
}

func TestLogin(t *testing.T) {
	hash, err := auth.HashPassword("s3cret-pass", 4)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	staff := &fakeStaff{accounts: map[string]domain.StaffAccount{
		"vet":     {ID: "v1", Username: "vet", PasswordHash: hash, Role: domain.RoleOperator, Line: domain.LineClinic, Active: true},
		"retired": {ID: "r1", Username: "retired", PasswordHash: hash, Role: domain.RoleAdmin, Active: false},
	}}
	tokens := auth.NewTokenManager("secret", 60)
	svc := NewAuthService(staff, tokens, nil)

	result, err := svc.Login(context.Background(), "vet", "s3cret-pass")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	claims, err := tokens.ParseToken(result.Token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.Actor() != (domain.Actor{ID: "v1", Role: domain.RoleOperator, Line: domain.LineClinic}) {
		t.Fatalf("claims %+v", claims)
	}
	if time.Until(result.ExpiresAt) <= 0 {
		t.Fatalf("expired on issue")
	}

	for _, tt := range []struct{ user, pass string }{
		{"vet", "wrong-pass"},
		{"ghost", "s3cret-pass"},
		{"retired", "s3cret-pass"},
	} {
		if _, err := svc.Login(context.Background(), tt.user, tt.pass); !util.IsCode(err, util.CodeUnauthenticated) {
			t.Fatalf("%s: got %v", tt.user, err)
		}
	}

	staff.err = errStoreDown
	if _, err := svc.Login(context.Background(), "vet", "s3cret-pass"); !util.IsCode(err, util.CodePersistenceFailure) {
		t.Fatalf("got %v", err)
	}
}
