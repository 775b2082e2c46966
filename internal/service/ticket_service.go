package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/petcare-queue/internal/domain"
	"github.com/spec-kit/petcare-queue/internal/events"
	"github.com/spec-kit/petcare-queue/internal/queue"
	"github.com/spec-kit/petcare-queue/internal/repository"
	"github.com/spec-kit/petcare-queue/pkg/util"
)

const tracerName = "github.com/spec-kit/petcare-queue/internal/service"

const (
	defaultActivityLimit = 50
	maxActivityLimit     = 200
	maxBulkSize          = 200
)

// TransitionRecorder receives one call per transition attempt.
type TransitionRecorder interface {
	RecordTransition(line, from, to, outcome string)
}

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets    repository.TicketRepository
	activity   repository.ActivityRepository
	dispatcher events.Dispatcher
	recorder   TransitionRecorder
	logger     *zap.Logger
	tracer     trace.Tracer
	now        func() time.Time
	bulkLimit  int
}

// TicketDependencies bundles collaborators for ticket service.
type TicketDependencies struct {
	TicketRepo      repository.TicketRepository
	ActivityRepo    repository.ActivityRepository
	Dispatcher      events.Dispatcher
	Recorder        TransitionRecorder
	Logger          *zap.Logger
	BulkConcurrency int
	Clock           func() time.Time
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	s := &TicketService{
		tickets:    deps.TicketRepo,
		activity:   deps.ActivityRepo,
		dispatcher: deps.Dispatcher,
		recorder:   deps.Recorder,
		logger:     deps.Logger,
		tracer:     otel.Tracer(tracerName),
		now:        deps.Clock,
		bulkLimit:  deps.BulkConcurrency,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.bulkLimit <= 0 {
		s.bulkLimit = 4
	}
	return s
}

// CreateTicketInput describes ticket creation payload.
type CreateTicketInput struct {
	CustomerName  string
	Phone         string
	ServiceLine   domain.ServiceLine
	ScheduledDate time.Time
	ScheduledTime string
	Note          string
	// InitialStatus is honored for administrators only; empty means PENDING.
	InitialStatus domain.TicketStatus
}

// DetailsInput lists the fields a details edit may touch. Nil means "not
// supplied". The schedule and line fields exist so a client that resends
// them unchanged is accepted; a different value is rejected.
type DetailsInput struct {
	CustomerName  *string
	Note          *string
	Phone         *string
	ServiceLine   *domain.ServiceLine
	ScheduledDate *time.Time
	ScheduledTime *string
}

// BulkResult reports the per-ticket outcome of a bulk transition.
type BulkResult struct {
	Succeeded []string
	Failed    map[string]string
	Tickets   []domain.Ticket
}

// Create validates input and stores a new ticket.
func (s *TicketService) Create(ctx context.Context, actor domain.Actor, input CreateTicketInput) (*domain.Ticket, error) {
	ctx, span := s.tracer.Start(ctx, "TicketService.Create", trace.WithAttributes(
		attribute.String("actor.role", string(actor.Role)),
		attribute.String("ticket.service_line", string(input.ServiceLine)),
	))
	defer span.End()

	ticket, err := s.newTicket(actor, input)
	if err != nil {
		return nil, err
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create ticket")
		return nil, util.NewPersistenceFailure(err, map[string]any{"ticket_id": ticket.ID})
	}
	span.SetAttributes(attribute.String("ticket.id", ticket.ID))

	s.logger.Info("ticket created",
		zap.String("ticket_id", ticket.ID),
		zap.String("service_line", string(ticket.ServiceLine)),
		zap.String("status", string(ticket.Status)),
		zap.Stringer("actor", actor))
	s.afterCommit(ctx, actor, events.EventTicketCreated, "", ticket, ticket.Log[0].Message)
	return ticket, nil
}

func (s *TicketService) newTicket(actor domain.Actor, input CreateTicketInput) (*domain.Ticket, error) {
	name := strings.TrimSpace(input.CustomerName)
	if name == "" {
		return nil, util.NewValidationError("customer name is required", map[string]any{"field": "customer_name"})
	}
	line, err := domain.ParseServiceLine(string(input.ServiceLine))
	if err != nil {
		return nil, util.NewValidationError(err.Error(), map[string]any{"field": "service_line"})
	}
	if input.ScheduledDate.IsZero() {
		return nil, util.NewValidationError("scheduled date is required", map[string]any{"field": "scheduled_date"})
	}
	slot, err := domain.NormalizeTimeSlot(input.ScheduledTime)
	if err != nil {
		return nil, util.NewValidationError(err.Error(), map[string]any{"field": "scheduled_time"})
	}
	note, err := validNote(input.Note)
	if err != nil {
		return nil, err
	}
	phone, err := normalizePhone(input.Phone)
	if err != nil {
		return nil, err
	}

	status := domain.StatusPending
	if input.InitialStatus != "" && input.InitialStatus != domain.StatusPending {
		if actor.Role != domain.RoleAdmin {
			return nil, util.NewUnauthorized("only an administrator may choose the initial status",
				map[string]any{"target_status": input.InitialStatus})
		}
		if status, err = domain.ParseStatus(string(input.InitialStatus)); err != nil {
			return nil, util.NewValidationError(err.Error(), map[string]any{"field": "initial_status"})
		}
	}

	now := s.now()
	ticket := &domain.Ticket{
		ID:            uuid.NewString(),
		CustomerName:  name,
		Phone:         phone,
		ServiceLine:   line,
		ScheduledDate: domain.DateOf(input.ScheduledDate),
		ScheduledTime: slot,
		Note:          note,
		Status:        status,
		Log:           []domain.LogEntry{{Timestamp: now, Message: creationMessage(status)}},
	}
	if status == domain.StatusCompleted {
		ticket.CompletedAt = &now
	}
	return ticket, nil
}

func creationMessage(status domain.TicketStatus) string {
	if status == domain.StatusPending {
		return "Ticket created"
	}
	return fmt.Sprintf("Ticket created by administrator with status %s", status)
}

// Get returns one ticket with its log.
func (s *TicketService) Get(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	return s.load(ctx, ticketID)
}

// Transition moves one ticket to target on behalf of actor. Re-issuing
// a transition the ticket has already made succeeds without a new log
// entry, provided actor could have made it.
func (s *TicketService) Transition(ctx context.Context, actor domain.Actor, ticketID string, target domain.TicketStatus, message string) (*domain.Ticket, error) {
	ctx, span := s.tracer.Start(ctx, "TicketService.Transition", trace.WithAttributes(
		attribute.String("ticket.id", ticketID),
		attribute.String("ticket.target_status", string(target)),
		attribute.String("actor.role", string(actor.Role)),
	))
	defer span.End()

	ticket, err := s.transition(ctx, actor, ticketID, target, message)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, util.ToDomainError(err).Code)
	}
	return ticket, err
}

func (s *TicketService) transition(ctx context.Context, actor domain.Actor, ticketID string, target domain.TicketStatus, message string) (*domain.Ticket, error) {
	details := map[string]any{"ticket_id": ticketID, "target_status": target}
	if !actor.IsStaff() {
		return nil, util.NewUnauthorized("requesters cannot change ticket status", details)
	}

	ticket, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	from := ticket.Status
	if from == target {
		if err := domain.CheckRepeat(actor, *ticket); err != nil {
			details["current_status"] = from
			mapped := mapRuleError(err, details)
			s.record(ticket.ServiceLine, from, target, util.ToDomainError(mapped).Code)
			return nil, mapped
		}
		s.record(ticket.ServiceLine, from, target, "noop")
		return ticket, nil
	}

	if err := domain.CheckTransition(actor, *ticket, target); err != nil {
		details["current_status"] = from
		mapped := mapRuleError(err, details)
		s.record(ticket.ServiceLine, from, target, util.ToDomainError(mapped).Code)
		return nil, mapped
	}

	message = strings.TrimSpace(message)
	if message == "" {
		message = domain.DescribeTransition(from, target)
	}
	now := s.now()
	change := repository.TicketChange{
		ExpectedStatus: from,
		Status:         target,
		Entry:          domain.LogEntry{Timestamp: now, Message: message},
	}
	if target == domain.StatusCompleted {
		change.CompletedAt = &now
	}

	updated, err := s.tickets.ApplyChange(ctx, ticket.ID, change)
	switch {
	case errors.Is(err, repository.ErrStatusChanged):
		return s.reconcile(ctx, ticket, target, details)
	case err != nil:
		s.record(ticket.ServiceLine, from, target, util.CodePersistenceFailure)
		return nil, util.NewPersistenceFailure(err, details)
	}

	s.record(ticket.ServiceLine, from, target, "ok")
	s.logger.Info("ticket transitioned",
		zap.String("ticket_id", ticket.ID),
		zap.String("from", string(from)),
		zap.String("to", string(target)),
		zap.Stringer("actor", actor))
	s.afterCommit(ctx, actor, events.EventTicketStatusChanged, from, updated, message)
	return updated, nil
}

// reconcile handles a lost compare-and-set. If the concurrent writer
// already produced target, the request is satisfied; otherwise it was
// superseded.
func (s *TicketService) reconcile(ctx context.Context, observed *domain.Ticket, target domain.TicketStatus, details map[string]any) (*domain.Ticket, error) {
	current, err := s.load(ctx, observed.ID)
	if err != nil {
		return nil, err
	}
	if current.Status == target {
		s.record(current.ServiceLine, observed.Status, target, "reconciled")
		return current, nil
	}
	details["current_status"] = current.Status
	details["superseded"] = true
	s.record(current.ServiceLine, observed.Status, target, util.CodeInvalidTransition)
	return nil, util.NewInvalidTransition(
		fmt.Sprintf("%s: superseded, ticket is now %s", domain.ErrInvalidTransition, current.Status), details)
}

// BulkTransition applies Transition to every id independently. When any id
// fails the returned error is a PARTIAL_BULK_FAILURE and the result still
// lists what succeeded.
func (s *TicketService) BulkTransition(ctx context.Context, actor domain.Actor, ids []string, target domain.TicketStatus, message string) (BulkResult, error) {
	ctx, span := s.tracer.Start(ctx, "TicketService.BulkTransition", trace.WithAttributes(
		attribute.Int("bulk.size", len(ids)),
		attribute.String("ticket.target_status", string(target)),
	))
	defer span.End()

	unique := dedupe(ids)
	if len(unique) == 0 {
		return BulkResult{}, util.NewValidationError("at least one ticket id is required", map[string]any{"field": "ids"})
	}
	if len(unique) > maxBulkSize {
		return BulkResult{}, util.NewValidationError(fmt.Sprintf("at most %d tickets per request", maxBulkSize), map[string]any{"field": "ids"})
	}

	type outcome struct {
		ticket *domain.Ticket
		err    error
	}
	outcomes := make([]outcome, len(unique))

	var g errgroup.Group
	g.SetLimit(s.bulkLimit)
	for i, id := range unique {
		i, id := i, id
		g.Go(func() error {
			ticket, err := s.transition(ctx, actor, id, target, message)
			outcomes[i] = outcome{ticket: ticket, err: err}
			return nil
		})
	}
	_ = g.Wait()

	result := BulkResult{Failed: map[string]string{}}
	for i, id := range unique {
		if err := outcomes[i].err; err != nil {
			result.Failed[id] = util.ToDomainError(err).Message
			continue
		}
		result.Succeeded = append(result.Succeeded, id)
		result.Tickets = append(result.Tickets, *outcomes[i].ticket)
	}
	span.SetAttributes(attribute.Int("bulk.failed", len(result.Failed)))

	if len(result.Failed) > 0 {
		s.logger.Warn("bulk transition partially failed",
			zap.Int("succeeded", len(result.Succeeded)),
			zap.Int("failed", len(result.Failed)),
			zap.String("target", string(target)))
		return result, util.NewPartialBulkFailure(result.Failed, len(result.Succeeded))
	}
	return result, nil
}

// UpdateDetails edits the customer-facing details of a ticket that is
// WAITING or ACTIVE.
func (s *TicketService) UpdateDetails(ctx context.Context, actor domain.Actor, ticketID string, input DetailsInput) (*domain.Ticket, error) {
	ctx, span := s.tracer.Start(ctx, "TicketService.UpdateDetails", trace.WithAttributes(
		attribute.String("ticket.id", ticketID),
		attribute.String("actor.role", string(actor.Role)),
	))
	defer span.End()

	// one retry covers a concurrent WAITING to ACTIVE move
	for attempt := 0; ; attempt++ {
		ticket, err := s.load(ctx, ticketID)
		if err != nil {
			return nil, err
		}
		change, changed, err := s.detailsChange(actor, ticket, input)
		if err != nil {
			return nil, err
		}
		updated, err := s.tickets.ApplyChange(ctx, ticket.ID, change)
		if errors.Is(err, repository.ErrStatusChanged) && attempt == 0 {
			continue
		}
		if errors.Is(err, repository.ErrStatusChanged) {
			return nil, util.NewDetailEditForbidden("ticket changed while editing, please retry",
				map[string]any{"ticket_id": ticketID})
		}
		if err != nil {
			return nil, util.NewPersistenceFailure(err, map[string]any{"ticket_id": ticketID})
		}

		s.logger.Info("ticket details updated",
			zap.String("ticket_id", ticketID),
			zap.Strings("fields", changed),
			zap.Stringer("actor", actor))
		s.afterCommit(ctx, actor, events.EventTicketDetailsUpdated, ticket.Status, updated, change.Entry.Message)
		return updated, nil
	}
}

func (s *TicketService) detailsChange(actor domain.Actor, ticket *domain.Ticket, input DetailsInput) (repository.TicketChange, []string, error) {
	details := map[string]any{"ticket_id": ticket.ID, "current_status": ticket.Status}
	var change repository.TicketChange

	if err := domain.CanEditDetails(actor, *ticket); err != nil {
		return change, nil, mapRuleError(err, details)
	}
	if !ticket.Status.Editable() {
		return change, nil, util.NewDetailEditForbidden(
			fmt.Sprintf("details cannot be edited while the ticket is %s", ticket.Status), details)
	}
	if field := immutableChange(ticket, input); field != "" {
		details["field"] = field
		return change, nil, util.NewDetailEditForbidden(fmt.Sprintf("%s cannot be changed", field), details)
	}

	var changed []string
	if input.CustomerName != nil {
		name := strings.TrimSpace(*input.CustomerName)
		if name == "" {
			return change, nil, util.NewValidationError("customer name is required", map[string]any{"field": "customer_name"})
		}
		if name != ticket.CustomerName {
			change.CustomerName = &name
			changed = append(changed, "customer_name")
		}
	}
	if input.Note != nil {
		note, err := validNote(*input.Note)
		if err != nil {
			return change, nil, err
		}
		if note != ticket.Note {
			change.Note = &note
			changed = append(changed, "note")
		}
	}
	if input.Phone != nil {
		phone, err := normalizePhone(*input.Phone)
		if err != nil {
			return change, nil, err
		}
		if phone != ticket.Phone {
			change.Phone = &phone
			changed = append(changed, "phone")
		}
	}

	change.ExpectedStatus = ticket.Status
	change.Status = ticket.Status
	message := "Details updated"
	if len(changed) > 0 {
		message += " (" + strings.Join(changed, ", ") + ")"
	}
	change.Entry = domain.LogEntry{Timestamp: s.now(), Message: message}
	return change, changed, nil
}

// immutableChange names the first schedule or line field supplied with a
// value different from the stored one.
func immutableChange(ticket *domain.Ticket, input DetailsInput) string {
	if input.ServiceLine != nil && *input.ServiceLine != ticket.ServiceLine {
		return "service_line"
	}
	if input.ScheduledDate != nil && !domain.DateOf(*input.ScheduledDate).Equal(ticket.ScheduledDate) {
		return "scheduled_date"
	}
	if input.ScheduledTime != nil {
		slot, err := domain.NormalizeTimeSlot(*input.ScheduledTime)
		if err != nil || slot != ticket.ScheduledTime {
			return "scheduled_time"
		}
	}
	return ""
}

// Queue returns the current ordering of one line.
func (s *TicketService) Queue(ctx context.Context, line domain.ServiceLine) (queue.Snapshot, error) {
	live, err := s.tickets.ListLive(ctx, line)
	if err != nil {
		return queue.Snapshot{}, util.NewPersistenceFailure(err, map[string]any{"service_line": line})
	}
	return queue.Build(live, line), nil
}

// Position computes the one-shot queue position of a ticket.
func (s *TicketService) Position(ctx context.Context, ticketID string) (queue.Position, error) {
	ticket, err := s.load(ctx, ticketID)
	if err != nil {
		return queue.Position{}, err
	}
	var live []domain.Ticket
	if ticket.Status != domain.StatusCancelled {
		if live, err = s.tickets.ListLive(ctx, ticket.ServiceLine); err != nil {
			return queue.Position{}, util.NewPersistenceFailure(err, map[string]any{"ticket_id": ticketID})
		}
	}
	return queue.Locate(*ticket, true, live, s.now()), nil
}

// ListActivity returns the newest activity records.
func (s *TicketService) ListActivity(ctx context.Context, limit int) ([]domain.ActivityRecord, error) {
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	if limit > maxActivityLimit {
		limit = maxActivityLimit
	}
	records, err := s.activity.List(ctx, limit)
	if err != nil {
		return nil, util.NewPersistenceFailure(err, nil)
	}
	return records, nil
}

func (s *TicketService) load(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	if _, err := uuid.Parse(ticketID); err != nil {
		return nil, util.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, util.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	if err != nil {
		return nil, util.NewPersistenceFailure(err, map[string]any{"ticket_id": ticketID})
	}
	return ticket, nil
}

// afterCommit runs the best-effort side effects of a committed mutation.
// Their failures are logged and never reach the caller.
func (s *TicketService) afterCommit(ctx context.Context, actor domain.Actor, eventType events.EventType, from domain.TicketStatus, ticket *domain.Ticket, message string) {
	record := &domain.ActivityRecord{
		TicketID:     ticket.ID,
		CustomerName: ticket.CustomerName,
		ServiceLine:  ticket.ServiceLine,
		Message:      message,
	}
	if s.activity != nil {
		if err := s.activity.Record(ctx, record); err != nil {
			s.logger.Warn("activity record failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
		}
	}

	s.publishEvent(ctx, events.Event{
		Type:         eventType,
		TicketID:     ticket.ID,
		ServiceLine:  ticket.ServiceLine,
		CustomerName: ticket.CustomerName,
		Phone:        ticket.Phone,
		OldStatus:    from,
		NewStatus:    ticket.Status,
		Message:      message,
		Actor:        events.Actor{ID: actor.ID, Role: actor.Role},
	})
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish event failed",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
	}
}

func (s *TicketService) record(line domain.ServiceLine, from, to domain.TicketStatus, outcome string) {
	if s.recorder != nil {
		s.recorder.RecordTransition(string(line), string(from), string(to), outcome)
	}
}

func mapRuleError(err error, details map[string]any) error {
	switch {
	case errors.Is(err, domain.ErrInvalidTransition):
		return util.NewInvalidTransition(err.Error(), details)
	case errors.Is(err, domain.ErrNotPermitted):
		return util.NewUnauthorized(err.Error(), details)
	}
	return util.NewInternalError(err)
}

func validNote(raw string) (string, error) {
	note := strings.TrimSpace(raw)
	if utf8.RuneCountInString(note) > domain.MaxNoteLength {
		return "", util.NewValidationError(
			fmt.Sprintf("note must be at most %d characters", domain.MaxNoteLength),
			map[string]any{"field": "note"})
	}
	return note, nil
}

// normalizePhone strips common separators and keeps a leading plus.
func normalizePhone(raw string) (string, error) {
	var b strings.Builder
	for i, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return "", util.NewValidationError("phone may only contain digits and a leading +", map[string]any{"field": "phone"})
		}
	}
	phone := b.String()
	if phone == "+" || (phone != "" && len(strings.TrimPrefix(phone, "+")) < 6) {
		return "", util.NewValidationError("phone number is too short", map[string]any{"field": "phone"})
	}
	return phone, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
