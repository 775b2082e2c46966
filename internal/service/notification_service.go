package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/petcare-queue/internal/domain"
	"github.com/spec-kit/petcare-queue/internal/events"
	"github.com/spec-kit/petcare-queue/internal/notify"
)

// NotificationRecorder counts delivery outcomes.
type NotificationRecorder interface {
	RecordNotification(eventType, outcome string)
}

// NotificationService turns ticket events into customer messages.
// Delivery is fire-and-forget: it never delays or fails the mutation that
// produced the event.
type NotificationService struct {
	dispatcher events.Dispatcher
	sender     notify.Sender
	recorder   NotificationRecorder
	logger     *zap.Logger
	trackURL   string

	inflight sync.WaitGroup
}

// NewNotificationService creates the service. publicURL is the base of the
// customer-facing tracking link.
func NewNotificationService(dispatcher events.Dispatcher, sender notify.Sender, recorder NotificationRecorder, publicURL string, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		sender:     sender,
		recorder:   recorder,
		logger:     logger,
		trackURL:   strings.TrimRight(publicURL, "/"),
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handle)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handle)
}

func (n *NotificationService) handle(ctx context.Context, event events.Event) error {
	// the instance that made the change sends the message
	if event.Remote {
		return nil
	}
	if event.Phone == "" {
		return nil
	}
	text := n.compose(event)
	if text == "" {
		return nil
	}

	n.inflight.Add(1)
	go func() {
		defer n.inflight.Done()
		sendCtx := context.WithoutCancel(ctx)
		if err := n.sender.Send(sendCtx, event.Phone, text); err != nil {
			n.count(event, "failed")
			n.logger.Warn("notification failed",
				zap.String("ticket_id", event.TicketID),
				zap.String("event_type", string(event.Type)),
				zap.Error(err))
			return
		}
		n.count(event, "sent")
		n.logger.Debug("notification sent",
			zap.String("ticket_id", event.TicketID),
			zap.String("status", string(event.NewStatus)))
	}()
	return nil
}

// Wait blocks until in-flight deliveries finish.
func (n *NotificationService) Wait() {
	n.inflight.Wait()
}

func (n *NotificationService) count(event events.Event, outcome string) {
	if n.recorder != nil {
		n.recorder.RecordNotification(string(event.Type), outcome)
	}
}

func (n *NotificationService) compose(event events.Event) string {
	line := strings.ToLower(string(event.ServiceLine))
	name := event.CustomerName
	switch {
	case event.Type == events.EventTicketCreated:
		return fmt.Sprintf("Hi %s, we received your %s request. Follow your place in the queue: %s",
			name, line, n.trackingLink(event.TicketID))
	case event.Type != events.EventTicketStatusChanged:
		return ""
	}

	switch event.NewStatus {
	case domain.StatusWaiting:
		return fmt.Sprintf("Hi %s, your %s visit is confirmed and you are now in the queue: %s",
			name, line, n.trackingLink(event.TicketID))
	case domain.StatusActive:
		return fmt.Sprintf("Hi %s, it's your turn! Please come to the %s counter.", name, line)
	case domain.StatusPayment:
		return fmt.Sprintf("Hi %s, the %s service is done. Please proceed to payment.", name, line)
	case domain.StatusCompleted:
		return fmt.Sprintf("Thank you %s, your visit is complete. See you next time!", name)
	case domain.StatusCancelled:
		return fmt.Sprintf("Hi %s, your %s visit was cancelled: %s", name, line, event.Message)
	}
	return ""
}

func (n *NotificationService) trackingLink(ticketID string) string {
	return n.trackURL + "/tickets/" + ticketID + "/position"
}
