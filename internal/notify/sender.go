package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/petcare-queue/internal/config"
)

// ErrNoRecipient is returned when a message has no phone number to go to.
var ErrNoRecipient = errors.New("notify: no recipient")

// Sender delivers one text message to a phone number.
type Sender interface {
	Send(ctx context.Context, phone, text string) error
}

// NewSender picks the WhatsApp gateway when a webhook is configured and
// falls back to logging otherwise.
func NewSender(cfg config.NotificationConfig, logger *zap.Logger) Sender {
	if cfg.WebhookURL == "" {
		logger.Info("whatsapp webhook not configured; notifications will be logged")
		return NewLogSender(logger)
	}
	return NewWhatsAppSender(cfg.WebhookURL, cfg.WebhookToken, cfg.Timeout())
}

// LogSender writes messages to the log instead of sending them.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender builds a LogSender.
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, phone, text string) error {
	if phone == "" {
		return ErrNoRecipient
	}
	s.logger.Info("notification", zap.String("channel", "log"), zap.String("recipient", phone), zap.String("message", text))
	return nil
}

// WhatsAppSender posts messages to an HTTP gateway as
// {"channel":"whatsapp","recipient":...,"message":...}.
type WhatsAppSender struct {
	url     string
	token   string
	timeout time.Duration
}

// NewWhatsAppSender builds a sender for the gateway at url.
func NewWhatsAppSender(url, token string, timeout time.Duration) *WhatsAppSender {
	return &WhatsAppSender{url: url, token: token, timeout: timeout}
}

type gatewayPayload struct {
	Channel   string `json:"channel"`
	Recipient string `json:"recipient"`
	Message   string `json:"message"`
}

func (s *WhatsAppSender) Send(ctx context.Context, phone, text string) error {
	if phone == "" {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	timeout := s.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	agent := fiber.Post(s.url).
		JSON(gatewayPayload{Channel: "whatsapp", Recipient: phone, Message: text}).
		Timeout(timeout)
	if s.token != "" {
		agent.Set(fiber.HeaderAuthorization, "Bearer "+s.token)
	}

	status, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("whatsapp gateway: %w", errors.Join(errs...))
	}
	if status >= fiber.StatusMultipleChoices {
		return fmt.Errorf("whatsapp gateway rejected message: status %d: %s", status, truncate(body, 200))
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n])
	}
	return string(b)
}
