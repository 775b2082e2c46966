package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/petcare-queue/internal/config"
)

func TestWhatsAppSenderPostsPayload(t *testing.T) {
	var (
		got  gatewayPayload
		auth string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sender := NewWhatsAppSender(srv.URL, "secret", time.Second)
	if err := sender.Send(context.Background(), "+6281234", "your turn"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.Channel != "whatsapp" || got.Recipient != "+6281234" || got.Message != "your turn" {
		t.Fatalf("payload %+v", got)
	}
	if auth != "Bearer secret" {
		t.Fatalf("authorization %q", auth)
	}
}

func TestWhatsAppSenderRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewWhatsAppSender(srv.URL, "", time.Second).Send(context.Background(), "+1", "hi")
	if err == nil {
		t.Fatalf("expected error on 429")
	}
}

func TestSendersRequireRecipient(t *testing.T) {
	senders := []Sender{
		NewLogSender(zap.NewNop()),
		NewWhatsAppSender("http://127.0.0.1:1", "", time.Second),
	}
	for _, s := range senders {
		if err := s.Send(context.Background(), "", "hi"); !errors.Is(err, ErrNoRecipient) {
			t.Fatalf("%T: got %v", s, err)
		}
	}
}

func TestNewSenderFallsBackToLog(t *testing.T) {
	if _, ok := NewSender(config.NotificationConfig{}, zap.NewNop()).(*LogSender); !ok {
		t.Fatalf("expected LogSender without webhook")
	}
	if _, ok := NewSender(config.NotificationConfig{WebhookURL: "http://gw"}, zap.NewNop()).(*WhatsAppSender); !ok {
		t.Fatalf("expected WhatsAppSender with webhook")
	}
}
