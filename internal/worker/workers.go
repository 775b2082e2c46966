// Package worker starts the background consumers of ticket events.
package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/petcare-queue/internal/events"
	"github.com/spec-kit/petcare-queue/internal/feed"
	"github.com/spec-kit/petcare-queue/internal/service"
)

// Group tracks the goroutines started by this package so shutdown can wait
// for them.
type Group struct {
	wg     sync.WaitGroup
	logger *zap.Logger
}

// NewGroup creates an empty worker group.
func NewGroup(logger *zap.Logger) *Group {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Group{logger: logger}
}

// StartNotificationWorker registers notification handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}

// StartFeedWorker subscribes hub to ticket events and runs its reload loop
// until ctx ends.
func (g *Group) StartFeedWorker(ctx context.Context, hub *feed.Hub, dispatcher events.Dispatcher) {
	if hub == nil {
		return
	}
	hub.Subscribe(dispatcher)
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		g.logger.Info("live feed worker started")
		hub.Run(ctx)
		g.logger.Info("live feed worker stopped")
	}()
}

// Wait blocks until every started worker returns and in-flight
// notifications are delivered.
func (g *Group) Wait(notifications *service.NotificationService) {
	g.wg.Wait()
	if notifications != nil {
		notifications.Wait()
	}
}
