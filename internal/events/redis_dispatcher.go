package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisDispatcher delivers events to local handlers and fans them out to
// other instances through a Redis pub/sub channel.
type RedisDispatcher struct {
	*registry
	client  *redis.Client
	channel string
	origin  string

	stopOnce sync.Once
	stop     context.CancelFunc
	done     chan struct{}
}

// NewRedisDispatcher subscribes to channel and starts relaying remote
// events. Close stops the relay.
func NewRedisDispatcher(ctx context.Context, client *redis.Client, channel string, logger *zap.Logger) *RedisDispatcher {
	relayCtx, cancel := context.WithCancel(ctx)
	d := &RedisDispatcher{
		registry: newRegistry(logger),
		client:   client,
		channel:  channel,
		origin:   uuid.NewString(),
		stop:     cancel,
		done:     make(chan struct{}),
	}
	pubsub := client.Subscribe(relayCtx, channel)
	go d.relay(relayCtx, pubsub)
	return d
}

// Publish delivers locally, then broadcasts. A broadcast failure is
// returned after local delivery has already happened.
func (d *RedisDispatcher) Publish(ctx context.Context, event Event) error {
	event.Origin = d.origin
	d.deliver(ctx, event)

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := d.client.Publish(ctx, d.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

func (d *RedisDispatcher) relay(ctx context.Context, pubsub *redis.PubSub) {
	defer close(d.done)
	defer pubsub.Close()

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				d.logger.Warn("dropping malformed event", zap.Error(err))
				continue
			}
			if event.Origin == d.origin {
				continue
			}
			event.Remote = true
			d.deliver(ctx, event)
		}
	}
}

// Close stops the relay goroutine and waits for it to exit.
func (d *RedisDispatcher) Close() {
	d.stopOnce.Do(func() {
		d.stop()
		<-d.done
	})
}
