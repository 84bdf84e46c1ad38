package websocket

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/lastmile/coordinator/internal/common/logger"
	"github.com/lastmile/coordinator/internal/events"
	"github.com/lastmile/coordinator/internal/events/bus"
	ws "github.com/lastmile/coordinator/pkg/websocket"
)

// EventBroadcaster relays bus events to every WebSocket client. The
// notification action is the event subject.
type EventBroadcaster struct {
	hub           *Hub
	mu            sync.Mutex
	subscriptions []bus.Subscription
	logger        *logger.Logger
}

// RegisterNotifications subscribes to every coordinator subject until ctx ends.
func RegisterNotifications(ctx context.Context, eventBus bus.EventBus, hub *Hub, log *logger.Logger) *EventBroadcaster {
	b := &EventBroadcaster{
		hub:    hub,
		logger: log.WithFields(zap.String("component", "ws-event-broadcaster")),
	}
	if eventBus == nil {
		return b
	}

	for _, pattern := range events.All {
		b.subscribe(eventBus, pattern)
	}

	go func() {
		<-ctx.Done()
		b.Close()
	}()

	return b
}

// Close drops every bus subscription.
func (b *EventBroadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subscriptions {
		if sub != nil && sub.IsValid() {
			_ = sub.Unsubscribe()
		}
	}
	b.subscriptions = nil
}

func (b *EventBroadcaster) subscribe(eventBus bus.EventBus, subject string) {
	sub, err := eventBus.Subscribe(subject, func(ctx context.Context, event *bus.Event) error {
		msg, err := ws.NewNotification(event.Type, event.Data)
		if err != nil {
			b.logger.Error("failed to build websocket notification", zap.String("action", event.Type), zap.Error(err))
			return nil
		}
		b.hub.Broadcast(msg)
		return nil
	})
	if err != nil {
		b.logger.Error("failed to subscribe to events", zap.String("subject", subject), zap.Error(err))
		return
	}
	b.mu.Lock()
	b.subscriptions = append(b.subscriptions, sub)
	b.mu.Unlock()
}
