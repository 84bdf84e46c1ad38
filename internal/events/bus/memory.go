package bus

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/lastmile/coordinator/internal/common/logger"
)

// ErrBusClosed is returned by operations on a closed bus.
var ErrBusClosed = errors.New("event bus is closed")

// subscriberBuffer bounds the per-subscription backlog. A subscriber that
// falls this far behind starts dropping events.
const subscriberBuffer = 256

// MemoryEventBus implements EventBus in-process. Every subscription owns a
// delivery goroutine, so a subscriber sees events in publish order.
type MemoryEventBus struct {
	subscriptions map[string][]*memorySubscription
	queues        map[string]*queueGroup
	mu            sync.RWMutex
	logger        *logger.Logger
	closed        bool
}

type delivery struct {
	ctx     context.Context
	subject string
	event   *Event
}

type memorySubscription struct {
	bus     *MemoryEventBus
	subject string
	pattern *regexp.Regexp
	handler EventHandler
	queue   string

	inbox chan delivery
	done  chan struct{}
	once  sync.Once
}

type queueGroup struct {
	subscribers []*memorySubscription
	nextIndex   int
}

// NewMemoryEventBus creates a new in-memory event bus
func NewMemoryEventBus(log *logger.Logger) *MemoryEventBus {
	return &MemoryEventBus{
		subscriptions: make(map[string][]*memorySubscription),
		queues:        make(map[string]*queueGroup),
		logger:        log.WithComponent("memory_bus"),
	}
}

func (b *MemoryEventBus) newSubscription(subject, queue string, handler EventHandler) *memorySubscription {
	sub := &memorySubscription{
		bus:     b,
		subject: subject,
		pattern: compilePattern(subject),
		handler: handler,
		queue:   queue,
		inbox:   make(chan delivery, subscriberBuffer),
		done:    make(chan struct{}),
	}
	go sub.loop()
	return sub
}

func (s *memorySubscription) loop() {
	for {
		select {
		case <-s.done:
			return
		case d := <-s.inbox:
			if err := s.handler(d.ctx, d.event); err != nil {
				s.bus.logger.Error("Event handler error",
					zap.String("subject", d.subject),
					zap.String("queue", s.queue),
					zap.Error(err))
			}
		}
	}
}

func (s *memorySubscription) deliver(d delivery) {
	select {
	case <-s.done:
	case s.inbox <- d:
	default:
		s.bus.logger.Warn("Subscriber backlog full, dropping event",
			zap.String("subject", d.subject),
			zap.String("event_type", d.event.Type))
	}
}

func (s *memorySubscription) stop() {
	s.once.Do(func() { close(s.done) })
}

// Unsubscribe removes the subscription
func (s *memorySubscription) Unsubscribe() error {
	s.stop()

	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	s.bus.subscriptions[s.subject] = removeSub(s.bus.subscriptions[s.subject], s)
	if len(s.bus.subscriptions[s.subject]) == 0 {
		delete(s.bus.subscriptions, s.subject)
	}
	if s.queue != "" {
		key := queueKey(s.queue, s.subject)
		if qg, ok := s.bus.queues[key]; ok {
			qg.subscribers = removeSub(qg.subscribers, s)
			if len(qg.subscribers) == 0 {
				delete(s.bus.queues, key)
			}
		}
	}
	return nil
}

// IsValid returns whether the subscription is still active
func (s *memorySubscription) IsValid() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

func removeSub(subs []*memorySubscription, target *memorySubscription) []*memorySubscription {
	for i, sub := range subs {
		if sub == target {
			return append(subs[:i], subs[i+1:]...)
		}
	}
	return subs
}

func queueKey(queue, subject string) string {
	return queue + ":" + subject
}

// Publish sends an event to all matching subscribers. Queue groups receive
// it once, round-robin.
func (b *MemoryEventBus) Publish(ctx context.Context, subject string, event *Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}

	d := delivery{ctx: context.WithoutCancel(ctx), subject: subject, event: event}
	deliveredQueues := make(map[string]bool)

	for pattern, subs := range b.subscriptions {
		for _, sub := range subs {
			if !sub.IsValid() || !matches(subject, pattern, sub.pattern) {
				continue
			}
			if sub.queue == "" {
				sub.deliver(d)
				continue
			}
			key := queueKey(sub.queue, pattern)
			if deliveredQueues[key] {
				continue
			}
			deliveredQueues[key] = true
			b.publishToQueue(key, d)
		}
	}

	b.logger.Debug("Published event",
		zap.String("subject", subject),
		zap.String("event_id", event.ID),
		zap.String("event_type", event.Type))
	return nil
}

// publishToQueue hands the event to the next live member of the group. Callers hold b.mu.
func (b *MemoryEventBus) publishToQueue(key string, d delivery) {
	qg, ok := b.queues[key]
	if !ok || len(qg.subscribers) == 0 {
		return
	}
	for i := 0; i < len(qg.subscribers); i++ {
		idx := (qg.nextIndex + i) % len(qg.subscribers)
		sub := qg.subscribers[idx]
		if sub.IsValid() {
			qg.nextIndex = (idx + 1) % len(qg.subscribers)
			sub.deliver(d)
			return
		}
	}
}

// Subscribe creates a subscription to a subject pattern
func (b *MemoryEventBus) Subscribe(subject string, handler EventHandler) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}

	sub := b.newSubscription(subject, "", handler)
	b.subscriptions[subject] = append(b.subscriptions[subject], sub)

	b.logger.Debug("Subscribed to subject", zap.String("subject", subject))
	return sub, nil
}

// QueueSubscribe creates a queue subscription; only one member of the group
// receives each event.
func (b *MemoryEventBus) QueueSubscribe(subject, queue string, handler EventHandler) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}

	sub := b.newSubscription(subject, queue, handler)
	b.subscriptions[subject] = append(b.subscriptions[subject], sub)

	key := queueKey(queue, subject)
	qg, ok := b.queues[key]
	if !ok {
		qg = &queueGroup{}
		b.queues[key] = qg
	}
	qg.subscribers = append(qg.subscribers, sub)

	b.logger.Debug("Queue subscribed to subject",
		zap.String("subject", subject),
		zap.String("queue", queue))
	return sub, nil
}

// Close stops every subscription and rejects further use.
func (b *MemoryEventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for _, subs := range b.subscriptions {
		for _, sub := range subs {
			sub.stop()
		}
	}
	b.subscriptions = make(map[string][]*memorySubscription)
	b.queues = make(map[string]*queueGroup)

	b.logger.Info("Memory event bus closed")
}

// IsConnected reports whether the bus is still open.
func (b *MemoryEventBus) IsConnected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return !b.closed
}

// matches supports NATS-style wildcards: * (single token) and > (remaining tokens).
func matches(subject, pattern string, regex *regexp.Regexp) bool {
	if regex == nil {
		return subject == pattern
	}
	return regex.MatchString(subject)
}

// compilePattern converts a NATS-style pattern to a regex, or nil for literal subjects.
func compilePattern(pattern string) *regexp.Regexp {
	if !strings.Contains(pattern, "*") && !strings.Contains(pattern, ">") {
		return nil
	}

	escaped := regexp.QuoteMeta(pattern)
	escaped = strings.ReplaceAll(escaped, `\*`, `[^.]+`)
	escaped = strings.ReplaceAll(escaped, `>`, `.+`)

	regex, err := regexp.Compile("^" + escaped + "$")
	if err != nil {
		return nil
	}
	return regex
}

// Match reports whether subject matches a NATS-style pattern.
func Match(subject, pattern string) bool {
	return matches(subject, pattern, compilePattern(pattern))
}
