// Package service owns the coordination state: chat messages, drivers,
// orders, agent logs and the processing flag. State changes only through the
// scripted workflows and the churn tick; reads return detached copies.
package service

import (
	"context"
	"errors"
	"math/rand"
	"sync"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/lastmile/coordinator/internal/common/config"
	"github.com/lastmile/coordinator/internal/common/logger"
	"github.com/lastmile/coordinator/internal/common/tracing"
	"github.com/lastmile/coordinator/internal/coordinator/models"
	"github.com/lastmile/coordinator/internal/coordinator/scenario"
	"github.com/lastmile/coordinator/internal/coordinator/script"
	"github.com/lastmile/coordinator/internal/events"
	"github.com/lastmile/coordinator/internal/events/bus"
)

var (
	ErrBusy         = errors.New("a coordination workflow is already in progress")
	ErrEmptyMessage = errors.New("message content is empty")
)

const eventSource = "coordinator-service"

// Option customises a Service.
type Option func(*Service)

// WithClock replaces the real clock, typically with a fake in tests.
func WithClock(c clockwork.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithRand replaces the random source used for ids and churn.
func WithRand(r *rand.Rand) Option {
	return func(s *Service) { s.rng = r }
}

// Service is the coordination simulator.
type Service struct {
	cfg      config.SimulationConfig
	eventBus bus.EventBus
	logger   *logger.Logger
	clock    clockwork.Clock
	runner   *script.Runner
	tracer   trace.Tracer

	quickActions []scenario.QuickAction

	mu         sync.RWMutex
	rng        *rand.Rand
	messages   []models.Message
	drivers    []models.Driver
	orders     []models.DeliveryOrder
	logs       []models.AgentLog
	processing bool
	lastAction *models.AgentAction

	// lifetime of background workflows
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService seeds a Service from sc. eventBus may be nil.
func NewService(sc *scenario.Scenario, cfg config.SimulationConfig, eventBus bus.EventBus, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		cfg:      cfg,
		eventBus: eventBus,
		logger:   log.WithComponent("coordinator"),
		clock:    clockwork.NewRealClock(),
		tracer:   tracing.Tracer("coordinator"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		seed := cfg.Seed
		if seed == 0 {
			seed = s.clock.Now().UnixNano()
		}
		s.rng = rand.New(rand.NewSource(seed))
	}
	s.runner = script.NewRunner(s.clock,
		script.WithTimeScale(cfg.TimeScale),
		script.WithObserver(func(st script.State) {
			s.logger.Debug("workflow step", zap.String("state", st.String()))
		}),
	)
	s.ctx, s.cancel = context.WithCancel(context.Background())

	now := s.clock.Now()
	s.messages = []models.Message{sc.GreetingMessage(now)}
	s.drivers = models.CloneDrivers(sc.Drivers)
	s.orders = models.CloneOrders(sc.Orders)
	s.logs = []models.AgentLog{}
	s.quickActions = append([]scenario.QuickAction(nil), sc.QuickActions...)
	return s
}

// Snapshot returns a deep copy of the whole state.
func (s *Service) Snapshot() models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.Snapshot{
		Messages:        models.CloneMessages(s.messages),
		Drivers:         models.CloneDrivers(s.drivers),
		Orders:          models.CloneOrders(s.orders),
		AgentLogs:       models.CloneLogs(s.logs),
		IsProcessing:    s.processing,
		LastAgentAction: s.lastAction.Clone(),
	}
}

func (s *Service) Messages() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.CloneMessages(s.messages)
}

func (s *Service) Drivers() []models.Driver {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.CloneDrivers(s.drivers)
}

// Driver returns the driver with id.
func (s *Service) Driver(id string) (models.Driver, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.drivers {
		if d.ID == id {
			return d, true
		}
	}
	return models.Driver{}, false
}

func (s *Service) Orders() []models.DeliveryOrder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.CloneOrders(s.orders)
}

// LogFilter narrows AgentLogs. Zero fields match everything; Limit keeps the
// most recent entries.
type LogFilter struct {
	Type     models.LogType
	DriverID string
	Limit    int
}

// AgentLogs returns the logs matching f in append order.
func (s *Service) AgentLogs(f LogFilter) []models.AgentLog {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.AgentLog, 0, len(s.logs))
	for _, l := range s.logs {
		if f.Type != "" && l.Type != f.Type {
			continue
		}
		if f.DriverID != "" && l.DriverID != f.DriverID {
			continue
		}
		out = append(out, l.Clone())
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out
}

// LastAgentLog returns the most recent agent log, if any.
func (s *Service) LastAgentLog() (models.AgentLog, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.logs) == 0 {
		return models.AgentLog{}, false
	}
	return s.logs[len(s.logs)-1].Clone(), true
}

// DriverSummary counts the current driver list by status.
func (s *Service) DriverSummary() models.DriverSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.Summarize(s.drivers)
}

func (s *Service) IsProcessing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.processing
}

// QuickActions lists the canned customer inputs of the scenario.
func (s *Service) QuickActions() []scenario.QuickAction {
	return append([]scenario.QuickAction(nil), s.quickActions...)
}

// DefaultCustomerID is used when a caller does not name a customer.
func (s *Service) DefaultCustomerID() string {
	return s.cfg.DefaultCustomerID
}

// Clock returns the clock driving workflows and churn.
func (s *Service) Clock() clockwork.Clock {
	return s.clock
}

// Wait blocks until every background workflow has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Close cancels background workflows and waits for them to exit.
func (s *Service) Close() {
	s.cancel()
	s.wg.Wait()
}

// begin claims the processing flag or reports ErrBusy.
func (s *Service) begin(ctx context.Context) error {
	s.mu.Lock()
	if s.processing {
		s.mu.Unlock()
		return ErrBusy
	}
	s.processing = true
	s.mu.Unlock()

	s.publish(ctx, events.ProcessingChanged, map[string]any{"is_processing": true})
	return nil
}

// end releases the processing flag.
func (s *Service) end(ctx context.Context) {
	s.mu.Lock()
	s.processing = false
	s.mu.Unlock()

	s.publish(ctx, events.ProcessingChanged, map[string]any{"is_processing": false})
}

type messageDraft struct {
	Content  string
	Sender   models.Sender
	Actions  []string
	Priority models.Priority
}

func (s *Service) appendMessage(ctx context.Context, d messageDraft) models.Message {
	s.mu.Lock()
	now := s.clock.Now()
	msg := models.Message{
		ID:        models.NewID("msg", now, s.rng),
		Content:   d.Content,
		Sender:    d.Sender,
		Timestamp: now,
		Actions:   append([]string(nil), d.Actions...),
		Priority:  d.Priority,
	}
	if len(msg.Actions) == 0 {
		msg.Actions = nil
	}
	s.messages = append(s.messages, msg)
	s.mu.Unlock()

	s.publish(ctx, events.MessageAdded, msg.Clone())
	return msg
}

func (s *Service) appendLog(ctx context.Context, d logDraft) models.AgentLog {
	s.mu.Lock()
	now := s.clock.Now()
	entry := models.AgentLog{
		ID:          models.NewID("log", now, s.rng),
		Timestamp:   now,
		Type:        d.Type,
		Action:      d.Action,
		Description: d.Description,
		Metadata:    d.Metadata,
		DriverID:    d.DriverID,
		CustomerID:  d.CustomerID,
	}
	s.logs = append(s.logs, entry)
	s.mu.Unlock()

	s.logger.Info("agent log appended",
		zap.String("log_type", string(entry.Type)),
		zap.String("action", entry.Action))
	s.publish(ctx, events.AgentLogAdded, entry.Clone())
	return entry
}

func (s *Service) setLastAction(a models.AgentAction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAction = &a
}
