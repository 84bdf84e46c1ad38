// Package reasoning derives the agent's displayed confidence and reasoning
// steps from the coordinator's processing state.
package reasoning

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/lastmile/coordinator/internal/common/logger"
	"github.com/lastmile/coordinator/internal/coordinator/models"
	"github.com/lastmile/coordinator/internal/events"
	"github.com/lastmile/coordinator/internal/events/bus"
)

const (
	InitialConfidence = 92.0

	busyCenter, busySpread, busyMin, busyMax = 85.0, 4.0, 75.0, 95.0
	idleCenter, idleSpread, idleMin, idleMax = 92.0, 2.0, 88.0, 96.0
)

type StepStatus string

const (
	StepCompleted StepStatus = "completed"
	StepActive    StepStatus = "active"
	StepPending   StepStatus = "pending"
)

type Step struct {
	Step        string     `json:"step"`
	Status      StepStatus `json:"status"`
	Description string     `json:"description"`
}

// View is what the reasoning panel shows.
type View struct {
	Confidence   float64          `json:"confidence"`
	IsProcessing bool             `json:"is_processing"`
	Steps        []Step           `json:"steps"`
	LastAction   *models.AgentLog `json:"last_action,omitempty"`
}

// Source is the slice of the coordinator the monitor reads.
type Source interface {
	IsProcessing() bool
	LastAgentLog() (models.AgentLog, bool)
}

// Monitor recomputes confidence on each tick.
type Monitor struct {
	src      Source
	interval time.Duration
	eventBus bus.EventBus
	logger   *logger.Logger
	clock    clockwork.Clock

	mu         sync.Mutex
	rng        *rand.Rand
	confidence float64
}

// NewMonitor creates a Monitor reading src. eventBus may be nil.
func NewMonitor(src Source, interval time.Duration, clock clockwork.Clock, rng *rand.Rand, eventBus bus.EventBus, log *logger.Logger) *Monitor {
	return &Monitor{
		src:        src,
		interval:   interval,
		eventBus:   eventBus,
		logger:     log.WithComponent("reasoning"),
		clock:      clock,
		rng:        rng,
		confidence: InitialConfidence,
	}
}

// Update draws a new confidence for the current processing state.
func (m *Monitor) Update(ctx context.Context) float64 {
	processing := m.src.IsProcessing()

	m.mu.Lock()
	if processing {
		m.confidence = m.draw(busyCenter, busySpread, busyMin, busyMax)
	} else {
		m.confidence = m.draw(idleCenter, idleSpread, idleMin, idleMax)
	}
	c := m.confidence
	m.mu.Unlock()

	if m.eventBus != nil {
		data := map[string]any{"confidence": c, "is_processing": processing}
		if err := m.eventBus.Publish(ctx, events.ReasoningUpdated, bus.NewEvent(events.ReasoningUpdated, "reasoning-monitor", data)); err != nil {
			m.logger.Warn("failed to publish reasoning update", zap.Error(err))
		}
	}
	return c
}

func (m *Monitor) draw(center, spread, lo, hi float64) float64 {
	v := center + (m.rng.Float64()*2-1)*spread
	return math.Max(lo, math.Min(hi, v))
}

// Confidence returns the last computed value.
func (m *Monitor) Confidence() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.confidence
}

// View assembles the panel state.
func (m *Monitor) View() View {
	processing := m.src.IsProcessing()
	v := View{
		Confidence:   m.Confidence(),
		IsProcessing: processing,
		Steps:        Steps(processing),
	}
	if last, ok := m.src.LastAgentLog(); ok {
		v.LastAction = &last
	}
	return v
}

// Steps lists the reasoning steps for the given processing state.
func Steps(processing bool) []Step {
	identify, execute := StepCompleted, StepCompleted
	if processing {
		identify, execute = StepActive, StepPending
	}
	return []Step{
		{Step: "Analyze Customer Input", Status: StepCompleted, Description: "Parse message for delivery issue indicators"},
		{Step: "Identify Issue Type", Status: identify, Description: "Classify as driver delay inquiry"},
		{Step: "Execute Response Protocol", Status: execute, Description: "Trigger multi-step coordination workflow"},
		{Step: "Monitor Resolution", Status: StepPending, Description: "Track driver response and customer satisfaction"},
	}
}

// Run ticks Update every interval until ctx ends.
func (m *Monitor) Run(ctx context.Context) error {
	if m.interval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			m.Update(ctx)
		}
	}
}
