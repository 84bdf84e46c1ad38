// Package motion animates drivers along fixed map paths. The animation is
// decorative: drivers ping-pong along their path forever and never arrive.
package motion

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

// Canvas bounds of the map in display units.
const (
	CanvasWidth  = models.CanvasWidth
	CanvasHeight = models.CanvasHeight
)

const (
	speedActive = 0.02
	speedBusy   = 0.012
	speedJitter = 0.004

	congestionChance = 0.10
	congestionFactor = 0.3
	openRoadChance   = 0.05
	openRoadFactor   = 1.8
	approachWindow   = 0.10
	approachFactor   = 0.6

	turnHigh = 0.98
	turnLow  = 0.02
	noise    = 1.5
)

// DriverSource supplies the driver list to follow.
type DriverSource interface {
	Drivers() []models.Driver
}

type driverState struct {
	id        string
	status    models.DriverStatus
	path      []models.Point
	progress  float64
	direction int
	speed     float64
	x, y      float64
	heading   float64
}

// Simulator holds the motion state of every known driver.
type Simulator struct {
	paths    [][]models.Point
	interval time.Duration
	clock    clockwork.Clock
	eventBus bus.EventBus
	logger   *logger.Logger

	mu     sync.Mutex
	rng    *rand.Rand
	states map[string]*driverState
	order  []string
}

// NewSimulator creates a Simulator over paths. eventBus may be nil.
func NewSimulator(paths [][]models.Point, interval time.Duration, clock clockwork.Clock, rng *rand.Rand, eventBus bus.EventBus, log *logger.Logger) *Simulator {
	return &Simulator{
		paths:    paths,
		interval: interval,
		clock:    clock,
		eventBus: eventBus,
		logger:   log.WithComponent("motion"),
		rng:      rng,
		states:   make(map[string]*driverState),
	}
}

// Sync reconciles the simulator with drivers. New drivers get a path by
// cyclic assignment, a random start and direction; known drivers keep their
// motion and pick up status changes; missing drivers are dropped.
func (s *Simulator) Sync(drivers []models.Driver) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]*driverState, len(drivers))
	order := make([]string, 0, len(drivers))
	for i, d := range drivers {
		st, ok := s.states[d.ID]
		switch {
		case !ok:
			st = s.place(d, s.paths[i%len(s.paths)])
		case st.status != d.Status:
			st.status = d.Status
			st.speed = s.baseSpeed(d.Status)
		}
		next[d.ID] = st
		order = append(order, d.ID)
	}
	s.states = next
	s.order = order
}

func (s *Simulator) place(d models.Driver, path []models.Point) *driverState {
	st := &driverState{
		id:        d.ID,
		status:    d.Status,
		path:      path,
		progress:  s.rng.Float64(),
		direction: 1,
		speed:     s.baseSpeed(d.Status),
	}
	if s.rng.Intn(2) == 0 {
		st.direction = -1
	}
	p := interpolate(path, st.progress)
	st.x = clamp(p.X, 0, CanvasWidth)
	st.y = clamp(p.Y, 0, CanvasHeight)
	st.heading = heading(path, st.progress, st.direction)
	return st
}

func (s *Simulator) baseSpeed(status models.DriverStatus) float64 {
	var base float64
	switch status {
	case models.DriverStatusActive:
		base = speedActive
	case models.DriverStatusBusy:
		base = speedBusy
	default:
		return 0
	}
	return base + (s.rng.Float64()*2-1)*speedJitter
}

// Tick advances every moving driver one step and returns the new positions.
func (s *Simulator) Tick(ctx context.Context) []models.Position {
	s.mu.Lock()
	for _, id := range s.order {
		st := s.states[id]
		if !st.status.Moving() {
			continue
		}
		s.advance(st)
	}
	positions := s.positionsLocked()
	s.mu.Unlock()

	if s.eventBus != nil {
		event := bus.NewEvent(events.DriverMoved, "motion-simulator", positions)
		if err := s.eventBus.Publish(ctx, events.DriverMoved, event); err != nil {
			s.logger.Warn("failed to publish driver positions", zap.Error(err))
		}
	}
	return positions
}

func (s *Simulator) advance(st *driverState) {
	speed := st.speed
	if s.rng.Float64() < congestionChance {
		speed *= congestionFactor
	}
	if s.rng.Float64() < openRoadChance {
		speed *= openRoadFactor
	}
	if nearWaypoint(st.path, st.progress, st.direction) {
		speed *= approachFactor
	}

	st.progress += speed * float64(st.direction)
	if st.progress > 1 {
		st.progress = turnHigh
		st.direction = -1
	} else if st.progress < 0 {
		st.progress = turnLow
		st.direction = 1
	}

	p := interpolate(st.path, st.progress)
	st.x = clamp(p.X+(s.rng.Float64()*2-1)*noise, 0, CanvasWidth)
	st.y = clamp(p.Y+(s.rng.Float64()*2-1)*noise, 0, CanvasHeight)
	st.heading = heading(st.path, st.progress, st.direction)
}

// Positions returns the current position of every driver in sync order.
func (s *Simulator) Positions() []models.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positionsLocked()
}

func (s *Simulator) positionsLocked() []models.Position {
	out := make([]models.Position, 0, len(s.order))
	for _, id := range s.order {
		st := s.states[id]
		out = append(out, models.Position{
			DriverID:  st.id,
			Status:    st.status,
			X:         st.x,
			Y:         st.y,
			Heading:   st.heading,
			Progress:  st.progress,
			Direction: st.direction,
			Speed:     st.speed,
			Path:      append([]models.Point(nil), st.path...),
		})
	}
	return out
}

// Run resyncs from src and ticks every interval until ctx ends.
func (s *Simulator) Run(ctx context.Context, src DriverSource) error {
	s.Sync(src.Drivers())
	if s.interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("motion simulator started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			s.Sync(src.Drivers())
			s.Tick(ctx)
		}
	}
}

// segment locates progress p on path: the segment index and the fraction
// travelled within it.
func segment(path []models.Point, p float64) (int, float64) {
	n := len(path) - 1
	f := p * float64(n)
	i := int(math.Floor(f))
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i, f - float64(i)
}

func interpolate(path []models.Point, p float64) models.Point {
	i, t := segment(path, p)
	a, b := path[i], path[i+1]
	return models.Point{X: a.X + (b.X-a.X)*t, Y: a.Y + (b.Y-a.Y)*t}
}

// heading is the travel angle in degrees, [0,360).
func heading(path []models.Point, p float64, direction int) float64 {
	i, _ := segment(path, p)
	a, b := path[i], path[i+1]
	deg := math.Atan2(b.Y-a.Y, b.X-a.X) * 180 / math.Pi
	if direction < 0 {
		deg += 180
	}
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// nearWaypoint reports whether less than approachWindow of the current
// segment remains before the next waypoint in the direction of travel.
func nearWaypoint(path []models.Point, p float64, direction int) bool {
	_, t := segment(path, p)
	if direction > 0 {
		return 1-t < approachWindow
	}
	return t < approachWindow
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
