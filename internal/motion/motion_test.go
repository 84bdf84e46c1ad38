package motion

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lastmile/coordinator/internal/common/logger"
	"github.com/lastmile/coordinator/internal/coordinator/models"
	"github.com/lastmile/coordinator/internal/coordinator/scenario"
	"github.com/lastmile/coordinator/internal/events"
	"github.com/lastmile/coordinator/internal/events/bus"
)

func seeded(t *testing.T, eventBus bus.EventBus) (*Simulator, *scenario.Scenario, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	sc, err := scenario.Default(clock.Now())
	require.NoError(t, err)
	sim := NewSimulator(sc.Paths, 1500*time.Millisecond, clock, rand.New(rand.NewSource(3)), eventBus, logger.NewNop())
	sim.Sync(sc.Drivers)
	return sim, sc, clock
}

func TestSync_AssignsPathsCyclically(t *testing.T) {
	sim, sc, _ := seeded(t, nil)

	pos := sim.Positions()
	require.Len(t, pos, 10)
	for i, p := range pos {
		assert.Equal(t, sc.Drivers[i].ID, p.DriverID)
		assert.Equal(t, sc.Paths[i%len(sc.Paths)], p.Path)
		assert.GreaterOrEqual(t, p.Progress, 0.0)
		assert.Less(t, p.Progress, 1.0)
		assert.Contains(t, []int{-1, 1}, p.Direction)
	}
}

func TestSync_SpeedByStatus(t *testing.T) {
	sim, _, _ := seeded(t, nil)

	for _, p := range sim.Positions() {
		switch p.Status {
		case models.DriverStatusActive:
			assert.InDelta(t, speedActive, p.Speed, speedJitter)
		case models.DriverStatusBusy:
			assert.InDelta(t, speedBusy, p.Speed, speedJitter)
		case models.DriverStatusOffline:
			assert.Zero(t, p.Speed)
		}
	}
}

func TestSync_KeepsStateAndDropsMissing(t *testing.T) {
	sim, sc, _ := seeded(t, nil)
	before := sim.Positions()

	drivers := append([]models.Driver(nil), sc.Drivers[:3]...)
	drivers[2].Status = models.DriverStatusOffline
	sim.Sync(drivers)

	after := sim.Positions()
	require.Len(t, after, 3)
	assert.Equal(t, before[0], after[0])
	assert.Equal(t, before[2].Progress, after[2].Progress)
	assert.Equal(t, models.DriverStatusOffline, after[2].Status)
	assert.Zero(t, after[2].Speed)
}

func TestTick_Properties(t *testing.T) {
	sim, _, _ := seeded(t, nil)
	start := map[string]models.Position{}
	for _, p := range sim.Positions() {
		start[p.DriverID] = p
	}

	ctx := context.Background()
	for i := 0; i < 2000; i++ {
		for _, p := range sim.Tick(ctx) {
			assert.GreaterOrEqual(t, p.X, 0.0)
			assert.LessOrEqual(t, p.X, CanvasWidth)
			assert.GreaterOrEqual(t, p.Y, 0.0)
			assert.LessOrEqual(t, p.Y, CanvasHeight)
			assert.GreaterOrEqual(t, p.Progress, 0.0)
			assert.LessOrEqual(t, p.Progress, 1.0)
			assert.GreaterOrEqual(t, p.Heading, 0.0)
			assert.Less(t, p.Heading, 360.0)

			if p.Status == models.DriverStatusOffline {
				s := start[p.DriverID]
				assert.Equal(t, s.X, p.X)
				assert.Equal(t, s.Y, p.Y)
				assert.Equal(t, s.Progress, p.Progress)
			}
		}
	}
}

func TestTick_PingPong(t *testing.T) {
	path := []models.Point{{X: 0, Y: 0}, {X: 100, Y: 0}}
	sim := NewSimulator([][]models.Point{path}, time.Second, clockwork.NewFakeClock(), rand.New(rand.NewSource(1)), nil, logger.NewNop())
	sim.Sync([]models.Driver{{ID: "D1", Status: models.DriverStatusActive}})

	sim.mu.Lock()
	st := sim.states["D1"]
	st.progress, st.direction, st.speed = 0.999, 1, 0.5
	sim.mu.Unlock()

	p := sim.Tick(context.Background())[0]
	assert.Equal(t, turnHigh, p.Progress)
	assert.Equal(t, -1, p.Direction)
	assert.InDelta(t, 180, p.Heading, 1e-9)

	sim.mu.Lock()
	st.progress, st.speed = 0.001, 0.5
	sim.mu.Unlock()

	p = sim.Tick(context.Background())[0]
	assert.Equal(t, turnLow, p.Progress)
	assert.Equal(t, 1, p.Direction)
	assert.InDelta(t, 0, p.Heading, 1e-9)
}

func TestGeometry(t *testing.T) {
	path := []models.Point{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 100}}

	assert.Equal(t, models.Point{X: 50, Y: 0}, interpolate(path, 0.25))
	assert.Equal(t, models.Point{X: 100, Y: 50}, interpolate(path, 0.75))
	assert.Equal(t, models.Point{X: 100, Y: 100}, interpolate(path, 1))

	assert.InDelta(t, 90, heading(path, 0.75, 1), 1e-9)
	assert.InDelta(t, 270, heading(path, 0.75, -1), 1e-9)

	assert.True(t, nearWaypoint(path, 0.48, 1))
	assert.False(t, nearWaypoint(path, 0.48, -1))
	assert.True(t, nearWaypoint(path, 0.52, -1))
	assert.False(t, nearWaypoint(path, 0.30, 1))
}

func TestTick_PublishesPositions(t *testing.T) {
	memBus := bus.NewMemoryEventBus(logger.NewNop())
	t.Cleanup(memBus.Close)

	got := make(chan *bus.Event, 1)
	_, err := memBus.Subscribe(events.DriverMoved, func(_ context.Context, e *bus.Event) error {
		got <- e
		return nil
	})
	require.NoError(t, err)

	sim, _, _ := seeded(t, memBus)
	sim.Tick(context.Background())

	select {
	case e := <-got:
		positions, ok := e.Data.([]models.Position)
		require.True(t, ok)
		assert.Len(t, positions, 10)
	case <-time.After(time.Second):
		t.Fatal("no positions published")
	}
}

type staticDrivers []models.Driver

func (s staticDrivers) Drivers() []models.Driver { return s }

func TestRun(t *testing.T) {
	sim, sc, clock := seeded(t, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- sim.Run(ctx, staticDrivers(sc.Drivers[:2])) }()

	clock.BlockUntil(1)
	assert.Len(t, sim.Positions(), 2)
	clock.Advance(1500 * time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestSync_PlacesOnCanvas(t *testing.T) {
	path := []models.Point{{X: -200, Y: -200}, {X: 1500, Y: 900}}
	sim := NewSimulator([][]models.Point{path}, time.Second, clockwork.NewFakeClock(), rand.New(rand.NewSource(5)), nil, logger.NewNop())
	sim.Sync([]models.Driver{
		{ID: "D1", Status: models.DriverStatusOffline},
		{ID: "D2", Status: models.DriverStatusActive},
	})

	onCanvas := func(p models.Position) {
		assert.True(t, models.Point{X: p.X, Y: p.Y}.OnCanvas(), "%s at (%.1f,%.1f)", p.DriverID, p.X, p.Y)
	}
	for _, p := range sim.Positions() {
		onCanvas(p)
	}
	for i := 0; i < 3; i++ {
		for _, p := range sim.Tick(context.Background()) {
			onCanvas(p)
		}
	}
}
