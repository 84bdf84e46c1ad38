package script

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, s)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func testScript(rec *recorder) Script {
	return Script{
		Name: "demo",
		Steps: []Step{
			{Name: "first", Delay: 0, Apply: func(context.Context) { rec.add("first") }},
			{Name: "second", Delay: 2 * time.Second, Apply: func(context.Context) { rec.add("second") }},
			{Name: "third", Delay: time.Second, Apply: func(context.Context) { rec.add("third") }},
		},
	}
}

func TestRunner_StepsFollowTheClock(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rec := &recorder{}
	runner := NewRunner(clock)

	done := make(chan error, 1)
	go func() { done <- runner.Run(context.Background(), testScript(rec)) }()

	clock.BlockUntil(1)
	assert.Equal(t, []string{"first"}, rec.snapshot())

	clock.Advance(1999 * time.Millisecond)
	assert.Equal(t, []string{"first"}, rec.snapshot())

	clock.Advance(time.Millisecond)
	clock.BlockUntil(1)
	assert.Equal(t, []string{"first", "second"}, rec.snapshot())

	clock.Advance(time.Second)
	require.NoError(t, <-done)
	assert.Equal(t, []string{"first", "second", "third"}, rec.snapshot())
}

func TestRunner_ObserverSeesTransitions(t *testing.T) {
	var states []string
	runner := NewRunner(clockwork.NewFakeClock(), WithTimeScale(0), WithObserver(func(s State) {
		states = append(states, s.String())
	}))

	require.NoError(t, runner.Run(context.Background(), testScript(&recorder{})))
	assert.Equal(t, []string{"demo/0:first", "demo/1:second", "demo/2:third", "idle"}, states)
}

func TestRunner_Cancelled(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rec := &recorder{}
	runner := NewRunner(clock)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx, testScript(rec)) }()

	clock.BlockUntil(1)
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, []string{"first"}, rec.snapshot())
}

func TestRunner_TimeScale(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rec := &recorder{}
	runner := NewRunner(clock, WithTimeScale(0.5))

	done := make(chan error, 1)
	go func() { done <- runner.Run(context.Background(), testScript(rec)) }()

	clock.BlockUntil(1)
	clock.Advance(time.Second)
	clock.BlockUntil(1)
	clock.Advance(500 * time.Millisecond)
	require.NoError(t, <-done)
	assert.Len(t, rec.snapshot(), 3)
}

func TestScript_TotalDelay(t *testing.T) {
	assert.Equal(t, 3*time.Second, testScript(&recorder{}).TotalDelay())
}
