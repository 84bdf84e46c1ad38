// Package script runs scripted workflows: an ordered list of steps, each
// applied after a fixed wait on an injected clock.
package script

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// Step is one scripted effect preceded by a wait.
type Step struct {
	Name  string
	Delay time.Duration
	Apply func(ctx context.Context)
}

// Script is a named, ordered list of steps.
type Script struct {
	Name  string
	Steps []Step
}

// TotalDelay is the sum of every step's delay.
func (s Script) TotalDelay() time.Duration {
	var total time.Duration
	for _, st := range s.Steps {
		total += st.Delay
	}
	return total
}

// State is the runner position: Idle, or the index of the step in flight.
type State struct {
	Script string
	Step   int // -1 when idle
	Name   string
}

// Idle reports whether no step is in flight.
func (s State) Idle() bool { return s.Step < 0 }

func (s State) String() string {
	if s.Idle() {
		return "idle"
	}
	return fmt.Sprintf("%s/%d:%s", s.Script, s.Step, s.Name)
}

// Observer is told about every state transition, Idle included.
type Observer func(State)

// Runner executes scripts against a clock. A Runner is stateless between
// runs and safe for concurrent use; callers decide whether runs may overlap.
type Runner struct {
	clock    clockwork.Clock
	scale    float64
	observer Observer
}

// Option configures a Runner.
type Option func(*Runner)

// WithTimeScale multiplies every delay by scale. Zero skips waits entirely.
func WithTimeScale(scale float64) Option {
	return func(r *Runner) { r.scale = scale }
}

// WithObserver registers a transition observer.
func WithObserver(o Observer) Option {
	return func(r *Runner) { r.observer = o }
}

// NewRunner creates a Runner on clock.
func NewRunner(clock clockwork.Clock, opts ...Option) *Runner {
	r := &Runner{clock: clock, scale: 1}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes every step in order. It returns ctx.Err() if ctx ends during a
// wait; steps already applied stay applied.
func (r *Runner) Run(ctx context.Context, s Script) error {
	defer r.notify(State{Script: s.Name, Step: -1})

	for i, step := range s.Steps {
		r.notify(State{Script: s.Name, Step: i, Name: step.Name})
		if err := r.wait(ctx, step.Delay); err != nil {
			return err
		}
		if step.Apply != nil {
			step.Apply(ctx)
		}
	}
	return nil
}

func (r *Runner) wait(ctx context.Context, d time.Duration) error {
	d = time.Duration(float64(d) * r.scale)
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.clock.After(d):
		return nil
	}
}

func (r *Runner) notify(s State) {
	if r.observer != nil {
		r.observer(s)
	}
}
