// Package scenario loads the seed data for a simulation session: drivers,
// their in-flight orders, the greeting, map paths and quick actions.
package scenario

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lastmile/coordinator/internal/coordinator/models"
)

//go:embed default.yaml
var defaultFS embed.FS

var (
	ErrDuplicateDriver  = errors.New("duplicate driver id")
	ErrDanglingDelivery = errors.New("driver references unknown delivery")
	ErrNoPaths          = errors.New("scenario has no map paths")
	ErrPathOutOfBounds  = errors.New("path waypoint outside the map canvas")
)

// Greeting is the agent message seeded at session start.
type Greeting struct {
	ID      string        `yaml:"id"`
	Content string        `yaml:"content"`
	Age     time.Duration `yaml:"age"`
}

// QuickAction is a canned customer input. Delay actions go straight to the
// driver delay workflow.
type QuickAction struct {
	Text  string `json:"text" yaml:"text"`
	Delay bool   `json:"delay" yaml:"delay"`
}

type orderDef struct {
	models.DeliveryOrder `yaml:",inline"`
	ETA                  time.Duration `yaml:"eta"`
}

type file struct {
	Greeting     Greeting         `yaml:"greeting"`
	Drivers      []models.Driver  `yaml:"drivers"`
	Orders       []orderDef       `yaml:"orders"`
	Paths        [][]models.Point `yaml:"paths"`
	QuickActions []QuickAction    `yaml:"quick_actions"`
}

// Scenario is a validated seed, with order times resolved against a start time.
type Scenario struct {
	Greeting     Greeting
	Drivers      []models.Driver
	Orders       []models.DeliveryOrder
	Paths        [][]models.Point
	QuickActions []QuickAction
}

// GreetingMessage builds the seed agent message relative to start.
func (s *Scenario) GreetingMessage(start time.Time) models.Message {
	return models.Message{
		ID:        s.Greeting.ID,
		Content:   s.Greeting.Content,
		Sender:    models.SenderAgent,
		Timestamp: start.Add(-s.Greeting.Age),
	}
}

// Default returns the embedded scenario.
func Default(start time.Time) (*Scenario, error) {
	data, err := defaultFS.ReadFile("default.yaml")
	if err != nil {
		return nil, fmt.Errorf("read default scenario: %w", err)
	}
	return Parse(data, start)
}

// Load reads a scenario from path, or the embedded default when path is empty.
func Load(path string, start time.Time) (*Scenario, error) {
	if path == "" {
		return Default(start)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}
	return Parse(data, start)
}

// Parse decodes and validates YAML scenario data.
func Parse(data []byte, start time.Time) (*Scenario, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}

	s := &Scenario{
		Greeting:     f.Greeting,
		Drivers:      f.Drivers,
		Paths:        f.Paths,
		QuickActions: f.QuickActions,
	}
	for _, o := range f.Orders {
		order := o.DeliveryOrder
		order.EstimatedDeliveryTime = start.Add(o.ETA)
		s.Orders = append(s.Orders, order)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks driver ids are unique, every current delivery resolves to
// an order, and at least one usable path exists with every waypoint on the
// canvas.
func (s *Scenario) Validate() error {
	orders := make(map[string]struct{}, len(s.Orders))
	for _, o := range s.Orders {
		orders[o.ID] = struct{}{}
	}

	seen := make(map[string]struct{}, len(s.Drivers))
	for _, d := range s.Drivers {
		if _, dup := seen[d.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateDriver, d.ID)
		}
		seen[d.ID] = struct{}{}

		if d.CurrentDelivery == "" {
			continue
		}
		if _, ok := orders[d.CurrentDelivery]; !ok {
			return fmt.Errorf("%w: %s -> %s", ErrDanglingDelivery, d.ID, d.CurrentDelivery)
		}
	}

	if len(s.Paths) == 0 {
		return ErrNoPaths
	}
	for i, p := range s.Paths {
		if len(p) < 2 {
			return fmt.Errorf("%w: path %d has %d points", ErrNoPaths, i, len(p))
		}
		for j, pt := range p {
			if !pt.OnCanvas() {
				return fmt.Errorf("%w: path %d point %d at (%g,%g)", ErrPathOutOfBounds, i, j, pt.X, pt.Y)
			}
		}
	}
	return nil
}
