// Package models holds the records shared by the coordination and motion
// simulators. Values carry no behaviour beyond copying and counting.
package models

import (
	"fmt"
	"math/rand"
	"strconv"
	"time"
)

type Sender string

const (
	SenderUser  Sender = "user"
	SenderAgent Sender = "agent"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

type DriverStatus string

const (
	DriverStatusActive  DriverStatus = "active"
	DriverStatusBusy    DriverStatus = "busy"
	DriverStatusOffline DriverStatus = "offline"
)

// Moving reports whether drivers in this status are animated.
func (s DriverStatus) Moving() bool {
	return s == DriverStatusActive || s == DriverStatusBusy
}

type LogType string

const (
	LogTypeDriverNotification LogType = "driver_notification"
	LogTypeRouteCalculation   LogType = "route_calculation"
	LogTypeCustomerUpdate     LogType = "customer_update"
	LogTypeError              LogType = "error"
	LogTypeSuccess            LogType = "success"
	LogTypeSystem             LogType = "system"
)

// ValidLogType reports whether t names a known log type.
func ValidLogType(t LogType) bool {
	switch t {
	case LogTypeDriverNotification, LogTypeRouteCalculation, LogTypeCustomerUpdate,
		LogTypeError, LogTypeSuccess, LogTypeSystem:
		return true
	}
	return false
}

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusAssigned  OrderStatus = "assigned"
	OrderStatusPickedUp  OrderStatus = "picked_up"
	OrderStatusInTransit OrderStatus = "in_transit"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type ActionType string

const (
	ActionNotifyDriver   ActionType = "notify_driver"
	ActionCalculateRoute ActionType = "calculate_route"
	ActionNotifyCustomer ActionType = "notify_customer"
	ActionEscalate       ActionType = "escalate"
	ActionUpdateETA      ActionType = "update_eta"
)

// Message is one chat entry. Immutable once appended.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
	Actions   []string  `json:"actions,omitempty"`
	Priority  Priority  `json:"priority,omitempty"`
}

// Driver is a seeded driver record. Only LastUpdate changes after load.
type Driver struct {
	ID              string       `json:"id" yaml:"id"`
	Name            string       `json:"name" yaml:"name"`
	Status          DriverStatus `json:"status" yaml:"status"`
	CurrentLocation string       `json:"current_location" yaml:"current_location"`
	ETA             string       `json:"eta" yaml:"eta"`
	LastUpdate      string       `json:"last_update" yaml:"last_update"`
	CurrentDelivery string       `json:"current_delivery,omitempty" yaml:"current_delivery"`
}

// AgentLog is one entry of the scripted reasoning trail.
type AgentLog struct {
	ID          string         `json:"id"`
	Timestamp   time.Time      `json:"timestamp"`
	Type        LogType        `json:"type"`
	Action      string         `json:"action"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	DriverID    string         `json:"driver_id,omitempty"`
	CustomerID  string         `json:"customer_id,omitempty"`
}

type DeliveryOrder struct {
	ID                    string      `json:"id" yaml:"id"`
	CustomerID            string      `json:"customer_id" yaml:"customer_id"`
	DriverID              string      `json:"driver_id,omitempty" yaml:"driver_id"`
	Status                OrderStatus `json:"status" yaml:"status"`
	PickupLocation        string      `json:"pickup_location" yaml:"pickup_location"`
	DeliveryLocation      string      `json:"delivery_location" yaml:"delivery_location"`
	EstimatedDeliveryTime time.Time   `json:"estimated_delivery_time" yaml:"-"`
	ActualDeliveryTime    *time.Time  `json:"actual_delivery_time,omitempty" yaml:"-"`
	Priority              Priority    `json:"priority" yaml:"priority"`
}

// AgentAction records the last coordination step a workflow took.
type AgentAction struct {
	Type       ActionType     `json:"type"`
	DriverID   string         `json:"driver_id,omitempty"`
	CustomerID string         `json:"customer_id,omitempty"`
	Message    string         `json:"message,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Snapshot is a detached copy of the coordinator state.
type Snapshot struct {
	Messages        []Message       `json:"messages"`
	Drivers         []Driver        `json:"drivers"`
	Orders          []DeliveryOrder `json:"orders"`
	AgentLogs       []AgentLog      `json:"agent_logs"`
	IsProcessing    bool            `json:"is_processing"`
	LastAgentAction *AgentAction    `json:"last_agent_action,omitempty"`
}

// DriverSummary counts drivers by status.
type DriverSummary struct {
	Total   int `json:"total"`
	Active  int `json:"active"`
	Busy    int `json:"busy"`
	Offline int `json:"offline"`
}

// Canvas bounds of the map in display units.
const (
	CanvasWidth  = 700.0
	CanvasHeight = 400.0
)

// Point is a canvas coordinate.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// OnCanvas reports whether p lies within the map bounds.
func (p Point) OnCanvas() bool {
	return p.X >= 0 && p.X <= CanvasWidth && p.Y >= 0 && p.Y <= CanvasHeight
}

// Position is the decorative map state of one driver.
type Position struct {
	DriverID  string       `json:"driver_id"`
	Status    DriverStatus `json:"status"`
	X         float64      `json:"x"`
	Y         float64      `json:"y"`
	Heading   float64      `json:"heading"`
	Progress  float64      `json:"progress"`
	Direction int          `json:"direction"`
	Speed     float64      `json:"speed"`
	Path      []Point      `json:"path"`
}

// Summarize counts drivers by filtering the given list.
func Summarize(drivers []Driver) DriverSummary {
	s := DriverSummary{Total: len(drivers)}
	for _, d := range drivers {
		switch d.Status {
		case DriverStatusActive:
			s.Active++
		case DriverStatusBusy:
			s.Busy++
		case DriverStatusOffline:
			s.Offline++
		}
	}
	return s
}

// Clone returns a deep copy of m.
func (m Message) Clone() Message {
	if m.Actions != nil {
		m.Actions = append([]string(nil), m.Actions...)
	}
	return m
}

// Clone returns a deep copy of l. Metadata values are scalars, so a shallow
// map copy is enough.
func (l AgentLog) Clone() AgentLog {
	l.Metadata = cloneMetadata(l.Metadata)
	return l
}

func (a *AgentAction) Clone() *AgentAction {
	if a == nil {
		return nil
	}
	c := *a
	c.Metadata = cloneMetadata(a.Metadata)
	return &c
}

func (o DeliveryOrder) Clone() DeliveryOrder {
	if o.ActualDeliveryTime != nil {
		t := *o.ActualDeliveryTime
		o.ActualDeliveryTime = &t
	}
	return o
}

func cloneMetadata(md map[string]any) map[string]any {
	if md == nil {
		return nil
	}
	out := make(map[string]any, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}

// CloneMessages deep-copies a message slice.
func CloneMessages(in []Message) []Message {
	out := make([]Message, len(in))
	for i, m := range in {
		out[i] = m.Clone()
	}
	return out
}

// CloneLogs deep-copies a log slice.
func CloneLogs(in []AgentLog) []AgentLog {
	out := make([]AgentLog, len(in))
	for i, l := range in {
		out[i] = l.Clone()
	}
	return out
}

// CloneOrders deep-copies an order slice.
func CloneOrders(in []DeliveryOrder) []DeliveryOrder {
	out := make([]DeliveryOrder, len(in))
	for i, o := range in {
		out[i] = o.Clone()
	}
	return out
}

// CloneDrivers copies a driver slice. Driver holds only strings.
func CloneDrivers(in []Driver) []Driver {
	return append(make([]Driver, 0, len(in)), in...)
}

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewID returns "<prefix>_<unix millis>_<9 base36 chars>". Collisions are
// possible in principle but negligible.
func NewID(prefix string, now time.Time, rng *rand.Rand) string {
	suffix := make([]byte, 9)
	for i := range suffix {
		suffix[i] = idAlphabet[rng.Intn(len(idAlphabet))]
	}
	return fmt.Sprintf("%s_%s_%s", prefix, strconv.FormatInt(now.UnixMilli(), 10), suffix)
}
