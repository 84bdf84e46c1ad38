// Package events names the subjects published by the simulators and wires the bus.
package events

// Coordination simulator subjects.
const (
	MessageAdded      = "coordinator.message.added"
	AgentLogAdded     = "coordinator.log.added"
	ProcessingChanged = "coordinator.processing.changed"
	DriverUpdated     = "coordinator.driver.updated"
)

// Motion and reasoning subjects.
const (
	DriverMoved      = "motion.driver.moved"
	ReasoningUpdated = "reasoning.updated"
)

// All matches every subject above.
var All = []string{"coordinator.>", "motion.>", "reasoning.>"}
