// Package dto holds the request and response shapes shared by the HTTP and
// WebSocket surfaces.
package dto

import (
	"github.com/lastmile/coordinator/internal/coordinator/intent"
	"github.com/lastmile/coordinator/internal/coordinator/models"
	"github.com/lastmile/coordinator/internal/coordinator/reasoning"
	"github.com/lastmile/coordinator/internal/coordinator/scenario"
)

// StateResponse is the full coordinator snapshot plus the driver summary.
type StateResponse struct {
	models.Snapshot
	Summary models.DriverSummary `json:"driver_summary"`
}

type ListMessagesResponse struct {
	Messages []models.Message `json:"messages"`
	Total    int              `json:"total"`
}

type ListDriversResponse struct {
	Drivers []models.Driver `json:"drivers"`
	Total   int             `json:"total"`
}

type ListOrdersResponse struct {
	Orders []models.DeliveryOrder `json:"orders"`
	Total  int                    `json:"total"`
}

type ListLogsResponse struct {
	Logs  []models.AgentLog `json:"logs"`
	Total int               `json:"total"`
}

// DriverResponse is one driver with its map position when it is animated.
type DriverResponse struct {
	Driver   models.Driver    `json:"driver"`
	Position *models.Position `json:"position,omitempty"`
}

type PositionsResponse struct {
	Positions []models.Position `json:"positions"`
	Width     float64           `json:"width"`
	Height    float64           `json:"height"`
}

type QuickActionsResponse struct {
	Actions []scenario.QuickAction `json:"actions"`
}

type ReasoningResponse = reasoning.View

// SubmitResponse acknowledges an accepted input. The workflow runs on after
// the response is sent; progress arrives as events or through polling.
type SubmitResponse struct {
	Accepted bool          `json:"accepted"`
	Intent   intent.Intent `json:"intent"`
	Workflow string        `json:"workflow"`
}

// WorkflowFor names the workflow an intent starts.
func WorkflowFor(kind intent.Intent) string {
	if kind == intent.DelayInquiry {
		return "driver_delay_inquiry"
	}
	return "send_message"
}
