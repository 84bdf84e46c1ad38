// Package controller adapts the coordinator service to the API surfaces and
// translates its errors into application errors.
package controller

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/lastmile/coordinator/internal/common/errors"
	"github.com/lastmile/coordinator/internal/coordinator/dto"
	"github.com/lastmile/coordinator/internal/coordinator/intent"
	"github.com/lastmile/coordinator/internal/coordinator/models"
	"github.com/lastmile/coordinator/internal/coordinator/reasoning"
	"github.com/lastmile/coordinator/internal/coordinator/service"
	"github.com/lastmile/coordinator/internal/motion"
)

// PositionSource exposes the motion simulator's current positions.
type PositionSource interface {
	Positions() []models.Position
}

// ReasoningSource exposes the reasoning panel state.
type ReasoningSource interface {
	View() reasoning.View
}

type CoordinatorController struct {
	service   *service.Service
	positions PositionSource
	reasoning ReasoningSource
}

func NewCoordinatorController(svc *service.Service, positions PositionSource, rs ReasoningSource) *CoordinatorController {
	return &CoordinatorController{service: svc, positions: positions, reasoning: rs}
}

func (c *CoordinatorController) GetState(ctx context.Context) dto.StateResponse {
	snap := c.service.Snapshot()
	return dto.StateResponse{Snapshot: snap, Summary: models.Summarize(snap.Drivers)}
}

func (c *CoordinatorController) ListMessages(ctx context.Context) dto.ListMessagesResponse {
	msgs := c.service.Messages()
	return dto.ListMessagesResponse{Messages: msgs, Total: len(msgs)}
}

// SendMessage is the chat front door: classify, then start the workflow.
func (c *CoordinatorController) SendMessage(ctx context.Context, req dto.SendMessageRequest) (dto.SubmitResponse, error) {
	kind, err := c.service.Submit(ctx, service.SubmitRequest{CustomerID: req.CustomerID, Content: req.Content})
	if err != nil {
		return dto.SubmitResponse{}, translate(err)
	}
	return dto.SubmitResponse{Accepted: true, Intent: kind, Workflow: dto.WorkflowFor(kind)}, nil
}

// ReportDriverDelay starts the delay workflow without classifying the content.
func (c *CoordinatorController) ReportDriverDelay(ctx context.Context, req dto.DriverDelayRequest) (dto.SubmitResponse, error) {
	if err := c.service.StartDriverDelayInquiry(ctx, req.CustomerID, req.Content); err != nil {
		return dto.SubmitResponse{}, translate(err)
	}
	return dto.SubmitResponse{Accepted: true, Intent: intent.DelayInquiry, Workflow: dto.WorkflowFor(intent.DelayInquiry)}, nil
}

func (c *CoordinatorController) ListDrivers(ctx context.Context) dto.ListDriversResponse {
	drivers := c.service.Drivers()
	return dto.ListDriversResponse{Drivers: drivers, Total: len(drivers)}
}

// GetDriver looks a driver up by id, attaching its current map position.
func (c *CoordinatorController) GetDriver(ctx context.Context, id string) (dto.DriverResponse, error) {
	if id == "" {
		return dto.DriverResponse{}, apperrors.BadRequest("driver_id is required", nil)
	}
	d, ok := c.service.Driver(id)
	if !ok {
		return dto.DriverResponse{}, apperrors.NotFound("driver", id)
	}
	resp := dto.DriverResponse{Driver: d}
	if c.positions != nil {
		for _, p := range c.positions.Positions() {
			if p.DriverID == id {
				resp.Position = &p
				break
			}
		}
	}
	return resp, nil
}

func (c *CoordinatorController) DriverSummary(ctx context.Context) models.DriverSummary {
	return c.service.DriverSummary()
}

func (c *CoordinatorController) DriverPositions(ctx context.Context) dto.PositionsResponse {
	resp := dto.PositionsResponse{Positions: []models.Position{}, Width: motion.CanvasWidth, Height: motion.CanvasHeight}
	if c.positions != nil {
		resp.Positions = c.positions.Positions()
	}
	return resp
}

func (c *CoordinatorController) ListOrders(ctx context.Context) dto.ListOrdersResponse {
	orders := c.service.Orders()
	return dto.ListOrdersResponse{Orders: orders, Total: len(orders)}
}

func (c *CoordinatorController) ListLogs(ctx context.Context, req dto.ListLogsRequest) (dto.ListLogsResponse, error) {
	logType := models.LogType(req.Type)
	if logType != "" && !models.ValidLogType(logType) {
		return dto.ListLogsResponse{}, apperrors.BadRequest(fmt.Sprintf("unknown log type %q", req.Type), nil)
	}
	if req.Limit < 0 {
		return dto.ListLogsResponse{}, apperrors.BadRequest("limit must not be negative", nil)
	}
	logs := c.service.AgentLogs(service.LogFilter{Type: logType, DriverID: req.DriverID, Limit: req.Limit})
	return dto.ListLogsResponse{Logs: logs, Total: len(logs)}, nil
}

func (c *CoordinatorController) GetReasoning(ctx context.Context) (dto.ReasoningResponse, error) {
	if c.reasoning == nil {
		return dto.ReasoningResponse{}, apperrors.InternalError("reasoning monitor not configured", nil)
	}
	return c.reasoning.View(), nil
}

func (c *CoordinatorController) QuickActions(ctx context.Context) dto.QuickActionsResponse {
	return dto.QuickActionsResponse{Actions: c.service.QuickActions()}
}

func translate(err error) error {
	switch {
	case errors.Is(err, service.ErrEmptyMessage):
		return apperrors.BadRequest("content is required", err)
	case errors.Is(err, service.ErrBusy):
		return apperrors.Conflict("a workflow is already in progress", err)
	}
	return apperrors.InternalError("request failed", err)
}
