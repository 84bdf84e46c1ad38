package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	apperrors "github.com/lastmile/coordinator/internal/common/errors"
	"github.com/lastmile/coordinator/internal/common/logger"
	"github.com/lastmile/coordinator/internal/coordinator/controller"
	"github.com/lastmile/coordinator/internal/coordinator/dto"
)

func registerTools(s *server.MCPServer, ctrl *controller.CoordinatorController, log *logger.Logger) {
	s.AddTool(
		mcp.NewTool("send_message",
			mcp.WithDescription("Send a customer chat message to the coordinator. Driver delay inquiries "+
				"(\"where is my driver\", \"driver is late\") start the delay response workflow; anything else gets a canned reply. "+
				"Returns immediately; poll get_coordinator_state for the outcome."),
			mcp.WithString("content",
				mcp.Required(),
				mcp.Description("The customer's message"),
			),
			mcp.WithString("customer_id",
				mcp.Description("Customer ID (optional, defaults to the configured customer)"),
			),
		),
		sendMessageHandler(ctrl, log),
	)

	s.AddTool(
		mcp.NewTool("report_driver_delay",
			mcp.WithDescription("Start the driver delay workflow directly: notify the driver, reroute, request a call and update the customer."),
			mcp.WithString("content",
				mcp.Required(),
				mcp.Description("The customer's complaint"),
			),
			mcp.WithString("customer_id",
				mcp.Description("Customer ID (optional)"),
			),
		),
		reportDriverDelayHandler(ctrl, log),
	)

	s.AddTool(
		mcp.NewTool("get_coordinator_state",
			mcp.WithDescription("Get the full coordinator state: messages, drivers, orders, agent logs and whether a workflow is running."),
		),
		getStateHandler(ctrl),
	)

	s.AddTool(
		mcp.NewTool("list_drivers",
			mcp.WithDescription("List all drivers with their status, location and ETA, plus a status summary."),
		),
		listDriversHandler(ctrl),
	)

	s.AddTool(
		mcp.NewTool("list_agent_logs",
			mcp.WithDescription("List the agent's coordination log entries."),
			mcp.WithString("type",
				mcp.Description("Filter by type: driver_notification, route_calculation, customer_update, error, success, system (optional)"),
			),
			mcp.WithString("driver_id",
				mcp.Description("Filter by driver ID (optional)"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Return only the most recent N entries (optional)"),
			),
		),
		listAgentLogsHandler(ctrl),
	)

	log.Info("registered MCP tools", zap.Int("count", 5))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	formatted, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(formatted)), nil
}

func errorResult(log *logger.Logger, tool string, err error) (*mcp.CallToolResult, error) {
	appErr := apperrors.As(err)
	if appErr.HTTPStatus >= 500 {
		log.Error("MCP tool failed", zap.String("tool", tool), zap.Error(err))
	}
	return mcp.NewToolResultError(appErr.Message), nil
}

func sendMessageHandler(ctrl *controller.CoordinatorController, log *logger.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		content, err := req.RequireString("content")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		resp, err := ctrl.SendMessage(ctx, dto.SendMessageRequest{
			CustomerID: req.GetString("customer_id", ""),
			Content:    content,
		})
		if err != nil {
			return errorResult(log, "send_message", err)
		}
		return jsonResult(resp)
	}
}

func reportDriverDelayHandler(ctrl *controller.CoordinatorController, log *logger.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		content, err := req.RequireString("content")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		resp, err := ctrl.ReportDriverDelay(ctx, dto.DriverDelayRequest{
			CustomerID: req.GetString("customer_id", ""),
			Content:    content,
		})
		if err != nil {
			return errorResult(log, "report_driver_delay", err)
		}
		return jsonResult(resp)
	}
}

func getStateHandler(ctrl *controller.CoordinatorController) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(ctrl.GetState(ctx))
	}
}

func listDriversHandler(ctrl *controller.CoordinatorController) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(map[string]any{
			"drivers": ctrl.ListDrivers(ctx).Drivers,
			"summary": ctrl.DriverSummary(ctx),
		})
	}
}

func listAgentLogsHandler(ctrl *controller.CoordinatorController) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		resp, err := ctrl.ListLogs(ctx, dto.ListLogsRequest{
			Type:     req.GetString("type", ""),
			DriverID: req.GetString("driver_id", ""),
			Limit:    req.GetInt("limit", 0),
		})
		if err != nil {
			return mcp.NewToolResultError(apperrors.As(err).Message), nil
		}
		return jsonResult(resp)
	}
}
