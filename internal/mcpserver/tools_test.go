package mcpserver

import (
	"context"
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lastmile/coordinator/internal/common/config"
	"github.com/lastmile/coordinator/internal/common/logger"
	"github.com/lastmile/coordinator/internal/coordinator/controller"
	"github.com/lastmile/coordinator/internal/coordinator/dto"
	"github.com/lastmile/coordinator/internal/coordinator/intent"
	"github.com/lastmile/coordinator/internal/coordinator/models"
	"github.com/lastmile/coordinator/internal/coordinator/reasoning"
	"github.com/lastmile/coordinator/internal/coordinator/scenario"
	"github.com/lastmile/coordinator/internal/coordinator/service"
	"github.com/lastmile/coordinator/internal/motion"
)

func newController(t *testing.T) (*controller.CoordinatorController, *service.Service, *clockwork.FakeClock) {
	t.Helper()
	log := logger.NewNop()
	clock := clockwork.NewFakeClock()
	sc, err := scenario.Default(clock.Now())
	require.NoError(t, err)

	svc := service.NewService(sc, config.SimulationConfig{
		TimeScale:         1,
		ChurnProbability:  0.3,
		DefaultCustomerID: "customer_123",
	}, nil, log, service.WithClock(clock), service.WithRand(rand.New(rand.NewSource(1))))
	t.Cleanup(svc.Close)

	sim := motion.NewSimulator(sc.Paths, time.Second, clock, rand.New(rand.NewSource(2)), nil, log)
	sim.Sync(svc.Drivers())
	monitor := reasoning.NewMonitor(svc, time.Second, clock, rand.New(rand.NewSource(3)), nil, log)
	return controller.NewCoordinatorController(svc, sim, monitor), svc, clock
}

func call(t *testing.T, h server.ToolHandlerFunc, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	result, err := h(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func text(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	tc, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestSendMessageTool(t *testing.T) {
	ctrl, svc, clock := newController(t)
	log := logger.NewNop()
	h := sendMessageHandler(ctrl, log)

	result := call(t, h, map[string]any{"content": "Where is my driver?"})
	require.False(t, result.IsError)
	var resp dto.SubmitResponse
	require.NoError(t, json.Unmarshal([]byte(text(t, result)), &resp))
	assert.Equal(t, intent.DelayInquiry, resp.Intent)

	result = call(t, h, map[string]any{"content": "hello"})
	assert.True(t, result.IsError)

	result = call(t, h, map[string]any{})
	assert.True(t, result.IsError)

	assert.True(t, svc.IsProcessing())
	clock.BlockUntil(1)
	clock.Advance(service.NotifyDelay)
	assert.Eventually(t, func() bool {
		log, ok := svc.LastAgentLog()
		return ok && log.CustomerID == "customer_123"
	}, time.Second, 10*time.Millisecond)
}

func TestSendMessageTool_Blank(t *testing.T) {
	ctrl, _, _ := newController(t)
	result := call(t, sendMessageHandler(ctrl, logger.NewNop()), map[string]any{"content": "   "})
	assert.True(t, result.IsError)
}

func TestReportDriverDelayTool(t *testing.T) {
	ctrl, svc, _ := newController(t)

	result := call(t, reportDriverDelayHandler(ctrl, logger.NewNop()), map[string]any{
		"content":     "my driver is late",
		"customer_id": "customer_9",
	})
	require.False(t, result.IsError)
	assert.True(t, svc.IsProcessing())
	assert.Eventually(t, func() bool {
		msgs := svc.Messages()
		return len(msgs) == 2 && msgs[1].Priority == models.PriorityHigh
	}, time.Second, 10*time.Millisecond)
}

func TestReadTools(t *testing.T) {
	ctrl, _, _ := newController(t)

	var state dto.StateResponse
	require.NoError(t, json.Unmarshal([]byte(text(t, call(t, getStateHandler(ctrl), nil))), &state))
	assert.Len(t, state.Drivers, 10)
	assert.Len(t, state.Messages, 1)

	var drivers struct {
		Drivers []json.RawMessage `json:"drivers"`
		Summary struct {
			Total int `json:"total"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(text(t, call(t, listDriversHandler(ctrl), nil))), &drivers))
	assert.Len(t, drivers.Drivers, 10)
	assert.Equal(t, 10, drivers.Summary.Total)

	result := call(t, listAgentLogsHandler(ctrl), map[string]any{"type": "telemetry"})
	assert.True(t, result.IsError)

	result = call(t, listAgentLogsHandler(ctrl), map[string]any{"type": "system", "limit": 3})
	require.False(t, result.IsError)
	var logs dto.ListLogsResponse
	require.NoError(t, json.Unmarshal([]byte(text(t, result)), &logs))
	assert.Zero(t, logs.Total)
}

func TestServer_StartStop(t *testing.T) {
	ctrl, _, _ := newController(t)

	srv, cleanup, err := Provide(context.Background(), Config{Port: 0}, ctrl, logger.NewNop())
	require.NoError(t, err)
	assert.NotZero(t, srv.Port())
	assert.Contains(t, srv.SSEEndpoint(), "/sse")
	assert.Contains(t, srv.StreamableHTTPEndpoint(), "/mcp")

	require.NoError(t, cleanup())
	require.NoError(t, cleanup())
}
