package service

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lastmile/coordinator/internal/common/config"
	"github.com/lastmile/coordinator/internal/common/logger"
	"github.com/lastmile/coordinator/internal/coordinator/intent"
	"github.com/lastmile/coordinator/internal/coordinator/models"
	"github.com/lastmile/coordinator/internal/coordinator/scenario"
	"github.com/lastmile/coordinator/internal/events"
	"github.com/lastmile/coordinator/internal/events/bus"
)

func testConfig() config.SimulationConfig {
	return config.SimulationConfig{
		TimeScale:         1,
		ChurnInterval:     10 * time.Second,
		ChurnProbability:  0.3,
		DefaultCustomerID: "customer_123",
	}
}

func newTestService(t *testing.T, cfg config.SimulationConfig, eventBus bus.EventBus) (*Service, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	sc, err := scenario.Default(clock.Now())
	require.NoError(t, err)

	svc := NewService(sc, cfg, eventBus, logger.NewNop(),
		WithClock(clock),
		WithRand(rand.New(rand.NewSource(42))),
	)
	t.Cleanup(svc.Close)
	return svc, clock
}

func TestNewService_Seed(t *testing.T) {
	svc, clock := newTestService(t, testConfig(), nil)

	snap := svc.Snapshot()
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, "msg_001", snap.Messages[0].ID)
	assert.Equal(t, clock.Now().Add(-5*time.Minute), snap.Messages[0].Timestamp)
	assert.Len(t, snap.Drivers, 10)
	assert.Len(t, snap.Orders, 5)
	assert.Empty(t, snap.AgentLogs)
	assert.False(t, snap.IsProcessing)
	assert.Nil(t, snap.LastAgentAction)
}

func TestSendMessage_Timeline(t *testing.T) {
	svc, clock := newTestService(t, testConfig(), nil)

	done := make(chan error, 1)
	go func() { done <- svc.SendMessage(context.Background(), "What's my order status?") }()

	clock.BlockUntil(1)
	msgs := svc.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, models.SenderUser, msgs[1].Sender)
	assert.Equal(t, "What's my order status?", msgs[1].Content)
	assert.Empty(t, msgs[1].Priority)
	assert.True(t, svc.IsProcessing())
	assert.Empty(t, svc.AgentLogs(LogFilter{}))

	clock.Advance(ReplyDelay)
	require.NoError(t, <-done)
	assert.False(t, svc.IsProcessing())

	msgs = svc.Messages()
	require.Len(t, msgs, 3)
	reply := msgs[2]
	assert.Equal(t, models.SenderAgent, reply.Sender)
	assert.Contains(t, reply.Content, "#ORD_12345")
	assert.Equal(t, []string{"Order status checked", "Driver location verified"}, reply.Actions)

	logs := svc.AgentLogs(LogFilter{})
	require.Len(t, logs, 1)
	assert.Equal(t, models.LogTypeSystem, logs[0].Type)
	assert.Equal(t, "Order Status Query", logs[0].Action)
	assert.Equal(t, map[string]any{"orderId": "ORD_12345", "driverId": "D001"}, logs[0].Metadata)
	assert.Regexp(t, `^log_\d+_[0-9a-z]{9}$`, logs[0].ID)
	assert.Regexp(t, `^msg_\d+_[0-9a-z]{9}$`, reply.ID)
}

func TestSendMessage_Branches(t *testing.T) {
	cfg := testConfig()
	cfg.TimeScale = 0

	tests := []struct {
		content string
		action  string
		actions []string
	}{
		{"What's my order status?", "Order Status Query", []string{"Order status checked", "Driver location verified"}},
		{"please change my address", "Address Change Request", []string{"Address change request initiated", "Driver coordination required"}},
		{"hello", "General Inquiry Processing", []string{"Situation analysis initiated", "Network coordination in progress"}},
	}
	for _, tt := range tests {
		t.Run(tt.content, func(t *testing.T) {
			svc, _ := newTestService(t, cfg, nil)
			for i := 0; i < 3; i++ {
				require.NoError(t, svc.SendMessage(context.Background(), tt.content))
				last, ok := svc.LastAgentLog()
				require.True(t, ok)
				assert.Equal(t, tt.action, last.Action)
				msgs := svc.Messages()
				assert.Equal(t, tt.actions, msgs[len(msgs)-1].Actions)
			}
		})
	}
}

func TestSendMessage_SerialCallsAddTwoMessagesEach(t *testing.T) {
	cfg := testConfig()
	cfg.TimeScale = 0
	svc, _ := newTestService(t, cfg, nil)

	inputs := []string{"hello", "status?", "change address", "anything"}
	for _, in := range inputs {
		require.NoError(t, svc.SendMessage(context.Background(), in))
	}

	msgs := svc.Messages()
	require.Len(t, msgs, 1+2*len(inputs))
	for i, in := range inputs {
		user := msgs[1+2*i]
		agent := msgs[2+2*i]
		assert.Equal(t, models.SenderUser, user.Sender)
		assert.Equal(t, in, user.Content)
		assert.Equal(t, models.SenderAgent, agent.Sender)
	}
}

func TestProcessDriverDelayInquiry_Timeline(t *testing.T) {
	svc, clock := newTestService(t, testConfig(), nil)

	done := make(chan error, 1)
	go func() { done <- svc.ProcessDriverDelayInquiry(context.Background(), "cust_9", "x") }()

	clock.BlockUntil(1)
	msgs := svc.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, models.PriorityHigh, msgs[1].Priority)
	assert.Equal(t, models.SenderUser, msgs[1].Sender)
	assert.True(t, svc.IsProcessing())

	steps := []time.Duration{NotifyDelay, RouteDelay, CallRequestDelay}
	for i, d := range steps {
		clock.Advance(d)
		clock.BlockUntil(1)
		assert.Len(t, svc.AgentLogs(LogFilter{}), i+1)
		assert.True(t, svc.IsProcessing())
		assert.Len(t, svc.Messages(), 2)
	}

	clock.Advance(CustomerDelay)
	require.NoError(t, <-done)
	assert.False(t, svc.IsProcessing())

	logs := svc.AgentLogs(LogFilter{})
	require.Len(t, logs, 4)
	var types []models.LogType
	for _, l := range logs {
		types = append(types, l.Type)
	}
	assert.Equal(t, []models.LogType{
		models.LogTypeDriverNotification,
		models.LogTypeRouteCalculation,
		models.LogTypeDriverNotification,
		models.LogTypeCustomerUpdate,
	}, types)
	assert.Equal(t, "cust_9", logs[0].Metadata["customerId"])
	assert.Equal(t, "cust_9", logs[3].CustomerID)
	assert.Equal(t, "call_customer", logs[2].Metadata["action"])

	msgs = svc.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, models.SenderAgent, msgs[2].Sender)
	assert.Len(t, msgs[2].Actions, 4)
	assert.Contains(t, msgs[2].Content, "New estimated arrival: 4 minutes.")

	action := svc.Snapshot().LastAgentAction
	require.NotNil(t, action)
	assert.Equal(t, models.ActionNotifyCustomer, action.Type)
	assert.Equal(t, "cust_9", action.CustomerID)
}

func TestBusy(t *testing.T) {
	svc, clock := newTestService(t, testConfig(), nil)
	ctx := context.Background()

	require.NoError(t, svc.StartDriverDelayInquiry(ctx, "", "where is my driver"))
	clock.BlockUntil(1)

	assert.ErrorIs(t, svc.SendMessage(ctx, "hello"), ErrBusy)
	assert.ErrorIs(t, svc.ProcessDriverDelayInquiry(ctx, "c", "x"), ErrBusy)
	_, err := svc.Submit(ctx, SubmitRequest{Content: "hello"})
	assert.ErrorIs(t, err, ErrBusy)

	// rejected calls leave no trace
	assert.Len(t, svc.Messages(), 2)

	clock.Advance(NotifyDelay)
	clock.BlockUntil(1)
	assert.Equal(t, "customer_123", svc.AgentLogs(LogFilter{})[0].CustomerID)
}

func TestClose_ClearsProcessing(t *testing.T) {
	svc, clock := newTestService(t, testConfig(), nil)

	require.NoError(t, svc.StartSendMessage(context.Background(), "hello"))
	clock.BlockUntil(1)
	require.True(t, svc.IsProcessing())

	svc.Close()
	assert.False(t, svc.IsProcessing())
	assert.Len(t, svc.Messages(), 2)
}

func TestSendMessage_CancelledContext(t *testing.T) {
	svc, clock := newTestService(t, testConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- svc.SendMessage(ctx, "hello") }()
	clock.BlockUntil(1)
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
	assert.False(t, svc.IsProcessing())
	assert.Len(t, svc.Messages(), 2)

	// the flag was released, so a new workflow can start
	require.NoError(t, svc.StartSendMessage(context.Background(), "again"))
}

func TestSubmit(t *testing.T) {
	cfg := testConfig()
	cfg.TimeScale = 0
	svc, _ := newTestService(t, cfg, nil)
	ctx := context.Background()

	_, err := svc.Submit(ctx, SubmitRequest{Content: "   "})
	assert.ErrorIs(t, err, ErrEmptyMessage)

	kind, err := svc.Submit(ctx, SubmitRequest{Content: "Where is my driver?"})
	require.NoError(t, err)
	assert.Equal(t, intent.DelayInquiry, kind)
	svc.Wait()
	assert.Len(t, svc.AgentLogs(LogFilter{}), 4)
	assert.Equal(t, models.PriorityHigh, svc.Messages()[1].Priority)

	kind, err = svc.Submit(ctx, SubmitRequest{Content: "please change my address"})
	require.NoError(t, err)
	assert.Equal(t, intent.AddressChange, kind)
	svc.Wait()

	last, ok := svc.LastAgentLog()
	require.True(t, ok)
	assert.Equal(t, "Address Change Request", last.Action)
	assert.Len(t, svc.Messages(), 5)
}

func TestAgentLogsFilter(t *testing.T) {
	cfg := testConfig()
	cfg.TimeScale = 0
	svc, _ := newTestService(t, cfg, nil)
	ctx := context.Background()

	require.NoError(t, svc.ProcessDriverDelayInquiry(ctx, "c1", "late"))
	require.NoError(t, svc.SendMessage(ctx, "hello"))

	assert.Len(t, svc.AgentLogs(LogFilter{}), 5)
	assert.Len(t, svc.AgentLogs(LogFilter{Type: models.LogTypeDriverNotification}), 2)
	assert.Len(t, svc.AgentLogs(LogFilter{DriverID: "D001"}), 2)

	limited := svc.AgentLogs(LogFilter{Limit: 2})
	require.Len(t, limited, 2)
	assert.Equal(t, models.LogTypeSystem, limited[1].Type)
}

func TestSnapshotIsDetached(t *testing.T) {
	cfg := testConfig()
	cfg.TimeScale = 0
	svc, _ := newTestService(t, cfg, nil)
	require.NoError(t, svc.ProcessDriverDelayInquiry(context.Background(), "c1", "late"))

	snap := svc.Snapshot()
	snap.Drivers[0].Name = "changed"
	snap.Messages[2].Actions[0] = "changed"
	snap.AgentLogs[0].Metadata["driverId"] = "changed"
	snap.LastAgentAction.CustomerID = "changed"

	again := svc.Snapshot()
	assert.Equal(t, "Alex Chen", again.Drivers[0].Name)
	assert.Equal(t, "Driver notified: D001", again.Messages[2].Actions[0])
	assert.Equal(t, "D001", again.AgentLogs[0].Metadata["driverId"])
	assert.Equal(t, "c1", again.LastAgentAction.CustomerID)
}

func TestDriverSummaryMatchesList(t *testing.T) {
	svc, _ := newTestService(t, testConfig(), nil)

	active := 0
	for _, d := range svc.Drivers() {
		if d.Status == models.DriverStatusActive {
			active++
		}
	}
	summary := svc.DriverSummary()
	assert.Equal(t, active, summary.Active)
	assert.Equal(t, 10, summary.Total)
	assert.Equal(t, summary.Total, summary.Active+summary.Busy+summary.Offline)
}

func TestChurnOnce(t *testing.T) {
	svc, _ := newTestService(t, testConfig(), nil)
	original := map[string]string{}
	for _, d := range svc.Drivers() {
		original[d.ID] = d.LastUpdate
	}

	for i := 0; i < 50; i++ {
		svc.ChurnOnce(context.Background())
		for _, d := range svc.Drivers() {
			assert.Contains(t, []string{JustNow, original[d.ID]}, d.LastUpdate)
		}
	}
}

func TestChurnOnce_Probability(t *testing.T) {
	cfg := testConfig()
	cfg.ChurnProbability = 0
	svc, _ := newTestService(t, cfg, nil)
	assert.Empty(t, svc.ChurnOnce(context.Background()))

	cfg.ChurnProbability = 1
	svc, _ = newTestService(t, cfg, nil)
	assert.Len(t, svc.ChurnOnce(context.Background()), 10)
	for _, d := range svc.Drivers() {
		assert.Equal(t, JustNow, d.LastUpdate)
	}
}

func TestRun_ChurnsOnTicker(t *testing.T) {
	cfg := testConfig()
	cfg.ChurnProbability = 1
	svc, clock := newTestService(t, cfg, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	clock.BlockUntil(1)
	clock.Advance(cfg.ChurnInterval)
	require.Eventually(t, func() bool {
		return svc.Drivers()[4].LastUpdate == JustNow
	}, time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestEventsPublishedInOrder(t *testing.T) {
	memBus := bus.NewMemoryEventBus(logger.NewNop())
	t.Cleanup(memBus.Close)

	var mu sync.Mutex
	var subjects []string
	_, err := memBus.Subscribe("coordinator.>", func(_ context.Context, e *bus.Event) error {
		mu.Lock()
		defer mu.Unlock()
		subjects = append(subjects, e.Type)
		return nil
	})
	require.NoError(t, err)

	cfg := testConfig()
	cfg.TimeScale = 0
	svc, _ := newTestService(t, cfg, memBus)
	require.NoError(t, svc.SendMessage(context.Background(), "hello"))

	want := []string{
		events.ProcessingChanged,
		events.MessageAdded,
		events.AgentLogAdded,
		events.MessageAdded,
		events.ProcessingChanged,
	}
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(subjects) == len(want)
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, want, subjects)
}

func TestDriver(t *testing.T) {
	svc, _ := newTestService(t, testConfig(), nil)

	d, ok := svc.Driver("D005")
	require.True(t, ok)
	assert.Equal(t, models.DriverStatusOffline, d.Status)

	_, ok = svc.Driver("D999")
	assert.False(t, ok)
}
