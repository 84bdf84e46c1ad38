package bus

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lastmile/coordinator/internal/common/logger"
)

func newTestBus(t *testing.T) *MemoryEventBus {
	t.Helper()
	b := NewMemoryEventBus(logger.NewNop())
	t.Cleanup(b.Close)
	return b
}

func TestMemoryEventBus_PublishSubscribe(t *testing.T) {
	b := newTestBus(t)
	received := make(chan *Event, 1)

	_, err := b.Subscribe("coordinator.message.added", func(ctx context.Context, event *Event) error {
		received <- event
		return nil
	})
	require.NoError(t, err)

	event := NewEvent("coordinator.message.added", "test", map[string]any{"id": "msg_1"})
	require.NoError(t, b.Publish(context.Background(), "coordinator.message.added", event))

	select {
	case e := <-received:
		assert.Equal(t, event.ID, e.ID)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestMemoryEventBus_PreservesOrderPerSubscriber(t *testing.T) {
	b := newTestBus(t)

	const n = 50
	var mu sync.Mutex
	var got []int
	done := make(chan struct{})

	_, err := b.Subscribe("coordinator.>", func(ctx context.Context, event *Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, event.Data.(int))
		if len(got) == n {
			close(done)
		}
		return nil
	})
	require.NoError(t, err)

	for i := 0; i < n; i++ {
		require.NoError(t, b.Publish(context.Background(), "coordinator.log.added", NewEvent("log", "test", i)))
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for events")
	}
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestMemoryEventBus_Wildcards(t *testing.T) {
	b := newTestBus(t)
	var single, multi int32

	_, err := b.Subscribe("coordinator.*.added", func(ctx context.Context, event *Event) error {
		atomic.AddInt32(&single, 1)
		return nil
	})
	require.NoError(t, err)
	_, err = b.Subscribe("coordinator.>", func(ctx context.Context, event *Event) error {
		atomic.AddInt32(&multi, 1)
		return nil
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, b.Publish(ctx, "coordinator.message.added", NewEvent("a", "test", nil)))
	require.NoError(t, b.Publish(ctx, "coordinator.driver.updated", NewEvent("b", "test", nil)))
	require.NoError(t, b.Publish(ctx, "motion.driver.moved", NewEvent("c", "test", nil)))

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&single) == 1 && atomic.LoadInt32(&multi) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestMemoryEventBus_QueueSubscribe(t *testing.T) {
	b := newTestBus(t)
	var count int32

	for i := 0; i < 3; i++ {
		_, err := b.QueueSubscribe("motion.driver.moved", "workers", func(ctx context.Context, event *Event) error {
			atomic.AddInt32(&count, 1)
			return nil
		})
		require.NoError(t, err)
	}

	for i := 0; i < 6; i++ {
		require.NoError(t, b.Publish(context.Background(), "motion.driver.moved", NewEvent("moved", "test", nil)))
	}

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&count) == 6 }, time.Second, 10*time.Millisecond)
}

func TestMemoryEventBus_Unsubscribe(t *testing.T) {
	b := newTestBus(t)
	var count int32

	sub, err := b.Subscribe("reasoning.updated", func(ctx context.Context, event *Event) error {
		atomic.AddInt32(&count, 1)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, sub.Unsubscribe())
	assert.False(t, sub.IsValid())

	require.NoError(t, b.Publish(context.Background(), "reasoning.updated", NewEvent("r", "test", nil)))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&count))
}

func TestMemoryEventBus_Closed(t *testing.T) {
	b := NewMemoryEventBus(logger.NewNop())
	b.Close()

	assert.False(t, b.IsConnected())
	assert.ErrorIs(t, b.Publish(context.Background(), "x", NewEvent("x", "test", nil)), ErrBusClosed)
	_, err := b.Subscribe("x", func(ctx context.Context, event *Event) error { return nil })
	assert.ErrorIs(t, err, ErrBusClosed)
}

func TestMatch(t *testing.T) {
	assert.True(t, Match("motion.driver.moved", "motion.>"))
	assert.True(t, Match("coordinator.log.added", "coordinator.*.added"))
	assert.True(t, Match("reasoning.updated", "reasoning.updated"))
	assert.False(t, Match("reasoning.updated", "motion.>"))
	assert.False(t, Match("coordinator.log.added", "coordinator.*"))
}
