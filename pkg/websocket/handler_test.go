package websocket

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher(t *testing.T) {
	d := NewDispatcher()
	d.RegisterFunc(ActionHealthCheck, func(ctx context.Context, msg *Message) (*Message, error) {
		return NewResponse(msg.ID, msg.Action, map[string]string{"status": "ok"})
	})
	assert.True(t, d.HasHandler(ActionHealthCheck))
	assert.False(t, d.HasHandler(ActionLogList))

	resp, err := d.Dispatch(context.Background(), &Message{ID: "1", Type: MessageTypeRequest, Action: ActionHealthCheck})
	require.NoError(t, err)
	assert.Equal(t, MessageTypeResponse, resp.Type)
	assert.Equal(t, "1", resp.ID)
	assert.JSONEq(t, `{"status":"ok"}`, string(resp.Payload))

	resp, err = d.Dispatch(context.Background(), &Message{ID: "2", Action: "nope"})
	require.NoError(t, err)
	assert.Equal(t, MessageTypeError, resp.Type)

	var payload ErrorPayload
	require.NoError(t, resp.ParsePayload(&payload))
	assert.Equal(t, ErrorCodeUnknownAction, payload.Code)
}

func TestParsePayload(t *testing.T) {
	var v struct {
		Content string `json:"content"`
	}
	msg := &Message{Payload: json.RawMessage(`{"content":"hi"}`)}
	require.NoError(t, msg.ParsePayload(&v))
	assert.Equal(t, "hi", v.Content)

	v.Content = "kept"
	require.NoError(t, (&Message{}).ParsePayload(&v))
	assert.Equal(t, "kept", v.Content)

	assert.Error(t, (&Message{Payload: json.RawMessage(`{`)}).ParsePayload(&v))
}

func TestNewNotification(t *testing.T) {
	msg, err := NewNotification("coordinator.message.added", map[string]int{"n": 1})
	require.NoError(t, err)
	assert.Empty(t, msg.ID)
	assert.Equal(t, MessageTypeNotification, msg.Type)
	assert.False(t, msg.Timestamp.IsZero())
}
