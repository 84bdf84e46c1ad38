package websocket

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/lastmile/coordinator/internal/common/logger"
	"github.com/lastmile/coordinator/internal/events/bus"
	ws "github.com/lastmile/coordinator/pkg/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 64 * 1024
)

// Client represents a single WebSocket connection
type Client struct {
	ID     string
	conn   *websocket.Conn
	hub    *Hub
	send   chan []byte
	logger *logger.Logger

	// subject patterns the client wants; empty means every notification
	subjects map[string]bool
	mu       sync.RWMutex
}

// NewClient creates a new WebSocket client
func NewClient(id string, conn *websocket.Conn, hub *Hub, log *logger.Logger) *Client {
	return &Client{
		ID:       id,
		conn:     conn,
		hub:      hub,
		send:     make(chan []byte, 256),
		logger:   log.WithFields(zap.String("client_id", id)),
		subjects: make(map[string]bool),
	}
}

// Wants reports whether a notification for subject should reach the client.
func (c *Client) Wants(subject string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.subjects) == 0 {
		return true
	}
	for pattern := range c.subjects {
		if bus.Match(subject, pattern) {
			return true
		}
	}
	return false
}

// Subjects returns the client's subject filters.
func (c *Client) Subjects() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.subjects))
	for s := range c.subjects {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// ReadPump pumps messages from the WebSocket connection to the dispatcher
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket read error", zap.Error(err))
			}
			break
		}

		var msg ws.Message
		if err := json.Unmarshal(message, &msg); err != nil {
			c.logger.Warn("Failed to parse message", zap.Error(err))
			c.sendError("", "", ws.ErrorCodeBadRequest, "Invalid message format", nil)
			continue
		}

		c.handleMessage(ctx, &msg)
	}
}

func (c *Client) handleMessage(ctx context.Context, msg *ws.Message) {
	c.logger.Debug("Received message",
		zap.String("action", msg.Action),
		zap.String("id", msg.ID))

	switch msg.Action {
	case ws.ActionEventsSubscribe:
		c.handleSubjects(msg, true)
		return
	case ws.ActionEventsUnsubscribe:
		c.handleSubjects(msg, false)
		return
	}

	response, err := c.hub.dispatcher.Dispatch(ctx, msg)
	if err != nil {
		c.logger.Error("Handler error",
			zap.String("action", msg.Action),
			zap.Error(err))
		c.sendError(msg.ID, msg.Action, ws.ErrorCodeInternalError, err.Error(), nil)
		return
	}

	if response != nil {
		c.sendMessage(response)
	}
}

// SubjectsRequest is the payload for events.subscribe and events.unsubscribe.
type SubjectsRequest struct {
	Subjects []string `json:"subjects"`
}

func (c *Client) handleSubjects(msg *ws.Message, subscribe bool) {
	var req SubjectsRequest
	if err := msg.ParsePayload(&req); err != nil {
		c.sendError(msg.ID, msg.Action, ws.ErrorCodeBadRequest, "Invalid payload: "+err.Error(), nil)
		return
	}
	if len(req.Subjects) == 0 {
		c.sendError(msg.ID, msg.Action, ws.ErrorCodeValidation, "subjects is required", nil)
		return
	}

	c.mu.Lock()
	for _, s := range req.Subjects {
		if subscribe {
			c.subjects[s] = true
		} else {
			delete(c.subjects, s)
		}
	}
	c.mu.Unlock()

	resp, err := ws.NewResponse(msg.ID, msg.Action, map[string]any{
		"success":  true,
		"subjects": c.Subjects(),
	})
	if err != nil {
		c.logger.Error("Failed to create response", zap.Error(err))
		return
	}
	c.sendMessage(resp)
}

func (c *Client) sendMessage(msg *ws.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("Failed to marshal message", zap.Error(err))
		return
	}

	select {
	case c.send <- data:
	default:
		c.logger.Warn("Client send buffer full")
	}
}

func (c *Client) sendError(id, action, code, message string, details map[string]any) {
	msg, err := ws.NewError(id, action, code, message, details)
	if err != nil {
		c.logger.Error("Failed to create error message", zap.Error(err))
		return
	}
	c.sendMessage(msg)
}

// WritePump pumps messages from the hub to the WebSocket connection. Each
// frame carries exactly one JSON message.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
