package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-tuyable/internal/bridges/tuyable"
	"github.com/nerrad567/gray-logic-tuyable/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-tuyable/internal/infrastructure/logging"
)

// Stream message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"

	// wsSendBufferSize is the per-client outbound message buffer size.
	wsSendBufferSize = 256
)

// Stream channels.
const (
	// ChannelStateChanged carries every published entity state.
	ChannelStateChanged = "entity.state_changed"

	// ChannelDeviceEvent carries device events such as a fingerbot press.
	ChannelDeviceEvent = "device.event"
)

// knownChannel reports whether clients may subscribe to ch.
func knownChannel(ch string) bool {
	return ch == ChannelStateChanged || ch == ChannelDeviceEvent
}

// WSRequest is a message from a client.
type WSRequest struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// WSMessage is a message to a client.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload selects channels and, optionally, devices.
//
// An empty DeviceIDs list matches every device. Replay sends the current
// state of every matching entity right after a state channel subscription.
type WSSubscribePayload struct {
	Channels  []string `json:"channels"`
	DeviceIDs []string `json:"device_ids,omitempty"`
	Replay    bool     `json:"replay,omitempty"`
}

// StateSource provides the current entity states for replay.
// Satisfied by the bridge.
type StateSource interface {
	Devices() []tuyable.DeviceView
	Entities(id string) ([]tuyable.EntityView, error)
}

// Hub fans bridge states and events out to WebSocket clients.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	source  StateSource // optional
	clients map[*WSClient]struct{}
	mu      sync.RWMutex
	dropped atomic.Uint64
}

// WSClient is one connected stream consumer.
type WSClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu       sync.RWMutex
	channels map[string]struct{}
	devices  map[string]struct{} // empty matches all
}

func newWSClient(hub *Hub, conn *websocket.Conn) *WSClient {
	return &WSClient{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, wsSendBufferSize),
		channels: make(map[string]struct{}),
		devices:  make(map[string]struct{}),
	}
}

// upgrader configures the WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// NewHub creates a hub. source may be nil, which disables replay.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger, source StateSource) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		source:  source,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client to the hub.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", n)
}

// Unregister removes a client. Only the call that removes it closes the
// send channel.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, existed := h.clients[client]
	delete(h.clients, client)
	n := len(h.clients)
	h.mu.Unlock()

	if existed {
		close(client.send)
	}
	h.logger.Debug("websocket client disconnected", "clients", n)
}

// PublishState sends an entity state to clients subscribed to
// ChannelStateChanged for its device.
func (h *Hub) PublishState(msg tuyable.StateMessage) {
	h.publish(ChannelStateChanged, msg.DeviceID, msg.Timestamp, msg)
}

// PublishEvent sends a device event to clients subscribed to
// ChannelDeviceEvent for its device.
func (h *Hub) PublishEvent(msg tuyable.EventMessage) {
	h.publish(ChannelDeviceEvent, msg.DeviceID, msg.Timestamp, msg)
}

func (h *Hub) publish(channel, deviceID string, ts time.Time, payload any) {
	data, err := encodeEvent(channel, ts, payload)
	if err != nil {
		h.logger.Error("failed to marshal stream event", "channel", channel, "error", err)
		return
	}

	// Snapshot under the hub lock; client locks are taken after release.
	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if client.wants(channel, deviceID) {
			client.trySend(data)
		}
	}
}

func encodeEvent(channel string, ts time.Time, payload any) ([]byte, error) {
	if ts.IsZero() {
		ts = time.Now()
	}
	return json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: ts.UTC().Format(time.RFC3339Nano),
		Payload:   payload,
	})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many messages were discarded for slow clients.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		if client.conn != nil {
			client.conn.Close()
		}
		delete(h.clients, client)
	}
}

// replay returns the current state of every entity of the given devices,
// or of all devices when deviceIDs is empty.
func (h *Hub) replay(deviceIDs map[string]struct{}) []tuyable.StateMessage {
	if h.source == nil {
		return nil
	}
	now := time.Now().UTC()
	var out []tuyable.StateMessage
	for _, d := range h.source.Devices() {
		if len(deviceIDs) > 0 {
			if _, ok := deviceIDs[d.DeviceID]; !ok {
				continue
			}
		}
		views, err := h.source.Entities(d.DeviceID)
		if err != nil {
			continue
		}
		for _, v := range views {
			out = append(out, tuyable.StateMessage{
				DeviceID:  d.DeviceID,
				Key:       v.Key,
				Platform:  v.Platform,
				Timestamp: now,
				Available: v.Available,
				Value:     v.State,
			})
		}
	}
	return out
}

// handleWebSocket upgrades the connection to the event stream.
// With auth enabled a ticket query parameter (from POST /auth/ws-ticket)
// is required.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.authEnabled() {
		ticket := r.URL.Query().Get("ticket")
		if ticket == "" {
			writeUnauthorized(w, "ticket query parameter is required")
			return
		}
		if !s.validateTicket(ticket) {
			writeUnauthorized(w, "invalid or expired ticket")
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.logger.Warn("websocket upgrade failed", "error", err, "request_id", requestID(r.Context()))
		return
	}

	client := newWSClient(s.hub, conn)
	s.hub.Register(client)

	go client.writePump(s.wsCfg)
	go client.readPump(s.wsCfg)
}

func (c *WSClient) readPump(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	wait := time.Duration(cfg.PingInterval+cfg.PongTimeout) * time.Second
	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(wait)) }

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	extend() //nolint:errcheck // a failed deadline surfaces as a read error
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		// Browsers may not answer protocol pings; any message keeps the
		// connection alive.
		extend() //nolint:errcheck // a failed deadline surfaces as a read error
		c.handleRequest(data)
	}
}

func (c *WSClient) writePump(cfg config.WebSocketConfig) {
	ticker := time.NewTicker(time.Duration(cfg.PingInterval) * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	writeWait := time.Duration(cfg.PongTimeout) * time.Second
	write := func(kind int, data []byte) error {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck // write error caught below
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				write(websocket.CloseMessage, nil) //nolint:errcheck // closing anyway
				return
			}
			if err := write(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) handleRequest(data []byte) {
	var req WSRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.sendError("", "invalid JSON message")
		return
	}

	switch req.Type {
	case WSTypeSubscribe:
		c.handleSubscribe(req)
	case WSTypeUnsubscribe:
		c.handleUnsubscribe(req)
	case WSTypePing:
		c.reply(req.ID, WSTypePong, nil)
	default:
		c.sendError(req.ID, "unknown message type: "+req.Type)
	}
}

// parseSubscription decodes and validates a subscribe or unsubscribe payload.
func parseSubscription(raw json.RawMessage) (WSSubscribePayload, error) {
	var sub WSSubscribePayload
	if len(raw) == 0 {
		return sub, fmt.Errorf("payload is required")
	}
	if err := json.Unmarshal(raw, &sub); err != nil {
		return sub, fmt.Errorf("invalid payload: %w", err)
	}
	if len(sub.Channels) == 0 {
		return sub, fmt.Errorf("channels is required")
	}
	for _, ch := range sub.Channels {
		if !knownChannel(ch) {
			return sub, fmt.Errorf("unknown channel %q", ch)
		}
	}
	return sub, nil
}

func (c *WSClient) handleSubscribe(req WSRequest) {
	sub, err := parseSubscription(req.Payload)
	if err != nil {
		c.sendError(req.ID, err.Error())
		return
	}

	c.mu.Lock()
	for _, ch := range sub.Channels {
		c.channels[ch] = struct{}{}
	}
	for _, id := range sub.DeviceIDs {
		c.devices[id] = struct{}{}
	}
	devices := make(map[string]struct{}, len(c.devices))
	for id := range c.devices {
		devices[id] = struct{}{}
	}
	c.mu.Unlock()

	c.hub.logger.Debug("websocket client subscribed", "channels", sub.Channels, "devices", sub.DeviceIDs)
	c.reply(req.ID, WSTypeResponse, map[string]any{
		"subscribed": sub.Channels,
		"device_ids": sub.DeviceIDs,
	})

	if !sub.Replay || !c.wantsChannel(ChannelStateChanged) {
		return
	}
	for _, msg := range c.hub.replay(devices) {
		data, err := encodeEvent(ChannelStateChanged, msg.Timestamp, msg)
		if err != nil {
			continue
		}
		c.trySend(data)
	}
}

func (c *WSClient) handleUnsubscribe(req WSRequest) {
	sub, err := parseSubscription(req.Payload)
	if err != nil {
		c.sendError(req.ID, err.Error())
		return
	}

	c.mu.Lock()
	for _, ch := range sub.Channels {
		delete(c.channels, ch)
	}
	for _, id := range sub.DeviceIDs {
		delete(c.devices, id)
	}
	c.mu.Unlock()

	c.reply(req.ID, WSTypeResponse, map[string]any{"unsubscribed": sub.Channels})
}

// trySend queues data without blocking. A full buffer drops the message;
// a closed channel (client gone mid-broadcast) is ignored.
func (c *WSClient) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // send on a channel closed by Unregister
	}()

	select {
	case c.send <- data:
	default:
		c.hub.dropped.Add(1)
	}
}

func (c *WSClient) wantsChannel(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.channels[channel]
	return ok
}

// wants reports whether the client subscribed to channel for deviceID.
func (c *WSClient) wants(channel, deviceID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.channels[channel]; !ok {
		return false
	}
	if len(c.devices) == 0 {
		return true
	}
	_, ok := c.devices[deviceID]
	return ok
}

func (c *WSClient) reply(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.trySend(data)
}

func (c *WSClient) sendError(id, message string) {
	c.reply(id, WSTypeError, map[string]string{"message": message})
}
