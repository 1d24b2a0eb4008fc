package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wricardo/mcp-training/roomcast/chat/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	defaultSendBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// EventHandler receives connection events. The hub calls it from a single
// goroutine, one event at a time, in arrival order.
type EventHandler interface {
	Connect(sessionID string)
	HandleEvent(sessionID, event string, data json.RawMessage)
	Disconnect(sessionID string)
}

// Client is one websocket connection
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	id      string
	evicted atomic.Bool
}

type inbound struct {
	client *Client
	data   []byte
}

// Hub owns every live connection and the room groups they belong to. It
// implements protocol.Transport.
type Hub struct {
	mu sync.RWMutex

	// Registered clients by session ID
	clients map[string]*Client

	// Room name to members
	groups map[string]map[string]*Client

	handler EventHandler

	// Frames read from clients
	inbound chan inbound

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Closed when Run returns
	done chan struct{}

	sendBuffer int
	log        *slog.Logger
}

// Option configures a Hub
type Option func(*Hub)

// WithSendBuffer sets how many outbound frames may queue per connection
// before the connection is dropped as too slow.
func WithSendBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

// NewHub creates a new WebSocket hub
func NewHub(log *slog.Logger, opts ...Option) *Hub {
	if log == nil {
		log = slog.Default()
	}
	h := &Hub{
		clients:    make(map[string]*Client),
		groups:     make(map[string]map[string]*Client),
		handler:    nopHandler{},
		inbound:    make(chan inbound),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		sendBuffer: defaultSendBuffer,
		log:        log,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SetHandler installs the receiver of connection events. It must be called
// before Run.
func (h *Hub) SetHandler(handler EventHandler) {
	h.handler = handler
}

// Run starts the hub's event loop and blocks until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case in := <-h.inbound:
			h.dispatch(in)
		}
	}
}

// ServeWS upgrades the request and assigns the connection a fresh session ID.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, h.sendBuffer),
		id:   uuid.NewString(),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// Connections returns the number of live connections
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Unicast sends an event to one connection
func (h *Hub) Unicast(sessionID, event string, payload any) {
	data, ok := h.encode(event, payload)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if client, ok := h.clients[sessionID]; ok {
		h.deliver(client, data)
	}
}

// MulticastToRoom sends an event to every member of a room's group
func (h *Hub) MulticastToRoom(room, event string, payload any, except ...string) {
	data, ok := h.encode(event, payload)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, client := range h.groups[room] {
		if slices.Contains(except, id) {
			continue
		}
		h.deliver(client, data)
	}
}

// MulticastToAll sends an event to every live connection
func (h *Hub) MulticastToAll(event string, payload any) {
	data, ok := h.encode(event, payload)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		h.deliver(client, data)
	}
}

// JoinGroup adds a live connection to a room's group
func (h *Hub) JoinGroup(sessionID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[sessionID]
	if !ok {
		return
	}
	if h.groups[room] == nil {
		h.groups[room] = make(map[string]*Client)
	}
	h.groups[room][sessionID] = client
}

// LeaveGroup removes a connection from a room's group
func (h *Hub) LeaveGroup(sessionID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.leaveGroup(sessionID, room)
}

func (h *Hub) leaveGroup(sessionID, room string) {
	members, ok := h.groups[room]
	if !ok {
		return
	}
	delete(members, sessionID)

	// Clean up empty groups
	if len(members) == 0 {
		delete(h.groups, room)
	}
}

// registerClient adds a connection and greets it
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client.id] = client
	total := len(h.clients)
	h.mu.Unlock()

	h.log.Debug("client registered", "sessionId", client.id, "clients", total)
	h.handler.Connect(client.id)
}

// unregisterClient drops a connection from every group before reporting the
// disconnect, so departure notices only reach the remaining members.
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	if current, ok := h.clients[client.id]; !ok || current != client {
		h.mu.Unlock()
		return
	}

	delete(h.clients, client.id)
	for room := range h.groups {
		h.leaveGroup(client.id, room)
	}
	close(client.send)
	remaining := len(h.clients)
	h.mu.Unlock()

	h.log.Debug("client unregistered", "sessionId", client.id, "clients", remaining)
	h.handler.Disconnect(client.id)
}

func (h *Hub) dispatch(in inbound) {
	h.mu.RLock()
	current, ok := h.clients[in.client.id]
	h.mu.RUnlock()
	if !ok || current != in.client {
		return
	}

	env, err := protocol.Decode(in.data)
	if err != nil {
		h.log.Warn("invalid frame", "sessionId", in.client.id, "error", err)
		return
	}

	h.handler.HandleEvent(in.client.id, env.Event, env.Data)
}

func (h *Hub) encode(event string, payload any) ([]byte, bool) {
	data, err := protocol.Encode(event, payload)
	if err != nil {
		h.log.Error("failed to encode event", "event", event, "error", err)
		return nil, false
	}
	return data, true
}

// deliver must be called with h.mu held.
func (h *Hub) deliver(client *Client, data []byte) {
	select {
	case client.send <- data:
	default:
		h.evict(client)
	}
}

// evict schedules a slow client for removal through the event loop. The
// removal cannot happen inline: the caller is usually in the middle of a
// presence transition.
func (h *Hub) evict(client *Client) {
	if !client.evicted.CompareAndSwap(false, true) {
		return
	}

	h.log.Warn("send buffer full, dropping client", "sessionId", client.id)
	go func() {
		select {
		case h.unregister <- client:
		case <-h.done:
		}
	}()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, client := range h.clients {
		close(client.send)
		delete(h.clients, id)
	}
	h.groups = make(map[string]map[string]*Client)
}

// readPump pumps frames from the WebSocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("websocket read error", "sessionId", c.id, "error", err)
			}
			return
		}

		select {
		case c.hub.inbound <- inbound{client: c, data: data}:
		case <-c.hub.done:
			return
		}
	}
}

// writePump pumps frames from the hub to the WebSocket connection, one
// event per frame.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

type nopHandler struct{}

func (nopHandler) Connect(string)                              {}
func (nopHandler) HandleEvent(string, string, json.RawMessage) {}
func (nopHandler) Disconnect(string)                           {}
