// Package lifecycle binds connection events to the presence coordinator and
// the broadcast router.
package lifecycle

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/wricardo/mcp-training/roomcast/chat/broadcast"
	"github.com/wricardo/mcp-training/roomcast/chat/presence"
	"github.com/wricardo/mcp-training/roomcast/chat/protocol"
)

// Handler translates per-connection events into presence transitions and
// broadcasts. Dispatch is serialized: a chat line is never routed while
// another connection is halfway through a transition.
type Handler struct {
	mu          sync.Mutex
	transport   protocol.Transport
	coordinator *presence.Coordinator
	router      *broadcast.Router
	stamper     protocol.Stamper
	validate    *validator.Validate
	log         *slog.Logger
}

// NewHandler creates a Handler
func NewHandler(transport protocol.Transport, coordinator *presence.Coordinator,
	router *broadcast.Router, stamper protocol.Stamper, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		transport:   transport,
		coordinator: coordinator,
		router:      router,
		stamper:     stamper,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		log:         log,
	}
}

// Connect greets a new connection. It is not registered until it enters a room.
func (h *Handler) Connect(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.log.Info("client connected", "sessionId", sessionID)
	h.transport.Unicast(sessionID, protocol.EventMessage,
		protocol.BuildMessage(h.stamper, protocol.AdminName, protocol.WelcomeText))
}

// HandleEvent dispatches one inbound event. Malformed payloads and unknown
// events are logged and dropped; nothing is reported back to the client.
func (h *Handler) HandleEvent(sessionID, event string, data json.RawMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch event {
	case protocol.EventEnterRoom:
		var req protocol.EnterRoomRequest
		if !h.decode(sessionID, event, data, &req) {
			return
		}
		h.coordinator.EnterRoom(sessionID, req.Name, req.Room)

	case protocol.EventMessage:
		var req protocol.ChatRequest
		if !h.decode(sessionID, event, data, &req) {
			return
		}
		if !h.router.RouteMessage(sessionID, req.Text) {
			h.log.Debug("message from unjoined session dropped", "sessionId", sessionID)
		}

	case protocol.EventActivity:
		var label string
		if err := json.Unmarshal(data, &label); err != nil {
			h.log.Warn("invalid payload", "sessionId", sessionID, "event", event, "error", err)
			return
		}
		if err := h.validate.Var(label, protocol.ActivityRule); err != nil {
			h.log.Warn("rejected payload", "sessionId", sessionID, "event", event, "error", err)
			return
		}
		if !h.router.RouteActivity(sessionID, label) {
			h.log.Debug("activity from unjoined session dropped", "sessionId", sessionID)
		}

	default:
		h.log.Warn("unknown event", "sessionId", sessionID, "event", event)
	}
}

// Disconnect removes the session, if any, and notifies its room.
func (h *Handler) Disconnect(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if departed, ok := h.coordinator.LeaveApp(sessionID); ok {
		h.log.Info("client disconnected", "sessionId", sessionID, "name", departed.Name, "room", departed.Room)
		return
	}
	h.log.Info("client disconnected", "sessionId", sessionID)
}

func (h *Handler) decode(sessionID, event string, data json.RawMessage, dst any) bool {
	if err := json.Unmarshal(data, dst); err != nil {
		h.log.Warn("invalid payload", "sessionId", sessionID, "event", event, "error", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.log.Warn("rejected payload", "sessionId", sessionID, "event", event, "error", err)
		return false
	}
	return true
}
