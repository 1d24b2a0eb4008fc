// Package broadcast relays chat lines and typing activity to a sender's room.
package broadcast

import (
	"github.com/wricardo/mcp-training/roomcast/chat/protocol"
	"github.com/wricardo/mcp-training/roomcast/chat/session"
)

// Router resolves the sender's room and picks the audience.
type Router struct {
	store     *session.Store
	transport protocol.Transport
	stamper   protocol.Stamper
}

// NewRouter creates a Router
func NewRouter(store *session.Store, transport protocol.Transport, stamper protocol.Stamper) *Router {
	return &Router{store: store, transport: transport, stamper: stamper}
}

// RouteMessage sends text to the whole room, sender included, under the
// sender's registered name. It reports false when the sender has not entered
// a room, in which case nothing is sent.
func (r *Router) RouteMessage(sessionID, text string) bool {
	sender, ok := r.store.Get(sessionID)
	if !ok || sender.Room == "" {
		return false
	}

	r.transport.MulticastToRoom(sender.Room, protocol.EventMessage,
		protocol.BuildMessage(r.stamper, sender.Name, text))
	return true
}

// RouteActivity forwards a typing label to everyone in the room but the
// sender.
func (r *Router) RouteActivity(sessionID, label string) bool {
	sender, ok := r.store.Get(sessionID)
	if !ok || sender.Room == "" {
		return false
	}

	r.transport.MulticastToRoom(sender.Room, protocol.EventActivity, label, sessionID)
	return true
}
