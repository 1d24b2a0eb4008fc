// Package presence runs the join/leave state machine of a connection.
//
// A connection is either unjoined (no session registered) or in exactly one
// room. Every transition is one critical section with fixed phases:
//
//  1. leave: detach from the previous room and tell its remaining members
//  2. mutate: write the new session, the only identity update
//  3. roster: republish the previous room from the mutated state
//  4. join: attach to the new room, greet, announce, republish its roster
//  5. rooms: publish the settled room list to every connection
//
// Old-room cleanup always completes before new-room setup, so no roster ever
// shows a session in two rooms.
package presence

import (
	"log/slog"
	"sync"

	"github.com/wricardo/mcp-training/roomcast/chat/protocol"
	"github.com/wricardo/mcp-training/roomcast/chat/room"
	"github.com/wricardo/mcp-training/roomcast/chat/session"
)

// Coordinator owns the ordering of presence notifications.
type Coordinator struct {
	mu        sync.Mutex
	store     *session.Store
	view      *room.View
	transport protocol.Transport
	stamper   protocol.Stamper
	log       *slog.Logger
}

// NewCoordinator creates a Coordinator
func NewCoordinator(store *session.Store, view *room.View, transport protocol.Transport,
	stamper protocol.Stamper, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		store:     store,
		view:      view,
		transport: transport,
		stamper:   stamper,
		log:       log,
	}
}

// EnterRoom registers sessionID under name in roomName, leaving its previous
// room first. Entering the room the session is already in runs the full
// leave-then-join sequence.
func (c *Coordinator) EnterRoom(sessionID, name, roomName string) session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	previous, joined := c.store.Get(sessionID)
	hadRoom := joined && previous.Room != ""

	if hadRoom {
		c.leave(sessionID, name, previous.Room)
	}

	current := session.Session{ID: sessionID, Name: name, Room: roomName}
	c.store.Put(current)

	if hadRoom {
		c.publishRoster(previous.Room)
	}

	c.join(current)
	c.publishRooms()

	c.log.Debug("session entered room",
		"sessionId", sessionID, "name", name, "room", roomName, "previousRoom", previous.Room)

	return current
}

// LeaveApp unregisters sessionID after its connection is gone. It returns the
// departed session, or false when the connection never entered a room.
func (c *Coordinator) LeaveApp(sessionID string) (session.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	departed, ok := c.store.Remove(sessionID)
	if !ok || departed.Room == "" {
		c.log.Debug("unjoined session left", "sessionId", sessionID)
		return departed, false
	}

	c.leave(sessionID, departed.Name, departed.Room)
	c.publishRoster(departed.Room)
	c.publishRooms()

	c.log.Debug("session left app", "sessionId", sessionID, "name", departed.Name, "room", departed.Room)

	return departed, true
}

// leave detaches the connection from the room's group before announcing, so
// the announcement only reaches the remaining members.
func (c *Coordinator) leave(sessionID, name, roomName string) {
	c.transport.LeaveGroup(sessionID, roomName)
	c.transport.MulticastToRoom(roomName, protocol.EventMessage,
		protocol.BuildMessage(c.stamper, protocol.AdminName, protocol.LeftRoomText(name)))
}

func (c *Coordinator) join(s session.Session) {
	c.transport.JoinGroup(s.ID, s.Room)
	c.transport.Unicast(s.ID, protocol.EventMessage,
		protocol.BuildMessage(c.stamper, protocol.AdminName, protocol.JoinedSelfText(s.Room)))
	c.transport.MulticastToRoom(s.Room, protocol.EventMessage,
		protocol.BuildMessage(c.stamper, protocol.AdminName, protocol.JoinedRoomText(s.Name)), s.ID)
	c.publishRoster(s.Room)
}

func (c *Coordinator) publishRoster(roomName string) {
	c.transport.MulticastToRoom(roomName, protocol.EventUserList,
		protocol.UserList{Users: c.view.MembersOf(roomName)})
}

func (c *Coordinator) publishRooms() {
	c.transport.MulticastToAll(protocol.EventRoomList,
		protocol.RoomList{Rooms: c.view.ActiveRoomNames()})
}
