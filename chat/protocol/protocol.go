// Package protocol defines the chat wire contract: event names, payload
// shapes, system texts and the outbound primitives a transport must offer.
//
// Payload shapes are consumed by existing clients and must not change:
//
//	message  -> {"name": string, "text": string, "time": string}
//	activity -> string
//	userList -> {"users": [{"id": string, "name": string, "room": string}]}
//	roomList -> {"rooms": [string]}
package protocol

import (
	"fmt"

	"github.com/wricardo/mcp-training/roomcast/chat/session"
)

// Event names shared by clients and server.
const (
	EventEnterRoom = "enterRoom"
	EventMessage   = "message"
	EventActivity  = "activity"
	EventUserList  = "userList"
	EventRoomList  = "roomList"
)

// AdminName is the reserved sender of system messages.
const AdminName = "Admin"

// WelcomeText greets a fresh connection before it enters any room.
const WelcomeText = "Welcome to Chat App"

// JoinedSelfText is sent to the participant that just entered room.
func JoinedSelfText(room string) string {
	return fmt.Sprintf("You have joined %s room", room)
}

// JoinedRoomText is sent to the rest of the room when name enters it.
func JoinedRoomText(name string) string {
	return fmt.Sprintf("%s has joined the room", name)
}

// LeftRoomText is sent to the remaining members when name leaves.
func LeftRoomText(name string) string {
	return fmt.Sprintf("%s has left the room", name)
}

// Message is a transient chat line. It is never stored.
type Message struct {
	Name string `json:"name"`
	Text string `json:"text"`
	Time string `json:"time"`
}

// UserList is the roster of a single room.
type UserList struct {
	Users []session.Session `json:"users"`
}

// RoomList enumerates every active room, without duplicates.
type RoomList struct {
	Rooms []string `json:"rooms"`
}

// EnterRoomRequest is the inbound enterRoom payload.
type EnterRoomRequest struct {
	Name string `json:"name" validate:"required,max=64"`
	Room string `json:"room" validate:"required,max=64"`
}

// ChatRequest is the inbound message payload. Name is accepted for
// compatibility but the registered name is what gets broadcast.
type ChatRequest struct {
	Name string `json:"name"`
	Text string `json:"text" validate:"max=2048"`
}

// ActivityRule validates the bare activity label. An empty label is relayed
// like any other.
const ActivityRule = "max=2048"

// Stamper produces the time field of a Message.
type Stamper interface {
	Stamp() string
}

// BuildMessage stamps a message from sender at call time.
func BuildMessage(st Stamper, sender, text string) Message {
	return Message{
		Name: sender,
		Text: text,
		Time: st.Stamp(),
	}
}

// Transport is what the chat core needs from the connection layer. Groups
// are named after rooms. Calls never fail from the core's point of view;
// delivery problems are the transport's concern.
type Transport interface {
	// Unicast sends to a single connection.
	Unicast(sessionID, event string, payload any)

	// MulticastToRoom sends to every connection in the room's group except
	// the listed session ids.
	MulticastToRoom(room, event string, payload any, except ...string)

	// MulticastToAll sends to every live connection.
	MulticastToAll(event string, payload any)

	JoinGroup(sessionID, room string)
	LeaveGroup(sessionID, room string)
}
