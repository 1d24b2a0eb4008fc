// Package chattest provides an in-memory protocol.Transport that resolves
// audiences the way a real connection layer does and records every call.
package chattest

import (
	"slices"
	"sync"
)

// Call records one invocation of a Transport primitive.
type Call struct {
	Op      string
	Target  string
	Room    string
	Event   string
	Payload any
	Except  []string
}

// Delivery is what a single connection received.
type Delivery struct {
	Event   string
	Payload any
}

// Transport keeps connections in connect order and groups by room.
type Transport struct {
	mu        sync.Mutex
	connected []string
	groups    map[string]map[string]bool
	inbox     map[string][]Delivery
	calls     []Call
}

// NewTransport creates an empty Transport
func NewTransport() *Transport {
	return &Transport{
		groups: make(map[string]map[string]bool),
		inbox:  make(map[string][]Delivery),
	}
}

// Connect marks a connection as live.
func (t *Transport) Connect(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !slices.Contains(t.connected, id) {
		t.connected = append(t.connected, id)
	}
}

// Disconnect drops a connection and its group memberships, as a transport
// does before reporting the disconnect.
func (t *Transport) Disconnect(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connected = slices.DeleteFunc(t.connected, func(c string) bool { return c == id })
	for _, members := range t.groups {
		delete(members, id)
	}
}

// Unicast records the call and delivers to sessionID.
func (t *Transport) Unicast(sessionID, event string, payload any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, Call{Op: "unicast", Target: sessionID, Event: event, Payload: payload})
	t.deliver(sessionID, event, payload)
}

// MulticastToRoom delivers to every connected member of room not listed in except.
func (t *Transport) MulticastToRoom(room, event string, payload any, except ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, Call{Op: "room", Room: room, Event: event, Payload: payload, Except: except})
	for _, id := range t.connected {
		if t.groups[room][id] && !slices.Contains(except, id) {
			t.deliver(id, event, payload)
		}
	}
}

// MulticastToAll delivers to every connected id, joined or not.
func (t *Transport) MulticastToAll(event string, payload any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, Call{Op: "all", Event: event, Payload: payload})
	for _, id := range t.connected {
		t.deliver(id, event, payload)
	}
}

// JoinGroup adds sessionID to room's group.
func (t *Transport) JoinGroup(sessionID, room string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, Call{Op: "join", Target: sessionID, Room: room})
	if t.groups[room] == nil {
		t.groups[room] = make(map[string]bool)
	}
	t.groups[room][sessionID] = true
}

// LeaveGroup removes sessionID from room's group.
func (t *Transport) LeaveGroup(sessionID, room string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, Call{Op: "leave", Target: sessionID, Room: room})
	delete(t.groups[room], sessionID)
}

// Received returns everything delivered to id so far.
func (t *Transport) Received(id string) []Delivery {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.inbox[id])
}

// ReceivedEvent returns the payloads of a single event delivered to id.
func (t *Transport) ReceivedEvent(id, event string) []any {
	t.mu.Lock()
	defer t.mu.Unlock()
	var result []any
	for _, d := range t.inbox[id] {
		if d.Event == event {
			result = append(result, d.Payload)
		}
	}
	return result
}

// Calls returns every recorded primitive invocation in order.
func (t *Transport) Calls() []Call {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.calls)
}

// InGroup reports whether id is a member of room's group.
func (t *Transport) InGroup(id, room string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.groups[room][id]
}

// Reset forgets recorded calls and deliveries but keeps connections and groups.
func (t *Transport) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = nil
	t.inbox = make(map[string][]Delivery)
}

func (t *Transport) deliver(id, event string, payload any) {
	t.inbox[id] = append(t.inbox[id], Delivery{Event: event, Payload: payload})
}

// Stamp is a fixed protocol.Stamper.
type Stamp string

// Stamp returns the fixed time string.
func (s Stamp) Stamp() string { return string(s) }
