// Package session provides the process-wide registry of connected participants.
//
// The session package implements:
//   - Thread-safe session storage and retrieval keyed by connection id
//   - Replace-on-put semantics so an id is never registered twice
//   - Deterministic, insertion-ordered snapshots
//
// Core Types:
//
// Session is one participant: the transport-assigned connection id, the
// display name it registered with and the room it currently occupies.
// Store owns every Session. It performs no I/O and emits no notifications;
// callers decide what to announce and in which order.
//
// Lifecycle:
//
// A Session is created by the first room entry of a connection, not by the
// raw connect, and destroyed when the connection goes away. Entering a room
// again replaces the entry for the same id and moves it to the end of the
// iteration order.
//
// Usage:
//
//	store := session.NewStore()
//
//	store.Put(session.Session{ID: id, Name: "Alice", Room: "lobby"})
//
//	if s, ok := store.Get(id); ok {
//		log.Printf("%s is in %s", s.Name, s.Room)
//	}
//
//	store.Remove(id)
package session
