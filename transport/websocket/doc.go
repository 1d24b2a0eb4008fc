// Package websocket provides the WebSocket transport for roomcast chat rooms.
//
// The websocket package implements:
//   - Connection identity (one random id per socket)
//   - Per-connection unicast, per-room multicast and server-wide broadcast
//   - Room group membership
//   - Connection lifecycle notifications to an EventHandler
//
// Architecture:
//
// The package uses a hub-and-spoke model where a central Hub manages all
// WebSocket connections. Each connection has a read pump and a write pump
// goroutine. Registration, unregistration and inbound frames all pass
// through the hub's single event loop, so the handler sees each
// connection's events in the order they happened.
//
// Message Protocol:
//
// Every frame, in either direction, is one JSON envelope:
//
//	{"event": "enterRoom", "data": {"name": "Alice", "room": "lobby"}}
//
// A connection whose outbound buffer fills up is dropped and reported to
// the handler as a disconnect.
//
// Usage:
//
//	hub := websocket.NewHub(logger)
//	hub.SetHandler(handler)
//	go hub.Run(ctx)
//
//	http.HandleFunc("/ws", hub.ServeWS)
//
// Connection Lifecycle:
//
// 1. Client connects and is assigned an id
// 2. Connection registered with hub, handler.Connect called
// 3. Inbound envelopes are passed to handler.HandleEvent
// 4. Disconnection removes the connection from every group, then handler.Disconnect is called
package websocket
