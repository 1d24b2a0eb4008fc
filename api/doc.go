// Package api provides the HTTP surface of the chat server.
//
// The api package implements:
//   - WebSocket upgrade handling for chat connections
//   - Read-only presence inspection endpoints
//   - Health checks
//
// Endpoints:
//
//   - GET /ws - Upgrade to a chat connection
//   - GET /health - Liveness probe
//   - GET /api/rooms - List active rooms
//   - GET /api/rooms/{room}/users - Roster of one room
//   - GET /api/sessions/{id} - A single registered session
//   - GET /api/stats - Room, session and connection counts
//
// Presence endpoints never mutate state; only connection events do.
//
// Error Handling:
//
// Errors are returned as JSON with an appropriate HTTP status code:
//
//	{
//	  "error": "room not found"
//	}
package api
