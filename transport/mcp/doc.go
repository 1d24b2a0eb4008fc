// Package mcp exposes chat presence to AI agents over the Model Context Protocol.
//
// The mcp package implements a thin MCP server whose tools proxy to the
// REST API, so it works against a local or a remote chat server alike.
//
// MCP Tools:
//   - list_rooms: Active rooms
//   - room_members: Roster of one room
//   - get_session: A single registered session
//   - presence_stats: Room, session and connection counts
//
// Transport Modes:
//   - Stdio: Direct stdio communication for local MCP clients
//   - HTTP: The /mcp endpoint mounted by the server command
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
package mcp
