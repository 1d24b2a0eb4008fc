package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/mcp-training/roomcast/chat/session"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"roomcast",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`roomcast - MCP Interface

Read-only view of a running chat server: who is connected and which room
each participant occupies. A participant is always in exactly one room and
a room exists only while someone is in it.

AVAILABLE TOOLS:
- list_rooms: Active rooms
- room_members: Participants in a room
- get_session: Look up one participant by session id
- presence_stats: Room, session and connection counts`),
	)

	c.registerTools()
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_rooms",
		Description: "List all active chat rooms",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListRooms)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "room_members",
		Description: "List the participants currently in a room",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room": map[string]interface{}{
					"type":        "string",
					"description": "Room name (case-sensitive)",
				},
			},
			Required: []string{"room"},
		},
	}, c.handleRoomMembers)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get the name and room of a registered session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Session ID",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleGetSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "presence_stats",
		Description: "Count rooms, registered sessions and live connections",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handlePresenceStats)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiGet(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(result)
}

func stringArg(request mcp.CallToolRequest, name string) string {
	args, _ := request.Params.Arguments.(map[string]interface{})
	value, _ := args[name].(string)
	return value
}

// Tool handlers

func (c *Client) handleListRooms(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count int      `json:"count"`
		Rooms []string `json:"rooms"`
	}

	if err := c.apiGet(ctx, "/api/rooms", &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if response.Count == 0 {
		return mcp.NewToolResultText("No active rooms"), nil
	}

	result := fmt.Sprintf("Active Rooms (%d):\n", response.Count)
	for _, r := range response.Rooms {
		result += fmt.Sprintf("- %s\n", r)
	}
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleRoomMembers(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	room := stringArg(request, "room")
	if room == "" {
		return mcp.NewToolResultError("room is required"), nil
	}

	var response struct {
		Room  string            `json:"room"`
		Count int               `json:"count"`
		Users []session.Session `json:"users"`
	}

	if err := c.apiGet(ctx, "/api/rooms/"+url.PathEscape(room)+"/users", &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Room %s (%d):\n", response.Room, response.Count)
	for _, u := range response.Users {
		result += fmt.Sprintf("- %s (%s)\n", u.Name, u.ID)
	}
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := stringArg(request, "session_id")
	if sessionID == "" {
		return mcp.NewToolResultError("session_id is required"), nil
	}

	var sess session.Session
	if err := c.apiGet(ctx, "/api/sessions/"+url.PathEscape(sessionID), &sess); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Session %s\nName: %s\nRoom: %s\n", sess.ID, sess.Name, sess.Room)), nil
}

func (c *Client) handlePresenceStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var stats struct {
		Rooms       int            `json:"rooms"`
		Sessions    int            `json:"sessions"`
		Connections int            `json:"connections"`
		Occupancy   map[string]int `json:"occupancy"`
	}

	if err := c.apiGet(ctx, "/api/stats", &stats); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Rooms: %d\nSessions: %d\nConnections: %d\n", stats.Rooms, stats.Sessions, stats.Connections)

	rooms := make([]string, 0, len(stats.Occupancy))
	for r := range stats.Occupancy {
		rooms = append(rooms, r)
	}
	sort.Strings(rooms)
	for _, r := range rooms {
		result += fmt.Sprintf("  %s: %d\n", r, stats.Occupancy[r])
	}

	return mcp.NewToolResultText(result), nil
}
