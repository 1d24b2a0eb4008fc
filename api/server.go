package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wricardo/mcp-training/roomcast/chat/service"
	"github.com/wricardo/mcp-training/roomcast/transport/websocket"
)

// Server represents the HTTP API server
type Server struct {
	presence service.PresenceService
	hub      *websocket.Hub
	router   *mux.Router
}

// NewServer creates a new API server
func NewServer(presence service.PresenceService, hub *websocket.Hub) *Server {
	s := &Server{
		presence: presence,
		hub:      hub,
		router:   mux.NewRouter(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	// Full paths on the root router so a wrong method is answered with 405.
	s.router.HandleFunc("/api/rooms", s.handleListRooms).Methods("GET")
	s.router.HandleFunc("/api/rooms/{room}/users", s.handleListMembers).Methods("GET")
	s.router.HandleFunc("/api/sessions/{id}", s.handleGetSession).Methods("GET")
	s.router.HandleFunc("/api/stats", s.handleStats).Methods("GET")

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	// WebSocket
	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, service.ErrRoomNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.presence.ListRooms(r.Context())
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(rooms),
		"rooms": rooms,
	})
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	room := mux.Vars(r)["room"]

	members, err := s.presence.ListMembers(r.Context(), room)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"room":  room,
		"count": len(members),
		"users": members,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	sess, err := s.presence.GetSession(r.Context(), sessionID)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.presence.Stats(r.Context())
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"rooms":       stats.Rooms,
		"sessions":    stats.Sessions,
		"occupancy":   stats.Occupancy,
		"connections": s.hub.Connections(),
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.hub.ServeWS(w, r)
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
