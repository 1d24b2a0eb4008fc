// Package service exposes read-only presence queries to the HTTP and MCP
// surfaces. It never mutates sessions; only connection events do that.
package service

import (
	"context"
	"errors"

	"github.com/wricardo/mcp-training/roomcast/chat/room"
	"github.com/wricardo/mcp-training/roomcast/chat/session"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrRoomNotFound    = errors.New("room not found")
)

// PresenceService answers questions about who is where
type PresenceService interface {
	ListRooms(ctx context.Context) ([]string, error)
	ListMembers(ctx context.Context, room string) ([]session.Session, error)
	GetSession(ctx context.Context, sessionID string) (*session.Session, error)
	Stats(ctx context.Context) (*Stats, error)
}

// Stats summarizes current occupancy
type Stats struct {
	Rooms     int            `json:"rooms"`
	Sessions  int            `json:"sessions"`
	Occupancy map[string]int `json:"occupancy"`
}

type presenceService struct {
	store *session.Store
	view  *room.View
}

// NewPresenceService creates a PresenceService over the live store
func NewPresenceService(store *session.Store, view *room.View) PresenceService {
	return &presenceService{store: store, view: view}
}

func (s *presenceService) ListRooms(ctx context.Context) ([]string, error) {
	return s.view.ActiveRoomNames(), nil
}

func (s *presenceService) ListMembers(ctx context.Context, name string) ([]session.Session, error) {
	members := s.view.MembersOf(name)
	if len(members) == 0 {
		return nil, ErrRoomNotFound
	}
	return members, nil
}

func (s *presenceService) GetSession(ctx context.Context, sessionID string) (*session.Session, error) {
	sess, ok := s.store.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &sess, nil
}

func (s *presenceService) Stats(ctx context.Context) (*Stats, error) {
	occupancy := s.view.Occupancy()
	sessions := 0
	for _, n := range occupancy {
		sessions += n
	}
	return &Stats{
		Rooms:     len(occupancy),
		Sessions:  sessions,
		Occupancy: occupancy,
	}, nil
}
