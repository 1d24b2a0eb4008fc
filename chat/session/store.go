package session

import (
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Session is a registered participant. The JSON shape is part of the
// userList wire payload.
type Session struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Room string `json:"room"`
}

// Store holds every registered session keyed by ID.
type Store struct {
	sessions *orderedmap.OrderedMap[string, Session]
	mu       sync.RWMutex
}

// NewStore creates an empty session store
func NewStore() *Store {
	return &Store{
		sessions: orderedmap.New[string, Session](),
	}
}

// Put inserts the session or replaces the entry with the same ID. A replaced
// entry moves to the end of the iteration order.
func (s *Store) Put(session Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions.Delete(session.ID)
	s.sessions.Set(session.ID, session)
}

// Remove deletes the session and returns it. Removing an unknown ID is a no-op.
func (s *Store) Remove(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sessions.Delete(id)
}

// Get retrieves a session by ID. A missing entry means the connection has not
// entered any room yet.
func (s *Store) Get(id string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sessions.Get(id)
}

// All returns a snapshot of every session in insertion order
func (s *Store) All() []Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Session, 0, s.sessions.Len())
	for pair := s.sessions.Oldest(); pair != nil; pair = pair.Next() {
		result = append(result, pair.Value)
	}

	return result
}

// Len returns the number of registered sessions
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions.Len()
}
