// Package room derives rooms from session data. A room is not stored: it
// exists exactly while at least one session references it.
package room

import (
	"github.com/samber/lo"

	"github.com/wricardo/mcp-training/roomcast/chat/session"
)

// Sessions is the read side of the session store.
type Sessions interface {
	All() []session.Session
}

// View answers membership queries, recomputed on every call.
type View struct {
	sessions Sessions
}

// NewView creates a View over the given sessions
func NewView(sessions Sessions) *View {
	return &View{sessions: sessions}
}

// MembersOf returns the sessions whose room equals name (exact,
// case-sensitive match) in store order.
func (v *View) MembersOf(name string) []session.Session {
	return lo.Filter(v.sessions.All(), func(s session.Session, _ int) bool {
		return s.Room == name
	})
}

// ActiveRoomNames returns every distinct room in first-seen store order.
func (v *View) ActiveRoomNames() []string {
	return lo.Uniq(lo.Map(v.sessions.All(), func(s session.Session, _ int) string {
		return s.Room
	}))
}

// Occupancy counts members per active room.
func (v *View) Occupancy() map[string]int {
	return lo.CountValuesBy(v.sessions.All(), func(s session.Session) string {
		return s.Room
	})
}
