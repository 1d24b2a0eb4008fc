package presence

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/mcp-training/roomcast/chat/internal/chattest"
	"github.com/wricardo/mcp-training/roomcast/chat/protocol"
	"github.com/wricardo/mcp-training/roomcast/chat/room"
	"github.com/wricardo/mcp-training/roomcast/chat/session"
)

const testTime = "12:00:00 PM"

type fixture struct {
	store       *session.Store
	view        *room.View
	transport   *chattest.Transport
	coordinator *Coordinator
}

func newFixture(connected ...string) fixture {
	store := session.NewStore()
	view := room.NewView(store)
	transport := chattest.NewTransport()
	for _, id := range connected {
		transport.Connect(id)
	}
	return fixture{
		store:       store,
		view:        view,
		transport:   transport,
		coordinator: NewCoordinator(store, view, transport, chattest.Stamp(testTime), nil),
	}
}

func adminMessage(text string) protocol.Message {
	return protocol.Message{Name: protocol.AdminName, Text: text, Time: testTime}
}

func userIDs(t *testing.T, payload any) []string {
	t.Helper()
	list, ok := payload.(protocol.UserList)
	require.True(t, ok, "expected UserList, got %T", payload)
	ids := make([]string, 0, len(list.Users))
	for _, u := range list.Users {
		ids = append(ids, u.ID)
	}
	return ids
}

func TestCoordinator_FirstJoin(t *testing.T) {
	f := newFixture("A1", "C1")

	joined := f.coordinator.EnterRoom("A1", "Alice", "lobby")
	assert.Equal(t, session.Session{ID: "A1", Name: "Alice", Room: "lobby"}, joined)

	got := f.transport.Received("A1")
	require.Len(t, got, 3)
	assert.Equal(t, chattest.Delivery{Event: protocol.EventMessage, Payload: adminMessage("You have joined lobby room")}, got[0])
	assert.Equal(t, protocol.EventUserList, got[1].Event)
	assert.Equal(t, []string{"A1"}, userIDs(t, got[1].Payload))
	assert.Equal(t, chattest.Delivery{Event: protocol.EventRoomList, Payload: protocol.RoomList{Rooms: []string{"lobby"}}}, got[2])

	// the room list reaches connections that never joined
	assert.Equal(t, []any{protocol.RoomList{Rooms: []string{"lobby"}}},
		f.transport.ReceivedEvent("C1", protocol.EventRoomList))
	assert.Empty(t, f.transport.ReceivedEvent("C1", protocol.EventMessage))
}

func TestCoordinator_SecondJoinAnnounced(t *testing.T) {
	f := newFixture("A1", "B1")
	f.coordinator.EnterRoom("A1", "Alice", "lobby")
	f.transport.Reset()

	f.coordinator.EnterRoom("B1", "Bob", "lobby")

	assert.Equal(t, []any{adminMessage("Bob has joined the room")},
		f.transport.ReceivedEvent("A1", protocol.EventMessage))
	assert.Equal(t, []any{adminMessage("You have joined lobby room")},
		f.transport.ReceivedEvent("B1", protocol.EventMessage), "joiner is not told about itself")

	for _, id := range []string{"A1", "B1"} {
		lists := f.transport.ReceivedEvent(id, protocol.EventUserList)
		require.Len(t, lists, 1, id)
		assert.Equal(t, []string{"A1", "B1"}, userIDs(t, lists[0]), id)
	}
}

func TestCoordinator_MoveRooms(t *testing.T) {
	f := newFixture("A1", "B1")
	f.coordinator.EnterRoom("A1", "Alice", "lobby")
	f.coordinator.EnterRoom("B1", "Bob", "lobby")
	f.transport.Reset()

	f.coordinator.EnterRoom("A1", "Alice", "help")

	bob := f.transport.Received("B1")
	require.Len(t, bob, 3)
	assert.Equal(t, chattest.Delivery{Event: protocol.EventMessage, Payload: adminMessage("Alice has left the room")}, bob[0])
	assert.Equal(t, []string{"B1"}, userIDs(t, bob[1].Payload))
	assert.Equal(t, protocol.EventRoomList, bob[2].Event)
	assert.ElementsMatch(t, []string{"lobby", "help"}, bob[2].Payload.(protocol.RoomList).Rooms)

	alice := f.transport.Received("A1")
	require.Len(t, alice, 3)
	assert.Equal(t, adminMessage("You have joined help room"), alice[0].Payload)
	assert.Equal(t, []string{"A1"}, userIDs(t, alice[1].Payload))
	assert.Equal(t, protocol.EventRoomList, alice[2].Event)

	assert.False(t, f.transport.InGroup("A1", "lobby"))
	assert.True(t, f.transport.InGroup("A1", "help"))
}

func TestCoordinator_TransitionOrder(t *testing.T) {
	f := newFixture("A1", "B1")
	f.coordinator.EnterRoom("A1", "Alice", "lobby")
	f.coordinator.EnterRoom("B1", "Bob", "lobby")
	f.transport.Reset()

	f.coordinator.EnterRoom("A1", "Alice", "help")

	type step struct{ op, room, event string }
	var steps []step
	for _, c := range f.transport.Calls() {
		steps = append(steps, step{op: c.Op, room: c.Room, event: c.Event})
	}

	assert.Equal(t, []step{
		{op: "leave", room: "lobby"},
		{op: "room", room: "lobby", event: protocol.EventMessage},
		{op: "room", room: "lobby", event: protocol.EventUserList},
		{op: "join", room: "help"},
		{op: "unicast", event: protocol.EventMessage},
		{op: "room", room: "help", event: protocol.EventMessage},
		{op: "room", room: "help", event: protocol.EventUserList},
		{op: "all", event: protocol.EventRoomList},
	}, steps)

	calls := f.transport.Calls()
	assert.Equal(t, []string{"B1"}, userIDs(t, calls[2].Payload), "previous roster is computed after the mutation")
	assert.Equal(t, []string{"A1"}, calls[5].Except)
}

func TestCoordinator_LeaveApp(t *testing.T) {
	t.Run("last member leaves and room disappears", func(t *testing.T) {
		f := newFixture("A1", "B1")
		f.coordinator.EnterRoom("B1", "Bob", "lobby")
		f.coordinator.EnterRoom("A1", "Alice", "help")
		f.transport.Reset()

		f.transport.Disconnect("A1")
		departed, ok := f.coordinator.LeaveApp("A1")

		require.True(t, ok)
		assert.Equal(t, "Alice", departed.Name)
		_, found := f.store.Get("A1")
		assert.False(t, found)
		assert.Empty(t, f.view.MembersOf("help"))

		assert.Equal(t, []any{protocol.RoomList{Rooms: []string{"lobby"}}},
			f.transport.ReceivedEvent("B1", protocol.EventRoomList))

		var helpRoster []any
		for _, c := range f.transport.Calls() {
			if c.Op == "room" && c.Room == "help" && c.Event == protocol.EventUserList {
				helpRoster = append(helpRoster, c.Payload)
			}
		}
		require.Len(t, helpRoster, 1)
		assert.Empty(t, userIDs(t, helpRoster[0]))
	})

	t.Run("remaining members are told", func(t *testing.T) {
		f := newFixture("A1", "B1")
		f.coordinator.EnterRoom("A1", "Alice", "lobby")
		f.coordinator.EnterRoom("B1", "Bob", "lobby")
		f.transport.Reset()

		f.transport.Disconnect("A1")
		f.coordinator.LeaveApp("A1")

		bob := f.transport.Received("B1")
		require.Len(t, bob, 3)
		assert.Equal(t, adminMessage("Alice has left the room"), bob[0].Payload)
		assert.Equal(t, []string{"B1"}, userIDs(t, bob[1].Payload))
		assert.Equal(t, protocol.RoomList{Rooms: []string{"lobby"}}, bob[2].Payload)
	})

	t.Run("unjoined session is a silent no-op", func(t *testing.T) {
		f := newFixture("A1", "B1")

		_, ok := f.coordinator.LeaveApp("A1")

		assert.False(t, ok)
		assert.Empty(t, f.transport.Calls())
	})

	t.Run("second disconnect is a no-op", func(t *testing.T) {
		f := newFixture("A1")
		f.coordinator.EnterRoom("A1", "Alice", "lobby")
		f.coordinator.LeaveApp("A1")
		f.transport.Reset()

		_, ok := f.coordinator.LeaveApp("A1")
		assert.False(t, ok)
		assert.Empty(t, f.transport.Calls())
	})
}

func TestCoordinator_IdempotentRejoin(t *testing.T) {
	f := newFixture("A1", "B1")
	f.coordinator.EnterRoom("B1", "Bob", "lobby")
	f.coordinator.EnterRoom("A1", "Alice", "lobby")
	f.coordinator.EnterRoom("A1", "Alice", "lobby")

	assert.Equal(t, 2, f.store.Len())
	members := f.view.MembersOf("lobby")
	require.Len(t, members, 2)
	assert.Equal(t, session.Session{ID: "A1", Name: "Alice", Room: "lobby"}, members[1])
	assert.True(t, f.transport.InGroup("A1", "lobby"))
	assert.Equal(t, []string{"lobby"}, f.view.ActiveRoomNames())
}

func TestCoordinator_NameChangeOnReentry(t *testing.T) {
	f := newFixture("A1", "B1")
	f.coordinator.EnterRoom("A1", "Alice", "lobby")
	f.coordinator.EnterRoom("B1", "Bob", "lobby")
	f.transport.Reset()

	f.coordinator.EnterRoom("A1", "Alicia", "lobby")

	assert.Equal(t, []any{
		adminMessage("Alicia has left the room"),
		adminMessage("Alicia has joined the room"),
	}, f.transport.ReceivedEvent("B1", protocol.EventMessage))

	got, _ := f.store.Get("A1")
	assert.Equal(t, "Alicia", got.Name)
}

func TestCoordinator_ConcurrentTransitions(t *testing.T) {
	const sessions = 20
	rooms := []string{"lobby", "help", "random"}

	ids := make([]string, sessions)
	for i := range ids {
		ids[i] = fmt.Sprintf("s%d", i)
	}
	f := newFixture(ids...)

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				f.coordinator.EnterRoom(id, id, rooms[(i+j)%len(rooms)])
			}
			if i%4 == 0 {
				f.coordinator.LeaveApp(id)
			}
		}(i, id)
	}
	wg.Wait()

	seen := map[string]int{}
	for _, name := range f.view.ActiveRoomNames() {
		for _, m := range f.view.MembersOf(name) {
			seen[m.ID]++
			assert.True(t, f.transport.InGroup(m.ID, name), "%s should be in group %s", m.ID, name)
		}
	}

	for i, id := range ids {
		if i%4 == 0 {
			assert.Zero(t, seen[id], id)
			continue
		}
		assert.Equal(t, 1, seen[id], id)
	}
}
