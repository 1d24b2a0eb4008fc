package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/mcp-training/roomcast/chat/session"
)

type stamp string

func (s stamp) Stamp() string { return string(s) }

func TestBuildMessage(t *testing.T) {
	msg := BuildMessage(stamp("3:04:05 PM"), AdminName, "hello")

	assert.Equal(t, Message{Name: "Admin", Text: "hello", Time: "3:04:05 PM"}, msg)
}

func TestSystemTexts(t *testing.T) {
	assert.Equal(t, "You have joined lobby room", JoinedSelfText("lobby"))
	assert.Equal(t, "Bob has joined the room", JoinedRoomText("Bob"))
	assert.Equal(t, "Alice has left the room", LeftRoomText("Alice"))
}

func TestPayloadShapes(t *testing.T) {
	tests := []struct {
		name    string
		payload any
		want    string
	}{
		{
			name:    "message",
			payload: Message{Name: "Alice", Text: "hi", Time: "1:02:03 PM"},
			want:    `{"name":"Alice","text":"hi","time":"1:02:03 PM"}`,
		},
		{
			name:    "activity is a bare string",
			payload: "Alice",
			want:    `"Alice"`,
		},
		{
			name: "user list",
			payload: UserList{Users: []session.Session{
				{ID: "A1", Name: "Alice", Room: "lobby"},
			}},
			want: `{"users":[{"id":"A1","name":"Alice","room":"lobby"}]}`,
		},
		{
			name:    "empty user list",
			payload: UserList{Users: []session.Session{}},
			want:    `{"users":[]}`,
		},
		{
			name:    "room list",
			payload: RoomList{Rooms: []string{"lobby", "help"}},
			want:    `{"rooms":["lobby","help"]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.payload)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestEncode(t *testing.T) {
	frame, err := Encode(EventRoomList, RoomList{Rooms: []string{"lobby"}})
	require.NoError(t, err)

	assert.JSONEq(t, `{"event":"roomList","data":{"rooms":["lobby"]}}`, string(frame))
}

func TestDecode(t *testing.T) {
	t.Run("valid frame", func(t *testing.T) {
		env, err := Decode([]byte(`{"event":"enterRoom","data":{"name":"Alice","room":"lobby"}}`))
		require.NoError(t, err)
		assert.Equal(t, EventEnterRoom, env.Event)

		var req EnterRoomRequest
		require.NoError(t, json.Unmarshal(env.Data, &req))
		assert.Equal(t, EnterRoomRequest{Name: "Alice", Room: "lobby"}, req)
	})

	t.Run("not json", func(t *testing.T) {
		_, err := Decode([]byte("not json"))
		assert.Error(t, err)
	})

	t.Run("missing event", func(t *testing.T) {
		_, err := Decode([]byte(`{"data":"x"}`))
		assert.Error(t, err)
	})
}
