package hub

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, c Client) Event {
	t.Helper()
	select {
	case raw := <-c:
		var ev Event
		require.NoError(t, json.Unmarshal(raw, &ev))
		return ev
	default:
		t.Fatal("expected a message")
		return Event{}
	}
}

func TestBroadcastReachesAllRoomClients(t *testing.T) {
	h := NewHub()
	a := make(Client, 4)
	b := make(Client, 4)
	other := make(Client, 4)
	h.Subscribe(1, 10, a)
	h.Subscribe(1, 20, b)
	h.Subscribe(2, 30, other)

	h.Broadcast(1, Event{Type: "room_state", Payload: "x"})

	assert.Equal(t, "room_state", recv(t, a).Type)
	assert.Equal(t, "room_state", recv(t, b).Type)
	assert.Empty(t, other, "other rooms must not receive the event")
}

func TestSendToUserIsPrivate(t *testing.T) {
	h := NewHub()
	sheriff := make(Client, 4)
	bystander := make(Client, 4)
	h.Subscribe(1, 10, sheriff)
	h.Subscribe(1, 20, bystander)

	h.SendToUser(1, 10, Event{Type: "sheriff_result"})

	assert.Equal(t, "sheriff_result", recv(t, sheriff).Type)
	assert.Empty(t, bystander)
}

func TestSendToUserMultipleConnections(t *testing.T) {
	h := NewHub()
	phone := make(Client, 4)
	laptop := make(Client, 4)
	h.Subscribe(1, 10, phone)
	h.Subscribe(1, 10, laptop)

	h.SendToUser(1, 10, Event{Type: "role_assigned"})

	assert.Equal(t, "role_assigned", recv(t, phone).Type)
	assert.Equal(t, "role_assigned", recv(t, laptop).Type)
}

func TestUnsubscribeClosesClient(t *testing.T) {
	h := NewHub()
	c := make(Client, 4)
	h.Subscribe(1, 10, c)
	h.Unsubscribe(1, c)

	_, open := <-c
	assert.False(t, open)

	// Broadcast to the now-empty room is a no-op.
	h.Broadcast(1, Event{Type: "room_state"})

	// Double unsubscribe must not double-close.
	h.Unsubscribe(1, c)
}

func TestBroadcastSkipsFullClient(t *testing.T) {
	h := NewHub()
	full := make(Client, 1)
	full <- []byte("backlog")
	healthy := make(Client, 4)
	h.Subscribe(1, 10, full)
	h.Subscribe(1, 20, healthy)

	h.Broadcast(1, Event{Type: "room_state"})

	assert.Equal(t, "room_state", recv(t, healthy).Type, "a slow client must not block the rest")
}
