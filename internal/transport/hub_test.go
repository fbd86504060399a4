package transport

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomloop/server/internal/models"
	"github.com/roomloop/server/internal/protocol"
	"github.com/roomloop/server/internal/room"
)

func testClient(connID string) *Client {
	return &Client{
		ConnectionID: connID,
		Identity:     models.Identity{UserID: "u-" + connID},
		send:         make(chan []byte, 4),
		done:         make(chan struct{}),
	}
}

func TestHubEnforcesCapacity(t *testing.T) {
	h := NewHub(2)

	require.True(t, h.add(testClient("c1")))
	require.True(t, h.add(testClient("c2")))
	assert.False(t, h.add(testClient("c3")))
	assert.Equal(t, 2, h.Count())
}

func TestHubSendQueuesForConnection(t *testing.T) {
	h := NewHub(0)
	c := testClient("c1")
	require.True(t, h.add(c))

	h.Send("c1", []byte(`{"type":"ping"}`))
	h.Send("unknown", []byte(`ignored`))

	require.Len(t, c.send, 1)
	assert.Equal(t, `{"type":"ping"}`, string(<-c.send))
}

func TestHubRemoveIgnoresStaleClient(t *testing.T) {
	h := NewHub(0)

	old := testClient("c1")
	require.True(t, h.add(old))
	h.remove(old)

	// A reconnect reusing the id must not be evicted by the old teardown.
	fresh := testClient("c1")
	require.True(t, h.add(fresh))
	h.remove(old)
	assert.Equal(t, 1, h.Count())
}

func TestShutdownToleratesLateMediaSignals(t *testing.T) {
	h := NewHub(0)
	c := testClient("c1")
	require.True(t, h.add(c))

	h.Shutdown()
	h.Shutdown()

	select {
	case <-c.done:
	default:
		t.Fatal("shutdown did not stop the client")
	}
	assert.Equal(t, 0, h.Count())

	// The media plane closes sessions on its own goroutines; a signal
	// arriving after shutdown lands in the buffer instead of panicking.
	assert.NotPanics(t, func() {
		c.Signal(protocol.EventMediaClosed, map[string]string{"reason": "room closed"})
	})
}

func TestRejectionCodeMapsRoomErrors(t *testing.T) {
	cases := map[string]struct {
		err  error
		code string
	}{
		"permission": {room.ErrPermissionDenied, "FORBIDDEN"},
		"not in":     {room.ErrNotInRoom, "NOT_IN_ROOM"},
		"target":     {room.ErrUnknownTarget, "UNKNOWN_TARGET"},
		"breakout":   {room.ErrNotInBreakout, "NOT_IN_BREAKOUT"},
		"poll 404":   {room.ErrPollNotFound, "NOT_FOUND"},
		"lifecycle":  {room.ErrPollNotActive, "INVALID_STATE"},
		"qa off":     {room.ErrQADisabled, "QA_DISABLED"},
		"payload":    {room.ErrInvalidChoice, "INVALID_PAYLOAD"},
		"unknown":    {errors.New("boom"), "INTERNAL"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.code, rejectionCode(tc.err))
		})
	}
}
