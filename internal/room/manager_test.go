package room

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateReturnsSameRoom(t *testing.T) {
	m := NewManager(newFakeSender(), nil, time.Hour, time.Hour, nil)

	r1 := m.GetOrCreate("meeting-1")
	r2 := m.GetOrCreate("meeting-1")
	assert.Same(t, r1, r2)
	assert.Equal(t, 1, m.Count())

	m.GetOrCreate("meeting-2")
	assert.Equal(t, 2, m.Count())
}

func TestRoomDestroyedAfterGracePeriod(t *testing.T) {
	var mu sync.Mutex
	var destroyed []string
	m := NewManager(newFakeSender(), nil, 20*time.Millisecond, time.Hour, func(id string) {
		mu.Lock()
		destroyed = append(destroyed, id)
		mu.Unlock()
	})

	r := m.GetOrCreate("meeting-1")
	r.Join(attendeeIdentity("a1"), "conn-a1")
	r.Leave("conn-a1")

	_, ok := m.Get("meeting-1")
	assert.True(t, ok, "room survives until the grace period elapses")

	require.Eventually(t, func() bool {
		_, ok := m.Get("meeting-1")
		return !ok
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"meeting-1"}, destroyed)
}

func TestRejoinWithinGraceCancelsDestruction(t *testing.T) {
	m := NewManager(newFakeSender(), nil, 50*time.Millisecond, time.Hour, nil)

	r := m.GetOrCreate("meeting-1")
	r.Join(hostIdentity("h1"), "conn-1")
	require.NoError(t, r.ToggleQA("h1", true))
	r.Leave("conn-1")

	// A reconnect during the grace window keeps the room and its state.
	r2 := m.GetOrCreate("meeting-1")
	require.Same(t, r, r2)
	r2.Join(hostIdentity("h1"), "conn-2")
	assert.True(t, r2.Snapshot("h1").QAEnabled)

	time.Sleep(120 * time.Millisecond)
	_, ok := m.Get("meeting-1")
	assert.True(t, ok)
}

func TestLateGraceCallbackCannotDestroyRevivedRoom(t *testing.T) {
	m := NewManager(newFakeSender(), nil, time.Hour, time.Hour, nil)

	r := m.GetOrCreate("meeting-1")
	r.Join(attendeeIdentity("a1"), "conn-1")
	r.Leave("conn-1")

	m.mu.Lock()
	stale := m.pending["meeting-1"]
	m.mu.Unlock()
	require.NotNil(t, stale)

	// A reconnecting client is handed the existing room, cancelling the
	// pending destroy.
	r2 := m.GetOrCreate("meeting-1")
	require.Same(t, r, r2)

	// The grace callback may have fired already and only now wins the lock.
	// It no longer owns the room and must leave it alone.
	m.destroyIfEmpty("meeting-1", stale)

	got, ok := m.Get("meeting-1")
	require.True(t, ok)
	assert.Same(t, r, got)
}

func TestDestructionSkippedWhenRoomRefills(t *testing.T) {
	m := NewManager(newFakeSender(), nil, 20*time.Millisecond, time.Hour, nil)

	r := m.GetOrCreate("meeting-1")
	r.Join(attendeeIdentity("a1"), "conn-a1")
	r.Leave("conn-a1")

	// Someone joins the existing room object before the timer fires.
	r.Join(attendeeIdentity("a2"), "conn-a2")

	time.Sleep(60 * time.Millisecond)
	got, ok := m.Get("meeting-1")
	require.True(t, ok)
	assert.Len(t, got.UserList(), 1)
}

func TestRoomsAreIndependent(t *testing.T) {
	m := NewManager(newFakeSender(), nil, time.Hour, time.Hour, nil)

	r1 := m.GetOrCreate("meeting-1")
	r2 := m.GetOrCreate("meeting-2")

	r1.Join(hostIdentity("h1"), "conn-1")
	r2.Join(attendeeIdentity("a1"), "conn-2")
	require.NoError(t, r1.ToggleQA("h1", true))

	assert.True(t, r1.Snapshot("h1").QAEnabled)
	assert.False(t, r2.Snapshot("a1").QAEnabled)
	assert.Equal(t, 2, m.ParticipantCount())
}
