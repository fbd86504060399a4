package room

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomloop/server/internal/models"
	"github.com/roomloop/server/internal/protocol"
)

// stopChan grabs the live ticker's stop channel so tests can drive tick()
// deterministically. The background goroutine uses an hour-long interval in
// tests and never fires on its own.
func stopChan(r *Room) chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.timerStop
}

func lastTimerUpdate(t *testing.T, sender *fakeSender, conn string) models.TimerState {
	t.Helper()
	env, ok := sender.lastOfType(conn, protocol.EventTimerUpdate)
	require.True(t, ok)
	var state models.TimerState
	require.NoError(t, json.Unmarshal(env.Payload, &state))
	return state
}

func TestStartTimerBroadcastsFullDurationFirst(t *testing.T) {
	sender := newFakeSender()
	r := newTestRoom(sender)

	r.Join(hostIdentity("h1"), "conn-h1")

	require.NoError(t, r.StartTimer("h1", 5))

	state := lastTimerUpdate(t, sender, "conn-h1")
	assert.True(t, state.IsRunning)
	assert.Equal(t, 5, state.RemainingSeconds)
	assert.Equal(t, 5, state.DurationSeconds)
}

func TestTimerTicksAreMonotonicallyNonIncreasing(t *testing.T) {
	sender := newFakeSender()
	r := newTestRoom(sender)

	r.Join(hostIdentity("h1"), "conn-h1")
	require.NoError(t, r.StartTimer("h1", 3))
	stop := stopChan(r)
	require.NotNil(t, stop)

	assert.True(t, r.tick(stop))
	assert.Equal(t, 2, r.Timer().RemainingSeconds)
	assert.True(t, r.tick(stop))
	assert.Equal(t, 1, r.Timer().RemainingSeconds)

	// The final tick reaches zero and stops the countdown.
	assert.False(t, r.tick(stop))
	state := r.Timer()
	assert.Equal(t, 0, state.RemainingSeconds)
	assert.False(t, state.IsRunning)

	// A stale goroutine ticking after expiry is a no-op.
	assert.False(t, r.tick(stop))
	assert.Equal(t, 0, r.Timer().RemainingSeconds)

	prev := -1
	for _, env := range sender.eventsFor("conn-h1") {
		if env.Type != protocol.EventTimerUpdate {
			continue
		}
		var state models.TimerState
		require.NoError(t, json.Unmarshal(env.Payload, &state))
		if prev >= 0 {
			assert.LessOrEqual(t, state.RemainingSeconds, prev)
		}
		prev = state.RemainingSeconds
	}
}

func TestPauseFreezesAndResumeContinues(t *testing.T) {
	sender := newFakeSender()
	r := newTestRoom(sender)

	r.Join(hostIdentity("h1"), "conn-h1")
	require.NoError(t, r.StartTimer("h1", 10))
	stop := stopChan(r)
	require.True(t, r.tick(stop))

	require.NoError(t, r.PauseTimer("h1"))
	state := r.Timer()
	assert.False(t, state.IsRunning)
	assert.Equal(t, 9, state.RemainingSeconds)

	// A stale tick after pause must not decrement.
	assert.False(t, r.tick(stop))
	assert.Equal(t, 9, r.Timer().RemainingSeconds)

	// Zero duration resumes from where it left off.
	require.NoError(t, r.StartTimer("h1", 0))
	state = r.Timer()
	assert.True(t, state.IsRunning)
	assert.Equal(t, 9, state.RemainingSeconds)
}

func TestResetRearmsTimer(t *testing.T) {
	sender := newFakeSender()
	r := newTestRoom(sender)

	r.Join(hostIdentity("h1"), "conn-h1")
	require.NoError(t, r.StartTimer("h1", 10))
	require.True(t, r.tick(stopChan(r)))

	require.NoError(t, r.ResetTimer("h1", 30))
	state := r.Timer()
	assert.False(t, state.IsRunning)
	assert.Equal(t, 30, state.DurationSeconds)
	assert.Equal(t, 30, state.RemainingSeconds)

	require.NoError(t, r.StartTimer("h1", 0))
	assert.Equal(t, 30, r.Timer().RemainingSeconds)
}

func TestTimerIsHostOnlyAndNeedsDuration(t *testing.T) {
	sender := newFakeSender()
	r := newTestRoom(sender)

	r.Join(hostIdentity("h1"), "conn-h1")
	r.Join(attendeeIdentity("a1"), "conn-a1")

	assert.ErrorIs(t, r.StartTimer("a1", 5), ErrPermissionDenied)
	assert.ErrorIs(t, r.PauseTimer("a1"), ErrPermissionDenied)
	assert.ErrorIs(t, r.ResetTimer("a1", 5), ErrPermissionDenied)

	// Resuming before any duration was ever configured is rejected.
	assert.ErrorIs(t, r.StartTimer("h1", 0), ErrTimerNotConfigured)
}
