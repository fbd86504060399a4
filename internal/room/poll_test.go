package room

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomloop/server/internal/models"
	"github.com/roomloop/server/internal/protocol"
)

func createTestPoll(t *testing.T, r *Room, action protocol.CreatePoll) models.Poll {
	t.Helper()
	if action.Question == "" {
		action.Question = "Lunch?"
	}
	if action.Options == nil {
		action.Options = []string{"Pizza", "Salad", "Sushi"}
	}
	poll, err := r.CreatePoll("h1", action)
	require.NoError(t, err)
	return poll
}

func TestPollLifecycleIsMonotonic(t *testing.T) {
	sender := newFakeSender()
	r := newTestRoom(sender)

	r.Join(hostIdentity("h1"), "conn-h1")
	r.Join(attendeeIdentity("a1"), "conn-a1")

	poll := createTestPoll(t, r, protocol.CreatePoll{})

	// Responses before launch are rejected, not dropped silently.
	err := r.RespondPoll("a1", protocol.RespondPoll{PollID: poll.ID, Choices: []int{0}})
	assert.ErrorIs(t, err, ErrPollNotActive)

	require.NoError(t, r.LaunchPoll("h1", poll.ID))
	assert.ErrorIs(t, r.LaunchPoll("h1", poll.ID), ErrPollNotUpcoming)

	require.NoError(t, r.RespondPoll("a1", protocol.RespondPoll{PollID: poll.ID, Choices: []int{1}}))

	require.NoError(t, r.EndPoll("h1", poll.ID))
	assert.ErrorIs(t, r.EndPoll("h1", poll.ID), ErrPollNotActive)

	// A late response after end must not mutate the results.
	err = r.RespondPoll("a1", protocol.RespondPoll{PollID: poll.ID, Choices: []int{2}})
	assert.ErrorIs(t, err, ErrPollNotActive)

	polls := r.Polls()
	require.Len(t, polls, 1)
	assert.Equal(t, models.PollEnded, polls[0].Status)
	assert.Equal(t, []int{1}, polls[0].Responses["a1"])
}

func TestNonHostCannotLaunchAndNoBroadcastLeaks(t *testing.T) {
	sender := newFakeSender()
	r := newTestRoom(sender)

	r.Join(hostIdentity("h1"), "conn-h1")
	r.Join(attendeeIdentity("a1"), "conn-a1")

	poll := createTestPoll(t, r, protocol.CreatePoll{})

	assert.ErrorIs(t, r.LaunchPoll("a1", poll.ID), ErrPermissionDenied)
	assert.Equal(t, 0, sender.countOfType("conn-h1", protocol.EventPollLaunched))
	assert.Equal(t, models.PollUpcoming, r.Polls()[0].Status)
}

func TestRespondPollLatestSubmissionWins(t *testing.T) {
	sender := newFakeSender()
	r := newTestRoom(sender)

	r.Join(hostIdentity("h1"), "conn-h1")
	r.Join(attendeeIdentity("a1"), "conn-a1")

	poll := createTestPoll(t, r, protocol.CreatePoll{ShowResults: true})
	require.NoError(t, r.LaunchPoll("h1", poll.ID))

	require.NoError(t, r.RespondPoll("a1", protocol.RespondPoll{PollID: poll.ID, Choices: []int{0}}))
	require.NoError(t, r.RespondPoll("a1", protocol.RespondPoll{PollID: poll.ID, Choices: []int{2}}))

	got := r.Polls()[0]
	assert.Equal(t, []int{2}, got.Responses["a1"])
	assert.Equal(t, []int{0, 0, 1}, got.Counts())
}

func TestRespondPollValidatesChoices(t *testing.T) {
	sender := newFakeSender()
	r := newTestRoom(sender)

	r.Join(hostIdentity("h1"), "conn-h1")
	r.Join(attendeeIdentity("a1"), "conn-a1")

	poll := createTestPoll(t, r, protocol.CreatePoll{})
	require.NoError(t, r.LaunchPoll("h1", poll.ID))

	assert.ErrorIs(t, r.RespondPoll("a1", protocol.RespondPoll{PollID: poll.ID, Choices: []int{5}}), ErrInvalidChoice)
	assert.ErrorIs(t, r.RespondPoll("a1", protocol.RespondPoll{PollID: poll.ID, Choices: nil}), ErrInvalidChoice)
	assert.ErrorIs(t, r.RespondPoll("a1", protocol.RespondPoll{PollID: poll.ID, Choices: []int{0, 1}}), ErrTooManyChoices)
	assert.ErrorIs(t, r.RespondPoll("ghost", protocol.RespondPoll{PollID: poll.ID, Choices: []int{0}}), ErrNotInRoom)
	assert.ErrorIs(t, r.RespondPoll("a1", protocol.RespondPoll{PollID: "nope", Choices: []int{0}}), ErrPollNotFound)
}

func TestAllowMultipleDedupesChoices(t *testing.T) {
	sender := newFakeSender()
	r := newTestRoom(sender)

	r.Join(hostIdentity("h1"), "conn-h1")
	r.Join(attendeeIdentity("a1"), "conn-a1")

	poll := createTestPoll(t, r, protocol.CreatePoll{AllowMultiple: true})
	require.NoError(t, r.LaunchPoll("h1", poll.ID))

	require.NoError(t, r.RespondPoll("a1", protocol.RespondPoll{PollID: poll.ID, Choices: []int{0, 2, 0}}))
	assert.Equal(t, []int{0, 2}, r.Polls()[0].Responses["a1"])
}

func TestAnonymousPollNeverBroadcastsResponders(t *testing.T) {
	sender := newFakeSender()
	r := newTestRoom(sender)

	r.Join(hostIdentity("h1"), "conn-h1")
	r.Join(attendeeIdentity("a1"), "conn-a1")

	poll := createTestPoll(t, r, protocol.CreatePoll{Anonymous: true, ShowResults: true})
	require.NoError(t, r.LaunchPoll("h1", poll.ID))
	require.NoError(t, r.RespondPoll("a1", protocol.RespondPoll{PollID: poll.ID, Choices: []int{1}}))

	env, ok := sender.lastOfType("conn-h1", protocol.EventPollUpdated)
	require.True(t, ok)
	var got models.Poll
	require.NoError(t, json.Unmarshal(env.Payload, &got))
	assert.Nil(t, got.Responses)
}

func TestHiddenResultsGoOnlyToHostsAndResponder(t *testing.T) {
	sender := newFakeSender()
	r := newTestRoom(sender)

	r.Join(hostIdentity("h1"), "conn-h1")
	r.Join(attendeeIdentity("a1"), "conn-a1")
	r.Join(attendeeIdentity("a2"), "conn-a2")

	poll := createTestPoll(t, r, protocol.CreatePoll{ShowResults: false})
	require.NoError(t, r.LaunchPoll("h1", poll.ID))
	require.NoError(t, r.RespondPoll("a1", protocol.RespondPoll{PollID: poll.ID, Choices: []int{0}}))

	assert.Equal(t, 1, sender.countOfType("conn-h1", protocol.EventPollUpdated))
	assert.Equal(t, 1, sender.countOfType("conn-a1", protocol.EventPollUpdated))
	assert.Equal(t, 0, sender.countOfType("conn-a2", protocol.EventPollUpdated))
}

func TestPollSnapshotsShareNoStateWithRoom(t *testing.T) {
	sender := newFakeSender()
	r := newTestRoom(sender)

	r.Join(hostIdentity("h1"), "conn-h1")
	r.Join(attendeeIdentity("a1"), "conn-a1")

	poll := createTestPoll(t, r, protocol.CreatePoll{})
	require.NoError(t, r.LaunchPoll("h1", poll.ID))
	require.NoError(t, r.RespondPoll("a1", protocol.RespondPoll{PollID: poll.ID, Choices: []int{0}}))

	// Snapshots escape the room lock; a concurrent submission must not be
	// able to mutate them underneath a serializer.
	snapshot := r.Polls()[0]
	fullSnap := r.Snapshot("h1")
	require.NoError(t, r.RespondPoll("a1", protocol.RespondPoll{PollID: poll.ID, Choices: []int{2}}))

	assert.Equal(t, []int{0}, snapshot.Responses["a1"])
	require.Len(t, fullSnap.Polls, 1)
	assert.Equal(t, []int{0}, fullSnap.Polls[0].Responses["a1"])
	assert.Equal(t, []int{2}, r.Polls()[0].Responses["a1"])
}

func TestCreateAndDeletePoll(t *testing.T) {
	sender := newFakeSender()
	r := newTestRoom(sender)

	r.Join(hostIdentity("h1"), "conn-h1")
	r.Join(attendeeIdentity("a1"), "conn-a1")

	_, err := r.CreatePoll("a1", protocol.CreatePoll{Question: "Q", Options: []string{"a", "b"}})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = r.CreatePoll("h1", protocol.CreatePoll{Question: "Q", Options: []string{"only one"}})
	assert.ErrorIs(t, err, ErrEmptyContent)

	poll := createTestPoll(t, r, protocol.CreatePoll{})
	require.NoError(t, r.DeletePoll("h1", poll.ID))
	assert.Empty(t, r.Polls())
	assert.ErrorIs(t, r.DeletePoll("h1", poll.ID), ErrPollNotFound)
}
