package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envelope(t *testing.T, actionType, payload string) Envelope {
	t.Helper()
	env := Envelope{Type: actionType}
	if payload != "" {
		env.Payload = json.RawMessage(payload)
	}
	return env
}

func TestDecodeActionProducesTypedVariants(t *testing.T) {
	action, err := DecodeAction(envelope(t, ActionSendMessage,
		`{"content":"hello","scope":"direct","target_user_id":"u2"}`))
	require.NoError(t, err)

	msg, ok := action.(SendMessage)
	require.True(t, ok)
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, "direct", msg.Scope)
	assert.Equal(t, "u2", msg.TargetUserID)

	action, err = DecodeAction(envelope(t, ActionRespondPoll, `{"poll_id":"p1","choices":[0,2]}`))
	require.NoError(t, err)
	respond, ok := action.(RespondPoll)
	require.True(t, ok)
	assert.Equal(t, "p1", respond.PollID)
	assert.Equal(t, []int{0, 2}, respond.Choices)
}

func TestDecodeActionRejectsUnknownType(t *testing.T) {
	_, err := DecodeAction(envelope(t, "self-destruct", `{}`))
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestDecodeActionRejectsBadPayload(t *testing.T) {
	_, err := DecodeAction(envelope(t, ActionCreatePoll, ""))
	assert.Error(t, err)

	_, err = DecodeAction(envelope(t, ActionCreatePoll, `"not an object"`))
	assert.Error(t, err)
}

func TestPayloadFreeActionsDecodeWithoutPayload(t *testing.T) {
	for _, actionType := range []string{
		ActionRaiseHand,
		ActionLowerHand,
		ActionTimerPause,
		ActionGetUserList,
		ActionGetRoomState,
		ActionGetPolls,
		ActionGetQuestions,
		ActionGetRaisedHands,
		ActionMediaJoin,
		ActionMediaLeave,
	} {
		action, err := DecodeAction(envelope(t, actionType, ""))
		require.NoError(t, err, actionType)
		require.NotNil(t, action, actionType)
	}
}

func TestActionsSplitIntoRoomAndMediaPlanes(t *testing.T) {
	roomTypes := []string{ActionSendMessage, ActionRaiseHand, ActionTimerStart, ActionGetRoomState}
	for _, actionType := range roomTypes {
		action, err := DecodeAction(envelope(t, actionType, `{}`))
		require.NoError(t, err, actionType)
		_, isRoom := action.(RoomAction)
		assert.True(t, isRoom, actionType)
	}

	mediaTypes := []string{ActionMediaJoin, ActionMediaOffer, ActionMediaCandidate, ActionMediaLeave}
	for _, actionType := range mediaTypes {
		action, err := DecodeAction(envelope(t, actionType, `{}`))
		require.NoError(t, err, actionType)
		_, isMedia := action.(MediaAction)
		assert.True(t, isMedia, actionType)
	}
}

func TestNewEventWrapsPayload(t *testing.T) {
	data, err := NewEvent(EventHandRaised, map[string]string{"user_id": "u1"})
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, EventHandRaised, env.Type)
	assert.JSONEq(t, `{"user_id":"u1"}`, string(env.Payload))
}
