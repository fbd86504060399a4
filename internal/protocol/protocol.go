package protocol

import (
	"encoding/json"
	"errors"
)

// Envelope is the wire frame for both directions: a globally unique event
// name plus a JSON payload.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client-submitted action names, room plane.
const (
	ActionSendMessage     = "send-message"
	ActionSetMuted        = "set-muted"
	ActionCreateBreakout  = "create-breakout-rooms"
	ActionAssignBreakout  = "assign-breakout-room"
	ActionCreatePoll      = "create-poll"
	ActionLaunchPoll      = "launch-poll"
	ActionRespondPoll     = "respond-poll"
	ActionEndPoll         = "end-poll"
	ActionDeletePoll      = "delete-poll"
	ActionAskQuestion     = "ask-question"
	ActionUpvoteQuestion  = "upvote-question"
	ActionPublishQuestion = "publish-question"
	ActionAnswerQuestion  = "answer-question"
	ActionCloseQuestion   = "close-question"
	ActionDismissQuestion = "dismiss-question"
	ActionToggleQA        = "toggle-qa"
	ActionRaiseHand       = "raise-hand"
	ActionLowerHand       = "lower-hand"
	ActionTimerStart      = "timer-start"
	ActionTimerPause      = "timer-pause"
	ActionTimerReset      = "timer-reset"
	ActionGetUserList     = "get-user-list"
	ActionGetRoomState    = "get-room-state"
	ActionGetPolls        = "get-polls"
	ActionGetQuestions    = "get-questions"
	ActionGetRaisedHands  = "get-raised-hands"
)

// Client-submitted action names, media plane.
const (
	ActionMediaJoin      = "media-join"
	ActionMediaOffer     = "media-offer"
	ActionMediaAnswer    = "media-answer"
	ActionMediaCandidate = "media-candidate"
	ActionMediaLeave     = "media-leave"
)

// Server-emitted event names.
const (
	EventUserConnected      = "user-connected"
	EventUserDisconnected   = "user-disconnected"
	EventParticipantUpdated = "participant-updated"
	EventChatMessage        = "chat-message"
	EventBreakoutsUpdated   = "breakout-rooms-updated"
	EventBreakoutAssigned   = "breakout-assigned"
	EventPollCreated        = "poll-created"
	EventPollLaunched       = "poll-launched"
	EventPollUpdated        = "poll-updated"
	EventPollEnded          = "poll-ended"
	EventPollDeleted        = "poll-deleted"
	EventQuestionAsked      = "question-asked"
	EventQuestionUpdated    = "question-updated"
	EventQuestionDismissed  = "question-dismissed"
	EventQAToggled          = "qa-toggled"
	EventHandRaised         = "hand-raised"
	EventHandLowered        = "hand-lowered"
	EventTimerUpdate        = "timer-update"
	EventError              = "error"

	// Request/response snapshots.
	EventUserList           = "user-list"
	EventRoomStateFetched   = "room-state-fetched"
	EventPollsFetched       = "polls-fetched"
	EventQuestionsFetched   = "questions-fetched"
	EventRaisedHandsFetched = "raised-hands-fetched"

	// Media plane.
	EventMediaSessionCreated = "media-session-created"
	EventMediaOffer          = "media-offer"
	EventMediaAnswer         = "media-answer"
	EventMediaCandidate      = "media-candidate"
	EventMediaSessionFailed  = "media-session-failed"
	EventMediaClosed         = "media-closed"
)

var ErrUnknownAction = errors.New("unknown action type")

// NewEvent builds a serialized envelope for a server event.
func NewEvent(eventType string, payload interface{}) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		if err != nil {
			return nil, err
		}
	}
	return json.Marshal(Envelope{Type: eventType, Payload: raw})
}

// ErrorPayload is sent back to the acting connection only.
type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}
