package protocol

import (
	"encoding/json"
	"fmt"
)

// Action is the closed set of things a client can submit. Decode is the only
// constructor, so every variant is known at compile time and unknown event
// names are rejected up front instead of discovered at dispatch.
type Action interface {
	isAction()
}

// RoomAction marks actions handled by the room state machine.
type RoomAction interface {
	Action
	isRoomAction()
}

// MediaAction marks actions handled by the session negotiator.
type MediaAction interface {
	Action
	isMediaAction()
}

type roomAction struct{}

func (roomAction) isAction()     {}
func (roomAction) isRoomAction() {}

type mediaAction struct{}

func (mediaAction) isAction()      {}
func (mediaAction) isMediaAction() {}

// Room plane.

type SendMessage struct {
	roomAction
	Content      string `json:"content"`
	Scope        string `json:"scope"`
	TargetUserID string `json:"target_user_id,omitempty"`
}

type SetMuted struct {
	roomAction
	Muted bool `json:"muted"`
}

type BreakoutRoomSpec struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type CreateBreakoutRooms struct {
	roomAction
	Rooms []BreakoutRoomSpec `json:"rooms"`
}

type AssignBreakoutRoom struct {
	roomAction
	UserID     string `json:"user_id"`
	BreakoutID string `json:"breakout_id,omitempty"` // empty = back to main room
}

type CreatePoll struct {
	roomAction
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	AllowMultiple bool     `json:"allow_multiple"`
	Anonymous     bool     `json:"anonymous"`
	ShowResults   bool     `json:"show_results"`
}

type LaunchPoll struct {
	roomAction
	PollID string `json:"poll_id"`
}

type RespondPoll struct {
	roomAction
	PollID  string `json:"poll_id"`
	Choices []int  `json:"choices"`
}

type EndPoll struct {
	roomAction
	PollID string `json:"poll_id"`
}

type DeletePoll struct {
	roomAction
	PollID string `json:"poll_id"`
}

type AskQuestion struct {
	roomAction
	Text string `json:"text"`
}

type UpvoteQuestion struct {
	roomAction
	QuestionID string `json:"question_id"`
}

type PublishQuestion struct {
	roomAction
	QuestionID string `json:"question_id"`
}

type AnswerQuestion struct {
	roomAction
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
}

type CloseQuestion struct {
	roomAction
	QuestionID string `json:"question_id"`
}

type DismissQuestion struct {
	roomAction
	QuestionID string `json:"question_id"`
}

type ToggleQA struct {
	roomAction
	Enabled bool `json:"enabled"`
}

type RaiseHand struct{ roomAction }
type LowerHand struct{ roomAction }

type TimerStart struct {
	roomAction
	DurationSeconds int `json:"duration_seconds"`
}

type TimerPause struct{ roomAction }

type TimerReset struct {
	roomAction
	DurationSeconds int `json:"duration_seconds"`
}

type GetUserList struct{ roomAction }
type GetRoomState struct{ roomAction }
type GetPolls struct{ roomAction }
type GetQuestions struct{ roomAction }
type GetRaisedHands struct{ roomAction }

// Media plane.

type MediaJoin struct{ mediaAction }

type MediaOffer struct {
	mediaAction
	SDP string `json:"sdp"`
}

type MediaAnswer struct {
	mediaAction
	SDP string `json:"sdp"`
}

type MediaCandidate struct {
	mediaAction
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdp_mid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdp_mline_index,omitempty"`
}

type MediaLeave struct{ mediaAction }

// DecodeAction parses an inbound envelope into its typed variant.
func DecodeAction(env Envelope) (Action, error) {
	var (
		action Action
		err    error
	)
	switch env.Type {
	case ActionSendMessage:
		action, err = unmarshalAction[SendMessage](env)
	case ActionSetMuted:
		action, err = unmarshalAction[SetMuted](env)
	case ActionCreateBreakout:
		action, err = unmarshalAction[CreateBreakoutRooms](env)
	case ActionAssignBreakout:
		action, err = unmarshalAction[AssignBreakoutRoom](env)
	case ActionCreatePoll:
		action, err = unmarshalAction[CreatePoll](env)
	case ActionLaunchPoll:
		action, err = unmarshalAction[LaunchPoll](env)
	case ActionRespondPoll:
		action, err = unmarshalAction[RespondPoll](env)
	case ActionEndPoll:
		action, err = unmarshalAction[EndPoll](env)
	case ActionDeletePoll:
		action, err = unmarshalAction[DeletePoll](env)
	case ActionAskQuestion:
		action, err = unmarshalAction[AskQuestion](env)
	case ActionUpvoteQuestion:
		action, err = unmarshalAction[UpvoteQuestion](env)
	case ActionPublishQuestion:
		action, err = unmarshalAction[PublishQuestion](env)
	case ActionAnswerQuestion:
		action, err = unmarshalAction[AnswerQuestion](env)
	case ActionCloseQuestion:
		action, err = unmarshalAction[CloseQuestion](env)
	case ActionDismissQuestion:
		action, err = unmarshalAction[DismissQuestion](env)
	case ActionToggleQA:
		action, err = unmarshalAction[ToggleQA](env)
	case ActionRaiseHand:
		action = RaiseHand{}
	case ActionLowerHand:
		action = LowerHand{}
	case ActionTimerStart:
		action, err = unmarshalAction[TimerStart](env)
	case ActionTimerPause:
		action = TimerPause{}
	case ActionTimerReset:
		action, err = unmarshalAction[TimerReset](env)
	case ActionGetUserList:
		action = GetUserList{}
	case ActionGetRoomState:
		action = GetRoomState{}
	case ActionGetPolls:
		action = GetPolls{}
	case ActionGetQuestions:
		action = GetQuestions{}
	case ActionGetRaisedHands:
		action = GetRaisedHands{}
	case ActionMediaJoin:
		action = MediaJoin{}
	case ActionMediaOffer:
		action, err = unmarshalAction[MediaOffer](env)
	case ActionMediaAnswer:
		action, err = unmarshalAction[MediaAnswer](env)
	case ActionMediaCandidate:
		action, err = unmarshalAction[MediaCandidate](env)
	case ActionMediaLeave:
		action = MediaLeave{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, env.Type)
	}
	return action, err
}

func unmarshalAction[T Action](env Envelope) (T, error) {
	var a T
	if len(env.Payload) == 0 {
		return a, fmt.Errorf("missing payload for %q", env.Type)
	}
	if err := json.Unmarshal(env.Payload, &a); err != nil {
		return a, fmt.Errorf("invalid payload for %q: %w", env.Type, err)
	}
	return a, nil
}
