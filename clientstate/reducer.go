package clientstate

import (
	"encoding/json"

	"github.com/roomloop/server/internal/models"
	"github.com/roomloop/server/internal/protocol"
)

// Apply folds one server event into the state. It is pure and total: a
// malformed or unrecognized event leaves the state unchanged, and events are
// applied in exactly the order the transport delivers them.
func Apply(s State, env protocol.Envelope) State {
	switch env.Type {
	case protocol.EventRoomStateFetched:
		var snap models.RoomSnapshot
		if json.Unmarshal(env.Payload, &snap) != nil {
			return s
		}
		next := fromSnapshot(snap)
		next.Messages = s.Messages
		return next

	case protocol.EventUserList:
		var roster []models.Participant
		if json.Unmarshal(env.Payload, &roster) != nil {
			return s
		}
		s.Participants = roster
		s.Provisional = false
		return s

	case protocol.EventUserConnected:
		var p models.Participant
		if json.Unmarshal(env.Payload, &p) != nil {
			return s
		}
		s.Participants = upsertParticipant(s.Participants, p)
		s.Provisional = false
		return s

	case protocol.EventUserDisconnected:
		var gone struct {
			UserID string `json:"user_id"`
		}
		if json.Unmarshal(env.Payload, &gone) != nil {
			return s
		}
		s.Participants = removeParticipant(s.Participants, gone.UserID)
		s.RaisedHands = removeID(s.RaisedHands, gone.UserID)
		s.BreakoutRooms = removeFromBreakouts(s.BreakoutRooms, gone.UserID)
		s.Provisional = false
		return s

	case protocol.EventParticipantUpdated:
		var p models.Participant
		if json.Unmarshal(env.Payload, &p) != nil {
			return s
		}
		s.Participants = upsertParticipant(s.Participants, p)
		s.Provisional = false
		return s

	case protocol.EventChatMessage:
		var msg models.ChatMessage
		if json.Unmarshal(env.Payload, &msg) != nil {
			return s
		}
		s.Messages = append(append([]models.ChatMessage(nil), s.Messages...), msg)
		s.Provisional = false
		return s

	case protocol.EventBreakoutsUpdated:
		var rooms []models.BreakoutRoom
		if json.Unmarshal(env.Payload, &rooms) != nil {
			return s
		}
		s.BreakoutRooms = rooms
		s.Participants = clearAssignments(s.Participants)
		s.Provisional = false
		return s

	case protocol.EventBreakoutAssigned:
		var assigned struct {
			UserID        string                `json:"user_id"`
			BreakoutID    string                `json:"breakout_id"`
			BreakoutRooms []models.BreakoutRoom `json:"breakout_rooms"`
		}
		if json.Unmarshal(env.Payload, &assigned) != nil {
			return s
		}
		s.BreakoutRooms = assigned.BreakoutRooms
		s.Participants = setAssignment(s.Participants, assigned.UserID, assigned.BreakoutID)
		s.Provisional = false
		return s

	case protocol.EventPollCreated, protocol.EventPollLaunched,
		protocol.EventPollUpdated, protocol.EventPollEnded:
		var poll models.Poll
		if json.Unmarshal(env.Payload, &poll) != nil {
			return s
		}
		s.Polls = upsertPoll(s.Polls, poll)
		s.Provisional = false
		return s

	case protocol.EventPollsFetched:
		var polls []models.Poll
		if json.Unmarshal(env.Payload, &polls) != nil {
			return s
		}
		s.Polls = polls
		s.Provisional = false
		return s

	case protocol.EventPollDeleted:
		var del struct {
			PollID string `json:"poll_id"`
		}
		if json.Unmarshal(env.Payload, &del) != nil {
			return s
		}
		s.Polls = removePoll(s.Polls, del.PollID)
		s.Provisional = false
		return s

	case protocol.EventQuestionAsked, protocol.EventQuestionUpdated:
		var q models.Question
		if json.Unmarshal(env.Payload, &q) != nil {
			return s
		}
		s.Questions = upsertQuestion(s.Questions, q)
		s.Provisional = false
		return s

	case protocol.EventQuestionsFetched:
		var questions []models.Question
		if json.Unmarshal(env.Payload, &questions) != nil {
			return s
		}
		s.Questions = questions
		s.Provisional = false
		return s

	case protocol.EventQuestionDismissed:
		var del struct {
			QuestionID string `json:"question_id"`
		}
		if json.Unmarshal(env.Payload, &del) != nil {
			return s
		}
		s.Questions = removeQuestion(s.Questions, del.QuestionID)
		s.Provisional = false
		return s

	case protocol.EventQAToggled:
		var toggle struct {
			Enabled bool `json:"enabled"`
		}
		if json.Unmarshal(env.Payload, &toggle) != nil {
			return s
		}
		s.QAEnabled = toggle.Enabled
		s.Provisional = false
		return s

	case protocol.EventHandRaised:
		var hand struct {
			UserID string `json:"user_id"`
		}
		if json.Unmarshal(env.Payload, &hand) != nil {
			return s
		}
		s.RaisedHands = addID(s.RaisedHands, hand.UserID)
		s.Provisional = false
		return s

	case protocol.EventHandLowered:
		var hand struct {
			UserID string `json:"user_id"`
		}
		if json.Unmarshal(env.Payload, &hand) != nil {
			return s
		}
		s.RaisedHands = removeID(s.RaisedHands, hand.UserID)
		s.Provisional = false
		return s

	case protocol.EventRaisedHandsFetched:
		var hands []string
		if json.Unmarshal(env.Payload, &hands) != nil {
			return s
		}
		s.RaisedHands = hands
		s.Provisional = false
		return s

	case protocol.EventTimerUpdate:
		var timer models.TimerState
		if json.Unmarshal(env.Payload, &timer) != nil {
			return s
		}
		s.Timer = timer
		s.Provisional = false
		return s
	}

	return s
}

func upsertParticipant(list []models.Participant, p models.Participant) []models.Participant {
	out := append([]models.Participant(nil), list...)
	for i := range out {
		if out[i].UserID == p.UserID {
			out[i] = p
			return out
		}
	}
	return append(out, p)
}

func removeParticipant(list []models.Participant, userID string) []models.Participant {
	out := make([]models.Participant, 0, len(list))
	for _, p := range list {
		if p.UserID != userID {
			out = append(out, p)
		}
	}
	return out
}

func clearAssignments(list []models.Participant) []models.Participant {
	out := append([]models.Participant(nil), list...)
	for i := range out {
		out[i].BreakoutRoomID = ""
	}
	return out
}

func setAssignment(list []models.Participant, userID, breakoutID string) []models.Participant {
	out := append([]models.Participant(nil), list...)
	for i := range out {
		if out[i].UserID == userID {
			out[i].BreakoutRoomID = breakoutID
		}
	}
	return out
}

func removeFromBreakouts(list []models.BreakoutRoom, userID string) []models.BreakoutRoom {
	out := make([]models.BreakoutRoom, 0, len(list))
	for _, b := range list {
		b.Participants = removeID(b.Participants, userID)
		out = append(out, b)
	}
	return out
}

func upsertPoll(list []models.Poll, poll models.Poll) []models.Poll {
	out := append([]models.Poll(nil), list...)
	for i := range out {
		if out[i].ID == poll.ID {
			out[i] = poll
			return out
		}
	}
	return append(out, poll)
}

func removePoll(list []models.Poll, id string) []models.Poll {
	out := make([]models.Poll, 0, len(list))
	for _, p := range list {
		if p.ID != id {
			out = append(out, p)
		}
	}
	return out
}

func upsertQuestion(list []models.Question, q models.Question) []models.Question {
	out := append([]models.Question(nil), list...)
	for i := range out {
		if out[i].ID == q.ID {
			out[i] = q
			return out
		}
	}
	return append(out, q)
}

func removeQuestion(list []models.Question, id string) []models.Question {
	out := make([]models.Question, 0, len(list))
	for _, q := range list {
		if q.ID != id {
			out = append(out, q)
		}
	}
	return out
}

func addID(list []string, id string) []string {
	for _, v := range list {
		if v == id {
			return list
		}
	}
	return append(append([]string(nil), list...), id)
}

func removeID(list []string, id string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
