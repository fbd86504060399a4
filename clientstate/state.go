// Package clientstate is the client-side projection of a meeting room. It is
// a single pure state container: the ordered event stream from the server is
// folded into a State value, and rendering layers read from that value only.
// The server always wins; nothing here is a second source of truth.
package clientstate

import (
	"github.com/roomloop/server/internal/models"
)

// State is one device's view of the room. Values are treated as immutable:
// Apply returns a new State and never mutates its input, so two devices
// folding the same event stream always land on the same value.
type State struct {
	RoomID        string                `json:"room_id"`
	Participants  []models.Participant  `json:"participants"`
	BreakoutRooms []models.BreakoutRoom `json:"breakout_rooms"`
	Polls         []models.Poll         `json:"polls"`
	Questions     []models.Question     `json:"questions"`
	RaisedHands   []string              `json:"raised_hands"`
	Timer         models.TimerState     `json:"timer"`
	QAEnabled     bool                  `json:"qa_enabled"`
	Messages      []models.ChatMessage  `json:"messages"`

	// Provisional marks a State rebuilt from a locally persisted snapshot.
	// It is a pre-render hint only; the next server snapshot or delta
	// overwrites it.
	Provisional bool `json:"provisional"`
}

// New returns the empty pre-join state.
func New() State {
	return State{}
}

// Restore rebuilds a provisional State from a locally cached snapshot, used
// to pre-render across a page reload while the fresh server snapshot is in
// flight.
func Restore(snapshot models.RoomSnapshot, messages []models.ChatMessage) State {
	s := fromSnapshot(snapshot)
	s.Messages = append([]models.ChatMessage(nil), messages...)
	s.Provisional = true
	return s
}

// MainRoomParticipants returns the roster minus everyone assigned to a
// breakout room.
func (s State) MainRoomParticipants() []models.Participant {
	out := make([]models.Participant, 0, len(s.Participants))
	for _, p := range s.Participants {
		if p.BreakoutRoomID == "" {
			out = append(out, p)
		}
	}
	return out
}

// HandRaised reports whether the user currently has a raised hand.
func (s State) HandRaised(userID string) bool {
	for _, id := range s.RaisedHands {
		if id == userID {
			return true
		}
	}
	return false
}

func fromSnapshot(snap models.RoomSnapshot) State {
	return State{
		RoomID:        snap.RoomID,
		Participants:  append([]models.Participant(nil), snap.Participants...),
		BreakoutRooms: append([]models.BreakoutRoom(nil), snap.BreakoutRooms...),
		Polls:         append([]models.Poll(nil), snap.Polls...),
		Questions:     append([]models.Question(nil), snap.Questions...),
		RaisedHands:   append([]string(nil), snap.RaisedHands...),
		Timer:         snap.Timer,
		QAEnabled:     snap.QAEnabled,
	}
}
