package models

// BreakoutRoom groups a subset of the roster. A participant belongs to at
// most one breakout room at a time.
type BreakoutRoom struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Participants []string `json:"participants"`
}

// TimerState is the server-owned shared countdown. Clients render from the
// last broadcast tick, never from local decrementing alone.
type TimerState struct {
	IsRunning        bool `json:"is_running"`
	DurationSeconds  int  `json:"duration_seconds"`
	RemainingSeconds int  `json:"remaining_seconds"`
}

// RoomSnapshot is the full point-in-time room state sent to a joiner or on an
// explicit fetch, as opposed to incremental deltas.
type RoomSnapshot struct {
	RoomID        string         `json:"room_id"`
	Participants  []Participant  `json:"participants"`
	BreakoutRooms []BreakoutRoom `json:"breakout_rooms"`
	Polls         []Poll         `json:"polls"`
	Questions     []Question     `json:"questions"`
	RaisedHands   []string       `json:"raised_hands"`
	Timer         TimerState     `json:"timer"`
	QAEnabled     bool           `json:"qa_enabled"`
}

// MainRoomParticipants returns the roster minus everyone currently assigned
// to a breakout room.
func (s RoomSnapshot) MainRoomParticipants() []Participant {
	out := make([]Participant, 0, len(s.Participants))
	for _, p := range s.Participants {
		if p.BreakoutRoomID == "" {
			out = append(out, p)
		}
	}
	return out
}
