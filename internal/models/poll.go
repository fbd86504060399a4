package models

// PollStatus transitions are monotonic: upcoming -> active -> ended.
type PollStatus string

const (
	PollUpcoming PollStatus = "upcoming"
	PollActive   PollStatus = "active"
	PollEnded    PollStatus = "ended"
)

// Poll is a multiple-choice poll. Responses maps participant id to the set of
// chosen option indices; a re-submission replaces the previous one.
type Poll struct {
	ID            string           `json:"id"`
	Question      string           `json:"question"`
	Options       []string         `json:"options"`
	AllowMultiple bool             `json:"allow_multiple"`
	Anonymous     bool             `json:"anonymous"`
	ShowResults   bool             `json:"show_results"`
	Status        PollStatus       `json:"status"`
	Responses     map[string][]int `json:"responses,omitempty"`
}

// Counts tallies responses per option.
func (p Poll) Counts() []int {
	counts := make([]int, len(p.Options))
	for _, choices := range p.Responses {
		for _, idx := range choices {
			if idx >= 0 && idx < len(counts) {
				counts[idx]++
			}
		}
	}
	return counts
}

// Public returns a copy that shares no mutable state with the original, safe
// to serialize outside the room lock. Anonymous polls never leak the
// per-participant response map at all.
func (p Poll) Public() Poll {
	out := p
	if p.Anonymous {
		out.Responses = nil
		return out
	}
	out.Responses = make(map[string][]int, len(p.Responses))
	for userID, choices := range p.Responses {
		out.Responses[userID] = append([]int(nil), choices...)
	}
	return out
}
