package room

import (
	"strings"

	"github.com/google/uuid"

	"github.com/roomloop/server/internal/models"
	"github.com/roomloop/server/internal/protocol"
)

// CreatePoll adds a poll in the upcoming state. Host only.
func (r *Room) CreatePoll(actorID string, action protocol.CreatePoll) (models.Poll, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.requireHostLocked(actorID); err != nil {
		return models.Poll{}, err
	}
	if strings.TrimSpace(action.Question) == "" || len(action.Options) < 2 {
		return models.Poll{}, ErrEmptyContent
	}

	poll := &models.Poll{
		ID:            uuid.NewString(),
		Question:      action.Question,
		Options:       append([]string(nil), action.Options...),
		AllowMultiple: action.AllowMultiple,
		Anonymous:     action.Anonymous,
		ShowResults:   action.ShowResults,
		Status:        models.PollUpcoming,
		Responses:     make(map[string][]int),
	}
	r.polls = append(r.polls, poll)

	r.broadcastLocked(protocol.EventPollCreated, poll.Public(), "")
	return poll.Public(), nil
}

// LaunchPoll moves an upcoming poll to active. The lifecycle is monotonic:
// launching an already-active or ended poll is rejected.
func (r *Room) LaunchPoll(actorID, pollID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.requireHostLocked(actorID); err != nil {
		return err
	}
	poll := r.findPollLocked(pollID)
	if poll == nil {
		return ErrPollNotFound
	}
	if poll.Status != models.PollUpcoming {
		return ErrPollNotUpcoming
	}
	poll.Status = models.PollActive

	r.broadcastLocked(protocol.EventPollLaunched, poll.Public(), "")
	return nil
}

// RespondPoll records a participant's choices. The latest submission wins.
// A response to a poll that is not active is rejected, never silently
// dropped.
func (r *Room) RespondPoll(userID string, action protocol.RespondPoll) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.participants[userID]; !ok {
		return ErrNotInRoom
	}
	poll := r.findPollLocked(action.PollID)
	if poll == nil {
		return ErrPollNotFound
	}
	if poll.Status != models.PollActive {
		return ErrPollNotActive
	}

	choices := dedupeInts(action.Choices)
	if len(choices) == 0 {
		return ErrInvalidChoice
	}
	if !poll.AllowMultiple && len(choices) > 1 {
		return ErrTooManyChoices
	}
	for _, idx := range choices {
		if idx < 0 || idx >= len(poll.Options) {
			return ErrInvalidChoice
		}
	}
	poll.Responses[userID] = choices

	// Live tallies go room-wide only when the poll shows results; otherwise
	// the responder and the hosts still get the delta so the submission is
	// visibly acknowledged.
	if poll.ShowResults {
		r.broadcastLocked(protocol.EventPollUpdated, poll.Public(), "")
	} else {
		audience := append(r.hostIDsLocked(), userID)
		r.broadcastToLocked(protocol.EventPollUpdated, poll.Public(), audience)
	}
	return nil
}

// EndPoll moves an active poll to ended and publishes the final results.
func (r *Room) EndPoll(actorID, pollID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.requireHostLocked(actorID); err != nil {
		return err
	}
	poll := r.findPollLocked(pollID)
	if poll == nil {
		return ErrPollNotFound
	}
	if poll.Status != models.PollActive {
		return ErrPollNotActive
	}
	poll.Status = models.PollEnded

	r.broadcastLocked(protocol.EventPollEnded, poll.Public(), "")
	return nil
}

// DeletePoll removes a poll entirely. Host only.
func (r *Room) DeletePoll(actorID, pollID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.requireHostLocked(actorID); err != nil {
		return err
	}
	for i, poll := range r.polls {
		if poll.ID == pollID {
			r.polls = append(r.polls[:i], r.polls[i+1:]...)
			r.broadcastLocked(protocol.EventPollDeleted, map[string]string{"poll_id": pollID}, "")
			return nil
		}
	}
	return ErrPollNotFound
}

// PushPolls sends the poll list to the participant's own connection, under
// the room lock so it stays ordered with poll broadcasts.
func (r *Room) PushPolls(userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[userID]
	if !ok {
		return ErrNotInRoom
	}
	r.sendToLocked(p.ConnectionID, protocol.EventPollsFetched, r.publicPollsLocked())
	return nil
}

// Polls returns the poll list as broadcast to attendees.
func (r *Room) Polls() []models.Poll {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.publicPollsLocked()
}

func (r *Room) publicPollsLocked() []models.Poll {
	out := make([]models.Poll, 0, len(r.polls))
	for _, p := range r.polls {
		out = append(out, p.Public())
	}
	return out
}

func (r *Room) findPollLocked(id string) *models.Poll {
	for _, p := range r.polls {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func dedupeInts(in []int) []int {
	seen := make(map[int]struct{}, len(in))
	out := make([]int, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
