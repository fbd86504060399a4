package room

import (
	"strings"

	"github.com/roomloop/server/internal/models"
	"github.com/roomloop/server/internal/protocol"
)

// CreateBreakoutRooms replaces the room's breakout set in one transition.
// Host only. Existing assignments are cleared; everyone returns to the main
// room until reassigned.
func (r *Room) CreateBreakoutRooms(actorID string, specs []protocol.BreakoutRoomSpec) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.requireHostLocked(actorID); err != nil {
		return err
	}
	for _, spec := range specs {
		if strings.TrimSpace(spec.Name) == "" {
			return ErrEmptyBreakoutName
		}
	}

	next := make([]*models.BreakoutRoom, 0, len(specs))
	for _, spec := range specs {
		next = append(next, &models.BreakoutRoom{
			ID:           spec.ID,
			Name:         spec.Name,
			Participants: []string{},
		})
	}
	r.breakouts = next
	for _, p := range r.participants {
		p.BreakoutRoomID = ""
	}

	r.broadcastLocked(protocol.EventBreakoutsUpdated, r.breakoutsLocked(), "")
	return nil
}

// AssignBreakoutRoom atomically moves a participant between breakout scopes.
// An empty breakoutID returns the participant to the main room. The remove
// and add happen in one transition under the room lock, so no observer can
// see the participant in two rooms or in neither mid-move.
func (r *Room) AssignBreakoutRoom(actorID, userID, breakoutID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.requireHostLocked(actorID); err != nil {
		return err
	}
	p, ok := r.participants[userID]
	if !ok {
		return ErrUnknownTarget
	}

	var target *models.BreakoutRoom
	if breakoutID != "" {
		if target = r.findBreakoutLocked(breakoutID); target == nil {
			return ErrBreakoutNotFound
		}
	}

	for _, b := range r.breakouts {
		b.Participants = removeString(b.Participants, userID)
	}
	p.BreakoutRoomID = breakoutID
	if target != nil {
		target.Participants = append(target.Participants, userID)
	}

	r.broadcastLocked(protocol.EventBreakoutAssigned, map[string]interface{}{
		"user_id":        userID,
		"breakout_id":    breakoutID,
		"breakout_rooms": r.breakoutsLocked(),
	}, "")
	return nil
}

// BreakoutRooms returns a copy of the current breakout set.
func (r *Room) BreakoutRooms() []models.BreakoutRoom {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.breakoutsLocked()
}

func (r *Room) breakoutsLocked() []models.BreakoutRoom {
	out := make([]models.BreakoutRoom, 0, len(r.breakouts))
	for _, b := range r.breakouts {
		copied := *b
		copied.Participants = append([]string(nil), b.Participants...)
		out = append(out, copied)
	}
	return out
}

func (r *Room) findBreakoutLocked(id string) *models.BreakoutRoom {
	for _, b := range r.breakouts {
		if b.ID == id {
			return b
		}
	}
	return nil
}
