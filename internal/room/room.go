package room

import (
	"sync"
	"time"

	"github.com/roomloop/server/internal/models"
	"github.com/roomloop/server/internal/protocol"
)

// Sender delivers a serialized event to one connection. Implementations must
// not block; the transport hub pushes into buffered per-connection channels.
type Sender interface {
	Send(connectionID string, data []byte)
}

// Sink receives every state-changing broadcast for durable storage outside
// the core. The in-memory room remains the source of truth; a sink failure
// never affects room state. Record must not block.
type Sink interface {
	Record(roomID, eventType string, payload interface{})
}

// NopSink is used when no persistence collaborator is configured.
type NopSink struct{}

func (NopSink) Record(string, string, interface{}) {}

// Room is the authoritative owner of one meeting's shared state. Every
// mutation runs under r.mu and its resulting events are emitted before the
// lock is released, so within one room state transitions and broadcasts
// happen in the same order. Distinct rooms proceed in parallel.
type Room struct {
	ID string

	mu           sync.Mutex
	participants map[string]*models.Participant
	order        []string // userIDs in join order
	breakouts    []*models.BreakoutRoom
	polls        []*models.Poll
	questions    []*models.Question
	raised       []string
	timer        models.TimerState
	timerStop    chan struct{}
	qaEnabled    bool

	tickEvery time.Duration
	sender    Sender
	sink      Sink
	onEmpty   func(roomID string)
}

func newRoom(id string, sender Sender, sink Sink, tickEvery time.Duration, onEmpty func(string)) *Room {
	if sink == nil {
		sink = NopSink{}
	}
	if tickEvery <= 0 {
		tickEvery = time.Second
	}
	return &Room{
		ID:           id,
		participants: make(map[string]*models.Participant),
		tickEvery:    tickEvery,
		sender:       sender,
		sink:         sink,
		onEmpty:      onEmpty,
	}
}

// Join registers a participant and pushes the full-state snapshot to the
// joining connection inside the same critical section, so no delta emitted
// by a concurrent action can be queued ahead of it. A reconnect with a known
// userID rebinds the connection instead of duplicating the roster entry.
func (r *Room) Join(identity models.Identity, connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, rejoined := r.participants[identity.UserID]
	if rejoined {
		p.ConnectionID = connectionID
		p.DisplayName = identity.DisplayName
		p.AvatarURL = identity.AvatarURL
	} else {
		p = &models.Participant{
			UserID:       identity.UserID,
			ConnectionID: connectionID,
			DisplayName:  identity.DisplayName,
			AvatarURL:    identity.AvatarURL,
			Role:         identity.Role,
		}
		r.participants[identity.UserID] = p
		r.order = append(r.order, identity.UserID)
		r.broadcastLocked(protocol.EventUserConnected, *p, identity.UserID)
	}
	r.sendToLocked(connectionID, protocol.EventRoomStateFetched, r.snapshotLocked(identity.UserID))
}

// Leave removes the participant bound to connectionID and reports whether
// the connection still owned a roster entry. A stale connection (the user
// already reconnected with a new one) is ignored so a reconnect race cannot
// evict the fresh session.
func (r *Room) Leave(connectionID string) bool {
	r.mu.Lock()
	var gone *models.Participant
	for _, p := range r.participants {
		if p.ConnectionID == connectionID {
			gone = p
			break
		}
	}
	if gone == nil {
		r.mu.Unlock()
		return false
	}
	delete(r.participants, gone.UserID)
	r.order = removeString(r.order, gone.UserID)
	r.raised = removeString(r.raised, gone.UserID)
	for _, b := range r.breakouts {
		b.Participants = removeString(b.Participants, gone.UserID)
	}
	r.broadcastLocked(protocol.EventUserDisconnected, map[string]string{"user_id": gone.UserID}, "")
	empty := len(r.participants) == 0
	r.mu.Unlock()

	if empty && r.onEmpty != nil {
		r.onEmpty(r.ID)
	}
	return true
}

// ConnectionFor returns the current connection id for a user, if present.
func (r *Room) ConnectionFor(userID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[userID]
	if !ok {
		return "", false
	}
	return p.ConnectionID, true
}

// SetMuted updates the participant's own mute flag.
func (r *Room) SetMuted(userID string, muted bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[userID]
	if !ok {
		return ErrNotInRoom
	}
	p.Muted = muted
	r.broadcastLocked(protocol.EventParticipantUpdated, *p, "")
	return nil
}

// RaiseHand is idempotent: re-raising an already-raised hand re-broadcasts
// without erroring.
func (r *Room) RaiseHand(userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.participants[userID]; !ok {
		return ErrNotInRoom
	}
	if !containsString(r.raised, userID) {
		r.raised = append(r.raised, userID)
	}
	r.broadcastLocked(protocol.EventHandRaised, map[string]string{"user_id": userID}, "")
	return nil
}

func (r *Room) LowerHand(userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.participants[userID]; !ok {
		return ErrNotInRoom
	}
	r.raised = removeString(r.raised, userID)
	r.broadcastLocked(protocol.EventHandLowered, map[string]string{"user_id": userID}, "")
	return nil
}

// Snapshot returns a full copy of the room state as visible to viewerID:
// unpublished questions are included only for hosts and their authors.
func (r *Room) Snapshot(viewerID string) models.RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked(viewerID)
}

// PushSnapshot sends the full-state snapshot to the participant's own
// connection. The send happens under the room lock, so a fetch response can
// neither overtake a newer delta nor be overtaken by an older one.
func (r *Room) PushSnapshot(userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[userID]
	if !ok {
		return ErrNotInRoom
	}
	r.sendToLocked(p.ConnectionID, protocol.EventRoomStateFetched, r.snapshotLocked(userID))
	return nil
}

// PushUserList sends the roster to the participant's own connection.
func (r *Room) PushUserList(userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[userID]
	if !ok {
		return ErrNotInRoom
	}
	r.sendToLocked(p.ConnectionID, protocol.EventUserList, r.rosterLocked())
	return nil
}

// PushRaisedHands sends the raised-hand list to the participant's own
// connection.
func (r *Room) PushRaisedHands(userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[userID]
	if !ok {
		return ErrNotInRoom
	}
	r.sendToLocked(p.ConnectionID, protocol.EventRaisedHandsFetched, append([]string(nil), r.raised...))
	return nil
}

// UserList returns the roster in join order.
func (r *Room) UserList() []models.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rosterLocked()
}

// RaisedHands returns user ids with a raised hand, oldest first.
func (r *Room) RaisedHands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.raised...)
}

// Empty reports whether the roster is empty.
func (r *Room) Empty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.participants) == 0
}

func (r *Room) snapshotLocked(viewerID string) models.RoomSnapshot {
	return models.RoomSnapshot{
		RoomID:        r.ID,
		Participants:  r.rosterLocked(),
		BreakoutRooms: r.breakoutsLocked(),
		Polls:         r.publicPollsLocked(),
		Questions:     r.visibleQuestionsLocked(viewerID),
		RaisedHands:   append([]string(nil), r.raised...),
		Timer:         r.timer,
		QAEnabled:     r.qaEnabled,
	}
}

func (r *Room) rosterLocked() []models.Participant {
	out := make([]models.Participant, 0, len(r.order))
	for _, id := range r.order {
		if p, ok := r.participants[id]; ok {
			out = append(out, *p)
		}
	}
	return out
}

// broadcastLocked fans an event out to every participant except the excluded
// user. Callers must hold r.mu.
func (r *Room) broadcastLocked(eventType string, payload interface{}, excludeUserID string) {
	data, err := protocol.NewEvent(eventType, payload)
	if err != nil {
		return
	}
	for _, p := range r.participants {
		if excludeUserID != "" && p.UserID == excludeUserID {
			continue
		}
		r.sender.Send(p.ConnectionID, data)
	}
	r.sink.Record(r.ID, eventType, payload)
}

// sendToLocked delivers a fetch response or snapshot to one connection while
// holding r.mu, keeping it ordered with broadcasts. Fetch responses are not
// state changes and are not recorded to the sink. Callers must hold r.mu.
func (r *Room) sendToLocked(connectionID, eventType string, payload interface{}) {
	data, err := protocol.NewEvent(eventType, payload)
	if err != nil {
		return
	}
	r.sender.Send(connectionID, data)
}

// broadcastToLocked sends only to the given userIDs. Used for scope-restricted
// events such as breakout chat and unpublished questions. Callers must hold
// r.mu.
func (r *Room) broadcastToLocked(eventType string, payload interface{}, userIDs []string) {
	data, err := protocol.NewEvent(eventType, payload)
	if err != nil {
		return
	}
	for _, id := range userIDs {
		if p, ok := r.participants[id]; ok {
			r.sender.Send(p.ConnectionID, data)
		}
	}
	r.sink.Record(r.ID, eventType, payload)
}

func (r *Room) requireHostLocked(userID string) (*models.Participant, error) {
	p, ok := r.participants[userID]
	if !ok {
		return nil, ErrNotInRoom
	}
	if !p.IsHost() {
		return nil, ErrPermissionDenied
	}
	return p, nil
}

func (r *Room) hostIDsLocked() []string {
	out := make([]string, 0, 2)
	for _, id := range r.order {
		if p, ok := r.participants[id]; ok && p.IsHost() {
			out = append(out, id)
		}
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func removeString(list []string, s string) []string {
	for i, v := range list {
		if v == s {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
