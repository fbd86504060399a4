package room

import (
	"log/slog"
	"sync"
	"time"
)

// Manager owns the roomID -> Room registry. Rooms are created lazily on
// first join and destroyed a grace period after they empty, so a brief
// network blip does not wipe a room's state.
type Manager struct {
	mu      sync.Mutex
	rooms   map[string]*Room
	pending map[string]*time.Timer

	grace     time.Duration
	tickEvery time.Duration
	sender    Sender
	sink      Sink
	onDestroy func(roomID string)
}

// NewManager builds the registry. onDestroy is invoked after a room is
// removed, letting the media plane release its forwarding context.
func NewManager(sender Sender, sink Sink, grace, tickEvery time.Duration, onDestroy func(roomID string)) *Manager {
	return &Manager{
		rooms:     make(map[string]*Room),
		pending:   make(map[string]*time.Timer),
		grace:     grace,
		tickEvery: tickEvery,
		sender:    sender,
		sink:      sink,
		onDestroy: onDestroy,
	}
}

// GetOrCreate returns the room, creating it on first join. A pending
// destruction for the same id is cancelled, which is what tolerates
// reconnect races during the grace window.
func (m *Manager) GetOrCreate(roomID string) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t, ok := m.pending[roomID]; ok {
		t.Stop()
		delete(m.pending, roomID)
	}
	if r, ok := m.rooms[roomID]; ok {
		return r
	}
	r := newRoom(roomID, m.sender, m.sink, m.tickEvery, m.scheduleDestroy)
	m.rooms[roomID] = r
	slog.Info("room created", "room_id", roomID)
	return r
}

// Get returns an existing room without creating one.
func (m *Manager) Get(roomID string) (*Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[roomID]
	return r, ok
}

// Count returns the number of live rooms.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}

// ParticipantCount sums roster sizes across rooms.
func (m *Manager) ParticipantCount() int {
	m.mu.Lock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.Unlock()

	total := 0
	for _, r := range rooms {
		total += len(r.UserList())
	}
	return total
}

// scheduleDestroy arms the grace timer when a room empties.
func (m *Manager) scheduleDestroy(roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rooms[roomID]; !ok {
		return
	}
	if t, ok := m.pending[roomID]; ok {
		t.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(m.grace, func() {
		m.destroyIfEmpty(roomID, timer)
	})
	m.pending[roomID] = timer
}

// destroyIfEmpty runs when the grace timer fires. The identity check guards
// a callback that fired but lost the lock race against a cancelling
// GetOrCreate: a timer no longer registered in pending does not own the room
// and must not destroy it.
func (m *Manager) destroyIfEmpty(roomID string, timer *time.Timer) {
	m.mu.Lock()
	if m.pending[roomID] != timer {
		m.mu.Unlock()
		return
	}
	delete(m.pending, roomID)
	r, ok := m.rooms[roomID]
	if !ok {
		m.mu.Unlock()
		return
	}
	if !r.Empty() {
		m.mu.Unlock()
		return
	}
	delete(m.rooms, roomID)
	m.mu.Unlock()

	r.mu.Lock()
	r.stopTimerLocked()
	r.mu.Unlock()

	slog.Info("room destroyed", "room_id", roomID)
	if m.onDestroy != nil {
		m.onDestroy(roomID)
	}
}

// Shutdown stops all room timers and pending destructions.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.pending {
		t.Stop()
		delete(m.pending, id)
	}
	for _, r := range m.rooms {
		r.mu.Lock()
		r.stopTimerLocked()
		r.mu.Unlock()
	}
}
