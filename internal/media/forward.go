package media

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v4"
)

// ForwardingContext relays published tracks between the participants of one
// room without re-encoding: inbound RTP from a producer is written verbatim
// to a local track fanned out to every other participant's transport.
type ForwardingContext struct {
	RoomID string

	router *Router

	mu        sync.Mutex
	closed    bool
	sessions  map[string]*Session // by userID
	producers map[string]*webrtc.TrackLocalStaticRTP
}

func newForwardingContext(roomID string, router *Router) *ForwardingContext {
	return &ForwardingContext{
		RoomID:    roomID,
		router:    router,
		sessions:  make(map[string]*Session),
		producers: make(map[string]*webrtc.TrackLocalStaticRTP),
	}
}

func (f *ForwardingContext) addSession(s *Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return fmt.Errorf("forwarding context for room %s is closed", f.RoomID)
	}
	if old, ok := f.sessions[s.UserID]; ok {
		go old.Close("replaced")
	}
	f.sessions[s.UserID] = s
	return nil
}

func (f *ForwardingContext) removeSession(s *Session) {
	f.mu.Lock()
	if existing, ok := f.sessions[s.UserID]; ok && existing == s {
		delete(f.sessions, s.UserID)
	}
	f.mu.Unlock()
}

// attachExisting subscribes a new session to every track already being
// produced in the room.
func (f *ForwardingContext) attachExisting(target *Session) {
	f.mu.Lock()
	producers := make([]*webrtc.TrackLocalStaticRTP, 0, len(f.producers))
	for _, track := range f.producers {
		producers = append(producers, track)
	}
	f.mu.Unlock()

	for _, track := range producers {
		if err := target.consume(track); err != nil {
			slog.Error("failed to attach existing track", "room_id", f.RoomID, "user_id", target.UserID, "error", err)
		}
	}
}

// publish pumps one remote track into a local fan-out track until the
// producer stops, then unregisters it. Runs on the OnTrack goroutine.
func (f *ForwardingContext) publish(src *Session, remote *webrtc.TrackRemote) {
	trackKey := fmt.Sprintf("%s:%s", src.UserID, remote.ID())
	local, err := webrtc.NewTrackLocalStaticRTP(
		remote.Codec().RTPCodecCapability,
		trackKey,
		src.UserID,
	)
	if err != nil {
		slog.Error("failed to create fan-out track", "room_id", f.RoomID, "error", err)
		return
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.producers[trackKey] = local
	targets := make([]*Session, 0, len(f.sessions))
	for _, s := range f.sessions {
		if s.UserID == src.UserID {
			continue
		}
		targets = append(targets, s)
	}
	f.mu.Unlock()

	for _, target := range targets {
		if err := target.consume(local); err != nil {
			slog.Error("failed to fan out track", "track", trackKey, "user_id", target.UserID, "error", err)
		}
	}

	for {
		packet, _, readErr := remote.ReadRTP()
		if readErr != nil {
			break
		}
		if writeErr := local.WriteRTP(packet); writeErr != nil {
			break
		}
	}

	f.mu.Lock()
	delete(f.producers, trackKey)
	f.mu.Unlock()
}

func (f *ForwardingContext) sessionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

// close tears down every session. Safe to call more than once.
func (f *ForwardingContext) close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	sessions := make([]*Session, 0, len(f.sessions))
	for _, s := range f.sessions {
		sessions = append(sessions, s)
	}
	f.sessions = make(map[string]*Session)
	f.producers = make(map[string]*webrtc.TrackLocalStaticRTP)
	f.mu.Unlock()

	for _, s := range sessions {
		s.Close("room closed")
	}
}
