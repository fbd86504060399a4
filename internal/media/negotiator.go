package media

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/roomloop/server/internal/protocol"
)

// Signaler carries media-plane events back to one participant's event
// transport connection. Must not block.
type Signaler interface {
	Signal(eventType string, payload interface{})
}

// Negotiator establishes one transport per participant against the room's
// forwarding context. Negotiation blocks on client round trips but never
// touches room state; a failed or timed-out negotiation leaves the
// participant in room-state-only mode with the event transport intact.
type Negotiator struct {
	router  *Router
	timeout time.Duration
}

func NewNegotiator(router *Router, timeout time.Duration) *Negotiator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Negotiator{router: router, timeout: timeout}
}

type sdpPayload struct {
	SDP string `json:"sdp"`
}

type candidatePayload struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdp_mid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdp_mline_index,omitempty"`
}

type sessionCreatedPayload struct {
	ICEServers []webrtc.ICEServer `json:"ice_servers"`
}

type failedPayload struct {
	Reason string `json:"reason"`
}

// Session is one participant's negotiated transport plus its producer and
// consumer handles. Its lifetime is bound to the event transport connection
// that spawned it.
type Session struct {
	UserID string
	RoomID string

	fctx   *ForwardingContext
	signal Signaler

	mu sync.Mutex
	pc *webrtc.PeerConnection

	cancel    context.CancelFunc
	connected chan struct{}
	closeOnce sync.Once
}

// StartSession creates the peer connection, registers it with the room's
// forwarding context, and answers with connection parameters. ctx should be
// the connection's context so a mid-negotiation disconnect cancels only this
// participant's pending steps.
func (n *Negotiator) StartSession(ctx context.Context, roomID, userID string, sig Signaler) (*Session, error) {
	fctx := n.router.ForwardingContext(roomID)

	pc, err := n.router.api.NewPeerConnection(webrtc.Configuration{
		ICEServers: n.router.iceServers,
	})
	if err != nil {
		return nil, err
	}

	sessCtx, cancel := context.WithCancel(ctx)
	s := &Session{
		UserID:    userID,
		RoomID:    roomID,
		fctx:      fctx,
		signal:    sig,
		pc:        pc,
		cancel:    cancel,
		connected: make(chan struct{}),
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		init := c.ToJSON()
		sig.Signal(protocol.EventMediaCandidate, candidatePayload{
			Candidate:     init.Candidate,
			SDPMid:        init.SDPMid,
			SDPMLineIndex: init.SDPMLineIndex,
		})
	})

	pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		fctx.publish(s, remote)
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateConnected:
			s.markConnected()
		case webrtc.PeerConnectionStateFailed,
			webrtc.PeerConnectionStateClosed,
			webrtc.PeerConnectionStateDisconnected:
			s.Close(state.String())
		}
	})

	if err := fctx.addSession(s); err != nil {
		cancel()
		_ = pc.Close()
		return nil, err
	}

	sig.Signal(protocol.EventMediaSessionCreated, sessionCreatedPayload{
		ICEServers: n.router.iceServers,
	})
	fctx.attachExisting(s)

	go s.watchdog(sessCtx, n.timeout)

	slog.Info("media session started", "room_id", roomID, "user_id", userID)
	return s, nil
}

// watchdog tears the session down if the transport does not connect within
// the negotiation deadline. The event transport stays up either way.
func (s *Session) watchdog(ctx context.Context, timeout time.Duration) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-s.connected:
	case <-ctx.Done():
		s.Close("cancelled")
	case <-timer.C:
		s.signal.Signal(protocol.EventMediaSessionFailed, failedPayload{Reason: "negotiation timed out"})
		s.Close("negotiation timeout")
	}
}

func (s *Session) markConnected() {
	s.mu.Lock()
	select {
	case <-s.connected:
	default:
		close(s.connected)
	}
	s.mu.Unlock()
}

// HandleOffer applies a client offer and replies with the server's answer.
func (s *Session) HandleOffer(sdp string) error {
	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}
	if err := s.pc.SetRemoteDescription(offer); err != nil {
		return err
	}
	answer, err := s.pc.CreateAnswer(nil)
	if err != nil {
		return err
	}
	if err := s.pc.SetLocalDescription(answer); err != nil {
		return err
	}
	s.signal.Signal(protocol.EventMediaAnswer, sdpPayload{SDP: answer.SDP})
	return nil
}

// HandleAnswer completes a server-initiated renegotiation (new consumer).
func (s *Session) HandleAnswer(sdp string) error {
	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp}
	return s.pc.SetRemoteDescription(answer)
}

// HandleCandidate relays a client ICE candidate into the transport.
func (s *Session) HandleCandidate(candidate string, sdpMid *string, sdpMLineIndex *uint16) error {
	return s.pc.AddICECandidate(webrtc.ICECandidateInit{
		Candidate:     candidate,
		SDPMid:        sdpMid,
		SDPMLineIndex: sdpMLineIndex,
	})
}

// consume binds a fan-out track to this session and renegotiates so the
// client learns about the new consumer.
func (s *Session) consume(track *webrtc.TrackLocalStaticRTP) error {
	sender, err := s.pc.AddTrack(track)
	if err != nil {
		return err
	}

	// Drain RTCP so interceptors keep running.
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, readErr := sender.Read(buf); readErr != nil {
				return
			}
		}
	}()

	offer, err := s.pc.CreateOffer(nil)
	if err != nil {
		return err
	}
	if err := s.pc.SetLocalDescription(offer); err != nil {
		return err
	}
	s.signal.Signal(protocol.EventMediaOffer, sdpPayload{SDP: offer.SDP})
	return nil
}

// Close releases the transport and unregisters the session. Idempotent.
func (s *Session) Close(reason string) {
	s.closeOnce.Do(func() {
		s.cancel()
		s.fctx.removeSession(s)
		_ = s.pc.Close()
		s.signal.Signal(protocol.EventMediaClosed, failedPayload{Reason: reason})
		slog.Info("media session closed", "room_id", s.RoomID, "user_id", s.UserID, "reason", reason)
	})
}
