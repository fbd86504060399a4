package media

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v4"
)

// Config narrows the media plane's startup knobs.
type Config struct {
	UDPPortMin       int
	UDPPortMax       int
	ICEServers       []string
	ICEUsername      string
	ICECredential    string
	VideoBitrateKbps int
}

// Router owns one forwarding context per room. It is constructed once at
// startup and injected; there is no ambient global handle.
type Router struct {
	api          *webrtc.API
	iceServers   []webrtc.ICEServer
	videoBitrate int

	mu       sync.Mutex
	contexts map[string]*ForwardingContext
}

// NewRouter binds the media plane's UDP port range and fixes the codec set
// (Opus audio, VP8 video with a bitrate hint). An unusable port range is a
// startup-time fatal error: the process must not accept rooms without a
// working media plane.
func NewRouter(cfg Config) (*Router, error) {
	if cfg.UDPPortMin <= 0 || cfg.UDPPortMax < cfg.UDPPortMin || cfg.UDPPortMax > 65535 {
		return nil, fmt.Errorf("invalid UDP port range %d-%d", cfg.UDPPortMin, cfg.UDPPortMax)
	}

	settingEngine := webrtc.SettingEngine{}
	if err := settingEngine.SetEphemeralUDPPortRange(uint16(cfg.UDPPortMin), uint16(cfg.UDPPortMax)); err != nil {
		return nil, fmt.Errorf("failed to bind UDP port range %d-%d: %w", cfg.UDPPortMin, cfg.UDPPortMax, err)
	}

	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:    webrtc.MimeTypeOpus,
			ClockRate:   48000,
			Channels:    2,
			SDPFmtpLine: "minptime=10;useinbandfec=1",
		},
		PayloadType: 111,
	}, webrtc.RTPCodecTypeAudio); err != nil {
		return nil, fmt.Errorf("failed to register audio codec: %w", err)
	}
	videoBitrate := cfg.VideoBitrateKbps
	if videoBitrate <= 0 {
		videoBitrate = 1500
	}
	if err := mediaEngine.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:    webrtc.MimeTypeVP8,
			ClockRate:   90000,
			SDPFmtpLine: fmt.Sprintf("max-fr=30;x-google-max-bitrate=%d", videoBitrate),
		},
		PayloadType: 96,
	}, webrtc.RTPCodecTypeVideo); err != nil {
		return nil, fmt.Errorf("failed to register video codec: %w", err)
	}

	return &Router{
		api: webrtc.NewAPI(
			webrtc.WithSettingEngine(settingEngine),
			webrtc.WithMediaEngine(mediaEngine),
		),
		iceServers:   buildICEServers(cfg),
		videoBitrate: videoBitrate,
		contexts:     make(map[string]*ForwardingContext),
	}, nil
}

// ForwardingContext returns the shared per-room context, lazily creating
// exactly one. Concurrent first calls for the same room are serialized by
// the registry mutex, so a race never produces two contexts.
func (rt *Router) ForwardingContext(roomID string) *ForwardingContext {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if fctx, ok := rt.contexts[roomID]; ok {
		return fctx
	}
	fctx := newForwardingContext(roomID, rt)
	rt.contexts[roomID] = fctx
	slog.Info("forwarding context created", "room_id", roomID)
	return fctx
}

// Teardown closes the room's context and releases its resources. Idempotent:
// tearing down an absent or already-closed context is a no-op.
func (rt *Router) Teardown(roomID string) {
	rt.mu.Lock()
	fctx, ok := rt.contexts[roomID]
	if ok {
		delete(rt.contexts, roomID)
	}
	rt.mu.Unlock()

	if !ok {
		return
	}
	fctx.close()
	slog.Info("forwarding context released", "room_id", roomID)
}

// SessionCount reports active media sessions across all rooms.
func (rt *Router) SessionCount() int {
	rt.mu.Lock()
	contexts := make([]*ForwardingContext, 0, len(rt.contexts))
	for _, f := range rt.contexts {
		contexts = append(contexts, f)
	}
	rt.mu.Unlock()

	total := 0
	for _, f := range contexts {
		total += f.sessionCount()
	}
	return total
}

func buildICEServers(cfg Config) []webrtc.ICEServer {
	servers := make([]webrtc.ICEServer, 0, len(cfg.ICEServers))
	for _, url := range cfg.ICEServers {
		server := webrtc.ICEServer{URLs: []string{url}}
		if cfg.ICEUsername != "" {
			server.Username = cfg.ICEUsername
		}
		if cfg.ICECredential != "" {
			server.Credential = cfg.ICECredential
		}
		servers = append(servers, server)
	}
	return servers
}
