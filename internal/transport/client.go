package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/roomloop/server/internal/auth"
	"github.com/roomloop/server/internal/media"
	"github.com/roomloop/server/internal/models"
	"github.com/roomloop/server/internal/protocol"
	"github.com/roomloop/server/internal/room"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Client is one authenticated event transport connection. The identity is
// fixed at connect time; a reconnect produces a new Client with a new
// ConnectionID but the same userID.
type Client struct {
	ConnectionID string
	Identity     models.Identity
	RoomID       string

	server *Server
	conn   *websocket.Conn
	room   *room.Room
	send   chan []byte

	// done stops the write pump on server shutdown. The send channel itself
	// is never closed: the media plane signals into it from its own
	// goroutines, so a late signal must land in the buffer, not panic.
	done     chan struct{}
	doneOnce sync.Once

	limiter *rate.Limiter

	// ctx is cancelled on disconnect so pending negotiation steps for this
	// participant are abandoned without touching anyone else's.
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	media     *media.Session
	closeOnce sync.Once
}

// ServeWS upgrades the connection, authenticates the join token, registers
// the participant into its room, and hands the joiner its full-state
// snapshot before any deltas flow.
func (s *Server) ServeWS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}
		identity, roomID, err := auth.ParseJoinToken(token, s.jwtSecret)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Error("websocket upgrade failed", "error", err)
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		c := &Client{
			ConnectionID: uuid.NewString(),
			Identity:     identity,
			RoomID:       roomID,
			server:       s,
			conn:         conn,
			send:         make(chan []byte, 256),
			done:         make(chan struct{}),
			limiter:      rate.NewLimiter(rate.Limit(s.actionsPerSec), s.actionBurst),
			ctx:          ctx,
			cancel:       cancel,
		}

		if !s.hub.add(c) {
			c.writeDirect(protocol.EventError, protocol.ErrorPayload{
				Message: "server at capacity",
				Code:    "CAPACITY",
			})
			conn.Close()
			return
		}

		c.room = s.rooms.GetOrCreate(roomID)
		c.room.Join(identity, c.ConnectionID)
		s.presence.SetOnline(roomID, identity.UserID)
		slog.Info("participant connected",
			"room_id", roomID,
			"user_id", identity.UserID,
			"connection_id", c.ConnectionID,
			"role", identity.Role,
		)

		go c.writePump()
		c.readPump()
	}
}

func (c *Client) readPump() {
	defer c.teardown()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Error("ws read error", "error", err, "user_id", c.Identity.UserID)
			}
			break
		}

		if !c.limiter.Allow() {
			c.sendError("too many actions", "RATE_LIMITED")
			continue
		}

		var env protocol.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.sendError("invalid message frame", "BAD_FRAME")
			continue
		}
		action, err := protocol.DecodeAction(env)
		if err != nil {
			c.sendError(err.Error(), "BAD_ACTION")
			continue
		}
		c.server.dispatch(c, action)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// stop halts the write pump. Idempotent; called by the hub on shutdown and
// by teardown.
func (c *Client) stop() {
	c.doneOnce.Do(func() { close(c.done) })
}

// teardown runs exactly once when the connection drops: the media session
// bound to this connection is released, the roster broadcast goes out, and
// the room state itself is retained for a late reconnect.
func (c *Client) teardown() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.stop()
		c.conn.Close()

		c.mu.Lock()
		sess := c.media
		c.media = nil
		c.mu.Unlock()
		if sess != nil {
			sess.Close("connection dropped")
		}

		// A stale connection whose user already reconnected must not wipe
		// the presence entry for the fresh session.
		if c.room.Leave(c.ConnectionID) {
			c.server.presence.SetOffline(c.RoomID, c.Identity.UserID)
		}
		c.server.hub.remove(c)
		slog.Info("participant disconnected",
			"room_id", c.RoomID,
			"user_id", c.Identity.UserID,
			"connection_id", c.ConnectionID,
		)
	})
}

// closeSlow is invoked by the hub when this connection stops draining its
// send buffer.
func (c *Client) closeSlow() {
	c.conn.Close()
}

// Signal implements media.Signaler for the negotiation plane.
func (c *Client) Signal(eventType string, payload interface{}) {
	data, err := protocol.NewEvent(eventType, payload)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// sendEvent queues a response event for this connection only.
func (c *Client) sendEvent(eventType string, payload interface{}) {
	c.Signal(eventType, payload)
}

func (c *Client) sendError(message, code string) {
	c.sendEvent(protocol.EventError, protocol.ErrorPayload{Message: message, Code: code})
}

// writeDirect writes before the pumps start (pre-registration rejections).
func (c *Client) writeDirect(eventType string, payload interface{}) {
	data, err := protocol.NewEvent(eventType, payload)
	if err != nil {
		return
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.TextMessage, data)
}
