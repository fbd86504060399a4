package transport

import (
	"errors"
	"log/slog"

	"github.com/roomloop/server/internal/media"
	"github.com/roomloop/server/internal/presence"
	"github.com/roomloop/server/internal/protocol"
	"github.com/roomloop/server/internal/room"
)

// Server wires the event transport to the room and media planes. The two
// planes share nothing but the participant id: room actions never touch
// forwarding handles and media negotiation never blocks room mutations.
type Server struct {
	hub        *Hub
	rooms      *room.Manager
	negotiator *media.Negotiator
	presence   *presence.Tracker

	jwtSecret     string
	actionsPerSec float64
	actionBurst   int
}

func NewServer(hub *Hub, rooms *room.Manager, negotiator *media.Negotiator, tracker *presence.Tracker, jwtSecret string, actionsPerSec float64, actionBurst int) *Server {
	return &Server{
		hub:           hub,
		rooms:         rooms,
		negotiator:    negotiator,
		presence:      tracker,
		jwtSecret:     jwtSecret,
		actionsPerSec: actionsPerSec,
		actionBurst:   actionBurst,
	}
}

// Hub exposes the connection registry for stats endpoints.
func (s *Server) Hub() *Hub { return s.hub }

// dispatch routes one decoded action. The switch covers the whole closed
// action set; anything unknown was already rejected by DecodeAction.
func (s *Server) dispatch(c *Client, action protocol.Action) {
	switch a := action.(type) {
	case protocol.RoomAction:
		s.dispatchRoom(c, a)
	case protocol.MediaAction:
		s.dispatchMedia(c, a)
	default:
		c.sendError("unroutable action", "BAD_ACTION")
	}
}

func (s *Server) dispatchRoom(c *Client, action protocol.RoomAction) {
	userID := c.Identity.UserID
	var err error

	switch a := action.(type) {
	case protocol.SendMessage:
		_, err = c.room.SendMessage(userID, a)
	case protocol.SetMuted:
		err = c.room.SetMuted(userID, a.Muted)
	case protocol.CreateBreakoutRooms:
		err = c.room.CreateBreakoutRooms(userID, a.Rooms)
	case protocol.AssignBreakoutRoom:
		err = c.room.AssignBreakoutRoom(userID, a.UserID, a.BreakoutID)
	case protocol.CreatePoll:
		_, err = c.room.CreatePoll(userID, a)
	case protocol.LaunchPoll:
		err = c.room.LaunchPoll(userID, a.PollID)
	case protocol.RespondPoll:
		err = c.room.RespondPoll(userID, a)
	case protocol.EndPoll:
		err = c.room.EndPoll(userID, a.PollID)
	case protocol.DeletePoll:
		err = c.room.DeletePoll(userID, a.PollID)
	case protocol.AskQuestion:
		_, err = c.room.AskQuestion(userID, a.Text)
	case protocol.UpvoteQuestion:
		err = c.room.UpvoteQuestion(userID, a.QuestionID)
	case protocol.PublishQuestion:
		err = c.room.PublishQuestion(userID, a.QuestionID)
	case protocol.AnswerQuestion:
		err = c.room.AnswerQuestion(userID, a)
	case protocol.CloseQuestion:
		err = c.room.CloseQuestion(userID, a.QuestionID)
	case protocol.DismissQuestion:
		err = c.room.DismissQuestion(userID, a.QuestionID)
	case protocol.ToggleQA:
		err = c.room.ToggleQA(userID, a.Enabled)
	case protocol.RaiseHand:
		err = c.room.RaiseHand(userID)
	case protocol.LowerHand:
		err = c.room.LowerHand(userID)
	case protocol.TimerStart:
		err = c.room.StartTimer(userID, a.DurationSeconds)
	case protocol.TimerPause:
		err = c.room.PauseTimer(userID)
	case protocol.TimerReset:
		err = c.room.ResetTimer(userID, a.DurationSeconds)

	// Fetch responses are pushed by the room itself under its lock, so they
	// stay ordered with concurrent broadcasts to the same connection.
	case protocol.GetUserList:
		err = c.room.PushUserList(userID)
	case protocol.GetRoomState:
		err = c.room.PushSnapshot(userID)
	case protocol.GetPolls:
		err = c.room.PushPolls(userID)
	case protocol.GetQuestions:
		err = c.room.PushQuestions(userID)
	case protocol.GetRaisedHands:
		err = c.room.PushRaisedHands(userID)
	}

	if err != nil {
		c.sendError(err.Error(), rejectionCode(err))
	}
}

func (s *Server) dispatchMedia(c *Client, action protocol.MediaAction) {
	switch a := action.(type) {
	case protocol.MediaJoin:
		s.startMediaSession(c)
	case protocol.MediaOffer:
		if sess := c.session(); sess != nil {
			if err := sess.HandleOffer(a.SDP); err != nil {
				c.sendError("failed to apply offer", "MEDIA_NEGOTIATION")
			}
		} else {
			c.sendError("no media session", "MEDIA_NOT_READY")
		}
	case protocol.MediaAnswer:
		if sess := c.session(); sess != nil {
			if err := sess.HandleAnswer(a.SDP); err != nil {
				c.sendError("failed to apply answer", "MEDIA_NEGOTIATION")
			}
		} else {
			c.sendError("no media session", "MEDIA_NOT_READY")
		}
	case protocol.MediaCandidate:
		if sess := c.session(); sess != nil {
			if err := sess.HandleCandidate(a.Candidate, a.SDPMid, a.SDPMLineIndex); err != nil {
				c.sendError("failed to add candidate", "MEDIA_NEGOTIATION")
			}
		} else {
			c.sendError("no media session", "MEDIA_NOT_READY")
		}
	case protocol.MediaLeave:
		c.dropSession("left media")
	}
}

// startMediaSession opens the participant's transport against the room's
// forwarding context. A failure here is room-fatal for media only: the
// participant stays in the meeting with chat and polls working.
func (s *Server) startMediaSession(c *Client) {
	c.dropSession("renegotiating")

	sess, err := s.negotiator.StartSession(c.ctx, c.RoomID, c.Identity.UserID, c)
	if err != nil {
		slog.Error("media session start failed",
			"room_id", c.RoomID,
			"user_id", c.Identity.UserID,
			"error", err,
		)
		c.sendEvent(protocol.EventMediaSessionFailed, map[string]string{"reason": "media unavailable"})
		return
	}
	c.setSession(sess)
}

func (c *Client) session() *media.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.media
}

func (c *Client) setSession(sess *media.Session) {
	c.mu.Lock()
	c.media = sess
	c.mu.Unlock()
}

func (c *Client) dropSession(reason string) {
	c.mu.Lock()
	sess := c.media
	c.media = nil
	c.mu.Unlock()
	if sess != nil {
		sess.Close(reason)
	}
}

// rejectionCode maps a room error to the wire code surfaced to the acting
// connection.
func rejectionCode(err error) string {
	switch {
	case errors.Is(err, room.ErrPermissionDenied):
		return "FORBIDDEN"
	case errors.Is(err, room.ErrNotInRoom):
		return "NOT_IN_ROOM"
	case errors.Is(err, room.ErrUnknownTarget):
		return "UNKNOWN_TARGET"
	case errors.Is(err, room.ErrNotInBreakout):
		return "NOT_IN_BREAKOUT"
	case errors.Is(err, room.ErrBreakoutNotFound),
		errors.Is(err, room.ErrPollNotFound),
		errors.Is(err, room.ErrQuestionNotFound):
		return "NOT_FOUND"
	case errors.Is(err, room.ErrPollNotUpcoming),
		errors.Is(err, room.ErrPollNotActive),
		errors.Is(err, room.ErrTimerNotConfigured):
		return "INVALID_STATE"
	case errors.Is(err, room.ErrQADisabled):
		return "QA_DISABLED"
	case errors.Is(err, room.ErrEmptyBreakoutName),
		errors.Is(err, room.ErrEmptyContent),
		errors.Is(err, room.ErrInvalidScope),
		errors.Is(err, room.ErrInvalidChoice),
		errors.Is(err, room.ErrTooManyChoices):
		return "INVALID_PAYLOAD"
	default:
		return "INTERNAL"
	}
}
