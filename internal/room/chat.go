package room

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roomloop/server/internal/models"
	"github.com/roomloop/server/internal/protocol"
)

// SendMessage validates scope and broadcasts only to the eligible audience.
// Direct messages require the target to be present; breakout messages require
// the sender to be assigned to a breakout room.
func (r *Room) SendMessage(senderID string, action protocol.SendMessage) (models.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sender, ok := r.participants[senderID]
	if !ok {
		return models.ChatMessage{}, ErrNotInRoom
	}
	if strings.TrimSpace(action.Content) == "" {
		return models.ChatMessage{}, ErrEmptyContent
	}

	msg := models.ChatMessage{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		SenderName: sender.DisplayName,
		Content:    action.Content,
		Scope:      models.MessageScope(action.Scope),
		SentAt:     time.Now().UTC(),
	}

	switch msg.Scope {
	case models.ScopeRoom:
		r.broadcastLocked(protocol.EventChatMessage, msg, "")

	case models.ScopeBreakout:
		if sender.BreakoutRoomID == "" {
			return models.ChatMessage{}, ErrNotInBreakout
		}
		msg.BreakoutID = sender.BreakoutRoomID
		b := r.findBreakoutLocked(sender.BreakoutRoomID)
		if b == nil {
			return models.ChatMessage{}, ErrBreakoutNotFound
		}
		r.broadcastToLocked(protocol.EventChatMessage, msg, b.Participants)

	case models.ScopeDirect:
		if _, ok := r.participants[action.TargetUserID]; !ok {
			return models.ChatMessage{}, ErrUnknownTarget
		}
		msg.TargetUserID = action.TargetUserID
		r.broadcastToLocked(protocol.EventChatMessage, msg, []string{senderID, action.TargetUserID})

	default:
		return models.ChatMessage{}, ErrInvalidScope
	}

	return msg, nil
}
