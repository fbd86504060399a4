package models

import "time"

// MessageScope controls who may see a chat message. The server is the
// enforcement point for visibility, never the client.
type MessageScope string

const (
	ScopeRoom     MessageScope = "room"
	ScopeBreakout MessageScope = "breakout"
	ScopeDirect   MessageScope = "direct"
)

// ChatMessage is immutable once created.
type ChatMessage struct {
	ID           string       `json:"id"`
	SenderID     string       `json:"sender_id"`
	SenderName   string       `json:"sender_name"`
	Content      string       `json:"content"`
	Scope        MessageScope `json:"scope"`
	TargetUserID string       `json:"target_user_id,omitempty"`
	BreakoutID   string       `json:"breakout_id,omitempty"`
	SentAt       time.Time    `json:"sent_at"`
}
