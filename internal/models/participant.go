package models

// Role is assigned by the room creator flow before the join token is issued
// and never changes for the lifetime of a session.
type Role string

const (
	RoleHost     Role = "host"
	RoleAttendee Role = "attendee"
)

// Identity is the authenticated tuple an external collaborator puts into the
// join token. The server trusts it as-is.
type Identity struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
	Role        Role   `json:"role"`
}

// Participant is one person in a room. UserID is stable across reconnects;
// ConnectionID changes with every transport connection.
type Participant struct {
	UserID         string `json:"user_id"`
	ConnectionID   string `json:"-"`
	DisplayName    string `json:"display_name"`
	AvatarURL      string `json:"avatar_url"`
	Role           Role   `json:"role"`
	Muted          bool   `json:"muted"`
	BreakoutRoomID string `json:"breakout_room_id,omitempty"`
}

func (p *Participant) IsHost() bool {
	return p.Role == RoleHost
}
