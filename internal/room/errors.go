package room

import "errors"

// Rejection errors reported back to the acting connection only.
var (
	ErrPermissionDenied   = errors.New("host role required")
	ErrNotInRoom          = errors.New("participant not in room")
	ErrUnknownTarget      = errors.New("target participant not in room")
	ErrNotInBreakout      = errors.New("sender is not assigned to a breakout room")
	ErrBreakoutNotFound   = errors.New("breakout room not found")
	ErrEmptyBreakoutName  = errors.New("breakout room name must not be empty")
	ErrEmptyContent       = errors.New("content must not be empty")
	ErrInvalidScope       = errors.New("unknown message scope")
	ErrPollNotFound       = errors.New("poll not found")
	ErrPollNotUpcoming    = errors.New("poll has already been launched")
	ErrPollNotActive      = errors.New("poll is not active")
	ErrInvalidChoice      = errors.New("poll choice out of range")
	ErrTooManyChoices     = errors.New("poll does not allow multiple choices")
	ErrQuestionNotFound   = errors.New("question not found")
	ErrQADisabled         = errors.New("Q&A is disabled for this room")
	ErrTimerNotConfigured = errors.New("timer has no duration set")
)
