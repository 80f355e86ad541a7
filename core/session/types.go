package session

import (
	"image"
	"time"
)

// State identifies a step of the conversation.
type State string

const (
	// StateIdle indicates there is no active conversation with the user.
	StateIdle State = "idle"
	// StateAwaitingTechnology waits for the user to pick a technology.
	StateAwaitingTechnology State = "awaiting_technology"
	// StateAwaitingContentImage waits for the photo to transform.
	StateAwaitingContentImage State = "awaiting_content_image"
	// StateAwaitingStyle waits for a style label of the chosen technology.
	StateAwaitingStyle State = "awaiting_style"
)

// Session stores conversation state and scratch data for one user.
type Session struct {
	UserID       int64
	State        State
	Technology   string
	ContentImage image.Image
	UpdatedAt    time.Time
}

// Reset returns the session to Idle and drops the technology and image.
func (s *Session) Reset() {
	s.State = StateIdle
	s.Technology = ""
	s.ContentImage = nil
}

// InProgress reports whether a flow is active.
func (s Session) InProgress() bool {
	return s.State != StateIdle
}
