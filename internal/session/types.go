package session

import (
	"time"

	"github.com/ent0n29/parley/internal/conversation"
)

// CreateRequest defines payload for creating a new session.
type CreateRequest struct {
	UserID    string `json:"user_id"`
	PersonaID string `json:"persona_id"`
	Model     string `json:"model"`
}

// View is the JSON shape of a session returned to clients.
type View struct {
	SessionID       string                  `json:"session_id"`
	UserID          string                  `json:"user_id"`
	Status          Status                  `json:"status"`
	PersonaID       string                  `json:"persona_id"`
	Model           string                  `json:"model"`
	StartedAt       time.Time               `json:"started_at"`
	LastActivityAt  time.Time               `json:"last_activity_at"`
	InactivityTTLMS int64                   `json:"inactivity_ttl_ms"`
	Transcript      conversation.Transcript `json:"transcript"`
}

// NewView renders e for clients, including a snapshot of its transcript.
func NewView(e *Entry, inactivityTimeout time.Duration) View {
	return View{
		SessionID:       e.ID,
		UserID:          e.UserID,
		Status:          e.Status,
		PersonaID:       e.PersonaID,
		Model:           e.Model,
		StartedAt:       e.StartedAt,
		LastActivityAt:  e.LastActivityAt,
		InactivityTTLMS: inactivityTimeout.Milliseconds(),
		Transcript:      e.Conversation.Transcript(),
	}
}
