package api

import (
	"time"

	"github.com/satriahrh/jurubahasa/server/domain/entities"
)

// SessionResponse is returned when a conversation is started
type SessionResponse struct {
	SessionID string    `json:"session_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ConversationResponse is the current state of a conversation
type ConversationResponse struct {
	SessionID string                 `json:"session_id"`
	Status    entities.SessionStatus `json:"status"`
	CreatedAt time.Time              `json:"created_at"`
	ExpiresAt time.Time              `json:"expires_at"`
	Messages  []entities.Message     `json:"messages"`
}

// HealthResponse reports liveness
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Clients int    `json:"clients"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
