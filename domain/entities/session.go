package entities

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// SessionStatus represents the status of a session
type SessionStatus string

const (
	SessionStatusActive     SessionStatus = "active"
	SessionStatusExpired    SessionStatus = "expired"
	SessionStatusTerminated SessionStatus = "terminated"
)

// DefaultSessionTTL is how long an idle session stays usable
const DefaultSessionTTL = 24 * time.Hour

// Session is one browser conversation: the message log plus the marker of the
// last audio clip that completed a turn.
type Session struct {
	ID             string        `json:"id" bson:"_id"`
	CreatedAt      time.Time     `json:"created_at" bson:"created_at"`
	LastActiveAt   time.Time     `json:"last_active_at" bson:"last_active_at"`
	LastMessageAt  *time.Time    `json:"last_message_at,omitempty" bson:"last_message_at,omitempty"`
	ExpiresAt      time.Time     `json:"expires_at" bson:"expires_at"`
	TTL            time.Duration `json:"-" bson:"ttl"`
	Status         SessionStatus `json:"status" bson:"status"`
	Messages       []Message     `json:"messages" bson:"messages"`
	LastClipDigest string        `json:"-" bson:"last_clip_digest,omitempty"`
}

// NewSession creates an empty active session. A non-positive ttl falls back to DefaultSessionTTL.
func NewSession(ttl time.Duration) *Session {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	now := time.Now()
	return &Session{
		ID:           uuid.NewString(),
		CreatedAt:    now,
		LastActiveAt: now,
		ExpiresAt:    now.Add(ttl),
		TTL:          ttl,
		Status:       SessionStatusActive,
		Messages:     make([]Message, 0),
	}
}

// AppendMessages adds messages to the end of the log. Earlier messages are never touched.
func (s *Session) AppendMessages(messages ...Message) {
	if len(messages) == 0 {
		return
	}
	s.Messages = append(s.Messages, messages...)
	last := messages[len(messages)-1].Timestamp
	s.LastMessageAt = &last
	s.UpdateLastActive()
}

// HasProcessed reports whether digest matches the last processed clip
func (s *Session) HasProcessed(digest string) bool {
	return digest != "" && s.LastClipDigest == digest
}

// MarkProcessed records digest as the last processed clip
func (s *Session) MarkProcessed(digest string) {
	s.LastClipDigest = digest
	s.UpdateLastActive()
}

// UpdateLastActive updates the last active timestamp and extends expiration
func (s *Session) UpdateLastActive() {
	ttl := s.TTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	s.LastActiveAt = time.Now()
	s.ExpiresAt = s.LastActiveAt.Add(ttl)
}

// IsExpired checks if the session can no longer take turns
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt) || s.Status != SessionStatusActive
}

// Terminate marks the session as ended by the user. It closes the expiry window
// so the ended session can be purged on the next sweep.
func (s *Session) Terminate() {
	s.Status = SessionStatusTerminated
	s.LastActiveAt = time.Now()
	s.ExpiresAt = s.LastActiveAt
}

// Expire marks the session as expired
func (s *Session) Expire() {
	s.Status = SessionStatusExpired
}

// Validate validates the session data
func (s *Session) Validate() error {
	if s.ID == "" {
		return errors.New("session id is required")
	}

	if s.Status != SessionStatusActive && s.Status != SessionStatusExpired && s.Status != SessionStatusTerminated {
		return errors.New("invalid session status")
	}

	return nil
}
