package adapters

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/satriahrh/jurubahasa/server/domain/entities"
	"github.com/satriahrh/jurubahasa/server/domain/repositories"
)

// MemorySessionRepository keeps sessions in process memory.
// Sessions live as long as the server process, which matches a single-host demo.
type MemorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*entities.Session
}

var _ repositories.SessionRepository = (*MemorySessionRepository)(nil)

// NewMemorySessionRepository creates a new in-memory session repository
func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{
		sessions: make(map[string]*entities.Session),
	}
}

// Create implements SessionRepository interface
func (m *MemorySessionRepository) Create(ctx context.Context, session *entities.Session) error {
	if session == nil {
		return errors.New("session cannot be nil")
	}

	if err := session.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[session.ID]; exists {
		return errors.New("session with this ID already exists")
	}

	m.sessions[session.ID] = cloneSession(session)
	return nil
}

// GetByID implements SessionRepository interface
func (m *MemorySessionRepository) GetByID(ctx context.Context, id string) (*entities.Session, error) {
	if id == "" {
		return nil, errors.New("session ID cannot be empty")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	session, exists := m.sessions[id]
	if !exists {
		return nil, repositories.ErrSessionNotFound
	}

	// Return a copy to prevent external modifications
	return cloneSession(session), nil
}

// AppendTurn implements SessionRepository interface
func (m *MemorySessionRepository) AppendTurn(ctx context.Context, id string, digest string, messages ...entities.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[id]
	if !exists {
		return repositories.ErrSessionNotFound
	}
	if session.IsExpired() {
		return repositories.ErrSessionExpired
	}

	session.AppendMessages(messages...)
	session.MarkProcessed(digest)
	return nil
}

// Terminate implements SessionRepository interface
func (m *MemorySessionRepository) Terminate(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[id]
	if !exists {
		return repositories.ErrSessionNotFound
	}

	session.Terminate()
	return nil
}

// ExpireSessions implements SessionRepository interface
func (m *MemorySessionRepository) ExpireSessions(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var count int64
	for _, session := range m.sessions {
		if session.Status == entities.SessionStatusActive && now.After(session.ExpiresAt) {
			session.Expire()
			count++
		}
	}
	return count, nil
}

// PurgeSessions implements SessionRepository interface
func (m *MemorySessionRepository) PurgeSessions(ctx context.Context, before time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var purged []string
	for id, session := range m.sessions {
		if session.Status != entities.SessionStatusActive && session.ExpiresAt.Before(before) {
			delete(m.sessions, id)
			purged = append(purged, id)
		}
	}
	return purged, nil
}

// Len reports how many sessions are held
func (m *MemorySessionRepository) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func cloneSession(s *entities.Session) *entities.Session {
	c := *s
	c.Messages = make([]entities.Message, len(s.Messages))
	copy(c.Messages, s.Messages)
	if s.LastMessageAt != nil {
		t := *s.LastMessageAt
		c.LastMessageAt = &t
	}
	return &c
}
