package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/satriahrh/jurubahasa/server/domain/entities"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
)

// SessionRepository defines data access methods for conversation sessions
type SessionRepository interface {
	Create(ctx context.Context, session *entities.Session) error
	GetByID(ctx context.Context, id string) (*entities.Session, error)
	// AppendTurn records digest as the last processed clip and appends messages in one write
	AppendTurn(ctx context.Context, id string, digest string, messages ...entities.Message) error
	Terminate(ctx context.Context, id string) error
	// ExpireSessions marks active sessions past their expiry and returns how many changed
	ExpireSessions(ctx context.Context) (int64, error)
	// PurgeSessions deletes sessions that are no longer active and expired before
	// the given time, and returns their IDs
	PurgeSessions(ctx context.Context, before time.Time) ([]string, error)
}
