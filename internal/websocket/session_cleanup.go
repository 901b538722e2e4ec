package websocket

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/jurubahasa/server/domain/repositories"
)

// DefaultCleanupInterval is how often idle sessions are swept
const DefaultCleanupInterval = 30 * time.Minute

const sweepTimeout = time.Minute

// SessionForgetter releases what a service keeps per session
type SessionForgetter interface {
	ForgetSession(sessionID string)
}

// SessionSweeper expires idle conversations, hangs up pages still attached to
// them so the page reconnects into a fresh session, and purges dead sessions.
type SessionSweeper struct {
	sessions  repositories.SessionRepository
	hub       *Hub
	forgetter SessionForgetter
	interval  time.Duration
	logger    *zap.Logger
}

// SweepReport is what one pass changed
type SweepReport struct {
	Expired      int64
	Disconnected int
	Purged       int
}

// NewSessionSweeper creates a sweeper. A non-positive interval uses DefaultCleanupInterval.
// forgetter may be nil.
func NewSessionSweeper(
	sessions repositories.SessionRepository,
	hub *Hub,
	forgetter SessionForgetter,
	interval time.Duration,
	logger *zap.Logger,
) *SessionSweeper {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	return &SessionSweeper{
		sessions:  sessions,
		hub:       hub,
		forgetter: forgetter,
		interval:  interval,
		logger:    logger,
	}
}

// Run sweeps every interval until ctx is done
func (s *SessionSweeper) Run(ctx context.Context) {
	s.logger.Info("Session sweeper started", zap.Duration("interval", s.interval))
	defer s.logger.Info("Session sweeper stopped")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass
func (s *SessionSweeper) Sweep(ctx context.Context) SweepReport {
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	var report SweepReport
	expired, err := s.sessions.ExpireSessions(ctx)
	if err != nil {
		s.logger.Error("Failed to expire sessions", zap.Error(err))
	}
	report.Expired = expired

	for _, id := range s.hub.ConnectedSessions() {
		session, err := s.sessions.GetByID(ctx, id)
		switch {
		case errors.Is(err, repositories.ErrSessionNotFound):
		case err != nil:
			s.logger.Warn("Failed to check connected session", zap.String("sessionID", id), zap.Error(err))
			continue
		case !session.IsExpired():
			continue
		}
		s.hub.Disconnect(id)
		report.Disconnected++
	}

	purged, err := s.sessions.PurgeSessions(ctx, time.Now())
	if err != nil {
		s.logger.Error("Failed to purge sessions", zap.Error(err))
	}
	for _, id := range purged {
		if s.forgetter != nil {
			s.forgetter.ForgetSession(id)
		}
	}
	report.Purged = len(purged)

	if report.Expired > 0 || report.Disconnected > 0 || report.Purged > 0 {
		s.logger.Info("Swept idle sessions",
			zap.Int64("expired", report.Expired),
			zap.Int("disconnected", report.Disconnected),
			zap.Int("purged", report.Purged))
	}
	return report
}
