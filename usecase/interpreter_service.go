package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/jurubahasa/server/domain/entities"
	"github.com/satriahrh/jurubahasa/server/domain/repositories"
)

// TurnState is what the status banner shows
type TurnState string

const (
	TurnStateIdle       TurnState = "idle"
	TurnStateProcessing TurnState = "processing"
	TurnStateSuccess    TurnState = "success"
	TurnStateError      TurnState = "error"
)

// Status is pushed to the page whenever the banner changes
type Status struct {
	State  TurnState       `json:"state"`
	Branch entities.Branch `json:"branch,omitempty"`
	Detail string          `json:"detail,omitempty"`
}

// Notifier receives everything a turn wants the page to render or play
type Notifier interface {
	NotifyStatus(status Status)
	NotifyMessages(messages []entities.Message)
	Speak(cue entities.SpeechCue)
}

// TurnOutcome classifies how a turn ended
type TurnOutcome string

const (
	TurnCompleted    TurnOutcome = "completed"
	TurnUnrecognized TurnOutcome = "unrecognized"
	TurnDuplicate    TurnOutcome = "duplicate"
	TurnAborted      TurnOutcome = "aborted"
)

// TurnResult summarizes one processed clip
type TurnResult struct {
	Outcome       TurnOutcome
	Branch        entities.Branch
	Transcription repositories.Transcription
	Messages      []entities.Message
}

// InterpreterService runs one turn per recorded clip:
// transcribe, route on the detected language, translate, record, speak.
type InterpreterService struct {
	sessions   repositories.SessionRepository
	stt        repositories.SpeechToText
	translator repositories.Translator
	sessionTTL time.Duration
	logger     *zap.Logger

	// one lock per session so turns of the same conversation never interleave
	locks sync.Map
}

// NewInterpreterService creates the orchestrator
func NewInterpreterService(
	sessions repositories.SessionRepository,
	stt repositories.SpeechToText,
	translator repositories.Translator,
	sessionTTL time.Duration,
	logger *zap.Logger,
) *InterpreterService {
	return &InterpreterService{
		sessions:   sessions,
		stt:        stt,
		translator: translator,
		sessionTTL: sessionTTL,
		logger:     logger,
	}
}

// StartSession opens an empty conversation
func (s *InterpreterService) StartSession(ctx context.Context) (*entities.Session, error) {
	session := entities.NewSession(s.sessionTTL)
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	s.logger.Info("Session started", zap.String("sessionID", session.ID))
	return session, nil
}

// Session returns a usable session or ErrSessionExpired
func (s *InterpreterService) Session(ctx context.Context, sessionID string) (*entities.Session, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsExpired() {
		return nil, repositories.ErrSessionExpired
	}
	return session, nil
}

// EndSession terminates the conversation; the next visit starts with an empty log
func (s *InterpreterService) EndSession(ctx context.Context, sessionID string) error {
	if err := s.sessions.Terminate(ctx, sessionID); err != nil {
		return err
	}
	s.ForgetSession(sessionID)
	s.logger.Info("Session ended", zap.String("sessionID", sessionID))
	return nil
}

// ForgetSession drops per-session bookkeeping once the session is gone from storage
func (s *InterpreterService) ForgetSession(sessionID string) {
	s.locks.Delete(sessionID)
}

// HandleClip processes one clip for a session.
//
// A clip equal to the last processed one is ignored without any upstream call.
// Failed transcription, empty transcription and failed translation abort the turn and
// leave the session untouched, so the same recording may be sent again. An unrecognized
// language consumes the clip without adding messages.
func (s *InterpreterService) HandleClip(ctx context.Context, sessionID string, clip entities.AudioClip, notifier Notifier) (TurnResult, error) {
	lock := s.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.Session(ctx, sessionID)
	if err != nil {
		notifier.NotifyStatus(Status{State: TurnStateError, Detail: err.Error()})
		return TurnResult{Outcome: TurnAborted}, err
	}

	digest := clip.Digest()
	if session.HasProcessed(digest) {
		s.logger.Debug("Ignoring already processed clip", zap.String("sessionID", sessionID))
		return TurnResult{Outcome: TurnDuplicate}, nil
	}

	notifier.NotifyStatus(Status{State: TurnStateProcessing})

	transcription, err := s.stt.Transcribe(ctx, clip)
	if err != nil {
		s.logger.Error("Transcription failed", zap.String("sessionID", sessionID), zap.Error(err))
		notifier.NotifyStatus(Status{State: TurnStateError, Detail: "transcription failed: " + err.Error()})
		return TurnResult{Outcome: TurnAborted}, fmt.Errorf("transcribe: %w", err)
	}
	if transcription.Text == "" {
		s.logger.Info("Empty transcription", zap.String("sessionID", sessionID))
		notifier.NotifyStatus(Status{State: TurnStateIdle, Detail: repositories.ErrEmptyTranscription.Error()})
		return TurnResult{Outcome: TurnAborted, Transcription: transcription}, repositories.ErrEmptyTranscription
	}

	branch := entities.ClassifyLanguage(transcription.Language)
	result := TurnResult{Branch: branch, Transcription: transcription}

	s.logger.Info("Transcription completed",
		zap.String("sessionID", sessionID),
		zap.String("language", transcription.Language),
		zap.String("branch", string(branch)))

	target, ok := branch.Target()
	if !ok {
		if err := s.sessions.AppendTurn(ctx, sessionID, digest); err != nil {
			return s.abortOnStore(sessionID, notifier, err)
		}
		notifier.NotifyStatus(Status{State: TurnStateError, Branch: branch, Detail: transcription.Language})
		result.Outcome = TurnUnrecognized
		return result, nil
	}

	translated, err := s.translator.Translate(ctx, transcription.Text, target)
	if err != nil {
		s.logger.Error("Translation failed",
			zap.String("sessionID", sessionID),
			zap.String("target", string(target)),
			zap.Error(err))
		notifier.NotifyStatus(Status{State: TurnStateError, Branch: branch, Detail: "translation failed: " + err.Error()})
		result.Outcome = TurnAborted
		return result, fmt.Errorf("translate: %w", err)
	}

	messages := entities.NewTurnMessages(branch, transcription.Text, translated)
	if err := s.sessions.AppendTurn(ctx, sessionID, digest, messages...); err != nil {
		return s.abortOnStore(sessionID, notifier, err)
	}

	notifier.NotifyMessages(messages)
	// the remote party does not need to hear their own language read back
	if branch == entities.BranchChineseToEnglish {
		notifier.Speak(entities.NewSpeechCue(translated, target))
	}
	notifier.NotifyStatus(Status{State: TurnStateSuccess, Branch: branch})

	result.Outcome = TurnCompleted
	result.Messages = messages
	return result, nil
}

func (s *InterpreterService) abortOnStore(sessionID string, notifier Notifier, err error) (TurnResult, error) {
	s.logger.Error("Failed to record turn", zap.String("sessionID", sessionID), zap.Error(err))
	detail := "failed to save conversation"
	if errors.Is(err, repositories.ErrSessionExpired) {
		detail = err.Error()
	}
	notifier.NotifyStatus(Status{State: TurnStateError, Detail: detail})
	return TurnResult{Outcome: TurnAborted}, fmt.Errorf("record turn: %w", err)
}

func (s *InterpreterService) lockFor(sessionID string) *sync.Mutex {
	lock, _ := s.locks.LoadOrStore(sessionID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}
