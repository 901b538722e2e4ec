package repositories

import (
	"context"
	"errors"

	"github.com/satriahrh/jurubahasa/server/domain/entities"
)

// ErrEmptyTranscription is returned when the recognizer heard no speech
var ErrEmptyTranscription = errors.New("no speech detected in audio")

// Transcription is the recognized text plus the recognizer's best-guess language label
type Transcription struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration,omitempty"`
}

// SpeechToText abstracts speech recognition services
type SpeechToText interface {
	// Transcribe recognizes one short clip and detects its language
	Transcribe(ctx context.Context, clip entities.AudioClip) (Transcription, error)
}
