package stt

import (
	"context"

	"go.uber.org/zap"

	"github.com/satriahrh/jurubahasa/server/domain/entities"
	"github.com/satriahrh/jurubahasa/server/domain/repositories"
)

// MockSpeechToText is a placeholder implementation for speech recognition
type MockSpeechToText struct {
	logger *zap.Logger
}

// NewMockSpeechToText creates a new mock speech-to-text service
func NewMockSpeechToText(logger *zap.Logger) repositories.SpeechToText {
	return &MockSpeechToText{
		logger: logger,
	}
}

// Transcribe implements repositories.SpeechToText.
// Longer recordings come back as Mandarin, shorter ones as English, so both branches can be tried offline.
func (s *MockSpeechToText) Transcribe(ctx context.Context, clip entities.AudioClip) (repositories.Transcription, error) {
	s.logger.Info("Processing mock speech-to-text",
		zap.Int("audioSize", len(clip.Data)),
		zap.String("mimeType", clip.MimeType))

	switch {
	case len(clip.Data) > 20000:
		return repositories.Transcription{Text: "这个价格可以再便宜一点吗？", Language: "chinese"}, nil
	case len(clip.Data) > 5000:
		return repositories.Transcription{Text: "你好吗", Language: "chinese"}, nil
	default:
		return repositories.Transcription{Text: "Can you ship it by Friday?", Language: "english"}, nil
	}
}
