package stt

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/satriahrh/jurubahasa/server/domain/entities"
	"github.com/satriahrh/jurubahasa/server/domain/repositories"
)

const (
	DefaultWhisperBaseURL = "https://api.groq.com/openai/v1"
	DefaultWhisperModel   = "whisper-large-v3"
)

// WhisperConfig configures the Whisper adapter. Any OpenAI-compatible endpoint works.
type WhisperConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// WhisperSpeechToText implements SpeechToText with a hosted Whisper model
type WhisperSpeechToText struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

var _ repositories.SpeechToText = (*WhisperSpeechToText)(nil)

// NewWhisperSpeechToText creates a Whisper transcriber
func NewWhisperSpeechToText(config WhisperConfig, logger *zap.Logger) (*WhisperSpeechToText, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("whisper API key is required")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	clientConfig.BaseURL = DefaultWhisperBaseURL
	if config.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(config.BaseURL, "/")
	}
	if config.HTTPClient != nil {
		clientConfig.HTTPClient = config.HTTPClient
	}

	model := config.Model
	if model == "" {
		model = DefaultWhisperModel
		logger.Info("Using default transcription model", zap.String("model", model))
	}

	return &WhisperSpeechToText{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
		logger: logger,
	}, nil
}

// Transcribe uploads the clip from memory and asks for verbose JSON, which carries the
// detected language. Each upload gets its own filename so concurrent turns never share one.
func (w *WhisperSpeechToText) Transcribe(ctx context.Context, clip entities.AudioClip) (repositories.Transcription, error) {
	filename := uuid.NewString() + "." + clip.Extension()

	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: filename,
		Reader:   bytes.NewReader(clip.Data),
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return repositories.Transcription{}, fmt.Errorf("whisper transcription failed: %w", err)
	}

	w.logger.Info("Transcription received",
		zap.String("language", resp.Language),
		zap.Float64("duration", resp.Duration),
		zap.Int("audioSize", len(clip.Data)))

	return repositories.Transcription{
		Text:     strings.TrimSpace(resp.Text),
		Language: resp.Language,
		Duration: resp.Duration,
	}, nil
}
