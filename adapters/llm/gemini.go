package llm

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/satriahrh/jurubahasa/server/domain/entities"
	"github.com/satriahrh/jurubahasa/server/domain/repositories"
)

// DefaultGeminiModel is used when GeminiConfig.Model is empty
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiConfig configures the Gemini translator. A nil Temperature uses DefaultTranslationTemp.
type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature *float32
}

// ValidateGeminiConfig validates the GeminiConfig
func ValidateGeminiConfig(config GeminiConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("Google AI API key is required")
	}

	if t := config.Temperature; t != nil && (*t < 0 || *t > 1) {
		return fmt.Errorf("temperature must be between 0 and 1, got %f", *t)
	}

	return nil
}

// GeminiTranslator implements Translator using Google's Gemini API
type GeminiTranslator struct {
	client      *genai.Client
	logger      *zap.Logger
	model       string
	temperature float32
}

var _ repositories.Translator = (*GeminiTranslator)(nil)

// NewGeminiTranslator creates a new Gemini translator
func NewGeminiTranslator(ctx context.Context, config GeminiConfig, logger *zap.Logger) (*GeminiTranslator, error) {
	if err := ValidateGeminiConfig(config); err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := config.Model
	if model == "" {
		model = DefaultGeminiModel
		logger.Info("Using default model", zap.String("model", model))
	}

	temperature := float32(DefaultTranslationTemp)
	if config.Temperature != nil {
		temperature = *config.Temperature
	}

	return &GeminiTranslator{
		client:      client,
		logger:      logger,
		model:       model,
		temperature: temperature,
	}, nil
}

// Translate implements repositories.Translator. The fixed instruction travels as the
// system instruction and the text is the only user turn.
func (g *GeminiTranslator) Translate(ctx context.Context, text string, target entities.Language) (string, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(SystemInstruction(target), genai.RoleUser),
		Temperature:       genai.Ptr(g.temperature),
	}
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}

	response, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini generate content failed: %w", err)
	}

	translated := responseText(response)
	if translated == "" {
		g.logger.Warn("Empty response from Gemini", zap.String("target", string(target)))
		return "", repositories.ErrEmptyTranslation
	}

	g.logger.Info("Translation received",
		zap.String("target", string(target)),
		zap.String("preview", preview(translated)))

	return translated, nil
}

// responseText joins the text parts of the first candidate
func responseText(response *genai.GenerateContentResponse) string {
	if response == nil || len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return ""
	}

	var text strings.Builder
	for _, part := range response.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			text.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(text.String())
}
