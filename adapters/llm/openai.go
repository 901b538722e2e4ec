package llm

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/satriahrh/jurubahasa/server/domain/entities"
	"github.com/satriahrh/jurubahasa/server/domain/repositories"
)

const (
	DefaultOpenAIBaseURL     = "https://api.groq.com/openai/v1"
	DefaultOpenAIModel       = "llama-3.1-8b-instant"
	DefaultTranslationTemp   = 0.6
	maxTranslationLogPreview = 50
)

// OpenAIConfig configures the chat-completion translator. Any OpenAI-compatible endpoint works.
// A nil Temperature uses DefaultTranslationTemp.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature *float32
	HTTPClient  *http.Client
}

// OpenAITranslator implements Translator with a single system + user chat completion
type OpenAITranslator struct {
	client      *openai.Client
	model       string
	temperature float32
	logger      *zap.Logger
}

var _ repositories.Translator = (*OpenAITranslator)(nil)

// NewOpenAITranslator creates a new chat-completion translator
func NewOpenAITranslator(config OpenAIConfig, logger *zap.Logger) (*OpenAITranslator, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("translation API key is required")
	}
	temperature := float32(DefaultTranslationTemp)
	if config.Temperature != nil {
		temperature = *config.Temperature
	}
	if temperature < 0 || temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2, got %f", temperature)
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	clientConfig.BaseURL = DefaultOpenAIBaseURL
	if config.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(config.BaseURL, "/")
	}
	if config.HTTPClient != nil {
		clientConfig.HTTPClient = config.HTTPClient
	}

	model := config.Model
	if model == "" {
		model = DefaultOpenAIModel
		logger.Info("Using default translation model", zap.String("model", model))
	}

	return &OpenAITranslator{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       model,
		temperature: temperature,
		logger:      logger,
	}, nil
}

// Translate implements repositories.Translator
func (o *OpenAITranslator) Translate(ctx context.Context, text string, target entities.Language) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemInstruction(target)},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: requestTemperature(o.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", repositories.ErrEmptyTranslation
	}

	translated := strings.TrimSpace(resp.Choices[0].Message.Content)
	if translated == "" {
		return "", repositories.ErrEmptyTranslation
	}

	o.logger.Info("Translation received",
		zap.String("target", string(target)),
		zap.String("preview", preview(translated)))

	return translated, nil
}

// requestTemperature keeps an explicit 0 on the wire; the client omits a zero value
func requestTemperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}

func preview(s string) string {
	r := []rune(s)
	if len(r) > maxTranslationLogPreview {
		return string(r[:maxTranslationLogPreview])
	}
	return s
}
