package llm

import (
	"context"
	"testing"

	"go.uber.org/zap/zaptest"
	"google.golang.org/genai"
)

func TestValidateGeminiConfig(t *testing.T) {
	if err := ValidateGeminiConfig(GeminiConfig{}); err == nil {
		t.Error("Expected error when API key is missing")
	}
	if err := ValidateGeminiConfig(GeminiConfig{APIKey: "k", Temperature: genai.Ptr[float32](1.5)}); err == nil {
		t.Error("Expected error for temperature above 1")
	}
	if err := ValidateGeminiConfig(GeminiConfig{APIKey: "k", Temperature: genai.Ptr[float32](0.6)}); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}
}

func TestNewGeminiTranslator_Defaults(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	tr, err := NewGeminiTranslator(ctx, GeminiConfig{APIKey: "k"}, logger)
	if err != nil {
		t.Fatalf("Failed to create translator: %v", err)
	}
	if tr.model != DefaultGeminiModel || tr.temperature != DefaultTranslationTemp {
		t.Errorf("Unexpected defaults: %s %f", tr.model, tr.temperature)
	}

	tr, err = NewGeminiTranslator(ctx, GeminiConfig{APIKey: "k", Temperature: genai.Ptr[float32](0)}, logger)
	if err != nil {
		t.Fatalf("Failed to create translator: %v", err)
	}
	if tr.temperature != 0 {
		t.Errorf("Expected explicit zero temperature to be kept, got %f", tr.temperature)
	}
}

func TestResponseText(t *testing.T) {
	if got := responseText(nil); got != "" {
		t.Errorf("Expected empty text for nil response, got %q", got)
	}
	if got := responseText(&genai.GenerateContentResponse{}); got != "" {
		t.Errorf("Expected empty text without candidates, got %q", got)
	}

	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{
				Parts: []*genai.Part{{Text: "How "}, {Text: "are you? "}},
			}},
		},
	}
	if got := responseText(resp); got != "How are you?" {
		t.Errorf("Expected joined parts, got %q", got)
	}
}
