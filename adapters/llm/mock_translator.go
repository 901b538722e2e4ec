package llm

import (
	"context"

	"github.com/satriahrh/jurubahasa/server/domain/entities"
	"github.com/satriahrh/jurubahasa/server/domain/repositories"
)

// MockTranslator is a placeholder implementation for local runs without an API key
type MockTranslator struct{}

// NewMockTranslator creates a new mock translator
func NewMockTranslator() repositories.Translator {
	return &MockTranslator{}
}

// Translate implements repositories.Translator
func (m *MockTranslator) Translate(ctx context.Context, text string, target entities.Language) (string, error) {
	if target == entities.LanguageEnglish {
		return "[EN] " + text, nil
	}
	return "[中文] " + text, nil
}
