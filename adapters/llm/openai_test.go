package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/jurubahasa/server/domain/entities"
	"github.com/satriahrh/jurubahasa/server/domain/repositories"
)

type chatRequest struct {
	Model       string  `json:"model"`
	Temperature *float32 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func chatServer(t *testing.T, reply string, captured *chatRequest) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(captured); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"choices": []map[string]interface{}{
				{"index": 0, "message": map[string]string{"role": "assistant", "content": reply}},
			},
		})
	}))
}

func TestNewOpenAITranslator(t *testing.T) {
	logger := zaptest.NewLogger(t)

	if _, err := NewOpenAITranslator(OpenAIConfig{}, logger); err == nil {
		t.Error("Expected error when API key is not set")
	}
	if _, err := NewOpenAITranslator(OpenAIConfig{APIKey: "k", Temperature: float32Ptr(3)}, logger); err == nil {
		t.Error("Expected error for out-of-range temperature")
	}

	tr, err := NewOpenAITranslator(OpenAIConfig{APIKey: "k"}, logger)
	if err != nil {
		t.Fatalf("Failed to create translator: %v", err)
	}
	if tr.model != DefaultOpenAIModel || tr.temperature != DefaultTranslationTemp {
		t.Errorf("Unexpected defaults: %s %f", tr.model, tr.temperature)
	}
}

func TestOpenAITranslator_Translate(t *testing.T) {
	var captured chatRequest
	server := chatServer(t, " How are you? ", &captured)
	defer server.Close()

	tr, err := NewOpenAITranslator(OpenAIConfig{APIKey: "k", BaseURL: server.URL}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create translator: %v", err)
	}

	got, err := tr.Translate(context.Background(), "你好吗", entities.LanguageEnglish)
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if got != "How are you?" {
		t.Errorf("Expected trimmed translation, got %q", got)
	}

	if captured.Model != DefaultOpenAIModel {
		t.Errorf("Expected model %s, got %s", DefaultOpenAIModel, captured.Model)
	}
	if len(captured.Messages) != 2 {
		t.Fatalf("Expected system + user messages, got %d", len(captured.Messages))
	}
	if captured.Messages[0].Role != "system" || captured.Messages[0].Content != SystemInstruction(entities.LanguageEnglish) {
		t.Errorf("Unexpected system message %+v", captured.Messages[0])
	}
	if captured.Messages[1].Role != "user" || captured.Messages[1].Content != "你好吗" {
		t.Errorf("Unexpected user message %+v", captured.Messages[1])
	}
}

func TestOpenAITranslator_ExplicitZeroTemperature(t *testing.T) {
	var captured chatRequest
	server := chatServer(t, "How are you?", &captured)
	defer server.Close()

	tr, err := NewOpenAITranslator(OpenAIConfig{APIKey: "k", BaseURL: server.URL, Temperature: float32Ptr(0)}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create translator: %v", err)
	}
	if tr.temperature != 0 {
		t.Fatalf("Expected explicit zero temperature to be kept, got %f", tr.temperature)
	}

	if _, err := tr.Translate(context.Background(), "你好吗", entities.LanguageEnglish); err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if captured.Temperature == nil || *captured.Temperature > 0.001 {
		t.Errorf("Expected a near-zero temperature on the wire, got %v", captured.Temperature)
	}
}

func TestOpenAITranslator_EmptyReply(t *testing.T) {
	var captured chatRequest
	server := chatServer(t, "   ", &captured)
	defer server.Close()

	tr, _ := NewOpenAITranslator(OpenAIConfig{APIKey: "k", BaseURL: server.URL}, zaptest.NewLogger(t))

	if _, err := tr.Translate(context.Background(), "Hello", entities.LanguageChinese); !errors.Is(err, repositories.ErrEmptyTranslation) {
		t.Errorf("Expected ErrEmptyTranslation, got %v", err)
	}
	if captured.Messages[0].Content != SystemInstruction(entities.LanguageChinese) {
		t.Error("Expected the English-to-Chinese instruction")
	}
}

func TestOpenAITranslator_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit"}}`))
	}))
	defer server.Close()

	tr, _ := NewOpenAITranslator(OpenAIConfig{APIKey: "k", BaseURL: server.URL}, zaptest.NewLogger(t))
	if _, err := tr.Translate(context.Background(), "Hello", entities.LanguageChinese); err == nil {
		t.Error("Expected error for rate limited response")
	}
}

func TestSystemInstruction(t *testing.T) {
	en := SystemInstruction(entities.LanguageEnglish)
	zh := SystemInstruction(entities.LanguageChinese)

	if en == zh {
		t.Fatal("Expected distinct instructions per direction")
	}
	if !strings.Contains(en, "Do not answer") || !strings.Contains(en, "Output only the English translation") {
		t.Error("Chinese-to-English instruction lost a rule")
	}
	if !strings.Contains(zh, "Simplified Chinese") || !strings.Contains(zh, "Never use Traditional Chinese") {
		t.Error("English-to-Chinese instruction lost a rule")
	}
}

func float32Ptr(v float32) *float32 {
	return &v
}
