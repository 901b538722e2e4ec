package websocket

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/satriahrh/jurubahasa/server/domain/entities"
	"github.com/satriahrh/jurubahasa/server/usecase"
)

func TestMessageValidator_ValidateClip(t *testing.T) {
	validator := NewMessageValidator(16)

	tests := []struct {
		name    string
		message string
		wantErr bool
	}{
		{
			name:    "valid clip with default mime type",
			message: `{"type": "clip", "audio_data": "SGVsbG8gV29ybGQ="}`,
			wantErr: false,
		},
		{
			name:    "valid clip with codecs parameter",
			message: `{"type": "clip", "audio_data": "SGVsbG8=", "mime_type": "audio/webm;codecs=opus"}`,
			wantErr: false,
		},
		{
			name:    "missing audio_data",
			message: `{"type": "clip", "mime_type": "audio/webm"}`,
			wantErr: true,
		},
		{
			name:    "audio_data not base64",
			message: `{"type": "clip", "audio_data": "not base64!"}`,
			wantErr: true,
		},
		{
			name:    "unsupported mime type",
			message: `{"type": "clip", "audio_data": "SGVsbG8=", "mime_type": "video/mp4"}`,
			wantErr: true,
		},
		{
			name:    "clip above limit",
			message: `{"type": "clip", "audio_data": "SGVsbG8gV29ybGQgSGVsbG8gV29ybGQ="}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := validator.ValidateMessage([]byte(tt.message))
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMessageValidator_ClipDecodes(t *testing.T) {
	validator := NewMessageValidator(0)

	result, err := validator.ValidateMessage([]byte(`{"type": "clip", "audio_data": "SGVsbG8=", "mime_type": "audio/ogg"}`))
	if err != nil {
		t.Fatalf("ValidateMessage() error = %v", err)
	}

	clipMsg, ok := result.(*ClipMessage)
	if !ok {
		t.Fatalf("Expected *ClipMessage, got %T", result)
	}

	clip, err := clipMsg.AudioClip()
	if err != nil {
		t.Fatalf("AudioClip() error = %v", err)
	}
	if string(clip.Data) != "Hello" || clip.MimeType != "audio/ogg" {
		t.Errorf("Unexpected clip %q %s", clip.Data, clip.MimeType)
	}
}

func TestMessageValidator_ClipTooLarge(t *testing.T) {
	validator := NewMessageValidator(2)
	_, err := validator.ValidateMessage([]byte(`{"type": "clip", "audio_data": "SGVsbG8="}`))
	if !errors.Is(err, ErrClipTooLarge) {
		t.Errorf("Expected ErrClipTooLarge, got %v", err)
	}
}

func TestMessageValidator_ValidatePing(t *testing.T) {
	validator := NewMessageValidator(0)

	message := `{
		"type": "ping",
		"data": "test-ping"
	}`

	result, err := validator.ValidateMessage([]byte(message))
	if err != nil {
		t.Errorf("ValidateMessage() error = %v", err)
	}

	pingMsg, ok := result.(*PingMessage)
	if !ok {
		t.Fatalf("Expected *PingMessage, got %T", result)
	}

	if pingMsg.Data != "test-ping" {
		t.Errorf("Expected data 'test-ping', got '%s'", pingMsg.Data)
	}
}

func TestMessageValidator_RejectsUnknown(t *testing.T) {
	validator := NewMessageValidator(0)

	for _, message := range []string{`{"type": "listening_start"}`, `{}`, `not json`} {
		if _, err := validator.ValidateMessage([]byte(message)); err == nil {
			t.Errorf("Expected error for %s", message)
		}
	}
}

func TestOutboundMessagesShape(t *testing.T) {
	speak, err := json.Marshal(CreateSpeakMessage(entities.NewSpeechCue("How are you?", entities.LanguageEnglish)))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(speak, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded["type"] != "speak" || decoded["text"] != "How are you?" || decoded["locale"] != "en-US" || decoded["lang"] != "en" {
		t.Errorf("Unexpected speak payload %s", speak)
	}

	status, err := json.Marshal(CreateStatusMessage(usecase.Status{
		State:  usecase.TurnStateSuccess,
		Branch: entities.BranchChineseToEnglish,
	}))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	decoded = nil
	if err := json.Unmarshal(status, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded["type"] != "status" || decoded["state"] != "success" || decoded["branch"] != "cn_to_en" {
		t.Errorf("Unexpected status payload %s", status)
	}

	snapshot := CreateSnapshotMessage(&entities.Session{ID: "s-1"})
	if snapshot.Messages == nil {
		t.Error("Expected snapshot messages to be an empty list, not null")
	}
}
