package websocket

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/satriahrh/jurubahasa/server/domain/entities"
	"github.com/satriahrh/jurubahasa/server/usecase"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Supported message types
const (
	// page -> server
	MessageTypeClip MessageType = "clip"
	MessageTypePing MessageType = "ping"

	// server -> page
	MessageTypeSnapshot      MessageType = "snapshot"
	MessageTypeStatus        MessageType = "status"
	MessageTypeMessages      MessageType = "messages"
	MessageTypeSpeak         MessageType = "speak"
	MessageTypeSpeakingStart MessageType = "speaking_start"
	MessageTypeSpeakingEnd   MessageType = "speaking_end"
	MessageTypePong          MessageType = "pong"
	MessageTypeError         MessageType = "error"
)

// Error codes carried by ErrorMessage
const (
	ErrorCodeInvalidMessage = "invalid_message"
	ErrorCodeInvalidClip    = "invalid_clip"
	ErrorCodeClipTooLarge   = "clip_too_large"
	ErrorCodeBusy           = "busy"
	ErrorCodeSession        = "session_unavailable"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp"`
	MessageID string      `json:"message_id,omitempty"`
}

func newBase(t MessageType) BaseMessage {
	return BaseMessage{Type: t, Timestamp: time.Now().Format(time.RFC3339)}
}

// ClipMessage carries one whole recording when the page cannot send binary frames
type ClipMessage struct {
	BaseMessage
	AudioData string `json:"audio_data"` // base64 encoded
	MimeType  string `json:"mime_type,omitempty"`

	decoded []byte
}

// AudioClip returns the decoded recording
func (m *ClipMessage) AudioClip() (entities.AudioClip, error) {
	return entities.NewAudioClip(m.decoded, m.MimeType)
}

// PingMessage represents a ping message for connection health check
type PingMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// PongMessage represents a pong response
type PongMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// SnapshotMessage is sent once after connecting so the page can render the whole log
type SnapshotMessage struct {
	BaseMessage
	SessionID string             `json:"session_id"`
	ExpiresAt time.Time          `json:"expires_at"`
	Messages  []entities.Message `json:"messages"`
}

// StatusMessage drives the status banner
type StatusMessage struct {
	BaseMessage
	usecase.Status
}

// MessagesMessage carries messages appended by a completed turn
type MessagesMessage struct {
	BaseMessage
	Messages []entities.Message `json:"messages"`
}

// SpeakMessage asks the page to speak with the browser's speech synthesis
type SpeakMessage struct {
	BaseMessage
	entities.SpeechCue
}

// SpeakingStartMessage announces binary audio frames that follow
type SpeakingStartMessage struct {
	BaseMessage
	Text        string `json:"text"`
	Locale      string `json:"locale"`
	ContentType string `json:"content_type"`
}

// SpeakingEndMessage closes a run of binary audio frames
type SpeakingEndMessage struct {
	BaseMessage
}

// MessageValidator provides validation for WebSocket messages
type MessageValidator struct {
	maxClipBytes int64
}

// NewMessageValidator creates a new message validator. A non-positive limit disables the size check.
func NewMessageValidator(maxClipBytes int64) *MessageValidator {
	return &MessageValidator{maxClipBytes: maxClipBytes}
}

// ErrClipTooLarge is returned for recordings above the configured limit
var ErrClipTooLarge = errors.New("clip exceeds size limit")

// ValidateMessage validates an incoming message
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (interface{}, error) {
	// First parse as base message to get type
	var base BaseMessage
	if err := json.Unmarshal(messageBytes, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	switch base.Type {
	case MessageTypeClip:
		var msg ClipMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid clip message: %w", err)
		}
		if err := v.validateClip(&msg); err != nil {
			return nil, err
		}
		return &msg, nil

	case MessageTypePing:
		var msg PingMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid ping message: %w", err)
		}
		return &msg, nil

	case "":
		return nil, fmt.Errorf("message type is required")

	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}
}

// validateClip validates clip message fields and decodes the audio
func (v *MessageValidator) validateClip(msg *ClipMessage) error {
	if msg.AudioData == "" {
		return fmt.Errorf("audio_data is required")
	}
	decoded, err := base64.StdEncoding.DecodeString(msg.AudioData)
	if err != nil {
		return fmt.Errorf("audio_data must be base64: %w", err)
	}
	if err := v.CheckSize(len(decoded)); err != nil {
		return err
	}
	msg.decoded = decoded

	if _, err := msg.AudioClip(); err != nil {
		return fmt.Errorf("invalid clip: %w", err)
	}
	return nil
}

// CheckSize enforces the clip size limit
func (v *MessageValidator) CheckSize(n int) error {
	if v.maxClipBytes > 0 && int64(n) > v.maxClipBytes {
		return fmt.Errorf("%w: %d > %d bytes", ErrClipTooLarge, n, v.maxClipBytes)
	}
	return nil
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(code, message, details string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: newBase(MessageTypeError),
		Code:        code,
		Message:     message,
		Details:     details,
	}
}

// CreatePongMessage creates a pong response message
func CreatePongMessage(data string) *PongMessage {
	return &PongMessage{
		BaseMessage: newBase(MessageTypePong),
		Data:        data,
	}
}

// CreateSnapshotMessage creates the initial conversation message
func CreateSnapshotMessage(session *entities.Session) *SnapshotMessage {
	messages := session.Messages
	if messages == nil {
		messages = []entities.Message{}
	}
	return &SnapshotMessage{
		BaseMessage: newBase(MessageTypeSnapshot),
		SessionID:   session.ID,
		ExpiresAt:   session.ExpiresAt,
		Messages:    messages,
	}
}

// CreateStatusMessage creates a status banner update
func CreateStatusMessage(status usecase.Status) *StatusMessage {
	return &StatusMessage{
		BaseMessage: newBase(MessageTypeStatus),
		Status:      status,
	}
}

// CreateMessagesMessage creates a log append notification
func CreateMessagesMessage(messages []entities.Message) *MessagesMessage {
	return &MessagesMessage{
		BaseMessage: newBase(MessageTypeMessages),
		Messages:    messages,
	}
}

// CreateSpeakMessage creates a browser speech cue
func CreateSpeakMessage(cue entities.SpeechCue) *SpeakMessage {
	return &SpeakMessage{
		BaseMessage: newBase(MessageTypeSpeak),
		SpeechCue:   cue,
	}
}
