package entities

import (
	"time"

	"github.com/google/uuid"
)

// MessageRole represents the role of a message sender
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// Speaker tells who produced the utterance behind a message
type Speaker string

const (
	SpeakerLocal       Speaker = "local"
	SpeakerRemote      Speaker = "remote"
	SpeakerInterpreter Speaker = "interpreter"
)

// Message is one entry of the conversation log. Content is already tagged for display.
type Message struct {
	ID        string      `json:"id" bson:"id"`
	Role      MessageRole `json:"role" bson:"role"`
	Speaker   Speaker     `json:"speaker" bson:"speaker"`
	Content   string      `json:"content" bson:"content"`
	Timestamp time.Time   `json:"timestamp" bson:"timestamp"`
}

// Display prefixes per branch
const (
	prefixLocalChinese     = "我(CN): "
	prefixInterpretEnglish = "AI(EN): "
	prefixRemoteEnglish    = "👱 客户(EN): "
	prefixInterpretChinese = "👀 翻译(CN): "
)

// NewTurnMessages builds the user/assistant pair appended by a completed turn.
// It returns nil for BranchUnrecognized.
func NewTurnMessages(branch Branch, original, translated string) []Message {
	now := time.Now()
	switch branch {
	case BranchChineseToEnglish:
		return []Message{
			newMessage(MessageRoleUser, SpeakerLocal, prefixLocalChinese+original, now),
			newMessage(MessageRoleAssistant, SpeakerInterpreter, prefixInterpretEnglish+translated, now),
		}
	case BranchEnglishToChinese:
		return []Message{
			newMessage(MessageRoleUser, SpeakerRemote, prefixRemoteEnglish+original, now),
			newMessage(MessageRoleAssistant, SpeakerInterpreter, prefixInterpretChinese+translated, now),
		}
	default:
		return nil
	}
}

func newMessage(role MessageRole, speaker Speaker, content string, at time.Time) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Speaker:   speaker,
		Content:   content,
		Timestamp: at,
	}
}
