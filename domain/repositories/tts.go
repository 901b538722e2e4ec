package repositories

import "context"

type TextToSpeech interface {
	ConvertTextToSpeech(ctx context.Context, text string, locale string) (<-chan []byte, error)
}
