package repositories

import (
	"context"
	"errors"

	"github.com/satriahrh/jurubahasa/server/domain/entities"
)

// ErrEmptyTranslation is returned when the model answered with nothing
var ErrEmptyTranslation = errors.New("translation is empty")

// Translator turns text into the target language and nothing else
type Translator interface {
	Translate(ctx context.Context, text string, target entities.Language) (string, error)
}
