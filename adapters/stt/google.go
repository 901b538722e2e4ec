package stt

import (
	"context"
	"fmt"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/satriahrh/jurubahasa/server/domain/entities"
	"github.com/satriahrh/jurubahasa/server/domain/repositories"
)

const (
	googlePrimaryLanguage   = "cmn-Hans-CN"
	googleAlternateLanguage = "en-US"
)

// GoogleSpeechToText implements SpeechToText for Google Cloud.
// It recognizes Mandarin with English as the alternative and reports which one matched.
type GoogleSpeechToText struct {
	client *speech.Client
	logger *zap.Logger
}

var _ repositories.SpeechToText = (*GoogleSpeechToText)(nil)

// NewGoogleSpeechToText creates the client using application default credentials
func NewGoogleSpeechToText(ctx context.Context, logger *zap.Logger) (*GoogleSpeechToText, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}
	return &GoogleSpeechToText{client: client, logger: logger}, nil
}

// Transcribe converts one clip to text using the non-streaming Recognize call
func (g *GoogleSpeechToText) Transcribe(ctx context.Context, clip entities.AudioClip) (repositories.Transcription, error) {
	config, err := recognitionConfig(clip.MimeType)
	if err != nil {
		return repositories.Transcription{}, err
	}

	resp, err := g.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: config,
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: clip.Data},
		},
	})
	if err != nil {
		return repositories.Transcription{}, fmt.Errorf("google recognize failed: %w", err)
	}

	var text strings.Builder
	var languageCode string
	for _, result := range resp.Results {
		if len(result.Alternatives) == 0 {
			continue
		}
		if languageCode == "" {
			languageCode = result.LanguageCode
		}
		text.WriteString(result.Alternatives[0].Transcript)
	}

	g.logger.Info("Transcription received",
		zap.String("languageCode", languageCode),
		zap.Int("results", len(resp.Results)))

	return repositories.Transcription{
		Text:     strings.TrimSpace(text.String()),
		Language: languageLabel(languageCode),
	}, nil
}

// Close releases the gRPC connection
func (g *GoogleSpeechToText) Close() error {
	return g.client.Close()
}

func recognitionConfig(mimeType string) (*speechpb.RecognitionConfig, error) {
	encoding, err := getAudioEncoding(mimeType)
	if err != nil {
		return nil, err
	}

	config := &speechpb.RecognitionConfig{
		Encoding:                   encoding,
		LanguageCode:               googlePrimaryLanguage,
		AlternativeLanguageCodes:   []string{googleAlternateLanguage},
		EnableAutomaticPunctuation: true,
	}
	// Opus in a browser recording is always 48kHz; WAV carries its rate in the header
	if encoding == speechpb.RecognitionConfig_WEBM_OPUS || encoding == speechpb.RecognitionConfig_OGG_OPUS {
		config.SampleRateHertz = 48000
	}
	return config, nil
}

// getAudioEncoding converts a clip MIME type to the Google Speech API enum
func getAudioEncoding(mimeType string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch mimeType {
	case "audio/wav":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "audio/ogg":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "audio/webm":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("%w: %s", entities.ErrUnsupportedMimeType, mimeType)
	}
}

// languageLabel maps a BCP-47 code to the free-text labels Whisper reports
func languageLabel(code string) string {
	c := strings.ToLower(code)
	switch {
	case strings.HasPrefix(c, "cmn"), strings.HasPrefix(c, "zh"), strings.HasPrefix(c, "yue"):
		return "chinese"
	case strings.HasPrefix(c, "en"):
		return "english"
	default:
		return c
	}
}
