package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Provider names accepted by STT_PROVIDER and TRANSLATOR_PROVIDER
const (
	ProviderWhisper = "whisper"
	ProviderGoogle  = "google"
	ProviderOpenAI  = "openai"
	ProviderGemini  = "gemini"
	ProviderMock    = "mock"
)

// Config stores runtime configuration for the interpreter server.
type Config struct {
	Port       string
	Auth       AuthConfig
	Session    SessionConfig
	STT        STTConfig
	Translator TranslatorConfig
	Mongo      MongoConfig
	ElevenLabs ElevenLabsConfig
}

type AuthConfig struct {
	JWTSecret string
	// set when JWT_SECRET was empty and a random secret was generated
	GeneratedSecret bool
}

type SessionConfig struct {
	TTL          time.Duration
	TurnTimeout  time.Duration
	MaxClipBytes int64
}

type STTConfig struct {
	Provider string
	APIKey   string
	BaseURL  string
	Model    string
}

// TranslatorConfig leaves Model, GeminiModel and Temperature unset when the
// environment does not name them; the adapters own those defaults.
type TranslatorConfig struct {
	Provider     string
	APIKey       string
	BaseURL      string
	Model        string
	Temperature  *float32
	GeminiAPIKey string
	GeminiModel  string
}

type MongoConfig struct {
	URI      string
	Database string
}

type ElevenLabsConfig struct {
	APIKey  string
	VoiceID string
	ModelID string
}

// Enabled reports whether server-side synthesis should be used
func (c ElevenLabsConfig) Enabled() bool {
	return c.APIKey != ""
}

// Load reads a .env file when present, then resolves configuration from
// environment variables and defaults. The result is validated.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	groqKey := firstNonEmpty(os.Getenv("GROQ_API_KEY"), os.Getenv("OPENAI_API_KEY"))
	baseURL := envOrDefault("OPENAI_BASE_URL", "https://api.groq.com/openai/v1")

	cfg := Config{
		Port: envOrDefault("PORT", "8080"),
		Auth: AuthConfig{
			JWTSecret: strings.TrimSpace(os.Getenv("JWT_SECRET")),
		},
		Session: SessionConfig{
			TTL:          envOrDefaultDuration("SESSION_TTL", 24*time.Hour),
			TurnTimeout:  envOrDefaultDuration("TURN_TIMEOUT", 60*time.Second),
			MaxClipBytes: int64(envOrDefaultInt("MAX_CLIP_BYTES", 10<<20)),
		},
		STT: STTConfig{
			Provider: strings.ToLower(envOrDefault("STT_PROVIDER", ProviderWhisper)),
			APIKey:   groqKey,
			BaseURL:  baseURL,
			Model:    strings.TrimSpace(os.Getenv("TRANSCRIPTION_MODEL")),
		},
		Translator: TranslatorConfig{
			Provider:     strings.ToLower(envOrDefault("TRANSLATOR_PROVIDER", ProviderOpenAI)),
			APIKey:       groqKey,
			BaseURL:      baseURL,
			Model:        strings.TrimSpace(os.Getenv("TRANSLATION_MODEL")),
			Temperature:  envFloat32("TRANSLATION_TEMPERATURE"),
			GeminiAPIKey: strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
			GeminiModel:  strings.TrimSpace(os.Getenv("GEMINI_MODEL")),
		},
		Mongo: MongoConfig{
			URI:      strings.TrimSpace(os.Getenv("MONGODB_URI")),
			Database: envOrDefault("MONGODB_DATABASE", "jurubahasa"),
		},
		ElevenLabs: ElevenLabsConfig{
			APIKey:  strings.TrimSpace(os.Getenv("ELEVEN_LABS_API_KEY")),
			VoiceID: strings.TrimSpace(os.Getenv("ELEVEN_LABS_VOICE_ID")),
			ModelID: strings.TrimSpace(os.Getenv("ELEVEN_LABS_MODEL_ID")),
		},
	}

	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = uuid.NewString()
		cfg.Auth.GeneratedSecret = true
	}
	if cfg.Session.TTL <= 0 {
		cfg.Session.TTL = 24 * time.Hour
	}
	if cfg.Session.TurnTimeout <= 0 {
		cfg.Session.TurnTimeout = 60 * time.Second
	}
	if cfg.Session.MaxClipBytes <= 0 {
		cfg.Session.MaxClipBytes = 10 << 20
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate fails fast on combinations that cannot serve a single turn
func (c Config) Validate() error {
	switch c.STT.Provider {
	case ProviderWhisper, ProviderGoogle, ProviderMock:
	default:
		return fmt.Errorf("unknown STT_PROVIDER %q", c.STT.Provider)
	}
	switch c.Translator.Provider {
	case ProviderOpenAI, ProviderGemini, ProviderMock:
	default:
		return fmt.Errorf("unknown TRANSLATOR_PROVIDER %q", c.Translator.Provider)
	}

	if c.STT.Provider == ProviderWhisper && c.STT.APIKey == "" {
		return errors.New("GROQ_API_KEY is required for whisper transcription")
	}
	if c.Translator.Provider == ProviderOpenAI && c.Translator.APIKey == "" {
		return errors.New("GROQ_API_KEY is required for chat translation")
	}
	if c.Translator.Provider == ProviderGemini && c.Translator.GeminiAPIKey == "" {
		return errors.New("GEMINI_API_KEY is required for gemini translation")
	}
	if t := c.Translator.Temperature; t != nil && (*t < 0 || *t > 2) {
		return fmt.Errorf("TRANSLATION_TEMPERATURE must be between 0 and 2, got %v", *t)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// envFloat32 returns nil when key is unset or not a number, so an explicit 0 stays distinguishable
func envFloat32(key string) *float32 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(value, 32)
	if err != nil {
		return nil
	}
	f := float32(parsed)
	return &f
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
