package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/satriahrh/jurubahasa/server/adapters"
	"github.com/satriahrh/jurubahasa/server/adapters/llm"
	"github.com/satriahrh/jurubahasa/server/adapters/mongo"
	"github.com/satriahrh/jurubahasa/server/adapters/stt"
	"github.com/satriahrh/jurubahasa/server/adapters/tts"
	"github.com/satriahrh/jurubahasa/server/domain/repositories"
	"github.com/satriahrh/jurubahasa/server/internal/api"
	"github.com/satriahrh/jurubahasa/server/internal/auth"
	"github.com/satriahrh/jurubahasa/server/internal/config"
	"github.com/satriahrh/jurubahasa/server/internal/websocket"
	"github.com/satriahrh/jurubahasa/server/usecase"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}
	if cfg.Auth.GeneratedSecret {
		logger.Warn("JWT_SECRET not set, using a random secret; sessions will not survive a restart")
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Initialize adapters
	sessionRepo, closeRepo := buildSessionRepository(ctx, cfg, logger)
	defer closeRepo()

	speechToText, closeSTT := buildSpeechToText(ctx, cfg, logger)
	defer closeSTT()

	translator := buildTranslator(ctx, cfg, logger)

	var textToSpeech repositories.TextToSpeech
	if cfg.ElevenLabs.Enabled() {
		elevenLabs, err := tts.NewElevenLabsTTS(tts.ElevenLabsConfig{
			APIKey:  cfg.ElevenLabs.APIKey,
			VoiceID: cfg.ElevenLabs.VoiceID,
			ModelID: cfg.ElevenLabs.ModelID,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to initialize ElevenLabs", zap.Error(err))
		}
		textToSpeech = elevenLabs
	}

	// Initialize usecase services
	interpreter := usecase.NewInterpreterService(sessionRepo, speechToText, translator, cfg.Session.TTL, logger)

	// Initialize WebSocket hub
	hub := websocket.NewHub(interpreter, textToSpeech, websocket.HubConfig{
		TurnTimeout:  cfg.Session.TurnTimeout,
		MaxClipBytes: cfg.Session.MaxClipBytes,
	}, logger)
	go hub.Run(ctx)

	sweeper := websocket.NewSessionSweeper(sessionRepo, hub, interpreter, websocket.DefaultCleanupInterval, logger)
	go sweeper.Run(ctx)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Initialize API routes
	api.InitRoutes(e, hub, interpreter, auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Session.TTL), logger)

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Interpreter server started",
		zap.String("port", cfg.Port),
		zap.String("sttProvider", cfg.STT.Provider),
		zap.String("translatorProvider", cfg.Translator.Provider),
		zap.Bool("serverSpeech", textToSpeech != nil))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stop()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func buildSessionRepository(ctx context.Context, cfg config.Config, logger *zap.Logger) (repositories.SessionRepository, func()) {
	if cfg.Mongo.URI == "" {
		logger.Info("Using in-memory conversation storage")
		return adapters.NewMemorySessionRepository(), func() {}
	}

	client, err := mongo.Connect(ctx, mongo.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}

	repo := mongo.NewSessionRepository(client.Database(), logger)
	if err := repo.EnsureIndexes(ctx); err != nil {
		logger.Warn("Failed to ensure session indexes", zap.Error(err))
	}

	return repo, func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		client.Close(closeCtx)
	}
}

func buildSpeechToText(ctx context.Context, cfg config.Config, logger *zap.Logger) (repositories.SpeechToText, func()) {
	switch cfg.STT.Provider {
	case config.ProviderGoogle:
		google, err := stt.NewGoogleSpeechToText(ctx, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Google Speech-to-Text", zap.Error(err))
		}
		return google, func() { google.Close() }

	case config.ProviderMock:
		logger.Warn("Using mock speech-to-text")
		return stt.NewMockSpeechToText(logger), func() {}

	default:
		whisper, err := stt.NewWhisperSpeechToText(stt.WhisperConfig{
			APIKey:  cfg.STT.APIKey,
			BaseURL: cfg.STT.BaseURL,
			Model:   cfg.STT.Model,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Whisper transcription", zap.Error(err))
		}
		return whisper, func() {}
	}
}

func buildTranslator(ctx context.Context, cfg config.Config, logger *zap.Logger) repositories.Translator {
	switch cfg.Translator.Provider {
	case config.ProviderGemini:
		gemini, err := llm.NewGeminiTranslator(ctx, llm.GeminiConfig{
			APIKey:      cfg.Translator.GeminiAPIKey,
			Model:       cfg.Translator.GeminiModel,
			Temperature: cfg.Translator.Temperature,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Gemini translator", zap.Error(err))
		}
		return gemini

	case config.ProviderMock:
		logger.Warn("Using mock translator")
		return llm.NewMockTranslator()

	default:
		translator, err := llm.NewOpenAITranslator(llm.OpenAIConfig{
			APIKey:      cfg.Translator.APIKey,
			BaseURL:     cfg.Translator.BaseURL,
			Model:       cfg.Translator.Model,
			Temperature: cfg.Translator.Temperature,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to initialize translator", zap.Error(err))
		}
		return translator
	}
}
