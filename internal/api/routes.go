package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/jurubahasa/server/domain/entities"
	"github.com/satriahrh/jurubahasa/server/domain/repositories"
	"github.com/satriahrh/jurubahasa/server/internal/auth"
	"github.com/satriahrh/jurubahasa/server/internal/websocket"
	"github.com/satriahrh/jurubahasa/server/web"
)

const sessionIDKey = "session_id"

// SessionService is what the HTTP layer needs from the orchestrator
type SessionService interface {
	StartSession(ctx context.Context) (*entities.Session, error)
	Session(ctx context.Context, sessionID string) (*entities.Session, error)
	EndSession(ctx context.Context, sessionID string) error
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, hub *websocket.Hub, sessions SessionService, tokens *auth.TokenIssuer, logger *zap.Logger) {
	// Single page
	e.GET("/", func(c echo.Context) error {
		return c.HTMLBlob(http.StatusOK, web.IndexHTML)
	})

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, HealthResponse{
			Status:  "ok",
			Service: "jurubahasa-server",
			Clients: hub.ClientCount(),
		})
	})

	requireSession := sessionAuth(tokens, logger)

	// API v1 routes
	v1 := e.Group("/api/v1")

	v1.POST("/sessions", func(c echo.Context) error {
		return startSession(c, sessions, tokens, logger)
	})
	v1.GET("/sessions/current", func(c echo.Context) error {
		return currentSession(c, sessions, logger)
	}, requireSession)
	v1.DELETE("/sessions/current", func(c echo.Context) error {
		return endSession(c, sessions, hub, logger)
	}, requireSession)

	// WebSocket endpoint with JWT validation
	e.GET("/ws", func(c echo.Context) error {
		sessionID := c.Get(sessionIDKey).(string)
		return websocket.HandleWebSocketWithAuth(hub, c, sessionID, logger)
	}, requireSession)
}

func startSession(c echo.Context, sessions SessionService, tokens *auth.TokenIssuer, logger *zap.Logger) error {
	session, err := sessions.StartSession(c.Request().Context())
	if err != nil {
		logger.Error("Failed to start session", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "session_creation_failed",
			Message: "Failed to start a conversation",
		})
	}

	token, expiresAt, err := tokens.GenerateSessionToken(session.ID)
	if err != nil {
		logger.Error("Failed to generate session token",
			zap.String("sessionID", session.ID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate session token",
		})
	}

	return c.JSON(http.StatusCreated, SessionResponse{
		SessionID: session.ID,
		Token:     token,
		ExpiresAt: expiresAt,
	})
}

func currentSession(c echo.Context, sessions SessionService, logger *zap.Logger) error {
	sessionID := c.Get(sessionIDKey).(string)

	session, err := sessions.Session(c.Request().Context(), sessionID)
	if err != nil {
		return sessionError(c, sessionID, err, logger)
	}

	messages := session.Messages
	if messages == nil {
		messages = []entities.Message{}
	}
	return c.JSON(http.StatusOK, ConversationResponse{
		SessionID: session.ID,
		Status:    session.Status,
		CreatedAt: session.CreatedAt,
		ExpiresAt: session.ExpiresAt,
		Messages:  messages,
	})
}

func endSession(c echo.Context, sessions SessionService, hub *websocket.Hub, logger *zap.Logger) error {
	sessionID := c.Get(sessionIDKey).(string)

	if err := sessions.EndSession(c.Request().Context(), sessionID); err != nil {
		return sessionError(c, sessionID, err, logger)
	}
	hub.Disconnect(sessionID)

	return c.NoContent(http.StatusNoContent)
}

func sessionError(c echo.Context, sessionID string, err error, logger *zap.Logger) error {
	if errors.Is(err, repositories.ErrSessionNotFound) || errors.Is(err, repositories.ErrSessionExpired) {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "session_unavailable",
			Message: err.Error(),
		})
	}

	logger.Error("Session lookup failed", zap.String("sessionID", sessionID), zap.Error(err))
	return c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "Failed to load conversation",
	})
}

// sessionAuth accepts a Bearer token, or a token query parameter since browsers
// cannot set headers on WebSocket upgrades
func sessionAuth(tokens *auth.TokenIssuer, logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := c.QueryParam("token")
			authHeader := c.Request().Header.Get("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				token = strings.TrimPrefix(authHeader, "Bearer ")
			}

			if token == "" {
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "missing_token",
					Message: "Session token is required",
				})
			}

			claims, err := tokens.ValidateToken(token)
			if err != nil {
				logger.Warn("Request rejected: invalid token", zap.Error(err))
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "invalid_token",
					Message: "Invalid or expired session token",
				})
			}

			c.Set(sessionIDKey, claims.SessionID)
			return next(c)
		}
	}
}
