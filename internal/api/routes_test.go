package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/jurubahasa/server/adapters"
	"github.com/satriahrh/jurubahasa/server/adapters/llm"
	"github.com/satriahrh/jurubahasa/server/adapters/stt"
	"github.com/satriahrh/jurubahasa/server/internal/auth"
	"github.com/satriahrh/jurubahasa/server/internal/websocket"
	"github.com/satriahrh/jurubahasa/server/usecase"
)

func setupTestAPI(t *testing.T) *echo.Echo {
	t.Helper()
	logger := zap.NewNop()

	interpreter := usecase.NewInterpreterService(
		adapters.NewMemorySessionRepository(),
		stt.NewMockSpeechToText(logger),
		llm.NewMockTranslator(),
		time.Hour,
		logger,
	)
	hub := websocket.NewHub(interpreter, nil, websocket.HubConfig{}, logger)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	e := echo.New()
	InitRoutes(e, hub, interpreter, auth.NewTokenIssuer("test-secret", time.Hour), logger)
	return e
}

func doRequest(e *echo.Echo, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func createSession(t *testing.T, e *echo.Echo) SessionResponse {
	t.Helper()
	rec := doRequest(e, http.MethodPost, "/api/v1/sessions", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp SessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid response: %v", err)
	}
	if resp.SessionID == "" || resp.Token == "" {
		t.Fatalf("Incomplete response %+v", resp)
	}
	return resp
}

func TestHealthAndIndex(t *testing.T) {
	e := setupTestAPI(t)

	rec := doRequest(e, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var health HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("Invalid health response: %v", err)
	}
	if health.Status != "ok" || health.Clients != 0 {
		t.Errorf("Unexpected health %+v", health)
	}

	rec = doRequest(e, http.MethodGet, "/", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "speechSynthesis") {
		t.Errorf("Expected the page, got %d", rec.Code)
	}
}

func TestSessionLifecycle(t *testing.T) {
	e := setupTestAPI(t)
	created := createSession(t, e)

	rec := doRequest(e, http.MethodGet, "/api/v1/sessions/current", created.Token)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var conversation ConversationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &conversation); err != nil {
		t.Fatalf("Invalid response: %v", err)
	}
	if conversation.SessionID != created.SessionID || conversation.Status != "active" {
		t.Errorf("Unexpected conversation %+v", conversation)
	}
	if conversation.Messages == nil || len(conversation.Messages) != 0 {
		t.Errorf("Expected an empty message list, got %v", conversation.Messages)
	}

	rec = doRequest(e, http.MethodDelete, "/api/v1/sessions/current", created.Token)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", rec.Code)
	}

	rec = doRequest(e, http.MethodGet, "/api/v1/sessions/current", created.Token)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 after ending the session, got %d", rec.Code)
	}
}

func TestSessionAuth(t *testing.T) {
	e := setupTestAPI(t)

	rec := doRequest(e, http.MethodGet, "/api/v1/sessions/current", "")
	if rec.Code != http.StatusUnauthorized || !strings.Contains(rec.Body.String(), "missing_token") {
		t.Errorf("Expected missing_token, got %d %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(e, http.MethodGet, "/api/v1/sessions/current", "garbage")
	if rec.Code != http.StatusUnauthorized || !strings.Contains(rec.Body.String(), "invalid_token") {
		t.Errorf("Expected invalid_token, got %d %s", rec.Code, rec.Body.String())
	}

	foreign, _, err := auth.NewTokenIssuer("other-secret", time.Hour).GenerateSessionToken("s-1")
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	rec = doRequest(e, http.MethodGet, "/api/v1/sessions/current", foreign)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for a foreign token, got %d", rec.Code)
	}
}

func TestWebSocketEndToEnd(t *testing.T) {
	e := setupTestAPI(t)
	server := httptest.NewServer(e)
	defer server.Close()

	created := createSession(t, e)
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?token=" + created.Token

	if _, _, err := gorillaws.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/ws", nil); err == nil {
		t.Error("Expected connection without token to be rejected")
	}

	ws, _, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer ws.Close()

	// the mock transcriber reports English for short clips
	if err := ws.WriteMessage(gorillaws.BinaryMessage, []byte("short clip")); err != nil {
		t.Fatalf("Failed to send clip: %v", err)
	}

	for {
		ws.SetReadDeadline(time.Now().Add(3 * time.Second))
		_, payload, err := ws.ReadMessage()
		if err != nil {
			t.Fatalf("Failed waiting for messages: %v", err)
		}
		var event map[string]interface{}
		if err := json.Unmarshal(payload, &event); err != nil {
			t.Fatalf("Invalid event: %v", err)
		}
		if event["type"] == "speak" {
			t.Fatal("English input must not be spoken")
		}
		if event["type"] == "messages" {
			list := event["messages"].([]interface{})
			if len(list) != 2 {
				t.Fatalf("Expected 2 messages, got %d", len(list))
			}
			first := list[0].(map[string]interface{})
			if !strings.HasPrefix(first["content"].(string), "👱 客户(EN): ") {
				t.Errorf("Unexpected first message %v", first["content"])
			}
			break
		}
	}

	rec := doRequest(e, http.MethodGet, "/api/v1/sessions/current", created.Token)
	var conversation ConversationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &conversation); err != nil {
		t.Fatalf("Invalid response: %v", err)
	}
	if len(conversation.Messages) != 2 {
		t.Errorf("Expected 2 stored messages, got %d", len(conversation.Messages))
	}
}
