package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/jurubahasa/server/domain/entities"
	"github.com/satriahrh/jurubahasa/server/domain/repositories"
	"github.com/satriahrh/jurubahasa/server/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Clips waiting behind the one being processed.
	clipQueueSize = 4

	// Upper bound for one synthesized utterance.
	speechTimeout = 60 * time.Second

	synthesizedContentType = "audio/mpeg"
)

var upgrader = websocket.Upgrader{
	// the page is served from the same origin; tokens gate access
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Interpreter is the part of the orchestrator the socket needs
type Interpreter interface {
	Session(ctx context.Context, sessionID string) (*entities.Session, error)
	HandleClip(ctx context.Context, sessionID string, clip entities.AudioClip, notifier usecase.Notifier) (usecase.TurnResult, error)
}

// HubConfig tunes per-connection limits
type HubConfig struct {
	TurnTimeout  time.Duration
	MaxClipBytes int64
}

// Hub maintains the set of active clients, one per session.
type Hub struct {
	// Registered clients.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Closed when Run returns.
	stopped chan struct{}

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	interpreter Interpreter
	// optional; nil means the page speaks with its own synthesizer
	ttsRepo   repositories.TextToSpeech
	validator *MessageValidator
	config    HubConfig

	logger *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(
	interpreter Interpreter,
	ttsRepo repositories.TextToSpeech,
	config HubConfig,
	logger *zap.Logger,
) *Hub {
	if config.TurnTimeout <= 0 {
		config.TurnTimeout = 60 * time.Second
	}
	return &Hub{
		clients:     make(map[string]*Client),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		stopped:     make(chan struct{}),
		interpreter: interpreter,
		ttsRepo:     ttsRepo,
		validator:   NewMessageValidator(config.MaxClipBytes),
		config:      config,
		logger:      logger,
	}
}

// Run starts the hub's main loop and returns when ctx is done
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			// a newer tab for the same session takes over
			if previous, ok := h.clients[client.sessionID]; ok {
				previous.close()
			}
			h.clients[client.sessionID] = client
			h.mu.Unlock()
			h.logger.Info("Client registered", zap.String("sessionID", client.sessionID))

		case client := <-h.unregister:
			h.mu.Lock()
			if current, ok := h.clients[client.sessionID]; ok && current == client {
				delete(h.clients, client.sessionID)
			}
			h.mu.Unlock()
			client.close()
			h.logger.Info("Client unregistered", zap.String("sessionID", client.sessionID))

		case <-ctx.Done():
			h.mu.Lock()
			for id, client := range h.clients {
				client.close()
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return
		}
	}
}

// ClientCount returns the number of connected pages
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ConnectedSessions lists the sessions that currently have a page attached
func (h *Hub) ConnectedSessions() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	return ids
}

// Disconnect closes the connection bound to a session, if any
func (h *Hub) Disconnect(sessionID string) {
	h.mu.RLock()
	client, ok := h.clients[sessionID]
	h.mu.RUnlock()
	if ok {
		client.close()
	}
}

type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Client is a middleman between the websocket connection and the hub.
// It implements usecase.Notifier for the turns it submits.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	// Recorded clips waiting for their turn.
	clips chan entities.AudioClip

	sessionID string
	// MIME type of binary clip frames, from the ?mime= query parameter
	clipMimeType string

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	speechMu     sync.Mutex
	cancelSpeech context.CancelFunc

	logger *zap.Logger
}

var _ usecase.Notifier = (*Client)(nil)

// HandleWebSocketWithAuth handles websocket requests for an already authenticated session
func HandleWebSocketWithAuth(hub *Hub, c echo.Context, sessionID string, logger *zap.Logger) error {
	session, err := hub.interpreter.Session(c.Request().Context(), sessionID)
	if err != nil {
		logger.Warn("Refusing WebSocket for unusable session", zap.String("sessionID", sessionID), zap.Error(err))
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrSessionNotFound) || errors.Is(err, repositories.ErrSessionExpired) {
			status = http.StatusUnauthorized
		}
		return echo.NewHTTPError(status, err.Error())
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		hub:          hub,
		conn:         conn,
		send:         make(chan WriteData, 256),
		clips:        make(chan entities.AudioClip, clipQueueSize),
		sessionID:    sessionID,
		clipMimeType: c.QueryParam("mime"),
		ctx:          ctx,
		cancel:       cancel,
		logger:       logger.With(zap.String("sessionID", sessionID)),
	}

	select {
	case client.hub.register <- client:
	case <-client.hub.stopped:
		cancel()
		conn.Close()
		return errors.New("hub is not running")
	}

	client.sendJSON(CreateSnapshotMessage(session))
	client.NotifyStatus(usecase.Status{State: usecase.TurnStateIdle})

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()
	go client.turnLoop()

	return nil
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.cancel()
	})
}

// readPump pumps messages from the websocket connection to the turn loop.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.stopped:
		}
		c.conn.Close()
	}()

	if limit := c.hub.config.MaxClipBytes; limit > 0 {
		// base64 inflates JSON clips by a third
		c.conn.SetReadLimit(limit*4/3 + 4096)
	}
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		switch messageType {
		case websocket.TextMessage:
			c.processMessage(message)
		case websocket.BinaryMessage:
			c.processBinaryClip(message)
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps messages from the client to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				c.close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}

		case <-c.ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// turnLoop runs queued clips one at a time
func (c *Client) turnLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case clip := <-c.clips:
			c.runTurn(clip)
		}
	}
}

func (c *Client) runTurn(clip entities.AudioClip) {
	ctx, cancel := context.WithTimeout(c.ctx, c.hub.config.TurnTimeout)
	defer cancel()

	start := time.Now()
	result, err := c.hub.interpreter.HandleClip(ctx, c.sessionID, clip, c)
	fields := []zap.Field{
		zap.String("outcome", string(result.Outcome)),
		zap.String("branch", string(result.Branch)),
		zap.Int("clipBytes", len(clip.Data)),
		zap.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		c.logger.Warn("Turn did not complete", append(fields, zap.Error(err))...)
		if errors.Is(err, repositories.ErrSessionExpired) || errors.Is(err, repositories.ErrSessionNotFound) {
			c.sendJSON(CreateErrorMessage(ErrorCodeSession, "session is no longer available", err.Error()))
		}
		return
	}
	c.logger.Info("Turn finished", fields...)
}

// processMessage processes text frames from the page
func (c *Client) processMessage(message []byte) {
	msg, err := c.hub.validator.ValidateMessage(message)
	if err != nil {
		c.logger.Warn("Rejected message", zap.Error(err))
		code := ErrorCodeInvalidMessage
		if errors.Is(err, ErrClipTooLarge) {
			code = ErrorCodeClipTooLarge
		}
		c.sendJSON(CreateErrorMessage(code, "message rejected", err.Error()))
		return
	}

	switch m := msg.(type) {
	case *PingMessage:
		c.sendJSON(CreatePongMessage(m.Data))
	case *ClipMessage:
		clip, err := m.AudioClip()
		if err != nil {
			c.sendJSON(CreateErrorMessage(ErrorCodeInvalidClip, "clip rejected", err.Error()))
			return
		}
		c.enqueueClip(clip)
	}
}

// processBinaryClip treats each binary frame as one whole recording
func (c *Client) processBinaryClip(data []byte) {
	c.logger.Debug("Received binary clip", zap.Int("size", len(data)))

	if err := c.hub.validator.CheckSize(len(data)); err != nil {
		c.sendJSON(CreateErrorMessage(ErrorCodeClipTooLarge, "clip rejected", err.Error()))
		return
	}
	clip, err := entities.NewAudioClip(data, c.clipMimeType)
	if err != nil {
		c.sendJSON(CreateErrorMessage(ErrorCodeInvalidClip, "clip rejected", err.Error()))
		return
	}
	c.enqueueClip(clip)
}

func (c *Client) enqueueClip(clip entities.AudioClip) {
	select {
	case c.clips <- clip:
	default:
		c.logger.Warn("Clip queue full, dropping clip")
		c.sendJSON(CreateErrorMessage(ErrorCodeBusy, "still processing earlier recordings", ""))
	}
}

// NotifyStatus implements usecase.Notifier
func (c *Client) NotifyStatus(status usecase.Status) {
	c.sendJSON(CreateStatusMessage(status))
}

// NotifyMessages implements usecase.Notifier
func (c *Client) NotifyMessages(messages []entities.Message) {
	c.sendJSON(CreateMessagesMessage(messages))
}

// Speak implements usecase.Notifier. Each cue interrupts whatever is still playing.
func (c *Client) Speak(cue entities.SpeechCue) {
	if c.hub.ttsRepo == nil {
		c.sendJSON(CreateSpeakMessage(cue))
		return
	}

	c.speechMu.Lock()
	if c.cancelSpeech != nil {
		c.cancelSpeech()
	}
	ctx, cancel := context.WithTimeout(c.ctx, speechTimeout)
	c.cancelSpeech = cancel
	c.speechMu.Unlock()

	audio, err := c.hub.ttsRepo.ConvertTextToSpeech(ctx, cue.Text, cue.Locale)
	if err != nil {
		cancel()
		c.logger.Warn("Server synthesis unavailable, falling back to browser speech", zap.Error(err))
		c.sendJSON(CreateSpeakMessage(cue))
		return
	}

	go c.streamSpeech(ctx, cancel, cue, audio)
}

func (c *Client) streamSpeech(ctx context.Context, cancel context.CancelFunc, cue entities.SpeechCue, audio <-chan []byte) {
	defer cancel()

	if !c.sendSpeechJSON(ctx, &SpeakingStartMessage{
		BaseMessage: newBase(MessageTypeSpeakingStart),
		Text:        cue.Text,
		Locale:      cue.Locale,
		ContentType: synthesizedContentType,
	}) {
		return
	}

	totalBytes := 0
	for chunk := range audio {
		if !c.sendSpeechFrame(ctx, WriteData{Type: websocket.BinaryMessage, Payload: chunk}) {
			c.logger.Debug("Speech interrupted", zap.Int("sentBytes", totalBytes))
			return
		}
		totalBytes += len(chunk)
	}

	if !c.sendSpeechJSON(ctx, &SpeakingEndMessage{BaseMessage: newBase(MessageTypeSpeakingEnd)}) {
		c.logger.Debug("Speech interrupted", zap.Int("sentBytes", totalBytes))
		return
	}
	c.logger.Debug("Speech streamed", zap.Int("totalBytes", totalBytes))
}

// sendSpeechFrame queues one frame of the stream owning ctx. It holds speechMu, which
// Speak takes before cancelling, so nothing from an interrupted stream lands after
// the next stream's speaking_start.
func (c *Client) sendSpeechFrame(ctx context.Context, frame WriteData) bool {
	c.speechMu.Lock()
	defer c.speechMu.Unlock()

	if ctx.Err() != nil {
		return false
	}
	select {
	case c.send <- frame:
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *Client) sendSpeechJSON(ctx context.Context, v interface{}) bool {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to marshal message", zap.Error(err))
		return false
	}
	return c.sendSpeechFrame(ctx, WriteData{Type: websocket.TextMessage, Payload: payload})
}

func (c *Client) sendJSON(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to marshal message", zap.Error(err))
		return
	}

	select {
	case <-c.ctx.Done():
	case c.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
	default:
		c.logger.Warn("Outbound buffer full, dropping message")
	}
}
