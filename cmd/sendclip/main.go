// Command sendclip plays the part of the page: it sends one recorded file as a
// turn and prints the events the server pushes back.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type sessionResponse struct {
	SessionID string    `json:"session_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func main() {
	server := flag.String("server", "http://localhost:8080", "interpreter server base URL")
	token := flag.String("token", "", "existing session token; a new session is started when empty")
	out := flag.String("out", "", "write synthesized speech to this file")
	timeout := flag.Duration("timeout", 90*time.Second, "how long to wait for the turn to finish")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: sendclip [flags] <audio file>")
		os.Exit(2)
	}
	clipPath := flag.Arg(0)

	audio, err := os.ReadFile(clipPath)
	if err != nil {
		logger.Fatal("Failed to read clip", zap.String("path", clipPath), zap.Error(err))
	}

	if *token == "" {
		session, err := startSession(*server)
		if err != nil {
			logger.Fatal("Failed to start session", zap.Error(err))
		}
		*token = session.Token
		logger.Info("Started session", zap.String("sessionID", session.SessionID))
		fmt.Println("token:", session.Token)
	}

	wsURL, err := socketURL(*server, *token, mimeTypeOf(clipPath))
	if err != nil {
		logger.Fatal("Invalid server URL", zap.Error(err))
	}

	c, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		logger.Fatal("dial", zap.Error(err))
	}
	defer c.Close()

	if err := c.WriteMessage(websocket.BinaryMessage, audio); err != nil {
		logger.Fatal("Failed to send clip", zap.Error(err))
	}
	logger.Info("Clip sent", zap.String("path", clipPath), zap.Int("bytes", len(audio)))

	if err := readEvents(c, *out, *timeout, logger); err != nil {
		logger.Fatal("Turn failed", zap.Error(err))
	}

	c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func startSession(server string) (*sessionResponse, error) {
	resp, err := http.Post(strings.TrimRight(server, "/")+"/api/v1/sessions", "application/json", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("session request failed: %s", string(body))
	}

	var session sessionResponse
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func socketURL(server, token, mimeType string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	q := url.Values{}
	q.Set("token", token)
	q.Set("mime", mimeType)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func mimeTypeOf(path string) string {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".webm":
		return "audio/webm"
	case ".ogg", ".opus":
		return "audio/ogg"
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mpeg"
	case ".m4a", ".mp4":
		return "audio/mp4"
	default:
		if t := mime.TypeByExtension(ext); t != "" {
			return t
		}
		return "audio/webm"
	}
}

// readEvents prints server events until the turn settles
func readEvents(c *websocket.Conn, out string, timeout time.Duration, logger *zap.Logger) error {
	deadline := time.Now().Add(timeout)
	processing := false
	browserCue := false
	var speech []byte

	for {
		c.SetReadDeadline(deadline)
		messageType, message, err := c.ReadMessage()
		if err != nil {
			return err
		}

		if messageType == websocket.BinaryMessage {
			speech = append(speech, message...)
			continue
		}

		var msg map[string]interface{}
		if err := json.Unmarshal(message, &msg); err != nil {
			logger.Warn("unmarshal error", zap.Error(err))
			continue
		}

		switch msg["type"] {
		case "messages":
			list, _ := msg["messages"].([]interface{})
			for _, item := range list {
				if m, ok := item.(map[string]interface{}); ok {
					fmt.Println(m["content"])
				}
			}
		case "speak":
			fmt.Printf("🔊 [%v] %v\n", msg["locale"], msg["text"])
			browserCue = true
		case "speaking_start":
			speech = speech[:0]
		case "speaking_end":
			if out != "" {
				if err := os.WriteFile(out, speech, 0o644); err != nil {
					return err
				}
				logger.Info("Speech saved", zap.String("path", out), zap.Int("bytes", len(speech)))
			}
			return nil
		case "error":
			return fmt.Errorf("%v: %v", msg["error_code"], msg["details"])
		case "status":
			state := msg["state"]
			logger.Info("Status", zap.Any("state", state), zap.Any("branch", msg["branch"]), zap.Any("detail", msg["detail"]))
			switch state {
			case "processing":
				processing = true
			case "error":
				if processing {
					return errors.New(fmt.Sprint(msg["detail"]))
				}
			case "idle":
				if processing {
					return nil
				}
			case "success":
				// server speech, when enabled, still has to arrive
				if msg["branch"] != "cn_to_en" || out == "" || browserCue {
					return nil
				}
			}
		}
	}
}
