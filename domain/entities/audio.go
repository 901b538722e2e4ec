package entities

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// ErrUnsupportedMimeType is returned for recordings the transcribers cannot take
var ErrUnsupportedMimeType = errors.New("unsupported audio mime type")

// DefaultClipMimeType is what MediaRecorder produces in Chromium and Firefox
const DefaultClipMimeType = "audio/webm"

var clipExtensions = map[string]string{
	"audio/webm": "webm",
	"audio/ogg":  "ogg",
	"audio/wav":  "wav",
	"audio/mp4":  "mp4",
	"audio/mpeg": "mp3",
}

// AudioClip is one recorded utterance, held in memory for a single turn
type AudioClip struct {
	Data     []byte
	MimeType string
}

// NewAudioClip validates the MIME type and normalizes parameters away ("audio/webm;codecs=opus").
func NewAudioClip(data []byte, mimeType string) (AudioClip, error) {
	if len(data) == 0 {
		return AudioClip{}, errors.New("audio clip is empty")
	}
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	if mt == "" {
		mt = DefaultClipMimeType
	}
	if _, ok := clipExtensions[mt]; !ok {
		return AudioClip{}, ErrUnsupportedMimeType
	}
	return AudioClip{Data: data, MimeType: mt}, nil
}

// Extension returns the file extension hosted transcribers use to sniff the format
func (c AudioClip) Extension() string {
	if ext, ok := clipExtensions[c.MimeType]; ok {
		return ext
	}
	return "webm"
}

// Digest identifies the clip bytes for the last-processed marker
func (c AudioClip) Digest() string {
	sum := sha256.Sum256(c.Data)
	return hex.EncodeToString(sum[:])
}
