// Package web holds the single page served at "/".
package web

import _ "embed"

// IndexHTML records clips, renders the conversation and plays speech cues
//
//go:embed index.html
var IndexHTML []byte
