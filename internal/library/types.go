// Copyright (c) 2025 recviewd authors
// SPDX-License-Identifier: MIT

// Package library maintains the recording catalog: a SQLite-backed store, a
// filesystem scanner with probe integration and EDCB sidecar parsing, and the
// resolver the playback engine uses to look recordings up.
package library

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Video is one recording known to the library.
type Video struct {
	ID              string    `json:"id"`
	Path            string    `json:"-"`
	Title           string    `json:"title"`
	Channel         string    `json:"channel,omitempty"`
	Description     string    `json:"description,omitempty"`
	DurationSeconds float64   `json:"duration_seconds"`
	VideoCodec      string    `json:"video_codec,omitempty"`
	AudioCodec      string    `json:"audio_codec,omitempty"`
	Width           int       `json:"width,omitempty"`
	Height          int       `json:"height,omitempty"`
	Interlaced      bool      `json:"interlaced,omitempty"`
	AiredAt         time.Time `json:"aired_at,omitempty"`
	ScannedAt       time.Time `json:"scanned_at"`
}

// ProgramInfo is the typed content of an EDCB .program.txt sidecar.
type ProgramInfo struct {
	Title       string
	Channel     string
	Description string
	Start       time.Time
	End         time.Time
}

// VideoID derives the stable identifier for a recording path. Stable across
// restarts and rescans so bookmarks and session URLs survive.
func VideoID(path string) string {
	sum := sha256.Sum256([]byte(path))
	return hex.EncodeToString(sum[:12])
}
