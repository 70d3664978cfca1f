// Copyright (c) 2025 recviewd authors
// SPDX-License-Identifier: MIT

package transcode

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/recviewd/recviewd/internal/hls"
)

// State is the session lifecycle state.
type State string

const (
	// StateInitializing: session created on playlist request, no
	// subprocess yet.
	StateInitializing State = "initializing"
	// StateActive: exactly one subprocess producing segments in index
	// order from the anchor upward.
	StateActive State = "active"
	// StateSeeking: transient while the old process is killed and a new
	// generation is launched from a new anchor.
	StateSeeking State = "seeking"
	// StateTerminated: terminal. Slot released, output directory removed.
	StateTerminated State = "terminated"
)

// IsTerminal reports whether no further transitions are possible.
func (s State) IsTerminal() bool {
	return s == StateTerminated
}

// session is one viewer playback attempt. All fields below mu are guarded by
// it; requests for the same session are serialized through this mutex while
// waits happen outside it (see Engine.Segment).
type session struct {
	key     string // opaque client-supplied session key
	videoID string
	dirName string // filesystem-safe digest of the key

	mu sync.Mutex

	mode     Mode
	state    State
	plan     hls.Plan
	playlist string // rendered body, immutable for the session lifetime
	source   VideoSource

	// generation counts subprocess instances; anchor and highWater are
	// scoped to the current generation.
	generation uint64
	anchor     int
	highWater  int

	// generated maps a segment index to its on-disk file, across all
	// generations of this session. Entries are never replaced: an
	// already-served segment is served again byte-identically.
	generated map[int]string

	handle Handle

	// crash bookkeeping: consecutive crashes for crashAnchor.
	crashes     int
	crashAnchor int

	lastAccess time.Time
	termErr    error

	// changed is closed and replaced on every observable change (segment
	// arrival, generation bump, termination). Waiters select on it
	// without holding mu.
	changed chan struct{}
}

func newSession(key, videoID string) *session {
	return &session{
		key:       key,
		videoID:   videoID,
		dirName:   sessionDirName(key),
		state:     StateInitializing,
		generated: make(map[int]string),
		changed:   make(chan struct{}),
	}
}

// broadcast wakes all current waiters. Caller must hold s.mu.
func (s *session) broadcast() {
	close(s.changed)
	s.changed = make(chan struct{})
}

// touch refreshes the idle timestamp. Caller must hold s.mu.
func (s *session) touch(now time.Time) {
	s.lastAccess = now
}

// sessionDirName derives a filesystem-safe directory name from the opaque
// session key. The key itself is never interpreted or used as a path.
func sessionDirName(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:8])
}
