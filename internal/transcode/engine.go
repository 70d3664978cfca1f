// Copyright (c) 2025 recviewd authors
// SPDX-License-Identifier: MIT

// Package transcode implements the playback orchestration engine: the
// copy-vs-encode decision, per-session subprocess supervision, seek-aware
// segment coordination, encode admission control and idle reclamation.
package transcode

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/recviewd/recviewd/internal/hls"
	"github.com/recviewd/recviewd/internal/log"
	"github.com/recviewd/recviewd/internal/metrics"
)

// VideoSource is the externally supplied metadata the engine depends on.
type VideoSource struct {
	Path            string
	DurationSeconds float64
	VideoCodec      string
	AudioCodec      string
	// Keyframes are sorted keyframe timestamps in seconds. May be empty,
	// in which case a copy session downgrades to a virtual plan.
	Keyframes []float64
}

// SourceResolver looks up recording metadata for a video id.
type SourceResolver interface {
	Resolve(ctx context.Context, videoID string) (VideoSource, error)
}

// Options tunes the engine. Zero values fall back to the documented defaults.
type Options struct {
	HLSRoot               string
	MaxEncodeSlots        int
	SeekThresholdSegments int
	SegmentDuration       time.Duration
	SegmentWaitTimeout    time.Duration
	IdleTTL               time.Duration
	ReapInterval          time.Duration
	KillGrace             time.Duration
	Clock                 Clock
}

func (o *Options) applyDefaults() {
	if o.MaxEncodeSlots <= 0 {
		o.MaxEncodeSlots = 2
	}
	if o.SeekThresholdSegments <= 0 {
		o.SeekThresholdSegments = 2
	}
	if o.SegmentDuration <= 0 {
		o.SegmentDuration = 10 * time.Second
	}
	if o.SegmentWaitTimeout <= 0 {
		o.SegmentWaitTimeout = 30 * time.Second
	}
	if o.IdleTTL <= 0 {
		o.IdleTTL = 2 * time.Hour
	}
	if o.ReapInterval <= 0 {
		o.ReapInterval = 5 * time.Minute
	}
	if o.KillGrace <= 0 {
		o.KillGrace = 5 * time.Second
	}
	if o.Clock == nil {
		o.Clock = RealClock{}
	}
}

// Engine owns the session table and the encode slot pool. It is constructed
// explicitly and passed down; there is no ambient global state.
type Engine struct {
	opts     Options
	backend  Backend
	resolver SourceResolver
	slots    *SlotPool
	clock    Clock
	logger   zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

// NewEngine creates an engine using the given media transform backend.
func NewEngine(opts Options, backend Backend, resolver SourceResolver) *Engine {
	if backend == nil {
		panic("invariant violation: backend is nil in NewEngine")
	}
	if resolver == nil {
		panic("invariant violation: resolver is nil in NewEngine")
	}
	opts.applyDefaults()

	return &Engine{
		opts:     opts,
		backend:  backend,
		resolver: resolver,
		slots:    NewSlotPool(opts.MaxEncodeSlots),
		clock:    opts.Clock,
		logger:   log.WithComponent("transcode"),
		sessions: make(map[string]*session),
	}
}

// Slots exposes the admission pool (read-only use: status, tests).
func (e *Engine) Slots() *SlotPool {
	return e.slots
}

// Playlist resolves the session mode, derives the playlist plan and creates
// (or takes over) the session. The returned body is immutable for the
// session's lifetime.
func (e *Engine) Playlist(ctx context.Context, videoID, sessionKey string, clientHEVC bool) (string, error) {
	if sessionKey == "" {
		return "", fmt.Errorf("session key required")
	}

	src, err := e.resolver.Resolve(ctx, videoID)
	if err != nil {
		return "", fmt.Errorf("resolve video %q: %w", videoID, err)
	}

	mode, err := DecideMode(src.VideoCodec, src.AudioCodec, clientHEVC)
	if err != nil {
		// Conservative fallback: never block playback on missing metadata.
		e.logger.Warn().Err(err).Str("video", videoID).
			Msg("codec metadata missing, falling back to encode mode")
		mode = ModeEncode
	}

	plan, err := e.buildPlan(mode, src, videoID)
	if err != nil {
		return "", err
	}

	body := hls.RenderMediaPlaylist(plan, func(idx int) string {
		return fmt.Sprintf("segments/%d.ts?session=%s", idx, url.QueryEscape(sessionKey))
	})

	e.mu.Lock()
	s, exists := e.sessions[sessionKey]
	if exists {
		s.mu.Lock()
		if s.state == StateTerminated {
			s.mu.Unlock()
			exists = false
		}
	}
	if !exists {
		s = newSession(sessionKey, videoID)
		e.sessions[sessionKey] = s
		s.mu.Lock()
	}

	// Takeover: a session never holds two live processes. The prior
	// process is detached under the lock and killed below, outside it.
	old := s.handle
	s.handle = nil
	if old != nil {
		s.broadcast()
	}

	prevMode := s.mode
	if s.videoID != videoID {
		// Switching recordings invalidates everything produced so far.
		s.generated = make(map[int]string)
	}
	s.videoID = videoID
	s.source = src
	s.mode = mode
	s.plan = plan
	s.playlist = body
	s.state = StateInitializing
	s.touch(e.clock.Now())
	s.mu.Unlock()

	if prevMode == ModeEncode && mode != ModeEncode {
		e.slots.Release(sessionKey)
	}
	e.updateSessionGauge()
	e.mu.Unlock()

	if old != nil {
		_ = old.Stop(e.opts.KillGrace)
	}

	e.logger.Info().
		Str("video", videoID).
		Str("mode", string(mode)).
		Str("plan", string(plan.Kind)).
		Int("segments", plan.SegmentCount()).
		Msg("session playlist issued")

	return body, nil
}

func (e *Engine) buildPlan(mode Mode, src VideoSource, videoID string) (hls.Plan, error) {
	if mode == ModeCopy && len(src.Keyframes) > 0 {
		plan, err := hls.KeyframeExact(src.Keyframes, src.DurationSeconds)
		if err == nil {
			return plan, nil
		}
		if errors.Is(err, hls.ErrInvalidDuration) {
			return hls.Plan{}, err
		}
		// fall through to the virtual plan on malformed keyframe data
	}
	if mode == ModeCopy && len(src.Keyframes) == 0 {
		e.logger.Warn().Str("video", videoID).
			Msg("keyframe data missing, downgrading copy session to virtual plan")
	}
	return hls.VirtualFixed(src.DurationSeconds, e.opts.SegmentDuration.Seconds())
}

// Segment coordinates one segment-file request: serve, wait, seek-restart or
// reject. Returns the path of the segment file on disk.
func (e *Engine) Segment(ctx context.Context, videoID, sessionKey string, idx int) (string, error) {
	s := e.session(sessionKey)
	if s == nil {
		return "", ErrNoSession
	}

	deadline := e.clock.Now().Add(e.opts.SegmentWaitTimeout)
	waited := false

	s.mu.Lock()
	s.touch(e.clock.Now())

	for {
		if s.state == StateTerminated {
			err := s.termErr
			s.mu.Unlock()
			if err == nil {
				err = ErrSessionTerminated
			}
			return "", err
		}

		// Validated on every pass, not just on entry: a playlist takeover
		// can repurpose the session (new video, new plan) while a waiter
		// is parked, and the old request must not anchor a process against
		// the new plan.
		if s.videoID != videoID {
			s.mu.Unlock()
			if waited {
				return "", ErrSessionTerminated
			}
			return "", ErrNoSession
		}
		if !s.plan.Contains(idx) {
			n := s.plan.SegmentCount()
			s.mu.Unlock()
			return "", fmt.Errorf("%w: index %d of %d", ErrInvalidSegment, idx, n)
		}

		if path, ok := s.generated[idx]; ok {
			s.mu.Unlock()
			if waited {
				metrics.RecordSegmentWait("served")
			}
			return path, nil
		}

		if s.handle == nil {
			// No live process (fresh session, finished run, or a start
			// that was rejected before): anchor one at the request.
			if err := e.startLocked(s, idx, spawnInitial); err != nil {
				s.mu.Unlock()
				return "", err
			}
		} else if d := idx - s.highWater; d < 0 || d >= e.opts.SeekThresholdSegments {
			// Backward jump or a forward jump past the threshold: cheaper
			// to restart than to wait for sequential output to catch up.
			if err := e.seekRestart(s, idx); err != nil {
				s.mu.Unlock()
				return "", err
			}
			continue // re-evaluate under the lock seekRestart re-took
		}

		ch := s.changed
		s.mu.Unlock()

		remaining := deadline.Sub(e.clock.Now())
		if remaining <= 0 {
			metrics.RecordSegmentWait("timeout")
			return "", ErrSegmentTimeout
		}

		waited = true
		select {
		case <-ch:
		case <-ctx.Done():
			metrics.RecordSegmentWait("canceled")
			return "", ctx.Err()
		case <-e.clock.After(remaining):
			metrics.RecordSegmentWait("timeout")
			return "", ErrSegmentTimeout
		}

		s.mu.Lock()
		s.touch(e.clock.Now())
	}
}

// seekRestart kills the current process and launches a new generation
// anchored at idx. Called with s.mu held; returns with s.mu held. The old
// process is stopped synchronously outside the lock so that no two
// generations ever write concurrently.
func (e *Engine) seekRestart(s *session, idx int) error {
	s.state = StateSeeking
	old := s.handle
	s.handle = nil
	s.broadcast()
	s.mu.Unlock()

	if old != nil {
		_ = old.Stop(e.opts.KillGrace)
	}

	s.mu.Lock()
	if s.state == StateTerminated {
		if s.termErr != nil {
			return s.termErr
		}
		return ErrSessionTerminated
	}
	if s.handle != nil {
		// A concurrent request already started a new generation while we
		// were stopping the old one; use it.
		return nil
	}
	return e.startLocked(s, idx, spawnSeek)
}

const (
	spawnInitial      = "initial"
	spawnSeek         = "seek"
	spawnCrashRestart = "crash_restart"
)

// startLocked launches a new subprocess generation anchored at idx. Caller
// holds s.mu. Encode sessions must hold (or newly acquire) their admission
// slot; the acquisition is re-entrant so restarts never double-count.
func (e *Engine) startLocked(s *session, idx int, cause string) error {
	if s.mode == ModeEncode {
		held := e.slots.Held(s.key)
		if !e.slots.TryAcquire(s.key) {
			metrics.RecordReject("slots_exhausted")
			return ErrSlotsExhausted
		}
		if !held {
			metrics.RecordAdmit()
		}
	}

	s.generation++
	gen := s.generation
	dir := e.generationDir(s, gen)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create segment dir: %w", err)
	}

	spec := JobSpec{
		SessionKey:    s.key,
		VideoID:       s.videoID,
		Generation:    gen,
		InputPath:     s.source.Path,
		OutputDir:     dir,
		Mode:          s.mode,
		AnchorSegment: idx,
		StartOffset:   s.plan.SegmentStart(idx),
		Plan:          s.plan,
	}

	h, err := e.backend.Start(context.Background(), spec)
	if err != nil {
		return fmt.Errorf("start %s backend: %w", s.mode, err)
	}

	s.handle = h
	s.anchor = idx
	s.highWater = idx
	s.state = StateActive
	if cause != spawnCrashRestart && s.crashAnchor != idx {
		s.crashes = 0
	}

	metrics.RecordSpawn(string(s.mode), cause)
	e.logger.Info().
		Str("video", s.videoID).
		Uint64("generation", gen).
		Int("anchor", idx).
		Str("cause", cause).
		Msg("media process started")

	go e.supervise(s, h, gen, idx)
	return nil
}

// supervise consumes segment notifications and handles process exit for one
// generation. An unexpected crash triggers exactly one automatic restart
// from the same anchor; a second consecutive crash terminates the session.
func (e *Engine) supervise(s *session, h Handle, gen uint64, anchor int) {
	go func() {
		for idx := range h.Segments() {
			e.noteSegment(s, gen, idx)
		}
	}()

	err := h.Wait()

	s.mu.Lock()
	if s.generation != gen || s.handle != h {
		// Superseded by a newer generation (seek, takeover, terminate):
		// the successor owns the session now.
		s.mu.Unlock()
		metrics.RecordExit("superseded")
		return
	}
	s.handle = nil

	if err == nil {
		metrics.RecordExit("clean")
		s.broadcast()
		s.mu.Unlock()
		return
	}

	metrics.RecordExit("crash")
	if s.crashAnchor == anchor {
		s.crashes++
	} else {
		s.crashAnchor = anchor
		s.crashes = 1
	}

	if s.crashes >= 2 {
		e.logger.Error().
			Str("video", s.videoID).
			Int("anchor", anchor).
			Strs("diagnostics", h.Diagnostics()).
			Msg("media process crashed twice from the same anchor, terminating session")
		s.mu.Unlock()
		e.terminate(s, ErrTranscodeFailed)
		return
	}

	e.logger.Warn().Err(err).
		Str("video", s.videoID).
		Int("anchor", anchor).
		Msg("media process crashed, restarting once from the same anchor")
	restartErr := e.startLocked(s, anchor, spawnCrashRestart)
	s.mu.Unlock()

	if restartErr != nil {
		e.terminate(s, ErrTranscodeFailed)
	}
}

// noteSegment records a completed segment file for the given generation and
// wakes waiters. Stale generations are ignored.
func (e *Engine) noteSegment(s *session, gen uint64, idx int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateTerminated || s.generation != gen {
		return
	}
	if _, ok := s.generated[idx]; !ok {
		s.generated[idx] = filepath.Join(e.generationDir(s, gen), SegmentFileName(idx))
	}
	if idx > s.highWater {
		s.highWater = idx
	}
	s.broadcast()
}

// terminate moves the session to its terminal state, kills any live process,
// releases the admission slot and removes the session's output tree.
// Idempotent; safe on every exit path.
func (e *Engine) terminate(s *session, reason error) {
	s.mu.Lock()
	if s.state == StateTerminated {
		s.mu.Unlock()
		return
	}
	s.state = StateTerminated
	s.termErr = reason
	old := s.handle
	s.handle = nil
	s.broadcast()
	dir := filepath.Join(e.opts.HLSRoot, s.dirName)
	s.mu.Unlock()

	if old != nil {
		_ = old.Stop(e.opts.KillGrace)
	}
	e.slots.Release(s.key)
	if err := os.RemoveAll(dir); err != nil {
		e.logger.Warn().Err(err).Str("dir", dir).Msg("failed to remove session output")
	}

	e.mu.Lock()
	e.updateSessionGauge()
	e.mu.Unlock()

	e.logger.Info().
		Str("video", s.videoID).
		AnErr("reason", reason).
		Msg("session terminated")
}

// EndSession explicitly terminates a session and forgets it.
func (e *Engine) EndSession(sessionKey string) error {
	e.mu.Lock()
	s := e.sessions[sessionKey]
	delete(e.sessions, sessionKey)
	e.mu.Unlock()

	if s == nil {
		return ErrNoSession
	}
	e.terminate(s, nil)
	return nil
}

// ReapIdle terminates and forgets every session idle longer than the TTL.
// Returns the number of sessions reclaimed. Runs off the request path and
// never blocks segment serving.
func (e *Engine) ReapIdle() int {
	cutoff := e.clock.Now().Add(-e.opts.IdleTTL)

	e.mu.Lock()
	var stale []*session
	for key, s := range e.sessions {
		s.mu.Lock()
		idle := s.lastAccess.Before(cutoff)
		s.mu.Unlock()
		if idle {
			stale = append(stale, s)
			delete(e.sessions, key)
		}
	}
	e.mu.Unlock()

	for _, s := range stale {
		e.terminate(s, ErrSessionTerminated)
		metrics.RecordReaped()
	}
	if len(stale) > 0 {
		e.logger.Info().Int("count", len(stale)).Msg("idle sessions reaped")
	}
	return len(stale)
}

// RunReaper sweeps periodically until the context is canceled.
func (e *Engine) RunReaper(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.clock.After(e.opts.ReapInterval):
			e.ReapIdle()
		}
	}
}

// Shutdown terminates every session, bounded by ctx. Sessions are torn down
// concurrently; if the deadline expires first the remaining subprocesses are
// left to die with the daemon's process group. Called once at daemon stop.
func (e *Engine) Shutdown(ctx context.Context) {
	e.mu.Lock()
	all := make([]*session, 0, len(e.sessions))
	for key, s := range e.sessions {
		all = append(all, s)
		delete(e.sessions, key)
	}
	e.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range all {
		wg.Add(1)
		go func(s *session) {
			defer wg.Done()
			e.terminate(s, ErrSessionTerminated)
		}(s)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		e.logger.Warn().Int("sessions", len(all)).
			Msg("shutdown deadline expired before all sessions terminated")
	}
}

func (e *Engine) session(key string) *session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessions[key]
}

func (e *Engine) generationDir(s *session, gen uint64) string {
	return filepath.Join(e.opts.HLSRoot, s.dirName, fmt.Sprintf("g%04d", gen))
}

// SegmentFileName is the on-disk name for a segment index, shared with the
// backend's output pattern.
func SegmentFileName(idx int) string {
	return fmt.Sprintf("%06d.ts", idx)
}

// updateSessionGauge recomputes the per-mode session gauges. Caller holds e.mu.
func (e *Engine) updateSessionGauge() {
	counts := map[Mode]int{ModeCopy: 0, ModeEncode: 0}
	for _, s := range e.sessions {
		s.mu.Lock()
		if s.state != StateTerminated {
			counts[s.mode]++
		}
		s.mu.Unlock()
	}
	for mode, n := range counts {
		metrics.SetActiveSessions(string(mode), float64(n))
	}
}
