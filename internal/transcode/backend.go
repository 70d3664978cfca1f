// Copyright (c) 2025 recviewd authors
// SPDX-License-Identifier: MIT

package transcode

import (
	"context"
	"time"

	"github.com/recviewd/recviewd/internal/hls"
)

// JobSpec defines one subprocess generation. Immutable once started; a seek
// or crash restart produces a new JobSpec with a bumped Generation.
type JobSpec struct {
	// SessionKey and VideoID identify the owning session.
	SessionKey string
	VideoID    string

	// Generation distinguishes successive subprocess instances for the
	// same session.
	Generation uint64

	// InputPath is the source recording on disk.
	InputPath string

	// OutputDir is the segment workspace, scoped to
	// (video, session, generation). The backend MUST NOT write outside it.
	OutputDir string

	// Mode selects remux (copy) or re-encode.
	Mode Mode

	// AnchorSegment is the first segment index this process produces.
	AnchorSegment int

	// StartOffset is the timeline position (seconds) matching the anchor.
	StartOffset float64

	// Plan carries the segment boundaries the output must align with. For
	// virtual plans the backend forces keyframes at exactly these
	// boundaries so the real segmentation matches the promised playlist.
	Plan hls.Plan
}

// Backend launches media transform subprocesses. The orchestration engine is
// polymorphic over this so the concrete invocation mechanism (ffmpeg, a test
// fake) can be swapped without touching scheduling logic.
type Backend interface {
	// Start launches the process for the given spec. The context bounds
	// the whole process lifetime, not just the launch.
	Start(ctx context.Context, spec JobSpec) (Handle, error)
}

// Handle controls one running subprocess generation.
type Handle interface {
	// Segments streams indices of segment files as they are fully written
	// to OutputDir, in non-decreasing order per generation. Closed when
	// the process stops producing.
	Segments() <-chan int

	// Wait blocks until the process exits. nil for exit code 0.
	Wait() error

	// Stop terminates the process: graceful signal, escalation after the
	// grace period, and returns only once the process is fully dead and
	// its output files are closed. Safe to call more than once.
	Stop(grace time.Duration) error

	// Diagnostics returns a bounded snapshot of recent process output.
	Diagnostics() []string
}
