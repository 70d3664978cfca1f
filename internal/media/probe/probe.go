// Copyright (c) 2025 recviewd authors
// SPDX-License-Identifier: MIT

// Package probe extracts stream metadata from recordings via ffprobe: codecs,
// duration and keyframe timestamps. Results feed the copy-vs-encode decision
// and keyframe-exact playlist plans.
package probe

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/rs/zerolog"

	"github.com/recviewd/recviewd/internal/log"
)

// Result is the simplified outcome of a recording analysis.
type Result struct {
	VideoCodec      string    `json:"video_codec"`
	AudioCodec      string    `json:"audio_codec"`
	Width           int       `json:"width"`
	Height          int       `json:"height"`
	DurationSeconds float64   `json:"duration_seconds"`
	Interlaced      bool      `json:"interlaced"`
	Keyframes       []float64 `json:"keyframes,omitempty"`
}

// Prober analyzes one recording file.
type Prober interface {
	Probe(ctx context.Context, path string) (Result, error)
}

// FFprobe shells out to ffprobe. Two invocations per file: a cheap
// format/stream pass and a packet scan for keyframe timestamps.
type FFprobe struct {
	bin    string
	logger zerolog.Logger
}

// NewFFprobe creates a prober using the given ffprobe binary path.
func NewFFprobe(bin string) *FFprobe {
	if bin == "" {
		bin = "ffprobe"
	}
	return &FFprobe{
		bin:    bin,
		logger: log.WithComponent("probe"),
	}
}

func (p *FFprobe) Probe(ctx context.Context, path string) (Result, error) {
	res, err := p.probeStreams(ctx, path)
	if err != nil {
		return Result{}, err
	}

	// Keyframe scan is best-effort: a recording without usable keyframe
	// data still plays, just on a virtual plan.
	keyframes, err := p.probeKeyframes(ctx, path)
	if err != nil {
		p.logger.Warn().Err(err).Str("path", path).Msg("keyframe scan failed")
	} else {
		res.Keyframes = keyframes
	}

	return res, nil
}

func (p *FFprobe) probeStreams(ctx context.Context, path string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		"-i", path,
	}

	out, err := p.run(ctx, args)
	if err != nil {
		return Result{}, fmt.Errorf("ffprobe streams: %w", err)
	}
	return ParseStreamsJSON(out)
}

func (p *FFprobe) probeKeyframes(ctx context.Context, path string) ([]float64, error) {
	// Packet scans over long recordings take a while; generous timeout.
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	args := []string{
		"-v", "quiet",
		"-select_streams", "v:0",
		"-show_entries", "packet=pts_time,flags",
		"-of", "csv=print_section=0",
		"-i", path,
	}

	out, err := p.run(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("ffprobe keyframes: %w", err)
	}
	return ParseKeyframesCSV(out)
}

func (p *FFprobe) run(ctx context.Context, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, p.bin, args...) // #nosec G204 -- argv is assembled locally
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		return nil, err
	}
	return stdout.Bytes(), nil
}
