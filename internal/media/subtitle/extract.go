// Copyright (c) 2025 recviewd authors
// SPDX-License-Identifier: MIT

// Package subtitle extracts embedded subtitle tracks from recordings as
// WebVTT files for browser players.
package subtitle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/recviewd/recviewd/internal/log"
)

// ErrNoSubtitles indicates the recording carries no extractable subtitle track.
var ErrNoSubtitles = errors.New("no subtitle track")

// Extractor converts the first subtitle track of a recording to WebVTT,
// cached on disk per video. Extraction runs at most once per video at a time.
type Extractor struct {
	bin    string
	dir    string
	group  singleflight.Group
	logger zerolog.Logger
}

// NewExtractor creates an extractor writing vtt files below dir.
func NewExtractor(ffmpegBin, dir string) *Extractor {
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	return &Extractor{
		bin:    ffmpegBin,
		dir:    dir,
		logger: log.WithComponent("subtitle"),
	}
}

// Extract returns the path of the WebVTT file for the video, converting it on
// first use.
func (e *Extractor) Extract(ctx context.Context, videoID, inputPath string) (string, error) {
	out := filepath.Join(e.dir, videoID+".vtt")
	if _, err := os.Stat(out); err == nil {
		return out, nil
	}

	_, err, _ := e.group.Do(videoID, func() (any, error) {
		return nil, e.convert(ctx, inputPath, out)
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

func (e *Extractor) convert(ctx context.Context, inputPath, out string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return fmt.Errorf("create subtitle dir: %w", err)
	}

	args := []string{
		"-hide_banner",
		"-loglevel", "warning",
		"-nostdin",
		"-i", inputPath,
		"-map", "0:s:0",
		"-f", "webvtt",
		"pipe:1",
	}

	cmd := exec.CommandContext(ctx, e.bin, args...) // #nosec G204 -- argv is assembled locally
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		e.logger.Debug().Err(err).Str("stderr", stderr.String()).
			Str("input", inputPath).Msg("subtitle extraction failed")
		return fmt.Errorf("%w: %s", ErrNoSubtitles, inputPath)
	}
	if stdout.Len() == 0 {
		return fmt.Errorf("%w: %s", ErrNoSubtitles, inputPath)
	}

	// Atomic write: a concurrent reader sees either nothing or the whole
	// file, never a partial conversion.
	if err := renameio.WriteFile(out, stdout.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write vtt: %w", err)
	}
	return nil
}
