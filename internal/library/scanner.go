// Copyright (c) 2025 recviewd authors
// SPDX-License-Identifier: MIT

package library

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/recviewd/recviewd/internal/log"
	"github.com/recviewd/recviewd/internal/media/probe"
)

// mediaExtensions are the recording container formats the scanner indexes.
var mediaExtensions = map[string]bool{
	".ts":   true,
	".m2ts": true,
	".mp4":  true,
	".mkv":  true,
}

// Scanner walks the media directory and indexes recordings. Probing is rate
// limited so a full rescan does not starve live playback of disk and CPU.
type Scanner struct {
	store   *Store
	prober  probe.Prober
	limiter *rate.Limiter
	root    string
	logger  zerolog.Logger
}

// NewScanner creates a scanner over root. probesPerSecond bounds ffprobe
// invocations; zero or negative means 2/s.
func NewScanner(store *Store, prober probe.Prober, root string, probesPerSecond float64) *Scanner {
	if probesPerSecond <= 0 {
		probesPerSecond = 2
	}
	return &Scanner{
		store:   store,
		prober:  prober,
		limiter: rate.NewLimiter(rate.Limit(probesPerSecond), 1),
		root:    root,
		logger:  log.WithComponent("library"),
	}
}

// ScanResult summarizes one full scan.
type ScanResult struct {
	Indexed int
	Skipped int
	Removed int64
	Errors  int
}

// ScanAll walks the whole media directory, indexes every recording and drops
// records for files that vanished.
func (sc *Scanner) ScanAll(ctx context.Context) (ScanResult, error) {
	started := time.Now()
	var result ScanResult

	rootResolved, err := filepath.EvalSymlinks(sc.root)
	if err != nil {
		return result, err
	}

	walkErr := filepath.WalkDir(sc.root, func(path string, d fs.DirEntry, werr error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if werr != nil {
			result.Errors++
			sc.logger.Warn().Err(werr).Str("path", path).Msg("scan walk error")
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !mediaExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		// Symlink confinement: an entry resolving outside the media root
		// is not indexed.
		resolved, err := filepath.EvalSymlinks(path)
		if err != nil {
			result.Skipped++
			return nil
		}
		if rel, err := filepath.Rel(rootResolved, resolved); err != nil || strings.HasPrefix(rel, "..") {
			result.Skipped++
			sc.logger.Warn().Str("path", path).Msg("entry escapes media root, skipping")
			return nil
		}

		if err := sc.indexFile(ctx, path, started); err != nil {
			result.Errors++
			sc.logger.Warn().Err(err).Str("path", path).Msg("indexing failed")
			return nil
		}
		result.Indexed++
		return nil
	})
	if walkErr != nil {
		return result, walkErr
	}

	removed, err := sc.store.DeleteMissing(ctx, started)
	if err != nil {
		return result, err
	}
	result.Removed = removed

	sc.logger.Info().
		Int("indexed", result.Indexed).
		Int("skipped", result.Skipped).
		Int64("removed", removed).
		Int("errors", result.Errors).
		Dur("elapsed", time.Since(started)).
		Msg("library scan finished")
	return result, nil
}

func (sc *Scanner) indexFile(ctx context.Context, path string, scannedAt time.Time) error {
	if err := sc.limiter.Wait(ctx); err != nil {
		return err
	}

	res, err := sc.prober.Probe(ctx, path)
	if err != nil {
		return err
	}

	v := Video{
		ID:              VideoID(path),
		Path:            path,
		Title:           strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		DurationSeconds: res.DurationSeconds,
		VideoCodec:      res.VideoCodec,
		AudioCodec:      res.AudioCodec,
		Width:           res.Width,
		Height:          res.Height,
		Interlaced:      res.Interlaced,
		ScannedAt:       scannedAt,
	}

	// EDCB writes a "<recording>.program.txt" sidecar; its absence or
	// malformation never fails indexing.
	if info, ok := readSidecar(path); ok {
		if info.Title != "" {
			v.Title = info.Title
		}
		v.Channel = info.Channel
		v.Description = info.Description
		v.AiredAt = info.Start
	}

	return sc.store.Upsert(ctx, v)
}

func readSidecar(mediaPath string) (ProgramInfo, bool) {
	raw, err := os.ReadFile(mediaPath + ".program.txt")
	if err != nil {
		return ProgramInfo{}, false
	}
	info, err := ParseProgramText(string(raw))
	if err != nil {
		return ProgramInfo{}, false
	}
	return info, true
}
