// Copyright (c) 2025 recviewd authors
// SPDX-License-Identifier: MIT

// Package config loads and validates the daemon configuration from the
// environment. All knobs have conservative defaults so a bare
// `RECVIEWD_MEDIA_DIR=/recordings recviewd` is a working deployment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config is the immutable runtime configuration snapshot.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string

	// MediaDir is the root directory holding recordings. Required.
	MediaDir string

	// DataDir holds the library database and probe cache.
	DataDir string

	// HLSDir is the scratch root for per-session segment output.
	HLSDir string

	// FFmpegBin and FFprobeBin override the binaries found on PATH.
	FFmpegBin  string
	FFprobeBin string

	// MaxEncodeSlots bounds concurrent re-encoding sessions. Remux (copy)
	// sessions are not counted against this budget.
	MaxEncodeSlots int

	// SeekThresholdSegments is the forward distance (in segments) up to
	// which a request waits for the running process instead of restarting it.
	SeekThresholdSegments int

	// SegmentDuration is the uniform segment length for virtual playlists.
	SegmentDuration time.Duration

	// SegmentWaitTimeout bounds how long a segment request may block waiting
	// for the encoder to catch up.
	SegmentWaitTimeout time.Duration

	// IdleTTL is the inactivity window after which a session is reaped.
	IdleTTL time.Duration

	// ReapInterval is the reaper sweep period.
	ReapInterval time.Duration

	// RateLimitRPS caps per-client request rates on the API surface.
	RateLimitRPS int

	// LogLevel is the zerolog level name.
	LogLevel string
}

// FromEnv builds a Config from RECVIEWD_* environment variables.
func FromEnv() (Config, error) {
	cfg := Config{
		Listen:                envString("RECVIEWD_LISTEN", ":8080"),
		MediaDir:              os.Getenv("RECVIEWD_MEDIA_DIR"),
		DataDir:               envString("RECVIEWD_DATA_DIR", "/var/lib/recviewd"),
		HLSDir:                os.Getenv("RECVIEWD_HLS_DIR"),
		FFmpegBin:             envString("RECVIEWD_FFMPEG", "ffmpeg"),
		FFprobeBin:            envString("RECVIEWD_FFPROBE", "ffprobe"),
		MaxEncodeSlots:        envInt("RECVIEWD_MAX_ENCODE_SLOTS", 2),
		SeekThresholdSegments: envInt("RECVIEWD_SEEK_THRESHOLD_SEGMENTS", 2),
		SegmentDuration:       envSeconds("RECVIEWD_SEGMENT_DURATION", 10*time.Second),
		SegmentWaitTimeout:    envSeconds("RECVIEWD_SEGMENT_WAIT_TIMEOUT", 30*time.Second),
		IdleTTL:               envSeconds("RECVIEWD_IDLE_TTL", 2*time.Hour),
		ReapInterval:          envSeconds("RECVIEWD_REAP_INTERVAL", 5*time.Minute),
		RateLimitRPS:          envInt("RECVIEWD_RATE_LIMIT_RPS", 60),
		LogLevel:              envString("RECVIEWD_LOG_LEVEL", "info"),
	}

	if cfg.HLSDir == "" {
		cfg.HLSDir = filepath.Join(cfg.DataDir, "hls")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks invariants the rest of the daemon relies on.
func (c Config) Validate() error {
	if c.MediaDir == "" {
		return fmt.Errorf("RECVIEWD_MEDIA_DIR is required")
	}
	if !filepath.IsAbs(c.MediaDir) {
		return fmt.Errorf("media dir must be absolute: %q", c.MediaDir)
	}
	if c.MaxEncodeSlots < 1 {
		return fmt.Errorf("max encode slots must be >= 1, got %d", c.MaxEncodeSlots)
	}
	if c.SeekThresholdSegments < 1 {
		return fmt.Errorf("seek threshold must be >= 1 segment, got %d", c.SeekThresholdSegments)
	}
	if c.SegmentDuration < time.Second {
		return fmt.Errorf("segment duration must be >= 1s, got %s", c.SegmentDuration)
	}
	if c.SegmentWaitTimeout <= 0 {
		return fmt.Errorf("segment wait timeout must be positive, got %s", c.SegmentWaitTimeout)
	}
	if c.IdleTTL <= 0 {
		return fmt.Errorf("idle TTL must be positive, got %s", c.IdleTTL)
	}
	if c.ReapInterval <= 0 {
		return fmt.Errorf("reap interval must be positive, got %s", c.ReapInterval)
	}
	return nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// envSeconds reads a whole-second integer value, matching the documented
// *_SECONDS convention of the deployment guide.
func envSeconds(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return time.Duration(n) * time.Second
}
