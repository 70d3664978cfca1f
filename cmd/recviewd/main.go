// Copyright (c) 2025 recviewd authors
// SPDX-License-Identifier: MIT

// recviewd serves recorded TV over HLS: it catalogs recordings, decides
// per-session between stream copy and re-encode, and supervises the ffmpeg
// processes that produce segments on demand.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/recviewd/recviewd/internal/api"
	"github.com/recviewd/recviewd/internal/config"
	"github.com/recviewd/recviewd/internal/library"
	"github.com/recviewd/recviewd/internal/log"
	"github.com/recviewd/recviewd/internal/media/probe"
	"github.com/recviewd/recviewd/internal/media/subtitle"
	"github.com/recviewd/recviewd/internal/transcode"
	"github.com/recviewd/recviewd/internal/transcode/ffmpeg"
)

var (
	version   = "v0.1.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("recviewd %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log.Configure(log.Config{
		Level:   cfg.LogLevel,
		Service: "recviewd",
	})
	logger := log.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Fatal().Err(err).Msg("daemon failed")
	}
}

func run(ctx context.Context, cfg config.Config) error {
	logger := log.WithComponent("daemon")

	for _, dir := range []string{cfg.DataDir, cfg.HLSDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	// Probe cache: keyframe scans over multi-hour recordings survive restarts.
	cacheDB, err := badger.Open(badger.DefaultOptions(filepath.Join(cfg.DataDir, "probe-cache")).WithLogger(nil))
	if err != nil {
		return fmt.Errorf("open probe cache: %w", err)
	}
	defer func() { _ = cacheDB.Close() }()

	store, err := library.OpenStore(filepath.Join(cfg.DataDir, "catalog.db"))
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	prober := probe.NewCache(cacheDB, probe.NewFFprobe(cfg.FFprobeBin))
	catalog := library.NewService(store, prober)
	scanner := library.NewScanner(store, prober, cfg.MediaDir, 0)
	subtitles := subtitle.NewExtractor(cfg.FFmpegBin, filepath.Join(cfg.DataDir, "subtitles"))

	engine := transcode.NewEngine(transcode.Options{
		HLSRoot:               cfg.HLSDir,
		MaxEncodeSlots:        cfg.MaxEncodeSlots,
		SeekThresholdSegments: cfg.SeekThresholdSegments,
		SegmentDuration:       cfg.SegmentDuration,
		SegmentWaitTimeout:    cfg.SegmentWaitTimeout,
		IdleTTL:               cfg.IdleTTL,
		ReapInterval:          cfg.ReapInterval,
	}, ffmpeg.New(cfg.FFmpegBin), catalog)

	go engine.RunReaper(ctx)

	// Initial catalog fill and change tracking run in the background; the
	// HTTP surface is up immediately and serves whatever is indexed.
	go func() {
		if _, err := scanner.ScanAll(ctx); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("initial library scan failed")
		}
	}()
	go func() {
		watcher := library.NewWatcher(scanner, cfg.MediaDir, 0)
		if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Warn().Err(err).Msg("media watcher stopped")
		}
	}()

	server := api.New(api.Options{
		Engine:             engine,
		Catalog:            catalog,
		Subtitles:          subtitles,
		Rescanner:          scanner,
		RateLimitPerMinute: cfg.RateLimitRPS * 60,
	})

	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("listen", cfg.Listen).Str("version", version).Msg("recviewd listening")
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	}

	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown incomplete")
	}

	engine.Shutdown(shutdownCtx)
	return nil
}
