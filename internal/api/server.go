// Copyright (c) 2025 recviewd authors
// SPDX-License-Identifier: MIT

// Package api is the HTTP surface: playlist and segment delivery, catalog
// listing, session control and operational endpoints.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/recviewd/recviewd/internal/library"
	"github.com/recviewd/recviewd/internal/log"
)

// Engine is the playback orchestration surface the handlers depend on.
type Engine interface {
	Playlist(ctx context.Context, videoID, sessionKey string, clientHEVC bool) (string, error)
	Segment(ctx context.Context, videoID, sessionKey string, idx int) (string, error)
	EndSession(sessionKey string) error
}

// Catalog is the library lookup surface.
type Catalog interface {
	List(ctx context.Context) ([]library.Video, error)
	Get(ctx context.Context, id string) (library.Video, error)
}

// Subtitles converts a recording's subtitle track to WebVTT.
type Subtitles interface {
	Extract(ctx context.Context, videoID, inputPath string) (string, error)
}

// Rescanner triggers a full library rescan.
type Rescanner interface {
	ScanAll(ctx context.Context) (library.ScanResult, error)
}

// Options assembles the server's collaborators.
type Options struct {
	Engine    Engine
	Catalog   Catalog
	Subtitles Subtitles
	Rescanner Rescanner

	// RateLimitPerMinute bounds per-IP request rates; <= 0 disables.
	RateLimitPerMinute int
}

// Server carries handler state.
type Server struct {
	opts   Options
	logger zerolog.Logger
}

// New creates the server.
func New(opts Options) *Server {
	return &Server{
		opts:   opts,
		logger: log.WithComponent("api"),
	}
}

// Router builds the chi routing tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(requestLogger)
	r.Use(recoverer)
	if s.opts.RateLimitPerMinute > 0 {
		r.Use(rateLimit(s.opts.RateLimitPerMinute))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/videos", s.handleListVideos)
		r.Route("/videos/{videoID}", func(r chi.Router) {
			r.Get("/", s.handleGetVideo)
			r.Get("/playlist.m3u8", s.handlePlaylist)
			r.Get("/segments/{index}.ts", s.handleSegment)
			r.Get("/subtitle.vtt", s.handleSubtitle)
		})
		r.Delete("/sessions/{sessionID}", s.handleEndSession)
		r.Post("/library/rescan", s.handleRescan)
	})

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}
