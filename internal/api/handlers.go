// Copyright (c) 2025 recviewd authors
// SPDX-License-Identifier: MIT

package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

// sessionKey extracts the opaque client session identifier: the X-Session-Id
// header wins, the "session" query parameter is the fallback (players cannot
// always set headers on media sub-requests).
func sessionKey(r *http.Request) string {
	if id := r.Header.Get("X-Session-Id"); id != "" {
		return id
	}
	return r.URL.Query().Get("session")
}

// clientSupportsHEVC reads the advertised codec capability from the "codec"
// query parameter, e.g. codec=hevc or codec=h264,hevc.
func clientSupportsHEVC(r *http.Request) bool {
	for _, c := range strings.Split(r.URL.Query().Get("codec"), ",") {
		switch strings.ToLower(strings.TrimSpace(c)) {
		case "hevc", "h265":
			return true
		}
	}
	return false
}

func (s *Server) handleListVideos(w http.ResponseWriter, r *http.Request) {
	videos, err := s.opts.Catalog.List(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("catalog list failed")
		writeTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"videos": videos})
}

func (s *Server) handleGetVideo(w http.ResponseWriter, r *http.Request) {
	v, err := s.opts.Catalog.Get(r.Context(), chi.URLParam(r, "videoID"))
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	key := sessionKey(r)
	if key == "" {
		writeBadRequest(w, "session key required (X-Session-Id header or session query)")
		return
	}

	body, err := s.opts.Engine.Playlist(r.Context(), chi.URLParam(r, "videoID"), key, clientSupportsHEVC(r))
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write([]byte(body))
}

func (s *Server) handleSegment(w http.ResponseWriter, r *http.Request) {
	key := sessionKey(r)
	if key == "" {
		writeBadRequest(w, "session key required")
		return
	}

	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeBadRequest(w, "segment index must be an integer")
		return
	}

	path, err := s.opts.Engine.Segment(r.Context(), chi.URLParam(r, "videoID"), key, idx)
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}

	w.Header().Set("Content-Type", "video/mp2t")
	w.Header().Set("Cache-Control", "no-store")
	http.ServeFile(w, r, path)
}

func (s *Server) handleSubtitle(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "videoID")
	v, err := s.opts.Catalog.Get(r.Context(), videoID)
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}

	path, err := s.opts.Subtitles.Extract(r.Context(), videoID, v.Path)
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/vtt")
	http.ServeFile(w, r, path)
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	if err := s.opts.Engine.EndSession(chi.URLParam(r, "sessionID")); err != nil {
		writeTaxonomyError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRescan(w http.ResponseWriter, r *http.Request) {
	if s.opts.Rescanner == nil {
		writeJSON(w, http.StatusNotImplemented, errorBody{Error: "rescan_unavailable"})
		return
	}
	result, err := s.opts.Rescanner.ScanAll(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("rescan failed")
		writeTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"indexed": result.Indexed,
		"removed": result.Removed,
		"errors":  result.Errors,
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
