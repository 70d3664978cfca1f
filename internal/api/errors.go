// Copyright (c) 2025 recviewd authors
// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/recviewd/recviewd/internal/hls"
	"github.com/recviewd/recviewd/internal/library"
	"github.com/recviewd/recviewd/internal/media/subtitle"
	"github.com/recviewd/recviewd/internal/transcode"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// writeTaxonomyError maps domain errors onto HTTP statuses:
// full encode pool 503, wait deadline 504, failed transcode 410, terminated
// session 409, unknown resources 404.
func writeTaxonomyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, transcode.ErrSlotsExhausted):
		w.Header().Set("Retry-After", "10")
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "slots_exhausted",
			Detail: "all transcode slots are busy, try again later"})
	case errors.Is(err, transcode.ErrSegmentTimeout):
		writeJSON(w, http.StatusGatewayTimeout, errorBody{Error: "segment_timeout",
			Detail: "segment was not produced in time, retry the request"})
	case errors.Is(err, transcode.ErrTranscodeFailed):
		writeJSON(w, http.StatusGone, errorBody{Error: "transcode_failed",
			Detail: "media process failed repeatedly, session is closed"})
	case errors.Is(err, transcode.ErrSessionTerminated):
		writeJSON(w, http.StatusConflict, errorBody{Error: "session_superseded",
			Detail: "session was terminated or taken over"})
	case errors.Is(err, transcode.ErrNoSession):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "no_session",
			Detail: "no session for this key, request the playlist first"})
	case errors.Is(err, transcode.ErrInvalidSegment):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "invalid_segment"})
	case errors.Is(err, library.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not_found"})
	case errors.Is(err, hls.ErrInvalidDuration):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "invalid_duration",
			Detail: "recording has no usable duration"})
	case errors.Is(err, subtitle.ErrNoSubtitles):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "no_subtitles"})
	case errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusGatewayTimeout, errorBody{Error: "timeout"})
	case errors.Is(err, context.Canceled):
		// Client went away; the status is never seen but keeps logs honest.
		writeJSON(w, 499, errorBody{Error: "client_closed_request"})
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal"})
	}
}

func writeBadRequest(w http.ResponseWriter, detail string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad_request", Detail: detail})
}
