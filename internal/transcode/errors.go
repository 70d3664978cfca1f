// Copyright (c) 2025 recviewd authors
// SPDX-License-Identifier: MIT

package transcode

import "errors"

// Failure taxonomy of the orchestration engine. Handlers map these onto
// HTTP statuses; nothing below ever aborts a sibling session.
var (
	// ErrUnknownCodec signals missing codec metadata. Recovered locally by
	// defaulting to encode mode; surfaced only in logs.
	ErrUnknownCodec = errors.New("unknown source codec")

	// ErrSlotsExhausted rejects a new encode session when the slot pool is
	// full. Never queued, never retried server-side.
	ErrSlotsExhausted = errors.New("no free encode slot")

	// ErrSegmentTimeout reports that a segment wait exceeded its bound.
	// Retryable: the client may simply re-request.
	ErrSegmentTimeout = errors.New("segment wait timed out")

	// ErrTranscodeFailed marks a session whose subprocess crashed twice
	// from the same anchor. Fatal for that session only.
	ErrTranscodeFailed = errors.New("transcode failed")

	// ErrNoSession is returned for segment requests without a prior
	// playlist request (no session exists for the key).
	ErrNoSession = errors.New("no such session")

	// ErrInvalidSegment rejects a segment index outside the issued plan.
	ErrInvalidSegment = errors.New("segment index outside playlist")

	// ErrSessionTerminated is returned for requests against a session that
	// was explicitly ended or reaped.
	ErrSessionTerminated = errors.New("session terminated")
)
