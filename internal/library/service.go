// Copyright (c) 2025 recviewd authors
// SPDX-License-Identifier: MIT

package library

import (
	"context"
	"fmt"

	"github.com/recviewd/recviewd/internal/media/probe"
	"github.com/recviewd/recviewd/internal/transcode"
)

// Service exposes the catalog to the HTTP layer and resolves recordings for
// the playback engine. Keyframe data is not persisted in the catalog; the
// resolver fetches it from the probe cache at session start.
type Service struct {
	store  *Store
	prober probe.Prober
}

// NewService creates the library service.
func NewService(store *Store, prober probe.Prober) *Service {
	return &Service{store: store, prober: prober}
}

// List returns all catalog records.
func (s *Service) List(ctx context.Context) ([]Video, error) {
	return s.store.List(ctx)
}

// Get returns one catalog record.
func (s *Service) Get(ctx context.Context, id string) (Video, error) {
	return s.store.Get(ctx, id)
}

// Resolve implements transcode.SourceResolver.
func (s *Service) Resolve(ctx context.Context, videoID string) (transcode.VideoSource, error) {
	v, err := s.store.Get(ctx, videoID)
	if err != nil {
		return transcode.VideoSource{}, err
	}

	src := transcode.VideoSource{
		Path:            v.Path,
		DurationSeconds: v.DurationSeconds,
		VideoCodec:      v.VideoCodec,
		AudioCodec:      v.AudioCodec,
	}

	// The probe cache makes this a fast lookup after the initial scan; a
	// probe failure here only costs the keyframe-exact plan, not playback.
	res, err := s.prober.Probe(ctx, v.Path)
	if err != nil {
		return src, nil //nolint:nilerr // degrade to catalog metadata
	}
	src.Keyframes = res.Keyframes
	if src.VideoCodec == "" {
		src.VideoCodec = res.VideoCodec
	}
	if src.AudioCodec == "" {
		src.AudioCodec = res.AudioCodec
	}
	if src.DurationSeconds <= 0 {
		src.DurationSeconds = res.DurationSeconds
	}
	return src, nil
}

var _ transcode.SourceResolver = (*Service)(nil)

// Rescan runs one full scan through the given scanner. Exposed for the
// control surface.
func Rescan(ctx context.Context, sc *Scanner) error {
	if sc == nil {
		return fmt.Errorf("no scanner configured")
	}
	_, err := sc.ScanAll(ctx)
	return err
}
