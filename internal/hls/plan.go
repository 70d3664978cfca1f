// Copyright (c) 2025 recviewd authors
// SPDX-License-Identifier: MIT

// Package hls builds HLS media playlists for recording playback. A plan is
// derived once per session and never changes afterwards: the playlist a
// client received must stay valid while segment files appear asynchronously.
package hls

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrInvalidDuration is returned when no playlist can be built because the
// recording duration is unknown or zero.
var ErrInvalidDuration = errors.New("invalid or missing duration")

// PlanKind distinguishes how segment boundaries were derived.
type PlanKind string

const (
	// PlanKeyframeExact cuts segments exactly at source keyframes (remux).
	PlanKeyframeExact PlanKind = "keyframe_exact"
	// PlanVirtualFixed cuts uniform segments computed from total duration,
	// before any segment file exists.
	PlanVirtualFixed PlanKind = "virtual_fixed"
)

// Plan is an immutable segmentation of a recording's timeline.
type Plan struct {
	Kind PlanKind

	// starts[i] is the start time of segment i in seconds. starts[0] == 0.
	starts []float64

	// total is the recording duration in seconds.
	total float64
}

// KeyframeExact builds a plan whose boundaries are the supplied keyframe
// timestamps. Timestamps are sorted, deduplicated and clamped to the
// duration; a leading 0 is synthesized when the first keyframe is late.
func KeyframeExact(keyframes []float64, duration float64) (Plan, error) {
	if duration <= 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
		return Plan{}, ErrInvalidDuration
	}
	if len(keyframes) == 0 {
		return Plan{}, fmt.Errorf("keyframe exact plan needs at least one keyframe")
	}

	sorted := make([]float64, 0, len(keyframes)+1)
	sorted = append(sorted, keyframes...)
	sort.Float64s(sorted)

	starts := make([]float64, 0, len(sorted)+1)
	starts = append(starts, 0)
	const epsilon = 1e-3
	for _, t := range sorted {
		if t <= starts[len(starts)-1]+epsilon {
			continue // duplicate or non-monotonic
		}
		if t >= duration-epsilon {
			break // boundary at or past the end carries no segment
		}
		starts = append(starts, t)
	}

	return Plan{Kind: PlanKeyframeExact, starts: starts, total: duration}, nil
}

// VirtualFixed builds a uniform plan of ceil(duration/segmentDuration)
// segments, independent of any real encode progress.
func VirtualFixed(duration, segmentDuration float64) (Plan, error) {
	if duration <= 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
		return Plan{}, ErrInvalidDuration
	}
	if segmentDuration <= 0 {
		return Plan{}, fmt.Errorf("segment duration must be positive, got %v", segmentDuration)
	}

	count := int(math.Ceil(duration / segmentDuration))
	starts := make([]float64, count)
	for i := range starts {
		starts[i] = float64(i) * segmentDuration
	}

	return Plan{Kind: PlanVirtualFixed, starts: starts, total: duration}, nil
}

// SegmentCount returns the number of segments in the plan.
func (p Plan) SegmentCount() int {
	return len(p.starts)
}

// Duration returns the total timeline length in seconds.
func (p Plan) Duration() float64 {
	return p.total
}

// Contains reports whether idx addresses a segment of this plan.
func (p Plan) Contains(idx int) bool {
	return idx >= 0 && idx < len(p.starts)
}

// SegmentStart returns the start time of segment idx in seconds.
func (p Plan) SegmentStart(idx int) float64 {
	return p.starts[idx]
}

// SegmentDuration returns the length of segment idx in seconds. The final
// segment ends at the total duration.
func (p Plan) SegmentDuration(idx int) float64 {
	if idx == len(p.starts)-1 {
		return p.total - p.starts[idx]
	}
	return p.starts[idx+1] - p.starts[idx]
}

// TargetDuration returns the HLS target duration: the longest segment,
// rounded up to whole seconds.
func (p Plan) TargetDuration() int {
	var longest float64
	for i := range p.starts {
		if d := p.SegmentDuration(i); d > longest {
			longest = d
		}
	}
	return int(math.Ceil(longest))
}

// Boundaries returns the interior cut times (everything after the implicit
// leading zero), which is what the segmenting muxer needs.
func (p Plan) Boundaries() []float64 {
	if len(p.starts) <= 1 {
		return nil
	}
	out := make([]float64, len(p.starts)-1)
	copy(out, p.starts[1:])
	return out
}
