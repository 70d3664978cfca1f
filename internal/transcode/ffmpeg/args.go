// Copyright (c) 2025 recviewd authors
// SPDX-License-Identifier: MIT

package ffmpeg

import (
	"fmt"
	"path/filepath"

	"github.com/recviewd/recviewd/internal/hls"
	"github.com/recviewd/recviewd/internal/transcode"
)

const (
	// segmentPattern must produce the same names the engine expects via
	// transcode.SegmentFileName.
	segmentPattern = "%06d.ts"

	// segmentListName is the csv the segment muxer appends one line to per
	// finished segment. The completion watcher tails it.
	segmentListName = "segments.csv"
)

// boundaryEpsilon absorbs float noise when shifting plan boundaries onto the
// output timeline.
const boundaryEpsilon = 1e-3

// BuildArgs assembles the ffmpeg argv for one subprocess generation. Pure so
// the exact invocation is testable without spawning anything.
func BuildArgs(spec transcode.JobSpec) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "warning",
		"-nostdin",
	}

	// Input seek: coarse jump before the demuxer, exact output timestamps
	// start at zero from the anchor.
	if spec.StartOffset > 0 {
		args = append(args, "-ss", fmt.Sprintf("%.6f", spec.StartOffset))
	}
	args = append(args, "-i", spec.InputPath)

	switch spec.Mode {
	case transcode.ModeCopy:
		args = append(args,
			"-map", "0:v:0",
			"-map", "0:a:0?",
			"-c", "copy",
			"-avoid_negative_ts", "make_zero",
		)
	default:
		args = append(args,
			"-map", "0:v:0",
			"-map", "0:a:0?",
			"-c:v", "libx264",
			"-preset", "veryfast",
			"-crf", "23",
			"-pix_fmt", "yuv420p",
			"-sc_threshold", "0",
			"-force_key_frames", fmt.Sprintf("expr:gte(t,n_forced*%.3f)", spec.Plan.SegmentDuration(0)),
			"-c:a", "aac",
			"-b:a", "192k",
			"-ac", "2",
		)
	}

	args = append(args,
		"-f", "segment",
		"-segment_format", "mpegts",
		"-segment_start_number", fmt.Sprintf("%d", spec.AnchorSegment),
		"-segment_list", filepath.Join(spec.OutputDir, segmentListName),
		"-segment_list_type", "csv",
	)

	if times := segmentTimes(spec.Plan, spec.StartOffset); times != "" {
		// Keyframe-exact plans: cut at the promised boundaries, shifted
		// onto the output timeline.
		args = append(args, "-segment_times", times)
	} else {
		args = append(args, "-segment_time", fmt.Sprintf("%.3f", spec.Plan.SegmentDuration(0)))
	}

	args = append(args, filepath.Join(spec.OutputDir, segmentPattern))
	return args
}

// segmentTimes renders the interior cut points after the start offset, or ""
// when the plan has none (virtual plans use a fixed segment_time instead).
func segmentTimes(plan hls.Plan, startOffset float64) string {
	if plan.Kind != hls.PlanKeyframeExact {
		return ""
	}
	out := ""
	for _, b := range plan.Boundaries() {
		rel := b - startOffset
		if rel <= boundaryEpsilon {
			continue
		}
		if out != "" {
			out += ","
		}
		out += fmt.Sprintf("%.3f", rel)
	}
	return out
}
