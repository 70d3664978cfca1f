// Copyright (c) 2025 recviewd authors
// SPDX-License-Identifier: MIT

package probe

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ParseStreamsJSON decodes ffprobe -show_format -show_streams output into a
// Result. The first video and first audio stream win.
func ParseStreamsJSON(data []byte) (Result, error) {
	var doc struct {
		Streams []struct {
			CodecType  string `json:"codec_type"`
			CodecName  string `json:"codec_name"`
			Width      int    `json:"width"`
			Height     int    `json:"height"`
			FieldOrder string `json:"field_order"`
			Duration   string `json:"duration"`
		} `json:"streams"`
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}

	if err := json.Unmarshal(data, &doc); err != nil {
		return Result{}, fmt.Errorf("decode ffprobe json: %w", err)
	}

	var res Result
	for _, s := range doc.Streams {
		switch s.CodecType {
		case "video":
			if res.VideoCodec != "" {
				continue
			}
			res.VideoCodec = s.CodecName
			res.Width = s.Width
			res.Height = s.Height
			// "progressive", "unknown" and empty all count as progressive;
			// broadcast TS streams report tt/bb/tb/bt when interlaced.
			if s.FieldOrder != "progressive" && s.FieldOrder != "unknown" && s.FieldOrder != "" {
				res.Interlaced = true
			}
			if res.DurationSeconds == 0 {
				if d, err := strconv.ParseFloat(s.Duration, 64); err == nil {
					res.DurationSeconds = d
				}
			}
		case "audio":
			if res.AudioCodec == "" {
				res.AudioCodec = s.CodecName
			}
		}
	}

	// Container duration is more reliable than per-stream duration for TS.
	if d, err := strconv.ParseFloat(doc.Format.Duration, 64); err == nil && d > 0 {
		res.DurationSeconds = d
	}

	if res.DurationSeconds <= 0 {
		return res, fmt.Errorf("no usable duration in probe output")
	}
	return res, nil
}

// ParseKeyframesCSV extracts keyframe timestamps from ffprobe packet output
// of the form "pts_time,flags" per line, e.g. "4.200000,K__". Non-key packets
// and unparseable lines are skipped.
func ParseKeyframesCSV(data []byte) ([]float64, error) {
	var keyframes []float64
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		parts := strings.Split(line, ",")
		if len(parts) < 2 {
			continue
		}
		if !strings.Contains(parts[1], "K") {
			continue
		}
		ts, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			// N/A pts on some corrupt packets
			continue
		}
		if ts < 0 {
			continue
		}
		keyframes = append(keyframes, ts)
	}

	if len(keyframes) == 0 {
		return nil, fmt.Errorf("no keyframes found")
	}
	return keyframes, nil
}
