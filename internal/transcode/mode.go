// Copyright (c) 2025 recviewd authors
// SPDX-License-Identifier: MIT

package transcode

import "strings"

// Mode is the per-session playback strategy, fixed at playlist-request time.
type Mode string

const (
	// ModeCopy remuxes the source stream without re-encoding.
	ModeCopy Mode = "copy"
	// ModeEncode re-encodes to H.264 for clients that cannot play the
	// source natively.
	ModeEncode Mode = "encode"
)

// DecideMode resolves copy-vs-encode from the source codecs and the client's
// declared H.265 capability. Pure function, no retries.
//
// Copy when the source video is H.264, or H.265 on a capable client.
// Everything else (MPEG-2, H.265 on an incapable client) is encoded.
// Missing video codec metadata returns ModeEncode with ErrUnknownCodec: the
// conservative fallback never blocks playback on bad metadata.
func DecideMode(videoCodec, audioCodec string, clientHEVC bool) (Mode, error) {
	v := normalizeCodec(videoCodec)
	if v == "" {
		return ModeEncode, ErrUnknownCodec
	}

	switch v {
	case "h264", "avc", "avc1":
		return ModeCopy, nil
	case "h265", "hevc", "hvc1", "hev1":
		if clientHEVC {
			return ModeCopy, nil
		}
		return ModeEncode, nil
	default:
		return ModeEncode, nil
	}
}

func normalizeCodec(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
