// Copyright (c) 2025 recviewd authors
// SPDX-License-Identifier: MIT

package hls

import (
	"bytes"
	"fmt"
	"io"
)

// WriteMediaPlaylist renders a VOD media playlist for the plan. segmentURI
// maps a segment index to the URI the client should fetch.
func WriteMediaPlaylist(w io.Writer, p Plan, segmentURI func(idx int) string) error {
	buf := &bytes.Buffer{}
	buf.WriteString("#EXTM3U\n")
	buf.WriteString("#EXT-X-VERSION:3\n")
	fmt.Fprintf(buf, "#EXT-X-TARGETDURATION:%d\n", p.TargetDuration())
	buf.WriteString("#EXT-X-MEDIA-SEQUENCE:0\n")
	buf.WriteString("#EXT-X-PLAYLIST-TYPE:VOD\n")

	for i := 0; i < p.SegmentCount(); i++ {
		fmt.Fprintf(buf, "#EXTINF:%.3f,\n", p.SegmentDuration(i))
		buf.WriteString(segmentURI(i) + "\n")
	}

	buf.WriteString("#EXT-X-ENDLIST\n")
	_, err := io.Copy(w, buf)
	return err
}

// RenderMediaPlaylist is the string-returning form of WriteMediaPlaylist.
func RenderMediaPlaylist(p Plan, segmentURI func(idx int) string) string {
	var buf bytes.Buffer
	_ = WriteMediaPlaylist(&buf, p, segmentURI)
	return buf.String()
}
