package hls

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestRenderMediaPlaylist_Golden(t *testing.T) {
	p, err := KeyframeExact([]float64{0, 4.2, 9.8, 15.0}, 18.0)
	require.NoError(t, err)

	got := RenderMediaPlaylist(p, func(idx int) string {
		return fmt.Sprintf("segments/%d.ts?session=abc", idx)
	})

	want := strings.Join([]string{
		"#EXTM3U",
		"#EXT-X-VERSION:3",
		"#EXT-X-TARGETDURATION:6",
		"#EXT-X-MEDIA-SEQUENCE:0",
		"#EXT-X-PLAYLIST-TYPE:VOD",
		"#EXTINF:4.200,",
		"segments/0.ts?session=abc",
		"#EXTINF:5.600,",
		"segments/1.ts?session=abc",
		"#EXTINF:5.200,",
		"segments/2.ts?session=abc",
		"#EXTINF:3.000,",
		"segments/3.ts?session=abc",
		"#EXT-X-ENDLIST",
		"",
	}, "\n")

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("playlist mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderMediaPlaylist_Stable(t *testing.T) {
	// Once issued, the playlist body for a plan must never change.
	p, err := VirtualFixed(125, 10)
	require.NoError(t, err)

	uri := func(idx int) string { return fmt.Sprintf("%06d.ts", idx) }
	first := RenderMediaPlaylist(p, uri)
	second := RenderMediaPlaylist(p, uri)
	require.Equal(t, first, second)
	require.Equal(t, 13, strings.Count(first, "#EXTINF:"))
}
