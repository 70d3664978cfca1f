package transcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecideMode(t *testing.T) {
	tests := []struct {
		name       string
		videoCodec string
		clientHEVC bool
		want       Mode
		wantErr    error
	}{
		{name: "h264 always copies", videoCodec: "h264", want: ModeCopy},
		{name: "avc1 tag copies", videoCodec: "avc1", want: ModeCopy},
		{name: "case insensitive", videoCodec: "H264", want: ModeCopy},
		{name: "hevc with capable client copies", videoCodec: "hevc", clientHEVC: true, want: ModeCopy},
		{name: "hevc without capable client encodes", videoCodec: "hevc", want: ModeEncode},
		{name: "h265 alias", videoCodec: "h265", clientHEVC: true, want: ModeCopy},
		{name: "hvc1 tag", videoCodec: "hvc1", clientHEVC: true, want: ModeCopy},
		{name: "mpeg2 encodes", videoCodec: "mpeg2video", want: ModeEncode},
		{name: "vc1 encodes even for hevc clients", videoCodec: "vc1", clientHEVC: true, want: ModeEncode},
		{name: "missing codec falls back to encode", videoCodec: "", want: ModeEncode, wantErr: ErrUnknownCodec},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecideMode(tt.videoCodec, "aac", tt.clientHEVC)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
