package library

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recviewd/recviewd/internal/media/probe"
)

type stubProber struct {
	results map[string]probe.Result
}

func (p *stubProber) Probe(_ context.Context, path string) (probe.Result, error) {
	res, ok := p.results[path]
	if !ok {
		return probe.Result{}, os.ErrNotExist
	}
	return res, nil
}

func TestScanAllIndexesRecordings(t *testing.T) {
	root := t.TempDir()
	recording := filepath.Join(root, "news.ts")
	require.NoError(t, os.WriteFile(recording, []byte("ts-data"), 0o644))
	require.NoError(t, os.WriteFile(recording+".program.txt",
		[]byte("2024/04/01(月) 19:00～19:30\nイブニングニュース\nNHK総合\n"), 0o644))
	// Non-media files are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644))

	store := openTestStore(t)
	prober := &stubProber{results: map[string]probe.Result{
		recording: {VideoCodec: "mpeg2video", AudioCodec: "aac", DurationSeconds: 1800, Interlaced: true},
	}}

	sc := NewScanner(store, prober, root, 100)
	result, err := sc.ScanAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Indexed)
	assert.Equal(t, 0, result.Errors)

	v, err := store.Get(context.Background(), VideoID(recording))
	require.NoError(t, err)
	assert.Equal(t, "イブニングニュース", v.Title, "sidecar title wins over filename")
	assert.Equal(t, "NHK総合", v.Channel)
	assert.Equal(t, "mpeg2video", v.VideoCodec)
	assert.InDelta(t, 1800, v.DurationSeconds, 1e-9)
}

func TestScanAllFallsBackToFilenameTitle(t *testing.T) {
	root := t.TempDir()
	recording := filepath.Join(root, "documentary.mkv")
	require.NoError(t, os.WriteFile(recording, []byte("mkv"), 0o644))

	store := openTestStore(t)
	prober := &stubProber{results: map[string]probe.Result{
		recording: {VideoCodec: "h264", DurationSeconds: 3600},
	}}

	_, err := NewScanner(store, prober, root, 100).ScanAll(context.Background())
	require.NoError(t, err)

	v, err := store.Get(context.Background(), VideoID(recording))
	require.NoError(t, err)
	assert.Equal(t, "documentary", v.Title)
}

func TestScanAllRemovesVanishedRecordings(t *testing.T) {
	root := t.TempDir()
	recording := filepath.Join(root, "keep.ts")
	require.NoError(t, os.WriteFile(recording, []byte("ts"), 0o644))

	store := openTestStore(t)
	prober := &stubProber{results: map[string]probe.Result{
		recording: {VideoCodec: "h264", DurationSeconds: 60},
	}}
	sc := NewScanner(store, prober, root, 100)

	_, err := sc.ScanAll(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.Remove(recording))
	result, err := sc.ScanAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Removed)

	_, err = store.Get(context.Background(), VideoID(recording))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestScanAllProbeFailureCounted(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "broken.ts"), []byte("x"), 0o644))

	store := openTestStore(t)
	sc := NewScanner(store, &stubProber{results: map[string]probe.Result{}}, root, 100)

	result, err := sc.ScanAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Indexed)
	assert.Equal(t, 1, result.Errors)
}
