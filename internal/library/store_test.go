package library

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleVideo(path string, scannedAt time.Time) Video {
	return Video{
		ID:              VideoID(path),
		Path:            path,
		Title:           "Evening News",
		Channel:         "NHK",
		DurationSeconds: 1800,
		VideoCodec:      "mpeg2video",
		AudioCodec:      "aac",
		Width:           1440,
		Height:          1080,
		Interlaced:      true,
		AiredAt:         time.Date(2024, 4, 1, 19, 0, 0, 0, time.Local),
		ScannedAt:       scannedAt,
	}
}

func TestStoreUpsertAndGet(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	v := sampleVideo("/media/news.ts", now)
	require.NoError(t, store.Upsert(ctx, v))

	got, err := store.Get(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, v.Title, got.Title)
	assert.Equal(t, v.Path, got.Path)
	assert.True(t, got.Interlaced)
	assert.Equal(t, v.AiredAt.Unix(), got.AiredAt.Unix())

	// Upsert refreshes in place.
	v.Title = "Evening News (repeat)"
	require.NoError(t, store.Upsert(ctx, v))
	got, err = store.Get(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, "Evening News (repeat)", got.Title)
}

func TestStoreGetNotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStoreListOrdering(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	older := sampleVideo("/media/a.ts", now)
	older.AiredAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local)
	newer := sampleVideo("/media/b.ts", now)
	newer.AiredAt = time.Date(2024, 6, 1, 0, 0, 0, 0, time.Local)

	require.NoError(t, store.Upsert(ctx, older))
	require.NoError(t, store.Upsert(ctx, newer))

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID, "newest first")
}

func TestStoreDeleteMissing(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	old := sampleVideo("/media/old.ts", time.Now().Add(-time.Hour))
	require.NoError(t, store.Upsert(ctx, old))

	cutoff := time.Now()
	fresh := sampleVideo("/media/fresh.ts", cutoff.Add(time.Second))
	require.NoError(t, store.Upsert(ctx, fresh))

	removed, err := store.DeleteMissing(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = store.Get(ctx, old.ID)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = store.Get(ctx, fresh.ID)
	require.NoError(t, err)
}
