package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recviewd/recviewd/internal/library"
	"github.com/recviewd/recviewd/internal/transcode"
)

type fakeEngine struct {
	playlistBody string
	playlistErr  error
	segmentPath  string
	segmentErr   error
	endErr       error

	gotVideoID string
	gotSession string
	gotHEVC    bool
	gotIndex   int
}

func (e *fakeEngine) Playlist(_ context.Context, videoID, sessionKey string, clientHEVC bool) (string, error) {
	e.gotVideoID, e.gotSession, e.gotHEVC = videoID, sessionKey, clientHEVC
	return e.playlistBody, e.playlistErr
}

func (e *fakeEngine) Segment(_ context.Context, videoID, sessionKey string, idx int) (string, error) {
	e.gotVideoID, e.gotSession, e.gotIndex = videoID, sessionKey, idx
	return e.segmentPath, e.segmentErr
}

func (e *fakeEngine) EndSession(sessionKey string) error {
	e.gotSession = sessionKey
	return e.endErr
}

type fakeCatalog struct {
	videos []library.Video
	err    error
}

func (c *fakeCatalog) List(context.Context) ([]library.Video, error) {
	return c.videos, c.err
}

func (c *fakeCatalog) Get(_ context.Context, id string) (library.Video, error) {
	if c.err != nil {
		return library.Video{}, c.err
	}
	for _, v := range c.videos {
		if v.ID == id {
			return v, nil
		}
	}
	return library.Video{}, library.ErrNotFound
}

type fakeSubtitles struct {
	path string
	err  error
}

func (s *fakeSubtitles) Extract(context.Context, string, string) (string, error) {
	return s.path, s.err
}

func newTestServer(engine *fakeEngine, catalog *fakeCatalog) http.Handler {
	return New(Options{
		Engine:    engine,
		Catalog:   catalog,
		Subtitles: &fakeSubtitles{},
	}).Router()
}

func TestPlaylistHandler(t *testing.T) {
	engine := &fakeEngine{playlistBody: "#EXTM3U\n#EXT-X-ENDLIST\n"}
	srv := newTestServer(engine, &fakeCatalog{})

	req := httptest.NewRequest(http.MethodGet, "/api/videos/abc/playlist.m3u8?codec=h264,hevc", nil)
	req.Header.Set("X-Session-Id", "viewer-1")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.apple.mpegurl", rec.Header().Get("Content-Type"))
	assert.Equal(t, engine.playlistBody, rec.Body.String())
	assert.Equal(t, "abc", engine.gotVideoID)
	assert.Equal(t, "viewer-1", engine.gotSession)
	assert.True(t, engine.gotHEVC)
}

func TestPlaylistHandlerSessionFromQuery(t *testing.T) {
	engine := &fakeEngine{playlistBody: "#EXTM3U\n"}
	srv := newTestServer(engine, &fakeCatalog{})

	req := httptest.NewRequest(http.MethodGet, "/api/videos/abc/playlist.m3u8?session=q-key", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "q-key", engine.gotSession)
	assert.False(t, engine.gotHEVC)
}

func TestPlaylistHandlerMissingSession(t *testing.T) {
	srv := newTestServer(&fakeEngine{}, &fakeCatalog{})

	req := httptest.NewRequest(http.MethodGet, "/api/videos/abc/playlist.m3u8", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSegmentHandlerServesFile(t *testing.T) {
	seg := filepath.Join(t.TempDir(), "000003.ts")
	require.NoError(t, os.WriteFile(seg, []byte("mpegts-bytes"), 0o644))

	engine := &fakeEngine{segmentPath: seg}
	srv := newTestServer(engine, &fakeCatalog{})

	req := httptest.NewRequest(http.MethodGet, "/api/videos/abc/segments/3.ts?session=viewer-1", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "video/mp2t", rec.Header().Get("Content-Type"))
	assert.Equal(t, "mpegts-bytes", rec.Body.String())
	assert.Equal(t, 3, engine.gotIndex)
}

func TestSegmentHandlerErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"slots exhausted", transcode.ErrSlotsExhausted, http.StatusServiceUnavailable},
		{"segment timeout", transcode.ErrSegmentTimeout, http.StatusGatewayTimeout},
		{"transcode failed", transcode.ErrTranscodeFailed, http.StatusGone},
		{"session superseded", transcode.ErrSessionTerminated, http.StatusConflict},
		{"no session", transcode.ErrNoSession, http.StatusNotFound},
		{"invalid segment", transcode.ErrInvalidSegment, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(&fakeEngine{segmentErr: tt.err}, &fakeCatalog{})

			req := httptest.NewRequest(http.MethodGet, "/api/videos/abc/segments/0.ts?session=v", nil)
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, req)

			assert.Equal(t, tt.code, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestSegmentHandlerBadIndex(t *testing.T) {
	srv := newTestServer(&fakeEngine{}, &fakeCatalog{})

	req := httptest.NewRequest(http.MethodGet, "/api/videos/abc/segments/nan.ts?session=v", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListVideosHandler(t *testing.T) {
	catalog := &fakeCatalog{videos: []library.Video{
		{ID: "a", Title: "News"},
		{ID: "b", Title: "Drama"},
	}}
	srv := newTestServer(&fakeEngine{}, catalog)

	req := httptest.NewRequest(http.MethodGet, "/api/videos", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Videos []library.Video `json:"videos"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Videos, 2)
}

func TestGetVideoHandlerNotFound(t *testing.T) {
	srv := newTestServer(&fakeEngine{}, &fakeCatalog{})

	req := httptest.NewRequest(http.MethodGet, "/api/videos/nope/", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEndSessionHandler(t *testing.T) {
	engine := &fakeEngine{}
	srv := newTestServer(engine, &fakeCatalog{})

	req := httptest.NewRequest(http.MethodDelete, "/api/sessions/viewer-1", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "viewer-1", engine.gotSession)
}

func TestEndSessionHandlerUnknown(t *testing.T) {
	srv := newTestServer(&fakeEngine{endErr: transcode.ErrNoSession}, &fakeCatalog{})

	req := httptest.NewRequest(http.MethodDelete, "/api/sessions/ghost", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(&fakeEngine{}, &fakeCatalog{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
