// SPDX-License-Identifier: MIT

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamhaus/vidserve/internal/config"
	"github.com/streamhaus/vidserve/internal/media"
	"github.com/streamhaus/vidserve/internal/storage"
	"github.com/streamhaus/vidserve/internal/transcode"
)

type fakeTranscoder struct {
	mu      sync.Mutex
	ensured []string
}

func (f *fakeTranscoder) Ensure(_ context.Context, id string) (*transcode.Run, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensured = append(f.ensured, id)
	return &transcode.Run{ID: id}, true
}

func (f *fakeTranscoder) ensuredIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ensured...)
}

type testEnv struct {
	handler    http.Handler
	store      *media.Store
	files      *storage.Repository
	tree       transcode.Tree
	transcoder *fakeTranscoder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	store, err := media.NewStore(filepath.Join(dir, "meta.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	files, err := storage.NewRepository(filepath.Join(dir, "uploads"))
	require.NoError(t, err)

	tree, err := transcode.NewTree(filepath.Join(dir, "hls"))
	require.NoError(t, err)

	transcoder := &fakeTranscoder{}
	cfg := config.AppConfig{
		Listen:         "127.0.0.1:0",
		ChunkSize:      config.DefaultChunkSize,
		MaxUploadBytes: 64 << 20,
	}
	srv := New(cfg, store, files, transcoder, tree)
	return &testEnv{
		handler:    srv.Handler(),
		store:      store,
		files:      files,
		tree:       tree,
		transcoder: transcoder,
	}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// seedItem stores a payload and persists metadata for it, bypassing the
// upload endpoint.
func (e *testEnv) seedItem(t *testing.T, payload []byte, status media.Status) media.Item {
	t.Helper()
	stored, err := e.files.Store(bytes.NewReader(payload), "source.mp4")
	require.NoError(t, err)
	thumb, err := e.files.Store(bytes.NewReader([]byte("\x89PNG\r\n\x1a\n")), "thumb.png")
	require.NoError(t, err)
	item, err := e.store.Save(context.Background(), media.Item{
		ID:            "11111111-2222-3333-4444-555555555555",
		Title:         "seeded",
		ContentType:   "video/mp4",
		FilePath:      stored,
		ThumbnailPath: thumb,
		Status:        status,
	})
	require.NoError(t, err)
	return item
}

func multipartUpload(t *testing.T, title, description string, video, thumb []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if title != "" {
		require.NoError(t, mw.WriteField("title", title))
	}
	if description != "" {
		require.NoError(t, mw.WriteField("description", description))
	}
	if video != nil {
		fw, err := mw.CreateFormFile("videoFile", "clip.mp4")
		require.NoError(t, err)
		_, err = fw.Write(video)
		require.NoError(t, err)
	}
	if thumb != nil {
		fw, err := mw.CreateFormFile("thumbnailFile", "cover.png")
		require.NoError(t, err)
		_, err = fw.Write(thumb)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/videos/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadListMetadata(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, multipartUpload(t, "holiday", "beach clips", []byte("fake mp4 bytes"), []byte("fake png")))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created videoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "holiday", created.Title)
	assert.Equal(t, "beach clips", created.Description)
	assert.Equal(t, string(media.StatusUploaded), created.Status)
	assert.Equal(t, []string{created.ID}, env.transcoder.ensuredIDs())

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/videos/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []videoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, created.ID, listed[0].ID)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/videos/"+created.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var fetched videoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fetched))
	assert.Equal(t, created, fetched)
}

func TestUploadValidation(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name string
		req  *http.Request
	}{
		{"missing title", multipartUpload(t, "", "", []byte("v"), []byte("t"))},
		{"missing video", multipartUpload(t, "x", "", nil, []byte("t"))},
		{"missing thumbnail", multipartUpload(t, "x", "", []byte("v"), nil)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, tc.req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.Empty(t, env.transcoder.ensuredIDs())
}

func TestMetadataNotFound(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/videos/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStreamDefaultWindow(t *testing.T) {
	env := newTestEnv(t)
	payload := bytes.Repeat([]byte{0xAB}, 5*1024*1024)
	item := env.seedItem(t, payload, media.StatusReady)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/videos/stream/"+item.ID, nil))
	require.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	assert.Equal(t, "bytes", rec.Header().Get("Accept-Ranges"))
	assert.Equal(t, fmt.Sprintf("bytes 0-%d/%d", config.DefaultChunkSize-1, len(payload)), rec.Header().Get("Content-Range"))
	assert.Equal(t, int(config.DefaultChunkSize), rec.Body.Len())
	assert.Equal(t, payload[:config.DefaultChunkSize], rec.Body.Bytes())
}

func TestStreamOpenEndedRange(t *testing.T) {
	env := newTestEnv(t)
	payload := bytes.Repeat([]byte{0xCD}, 5*1024*1024)
	item := env.seedItem(t, payload, media.StatusReady)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/videos/stream/"+item.ID, nil)
	req.Header.Set("Range", "bytes=5000000-")
	rec := env.do(t, req)
	require.Equal(t, http.StatusPartialContent, rec.Code)

	want := len(payload) - 5000000
	assert.Equal(t, fmt.Sprintf("bytes 5000000-%d/%d", len(payload)-1, len(payload)), rec.Header().Get("Content-Range"))
	assert.Equal(t, want, rec.Body.Len())
}

func TestStreamMidFileRangeCapped(t *testing.T) {
	env := newTestEnv(t)
	payload := bytes.Repeat([]byte{0x11}, 5*1024*1024)
	item := env.seedItem(t, payload, media.StatusReady)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/videos/stream/"+item.ID, nil)
	req.Header.Set("Range", fmt.Sprintf("bytes=100-%d", len(payload)-1))
	rec := env.do(t, req)
	require.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, int(config.DefaultChunkSize), rec.Body.Len())
	assert.Equal(t, fmt.Sprintf("bytes 100-%d/%d", 100+config.DefaultChunkSize-1, len(payload)), rec.Header().Get("Content-Range"))
}

func TestStreamUnsatisfiableRange(t *testing.T) {
	env := newTestEnv(t)
	payload := []byte("short payload")
	item := env.seedItem(t, payload, media.StatusReady)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/videos/stream/"+item.ID, nil)
	req.Header.Set("Range", "bytes=999999-")
	rec := env.do(t, req)
	require.Equal(t, http.StatusRequestedRangeNotSatisfiable, rec.Code)
	assert.Equal(t, fmt.Sprintf("bytes */%d", len(payload)), rec.Header().Get("Content-Range"))
}

func TestStreamEmptyFile(t *testing.T) {
	env := newTestEnv(t)
	item := env.seedItem(t, []byte{}, media.StatusReady)

	// No Range: an empty file has no byte window to describe, so the response
	// is a plain empty 200 rather than a partial one.
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/videos/stream/"+item.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("Content-Length"))
	assert.Empty(t, rec.Header().Get("Content-Range"))
	assert.Zero(t, rec.Body.Len())

	// An explicit Range can never be satisfied against zero bytes.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/videos/stream/"+item.ID, nil)
	req.Header.Set("Range", "bytes=0-")
	rec = env.do(t, req)
	require.Equal(t, http.StatusRequestedRangeNotSatisfiable, rec.Code)
	assert.Equal(t, "bytes */0", rec.Header().Get("Content-Range"))
}

func TestStreamUnknownVideo(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/videos/stream/ghost", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestThumbnail(t *testing.T) {
	env := newTestEnv(t)
	item := env.seedItem(t, []byte("payload"), media.StatusReady)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/videos/thumbnail/"+item.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/videos/thumbnail/ghost", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPlaylistLifecycle(t *testing.T) {
	env := newTestEnv(t)
	item := env.seedItem(t, []byte("payload"), media.StatusTranscoding)

	url := "/api/v1/videos/" + item.ID + "/" + transcode.PlaylistName
	rec := env.do(t, httptest.NewRequest(http.MethodGet, url, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	publishFakeOutput(t, env.tree, item.ID)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, url, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, playlistContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "#EXTM3U")
}

func TestSegmentDelivery(t *testing.T) {
	env := newTestEnv(t)
	item := env.seedItem(t, []byte("payload"), media.StatusReady)
	publishFakeOutput(t, env.tree, item.ID)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/videos/"+item.ID+"/segment_000.ts", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, segmentContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, "segment zero", rec.Body.String())

	// Well-formed name that was never produced.
	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/videos/"+item.ID+"/segment_999.ts", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSegmentNameRejection(t *testing.T) {
	env := newTestEnv(t)
	item := env.seedItem(t, []byte("payload"), media.StatusReady)
	publishFakeOutput(t, env.tree, item.ID)

	for _, name := range []string{
		"secret.txt",
		"segment_000.ts%00",
		"..%2F..%2Fetc%2Fpasswd",
		"segment_.ts",
		"SEGMENT_000.TS",
	} {
		rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/videos/"+item.ID+"/"+name, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, "name %q must be rejected", name)
	}
}

// publishFakeOutput stages a playlist plus one segment and publishes them the
// same way a finished transcode does.
func publishFakeOutput(t *testing.T, tree transcode.Tree, id string) {
	t.Helper()
	staging, err := tree.NewStagingDir(id)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(staging, "segment_000.ts"), []byte("segment zero"), 0o640))
	playlist := "#EXTM3U\n#EXT-X-VERSION:3\n#EXTINF:10.0,\nsegment_000.ts\n#EXT-X-ENDLIST\n"
	require.NoError(t, os.WriteFile(filepath.Join(staging, transcode.PlaylistName), []byte(playlist), 0o640))
	require.NoError(t, tree.Publish(id, staging))
}
