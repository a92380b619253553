// SPDX-License-Identifier: MIT

package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/streamhaus/vidserve/internal/metrics"
	"github.com/streamhaus/vidserve/internal/platform/fs"
	"github.com/streamhaus/vidserve/internal/transcode"
)

const (
	playlistContentType = "application/vnd.apple.mpegurl"
	segmentContentType  = "video/MP2T"
)

// handlePlaylist serves <hlsRoot>/<id>/master.m3u8. The playlist only exists
// after a transcode published atomically, so its presence implies the
// segments it references are on disk.
func (s *Server) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "videoID")
	if uuid.Validate(id) != nil {
		metrics.RecordHLSRequest("playlist", "rejected")
		writeNotFound(w)
		return
	}

	path, err := fs.ConfineRelPath(s.tree.Root, filepath.Join(id, transcode.PlaylistName))
	if err != nil {
		metrics.RecordHLSRequest("playlist", "rejected")
		writeNotFound(w)
		return
	}
	body, err := os.ReadFile(path)
	if err != nil {
		metrics.RecordHLSRequest("playlist", "not_found")
		writeNotFound(w)
		return
	}

	metrics.RecordHLSRequest("playlist", "ok")
	w.Header().Set("Content-Type", playlistContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// handleSegment serves a single transport-stream segment. The segment name
// must match the producer's naming scheme before any filesystem access
// happens, which keeps traversal payloads out of the path entirely.
func (s *Server) handleSegment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "videoID")
	name := chi.URLParam(r, "segmentName")

	if uuid.Validate(id) != nil || !transcode.ValidSegmentName(name) {
		metrics.RecordHLSRequest("segment", "rejected")
		writeNotFound(w)
		return
	}
	path, err := fs.ConfineRelPath(s.tree.Root, filepath.Join(id, name))
	if err != nil {
		metrics.RecordHLSRequest("segment", "rejected")
		writeNotFound(w)
		return
	}
	body, err := os.ReadFile(path)
	if err != nil {
		metrics.RecordHLSRequest("segment", "not_found")
		writeNotFound(w)
		return
	}

	metrics.RecordHLSRequest("segment", "ok")
	w.Header().Set("Content-Type", segmentContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
