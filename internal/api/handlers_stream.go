// SPDX-License-Identifier: MIT

package api

import (
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/streamhaus/vidserve/internal/httprange"
	"github.com/streamhaus/vidserve/internal/media"
	"github.com/streamhaus/vidserve/internal/metrics"
	"github.com/streamhaus/vidserve/internal/storage"
)

// handleStream serves the original upload in bounded byte-range windows.
// Every response is 206 Partial Content, including requests without a Range
// header, so clients always learn the total size from Content-Range.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "videoID")
	item, err := s.store.FindByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, media.ErrNotFound) {
			writeNotFound(w)
			return
		}
		s.logger.Error().Err(err).Str("event", "stream.lookup_failed").Str("video_id", id).Msg("loading metadata")
		writeInternalError(w)
		return
	}
	if item.FilePath == "" {
		writeNotFound(w)
		return
	}

	path, err := s.files.Resolve(item.FilePath)
	if err != nil {
		writeNotFound(w)
		return
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			writeNotFound(w)
			return
		}
		s.logger.Error().Err(err).Str("event", "stream.open_failed").Str("video_id", id).Msg("opening source file")
		writeInternalError(w)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		writeNotFound(w)
		return
	}
	size := info.Size()

	contentType := item.ContentType
	if contentType == "" {
		contentType = storage.ProbeContentType(path)
	}

	// A zero-byte source has no byte window to describe; a partial response
	// would need a Content-Range ending at byte -1. Serve a plain empty 200
	// instead. An explicit Range on an empty file still yields 416 below.
	if size == 0 && r.Header.Get("Range") == "" {
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Accept-Ranges", "bytes")
		w.Header().Set("Content-Length", "0")
		w.WriteHeader(http.StatusOK)
		return
	}

	region, err := httprange.Resolve(size, s.cfg.ChunkSize, r.Header.Get("Range"))
	if err != nil {
		writeRangeNotSatisfiable(w, size)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Range", region.ContentRange(size))
	w.Header().Set("Content-Length", strconv.FormatInt(region.Length, 10))
	w.WriteHeader(http.StatusPartialContent)

	n, err := io.Copy(w, io.NewSectionReader(f, region.Offset, region.Length))
	metrics.AddStreamBytes(n)
	if err != nil {
		// Headers are gone; all we can do is log the broken transfer.
		s.logger.Debug().Err(err).Str("event", "stream.copy_aborted").Str("video_id", id).Msg("client transfer aborted")
	}
}

func (s *Server) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "videoID")
	item, err := s.store.FindByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, media.ErrNotFound) {
			writeNotFound(w)
			return
		}
		s.logger.Error().Err(err).Str("event", "thumbnail.lookup_failed").Str("video_id", id).Msg("loading metadata")
		writeInternalError(w)
		return
	}
	if item.ThumbnailPath == "" {
		writeNotFound(w)
		return
	}

	path, err := s.files.Resolve(item.ThumbnailPath)
	if err != nil {
		writeNotFound(w)
		return
	}
	body, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			writeNotFound(w)
			return
		}
		s.logger.Error().Err(err).Str("event", "thumbnail.read_failed").Str("video_id", id).Msg("reading thumbnail")
		writeInternalError(w)
		return
	}

	w.Header().Set("Content-Type", storage.ProbeContentType(path))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
