// SPDX-License-Identifier: MIT

package api

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/streamhaus/vidserve/internal/log"
	"github.com/streamhaus/vidserve/internal/media"
	"github.com/streamhaus/vidserve/internal/metrics"
	"github.com/streamhaus/vidserve/internal/storage"
)

// multipartMemoryLimit bounds how much of a multipart body is held in memory
// before spilling to temp files.
const multipartMemoryLimit = 32 << 20

type videoResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ContentType string    `json:"contentType"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toVideoResponse(item media.Item) videoResponse {
	return videoResponse{
		ID:          item.ID,
		Title:       item.Title,
		Description: item.Description,
		ContentType: item.ContentType,
		Status:      string(item.Status),
		CreatedAt:   item.CreatedAt,
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "api")

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		metrics.RecordUpload("rejected")
		writeBadRequest(w, errors.New("invalid multipart request"))
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		metrics.RecordUpload("rejected")
		writeBadRequest(w, errors.New("title is required"))
		return
	}
	description := r.FormValue("description")

	videoFile, videoHeader, err := r.FormFile("videoFile")
	if err != nil {
		metrics.RecordUpload("rejected")
		writeBadRequest(w, errors.New("videoFile is required"))
		return
	}
	defer videoFile.Close()

	thumbFile, thumbHeader, err := r.FormFile("thumbnailFile")
	if err != nil {
		metrics.RecordUpload("rejected")
		writeBadRequest(w, errors.New("thumbnailFile is required"))
		return
	}
	defer thumbFile.Close()

	storedVideo, err := s.files.Store(videoFile, videoHeader.Filename)
	if err != nil {
		logger.Error().Err(err).Str("event", "upload.store_video_failed").Msg("storing video payload")
		metrics.RecordUpload("failure")
		writeInternalError(w)
		return
	}
	storedThumb, err := s.files.Store(thumbFile, thumbHeader.Filename)
	if err != nil {
		logger.Error().Err(err).Str("event", "upload.store_thumbnail_failed").Msg("storing thumbnail payload")
		metrics.RecordUpload("failure")
		writeInternalError(w)
		return
	}

	item := media.Item{
		ID:            uuid.New().String(),
		Title:         title,
		Description:   description,
		ContentType:   uploadContentType(videoHeader, s.files, storedVideo),
		FilePath:      storedVideo,
		ThumbnailPath: storedThumb,
		Status:        media.StatusUploaded,
	}
	saved, err := s.store.Save(r.Context(), item)
	if err != nil {
		logger.Error().Err(err).Str("event", "upload.persist_failed").Str("video_id", item.ID).Msg("persisting metadata")
		metrics.RecordUpload("failure")
		writeInternalError(w)
		return
	}

	// Transcoding runs in the background; the response does not wait for it.
	s.transcoder.Ensure(r.Context(), saved.ID)

	logger.Info().
		Str("event", "upload.accepted").
		Str("video_id", saved.ID).
		Str("title", saved.Title).
		Msg("video uploaded")
	metrics.RecordUpload("success")
	writeJSON(w, http.StatusCreated, toVideoResponse(saved))
}

// uploadContentType prefers the client-declared type and falls back to
// sniffing the stored file.
func uploadContentType(header *multipart.FileHeader, files FileStore, storedName string) string {
	if ct := header.Header.Get("Content-Type"); ct != "" && ct != storage.DefaultContentType {
		return ct
	}
	path, err := files.Resolve(storedName)
	if err != nil {
		return storage.DefaultContentType
	}
	return storage.ProbeContentType(path)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.ListAll(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Str("event", "list.failed").Msg("listing videos")
		writeInternalError(w)
		return
	}
	out := make([]videoResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toVideoResponse(item))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "videoID")
	item, err := s.store.FindByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, media.ErrNotFound) {
			writeNotFound(w)
			return
		}
		s.logger.Error().Err(err).Str("event", "metadata.failed").Str("video_id", id).Msg("loading metadata")
		writeInternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, toVideoResponse(item))
}
