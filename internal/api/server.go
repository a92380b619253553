// SPDX-License-Identifier: MIT

// Package api exposes the HTTP surface: video upload and listing, byte-range
// streaming, thumbnails, and HLS playlist/segment delivery.
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/streamhaus/vidserve/internal/api/middleware"
	"github.com/streamhaus/vidserve/internal/config"
	"github.com/streamhaus/vidserve/internal/log"
	"github.com/streamhaus/vidserve/internal/media"
	"github.com/streamhaus/vidserve/internal/transcode"
)

// MetadataStore is the persistence surface the handlers need.
type MetadataStore interface {
	Save(ctx context.Context, item media.Item) (media.Item, error)
	FindByID(ctx context.Context, id string) (media.Item, error)
	ListAll(ctx context.Context) ([]media.Item, error)
}

// FileStore persists uploaded blobs and resolves stored names back to
// absolute paths confined to the upload root.
type FileStore interface {
	Store(src io.Reader, suggestedName string) (string, error)
	Resolve(storedName string) (string, error)
}

// Transcoder starts (or joins) the background transcode run for an item.
type Transcoder interface {
	Ensure(ctx context.Context, id string) (*transcode.Run, bool)
}

// Server wires the handlers, middleware stack and HTTP listener.
type Server struct {
	cfg        config.AppConfig
	store      MetadataStore
	files      FileStore
	transcoder Transcoder
	tree       transcode.Tree
	logger     zerolog.Logger
	httpServer *http.Server
}

// New builds a Server around the given collaborators.
func New(cfg config.AppConfig, store MetadataStore, files FileStore, transcoder Transcoder, tree transcode.Tree) *Server {
	s := &Server{
		cfg:        cfg,
		store:      store,
		files:      files,
		transcoder: transcoder,
		tree:       tree,
		logger:     log.WithComponent("api"),
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the fully assembled router.
func (s *Server) Handler() http.Handler {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableMetrics: true,
		EnableLogging: true,
		RateLimitRPM:  s.cfg.RateLimitRPM,
	})

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1/videos", func(r chi.Router) {
		r.Post("/", s.handleUpload)
		r.Get("/", s.handleList)
		r.Get("/stream/{videoID}", s.handleStream)
		r.Get("/thumbnail/{videoID}", s.handleThumbnail)
		r.Get("/{videoID}", s.handleMetadata)
		// The static playlist route wins over the segment wildcard.
		r.Get("/{videoID}/"+transcode.PlaylistName, s.handlePlaylist)
		r.Get("/{videoID}/{segmentName}", s.handleSegment)
	})

	return r
}

// Start runs the HTTP listener until it fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info().
		Str("event", "server.start").
		Str("listen", s.cfg.Listen).
		Msg("http server listening")
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Str("event", "server.shutdown").Msg("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
