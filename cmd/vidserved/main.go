// SPDX-License-Identifier: MIT

// vidserved is the video upload, transcode and delivery daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/streamhaus/vidserve/internal/api"
	"github.com/streamhaus/vidserve/internal/config"
	"github.com/streamhaus/vidserve/internal/log"
	"github.com/streamhaus/vidserve/internal/media"
	"github.com/streamhaus/vidserve/internal/storage"
	"github.com/streamhaus/vidserve/internal/transcode"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	listenAddr := flag.String("listen", "", "listen address (overrides config)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("vidserved %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// Safe defaults until the real config is loaded.
	log.Configure(log.Config{Level: "info", Service: "vidserve"})
	logger := log.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(strings.TrimSpace(*configPath))
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", *configPath).
			Msg("failed to load configuration")
	}
	if addr := strings.TrimSpace(*listenAddr); addr != "" {
		cfg.Listen = addr
	}

	if cfg.LogLevel != "" {
		log.SetLevel(cfg.LogLevel)
	}

	logger.Info().
		Str("event", "startup").
		Str("version", version).
		Str("addr", cfg.Listen).
		Str("data_dir", cfg.DataDir).
		Str("ffmpeg", cfg.FFmpegPath).
		Int("transcode_workers", cfg.TranscodeWorkers).
		Msg("starting vidserved")

	store, err := media.NewStore(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Str("event", "store.open_failed").Str("db_path", cfg.DBPath).Msg("opening metadata store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn().Err(err).Str("event", "store.close_failed").Msg("closing metadata store")
		}
	}()

	files, err := storage.NewRepository(cfg.UploadDir)
	if err != nil {
		logger.Fatal().Err(err).Str("event", "uploads.init_failed").Str("dir", cfg.UploadDir).Msg("preparing upload root")
	}
	tree, err := transcode.NewTree(cfg.HLSDir)
	if err != nil {
		logger.Fatal().Err(err).Str("event", "hls.init_failed").Str("dir", cfg.HLSDir).Msg("preparing hls root")
	}

	encoder := transcode.NewFFmpeg(cfg.FFmpegPath, cfg.SegmentSeconds, log.WithComponent("ffmpeg"))
	manager := transcode.NewManager(store, files, encoder, tree, cfg.TranscodeWorkers, log.WithComponent("transcode"))
	server := api.New(cfg, store, files, manager, tree)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		err := server.Shutdown(shutdownCtx)

		// In-flight encodes are stopped after the listener drains so that
		// responses already underway are not cut off by dying runs.
		manager.CancelAll()
		manager.Wait()
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Str("event", "shutdown.error").Msg("daemon exited with error")
		os.Exit(1)
	}
	logger.Info().Str("event", "shutdown.complete").Msg("daemon stopped")
}
