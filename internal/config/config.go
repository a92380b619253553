// SPDX-License-Identifier: MIT

// Package config holds the daemon configuration, loaded from an optional YAML
// file with environment variable overrides. Environment always wins so that
// container deployments can override a baked-in config file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults for the transcode and delivery pipeline.
const (
	DefaultChunkSize        = 2 << 20 // 2 MiB per partial-content response
	DefaultSegmentSeconds   = 10
	DefaultTranscodeWorkers = 2
	DefaultMaxUploadBytes   = 2 << 30 // 2 GiB
	DefaultRateLimitRPM     = 600
)

// AppConfig is the resolved runtime configuration.
type AppConfig struct {
	Listen           string        `yaml:"listen"`
	DataDir          string        `yaml:"dataDir"`
	UploadDir        string        `yaml:"uploadDir"` // defaults to DataDir/uploads
	HLSDir           string        `yaml:"hlsDir"`    // defaults to DataDir/hls
	DBPath           string        `yaml:"dbPath"`    // defaults to DataDir/vidserve.db
	FFmpegPath       string        `yaml:"ffmpeg"`
	ChunkSize        int64         `yaml:"chunkSize"`
	SegmentSeconds   int           `yaml:"segmentSeconds"`
	TranscodeWorkers int           `yaml:"transcodeWorkers"`
	MaxUploadBytes   int64         `yaml:"maxUploadBytes"`
	RateLimitRPM     int           `yaml:"rateLimitRPM"`
	ShutdownTimeout  time.Duration `yaml:"shutdownTimeout"`
	LogLevel         string        `yaml:"logLevel"`
}

// Load resolves the configuration: defaults, then the YAML file at path (if
// non-empty), then environment variables.
func Load(path string) (AppConfig, error) {
	cfg := AppConfig{
		Listen:           ":8080",
		DataDir:          "./data",
		FFmpegPath:       "ffmpeg",
		ChunkSize:        DefaultChunkSize,
		SegmentSeconds:   DefaultSegmentSeconds,
		TranscodeWorkers: DefaultTranscodeWorkers,
		MaxUploadBytes:   DefaultMaxUploadBytes,
		RateLimitRPM:     DefaultRateLimitRPM,
		ShutdownTimeout:  15 * time.Second,
	}

	if path != "" {
		raw, err := os.ReadFile(path) // #nosec G304 -- operator-supplied config path
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.Listen = ParseString("VIDSERVE_LISTEN", cfg.Listen)
	cfg.DataDir = ParseString("VIDSERVE_DATA_DIR", cfg.DataDir)
	cfg.UploadDir = ParseString("VIDSERVE_UPLOAD_DIR", cfg.UploadDir)
	cfg.HLSDir = ParseString("VIDSERVE_HLS_DIR", cfg.HLSDir)
	cfg.DBPath = ParseString("VIDSERVE_DB_PATH", cfg.DBPath)
	cfg.FFmpegPath = ParseString("VIDSERVE_FFMPEG", cfg.FFmpegPath)
	cfg.ChunkSize = ParseInt64("VIDSERVE_CHUNK_SIZE", cfg.ChunkSize)
	cfg.SegmentSeconds = ParseInt("VIDSERVE_SEGMENT_SECONDS", cfg.SegmentSeconds)
	cfg.TranscodeWorkers = ParseInt("VIDSERVE_TRANSCODE_WORKERS", cfg.TranscodeWorkers)
	cfg.MaxUploadBytes = ParseInt64("VIDSERVE_MAX_UPLOAD_BYTES", cfg.MaxUploadBytes)
	cfg.RateLimitRPM = ParseInt("VIDSERVE_RATE_LIMIT_RPM", cfg.RateLimitRPM)
	cfg.ShutdownTimeout = ParseDuration("VIDSERVE_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	cfg.LogLevel = ParseString("VIDSERVE_LOG_LEVEL", cfg.LogLevel)

	cfg.applyDerived()
	return cfg, cfg.Validate()
}

// applyDerived fills paths that default relative to DataDir.
func (c *AppConfig) applyDerived() {
	if c.UploadDir == "" {
		c.UploadDir = filepath.Join(c.DataDir, "uploads")
	}
	if c.HLSDir == "" {
		c.HLSDir = filepath.Join(c.DataDir, "hls")
	}
	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.DataDir, "vidserve.db")
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *AppConfig) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunkSize must be positive, got %d", c.ChunkSize)
	}
	if c.SegmentSeconds <= 0 {
		return fmt.Errorf("segmentSeconds must be positive, got %d", c.SegmentSeconds)
	}
	if c.TranscodeWorkers <= 0 {
		return fmt.Errorf("transcodeWorkers must be positive, got %d", c.TranscodeWorkers)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("maxUploadBytes must be positive, got %d", c.MaxUploadBytes)
	}
	if c.FFmpegPath == "" {
		return fmt.Errorf("ffmpeg path cannot be empty")
	}
	return nil
}
