// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, int64(DefaultChunkSize), cfg.ChunkSize)
	assert.Equal(t, DefaultSegmentSeconds, cfg.SegmentSeconds)
	assert.Equal(t, DefaultTranscodeWorkers, cfg.TranscodeWorkers)
	assert.Equal(t, filepath.Join("./data", "uploads"), cfg.UploadDir)
	assert.Equal(t, filepath.Join("./data", "hls"), cfg.HLSDir)
	assert.Equal(t, filepath.Join("./data", "vidserve.db"), cfg.DBPath)
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen: "127.0.0.1:9090"
dataDir: "/var/lib/vidserve"
segmentSeconds: 6
shutdownTimeout: 30s
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.Listen)
	assert.Equal(t, 6, cfg.SegmentSeconds)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, filepath.Join("/var/lib/vidserve", "hls"), cfg.HLSDir)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`listen: "127.0.0.1:9090"`), 0o600))

	t.Setenv("VIDSERVE_LISTEN", ":7070")
	t.Setenv("VIDSERVE_CHUNK_SIZE", "1048576")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Listen)
	assert.Equal(t, int64(1<<20), cfg.ChunkSize)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("VIDSERVE_CHUNK_SIZE", "-1")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunkSize")
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [unclosed"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}
