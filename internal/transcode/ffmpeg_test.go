// SPDX-License-Identifier: MIT

package transcode

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildHLSArgs(t *testing.T) {
	args := buildHLSArgs("/data/uploads/in file.mp4", "/data/hls/abc/.staging-x", 10)

	// Paths with spaces stay intact because they are discrete argv tokens.
	assert.Contains(t, args, "/data/uploads/in file.mp4")
	assert.Contains(t, args, filepath.Join("/data/hls/abc/.staging-x", "segment_%03d.ts"))
	assert.Equal(t, filepath.Join("/data/hls/abc/.staging-x", PlaylistName), args[len(args)-1])

	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "-c:v libx264")
	assert.Contains(t, joined, "-c:a aac")
	assert.Contains(t, joined, "-f hls")
	assert.Contains(t, joined, "-hls_time 10")
	assert.Contains(t, joined, "-hls_list_size 0")
}

func TestFFmpegRunLaunchError(t *testing.T) {
	f := NewFFmpeg("/nonexistent/ffmpeg-binary", 10, zerolog.Nop())

	err := f.Run(context.Background(), "in.mp4", t.TempDir())
	assert.ErrorIs(t, err, ErrLaunch)
}

func TestFFmpegRunNonZeroExit(t *testing.T) {
	// "false" ignores its arguments and exits 1, standing in for an encoder
	// that fails on a corrupt source.
	bin, err := exec.LookPath("false")
	if err != nil {
		t.Skip("no false binary available")
	}

	f := NewFFmpeg(bin, 10, zerolog.Nop())
	err = f.Run(context.Background(), "corrupt.mp4", t.TempDir())

	var encErr *EncodingError
	require.ErrorAs(t, err, &encErr)
	assert.Equal(t, 1, encErr.ExitCode)
}

func TestFFmpegRunCanceled(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script stub requires a unix shell")
	}

	// A stub encoder that ignores its arguments and blocks, standing in for
	// a long encode. Cancellation must kill it and report the context error,
	// not an encoder failure.
	bin := filepath.Join(t.TempDir(), "stub-encoder")
	script := "#!/bin/sh\nwhile :; do sleep 1; done\n"
	require.NoError(t, os.WriteFile(bin, []byte(script), 0o700))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	f := NewFFmpeg(bin, 10, zerolog.Nop())
	err := f.Run(ctx, "in.mp4", t.TempDir())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStderrTail(t *testing.T) {
	short := []byte("  some diagnostics \n")
	assert.Equal(t, "some diagnostics", stderrTail(short))

	long := make([]byte, stderrTailLimit*2)
	for i := range long {
		long[i] = 'x'
	}
	assert.Len(t, stderrTail(long), stderrTailLimit)
}
