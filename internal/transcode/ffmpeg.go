// SPDX-License-Identifier: MIT

package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/streamhaus/vidserve/internal/platform/procgroup"
)

// Exec abstracts the encoder process so orchestration logic is testable
// without a real ffmpeg binary.
type Exec interface {
	// Run encodes inputPath into a segmented HLS tree inside outputDir,
	// blocking until the process exits. The child is killed, not orphaned,
	// when ctx is canceled.
	Run(ctx context.Context, inputPath, outputDir string) error
}

// stderrTailLimit caps captured encoder diagnostics so a chatty process
// cannot balloon error messages.
const stderrTailLimit = 4 << 10

// killGrace is how long a cancelled encoder gets between the termination
// signal and the hard kill.
const killGrace = 3 * time.Second

// FFmpeg runs the external ffmpeg binary as a supervised child process.
type FFmpeg struct {
	Bin            string // binary name or absolute path
	SegmentSeconds int
	Logger         zerolog.Logger
}

// NewFFmpeg returns an adapter invoking bin with HLS segmenting arguments.
func NewFFmpeg(bin string, segmentSeconds int, logger zerolog.Logger) *FFmpeg {
	return &FFmpeg{Bin: bin, SegmentSeconds: segmentSeconds, Logger: logger}
}

// Run implements Exec.
func (f *FFmpeg) Run(ctx context.Context, inputPath, outputDir string) error {
	args := buildHLSArgs(inputPath, outputDir, f.SegmentSeconds)

	f.Logger.Info().
		Str("event", "encode.start").
		Str("input", inputPath).
		Str("output_dir", outputDir).
		Msg("starting encoder process")

	start := time.Now()

	// Paths are discrete argv tokens; no shell is involved, so spaces and
	// metacharacters in filenames cannot change the command.
	cmd := exec.CommandContext(ctx, f.Bin, args...)

	var stderrBuf bytes.Buffer
	cmd.Stderr = &stderrBuf

	// The encoder runs as a process group leader so cancellation reaps any
	// helpers it spawned, not just the direct child.
	procgroup.Setup(cmd)
	cmd.Cancel = func() error {
		return procgroup.Terminate(cmd, killGrace)
	}
	cmd.WaitDelay = killGrace

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %v", ErrLaunch, err)
	}

	err := cmd.Wait()

	// Cancellation wins over the exit status: CommandContext kills the child
	// and Wait reports "signal: killed", which would otherwise be mistaken
	// for an encoder failure.
	if ctxErr := ctx.Err(); ctxErr != nil {
		f.Logger.Warn().
			Str("event", "encode.interrupted").
			Str("input", inputPath).
			Dur("elapsed", time.Since(start)).
			Msg("encoder process interrupted")
		return ctxErr
	}

	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		encErr := &EncodingError{ExitCode: exitCode, Stderr: stderrTail(stderrBuf.Bytes())}
		f.Logger.Error().
			Str("event", "encode.failed").
			Str("input", inputPath).
			Int("exit_code", exitCode).
			Dur("elapsed", time.Since(start)).
			Msg("encoder process failed")
		return encErr
	}

	f.Logger.Info().
		Str("event", "encode.complete").
		Str("input", inputPath).
		Dur("elapsed", time.Since(start)).
		Msg("encoder process finished")
	return nil
}

// buildHLSArgs constructs the ffmpeg argument list for a single-variant HLS
// encode: H.264 video, AAC audio, numbered transport-stream segments plus a
// master playlist in outputDir.
func buildHLSArgs(inputPath, outputDir string, segmentSeconds int) []string {
	return []string{
		"-y",
		"-nostdin",
		"-hide_banner",
		"-loglevel", "error",
		"-i", inputPath,
		"-c:v", "libx264",
		"-c:a", "aac",
		"-f", "hls",
		"-hls_time", strconv.Itoa(segmentSeconds),
		"-hls_list_size", "0",
		"-hls_segment_filename", filepath.Join(outputDir, "segment_%03d.ts"),
		filepath.Join(outputDir, PlaylistName),
	}
}

// stderrTail returns at most the final stderrTailLimit bytes as a string.
func stderrTail(b []byte) string {
	if len(b) > stderrTailLimit {
		b = b[len(b)-stderrTailLimit:]
	}
	return string(bytes.TrimSpace(b))
}
