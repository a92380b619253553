// SPDX-License-Identifier: MIT

package transcode

import (
	"errors"
	"fmt"
)

var (
	// ErrLaunch is returned when the encoder process could not be started at
	// all (missing binary, permission denied).
	ErrLaunch = errors.New("encoder failed to start")

	// ErrStorage is returned when the output tree could not be created or
	// published. Fatal for the run, never retried.
	ErrStorage = errors.New("segment tree storage failure")
)

// EncodingError reports an encoder process that started but exited non-zero.
type EncodingError struct {
	ExitCode int
	Stderr   string
}

func (e *EncodingError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("encoding failed with exit code %d: %s", e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("encoding failed with exit code %d", e.ExitCode)
}
