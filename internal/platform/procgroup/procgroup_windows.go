// SPDX-License-Identifier: MIT

//go:build windows

package procgroup

import (
	"os/exec"
	"time"
)

func setup(_ *exec.Cmd) {}

func terminate(cmd *exec.Cmd, _ time.Duration) error {
	// No process groups on windows; kill the direct child only.
	return cmd.Process.Kill()
}
