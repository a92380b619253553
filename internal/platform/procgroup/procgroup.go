// SPDX-License-Identifier: MIT

// Package procgroup places child processes in their own process group so a
// cancelled encode kills the whole tree, not just the direct child.
package procgroup

import (
	"os/exec"
	"time"
)

// Setup configures cmd to start as a process group leader. Must be called
// before cmd.Start for Terminate to reach the full tree.
func Setup(cmd *exec.Cmd) {
	setup(cmd)
}

// Terminate stops cmd's process group: a polite termination signal first,
// then a hard kill after grace. Safe to call when the process never started
// or already exited.
func Terminate(cmd *exec.Cmd, grace time.Duration) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	return terminate(cmd, grace)
}
