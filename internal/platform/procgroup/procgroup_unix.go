// SPDX-License-Identifier: MIT

//go:build unix

package procgroup

import (
	"errors"
	"os/exec"
	"syscall"
	"time"
)

func setup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

func terminate(cmd *exec.Cmd, grace time.Duration) error {
	// Setpgid makes the child a group leader, so its PGID equals its PID and
	// a negative PID signals the whole group.
	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	if err != nil {
		if errors.Is(err, syscall.ESRCH) {
			return nil
		}
		return err
	}

	if err := signalGroup(pgid, syscall.SIGTERM); err != nil {
		return err
	}
	if grace > 0 {
		deadline := time.Now().Add(grace)
		for time.Now().Before(deadline) {
			// Signal 0 probes for liveness without delivering anything.
			if sigErr := syscall.Kill(-pgid, 0); errors.Is(sigErr, syscall.ESRCH) {
				return nil
			}
			time.Sleep(20 * time.Millisecond)
		}
	}
	return signalGroup(pgid, syscall.SIGKILL)
}

func signalGroup(pgid int, sig syscall.Signal) error {
	if err := syscall.Kill(-pgid, sig); err != nil && !errors.Is(err, syscall.ESRCH) {
		return err
	}
	return nil
}
