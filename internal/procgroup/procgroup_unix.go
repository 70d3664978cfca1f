// Copyright (c) 2025 recviewd authors
// SPDX-License-Identifier: MIT

//go:build unix && !windows

package procgroup

import (
	"errors"
	"os/exec"
	"syscall"
	"time"
)

// Set configures the command to start in a new process group. Mandatory for
// Shutdown to reap the whole subprocess tree (ffmpeg may fork helpers).
func Set(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// Signal sends a signal to the command's process group. A process that has
// already exited is treated as success.
func Signal(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}

	pid := cmd.Process.Pid
	// Setpgid=true makes the process its own group leader, PGID == PID.
	pgid, err := syscall.Getpgid(pid)
	if err != nil {
		if errors.Is(err, syscall.ESRCH) {
			return nil
		}
		return err
	}

	// Negative PGID addresses the whole group.
	if err := syscall.Kill(-pgid, sig); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			return nil
		}
		return err
	}
	return nil
}

// Shutdown terminates the group: SIGTERM, then SIGKILL once grace elapses.
// The caller still owns cmd.Wait; Shutdown only delivers signals.
func Shutdown(cmd *exec.Cmd, grace time.Duration, exited <-chan struct{}) error {
	if err := Signal(cmd, syscall.SIGTERM); err != nil {
		return err
	}

	select {
	case <-exited:
		return nil
	case <-time.After(grace):
	}

	return Signal(cmd, syscall.SIGKILL)
}
