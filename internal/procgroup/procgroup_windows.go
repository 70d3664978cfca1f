// Copyright (c) 2025 recviewd authors
// SPDX-License-Identifier: MIT

//go:build windows

package procgroup

import (
	"os/exec"
	"syscall"
	"time"
)

// Set is a no-op on Windows; process groups are not used here.
func Set(cmd *exec.Cmd) {}

// Signal maps SIGKILL to Process.Kill. SIGTERM is a no-op because Windows
// has no reliable graceful termination via signals.
func Signal(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	if sig == syscall.SIGKILL {
		return cmd.Process.Kill()
	}
	return nil
}

// Shutdown kills the process after the grace period (no graceful phase).
func Shutdown(cmd *exec.Cmd, grace time.Duration, exited <-chan struct{}) error {
	select {
	case <-exited:
		return nil
	case <-time.After(grace):
	}
	return Signal(cmd, syscall.SIGKILL)
}
