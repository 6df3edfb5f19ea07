//go:build unix

package tools

import (
	"os/exec"
	"syscall"
	"time"

	"raven/internal/logging"
)

// setBashProcAttr sets Unix-specific process attributes for proper cleanup.
func setBashProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}

// killBashProcessGroup attempts graceful shutdown with SIGTERM, then SIGKILL
// after the grace period.
func killBashProcessGroup(cmd *exec.Cmd, gracePeriod time.Duration) {
	if cmd.Process == nil {
		return
	}

	pid := cmd.Process.Pid

	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil {
		if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
			logging.Debug("SIGTERM failed, trying SIGKILL", "error", err)
		}
	}

	time.Sleep(gracePeriod)

	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil {
		if err := cmd.Process.Kill(); err != nil {
			logging.Warn("failed to kill process", "error", err)
		}
	}
}
