//go:build windows

package tools

import (
	"os/exec"
	"time"

	"raven/internal/logging"
)

// setBashProcAttr is a no-op on Windows.
func setBashProcAttr(cmd *exec.Cmd) {}

// killBashProcessGroup kills the process directly; Windows has no process
// groups in the Unix sense.
func killBashProcessGroup(cmd *exec.Cmd, gracePeriod time.Duration) {
	if cmd.Process == nil {
		return
	}
	_ = gracePeriod
	if err := cmd.Process.Kill(); err != nil {
		logging.Warn("failed to kill process", "error", err)
	}
}
