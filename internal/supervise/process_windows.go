//go:build windows

package supervise

import (
	"os"
	"os/exec"
)

// setProcessGroup is a no-op on Windows; process groups are not used.
func setProcessGroup(cmd *exec.Cmd) {}

// terminateProcessGroup kills the process directly; Windows has no
// SIGTERM equivalent for console children spawned this way.
func terminateProcessGroup(pid int) {
	if p, err := os.FindProcess(pid); err == nil {
		p.Kill()
	}
}

// killProcessGroup kills the process.
func killProcessGroup(pid int) {
	if p, err := os.FindProcess(pid); err == nil {
		p.Kill()
	}
}
