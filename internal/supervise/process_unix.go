//go:build !windows

package supervise

import (
	"os/exec"
	"syscall"
)

// setProcessGroup runs the child in its own process group so the whole
// tree can be signalled together.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminateProcessGroup sends SIGTERM to the child's process group.
func terminateProcessGroup(pid int) {
	syscall.Kill(-pid, syscall.SIGTERM)
}

// killProcessGroup sends SIGKILL to the child's process group.
func killProcessGroup(pid int) {
	syscall.Kill(-pid, syscall.SIGKILL)
}
