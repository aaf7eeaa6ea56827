//go:build windows

package runner

import (
	"os/exec"
	"syscall"
)

func configureProcessGroup(cmd *exec.Cmd) {}

// signalProcessGroup can only kill the leader on Windows; interrupts are ignored.
func signalProcessGroup(cmd *exec.Cmd, sig syscall.Signal) {
	if cmd == nil || cmd.Process == nil || sig != syscall.SIGKILL {
		return
	}
	_ = cmd.Process.Kill()
}
