//go:build !windows

package runner

import (
	"os/exec"
	"syscall"
)

func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// signalProcessGroup signals every process in cmd's group. The group id
// equals the leader's pid because of Setpgid.
func signalProcessGroup(cmd *exec.Cmd, sig syscall.Signal) {
	if cmd == nil || cmd.Process == nil || cmd.Process.Pid <= 0 {
		return
	}
	// Negative pid targets the full process group (tool + spawned children).
	if err := syscall.Kill(-cmd.Process.Pid, sig); err != nil && sig == syscall.SIGKILL {
		_ = cmd.Process.Kill()
	}
}
