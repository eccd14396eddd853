//go:build !windows

package process

import (
	"os/exec"
	"syscall"
)

// configureProcessGroup puts the child in its own process group so that
// cancellation also reaches the JVMs and forks it spawns.
func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
