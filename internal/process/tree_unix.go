//go:build !windows

package process

import (
	"errors"
	"os/exec"
	"syscall"
)

// killTree kills the process group led by the server. Attached processes and
// children that left the group fall back to a direct kill.
func killTree(p *Process, _ func(*exec.Cmd) error) error {
	if !p.Attached() {
		err := syscall.Kill(-p.PID(), syscall.SIGKILL)
		if err == nil {
			return nil
		}
		if !errors.Is(err, syscall.ESRCH) {
			return err
		}
	}
	return p.Kill()
}
