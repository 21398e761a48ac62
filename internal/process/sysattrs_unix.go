//go:build !windows

package process

import (
	"os/exec"
	"syscall"
)

// configureSysProcAttr places the server in its own process group so the
// whole group can be signalled, and so a terminal Ctrl+C reaches only the
// launcher, which then shuts the server down in order.
func configureSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// hideConsole is a no-op: there is no console window to suppress.
func hideConsole(*exec.Cmd) {}
