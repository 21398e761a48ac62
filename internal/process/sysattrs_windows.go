//go:build windows

package process

import (
	"os/exec"
	"syscall"
)

// CREATE_NO_WINDOW keeps console programs from opening a console window.
const createNoWindow = 0x08000000

// configureSysProcAttr suppresses the console window the server runtime would
// otherwise open.
func configureSysProcAttr(cmd *exec.Cmd) {
	hideConsole(cmd)
}

func hideConsole(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: createNoWindow,
	}
}
