//go:build windows

package process

import "os/exec"

func killTree(p *Process, run func(*exec.Cmd) error) error {
	return run(taskkillCommand(p.PID()))
}
