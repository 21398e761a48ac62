package process

import (
	"os/exec"

	"github.com/loykin/cockpit/internal/logger"
)

const (
	DefaultName       = "server"
	DefaultExecutable = "node"
)

// DefaultArgs returns the fixed server invocation: run the entry script and
// do not open a browser.
func DefaultArgs() []string { return []string{"server.js", "--no-open"} }

// Spec describes the server process to be launched.
type Spec struct {
	Name       string        `json:"name" mapstructure:"name"`
	Executable string        `json:"executable" mapstructure:"executable"`
	Args       []string      `json:"args" mapstructure:"args"`
	Env        []string      `json:"env" mapstructure:"env"`           // full environment; nil inherits the launcher's
	PIDFile    string        `json:"pid_file" mapstructure:"pid_file"` // optional; written after spawn, removed on termination
	Log        logger.Config `json:"log" mapstructure:"-"`             // stdout/stderr capture
}

// withDefaults fills unset fields. Args are only defaulted when nil so an
// explicit empty list is honored.
func (s Spec) withDefaults() Spec {
	if s.Name == "" {
		s.Name = DefaultName
	}
	if s.Executable == "" {
		s.Executable = DefaultExecutable
	}
	if s.Args == nil {
		s.Args = DefaultArgs()
	}
	return s
}

// BuildCommand constructs a fresh *exec.Cmd for one spawn attempt in workDir.
// An exec.Cmd cannot be started twice, so every attempt gets its own.
func (s Spec) BuildCommand(workDir string) *exec.Cmd {
	s = s.withDefaults()
	// ok: the executable comes from the launcher's own configuration
	// #nosec G204
	cmd := exec.Command(s.Executable, s.Args...)
	cmd.Dir = workDir
	if len(s.Env) > 0 {
		cmd.Env = append([]string(nil), s.Env...)
	}
	configureSysProcAttr(cmd)
	return cmd
}
