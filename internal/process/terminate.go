package process

import (
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	"github.com/loykin/cockpit/internal/metrics"
)

const (
	StrategyAuto   = "auto"
	StrategyTree   = "tree"
	StrategyDirect = "direct"
)

// Terminator stops a supervised process. Callers hand over the process and
// must not use it afterwards except to inspect its state.
type Terminator interface {
	Terminate(p *Process) error
	Strategy() string
}

// DirectKiller sends a single forced kill to the process.
type DirectKiller struct{}

func (DirectKiller) Strategy() string { return StrategyDirect }

func (DirectKiller) Terminate(p *Process) error {
	if p == nil {
		return nil
	}
	err := p.Kill()
	metrics.IncTermination(StrategyDirect, err)
	return err
}

// TreeKiller terminates the process together with all of its descendants.
// On Windows this runs taskkill /T /F with no console window; elsewhere the
// process group created at spawn is killed.
type TreeKiller struct {
	run  func(*exec.Cmd) error
	kill func(*Process, func(*exec.Cmd) error) error
}

// NewTreeKiller returns a TreeKiller. run executes the kill command; nil
// means (*exec.Cmd).Run.
func NewTreeKiller(run func(*exec.Cmd) error) *TreeKiller {
	if run == nil {
		run = (*exec.Cmd).Run
	}
	return &TreeKiller{run: run, kill: killTree}
}

func (*TreeKiller) Strategy() string { return StrategyTree }

func (t *TreeKiller) Terminate(p *Process) error {
	if p == nil {
		return nil
	}
	run := t.run
	if run == nil {
		run = (*exec.Cmd).Run
	}
	kill := t.kill
	if kill == nil {
		kill = killTree
	}
	// A failed kill leaves liveness to the reaper; the process may still run.
	err := kill(p, run)
	if err == nil {
		p.MarkKilled()
	}
	metrics.IncTermination(StrategyTree, err)
	return err
}

// taskkillCommand builds the recursive forced kill for pid.
func taskkillCommand(pid int) *exec.Cmd {
	// #nosec G204
	cmd := exec.Command("taskkill", "/PID", strconv.Itoa(pid), "/T", "/F")
	hideConsole(cmd)
	return cmd
}

// NewTerminator selects a strategy by name. "auto" picks tree-kill on
// Windows, where killing a process leaves its children running, and direct
// kill elsewhere.
func NewTerminator(strategy, goos string) (Terminator, error) {
	switch strings.ToLower(strings.TrimSpace(strategy)) {
	case "", StrategyAuto:
		if goos == "windows" {
			return NewTreeKiller(nil), nil
		}
		return DirectKiller{}, nil
	case StrategyTree:
		return NewTreeKiller(nil), nil
	case StrategyDirect:
		return DirectKiller{}, nil
	default:
		return nil, fmt.Errorf("unknown terminate strategy %q", strategy)
	}
}

// DefaultTerminator returns the auto strategy for the running platform.
func DefaultTerminator() Terminator {
	t, _ := NewTerminator(StrategyAuto, runtime.GOOS)
	return t
}
