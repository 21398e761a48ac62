package process

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/loykin/cockpit/internal/detector"
)

// Liveness is the last known state of a supervised process.
type Liveness string

const (
	Alive  Liveness = "alive"
	Exited Liveness = "exited"
	Killed Liveness = "killed"
)

// attachPoll is how often an attached (non-child) process is checked for exit.
const attachPoll = 100 * time.Millisecond

// Process is the handle of a spawned or attached server process.
type Process struct {
	pid       int
	workDir   string
	pidFile   string
	startedAt time.Time
	startUnix int64
	attached  bool
	handle    *os.Process

	mu       sync.Mutex
	liveness Liveness
	exitErr  error
	closers  []io.Closer
	done     chan struct{}
	doneOnce sync.Once
}

// newStarted wraps a started command and begins reaping it.
func newStarted(cmd *exec.Cmd, workDir, pidFile string, closers []io.Closer) *Process {
	p := &Process{
		pid:       cmd.Process.Pid,
		workDir:   workDir,
		pidFile:   pidFile,
		startedAt: time.Now(),
		handle:    cmd.Process,
		liveness:  Alive,
		closers:   closers,
		done:      make(chan struct{}),
	}
	go p.reap(cmd)
	return p
}

// Attach wraps an already running process that this launcher did not spawn,
// such as a server left behind by a previous run. startUnix, when non-zero,
// guards liveness checks against PID reuse.
func Attach(pid int, startUnix int64, workDir string) (*Process, error) {
	if pid <= 0 {
		return nil, fmt.Errorf("invalid pid %d", pid)
	}
	op, err := os.FindProcess(pid)
	if err != nil {
		return nil, fmt.Errorf("find process %d: %w", pid, err)
	}
	p := &Process{
		pid:       pid,
		workDir:   workDir,
		startedAt: time.Now(),
		startUnix: startUnix,
		attached:  true,
		handle:    op,
		liveness:  Alive,
		done:      make(chan struct{}),
	}
	go p.watch()
	return p, nil
}

// reap waits for the child and records how it ended.
func (p *Process) reap(cmd *exec.Cmd) {
	err := cmd.Wait()
	p.finish(Exited, err)
}

// watch polls an attached process until it is gone.
func (p *Process) watch() {
	d := p.detector()
	t := time.NewTicker(attachPoll)
	defer t.Stop()
	for range t.C {
		if alive, _ := d.Alive(); !alive {
			p.finish(Exited, nil)
			return
		}
	}
}

// finish moves an alive process to state, keeping an earlier Killed mark, and
// releases its resources once.
func (p *Process) finish(state Liveness, err error) {
	p.mu.Lock()
	if p.liveness == Alive {
		p.liveness = state
	}
	if err != nil && p.exitErr == nil {
		p.exitErr = err
	}
	closers := p.closers
	p.closers = nil
	p.mu.Unlock()
	for _, c := range closers {
		_ = c.Close()
	}
	p.doneOnce.Do(func() { close(p.done) })
}

func (p *Process) PID() int             { return p.pid }
func (p *Process) WorkDir() string      { return p.workDir }
func (p *Process) StartedAt() time.Time { return p.startedAt }
func (p *Process) Attached() bool       { return p.attached }

// Done is closed once the process has exited and been reaped.
func (p *Process) Done() <-chan struct{} { return p.done }

func (p *Process) Liveness() Liveness {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.liveness
}

// ExitErr returns the error cmd.Wait reported, if any.
func (p *Process) ExitErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitErr
}

// Kill sends a forced kill to the process itself. A process that already
// finished is not an error.
func (p *Process) Kill() error {
	if err := p.handle.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	p.MarkKilled()
	return nil
}

// MarkKilled records that the process was terminated on purpose and removes
// its pid file. A process already observed as exited stays exited.
func (p *Process) MarkKilled() {
	p.mu.Lock()
	if p.liveness == Alive {
		p.liveness = Killed
	}
	p.mu.Unlock()
	_ = RemovePIDFile(p.pidFile)
}

// WaitExit blocks until the process is gone or timeout elapses.
func (p *Process) WaitExit(timeout time.Duration) bool {
	select {
	case <-p.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (p *Process) detector() detector.PIDDetector {
	return detector.PIDDetector{PID: p.pid, StartUnix: p.startUnix}
}

// Snapshot reports the recorded liveness together with an OS-level check.
func (p *Process) Snapshot() Status {
	p.mu.Lock()
	st := Status{
		PID:       p.pid,
		WorkDir:   p.workDir,
		Liveness:  p.liveness,
		StartedAt: p.startedAt,
		Attached:  p.attached,
	}
	if p.exitErr != nil {
		st.ExitErr = p.exitErr.Error()
	}
	p.mu.Unlock()
	d := p.detector()
	if alive, _ := d.Alive(); alive {
		st.DetectedBy = d.Describe()
	}
	return st
}
