package process

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/loykin/cockpit/internal/metrics"
)

const (
	DefaultAttempts      = 3
	DefaultRetryInterval = 500 * time.Millisecond
)

// ErrStartExhausted matches any error returned by Launch after the retry
// budget is spent.
var ErrStartExhausted = errors.New("start attempts exhausted")

// StartError reports that every spawn attempt failed. It wraps the cause of
// the last attempt.
type StartError struct {
	Name     string
	Attempts int
	Err      error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("could not start %s after %d attempts: %v", e.Name, e.Attempts, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }

func (e *StartError) Is(target error) bool { return target == ErrStartExhausted }

// Starter starts a prepared command. The default is (*exec.Cmd).Start.
type Starter func(cmd *exec.Cmd) error

// Launcher spawns the server with bounded retries.
type Launcher struct {
	spec          Spec
	attempts      int
	retryInterval time.Duration
	log           *slog.Logger
	start         Starter
	sleep         func(time.Duration)
}

type Option func(*Launcher)

func WithAttempts(n int) Option {
	return func(l *Launcher) {
		if n > 0 {
			l.attempts = n
		}
	}
}

func WithRetryInterval(d time.Duration) Option {
	return func(l *Launcher) {
		if d >= 0 {
			l.retryInterval = d
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(l *Launcher) {
		if log != nil {
			l.log = log
		}
	}
}

// WithStarter replaces how commands are started. Used by tests to inject
// spawn failures.
func WithStarter(s Starter) Option {
	return func(l *Launcher) {
		if s != nil {
			l.start = s
		}
	}
}

// WithSleeper replaces the backoff sleep.
func WithSleeper(s func(time.Duration)) Option {
	return func(l *Launcher) {
		if s != nil {
			l.sleep = s
		}
	}
}

func NewLauncher(spec Spec, opts ...Option) *Launcher {
	l := &Launcher{
		spec:          spec.withDefaults(),
		attempts:      DefaultAttempts,
		retryInterval: DefaultRetryInterval,
		log:           slog.Default(),
		start:         (*exec.Cmd).Start,
		sleep:         time.Sleep,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *Launcher) Spec() Spec    { return l.spec }
func (l *Launcher) Attempts() int { return l.attempts }

// Launch starts the server in workDir. Every attempt uses the same command
// line and directory. It returns as soon as one attempt succeeds; otherwise
// it waits the retry interval between attempts and, after the last one,
// returns a *StartError.
func (l *Launcher) Launch(workDir string) (*Process, error) {
	name := l.spec.Name
	var lastErr error
	for attempt := 1; attempt <= l.attempts; attempt++ {
		if attempt > 1 {
			l.sleep(l.retryInterval)
		}
		metrics.IncSpawnAttempt(name)
		p, err := l.spawn(workDir)
		if err == nil {
			l.log.Info("server started", "name", name, "pid", p.PID(), "attempt", attempt, "dir", workDir)
			return p, nil
		}
		lastErr = err
		metrics.IncSpawnFailure(name)
		l.log.Warn("server spawn failed", "name", name, "attempt", attempt, "of", l.attempts, "error", err)
	}
	metrics.IncStartExhausted(name)
	return nil, &StartError{Name: name, Attempts: l.attempts, Err: lastErr}
}

func (l *Launcher) spawn(workDir string) (*Process, error) {
	cmd := l.spec.BuildCommand(workDir)
	closers, err := l.attachOutput(cmd)
	if err != nil {
		return nil, err
	}
	if err := l.start(cmd); err != nil {
		closeAll(closers)
		return nil, err
	}
	if cmd.Process == nil {
		closeAll(closers)
		return nil, errors.New("starter returned without a process")
	}
	p := newStarted(cmd, workDir, l.spec.PIDFile, closers)
	if l.spec.PIDFile != "" {
		if err := WritePIDFile(l.spec.PIDFile, p.PID()); err != nil {
			l.log.Warn("pid file not written", "path", l.spec.PIDFile, "error", err)
		}
	}
	return p, nil
}

// attachOutput routes server output to rotating files when capture is
// configured, otherwise to the launcher's own stdout and stderr.
func (l *Launcher) attachOutput(cmd *exec.Cmd) ([]io.Closer, error) {
	if !l.spec.Log.Captures() {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		return nil, nil
	}
	if dir := l.spec.Log.File.Dir; dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
	}
	outW, errW, err := l.spec.Log.ProcessWriters(l.spec.Name)
	if err != nil {
		return nil, err
	}
	var closers []io.Closer
	if outW != nil {
		cmd.Stdout = outW
		closers = append(closers, outW)
	}
	if errW != nil {
		cmd.Stderr = errW
		closers = append(closers, errW)
	}
	return closers, nil
}

func closeAll(cs []io.Closer) {
	for _, c := range cs {
		_ = c.Close()
	}
}
