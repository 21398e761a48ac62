// Package lifecycle drives the server from launch to shutdown in response to
// window and tray events.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kelindar/event"

	"github.com/loykin/cockpit/internal/detector"
	"github.com/loykin/cockpit/internal/history"
	"github.com/loykin/cockpit/internal/metrics"
	"github.com/loykin/cockpit/internal/probe"
	"github.com/loykin/cockpit/internal/process"
)

var (
	ErrAlreadyStarted = errors.New("lifecycle already started")
	// ErrAborted is returned by Start when a shutdown arrived while the
	// server was being launched.
	ErrAborted = errors.New("startup aborted by shutdown")
)

const journalTimeout = 2 * time.Second

// Launcher spawns the server in a working directory.
type Launcher interface {
	Launch(workDir string) (*process.Process, error)
}

// Prober waits for the server to accept connections.
type Prober interface {
	Wait(ctx context.Context) probe.Result
	Address() string
	Timeout() time.Duration
}

// Status is a point-in-time view of the coordinator.
type Status struct {
	State    string          `json:"state"`
	Strategy string          `json:"strategy"`
	Server   *process.Status `json:"server,omitempty"`
}

// Coordinator owns the supervision slot and moves through
// NotStarted, Starting, Running, ShuttingDown and Stopped.
type Coordinator struct {
	name     string
	log      *slog.Logger
	launcher Launcher
	prober   Prober
	term     process.Terminator
	host     Host
	slot     *Slot
	sink     history.Sink
	dir      DirResolver
	pidFile  string
	events   *event.Dispatcher

	mu         sync.Mutex
	state      State
	abortStart context.CancelFunc // cancels the readiness wait of a running Start
	stopped    chan struct{}
	stopOnce   sync.Once
}

type Option func(*Coordinator)

func WithName(name string) Option {
	return func(c *Coordinator) {
		if name != "" {
			c.name = name
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.log = l
		}
	}
}

// WithTerminator overrides the platform default strategy.
func WithTerminator(t process.Terminator) Option {
	return func(c *Coordinator) {
		if t != nil {
			c.term = t
		}
	}
}

func WithHost(h Host) Option {
	return func(c *Coordinator) {
		if h != nil {
			c.host = h
		}
	}
}

// WithSlot shares an existing slot, e.g. with an HTTP status surface.
func WithSlot(s *Slot) Option {
	return func(c *Coordinator) {
		if s != nil {
			c.slot = s
		}
	}
}

func WithHistory(s history.Sink) Option {
	return func(c *Coordinator) { c.sink = s }
}

func WithServerDir(r DirResolver) Option {
	return func(c *Coordinator) {
		if r != nil {
			c.dir = r
		}
	}
}

// WithPIDFile enables reclaiming a server left running by a previous launcher
// that recorded it in path.
func WithPIDFile(path string) Option {
	return func(c *Coordinator) { c.pidFile = path }
}

func New(l Launcher, p Prober, opts ...Option) *Coordinator {
	c := &Coordinator{
		name:     process.DefaultName,
		log:      slog.Default(),
		launcher: l,
		prober:   p,
		term:     process.DefaultTerminator(),
		host:     nopHost{},
		slot:     &Slot{},
		dir:      ServerDir("", false),
		stopped:  make(chan struct{}),
		events:   event.NewDispatcher(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done is closed once the coordinator reaches Stopped.
func (c *Coordinator) Done() <-chan struct{} { return c.stopped }

func (c *Coordinator) Slot() *Slot { return c.slot }

func (c *Coordinator) Status() Status {
	st := Status{State: c.State().String(), Strategy: c.term.Strategy()}
	if p := c.slot.Peek(); p != nil {
		s := p.Snapshot()
		st.Server = &s
	}
	return st
}

// transition moves from -> to and reports whether the current state was from.
func (c *Coordinator) transition(from, to State) bool {
	c.mu.Lock()
	if c.state != from {
		c.mu.Unlock()
		return false
	}
	c.state = to
	c.mu.Unlock()
	c.recordTransition(from, to)
	return true
}

// setState moves to the given state. Stopped is terminal.
func (c *Coordinator) setState(to State) {
	c.mu.Lock()
	from := c.state
	if from == Stopped {
		c.mu.Unlock()
		return
	}
	c.state = to
	c.mu.Unlock()
	c.afterTransition(from, to)
}

func (c *Coordinator) afterTransition(from, to State) {
	if from != to {
		c.recordTransition(from, to)
	}
	if to == Stopped {
		c.stopOnce.Do(func() { close(c.stopped) })
	}
}

func (c *Coordinator) recordTransition(from, to State) {
	metrics.RecordStateTransition(from.String(), to.String())
	c.log.Debug("lifecycle transition", "from", from.String(), "to", to.String())
	c.publish(from, to)
}

// Start launches the server and waits for it to become reachable. A probe
// timeout only logs a warning. A launch failure leaves the coordinator
// Stopped and is returned as is. A shutdown that arrives meanwhile makes
// Start stop the new server and return ErrAborted.
func (c *Coordinator) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.mu.Lock()
	if c.state != NotStarted {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.state = Starting
	c.abortStart = cancel
	c.mu.Unlock()
	c.afterTransition(NotStarted, Starting)

	dir, err := c.dir()
	if err != nil {
		c.setState(Stopped)
		c.journal(history.EventStartFailed, history.Record{Error: err.Error()})
		return fmt.Errorf("resolve server directory: %w", err)
	}
	c.reclaimOrphan(dir)

	p, err := c.launcher.Launch(dir)
	if err != nil {
		c.log.Error("server could not be started", "dir", dir, "error", err)
		c.setState(Stopped)
		c.journal(history.EventStartFailed, history.Record{WorkDir: dir, Error: err.Error()})
		return err
	}

	// Storing the handle and checking for a shutdown happen together, so a
	// concurrent Shutdown either finds the handle or has already moved on.
	c.mu.Lock()
	if c.state != Starting {
		c.mu.Unlock()
		c.journal(history.EventStart, c.record(p, ""))
		c.stop(p, "shutdown during start")
		return ErrAborted
	}
	prev := c.slot.Put(p)
	c.mu.Unlock()
	if prev != nil {
		c.log.Warn("replacing a server that was still supervised", "pid", prev.PID())
		_ = c.term.Terminate(prev)
	}
	c.journal(history.EventStart, c.record(p, ""))

	res := c.prober.Wait(ctx)
	if c.State() != Starting {
		return ErrAborted
	}
	if res.Ready {
		c.log.Info("server is ready", "address", c.prober.Address(), "elapsed", res.Elapsed, "attempts", res.Attempts)
		c.journal(history.EventReady, c.record(p, res.Elapsed.String()))
	} else {
		c.log.Warn("server did not respond within timeout; continuing",
			"address", c.prober.Address(), "timeout", c.prober.Timeout(), "attempts", res.Attempts)
		c.journal(history.EventUnready, c.record(p, res.Elapsed.String()))
	}

	if !c.transition(Starting, Running) {
		return ErrAborted
	}
	return nil
}

// Shutdown takes the server out of the slot and terminates it. It reports
// whether this call did the work; later or concurrent calls find the slot
// empty and return false. Before Start it stops the coordinator outright;
// during Start it leaves the server to be stopped by Start itself.
func (c *Coordinator) Shutdown(reason string) bool {
	c.mu.Lock()
	from := c.state
	p := c.slot.Take()
	to := from
	switch {
	case p != nil:
		to = ShuttingDown
	case from == NotStarted:
		to = Stopped
	case from == Starting:
		to = ShuttingDown
	}
	c.state = to
	abort := c.abortStart
	c.mu.Unlock()

	if from == Starting && abort != nil {
		abort()
	}
	c.afterTransition(from, to)
	if p == nil {
		return false
	}
	c.stop(p, reason)
	return true
}

// stop terminates a process already taken from the slot. The caller has
// moved the state to ShuttingDown. Termination errors are logged and
// otherwise ignored.
func (c *Coordinator) stop(p *process.Process, reason string) {
	err := c.term.Terminate(p)
	if err != nil {
		c.log.Warn("server termination failed", "pid", p.PID(), "strategy", c.term.Strategy(), "reason", reason, "error", err)
	} else {
		c.log.Info("server terminated", "pid", p.PID(), "strategy", c.term.Strategy(), "reason", reason)
	}
	rec := c.record(p, reason)
	if err != nil {
		rec.Error = err.Error()
	}
	c.setState(Stopped)
	rec.State = Stopped.String()
	c.journal(history.EventStop, rec)
}

// ShowMainWindow shows, restores and focuses the main window.
func (c *Coordinator) ShowMainWindow() {
	w, ok := c.host.MainWindow()
	if !ok {
		return
	}
	if err := w.Show(); err != nil {
		c.log.Debug("show window", "error", err)
	}
	if err := w.Unminimize(); err != nil {
		c.log.Debug("unminimize window", "error", err)
	}
	if err := w.SetFocus(); err != nil {
		c.log.Debug("focus window", "error", err)
	}
}

// MenuSelected handles a tray menu item.
func (c *Coordinator) MenuSelected(id string) {
	switch id {
	case MenuShow:
		c.ShowMainWindow()
	case MenuQuit:
		c.Quit()
	default:
		c.log.Debug("ignoring unknown menu item", "id", id)
	}
}

// TrayClicked restores the window on a left-button release. It never quits.
func (c *Coordinator) TrayClicked(b MouseButton, s ButtonState) {
	if b == ButtonLeft && s == ButtonUp {
		c.ShowMainWindow()
	}
}

// CloseRequested hides the main window instead of closing it while the
// server is running. It returns true when the close must be prevented.
func (c *Coordinator) CloseRequested() bool {
	if c.State() != Running {
		return false
	}
	if w, ok := c.host.MainWindow(); ok {
		if err := w.Hide(); err != nil {
			c.log.Debug("hide window", "error", err)
		}
	}
	c.log.Debug("window hidden to tray")
	return true
}

// WindowDestroyed shuts the server down. The host decides how to exit.
func (c *Coordinator) WindowDestroyed() {
	c.Shutdown("window-destroyed")
}

// Quit shuts the server down and exits the application with status 0. When
// another trigger is already stopping the server, Quit waits for it to finish
// before exiting.
func (c *Coordinator) Quit() {
	c.Shutdown("quit")
	if c.State() == ShuttingDown {
		<-c.stopped
	}
	c.host.Exit(0)
}

// Dispatch routes a host event to its handler.
func (c *Coordinator) Dispatch(e Event) {
	metrics.IncHostEvent(string(e.Kind))
	switch e.Kind {
	case EventMenuSelected:
		c.MenuSelected(e.MenuID)
	case EventTrayClick:
		c.TrayClicked(e.Button, e.ButtonState)
	case EventCloseRequested:
		if c.CloseRequested() && e.PreventClose != nil {
			e.PreventClose()
		}
	case EventWindowDestroyed:
		c.WindowDestroyed()
	case EventQuit:
		c.Quit()
	case EventShow:
		c.ShowMainWindow()
	default:
		c.log.Debug("ignoring unknown event", "kind", string(e.Kind))
	}
}

// Run dispatches events until the coordinator stops, the channel closes or
// ctx is done. The last two shut the server down first.
func (c *Coordinator) Run(ctx context.Context, events <-chan Event) error {
	for {
		select {
		case <-c.stopped:
			return nil
		case <-ctx.Done():
			c.Shutdown("context")
			return nil
		case e, ok := <-events:
			if !ok {
				c.Shutdown("events closed")
				return nil
			}
			c.Dispatch(e)
		}
	}
}

// reclaimOrphan terminates a server recorded in the pid file by an earlier
// run that did not shut down. Only entries with a recorded start time are
// trusted, so a reused PID is never killed.
func (c *Coordinator) reclaimOrphan(dir string) {
	if c.pidFile == "" {
		return
	}
	d := detector.PIDFileDetector{PIDFile: c.pidFile}
	pid, meta, err := d.Lookup()
	if err != nil {
		c.log.Warn("ignoring unreadable pid file", "path", c.pidFile, "error", err)
		_ = process.RemovePIDFile(c.pidFile)
		return
	}
	if pid == 0 {
		return
	}
	alive, _ := d.Alive()
	if !alive || meta.StartUnix == 0 {
		_ = process.RemovePIDFile(c.pidFile)
		return
	}
	p, err := process.Attach(pid, meta.StartUnix, dir)
	if err != nil {
		c.log.Warn("could not attach to leftover server", "pid", pid, "error", err)
		return
	}
	metrics.IncOrphanReclaim(c.name)
	if err := c.term.Terminate(p); err != nil {
		c.log.Warn("could not stop leftover server", "pid", pid, "error", err)
		return
	}
	c.log.Info("stopped leftover server from a previous run", "pid", pid)
	_ = process.RemovePIDFile(c.pidFile)
	p.WaitExit(time.Second)
}

func (c *Coordinator) record(p *process.Process, detail string) history.Record {
	return history.Record{
		Name:    c.name,
		PID:     p.PID(),
		WorkDir: p.WorkDir(),
		State:   c.State().String(),
		Detail:  detail,
	}
}

// journal sends an event to the history sink, if any. Failures are logged.
func (c *Coordinator) journal(t history.EventType, rec history.Record) {
	if c.sink == nil {
		return
	}
	if rec.Name == "" {
		rec.Name = c.name
	}
	if rec.State == "" {
		rec.State = c.State().String()
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()
	e := history.Event{Type: t, OccurredAt: time.Now().UTC(), Record: rec}
	if err := c.sink.Send(ctx, e); err != nil {
		c.log.Warn("history send failed", "event", string(t), "error", err)
	}
}
