// Package cockpit supervises a local server process for a desktop launcher:
// it starts the server with bounded retries, waits for its port, hides the
// window to the tray on close and terminates the server exactly once on quit.
package cockpit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	cfg "github.com/loykin/cockpit/internal/config"
	"github.com/loykin/cockpit/internal/history"
	"github.com/loykin/cockpit/internal/history/factory"
	"github.com/loykin/cockpit/internal/lifecycle"
	"github.com/loykin/cockpit/internal/logger"
	"github.com/loykin/cockpit/internal/metrics"
	"github.com/loykin/cockpit/internal/probe"
	"github.com/loykin/cockpit/internal/process"
	iapi "github.com/loykin/cockpit/internal/server"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Config = cfg.Config

type Coordinator = lifecycle.Coordinator

type Host = lifecycle.Host

type Window = lifecycle.Window

type Event = lifecycle.Event

type EventKind = lifecycle.EventKind

type State = lifecycle.State

type Status = lifecycle.Status

type StateChanged = lifecycle.StateChanged

type HistorySink = history.Sink

const (
	MenuShow = lifecycle.MenuShow
	MenuQuit = lifecycle.MenuQuit

	ButtonLeft  = lifecycle.ButtonLeft
	ButtonRight = lifecycle.ButtonRight
	ButtonUp    = lifecycle.ButtonUp
	ButtonDown  = lifecycle.ButtonDown

	EventMenuSelected    = lifecycle.EventMenuSelected
	EventTrayClick       = lifecycle.EventTrayClick
	EventCloseRequested  = lifecycle.EventCloseRequested
	EventWindowDestroyed = lifecycle.EventWindowDestroyed
	EventQuit            = lifecycle.EventQuit
	EventShow            = lifecycle.EventShow
)

var ErrStartExhausted = process.ErrStartExhausted

const (
	NotStarted   = lifecycle.NotStarted
	Starting     = lifecycle.Starting
	Running      = lifecycle.Running
	ShuttingDown = lifecycle.ShuttingDown
	Stopped      = lifecycle.Stopped
)

// LoadConfig reads a TOML config file; an empty path yields the defaults.
func LoadConfig(path string) (*Config, error) { return cfg.Load(path, nil) }

func DefaultConfig() *Config { return cfg.Default() }

// App is a coordinator wired from a Config together with its logging,
// history journal and optional control surface.
type App struct {
	Coordinator *lifecycle.Coordinator

	cfg     *Config
	log     *slog.Logger
	control *http.Server
	closers []io.Closer
}

type options struct {
	host Host
	log  *slog.Logger
	sink HistorySink
}

type Option func(*options)

// WithHost connects the GUI environment. Without one, window operations are
// no-ops and Quit does not exit.
func WithHost(h Host) Option { return func(o *options) { o.host = h } }

// WithLogger replaces the logger built from Config.Log.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.log = l } }

// WithHistorySink replaces the sink built from Config.History.DSN.
func WithHistorySink(s HistorySink) Option { return func(o *options) { o.sink = s } }

// NewApp builds an App. The launch strategy, probe and terminator are fixed
// here for the lifetime of the App.
func NewApp(c *Config, opts ...Option) (*App, error) {
	if c == nil {
		c = cfg.Default()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	a := &App{cfg: c}

	if o.log == nil {
		l, closer, err := logger.New(c.Log, os.Stderr)
		if err != nil {
			return nil, err
		}
		o.log = l
		a.closers = append(a.closers, closer)
	}
	a.log = o.log

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		a.log.Warn("metrics registration failed", "error", err)
	}

	if o.sink == nil && c.History.DSN != "" {
		sink, err := factory.NewSinkFromDSN(c.History.DSN)
		if err != nil {
			a.log.Warn("history disabled", "error", err)
		} else {
			o.sink = sink
			if cl, ok := sink.(io.Closer); ok {
				a.closers = append(a.closers, cl)
			}
		}
	}

	spec, err := c.ProcessSpec()
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	term, err := c.Terminator()
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	launcher := process.NewLauncher(spec,
		process.WithAttempts(c.Launch.Attempts),
		process.WithRetryInterval(c.Launch.RetryInterval),
		process.WithLogger(a.log),
	)
	prober := probe.NewTCP(c.ProbeAddress(),
		probe.WithTimeout(c.Probe.Timeout),
		probe.WithInterval(c.Probe.Interval),
	)
	copts := []lifecycle.Option{
		lifecycle.WithName(spec.Name),
		lifecycle.WithLogger(a.log),
		lifecycle.WithTerminator(term),
		lifecycle.WithServerDir(lifecycle.ServerDir(c.Server.Dir, c.Server.Dev)),
		lifecycle.WithPIDFile(c.Server.PIDFile),
		lifecycle.WithHost(o.host),
	}
	if o.sink != nil {
		copts = append(copts, lifecycle.WithHistory(o.sink))
	}
	a.Coordinator = lifecycle.New(launcher, prober, copts...)
	return a, nil
}

// Start brings up the control surface, if configured, and then launches the
// server and waits for readiness.
func (a *App) Start(ctx context.Context) error {
	if a.cfg.Control.Listen != "" && a.control == nil {
		srv, err := iapi.NewServer(a.cfg.Control.Listen, a.cfg.Control.BasePath, a.Coordinator, a.log)
		if err != nil {
			return err
		}
		a.control = srv
	}
	return a.Coordinator.Start(ctx)
}

// Run dispatches host events until the coordinator stops.
func (a *App) Run(ctx context.Context, events <-chan Event) error {
	return a.Coordinator.Run(ctx, events)
}

func (a *App) Logger() *slog.Logger { return a.log }

// OnStateChange subscribes fn to coordinator state changes. The returned
// func unsubscribes.
func (a *App) OnStateChange(fn func(StateChanged)) func() {
	return a.Coordinator.OnStateChange(fn)
}

// Close shuts the server down if it is still running and releases the
// control surface, history sink and log file.
func (a *App) Close() error {
	var errs []error
	if a.Coordinator != nil {
		a.Coordinator.Shutdown("close")
	}
	if a.control != nil {
		errs = append(errs, a.control.Close())
		a.control = nil
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// NewHTTPServer serves the control routes for c on a loopback addr.
func NewHTTPServer(addr, basePath string, c *Coordinator) (*http.Server, error) {
	return iapi.NewServer(addr, basePath, c, nil)
}

// NewRouter returns the control routes for c, for mounting in another server.
func NewRouter(c *Coordinator, basePath string) *iapi.Router {
	return iapi.NewRouter(c, basePath)
}

// Metrics helpers
func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }
func MetricsHandler() http.Handler                  { return metrics.Handler() }
