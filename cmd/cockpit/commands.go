package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"

	"github.com/loykin/cockpit"
	"github.com/loykin/cockpit/internal/config"
	"github.com/loykin/cockpit/internal/lifecycle"
	"github.com/loykin/cockpit/internal/probe"
	"github.com/loykin/cockpit/pkg/client"
)

// errNotReady makes the probe command exit non-zero.
var errNotReady = errors.New("server not ready")

type command struct {
	out io.Writer
}

func (c command) writer() io.Writer {
	if c.out == nil {
		return os.Stdout
	}
	return c.out
}

// Run starts the server and supervises it until a quit arrives from a
// signal or the control surface.
func (c command) Run(ctx context.Context, g GlobalFlags, overrides map[string]any) error {
	cfg, err := config.Load(g.ConfigPath, overrides)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	host := newHeadlessHost(nil, cancel)
	app, err := cockpit.NewApp(cfg, cockpit.WithHost(host))
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()
	host.log = app.Logger()
	host.window.log = app.Logger()
	defer app.OnStateChange(systemdNotifier(app.Logger()))()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		select {
		case s := <-sigs:
			app.Logger().Info("signal received", "signal", s.String())
			app.Coordinator.Dispatch(cockpit.Event{Kind: cockpit.EventQuit})
		case <-ctx.Done():
		}
	}()

	if err := app.Start(ctx); err != nil {
		if errors.Is(err, lifecycle.ErrAborted) {
			return nil
		}
		return err
	}
	if err := app.Run(ctx, nil); err != nil {
		return err
	}
	if code, ok := host.ExitCode(); ok && code != 0 {
		return fmt.Errorf("exit code %d", code)
	}
	return nil
}

// Probe waits once for the configured port and reports the result.
func (c command) Probe(ctx context.Context, g GlobalFlags, overrides map[string]any) error {
	cfg, err := config.Load(g.ConfigPath, overrides)
	if err != nil {
		return err
	}
	p := probe.NewTCP(cfg.ProbeAddress(),
		probe.WithTimeout(cfg.Probe.Timeout),
		probe.WithInterval(cfg.Probe.Interval),
	)
	res := p.Wait(ctx)
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	if !res.Ready {
		_, _ = fmt.Fprintf(c.writer(), "%s %s after %s (%d attempts)\n", red("not ready"), p.Address(), res.Elapsed, res.Attempts)
		return errNotReady
	}
	_, _ = fmt.Fprintf(c.writer(), "%s %s after %s (%d attempts)\n", green("ready"), p.Address(), res.Elapsed, res.Attempts)
	return nil
}

func (c command) Status(ctx context.Context, g GlobalFlags, f ClientFlags) error {
	cl, err := newClient(g, f)
	if err != nil {
		return err
	}
	st, err := cl.Status(ctx)
	if err != nil {
		return err
	}
	printStatus(c.writer(), st)
	return nil
}

func (c command) Show(ctx context.Context, g GlobalFlags, f ClientFlags) error {
	return c.ack(ctx, g, f, "show", (*client.Client).Show)
}

func (c command) Hide(ctx context.Context, g GlobalFlags, f ClientFlags) error {
	return c.ack(ctx, g, f, "hide", (*client.Client).Hide)
}

func (c command) Quit(ctx context.Context, g GlobalFlags, f ClientFlags) error {
	return c.ack(ctx, g, f, "quit", (*client.Client).Quit)
}

func (c command) ack(ctx context.Context, g GlobalFlags, f ClientFlags, op string, call func(*client.Client, context.Context) (client.Ack, error)) error {
	cl, err := newClient(g, f)
	if err != nil {
		return err
	}
	a, err := call(cl, ctx)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(c.writer(), "%s: %s\n", op, stateColor(a.State)(a.State))
	if !a.OK {
		return fmt.Errorf("%s rejected in state %s", op, a.State)
	}
	return nil
}

// newClient resolves the control surface URL from flags, then config.
func newClient(g GlobalFlags, f ClientFlags) (*client.Client, error) {
	base := f.APIUrl
	if base == "" {
		cfg, err := config.Load(g.ConfigPath, nil)
		if err != nil {
			return nil, err
		}
		base = controlURL(cfg)
	}
	conf := client.DefaultConfig()
	conf.BaseURL = base
	if f.APITimeout > 0 {
		conf.Timeout = f.APITimeout
	}
	return client.New(conf), nil
}

func controlURL(cfg *config.Config) string {
	if cfg.Control.Listen == "" {
		return client.DefaultBaseURL
	}
	return "http://" + cfg.Control.Listen + strings.TrimRight(cfg.Control.BasePath, "/")
}

func stateColor(state string) func(a ...interface{}) string {
	switch state {
	case lifecycle.Running.String():
		return color.New(color.FgGreen).SprintFunc()
	case lifecycle.Starting.String(), lifecycle.ShuttingDown.String():
		return color.New(color.FgYellow).SprintFunc()
	case lifecycle.Stopped.String():
		return color.New(color.FgRed).SprintFunc()
	default:
		return fmt.Sprint
	}
}

func printStatus(w io.Writer, st client.Status) {
	bold := color.New(color.Bold).SprintFunc()
	_, _ = fmt.Fprintf(w, "%s %s\n", bold("state:"), stateColor(st.State)(st.State))
	_, _ = fmt.Fprintf(w, "%s %s\n", bold("strategy:"), st.Strategy)
	if st.Server == nil {
		_, _ = fmt.Fprintf(w, "%s none\n", bold("server:"))
		return
	}
	s := st.Server
	_, _ = fmt.Fprintf(w, "%s pid=%d liveness=%s dir=%s\n", bold("server:"), s.PID, s.Liveness, s.WorkDir)
	if !s.StartedAt.IsZero() {
		_, _ = fmt.Fprintf(w, "%s %s\n", bold("started:"), s.StartedAt.Format("2006-01-02 15:04:05"))
	}
	if s.ExitErr != "" {
		_, _ = fmt.Fprintf(w, "%s %s\n", bold("exit:"), s.ExitErr)
	}
}
