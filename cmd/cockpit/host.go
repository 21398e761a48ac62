package main

import (
	"context"
	"log/slog"
	"sync"

	"github.com/loykin/cockpit"
)

// headlessHost stands in for a GUI when the launcher runs from a terminal.
// Window operations are logged and Exit ends the run.
type headlessHost struct {
	mu     sync.Mutex
	log    *slog.Logger
	cancel context.CancelFunc
	window *headlessWindow
	exited bool
	code   int
}

func newHeadlessHost(log *slog.Logger, cancel context.CancelFunc) *headlessHost {
	if log == nil {
		log = slog.Default()
	}
	return &headlessHost{log: log, cancel: cancel, window: &headlessWindow{log: log, visible: true}}
}

func (h *headlessHost) MainWindow() (cockpit.Window, bool) { return h.window, true }

func (h *headlessHost) Exit(code int) {
	h.mu.Lock()
	if !h.exited {
		h.exited = true
		h.code = code
	}
	h.mu.Unlock()
	h.log.Debug("exit requested", "code", code)
	if h.cancel != nil {
		h.cancel()
	}
}

// ExitCode reports the code passed to the first Exit call.
func (h *headlessHost) ExitCode() (int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.code, h.exited
}

type headlessWindow struct {
	mu      sync.Mutex
	log     *slog.Logger
	visible bool
}

func (w *headlessWindow) setVisible(v bool, op string) error {
	w.mu.Lock()
	w.visible = v
	w.mu.Unlock()
	w.log.Debug("window", "op", op)
	return nil
}

func (w *headlessWindow) Show() error       { return w.setVisible(true, "show") }
func (w *headlessWindow) Hide() error       { return w.setVisible(false, "hide") }
func (w *headlessWindow) Unminimize() error { w.log.Debug("window", "op", "unminimize"); return nil }
func (w *headlessWindow) SetFocus() error   { w.log.Debug("window", "op", "focus"); return nil }

func (w *headlessWindow) Visible() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.visible
}
