package lifecycle

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/loykin/cockpit/internal/history"
	"github.com/loykin/cockpit/internal/probe"
	"github.com/loykin/cockpit/internal/process"
)

// fakeLauncher hands out a handle attached to the test process itself, so
// nothing is spawned and the counting terminator never kills anything.
type fakeLauncher struct {
	calls  atomic.Int32
	err    error
	dirs   []string
	before func()
}

func (f *fakeLauncher) Launch(dir string) (*process.Process, error) {
	f.calls.Add(1)
	f.dirs = append(f.dirs, dir)
	if f.before != nil {
		f.before()
	}
	if f.err != nil {
		return nil, f.err
	}
	return process.Attach(os.Getpid(), 0, dir)
}

type fakeProber struct {
	res     probe.Result
	calls   atomic.Int32
	block   bool          // wait until ctx is done
	waiting chan struct{} // closed when a blocking Wait begins
}

func (f *fakeProber) Wait(ctx context.Context) probe.Result {
	f.calls.Add(1)
	if f.block {
		close(f.waiting)
		<-ctx.Done()
		return probe.Result{Elapsed: time.Second}
	}
	return f.res
}
func (f *fakeProber) Address() string        { return "127.0.0.1:3847" }
func (f *fakeProber) Timeout() time.Duration { return probe.DefaultTimeout }

type countingTerminator struct {
	calls    atomic.Int32
	pids     sync.Map
	err      error
	inner    process.Terminator
	delay    time.Duration
	onStart  func()
	finished atomic.Bool
}

func (c *countingTerminator) Terminate(p *process.Process) error {
	c.calls.Add(1)
	c.pids.Store(p.PID(), true)
	if c.onStart != nil {
		c.onStart()
	}
	time.Sleep(c.delay)
	defer c.finished.Store(true)
	if c.inner != nil {
		return c.inner.Terminate(p)
	}
	return c.err
}

func (c *countingTerminator) Strategy() string { return "counting" }

type fakeWindow struct {
	mu    sync.Mutex
	calls []string
}

func (w *fakeWindow) record(s string) error {
	w.mu.Lock()
	w.calls = append(w.calls, s)
	w.mu.Unlock()
	return nil
}
func (w *fakeWindow) Show() error       { return w.record("show") }
func (w *fakeWindow) Unminimize() error { return w.record("unminimize") }
func (w *fakeWindow) SetFocus() error   { return w.record("focus") }
func (w *fakeWindow) Hide() error       { return w.record("hide") }

func (w *fakeWindow) Calls() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.calls...)
}

type fakeHost struct {
	win    *fakeWindow
	mu     sync.Mutex
	exits  []int
	onExit func()
}

func newFakeHost() *fakeHost { return &fakeHost{win: &fakeWindow{}} }

func (h *fakeHost) MainWindow() (Window, bool) { return h.win, true }
func (h *fakeHost) Exit(code int) {
	if h.onExit != nil {
		h.onExit()
	}
	h.mu.Lock()
	h.exits = append(h.exits, code)
	h.mu.Unlock()
}
func (h *fakeHost) Exits() []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]int(nil), h.exits...)
}

type memSink struct {
	mu     sync.Mutex
	events []history.Event
	err    error
}

func (s *memSink) Send(_ context.Context, e history.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return s.err
}

func (s *memSink) Types() []history.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []history.EventType
	for _, e := range s.events {
		out = append(out, e.Type)
	}
	return out
}

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

type harness struct {
	c      *Coordinator
	launch *fakeLauncher
	probe  *fakeProber
	term   *countingTerminator
	host   *fakeHost
	sink   *memSink
	logs   *syncBuffer
	dir    string
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		launch: &fakeLauncher{},
		probe:  &fakeProber{res: probe.Result{Ready: true, Elapsed: 1500 * time.Millisecond, Attempts: 8}},
		term:   &countingTerminator{},
		host:   newFakeHost(),
		sink:   &memSink{},
		logs:   &syncBuffer{},
		dir:    t.TempDir(),
	}
	log := slog.New(slog.NewTextHandler(h.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	base := []Option{
		WithLogger(log),
		WithTerminator(h.term),
		WithHost(h.host),
		WithHistory(h.sink),
		WithServerDir(func() (string, error) { return h.dir, nil }),
	}
	h.c = New(h.launch, h.probe, append(base, opts...)...)
	return h
}

var errSpawn = errors.New("exec: \"node\": executable file not found")
