package cockpit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/loykin/cockpit/internal/history"
	"github.com/loykin/cockpit/internal/history/sqlite"
)

func requireUnix(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires Unix-like environment")
	}
}

type memSink struct {
	mu     sync.Mutex
	events []history.Event
}

func (m *memSink) Send(_ context.Context, e history.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *memSink) types() []history.EventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]history.EventType, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Type)
	}
	return out
}

type recordingHost struct {
	mu    sync.Mutex
	codes []int
}

func (h *recordingHost) MainWindow() (Window, bool) { return nil, false }
func (h *recordingHost) Exit(code int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.codes = append(h.codes, code)
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func listen(t *testing.T) (net.Listener, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	return ln, ln.Addr().(*net.TCPAddr).Port
}

func TestDefaultConfigMatchesLauncherDefaults(t *testing.T) {
	c := DefaultConfig()
	require.Equal(t, "node", c.Server.Executable)
	require.Equal(t, []string{"server.js", "--no-open"}, c.Server.Args)
	require.Equal(t, 3, c.Launch.Attempts)
	require.Equal(t, 500*time.Millisecond, c.Launch.RetryInterval)
	require.Equal(t, 3847, c.Probe.Port)
	require.Equal(t, 8*time.Second, c.Probe.Timeout)
	require.Equal(t, 200*time.Millisecond, c.Probe.Interval)
}

func TestLoadConfigEmptyPath(t *testing.T) {
	c, err := LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1", c.Probe.Host)
}

func TestAppStartRunQuit(t *testing.T) {
	requireUnix(t)
	_, port := listen(t)

	c := DefaultConfig()
	c.Server.Executable = "sleep"
	c.Server.Args = []string{"30"}
	c.Server.Dir = t.TempDir()
	c.Server.PIDFile = filepath.Join(c.Server.Dir, "server.pid")
	c.Probe.Port = port

	sink := &memSink{}
	host := &recordingHost{}
	app, err := NewApp(c, WithLogger(quietLogger()), WithHistorySink(sink), WithHost(host))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	require.NoError(t, app.Start(context.Background()))
	require.Equal(t, "running", app.Coordinator.State().String())
	st := app.Coordinator.Status()
	require.NotNil(t, st.Server)
	require.Positive(t, st.Server.PID)

	events := make(chan Event, 1)
	events <- Event{Kind: EventQuit}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, app.Run(ctx, events))

	require.Equal(t, "stopped", app.Coordinator.State().String())
	require.Equal(t, []int{0}, host.codes)
	require.Contains(t, sink.types(), history.EventStart)
	require.Contains(t, sink.types(), history.EventStop)
}

func TestAppStartExhausted(t *testing.T) {
	c := DefaultConfig()
	c.Server.Executable = filepath.Join(t.TempDir(), "missing-server")
	c.Server.Dir = t.TempDir()
	c.Launch.RetryInterval = time.Millisecond

	app, err := NewApp(c, WithLogger(quietLogger()))
	require.NoError(t, err)
	defer func() { _ = app.Close() }()

	err = app.Start(context.Background())
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrStartExhausted))
	require.Contains(t, err.Error(), "after 3 attempts")
	require.Equal(t, "stopped", app.Coordinator.State().String())
}

func TestAppHistoryFromDSN(t *testing.T) {
	requireUnix(t)
	_, port := listen(t)
	dbPath := filepath.Join(t.TempDir(), "history.db")

	c := DefaultConfig()
	c.Server.Executable = "sleep"
	c.Server.Args = []string{"30"}
	c.Server.Dir = t.TempDir()
	c.Probe.Port = port
	c.History.DSN = "sqlite://" + dbPath

	app, err := NewApp(c, WithLogger(quietLogger()))
	require.NoError(t, err)
	require.NoError(t, app.Start(context.Background()))
	require.NoError(t, app.Close())

	s, err := sqlite.New(dbPath)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	n, err := s.Count(context.Background(), history.EventStart)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	n, err = s.Count(context.Background(), history.EventStop)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestNewAppRejectsUnknownStrategy(t *testing.T) {
	c := DefaultConfig()
	c.Terminate.Strategy = "gentle"
	_, err := NewApp(c, WithLogger(quietLogger()))
	require.Error(t, err)
}

func TestRouterFacadeStatus(t *testing.T) {
	c := DefaultConfig()
	app, err := NewApp(c, WithLogger(quietLogger()))
	require.NoError(t, err)
	defer func() { _ = app.Close() }()

	srv := httptest.NewServer(NewRouter(app.Coordinator, "/api").Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/api/status")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsFacade(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, RegisterMetrics(reg))
	require.NoError(t, RegisterMetrics(reg))

	rr := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, strings.Contains(rr.Body.String(), "go_goroutines"))
}
