package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/cockpit/internal/process"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cockpit.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "server", cfg.Server.Name)
	assert.Equal(t, "node", cfg.Server.Executable)
	assert.Equal(t, []string{"server.js", "--no-open"}, cfg.Server.Args)
	assert.True(t, cfg.Server.UseOSEnv)
	assert.Equal(t, 3, cfg.Launch.Attempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Launch.RetryInterval)
	assert.Equal(t, "127.0.0.1", cfg.Probe.Host)
	assert.Equal(t, 3847, cfg.Probe.Port)
	assert.Equal(t, 8*time.Second, cfg.Probe.Timeout)
	assert.Equal(t, 200*time.Millisecond, cfg.Probe.Interval)
	assert.Equal(t, "auto", cfg.Terminate.Strategy)
	assert.Equal(t, 10, cfg.Log.File.MaxSizeMB)
	assert.Equal(t, "127.0.0.1:3847", cfg.ProbeAddress())
	assert.Empty(t, cfg.Control.Listen)
	assert.Equal(t, cfg, Default())
}

func TestLoadTOML(t *testing.T) {
	path := writeConfig(t, `
[server]
name = "dashboard"
executable = "bun"
args = ["run", "server.ts"]
dev = true
env = ["PORT=4000"]
pid_file = "/tmp/dashboard.pid"

[launch]
attempts = 5
retry_interval = "1s"

[probe]
port = 4000
timeout = "2s"
interval = "100ms"

[terminate]
strategy = "tree"

[log]
level = "debug"
format = "json"
dir = "/var/log/cockpit"
max_backups = 9

[history]
dsn = "sqlite:///tmp/history.db"

[control]
listen = "127.0.0.1:3900"
base_path = "/api"
`)
	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "dashboard", cfg.Server.Name)
	assert.Equal(t, []string{"run", "server.ts"}, cfg.Server.Args)
	assert.True(t, cfg.Server.Dev)
	assert.Equal(t, 5, cfg.Launch.Attempts)
	assert.Equal(t, time.Second, cfg.Launch.RetryInterval)
	assert.Equal(t, 4000, cfg.Probe.Port)
	assert.Equal(t, 2*time.Second, cfg.Probe.Timeout)
	assert.Equal(t, 100*time.Millisecond, cfg.Probe.Interval)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/var/log/cockpit", cfg.Log.File.Dir)
	assert.Equal(t, 9, cfg.Log.File.MaxBackups)
	assert.Equal(t, 7, cfg.Log.File.MaxAgeDays, "unset keys keep defaults")
	assert.Equal(t, "sqlite:///tmp/history.db", cfg.History.DSN)
	assert.Equal(t, "/api", cfg.Control.BasePath)

	term, err := cfg.Terminator()
	require.NoError(t, err)
	assert.Equal(t, process.StrategyTree, term.Strategy())
}

func TestEnvAndOverridesWin(t *testing.T) {
	path := writeConfig(t, "[probe]\nport = 4000\n")
	t.Setenv("COCKPIT_PROBE_PORT", "4100")
	t.Setenv("COCKPIT_LAUNCH_RETRY_INTERVAL", "750ms")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 4100, cfg.Probe.Port)
	assert.Equal(t, 750*time.Millisecond, cfg.Launch.RetryInterval)

	cfg, err = Load(path, map[string]any{"probe.port": 4200, "server.dev": true})
	require.NoError(t, err)
	assert.Equal(t, 4200, cfg.Probe.Port)
	assert.True(t, cfg.Server.Dev)
}

func TestValidateCollectsErrors(t *testing.T) {
	path := writeConfig(t, `
[server]
executable = ""
[launch]
attempts = 0
[probe]
port = 70000
[terminate]
strategy = "polite"
[log]
level = "loud"
format = "xml"
`)
	_, err := Load(path, nil)
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{"server.executable", "launch.attempts", "probe.port", "terminate.strategy", "log.level", "log.format"} {
		assert.Contains(t, msg, want)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestProcessSpecComposesEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "server.env"), []byte("# comment\nFILE_ONLY=fv\nCHAIN=${BASE}-file\n\nBAD\n"), 0o600))
	path := filepath.Join(dir, "cockpit.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
use_os_env = false
env_files = ["server.env"]
env = ["BASE=b", "CHAIN=${BASE}-list"]
pid_file = "run/server.pid"
[log]
dir = "logs"
`), 0o600))

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "server.env"), cfg.Server.EnvFiles[0], "env files resolve against the config dir")

	spec, err := cfg.ProcessSpec()
	require.NoError(t, err)
	assert.Equal(t, "server", spec.Name)
	assert.Equal(t, "run/server.pid", spec.PIDFile)
	assert.Equal(t, "logs", spec.Log.File.Dir)
	assert.True(t, slices.Contains(spec.Env, "FILE_ONLY=fv"))
	assert.True(t, slices.Contains(spec.Env, "CHAIN=b-list"), "env list overrides env files: %v", spec.Env)
	for _, kv := range spec.Env {
		assert.False(t, strings.HasPrefix(kv, "BAD"), "malformed line kept: %v", spec.Env)
	}
}

func TestProcessSpecMissingEnvFile(t *testing.T) {
	cfg := Default()
	cfg.Server.EnvFiles = []string{filepath.Join(t.TempDir(), "nope.env")}
	_, err := cfg.ProcessSpec()
	assert.Error(t, err)
}

func TestLoadEnvFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(p, []byte("A=1\n#comment\n B = two \n=novalue\n"), 0o600))
	pairs, err := LoadEnvFile(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"A=1", "B=two"}, pairs)
}
