package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func changedSet(names ...string) func(string) bool {
	m := map[string]bool{}
	for _, n := range names {
		m[n] = true
	}
	return func(n string) bool { return m[n] }
}

func TestRunOverridesOnlyChanged(t *testing.T) {
	f := RunFlags{Dev: true, Dir: "/srv", Port: 4000, Strategy: "tree", LogLevel: "debug", Control: "127.0.0.1:3900"}
	got := runOverrides(f, changedSet("dev", "port", "strategy"))
	require.Equal(t, map[string]any{
		"server.dev":         true,
		"probe.port":         4000,
		"terminate.strategy": "tree",
	}, got)
}

func TestRunOverridesNothingChanged(t *testing.T) {
	require.Empty(t, runOverrides(RunFlags{Port: 1}, changedSet()))
}

func TestRunOverridesAllKeys(t *testing.T) {
	got := runOverrides(RunFlags{History: "sqlite://h.db"}, changedSet("dev", "dir", "port", "strategy", "log-level", "control", "history"))
	require.Len(t, got, 7)
	require.Equal(t, "sqlite://h.db", got["history.dsn"])
}

func TestProbeOverrides(t *testing.T) {
	f := ProbeFlags{Host: "localhost", Port: 1, Timeout: time.Second, Interval: 50 * time.Millisecond}
	got := probeOverrides(f, changedSet("port", "interval"))
	require.Equal(t, map[string]any{"probe.port": 1, "probe.interval": 50 * time.Millisecond}, got)
}

func TestBuildRootCommands(t *testing.T) {
	root := buildRoot(command{})
	for _, name := range []string{"run", "probe", "status", "show", "hide", "quit"} {
		c, _, err := root.Find([]string{name})
		require.NoError(t, err)
		require.Equal(t, name, c.Name())
	}
	require.NotNil(t, root.RunE)
	require.NotNil(t, root.Flags().Lookup("dev"))
	require.NotNil(t, root.PersistentFlags().Lookup("config"))
}
