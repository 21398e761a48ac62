package main

import "time"

// Flag structs to decouple cobra from logic for testing.

// GlobalFlags holds persistent flags shared by every command.
type GlobalFlags struct {
	ConfigPath string
}

// RunFlags override config values for the run command. Only flags set on
// the command line are applied.
type RunFlags struct {
	Dev      bool
	Dir      string
	Port     int
	Strategy string
	LogLevel string
	Control  string
	History  string
}

type ProbeFlags struct {
	Host     string
	Port     int
	Timeout  time.Duration
	Interval time.Duration
}

// ClientFlags select the control surface of a running launcher.
type ClientFlags struct {
	APIUrl     string
	APITimeout time.Duration
}

// runOverrides maps the changed run flags to config keys.
func runOverrides(f RunFlags, changed func(name string) bool) map[string]any {
	out := map[string]any{}
	set := func(flag, key string, v any) {
		if changed(flag) {
			out[key] = v
		}
	}
	set("dev", "server.dev", f.Dev)
	set("dir", "server.dir", f.Dir)
	set("port", "probe.port", f.Port)
	set("strategy", "terminate.strategy", f.Strategy)
	set("log-level", "log.level", f.LogLevel)
	set("control", "control.listen", f.Control)
	set("history", "history.dsn", f.History)
	return out
}

func probeOverrides(f ProbeFlags, changed func(name string) bool) map[string]any {
	out := map[string]any{}
	if changed("host") {
		out["probe.host"] = f.Host
	}
	if changed("port") {
		out["probe.port"] = f.Port
	}
	if changed("timeout") {
		out["probe.timeout"] = f.Timeout
	}
	if changed("interval") {
		out["probe.interval"] = f.Interval
	}
	return out
}
