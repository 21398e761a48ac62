package main

import (
	"log/slog"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/loykin/cockpit"
)

var sdNotify = daemon.SdNotify

// systemdNotifier reports readiness and shutdown to systemd when the
// launcher runs as a Type=notify unit. Outside systemd it does nothing.
func systemdNotifier(log *slog.Logger) func(cockpit.StateChanged) {
	return func(e cockpit.StateChanged) {
		var state string
		switch e.To {
		case cockpit.Running:
			state = daemon.SdNotifyReady
		case cockpit.ShuttingDown:
			state = daemon.SdNotifyStopping
		default:
			return
		}
		sent, err := sdNotify(false, state+"\nSTATUS=server "+e.To.String())
		if err != nil {
			log.Warn("systemd notify failed", "state", state, "error", err)
			return
		}
		if sent {
			log.Debug("systemd notified", "state", state)
		}
	}
}
