package main

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loykin/cockpit"
)

func stubNotify(t *testing.T, err error) *[]string {
	t.Helper()
	var sent []string
	prev := sdNotify
	sdNotify = func(_ bool, state string) (bool, error) {
		sent = append(sent, state)
		return err == nil, err
	}
	t.Cleanup(func() { sdNotify = prev })
	return &sent
}

func TestSystemdNotifierStates(t *testing.T) {
	sent := stubNotify(t, nil)
	n := systemdNotifier(slog.New(slog.NewTextHandler(io.Discard, nil)))

	n(cockpit.StateChanged{From: cockpit.NotStarted, To: cockpit.Starting})
	n(cockpit.StateChanged{From: cockpit.Starting, To: cockpit.Running})
	n(cockpit.StateChanged{From: cockpit.Running, To: cockpit.ShuttingDown})
	n(cockpit.StateChanged{From: cockpit.ShuttingDown, To: cockpit.Stopped})

	require.Equal(t, []string{
		"READY=1\nSTATUS=server running",
		"STOPPING=1\nSTATUS=server shutting_down",
	}, *sent)
}

func TestSystemdNotifierErrorIsLogged(t *testing.T) {
	sent := stubNotify(t, errors.New("socket gone"))
	n := systemdNotifier(slog.New(slog.NewTextHandler(io.Discard, nil)))
	n(cockpit.StateChanged{From: cockpit.Starting, To: cockpit.Running})
	require.Len(t, *sent, 1)
}
