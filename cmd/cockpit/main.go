package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/loykin/cockpit/pkg/client"
)

func main() {
	root := buildRoot(command{})
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildRoot creates the root command. Running it without a subcommand is
// the same as "cockpit run".
func buildRoot(c command) *cobra.Command {
	globalFlags := &GlobalFlags{}
	runFlags := &RunFlags{}
	probeFlags := &ProbeFlags{}
	clientFlags := &ClientFlags{}

	root := createRootCommand(globalFlags)
	run := createRunCommand(c, globalFlags, runFlags)
	root.RunE = run.RunE
	addRunFlags(root, runFlags)

	root.AddCommand(
		run,
		createProbeCommand(c, globalFlags, probeFlags),
		createClientCommand("status", "Show launcher and server status", c.Status, globalFlags, clientFlags),
		createClientCommand("show", "Show and focus the launcher window", c.Show, globalFlags, clientFlags),
		createClientCommand("hide", "Hide the launcher window to the tray", c.Hide, globalFlags, clientFlags),
		createClientCommand("quit", "Stop the server and exit the launcher", c.Quit, globalFlags, clientFlags),
	)
	return root
}

func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "cockpit",
		Short: "Desktop launcher for a local Node.js server",
		Long: `Cockpit starts the local server, waits for it to accept connections and
keeps it alive until the launcher quits, then stops it with its children.

Examples:
  cockpit                           # run with defaults
  cockpit run --dev                 # server directory is the parent of cwd
  cockpit run --control=127.0.0.1:3900
  cockpit status                    # query a running launcher
  cockpit quit`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	return root
}

func addRunFlags(cmd *cobra.Command, f *RunFlags) {
	cmd.Flags().BoolVar(&f.Dev, "dev", false, "development layout: server directory is the parent of the working directory")
	cmd.Flags().StringVar(&f.Dir, "dir", "", "server directory (overrides --dev)")
	cmd.Flags().IntVar(&f.Port, "port", 3847, "port probed for readiness")
	cmd.Flags().StringVar(&f.Strategy, "strategy", "auto", "termination strategy: auto, tree or direct")
	cmd.Flags().StringVar(&f.LogLevel, "log-level", "info", "log level: debug, info, warn or error")
	cmd.Flags().StringVar(&f.Control, "control", "", "loopback address for the control API (e.g. 127.0.0.1:3900)")
	cmd.Flags().StringVar(&f.History, "history", "", "history DSN (sqlite://, postgres://, clickhouse://)")
}

func createRunCommand(c command, g *GlobalFlags, f *RunFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the server and supervise it until quit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Run(cmd.Context(), *g, runOverrides(*f, cmd.Flags().Changed))
		},
	}
	addRunFlags(cmd, f)
	return cmd
}

func createProbeCommand(c command, g *GlobalFlags, f *ProbeFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Wait for the server port and report readiness",
		Long: `Probe polls the configured address until it accepts a TCP connection or
the timeout elapses. It exits non-zero when the server is not ready.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Probe(cmd.Context(), *g, probeOverrides(*f, cmd.Flags().Changed))
		},
	}
	cmd.Flags().StringVar(&f.Host, "host", "127.0.0.1", "host to probe")
	cmd.Flags().IntVar(&f.Port, "port", 3847, "port to probe")
	cmd.Flags().DurationVar(&f.Timeout, "timeout", 8*time.Second, "overall readiness timeout")
	cmd.Flags().DurationVar(&f.Interval, "interval", 200*time.Millisecond, "delay between attempts")
	return cmd
}

type clientFunc func(ctx context.Context, g GlobalFlags, f ClientFlags) error

func createClientCommand(use, short string, fn clientFunc, g *GlobalFlags, f *ClientFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fn(cmd.Context(), *g, *f)
		},
	}
	cmd.Flags().StringVar(&f.APIUrl, "api-url", "", "control API URL (default from config, then "+client.DefaultBaseURL+")")
	cmd.Flags().DurationVar(&f.APITimeout, "api-timeout", 5*time.Second, "request timeout")
	return cmd
}
