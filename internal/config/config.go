package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/loykin/cockpit/internal/env"
	"github.com/loykin/cockpit/internal/logger"
	"github.com/loykin/cockpit/internal/probe"
	"github.com/loykin/cockpit/internal/process"
)

// EnvPrefix prefixes environment overrides, e.g. COCKPIT_PROBE_PORT.
const EnvPrefix = "COCKPIT"

// Config represents the top-level TOML structure.
type Config struct {
	Server    ServerConfig    `toml:"server" mapstructure:"server"`
	Launch    LaunchConfig    `toml:"launch" mapstructure:"launch"`
	Probe     ProbeConfig     `toml:"probe" mapstructure:"probe"`
	Terminate TerminateConfig `toml:"terminate" mapstructure:"terminate"`
	Log       logger.Config   `toml:"log" mapstructure:"log"`
	History   HistoryConfig   `toml:"history" mapstructure:"history"`
	Control   ControlConfig   `toml:"control" mapstructure:"control"`
}

type ServerConfig struct {
	Name       string   `toml:"name" mapstructure:"name"`
	Executable string   `toml:"executable" mapstructure:"executable"`
	Args       []string `toml:"args" mapstructure:"args"`
	Dir        string   `toml:"dir" mapstructure:"dir"` // overrides dev/packaged resolution
	Dev        bool     `toml:"dev" mapstructure:"dev"`
	Env        []string `toml:"env" mapstructure:"env"`
	EnvFiles   []string `toml:"env_files" mapstructure:"env_files"`
	UseOSEnv   bool     `toml:"use_os_env" mapstructure:"use_os_env"`
	PIDFile    string   `toml:"pid_file" mapstructure:"pid_file"`
}

type LaunchConfig struct {
	Attempts      int           `toml:"attempts" mapstructure:"attempts"`
	RetryInterval time.Duration `toml:"retry_interval" mapstructure:"retry_interval"`
}

type ProbeConfig struct {
	Host     string        `toml:"host" mapstructure:"host"`
	Port     int           `toml:"port" mapstructure:"port"`
	Timeout  time.Duration `toml:"timeout" mapstructure:"timeout"`
	Interval time.Duration `toml:"interval" mapstructure:"interval"`
}

type TerminateConfig struct {
	Strategy string `toml:"strategy" mapstructure:"strategy"`
}

type HistoryConfig struct {
	DSN string `toml:"dsn" mapstructure:"dsn"`
}

// ControlConfig enables the loopback HTTP control surface when Listen is set.
type ControlConfig struct {
	Listen   string `toml:"listen" mapstructure:"listen"`
	BasePath string `toml:"base_path" mapstructure:"base_path"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.name", process.DefaultName)
	v.SetDefault("server.executable", process.DefaultExecutable)
	v.SetDefault("server.args", process.DefaultArgs())
	v.SetDefault("server.dir", "")
	v.SetDefault("server.dev", false)
	v.SetDefault("server.env", []string{})
	v.SetDefault("server.env_files", []string{})
	v.SetDefault("server.use_os_env", true)
	v.SetDefault("server.pid_file", "")

	v.SetDefault("launch.attempts", process.DefaultAttempts)
	v.SetDefault("launch.retry_interval", process.DefaultRetryInterval)

	v.SetDefault("probe.host", probe.DefaultHost)
	v.SetDefault("probe.port", probe.DefaultPort)
	v.SetDefault("probe.timeout", probe.DefaultTimeout)
	v.SetDefault("probe.interval", probe.DefaultInterval)

	v.SetDefault("terminate.strategy", process.StrategyAuto)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", logger.FormatAuto)
	v.SetDefault("log.file", "")
	v.SetDefault("log.dir", "")
	v.SetDefault("log.stdout", "")
	v.SetDefault("log.stderr", "")
	v.SetDefault("log.max_size_mb", logger.DefaultMaxSizeMB)
	v.SetDefault("log.max_backups", logger.DefaultMaxBackups)
	v.SetDefault("log.max_age_days", logger.DefaultMaxAgeDays)
	v.SetDefault("log.compress", false)

	v.SetDefault("history.dsn", "")
	v.SetDefault("control.listen", "")
	v.SetDefault("control.base_path", "")
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg, _ := Load("", nil)
	return cfg
}

// Load reads the TOML file at path (optional), applies COCKPIT_* environment
// overrides and then overrides, keyed like "probe.port". The result is
// validated.
func Load(path string, overrides map[string]any) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	for k, val := range overrides {
		v.Set(k, val)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if path != "" {
		cfg.resolvePaths(filepath.Dir(path))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// resolvePaths makes env_files relative to the config file.
func (c *Config) resolvePaths(base string) {
	for i, p := range c.Server.EnvFiles {
		if p != "" && !filepath.IsAbs(p) {
			c.Server.EnvFiles[i] = filepath.Join(base, p)
		}
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Server.Executable) == "" {
		errs = append(errs, errors.New("server.executable must not be empty"))
	}
	if c.Launch.Attempts < 1 {
		errs = append(errs, fmt.Errorf("launch.attempts must be at least 1, got %d", c.Launch.Attempts))
	}
	if c.Launch.RetryInterval < 0 {
		errs = append(errs, fmt.Errorf("launch.retry_interval must not be negative, got %s", c.Launch.RetryInterval))
	}
	if c.Probe.Port < 1 || c.Probe.Port > 65535 {
		errs = append(errs, fmt.Errorf("probe.port out of range: %d", c.Probe.Port))
	}
	if c.Probe.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("probe.timeout must be positive, got %s", c.Probe.Timeout))
	}
	if c.Probe.Interval <= 0 {
		errs = append(errs, fmt.Errorf("probe.interval must be positive, got %s", c.Probe.Interval))
	}
	if _, err := process.NewTerminator(c.Terminate.Strategy, runtime.GOOS); err != nil {
		errs = append(errs, fmt.Errorf("terminate.strategy: %w", err))
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", logger.FormatAuto, logger.FormatText, logger.FormatColor, logger.FormatJSON, logger.FormatJournal:
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// ProcessSpec builds the server spec, composing its environment from the OS
// environment (when enabled), env files and the env list, in that order.
func (c *Config) ProcessSpec() (process.Spec, error) {
	e := env.New(c.Server.UseOSEnv)
	for _, f := range c.Server.EnvFiles {
		pairs, err := LoadEnvFile(f)
		if err != nil {
			return process.Spec{}, fmt.Errorf("env file %s: %w", f, err)
		}
		e = e.With(pairs...)
	}
	e = e.With(c.Server.Env...)
	return process.Spec{
		Name:       c.Server.Name,
		Executable: c.Server.Executable,
		Args:       c.Server.Args,
		Env:        e.Build(),
		PIDFile:    c.Server.PIDFile,
		Log:        c.Log,
	}, nil
}

// ProbeAddress is the address the readiness probe connects to.
func (c *Config) ProbeAddress() string { return probe.Address(c.Probe.Host, c.Probe.Port) }

// Terminator returns the configured termination strategy for this platform.
func (c *Config) Terminator() (process.Terminator, error) {
	return process.NewTerminator(c.Terminate.Strategy, runtime.GOOS)
}

// LoadEnvFile reads KEY=VALUE lines from a dotenv-style file. Blank lines and
// lines starting with # are skipped.
func LoadEnvFile(path string) ([]string, error) {
	// Mitigate G304: sanitize user-provided path by cleaning it before use.
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	var out []string
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.IndexByte(line, '='); i > 0 {
			out = append(out, strings.TrimSpace(line[:i])+"="+strings.TrimSpace(line[i+1:]))
		}
	}
	return out, nil
}
