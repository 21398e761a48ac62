package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default logging configuration constants
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of backup files
	DefaultMaxAgeDays = 7  // days
)

// Output formats understood by New. FormatJournal sends records to the
// systemd journal; a log file, if set, still receives text. Without a
// journal it behaves like FormatText.
const (
	FormatAuto    = "auto"
	FormatText    = "text"
	FormatColor   = "color"
	FormatJSON    = "json"
	FormatJournal = "journal"
)

// Config controls the launcher's own log output and where the supervised
// server's stdout/stderr end up.
type Config struct {
	Level  string     `json:"level" mapstructure:"level"`
	Format string     `json:"format" mapstructure:"format"`
	File   FileConfig `json:"file" mapstructure:",squash"`
}

// FileConfig describes rotating log files.
// If StdoutPath/StderrPath are empty and Dir is set, server output goes to
// Dir/<name>.stdout.log and Dir/<name>.stderr.log.
// Rotation parameters follow lumberjack semantics.
type FileConfig struct {
	Path       string `json:"path" mapstructure:"file"`       // launcher log file (in addition to the console)
	Dir        string `json:"dir" mapstructure:"dir"`         // base directory for server output
	StdoutPath string `json:"stdout" mapstructure:"stdout"`   // explicit stdout path overrides Dir
	StderrPath string `json:"stderr" mapstructure:"stderr"`   // explicit stderr path overrides Dir
	MaxSizeMB  int    `json:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `json:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `json:"compress" mapstructure:"compress"`
}

// New builds the root logger. Records go to console and, when File.Path is
// set, to a rotating file as well. The returned closer releases the file.
func New(cfg Config, console io.Writer) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	if console == nil {
		console = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: level}

	var closer io.Closer = nopCloser{}
	var fw *lj.Logger
	w := console
	if cfg.File.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File.Path), 0o750); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		fw = cfg.File.rotating(cfg.File.Path)
		closer = fw
		w = io.MultiWriter(console, fw)
	}

	var h slog.Handler
	if strings.EqualFold(strings.TrimSpace(cfg.Format), FormatJournal) && JournalAvailable() {
		h = NewJournalHandler(opts)
		if fw != nil {
			h = multiHandler{h, slog.NewTextHandler(fw, opts)}
		}
		return slog.New(h), closer, nil
	}
	switch resolveFormat(cfg.Format, console, cfg.File.Path != "") {
	case FormatJSON:
		h = slog.NewJSONHandler(w, opts)
	case FormatColor:
		h = NewColorTextHandler(w, opts, true)
	default:
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h), closer, nil
}

// ParseLevel maps a level name to slog.Level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// resolveFormat picks color output only for an interactive console without a
// file sink, since ANSI codes would end up in the file too.
func resolveFormat(format string, console io.Writer, hasFile bool) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatJSON:
		return FormatJSON
	case FormatText:
		return FormatText
	case FormatColor:
		return FormatColor
	}
	if hasFile {
		return FormatText
	}
	if f, ok := console.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		return FormatColor
	}
	return FormatText
}

// ProcessWriters returns io.WriteClosers for stdout and stderr of the named
// process. Nil writers mean the stream is not captured.
func (c Config) ProcessWriters(name string) (io.WriteCloser, io.WriteCloser, error) {
	f := c.File
	stdout := f.StdoutPath
	stderr := f.StderrPath
	if stdout == "" && f.Dir != "" {
		stdout = filepath.Join(f.Dir, fmt.Sprintf("%s.stdout.log", name))
	}
	if stderr == "" && f.Dir != "" {
		stderr = filepath.Join(f.Dir, fmt.Sprintf("%s.stderr.log", name))
	}
	var outW io.WriteCloser
	var errW io.WriteCloser
	if stdout != "" {
		outW = f.rotating(stdout)
	}
	if stderr != "" {
		errW = f.rotating(stderr)
	}
	return outW, errW, nil
}

// Captures reports whether any server output is redirected to files.
func (c Config) Captures() bool {
	return c.File.Dir != "" || c.File.StdoutPath != "" || c.File.StderrPath != ""
}

func (f FileConfig) rotating(path string) *lj.Logger {
	return &lj.Logger{
		Filename:   path,
		MaxSize:    valOr(f.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(f.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(f.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   f.Compress,
	}
}

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
