package logger

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

const ansiReset = "\033[0m"

// ColorTextHandler wraps slog.TextHandler and prints a colored level tag in
// front of every line. The plain level attribute is dropped.
type ColorTextHandler struct {
	inner slog.Handler
	out   *prefixWriter
}

// prefixWriter prepends the pending tag to the single Write slog.TextHandler
// issues per record. prefix is only touched while mu is held by Handle.
type prefixWriter struct {
	mu     sync.Mutex
	w      io.Writer
	prefix string
}

func (p *prefixWriter) Write(b []byte) (int, error) {
	if _, err := io.WriteString(p.w, p.prefix); err != nil {
		return 0, err
	}
	return p.w.Write(b)
}

// NewColorTextHandler creates a new ColorTextHandler. When showTime is false
// the time attribute is omitted.
func NewColorTextHandler(w io.Writer, opts *slog.HandlerOptions, showTime bool) *ColorTextHandler {
	var o slog.HandlerOptions
	if opts != nil {
		o = *opts
	}
	prev := o.ReplaceAttr
	o.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
		if len(groups) == 0 {
			switch a.Key {
			case slog.LevelKey:
				return slog.Attr{}
			case slog.TimeKey:
				if !showTime {
					return slog.Attr{}
				}
			}
		}
		if prev != nil {
			return prev(groups, a)
		}
		return a
	}
	out := &prefixWriter{w: w}
	return &ColorTextHandler{inner: slog.NewTextHandler(out, &o), out: out}
}

func (h *ColorTextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle implements slog.Handler
func (h *ColorTextHandler) Handle(ctx context.Context, r slog.Record) error {
	h.out.mu.Lock()
	defer h.out.mu.Unlock()
	h.out.prefix = levelColor(r.Level) + r.Level.String() + ansiReset + " "
	return h.inner.Handle(ctx, r)
}

func (h *ColorTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ColorTextHandler{inner: h.inner.WithAttrs(attrs), out: h.out}
}

func (h *ColorTextHandler) WithGroup(name string) slog.Handler {
	return &ColorTextHandler{inner: h.inner.WithGroup(name), out: h.out}
}

func levelColor(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "\033[31m" // Red
	case l >= slog.LevelWarn:
		return "\033[33m" // Yellow
	case l >= slog.LevelInfo:
		return "\033[32m" // Green
	default:
		return "\033[36m" // Cyan
	}
}
