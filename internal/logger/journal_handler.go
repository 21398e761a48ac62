package logger

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/journal"
)

// SyslogIdentifier tags launcher records in the systemd journal.
const SyslogIdentifier = "cockpit"

type journalSend func(message string, priority journal.Priority, vars map[string]string) error

// JournalHandler writes records to the systemd journal as structured fields.
// Attribute keys become upper-case field names, groups joined by '_'.
type JournalHandler struct {
	level  slog.Leveler
	fields map[string]string // from WithAttrs, already prefixed
	groups []string
	send   journalSend
}

func NewJournalHandler(opts *slog.HandlerOptions) *JournalHandler {
	var lvl slog.Leveler = slog.LevelInfo
	if opts != nil && opts.Level != nil {
		lvl = opts.Level
	}
	return &JournalHandler{level: lvl, send: journal.Send}
}

// JournalAvailable reports whether the journal socket is reachable.
func JournalAvailable() bool { return journal.Enabled() }

func (h *JournalHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

func (h *JournalHandler) Handle(_ context.Context, r slog.Record) error {
	fields := make(map[string]string, len(h.fields)+r.NumAttrs()+1)
	for k, v := range h.fields {
		fields[k] = v
	}
	fields["SYSLOG_IDENTIFIER"] = SyslogIdentifier
	r.Attrs(func(a slog.Attr) bool {
		addJournalField(fields, a, h.groups)
		return true
	})
	return h.send(r.Message, journalPriority(r.Level), fields)
}

func (h *JournalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := *h
	nh.fields = make(map[string]string, len(h.fields)+len(attrs))
	for k, v := range h.fields {
		nh.fields[k] = v
	}
	for _, a := range attrs {
		addJournalField(nh.fields, a, h.groups)
	}
	return &nh
}

func (h *JournalHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	nh := *h
	nh.groups = append(append([]string(nil), h.groups...), name)
	return &nh
}

func journalPriority(l slog.Level) journal.Priority {
	switch {
	case l >= slog.LevelError:
		return journal.PriErr
	case l >= slog.LevelWarn:
		return journal.PriWarning
	case l >= slog.LevelInfo:
		return journal.PriInfo
	default:
		return journal.PriDebug
	}
}

func addJournalField(fields map[string]string, a slog.Attr, groups []string) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		g := groups
		if a.Key != "" {
			g = append(append([]string(nil), groups...), a.Key)
		}
		for _, ga := range a.Value.Group() {
			addJournalField(fields, ga, g)
		}
		return
	}
	key := journalKey(append(append([]string(nil), groups...), a.Key))
	if key == "" {
		return
	}
	switch a.Value.Kind() {
	case slog.KindTime:
		fields[key] = a.Value.Time().Format(time.RFC3339Nano)
	case slog.KindFloat64:
		fields[key] = strconv.FormatFloat(a.Value.Float64(), 'g', -1, 64)
	default:
		fields[key] = a.Value.String()
	}
}

// journalKey maps parts to a valid journal field name: upper-case letters,
// digits and underscores, not starting with an underscore.
func journalKey(parts []string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.Join(parts, "_")) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return strings.TrimLeft(b.String(), "_")
}

// multiHandler fans records out to every handler that accepts them.
type multiHandler []slog.Handler

func (m multiHandler) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range m {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (m multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var first error
	for _, h := range m {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && first == nil {
			first = fmt.Errorf("log handler: %w", err)
		}
	}
	return first
}

func (m multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(multiHandler, len(m))
	for i, h := range m {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (m multiHandler) WithGroup(name string) slog.Handler {
	out := make(multiHandler, len(m))
	for i, h := range m {
		out[i] = h.WithGroup(name)
	}
	return out
}
