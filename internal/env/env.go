// Package env composes the environment handed to the supervised server.
package env

import (
	"os"
	"sort"
	"strings"
)

// Env layers KEY=VALUE overrides on top of an optional copy of the launcher's
// own environment. The zero value is usable and starts from an empty base.
type Env struct {
	base map[string]string
	vars []string
}

// New returns an Env. When useOS is true the current process environment is
// captured as the base layer.
func New(useOS bool) *Env {
	e := &Env{}
	if useOS {
		e.base = parse(os.Environ())
	}
	return e
}

// With returns a copy of e with kvs appended as overrides. Later entries win.
func (e *Env) With(kvs ...string) *Env {
	out := &Env{base: e.base}
	out.vars = append(append([]string(nil), e.vars...), kvs...)
	return out
}

// Build composes base and overrides and performs ${VAR} expansion against the
// composed map (one pass, no recursion). Unknown references are kept verbatim.
// The result is sorted by key. An empty composition returns nil so that
// exec.Cmd inherits the parent environment.
func (e *Env) Build() []string {
	m := make(map[string]string, len(e.base)+len(e.vars))
	for k, v := range e.base {
		m[k] = v
	}
	for k, v := range parse(e.vars) {
		m[k] = v
	}
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+expand(m[k], m))
	}
	return out
}

// parse turns KEY=VALUE entries into a map, skipping malformed ones.
func parse(kvs []string) map[string]string {
	m := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(k) == "" {
			continue
		}
		m[k] = v
	}
	return m
}

func expand(s string, m map[string]string) string {
	var b strings.Builder
	for {
		i := strings.Index(s, "${")
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		j := strings.IndexByte(s[i+2:], '}')
		if j < 0 {
			b.WriteString(s)
			return b.String()
		}
		name := s[i+2 : i+2+j]
		b.WriteString(s[:i])
		if v, ok := m[name]; ok {
			b.WriteString(v)
		} else {
			b.WriteString(s[i : i+3+j])
		}
		s = s[i+3+j:]
	}
}
