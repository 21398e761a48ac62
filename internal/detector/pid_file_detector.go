package detector

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	gopsproc "github.com/shirou/gopsutil/v4/process"
)

// PIDMeta is the optional JSON line following the PID in a pid file.
type PIDMeta struct {
	StartUnix int64 `json:"start_unix"`
}

// StartUnix returns the process creation time as Unix seconds, or 0 when
// unavailable.
func StartUnix(pid int) int64 {
	if pid <= 0 {
		return 0
	}
	p, err := gopsproc.NewProcess(int32(pid))
	if err != nil {
		return 0
	}
	ms, err := p.CreateTime()
	if err != nil || ms <= 0 {
		return 0
	}
	return ms / 1000
}

// pidAlive returns true if a non-zombie process with pid exists.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	ok, err := gopsproc.PidExists(int32(pid))
	if err != nil || !ok {
		return false
	}
	p, err := gopsproc.NewProcess(int32(pid))
	if err != nil {
		return false
	}
	// A killed child stays in the table until reaped.
	if st, err := p.Status(); err == nil && slices.Contains(st, gopsproc.Zombie) {
		return false
	}
	return true
}

// PIDDetector detects by a provided PID number. A non-zero StartUnix guards
// against PID reuse.
type PIDDetector struct {
	PID       int
	StartUnix int64
}

func (d PIDDetector) Alive() (bool, error) {
	if d.StartUnix > 0 {
		if cur := StartUnix(d.PID); cur > 0 && cur != d.StartUnix {
			return false, nil // PID reused; not our process
		}
	}
	return pidAlive(d.PID), nil
}

func (d PIDDetector) Describe() string { return fmt.Sprintf("pid:%d", d.PID) }

// PIDFileDetector detects a process via a PID file: the PID on the first line,
// optionally followed by a PIDMeta JSON line.
type PIDFileDetector struct {
	PIDFile string
}

// Lookup parses the pid file. A missing file yields pid 0 and no error.
func (d PIDFileDetector) Lookup() (int, PIDMeta, error) {
	data, err := os.ReadFile(d.PIDFile)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, PIDMeta{}, nil
		}
		return 0, PIDMeta{}, err
	}
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	pidStr := strings.TrimSpace(lines[0])
	if pidStr == "" {
		return 0, PIDMeta{}, fmt.Errorf("empty pidfile: %s", d.PIDFile)
	}
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return 0, PIDMeta{}, fmt.Errorf("invalid pid in %s: %w", d.PIDFile, err)
	}
	var meta PIDMeta
	for _, line := range lines[1:] {
		var m PIDMeta
		if err := json.Unmarshal([]byte(strings.TrimSpace(line)), &m); err == nil && m.StartUnix > 0 {
			meta = m
			break
		}
	}
	return pid, meta, nil
}

func (d PIDFileDetector) Alive() (bool, error) {
	pid, meta, err := d.Lookup()
	if err != nil || pid == 0 {
		return false, err
	}
	return PIDDetector{PID: pid, StartUnix: meta.StartUnix}.Alive()
}

func (d PIDFileDetector) Describe() string { return "pidfile:" + d.PIDFile }
