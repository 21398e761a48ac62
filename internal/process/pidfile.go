package process

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/loykin/cockpit/internal/detector"
)

// WritePIDFile writes pid on the first line followed by a JSON line carrying
// the process start time, so a later run can tell a reused PID apart.
// The file is written to a temp path and renamed into place.
func WritePIDFile(path string, pid int) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create pid dir: %w", err)
		}
	}
	meta, _ := json.Marshal(detector.PIDMeta{StartUnix: detector.StartUnix(pid)})
	data := fmt.Sprintf("%d\n%s\n", pid, meta)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(data), 0o600); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write pid file: %w", err)
	}
	return nil
}

// ReadPIDFile returns the PID and recorded start time from path.
func ReadPIDFile(path string) (int, int64, error) {
	pid, meta, err := detector.PIDFileDetector{PIDFile: path}.Lookup()
	if err != nil {
		return 0, 0, err
	}
	if pid == 0 {
		return 0, 0, os.ErrNotExist
	}
	return pid, meta.StartUnix, nil
}

// RemovePIDFile removes path, ignoring a file that is already gone.
func RemovePIDFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
