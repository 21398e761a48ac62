package lifecycle

import (
	"fmt"
	"os"
	"path/filepath"
)

// DirResolver computes the server working directory.
type DirResolver func() (string, error)

// ServerDir returns a DirResolver. A non-empty override wins. In a
// development run the server lives in the parent of the current directory;
// in a packaged run it sits next to the launcher executable.
func ServerDir(override string, dev bool) DirResolver {
	return serverDir(override, dev, os.Getwd, os.Executable)
}

func serverDir(override string, dev bool, getwd, executable func() (string, error)) DirResolver {
	return func() (string, error) {
		if override != "" {
			return filepath.Abs(override)
		}
		if dev {
			wd, err := getwd()
			if err != nil {
				return "", fmt.Errorf("current directory: %w", err)
			}
			return filepath.Dir(filepath.Clean(wd)), nil
		}
		exe, err := executable()
		if err != nil {
			return "", fmt.Errorf("launcher executable: %w", err)
		}
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		return filepath.Dir(exe), nil
	}
}
