package process

import (
	"runtime"
	"testing"
	"time"
)

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("tests require sleep on Unix-like systems")
	}
}

func sleepSpec(seconds string) Spec {
	return Spec{Name: "srv", Executable: "sleep", Args: []string{seconds}}
}

// startSleep spawns a real child through the launcher and kills it on cleanup.
func startSleep(t *testing.T) *Process {
	t.Helper()
	p, err := NewLauncher(sleepSpec("30")).Launch(t.TempDir())
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	t.Cleanup(func() {
		_ = p.Kill()
		p.WaitExit(2 * time.Second)
	})
	return p
}

func waitUntil(timeout, step time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(step)
	}
	return cond()
}
