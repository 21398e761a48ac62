package process

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteAndReadPIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "srv.pid")
	self := os.Getpid()
	if err := WritePIDFile(path, self); err != nil {
		t.Fatalf("write: %v", err)
	}
	b, _ := os.ReadFile(path)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) != 2 || !strings.Contains(lines[1], "start_unix") {
		t.Fatalf("unexpected pid file content %q", string(b))
	}
	pid, start, err := ReadPIDFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if pid != self {
		t.Fatalf("pid = %d, want %d", pid, self)
	}
	if start <= 0 {
		t.Fatalf("start time not recorded")
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind")
	}
}

func TestReadPIDFileMissing(t *testing.T) {
	_, _, err := ReadPIDFile(filepath.Join(t.TempDir(), "none.pid"))
	if !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestRemovePIDFileIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.pid")
	if err := os.WriteFile(path, []byte("1\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if err := RemovePIDFile(path); err != nil {
			t.Fatalf("remove #%d: %v", i, err)
		}
	}
	if err := RemovePIDFile(""); err != nil {
		t.Fatalf("empty path: %v", err)
	}
}
