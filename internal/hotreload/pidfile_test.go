package hotreload

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestPIDFile_WriteAndRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "river.pid")

	if err := WritePIDFile(path); err != nil {
		t.Fatalf("WritePIDFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != strconv.Itoa(os.Getpid()) {
		t.Fatalf("pidfile contents: got %q, want current pid", data)
	}

	if err := RemovePIDFile(path); err != nil {
		t.Fatalf("RemovePIDFile: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("expected pidfile to be removed")
	}
}

func TestRemovePIDFile_LeavesOthersPIDAlone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "river.pid")
	if err := os.WriteFile(path, []byte("999999999"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := RemovePIDFile(path); err != nil {
		t.Fatalf("RemovePIDFile: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatal("expected pidfile owned by another pid to survive")
	}
}

func TestWritePIDFile_Empty(t *testing.T) {
	if err := WritePIDFile(""); err != nil {
		t.Fatalf("WritePIDFile(\"\") should be a no-op, got: %v", err)
	}
}
