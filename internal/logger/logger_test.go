package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLogger_WritesLevelFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	l, err := NewLogger(dir)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	l.Info("frame %d", 1)
	l.Warning("queue full")
	l.Error("detector failed")
	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	checks := map[string]string{
		InfoFile:    "frame 1",
		WarningFile: "queue full",
		ErrorFile:   "detector failed",
	}
	for file, want := range checks {
		data, err := os.ReadFile(filepath.Join(dir, file))
		if err != nil {
			t.Fatalf("Failed to read %s: %v", file, err)
		}
		if !strings.Contains(string(data), want) {
			t.Errorf("Expected %s to contain %q, got %q", file, want, data)
		}
	}
}

func TestCleanLogs(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLogger(dir)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer l.Close()

	l.Warning("something")
	if err := l.CleanLogs(WarningFile); err != nil {
		t.Fatalf("CleanLogs failed: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, WarningFile))
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Size() != 0 {
		t.Errorf("Expected empty warning log, got %d bytes", info.Size())
	}
}

func TestNew_Writer(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)
	l.Info("hello %s", "world")

	if !strings.Contains(buf.String(), "INFO") || !strings.Contains(buf.String(), "hello world") {
		t.Errorf("Unexpected output: %q", buf.String())
	}
	if err := l.Close(); err != nil {
		t.Errorf("Close on writer logger failed: %v", err)
	}
}
