package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetupWritesJSONLines(t *testing.T) {
	dataDir := t.TempDir()
	cfg := DebugConfig(dataDir)
	cfg.WriteToStderr = false

	logger, cleanup, err := Setup(cfg)
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	logger.Info("plan computed", slog.Int("items", 3))
	cleanup()

	data, err := os.ReadFile(LogPath(dataDir))
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"plan computed"`) {
		t.Errorf("log file missing structured message: %s", data)
	}
	if !strings.Contains(string(data), `"items":3`) {
		t.Errorf("log file missing attribute: %s", data)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRotatingWriterRotates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.log")

	// 1 MB max; write two chunks that together exceed it.
	w, err := NewRotatingWriter(path, 1, 3)
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	defer w.Close()

	chunk := strings.Repeat("x", 600*1024)
	if _, err := w.Write([]byte(chunk)); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if _, err := w.Write([]byte(chunk)); err != nil {
		t.Fatalf("second write failed: %v", err)
	}

	if _, err := os.Stat(path + ".1"); err != nil {
		t.Errorf("expected rotated file %s.1 to exist: %v", path, err)
	}
}

func TestWriteRecoversFromFailedRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.log")

	w, err := NewRotatingWriter(path, 1, 3)
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	defer w.Close()

	// A rotation that fails after closing the current file leaves it nil.
	w.mu.Lock()
	_ = w.file.Close()
	w.file = nil
	w.mu.Unlock()

	if _, err := w.Write([]byte("after failure\n")); err != nil {
		t.Fatalf("Write after failed rotation: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "after failure") {
		t.Errorf("write after failed rotation lost data: %q", data)
	}
}
