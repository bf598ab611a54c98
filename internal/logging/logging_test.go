package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "taskmaster.log")
	logger, closer, err := New(path, "warn")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Info().Msg("dropped")
	logger.Warn().Str("component", "saver").Msg("kept")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("Expected 1 record, got %d: %q", len(lines), data)
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("Expected JSON record: %v", err)
	}
	if rec["message"] != "kept" || rec["component"] != "saver" {
		t.Errorf("Unexpected record %v", rec)
	}
	if _, ok := rec["timestamp"]; !ok {
		t.Error("Expected a timestamp field")
	}
	if _, ok := rec["pid"]; !ok {
		t.Error("Expected a pid field")
	}
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	logger, closer, err := New("-", "chatty")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer closer.Close()
	if logger.GetLevel() != zerolog.InfoLevel {
		t.Errorf("Expected info level, got %s", logger.GetLevel())
	}
	if Console("").GetLevel() != zerolog.InfoLevel {
		t.Error("Expected console logger to default to info")
	}
}
