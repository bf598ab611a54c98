package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadOrCreateWritesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", DefaultConfigFileName)

	cfg, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("LoadOrCreate failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("Expected config file to be created: %v", err)
	}
	if want := filepath.Join(dir, "sub", DefaultDBName); cfg.DBPath != want {
		t.Errorf("Expected db path %s, got %s", want, cfg.DBPath)
	}
	if cfg.Keys.Undo != "u" || cfg.Keys.Toggle != " " {
		t.Errorf("Unexpected default keys %+v", cfg.Keys)
	}

	again, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("second LoadOrCreate failed: %v", err)
	}
	if again.Keys != cfg.Keys || again.UndoWindow != "5s" {
		t.Errorf("Expected defaults to round-trip, got %+v", again)
	}
}

func TestLoadOrCreateReadsFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultConfigFileName)
	body := `
db_path = "/var/lib/tasks.db"
undo_window = "4s"
default_priority_filter = "high"

[keys]
undo = "z"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TASKMASTER_LOG_LEVEL", "debug")

	cfg, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("LoadOrCreate failed: %v", err)
	}
	if cfg.DBPath != "/var/lib/tasks.db" {
		t.Errorf("Expected absolute db path kept, got %s", cfg.DBPath)
	}
	if cfg.Keys.Undo != "z" || cfg.Keys.Quit != "q" {
		t.Errorf("Expected file keys merged over defaults, got %+v", cfg.Keys)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Expected env override for log level, got %s", cfg.LogLevel)
	}
	if cfg.DefaultPriorityFilter != "high" {
		t.Errorf("Expected priority filter high, got %s", cfg.DefaultPriorityFilter)
	}
}

func TestLoadOrCreateRejectsBadToml(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultConfigFileName)
	if err := os.WriteFile(path, []byte("db_path = ["), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadOrCreate(path); err == nil {
		t.Error("Expected parse error")
	}
}

func TestDurations(t *testing.T) {
	cfg := defaultConfig()
	cfg.UndoWindow = "4s"
	cfg.ReminderInterval = "soon"
	cfg.ReminderGrace = "0s"

	d, invalid := cfg.Durations()
	if d.UndoWindow != 4*time.Second {
		t.Errorf("Expected 4s undo window, got %v", d.UndoWindow)
	}
	if d.ReminderInterval != 30*time.Second {
		t.Errorf("Expected default interval, got %v", d.ReminderInterval)
	}
	if d.ReminderGrace != 0 {
		t.Errorf("Expected zero grace allowed, got %v", d.ReminderGrace)
	}
	if len(invalid) != 1 {
		t.Errorf("Expected one invalid entry, got %v", invalid)
	}
}

func TestResolveConfigPathFromEnv(t *testing.T) {
	t.Setenv("TASKMASTER_CONFIG", "/tmp/custom.toml")
	if got := ResolveConfigPath(); got != "/tmp/custom.toml" {
		t.Errorf("Expected env path, got %s", got)
	}
}
