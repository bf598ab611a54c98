package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	toml "github.com/pelletier/go-toml/v2"
)

const (
	DefaultConfigFileName = "config.toml"
	DefaultDBName         = "tasks.db"
	DefaultLogName        = "taskmaster.log"

	appDirName = "taskmaster"
	configEnv  = "TASKMASTER_CONFIG"
)

type Keymap struct {
	Quit           string `toml:"quit"`
	Add            string `toml:"add"`
	Up             string `toml:"up"`
	Down           string `toml:"down"`
	Toggle         string `toml:"toggle"`
	Delete         string `toml:"delete"`
	Undo           string `toml:"undo"`
	Detail         string `toml:"detail"`
	Confirm        string `toml:"confirm"`
	Cancel         string `toml:"cancel"`
	Edit           string `toml:"edit"`
	StatusFilter   string `toml:"status_filter"`
	PriorityFilter string `toml:"priority_filter"`
	Dismiss        string `toml:"dismiss"`
}

type Config struct {
	DBPath                string `toml:"db_path" env:"TASKMASTER_DB_PATH"`
	LogPath               string `toml:"log_path" env:"TASKMASTER_LOG_PATH"`
	LogLevel              string `toml:"log_level" env:"TASKMASTER_LOG_LEVEL"`
	MetricsAddr           string `toml:"metrics_addr" env:"TASKMASTER_METRICS_ADDR"`
	DefaultStatusFilter   string `toml:"default_status_filter"`
	DefaultPriorityFilter string `toml:"default_priority_filter"`
	UndoWindow            string `toml:"undo_window"`
	ReminderInterval      string `toml:"reminder_interval"`
	ReminderGrace         string `toml:"reminder_grace"`
	Keys                  Keymap `toml:"keys"`
}

// ResolveConfigPath returns $TASKMASTER_CONFIG when set, otherwise the
// config file under the user config directory.
func ResolveConfigPath() string {
	if p := os.Getenv(configEnv); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return DefaultConfigFileName
	}
	return filepath.Join(dir, appDirName, DefaultConfigFileName)
}

// LoadOrCreate reads the config at path, writing the defaults first when the
// file does not exist. Relative db and log paths are resolved against the
// config file's directory. Environment variables override the file.
func LoadOrCreate(path string) (Config, error) {
	cfg := defaultConfig()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := write(path, cfg); err != nil {
			return cfg, err
		}
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return cfg, fmt.Errorf("read env: %w", err)
	}
	if cfg.DBPath == "" {
		cfg.DBPath = DefaultDBName
	}
	if cfg.LogPath == "" {
		cfg.LogPath = DefaultLogName
	}
	base := filepath.Dir(path)
	cfg.DBPath = resolve(base, cfg.DBPath)
	cfg.LogPath = resolve(base, cfg.LogPath)
	return cfg, nil
}

func resolve(base, p string) string {
	if filepath.IsAbs(p) || p == "-" {
		return p
	}
	return filepath.Join(base, p)
}

func write(path string, cfg Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Durations reports the parsed timing settings. Unparsable or non-positive
// values are replaced by their defaults and listed in invalid.
type Durations struct {
	UndoWindow       time.Duration
	ReminderInterval time.Duration
	ReminderGrace    time.Duration
}

func (c Config) Durations() (d Durations, invalid []string) {
	parse := func(name, v string, def time.Duration, allowZero bool) time.Duration {
		if v == "" {
			return def
		}
		parsed, err := time.ParseDuration(v)
		if err != nil || parsed < 0 || (parsed == 0 && !allowZero) {
			invalid = append(invalid, fmt.Sprintf("%s=%q", name, v))
			return def
		}
		return parsed
	}
	d.UndoWindow = parse("undo_window", c.UndoWindow, 5*time.Second, false)
	d.ReminderInterval = parse("reminder_interval", c.ReminderInterval, 30*time.Second, false)
	d.ReminderGrace = parse("reminder_grace", c.ReminderGrace, 60*time.Second, true)
	return d, invalid
}

func defaultConfig() Config {
	return Config{
		DBPath:                DefaultDBName,
		LogPath:               DefaultLogName,
		LogLevel:              "info",
		DefaultStatusFilter:   "all",
		DefaultPriorityFilter: "all",
		UndoWindow:            "5s",
		ReminderInterval:      "30s",
		ReminderGrace:         "60s",
		Keys: Keymap{
			Quit:           "q",
			Add:            "a",
			Up:             "k",
			Down:           "j",
			Toggle:         " ",
			Delete:         "d",
			Undo:           "u",
			Detail:         "i",
			Confirm:        "enter",
			Cancel:         "esc",
			Edit:           "e",
			StatusFilter:   "f",
			PriorityFilter: "p",
			Dismiss:        "x",
		},
	}
}
