// Package config loads the application configuration from a YAML file with
// environment variable expansion. A missing file is not an error, the
// defaults apply.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/nikbrunner/marks/internal/storage"
)

// Log levels accepted in the config file.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Config is the full application configuration.
type Config struct {
	App     AppConfig     `yaml:"app"`
	Store   StoreConfig   `yaml:"store"`
	Undo    UndoConfig    `yaml:"undo"`
	Backup  BackupConfig  `yaml:"backup"`
	Checker CheckerConfig `yaml:"checker"`
}

// Validate validates every section.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if err := c.Undo.Validate(); err != nil {
		return err
	}
	if err := c.Backup.Validate(); err != nil {
		return err
	}
	return c.Checker.Validate()
}

// AppConfig holds application-level settings.
type AppConfig struct {
	LogLevel       string `yaml:"log_level"`
	QuickAddFolder string `yaml:"quick_add_folder"`
}

// Validate validates the application settings.
func (c *AppConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.LogLevel, validation.In("", LevelDebug, LevelInfo, LevelWarn, LevelError)),
	)
}

// Level maps the configured name onto a slog level. Empty means info.
func (c *AppConfig) Level() slog.Level {
	switch c.LogLevel {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// StoreConfig selects the persistence backend. Empty backend and path pick
// the default store location.
type StoreConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// Validate validates the store settings.
func (c *StoreConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.In("", storage.BackendJSON, storage.BackendSQLite)),
	)
}

// UndoConfig controls the deletion undo windows. Durations are Go duration
// strings like "10s" or "1m30s"; empty fields keep the built-in defaults.
type UndoConfig struct {
	Window      string `yaml:"window"`
	BatchWindow string `yaml:"batch_window"`
	Tick        string `yaml:"tick"`
}

// Validate validates the undo settings.
func (c *UndoConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Window, validation.By(durationString)),
		validation.Field(&c.BatchWindow, validation.By(durationString)),
		validation.Field(&c.Tick, validation.By(durationString)),
	)
}

// WindowDuration returns the configured undo window, zero when unset.
func (c *UndoConfig) WindowDuration() time.Duration { return duration(c.Window) }

// BatchWindowDuration returns the configured batch undo window, zero when unset.
func (c *UndoConfig) BatchWindowDuration() time.Duration { return duration(c.BatchWindow) }

// TickDuration returns the configured expiry tick, zero when unset.
func (c *UndoConfig) TickDuration() time.Duration { return duration(c.Tick) }

// BackupConfig controls manual and automatic backups.
type BackupConfig struct {
	Dir      string `yaml:"dir"`
	Interval string `yaml:"interval"`
	Keep     int    `yaml:"keep"`
}

// Validate validates the backup settings.
func (c *BackupConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Interval, validation.By(durationString)),
		validation.Field(&c.Keep, validation.Min(0)),
	)
}

// IntervalDuration returns the configured backup interval, zero when unset.
func (c *BackupConfig) IntervalDuration() time.Duration { return duration(c.Interval) }

// CheckerConfig controls the link checker.
type CheckerConfig struct {
	Concurrency    int      `yaml:"concurrency"`
	Timeout        string   `yaml:"timeout"`
	ExcludeDomains []string `yaml:"exclude_domains"`
}

// Validate validates the checker settings.
func (c *CheckerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Concurrency, validation.Min(0)),
		validation.Field(&c.Timeout, validation.By(durationString)),
	)
}

// TimeoutDuration returns the configured request timeout, zero when unset.
func (c *CheckerConfig) TimeoutDuration() time.Duration { return duration(c.Timeout) }

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		App: AppConfig{
			QuickAddFolder: "Read Later",
		},
		Backup: BackupConfig{
			Keep: 5,
		},
		Checker: CheckerConfig{
			Concurrency:    10,
			Timeout:        "10s",
			ExcludeDomains: []string{"github.com", "gitlab.com"},
		},
	}
}

// Load reads the config file at path, or the default location when path is
// empty. Fields absent from the file keep their defaults. Environment
// variables in the file are expanded before parsing.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// DefaultPath returns the default config path: ~/.config/marks/config.yml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "marks", "config.yml"), nil
}

func durationString(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := time.ParseDuration(s); err != nil {
		return errors.New("must be a duration like 30s or 5m")
	}
	return nil
}

func duration(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
