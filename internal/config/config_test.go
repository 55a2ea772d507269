package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yml"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg.App.QuickAddFolder != "Read Later" {
		t.Errorf("QuickAddFolder = %q, want %q", cfg.App.QuickAddFolder, "Read Later")
	}
	if cfg.Backup.Keep != 5 {
		t.Errorf("Backup.Keep = %d, want 5", cfg.Backup.Keep)
	}
	if len(cfg.Checker.ExcludeDomains) != 2 {
		t.Errorf("ExcludeDomains = %v, want two entries", cfg.Checker.ExcludeDomains)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "undo:\n  window: 30s\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got := cfg.Undo.WindowDuration(); got != 30*time.Second {
		t.Errorf("WindowDuration() = %v, want 30s", got)
	}
	// untouched sections keep their defaults
	if cfg.Checker.Concurrency != 10 {
		t.Errorf("Checker.Concurrency = %d, want 10", cfg.Checker.Concurrency)
	}
	if cfg.App.QuickAddFolder != "Read Later" {
		t.Errorf("QuickAddFolder = %q, want default", cfg.App.QuickAddFolder)
	}
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("MARKS_TEST_DATA", "/tmp/marks-test")
	path := writeConfig(t, "store:\n  backend: json\n  path: ${MARKS_TEST_DATA}/bookmarks.json\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Store.Path != "/tmp/marks-test/bookmarks.json" {
		t.Errorf("Store.Path = %q, env var not expanded", cfg.Store.Path)
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	path := writeConfig(t, "store:\n  backend: etcd\n")
	if _, err := Load(path); err == nil {
		t.Fatal("unknown backend should fail validation")
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := writeConfig(t, "undo:\n  window: soonish\n")
	if _, err := Load(path); err == nil {
		t.Fatal("unparseable duration should fail validation")
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := writeConfig(t, "store: [backend\n")
	if _, err := Load(path); err == nil {
		t.Fatal("malformed YAML should fail")
	}
}

func TestLoadRejectsNegativeKeep(t *testing.T) {
	path := writeConfig(t, "backup:\n  keep: -1\n")
	if _, err := Load(path); err == nil {
		t.Fatal("negative keep should fail validation")
	}
}

func TestLevelMapping(t *testing.T) {
	tests := []struct {
		name string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		cfg := AppConfig{LogLevel: tt.name}
		if got := cfg.Level(); got != tt.want {
			t.Errorf("Level(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestLoadRejectsUnknownLogLevel(t *testing.T) {
	path := writeConfig(t, "app:\n  log_level: loud\n")
	if _, err := Load(path); err == nil {
		t.Fatal("unknown log level should fail validation")
	}
}

func TestDurationAccessorsZeroWhenUnset(t *testing.T) {
	var undo UndoConfig
	if undo.WindowDuration() != 0 || undo.BatchWindowDuration() != 0 || undo.TickDuration() != 0 {
		t.Error("unset durations should be zero")
	}
}
