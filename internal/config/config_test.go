package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Setenv("POMO_DB_PATH", "")
	t.Setenv("POMO_STATE_PATH", "")
	t.Setenv("POMO_DEBUG", "")
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.DBPath != "" || cfg.StatePath != "" || cfg.Debug {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if !cfg.Notifications || !cfg.Sound || cfg.FocusMode || cfg.MaxLogFiles != 20 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file should not be an error: %v", err)
	}
	if *cfg != *DefaultConfig() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
db_path: /tmp/pomo-test.db
debug: true
sound: false
focus_mode: true
`
	os.WriteFile(path, []byte(content), 0644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DBPath != "/tmp/pomo-test.db" || !cfg.Debug || cfg.Sound || !cfg.FocusMode {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if !cfg.Notifications || cfg.MaxLogFiles != 20 {
		t.Fatalf("unset keys should keep defaults: %+v", cfg)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("debug: [unterminated"), 0644)

	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("db_path: /from/file.db\ndebug: true\n"), 0644)
	t.Setenv("POMO_DB_PATH", "/from/env.db")
	t.Setenv("POMO_DEBUG", "0")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DBPath != "/from/env.db" || cfg.Debug {
		t.Fatalf("env should win: %+v", cfg)
	}
}

func TestTildeExpansion(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("db_path: ~/data/pomo.db\nlog_file: ~/pomo.log\n"), 0644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DBPath != filepath.Join(home, "data", "pomo.db") {
		t.Fatalf("db_path not expanded: %q", cfg.DBPath)
	}
	if strings.HasPrefix(cfg.LogFile, "~") {
		t.Fatalf("log_file not expanded: %q", cfg.LogFile)
	}
}

func TestWriteThenLoad(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	want := DefaultConfig()
	want.StatePath = "/var/tmp/pomo.json"
	want.MaxLogFiles = 3

	if err := Write(want, path); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if *got != *want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}
