package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefault(t *testing.T) {
	cfg, err := LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault: %v", err)
	}
	if cfg.Backend != "memory" {
		t.Errorf("Backend = %q, want %q", cfg.Backend, "memory")
	}
	if cfg.MaxDocumentBytes != 1<<20 {
		t.Errorf("MaxDocumentBytes = %d, want %d", cfg.MaxDocumentBytes, 1<<20)
	}
	if cfg.DefaultFindLimit != 1000 || cfg.MaxFindLimit != 5000 {
		t.Errorf("find limits = %d/%d, want 1000/5000", cfg.DefaultFindLimit, cfg.MaxFindLimit)
	}
}

func TestLoadEmbeddedDefault(t *testing.T) {
	cfg, err := LoadEmbeddedDefault()
	if err != nil {
		t.Fatalf("LoadEmbeddedDefault: %v", err)
	}
	if cfg.Version != CurrentConfigVersion {
		t.Errorf("Version = %d, want %d", cfg.Version, CurrentConfigVersion)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ridgedb.toml")
	contents := `
backend = "sqlite"
dsn = "` + filepath.Join(dir, "data.db") + `"
max_find_limit = 2000
log_level = "debug"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend != "sqlite" {
		t.Errorf("Backend = %q, want sqlite", cfg.Backend)
	}
	if cfg.MaxFindLimit != 2000 {
		t.Errorf("MaxFindLimit = %d, want 2000", cfg.MaxFindLimit)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	// Defaults not overridden by the file should still apply.
	if cfg.DefaultFindLimit != 1000 {
		t.Errorf("DefaultFindLimit = %d, want default 1000", cfg.DefaultFindLimit)
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ridgedb.toml")
	if err := os.WriteFile(path, []byte(`backend = "postgres"`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestLoadRejectsBackendWithoutDSN(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ridgedb.toml")
	if err := os.WriteFile(path, []byte(`backend = "dolt"`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for dolt backend with empty dsn")
	}
}

func TestLoadRejectsInvertedFindLimits(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ridgedb.toml")
	if err := os.WriteFile(path, []byte(`default_find_limit = 9000
max_find_limit = 100
`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error when default exceeds max")
	}
}

func TestWatchFileReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ridgedb.toml")
	if err := os.WriteFile(path, []byte(`log_level = "info"`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	seen := make(chan string, 1)
	w, err := WatchFile(path, func(cfg *ServerConfig) {
		seen <- cfg.LogLevel
	})
	if err != nil {
		t.Fatalf("WatchFile: %v", err)
	}
	_ = w

	if err := os.WriteFile(path, []byte(`log_level = "debug"`), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	select {
	case level := <-seen:
		if level != "debug" {
			t.Errorf("reloaded log_level = %q, want debug", level)
		}
	case <-time.After(2 * time.Second):
		t.Skip("filesystem watch notification did not arrive in time; fsnotify delivery is platform-dependent")
	}
}
