package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kimhsiao/syncledger/backend/internal/sync"
)

// clearSyncEnv blanks every override variable so a developer's shell
// cannot leak into the assertions.
func clearSyncEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DB_PATH", "LOG_LEVEL", "SYNC_REMOTE_DIR", "SYNC_CONFLICT_STRATEGY",
		"SYNC_INTERVAL_MINUTES", "SYNC_MAX_FILE_SIZE_MB", "SYNC_AUTO",
		"WEBDAV_URL", "WEBDAV_USERNAME",
	} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoad_missingFileUsesDefaults(t *testing.T) {
	clearSyncEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Sync.Provider != "webdav" {
		t.Errorf("Provider = %q, want webdav", cfg.Sync.Provider)
	}
	if cfg.Sync.IntervalMinutes != 15 {
		t.Errorf("IntervalMinutes = %d, want 15", cfg.Sync.IntervalMinutes)
	}
	if cfg.Sync.ConflictStrategy != string(sync.StrategyManual) {
		t.Errorf("ConflictStrategy = %q, want manual", cfg.Sync.ConflictStrategy)
	}
}

func TestLoad_fileOverridesDefaults(t *testing.T) {
	clearSyncEnv(t)
	path := writeConfig(t, `
data_dir = "/var/lib/syncledger"

[sync]
directory = "/backups"
interval_minutes = 30
auto_sync = true
conflict_strategy = "keep_both"

[webdav]
url = "https://dav.example.com/remote"
username = "alice"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DataDir != "/var/lib/syncledger" {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
	if cfg.Sync.IntervalMinutes != 30 || !cfg.Sync.AutoSync {
		t.Errorf("sync section not decoded: %+v", cfg.Sync)
	}
	if cfg.WebDAV.URL != "https://dav.example.com/remote" || cfg.WebDAV.Username != "alice" {
		t.Errorf("webdav section not decoded: %+v", cfg.WebDAV)
	}
	// Untouched keys keep their defaults.
	if cfg.Sync.Provider != "webdav" || cfg.Sync.MaxFileSizeMB != 50 {
		t.Errorf("defaults lost during decode: %+v", cfg.Sync)
	}
}

func TestLoad_rejectsUnknownKeys(t *testing.T) {
	clearSyncEnv(t)
	path := writeConfig(t, `
[sync]
intervall_minutes = 30
`)

	if _, err := Load(path); err == nil {
		t.Fatal("Load() should reject a config file with unknown keys")
	}
}

func TestLoad_envWinsOverFile(t *testing.T) {
	clearSyncEnv(t)
	path := writeConfig(t, `
[sync]
interval_minutes = 30

[webdav]
url = "https://file.example.com"
username = "fileuser"
`)
	t.Setenv("SYNC_INTERVAL_MINUTES", "45")
	t.Setenv("WEBDAV_USERNAME", "envuser")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Sync.IntervalMinutes != 45 {
		t.Errorf("IntervalMinutes = %d, want env override 45", cfg.Sync.IntervalMinutes)
	}
	if cfg.WebDAV.Username != "envuser" {
		t.Errorf("Username = %q, want env override envuser", cfg.WebDAV.Username)
	}
	if cfg.WebDAV.URL != "https://file.example.com" {
		t.Errorf("URL = %q, want the file value to survive", cfg.WebDAV.URL)
	}
}

func TestSyncConfig_conversionValidates(t *testing.T) {
	clearSyncEnv(t)
	t.Setenv("WEBDAV_URL", "https://dav.example.com")
	t.Setenv("WEBDAV_USERNAME", "alice")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	sc := cfg.SyncConfig()
	if err := sc.Validate(); err != nil {
		t.Errorf("a default config with webdav credentials should validate, got %v", err)
	}
	if sc.Settings["url"] != "https://dav.example.com" {
		t.Errorf("Settings[url] = %q", sc.Settings["url"])
	}
}

func TestSyncConfig_invalidWithoutWebDAVSettings(t *testing.T) {
	clearSyncEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	sc := cfg.SyncConfig()
	if err := sc.Validate(); err == nil {
		t.Error("a webdav config without url/username should fail validation")
	}
}
