// Package config loads the process configuration from a TOML file and the
// environment, and turns it into the SyncConfig the engine validates
// before a round ever starts.
package config

import (
	"github.com/kimhsiao/syncledger/backend/internal/sync"
)

// Config is the full on-disk configuration: where the local store lives,
// how chatty logging should be, and everything the sync engine needs.
type Config struct {
	DataDir  string `toml:"data_dir"`
	LogLevel string `toml:"log_level"`

	Sync   SyncSection   `toml:"sync"`
	WebDAV WebDAVSection `toml:"webdav"`
}

// SyncSection mirrors the engine's SyncConfig fields.
type SyncSection struct {
	Provider         string   `toml:"provider"`
	Directory        string   `toml:"directory"`
	IntervalMinutes  int      `toml:"interval_minutes"`
	AutoSync         bool     `toml:"auto_sync"`
	ConflictStrategy string   `toml:"conflict_strategy"`
	IgnorePatterns   []string `toml:"ignore_patterns"`
	MaxFileSizeMB    int      `toml:"max_file_size_mb"`
	Compression      bool     `toml:"compression"`
}

// WebDAVSection holds the webdav provider settings. The password is never
// read from the config file: it arrives via the environment once and is
// persisted encrypted in the settings store after that.
type WebDAVSection struct {
	URL      string `toml:"url"`
	Username string `toml:"username"`
}

// DefaultConfig returns the configuration used when no config file
// exists and no environment overrides apply.
func DefaultConfig() *Config {
	return &Config{
		DataDir:  "./data",
		LogLevel: "info",
		Sync: SyncSection{
			Provider:         "webdav",
			Directory:        "/",
			IntervalMinutes:  15,
			AutoSync:         false,
			ConflictStrategy: string(sync.StrategyManual),
			MaxFileSizeMB:    50,
		},
	}
}

// SyncConfig converts the loaded configuration into the engine's
// SyncConfig. Engine-level validation (interval floor, required webdav
// settings) happens on the returned value, not here.
func (c *Config) SyncConfig() sync.SyncConfig {
	return sync.SyncConfig{
		Provider:         c.Sync.Provider,
		Directory:        c.Sync.Directory,
		IntervalMinutes:  c.Sync.IntervalMinutes,
		AutoSync:         c.Sync.AutoSync,
		ConflictStrategy: sync.ConflictStrategy(c.Sync.ConflictStrategy),
		IgnorePatterns:   c.Sync.IgnorePatterns,
		MaxFileSizeMB:    c.Sync.MaxFileSizeMB,
		Compression:      c.Sync.Compression,
		Settings: map[string]string{
			"url":      c.WebDAV.URL,
			"username": c.WebDAV.Username,
		},
	}
}
