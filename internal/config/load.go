package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Load reads path, decodes it over the defaults, rejects unknown keys,
// and applies environment overrides. A missing file is not an error: the
// defaults plus the environment fully describe a runnable configuration,
// matching how the sync core is embedded on platforms that never write a
// config file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config file %s: %w", path, err)
			}
		} else {
			md, err := toml.Decode(string(data), cfg)
			if err != nil {
				return nil, fmt.Errorf("parsing config file %s: %w", path, err)
			}
			if err := checkUnknownKeys(&md); err != nil {
				return nil, fmt.Errorf("config file %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// checkUnknownKeys rejects keys the decoder could not map to a field, so
// a typo fails loudly instead of silently running with defaults.
func checkUnknownKeys(md *toml.MetaData) error {
	undecoded := md.Undecoded()
	if len(undecoded) == 0 {
		return nil
	}
	keys := make([]string, len(undecoded))
	for i, k := range undecoded {
		keys[i] = k.String()
	}
	return fmt.Errorf("unknown key(s): %s", strings.Join(keys, ", "))
}

// applyEnvOverrides lets the environment win over the config file for
// every setting the file carries. The variable names are stable: they are
// the embedding contract for platforms that configure the core without a
// file at all.
func applyEnvOverrides(cfg *Config) {
	setString(&cfg.DataDir, "DB_PATH")
	setString(&cfg.LogLevel, "LOG_LEVEL")

	setString(&cfg.Sync.Directory, "SYNC_REMOTE_DIR")
	setString(&cfg.Sync.ConflictStrategy, "SYNC_CONFLICT_STRATEGY")
	setInt(&cfg.Sync.IntervalMinutes, "SYNC_INTERVAL_MINUTES")
	setInt(&cfg.Sync.MaxFileSizeMB, "SYNC_MAX_FILE_SIZE_MB")
	setBool(&cfg.Sync.AutoSync, "SYNC_AUTO")

	setString(&cfg.WebDAV.URL, "WEBDAV_URL")
	setString(&cfg.WebDAV.Username, "WEBDAV_USERNAME")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "true" || v == "1"
	}
}
