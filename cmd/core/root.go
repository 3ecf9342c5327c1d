package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/kimhsiao/syncledger/backend/internal/config"
	"github.com/kimhsiao/syncledger/backend/internal/crypto"
	"github.com/kimhsiao/syncledger/backend/internal/db"
	"github.com/kimhsiao/syncledger/backend/internal/logging"
	"github.com/kimhsiao/syncledger/backend/internal/models"
	"github.com/kimhsiao/syncledger/backend/internal/sync"
	"github.com/kimhsiao/syncledger/backend/internal/sync/provider"
	"github.com/kimhsiao/syncledger/backend/internal/sync/snapshot"
)

var flagConfigPath string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "syncledger-core",
		Short:         "Local-first personal tracking sync core",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "config.toml", "path to the TOML config file")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newStatusCmd())
	return cmd
}

// core bundles everything a command needs once the store is open and the
// engine is wired.
type core struct {
	database   *db.DB
	repo       *db.SQLRepository
	serializer *snapshot.Serializer
	engine     *sync.Engine
	syncCfg    sync.SyncConfig
}

func (c *core) Close() {
	c.database.Close()
}

// openCore loads configuration, opens the store, runs migrations, and
// wires the engine behind a provider. Order follows the process boot
// sequence: logger first, then store, then migrations, then services.
func openCore() (*core, error) {
	cfg, err := config.Load(flagConfigPath)
	if err != nil {
		return nil, err
	}

	logging.Init(os.Stdout, logLevelFor(cfg.LogLevel))
	logging.Info("SyncLedger Core starting", map[string]interface{}{"version": Version})

	database, err := db.Open(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	migrator := db.NewMigrator(database.DB)
	if err := migrator.Initialize(); err != nil {
		database.Close()
		return nil, err
	}
	if err := migrator.Up(); err != nil {
		database.Close()
		return nil, err
	}
	schemaVersion, _ := migrator.CurrentVersion()
	logging.Info("migrations applied", map[string]interface{}{"schema_version": schemaVersion})

	repo := db.NewRepository(database)
	serializer := snapshot.New(repo)

	password, err := resolveProviderPassword(repo, os.Getenv("MACHINE_ID"))
	if err != nil {
		database.Close()
		return nil, err
	}

	syncCfg := cfg.SyncConfig()
	prov := buildProvider(syncCfg, password)
	engine := sync.NewEngine(serializer, prov, syncCfg)

	return &core{
		database:   database,
		repo:       repo,
		serializer: serializer,
		engine:     engine,
		syncCfg:    syncCfg,
	}, nil
}

func logLevelFor(name string) logging.LogLevel {
	switch name {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

// resolveProviderPassword keeps the WebDAV credential encrypted at rest:
// a password supplied via the environment is encrypted and persisted to
// the settings store on every start, overwriting whatever was there
// before; otherwise the last persisted credential is decrypted and
// returned. The provider password itself never touches the settings
// table in plaintext.
func resolveProviderPassword(repo *db.SQLRepository, machineID string) (string, error) {
	if plaintext := os.Getenv("WEBDAV_PASSWORD"); plaintext != "" {
		encrypted, err := crypto.EncryptCredential(plaintext, machineID)
		if err != nil {
			return "", err
		}
		if err := repo.SetSetting(models.SettingProviderPassword, encrypted); err != nil {
			return "", err
		}
		return plaintext, nil
	}

	encrypted, ok, err := repo.GetSetting(models.SettingProviderPassword)
	if err != nil {
		return "", err
	}
	if !ok || encrypted == "" {
		return "", nil
	}
	return crypto.DecryptCredential(encrypted, machineID)
}

// buildProvider constructs the backend the engine talks to. An invalid
// sync configuration degrades to the in-memory provider so the core can
// still start (and serve local reads) while the operator fixes the
// config.
func buildProvider(cfg sync.SyncConfig, password string) provider.Provider {
	if err := cfg.Validate(); err != nil {
		logging.Warn("sync configuration invalid, starting idle", map[string]interface{}{"error": err.Error()})
		return provider.NewMemProvider()
	}
	return provider.NewWebDAVProvider(cfg.Settings["url"], cfg.Settings["username"], password)
}
