package snapshot

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kimhsiao/syncledger/backend/internal/db"
	apperrors "github.com/kimhsiao/syncledger/backend/internal/errors"
	"github.com/kimhsiao/syncledger/backend/internal/logging"
	"github.com/kimhsiao/syncledger/backend/internal/models"
	"github.com/kimhsiao/syncledger/backend/internal/sync/validate"
)

// Serializer is the single source of truth for the snapshot format and the
// only component that writes the record tables and the sync provenance
// settings; the encrypted provider password is written by cmd/core. It produces snapshots
// by reading the five tables plus provenance metadata, and ingests them
// transactionally with backup/restore on failure.
type Serializer struct {
	repo      db.Repository
	validator *validate.Validator
}

// New returns a Serializer backed by repo.
func New(repo db.Repository) *Serializer {
	return &Serializer{
		repo:      repo,
		validator: validate.New(),
	}
}

// Export produces a snapshot by reading all five tables plus the
// provenance metadata from the settings K/V. It is a pure read.
func (s *Serializer) Export() (*models.Snapshot, []byte, error) {
	return s.export(nil)
}

// ExportIncremental emits a snapshot whose record arrays contain only
// records with updated_at >= threshold, tagged backup_type=incremental.
func (s *Serializer) ExportIncremental(threshold time.Time) (*models.Snapshot, []byte, error) {
	return s.export(&threshold)
}

func (s *Serializer) export(threshold *time.Time) (*models.Snapshot, []byte, error) {
	var categories []models.Category
	var tasks []models.Task
	var timeEntries []models.TimeEntry
	var accounts []models.Account
	var transactions []models.Transaction
	var err error

	if threshold == nil {
		categories, err = s.repo.ListCategories()
	} else {
		categories, err = s.repo.ListCategoriesUpdatedSince(*threshold)
	}
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to read categories", err)
	}

	if threshold == nil {
		tasks, err = s.repo.ListTasks()
	} else {
		tasks, err = s.repo.ListTasksUpdatedSince(*threshold)
	}
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to read tasks", err)
	}

	if threshold == nil {
		timeEntries, err = s.repo.ListTimeEntries()
	} else {
		timeEntries, err = s.repo.ListTimeEntriesUpdatedSince(*threshold)
	}
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to read time entries", err)
	}

	if threshold == nil {
		accounts, err = s.repo.ListAccounts()
	} else {
		accounts, err = s.repo.ListAccountsUpdatedSince(*threshold)
	}
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to read accounts", err)
	}

	if threshold == nil {
		transactions, err = s.repo.ListTransactions()
	} else {
		transactions, err = s.repo.ListTransactionsUpdatedSince(*threshold)
	}
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to read transactions", err)
	}

	baseRemoteHash, _, err := s.repo.GetSetting(models.SettingBaseRemoteHash)
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to read base_remote_hash", err)
	}
	hasSyncedRaw, _, err := s.repo.GetSetting(models.SettingHasSynced)
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to read has_synced", err)
	}
	lastSyncRaw, hasLastSync, err := s.repo.GetSetting(models.SettingLastSyncTime)
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to read last_sync_time", err)
	}

	snap := &models.Snapshot{
		Version:        models.SchemaVersion,
		ExportTime:     time.Now().UTC(),
		Categories:     nonNil(categories),
		Tasks:          nonNil(tasks),
		TimeEntries:    nonNil(timeEntries),
		Accounts:       nonNil(accounts),
		Transactions:   nonNil(transactions),
		BaseRemoteHash: baseRemoteHash,
		IsFreshInstall: hasSyncedRaw != "true",
	}
	if threshold != nil {
		snap.BackupType = "incremental"
	} else {
		snap.BackupType = "full"
	}
	if hasLastSync {
		if t, parseErr := time.Parse(time.RFC3339, lastSyncRaw); parseErr == nil {
			snap.LastSyncTime = &t
		}
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.ErrSnapshotInvalid, "failed to marshal snapshot", err)
	}

	return snap, raw, nil
}

// ImportOptions carries the caller-supplied provenance to stamp after a
// successful import.
type ImportOptions struct {
	// BaseRemoteHash is the content hash of the remote snapshot this
	// import reconciles against. When empty, the incoming snapshot's own
	// base_remote_hash is stored if it carries one; otherwise the setting
	// is left unchanged.
	BaseRemoteHash string
}

// Import is transactional and destructive: it validates the payload,
// backs up the current state, truncates and repopulates all five tables,
// writes provenance metadata, and commits — or, on any failure, rolls
// back and restores the pre-import state from the in-memory backup.
func (s *Serializer) Import(raw []byte, opts ImportOptions) error {
	if err := s.validator.ValidateFormat(raw); err != nil {
		return apperrors.Wrap(apperrors.ErrSnapshotInvalid, "snapshot failed format validation", err)
	}

	var incoming models.Snapshot
	if err := json.Unmarshal(raw, &incoming); err != nil {
		return apperrors.Wrap(apperrors.ErrSnapshotInvalid, "failed to parse snapshot", err)
	}
	if issues := s.validator.ValidateConsistency(&incoming); len(issues) > 0 {
		return apperrors.Wrap(apperrors.ErrIntegrityViolation, fmt.Sprintf("snapshot failed consistency validation: %v", issues), nil)
	}

	backupSnap, _, err := s.export(nil)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorageTransaction, "failed to back up current state before import", err)
	}

	if err := s.commitImport(&incoming, opts); err != nil {
		logging.ErrorWithCode("import failed, restoring from backup", string(apperrors.ErrStorageTransaction), err, map[string]interface{}{
			"task_count": len(incoming.Tasks),
		})
		if restoreErr := s.restore(backupSnap); restoreErr != nil {
			logging.Error("failed to restore pre-import backup after a failed import", restoreErr, nil)
		}
		return err
	}

	return nil
}

// commitImport runs the truncate-then-insert sequence and the provenance
// write inside a single transaction.
func (s *Serializer) commitImport(incoming *models.Snapshot, opts ImportOptions) error {
	tx, err := s.repo.BeginTx()
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorageTransaction, "failed to begin import transaction", err)
	}

	if err := s.repo.Replace(tx, incoming); err != nil {
		tx.Rollback()
		return apperrors.Wrap(apperrors.ErrStorageTransaction, "failed to replace local dataset", err)
	}

	now := time.Now().UTC()
	if err := s.writeSettingTx(tx, models.SettingLastSyncTime, now.Format(time.RFC3339)); err != nil {
		tx.Rollback()
		return err
	}
	if err := s.writeSettingTx(tx, models.SettingHasSynced, "true"); err != nil {
		tx.Rollback()
		return err
	}
	if opts.BaseRemoteHash != "" {
		if err := s.writeSettingTx(tx, models.SettingBaseRemoteHash, opts.BaseRemoteHash); err != nil {
			tx.Rollback()
			return err
		}
	} else if incoming.BaseRemoteHash != "" {
		if err := s.writeSettingTx(tx, models.SettingBaseRemoteHash, incoming.BaseRemoteHash); err != nil {
			tx.Rollback()
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(apperrors.ErrStorageTransaction, "failed to commit import", err)
	}
	return nil
}

// restore re-imports the in-memory backup via a fresh transaction. It is
// invoked only after commitImport has already failed and rolled back.
func (s *Serializer) restore(backup *models.Snapshot) error {
	tx, err := s.repo.BeginTx()
	if err != nil {
		return fmt.Errorf("failed to begin restore transaction: %w", err)
	}
	if err := s.repo.Replace(tx, backup); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to restore backup: %w", err)
	}
	return tx.Commit()
}

// writeSettingTx writes a provenance key inside the import transaction so
// it commits atomically with the record replacement that precedes it.
func (s *Serializer) writeSettingTx(tx *sql.Tx, key, value string) error {
	if err := s.repo.SetSettingTx(tx, key, value); err != nil {
		return apperrors.Wrap(apperrors.ErrStorageTransaction, fmt.Sprintf("failed to write setting %q", key), err)
	}
	return nil
}

// BaseRemoteHash reads the current base_remote_hash setting, reporting
// whether it was ever set.
func (s *Serializer) BaseRemoteHash() (string, bool, error) {
	hash, ok, err := s.repo.GetSetting(models.SettingBaseRemoteHash)
	if err != nil {
		return "", false, apperrors.Wrap(apperrors.ErrDatabase, "failed to read base_remote_hash", err)
	}
	return hash, ok, nil
}

// PersistBaseRemoteHash writes base_remote_hash directly, outside of an
// import transaction. The Engine calls this after a successful upload:
// base_remote_hash must track every successful download, upload, and
// keep-both merge commit, since it is what distinguishes "authorized to
// overwrite remote" from "needs a merge" on the next round.
func (s *Serializer) PersistBaseRemoteHash(hash string) error {
	if err := s.repo.SetSetting(models.SettingBaseRemoteHash, hash); err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to persist base_remote_hash", err)
	}
	return nil
}

// nonNil guarantees the wire format's "empty arrays are required, not
// omitted" rule survives a nil scan result.
func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
