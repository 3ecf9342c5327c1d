package db

import (
	"database/sql"
	"time"

	"github.com/kimhsiao/syncledger/backend/internal/models"
)

// CategoryRepository lists categories.
type CategoryRepository interface {
	ListCategories() ([]models.Category, error)
	ListCategoriesUpdatedSince(threshold time.Time) ([]models.Category, error)
}

// TaskRepository lists tasks.
type TaskRepository interface {
	ListTasks() ([]models.Task, error)
	ListTasksUpdatedSince(threshold time.Time) ([]models.Task, error)
}

// TimeEntryRepository lists time entries.
type TimeEntryRepository interface {
	ListTimeEntries() ([]models.TimeEntry, error)
	ListTimeEntriesUpdatedSince(threshold time.Time) ([]models.TimeEntry, error)
}

// AccountRepository lists accounts.
type AccountRepository interface {
	ListAccounts() ([]models.Account, error)
	ListAccountsUpdatedSince(threshold time.Time) ([]models.Account, error)
}

// TransactionRepository lists transactions.
type TransactionRepository interface {
	ListTransactions() ([]models.Transaction, error)
	ListTransactionsUpdatedSince(threshold time.Time) ([]models.Transaction, error)
}

// SettingsRepository is the key/value store backing provenance metadata.
type SettingsRepository interface {
	GetSetting(key string) (string, bool, error)
	SetSetting(key, value string) error
	SetSettingTx(tx *sql.Tx, key, value string) error
}

// SnapshotWriter is the transactional boundary the Serializer uses to
// replace the entire local dataset with an incoming snapshot. Callers must
// supply an open transaction; Replace itself never commits or rolls back.
type SnapshotWriter interface {
	Replace(tx *sql.Tx, snap *models.Snapshot) error
}

// Repository is the full storage-facing contract required by the sync core:
// tabular getters, a transactional writer, and the settings K/V store.
type Repository interface {
	CategoryRepository
	TaskRepository
	TimeEntryRepository
	AccountRepository
	TransactionRepository
	SettingsRepository
	SnapshotWriter

	BeginTx() (*sql.Tx, error)
}
