package db

import (
	"testing"
	"time"

	"github.com/kimhsiao/syncledger/backend/internal/models"
)

func newTestRepository(t *testing.T) *SQLRepository {
	t.Helper()

	database, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })

	migrator := NewMigrator(database.DB)
	if err := migrator.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if err := migrator.Up(); err != nil {
		t.Fatalf("Up() error = %v", err)
	}

	return NewRepository(database)
}

func sampleSnapshot(now time.Time) *models.Snapshot {
	snap := models.NewEmpty(now, true)
	snap.Categories = []models.Category{{ID: "cat-1", Name: "Work", Color: "#FF0000", CreatedAt: now, UpdatedAt: now}}
	snap.Accounts = []models.Account{{ID: "acc-1", Name: "Checking", CreatedAt: now, UpdatedAt: now}}
	snap.Tasks = []models.Task{{ID: "task-1", CategoryID: "cat-1", Name: "Write report", CreatedAt: now, UpdatedAt: now}}
	snap.TimeEntries = []models.TimeEntry{{ID: "te-1", TaskID: "task-1", CategoryID: "cat-1", StartTime: now, EndTime: now.Add(time.Hour), CreatedAt: now, UpdatedAt: now}}
	snap.Transactions = []models.Transaction{{ID: "tx-1", AccountID: "acc-1", Amount: 42.5, Description: "coffee", OccurredAt: now, CreatedAt: now, UpdatedAt: now}}
	return snap
}

func TestRepository_ReplaceAndList(t *testing.T) {
	repo := newTestRepository(t)
	now := time.Now().UTC().Truncate(time.Second)
	snap := sampleSnapshot(now)

	tx, err := repo.BeginTx()
	if err != nil {
		t.Fatalf("BeginTx() error = %v", err)
	}
	if err := repo.Replace(tx, snap); err != nil {
		tx.Rollback()
		t.Fatalf("Replace() error = %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	categories, err := repo.ListCategories()
	if err != nil || len(categories) != 1 {
		t.Fatalf("ListCategories() = %v, %v, want 1 category", categories, err)
	}
	tasks, err := repo.ListTasks()
	if err != nil || len(tasks) != 1 {
		t.Fatalf("ListTasks() = %v, %v, want 1 task", tasks, err)
	}
	if tasks[0].CategoryID != "cat-1" {
		t.Errorf("task category_id = %q, want cat-1", tasks[0].CategoryID)
	}
	entries, err := repo.ListTimeEntries()
	if err != nil || len(entries) != 1 {
		t.Fatalf("ListTimeEntries() = %v, %v, want 1 entry", entries, err)
	}
	txs, err := repo.ListTransactions()
	if err != nil || len(txs) != 1 || txs[0].Amount != 42.5 {
		t.Fatalf("ListTransactions() = %v, %v, want 1 transaction with amount 42.5", txs, err)
	}
}

func TestRepository_ReplaceIsDestructive(t *testing.T) {
	repo := newTestRepository(t)
	now := time.Now().UTC().Truncate(time.Second)

	tx, _ := repo.BeginTx()
	repo.Replace(tx, sampleSnapshot(now))
	tx.Commit()

	empty := models.NewEmpty(now, false)
	tx2, _ := repo.BeginTx()
	if err := repo.Replace(tx2, empty); err != nil {
		tx2.Rollback()
		t.Fatalf("Replace() error = %v", err)
	}
	tx2.Commit()

	tasks, err := repo.ListTasks()
	if err != nil || len(tasks) != 0 {
		t.Fatalf("expected empty task list after replace with empty snapshot, got %v (err=%v)", tasks, err)
	}
}

func TestRepository_SettingsRoundTrip(t *testing.T) {
	repo := newTestRepository(t)

	if _, ok, err := repo.GetSetting(models.SettingBaseRemoteHash); err != nil || ok {
		t.Fatalf("expected no setting initially, got ok=%v err=%v", ok, err)
	}

	if err := repo.SetSetting(models.SettingBaseRemoteHash, "abc123"); err != nil {
		t.Fatalf("SetSetting() error = %v", err)
	}
	value, ok, err := repo.GetSetting(models.SettingBaseRemoteHash)
	if err != nil || !ok || value != "abc123" {
		t.Fatalf("GetSetting() = %q, %v, %v, want abc123, true, nil", value, ok, err)
	}

	// Overwrite
	if err := repo.SetSetting(models.SettingBaseRemoteHash, "def456"); err != nil {
		t.Fatalf("SetSetting() overwrite error = %v", err)
	}
	value, _, _ = repo.GetSetting(models.SettingBaseRemoteHash)
	if value != "def456" {
		t.Errorf("GetSetting() after overwrite = %q, want def456", value)
	}
}

func TestRepository_ListUpdatedSince(t *testing.T) {
	repo := newTestRepository(t)
	older := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	newer := time.Now().UTC().Truncate(time.Second)

	snap := models.NewEmpty(newer, true)
	snap.Tasks = []models.Task{
		{ID: "old-task", Name: "old", CreatedAt: older, UpdatedAt: older},
		{ID: "new-task", Name: "new", CreatedAt: newer, UpdatedAt: newer},
	}

	tx, _ := repo.BeginTx()
	if err := repo.Replace(tx, snap); err != nil {
		tx.Rollback()
		t.Fatalf("Replace() error = %v", err)
	}
	tx.Commit()

	since := newer.Add(-time.Minute)
	tasks, err := repo.ListTasksUpdatedSince(since)
	if err != nil {
		t.Fatalf("ListTasksUpdatedSince() error = %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != "new-task" {
		t.Fatalf("ListTasksUpdatedSince() = %v, want only new-task", tasks)
	}
}
