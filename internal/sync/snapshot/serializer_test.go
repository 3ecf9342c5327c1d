package snapshot

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/kimhsiao/syncledger/backend/internal/db"
	"github.com/kimhsiao/syncledger/backend/internal/models"
	"github.com/kimhsiao/syncledger/backend/internal/uuid"
)

func newTestSerializer(t *testing.T) (*Serializer, *db.SQLRepository) {
	t.Helper()

	database, err := db.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })

	migrator := db.NewMigrator(database.DB)
	if err := migrator.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if err := migrator.Up(); err != nil {
		t.Fatalf("Up() error = %v", err)
	}

	repo := db.NewRepository(database)
	return New(repo), repo
}

func TestSerializer_ExportEmpty(t *testing.T) {
	ser, _ := newTestSerializer(t)

	snap, raw, err := ser.Export()
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if !snap.IsFreshInstall {
		t.Error("expected IsFreshInstall=true before any import")
	}
	if len(raw) == 0 {
		t.Error("expected non-empty marshaled snapshot")
	}
}

func buildSnapshot(now time.Time) *models.Snapshot {
	catID := uuid.New()
	taskID := uuid.New()
	acctID := uuid.New()

	snap := models.NewEmpty(now, false)
	snap.Categories = []models.Category{{ID: catID, Name: "Work", Color: "#336699", CreatedAt: now, UpdatedAt: now}}
	snap.Tasks = []models.Task{{ID: taskID, CategoryID: catID, Name: "Ship it", CreatedAt: now, UpdatedAt: now}}
	snap.TimeEntries = []models.TimeEntry{{ID: uuid.New(), TaskID: taskID, CategoryID: catID, StartTime: now, EndTime: now.Add(time.Hour), CreatedAt: now, UpdatedAt: now}}
	snap.Accounts = []models.Account{{ID: acctID, Name: "Checking", CreatedAt: now, UpdatedAt: now}}
	snap.Transactions = []models.Transaction{{ID: uuid.New(), AccountID: acctID, Amount: 12.0, OccurredAt: now, CreatedAt: now, UpdatedAt: now}}
	return snap
}

func TestSerializer_ImportThenExportRoundTrips(t *testing.T) {
	ser, _ := newTestSerializer(t)
	now := time.Now().UTC().Truncate(time.Second)
	incoming := buildSnapshot(now)
	raw, _ := json.Marshal(incoming)

	if err := ser.Import(raw, ImportOptions{BaseRemoteHash: "remote-hash-1"}); err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	exported, _, err := ser.Export()
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if len(exported.Tasks) != 1 || exported.Tasks[0].Name != "Ship it" {
		t.Errorf("exported tasks = %v, want one task named 'Ship it'", exported.Tasks)
	}
	if exported.BaseRemoteHash != "remote-hash-1" {
		t.Errorf("BaseRemoteHash = %q, want remote-hash-1", exported.BaseRemoteHash)
	}
	if exported.IsFreshInstall {
		t.Error("IsFreshInstall should be false after a successful import")
	}
}

func TestSerializer_ImportRejectsReferentialViolation(t *testing.T) {
	ser, repo := newTestSerializer(t)
	now := time.Now().UTC().Truncate(time.Second)

	// Seed some data first, to prove it survives a rejected import.
	seed := buildSnapshot(now)
	seedRaw, _ := json.Marshal(seed)
	if err := ser.Import(seedRaw, ImportOptions{}); err != nil {
		t.Fatalf("seed Import() error = %v", err)
	}

	bad := models.NewEmpty(now, false)
	bad.TimeEntries = []models.TimeEntry{{ID: uuid.New(), TaskID: uuid.New(), StartTime: now, EndTime: now.Add(time.Hour), CreatedAt: now, UpdatedAt: now}}
	badRaw, _ := json.Marshal(bad)

	if err := ser.Import(badRaw, ImportOptions{}); err == nil {
		t.Fatal("expected Import() to reject a dangling time_entry->task reference")
	}

	tasks, err := repo.ListTasks()
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	if len(tasks) != 1 {
		t.Errorf("expected pre-import data to survive a rejected import, got %d tasks", len(tasks))
	}
}

func TestSerializer_ImportRejectsOversized(t *testing.T) {
	ser, _ := newTestSerializer(t)
	huge := make([]byte, validatorMaxBytes()+1)
	if err := ser.Import(huge, ImportOptions{}); err == nil {
		t.Error("expected Import() to reject an oversized payload")
	}
}

func validatorMaxBytes() int {
	return 100 * 1024 * 1024
}

func TestSerializer_ExportIncrementalFiltersByUpdatedAt(t *testing.T) {
	ser, _ := newTestSerializer(t)
	older := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	newer := time.Now().UTC().Truncate(time.Second)

	acctID := uuid.New()
	snap := models.NewEmpty(newer, false)
	snap.Accounts = []models.Account{{ID: acctID, Name: "Checking", CreatedAt: older, UpdatedAt: older}}
	snap.Transactions = []models.Transaction{
		{ID: uuid.New(), AccountID: acctID, Amount: 1, OccurredAt: older, CreatedAt: older, UpdatedAt: older},
		{ID: uuid.New(), AccountID: acctID, Amount: 2, OccurredAt: newer, CreatedAt: newer, UpdatedAt: newer},
	}
	raw, _ := json.Marshal(snap)
	if err := ser.Import(raw, ImportOptions{}); err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	incSnap, _, err := ser.ExportIncremental(newer.Add(-time.Minute))
	if err != nil {
		t.Fatalf("ExportIncremental() error = %v", err)
	}
	if len(incSnap.Transactions) != 1 || incSnap.Transactions[0].Amount != 2 {
		t.Errorf("ExportIncremental() transactions = %v, want only the newer one", incSnap.Transactions)
	}
	if incSnap.BackupType != "incremental" {
		t.Errorf("BackupType = %q, want incremental", incSnap.BackupType)
	}
}
