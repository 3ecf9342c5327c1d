package compare

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/kimhsiao/syncledger/backend/internal/models"
)

func marshal(t *testing.T, snap *models.Snapshot) []byte {
	t.Helper()
	raw, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	return raw
}

func TestCompare_noRemoteAndLocalEmpty(t *testing.T) {
	now := time.Now().UTC()
	local := models.NewEmpty(now, true)
	raw := marshal(t, local)

	result, err := New().Compare(local, raw, false, nil)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if result.Outcome != Same {
		t.Errorf("Outcome = %v, want %v", result.Outcome, Same)
	}
}

func TestCompare_noRemoteAndLocalHasData(t *testing.T) {
	now := time.Now().UTC()
	// A single tiny task would serialize under the 500-byte emptiness
	// threshold; a realistic dataset is needed for "has data."
	local := buildDataSnapshot(now)
	raw := marshal(t, local)

	result, err := New().Compare(local, raw, false, nil)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if result.Outcome != LocalNewer {
		t.Errorf("Outcome = %v, want %v", result.Outcome, LocalNewer)
	}
}

func TestCompare_localEmptyRemoteHasData(t *testing.T) {
	now := time.Now().UTC()
	local := models.NewEmpty(now, true)
	localRaw := marshal(t, local)

	remote := models.NewEmpty(now, false)
	remote.Tasks = []models.Task{{ID: "t1", Name: "Ship", CreatedAt: now, UpdatedAt: now}}
	remote.Categories = []models.Category{{ID: "c1", Name: "Work", Color: "#ffffff", CreatedAt: now, UpdatedAt: now}}
	remoteRaw := marshal(t, remote)

	result, err := New().Compare(local, localRaw, true, remoteRaw)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if result.Outcome != RemoteNewer {
		t.Errorf("Outcome = %v, want %v", result.Outcome, RemoteNewer)
	}
}

func TestCompare_remoteEmptyIsLocalNewer(t *testing.T) {
	now := time.Now().UTC()
	local := buildDataSnapshot(now)
	localRaw := marshal(t, local)

	remote := models.NewEmpty(now, true)
	remoteRaw := marshal(t, remote)

	result, err := New().Compare(local, localRaw, true, remoteRaw)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if result.Outcome != LocalNewer {
		t.Errorf("Outcome = %v, want %v", result.Outcome, LocalNewer)
	}
}

func buildDataSnapshot(exportTime time.Time) *models.Snapshot {
	now := exportTime
	snap := models.NewEmpty(now, false)
	snap.Categories = []models.Category{{ID: "c1", Name: "Work", Color: "#ffffff", CreatedAt: now, UpdatedAt: now}}
	snap.Tasks = []models.Task{{ID: "t1", CategoryID: "c1", Name: "Ship", CreatedAt: now, UpdatedAt: now}}
	snap.TimeEntries = []models.TimeEntry{{ID: "e1", TaskID: "t1", CategoryID: "c1", StartTime: now, EndTime: now.Add(time.Hour), CreatedAt: now, UpdatedAt: now}}
	return snap
}

func TestCompare_identicalContentDifferentExportTimesIsSame(t *testing.T) {
	now := time.Now().UTC()
	local := buildDataSnapshot(now)
	remote := buildDataSnapshot(now.Add(45 * time.Second))
	remote.Categories = local.Categories
	remote.Tasks = local.Tasks
	remote.TimeEntries = local.TimeEntries

	localRaw := marshal(t, local)
	remoteRaw := marshal(t, remote)

	result, err := New().Compare(local, localRaw, true, remoteRaw)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if result.Outcome != Same {
		t.Errorf("Outcome = %v, want %v", result.Outcome, Same)
	}
}

func TestCompare_dangerousDivergenceIsConflict(t *testing.T) {
	now := time.Now().UTC()
	local := models.NewEmpty(now, false)
	local.Tasks = []models.Task{
		{ID: "t1", Name: "a", CreatedAt: now, UpdatedAt: now},
		{ID: "t2", Name: "b", CreatedAt: now, UpdatedAt: now},
		{ID: "t3", Name: "c", CreatedAt: now, UpdatedAt: now},
	}
	local.TimeEntries = []models.TimeEntry{
		{ID: "e1", TaskID: "t1", StartTime: now, EndTime: now.Add(time.Hour), CreatedAt: now, UpdatedAt: now},
		{ID: "e2", TaskID: "t2", StartTime: now, EndTime: now.Add(time.Hour), CreatedAt: now, UpdatedAt: now},
	}

	remote := models.NewEmpty(now, false)
	for i := 0; i < 150; i++ {
		remote.Tasks = append(remote.Tasks, models.Task{ID: idFor("task", i), Name: "x", CreatedAt: now, UpdatedAt: now})
	}
	for i := 0; i < 400; i++ {
		remote.TimeEntries = append(remote.TimeEntries, models.TimeEntry{
			ID: idFor("entry", i), TaskID: "task-0", StartTime: now, EndTime: now.Add(time.Hour), CreatedAt: now, UpdatedAt: now,
		})
	}

	localRaw := marshal(t, local)
	remoteRaw := marshal(t, remote)

	result, err := New().Compare(local, localRaw, true, remoteRaw)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if result.Outcome != Conflict {
		t.Errorf("Outcome = %v, want %v (report=%+v)", result.Outcome, Conflict, result.Report)
	}
	if result.Report.ProjectedLoss["tasks"] != 147 {
		t.Errorf("ProjectedLoss[tasks] = %d, want 147", result.Report.ProjectedLoss["tasks"])
	}
}

func idFor(prefix string, i int) string {
	return fmt.Sprintf("%s-%d", prefix, i)
}

func TestCompare_deterministic(t *testing.T) {
	now := time.Now().UTC()
	local := buildDataSnapshot(now)
	remote := buildDataSnapshot(now.Add(time.Minute))

	localRaw := marshal(t, local)
	remoteRaw := marshal(t, remote)

	r1, err1 := New().Compare(local, localRaw, true, remoteRaw)
	r2, err2 := New().Compare(local, localRaw, true, remoteRaw)
	if err1 != nil || err2 != nil {
		t.Fatalf("Compare() errors = %v, %v", err1, err2)
	}
	if r1.Outcome != r2.Outcome {
		t.Errorf("non-deterministic outcomes: %v vs %v", r1.Outcome, r2.Outcome)
	}
}
