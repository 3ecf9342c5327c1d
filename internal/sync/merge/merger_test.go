package merge

import (
	"testing"
	"time"

	"github.com/kimhsiao/syncledger/backend/internal/models"
)

func snap(exportTime time.Time, tasks ...models.Task) *models.Snapshot {
	return &models.Snapshot{
		Version:    models.SchemaVersion,
		ExportTime: exportTime,
		Tasks:      tasks,
	}
}

func TestMergeFreshData_UnionsDisjointTasks(t *testing.T) {
	now := time.Now().UTC()
	local := snap(now, models.Task{ID: "t1", Name: "local"})
	remote := snap(now, models.Task{ID: "t2", Name: "remote"})

	merged := New().MergeFreshData(local, remote)
	if len(merged.Tasks) != 2 {
		t.Fatalf("expected 2 tasks in the union, got %d", len(merged.Tasks))
	}
	if merged.MergedAt == nil {
		t.Fatal("expected MergedAt to be stamped")
	}
}

func TestMergeFreshData_OverlappingIDKeepsOneCopy(t *testing.T) {
	now := time.Now().UTC()
	local := snap(now, models.Task{ID: "t1", Name: "local"})
	remote := snap(now, models.Task{ID: "t1", Name: "remote"})

	merged := New().MergeFreshData(local, remote)
	if len(merged.Tasks) != 1 {
		t.Fatalf("expected shared id to collapse to one record, got %d", len(merged.Tasks))
	}
	if merged.Tasks[0].Name != "local" {
		t.Fatalf("expected local's copy to win a same-id collision, got %q", merged.Tasks[0].Name)
	}
}

func TestMergeFreshData_CategoryCollisionByName(t *testing.T) {
	now := time.Now().UTC()
	local := &models.Snapshot{Version: models.SchemaVersion, ExportTime: now,
		Categories: []models.Category{{ID: "c1", Name: "Work"}}}
	remote := &models.Snapshot{Version: models.SchemaVersion, ExportTime: now,
		Categories: []models.Category{{ID: "c2", Name: "Work"}}}

	merged := New().MergeFreshData(local, remote)
	if len(merged.Categories) != 1 {
		t.Fatalf("expected same-named categories to collapse to one, got %d", len(merged.Categories))
	}
	if merged.Categories[0].ID != "c1" {
		t.Fatalf("expected local's category to win a name collision, got id %q", merged.Categories[0].ID)
	}
}

func TestMergeStandardData_TimestampFirstPicksNewerAsBase(t *testing.T) {
	older := time.Now().UTC().Add(-time.Hour)
	newer := time.Now().UTC()
	local := snap(older, models.Task{ID: "t1", Name: "old local"})
	remote := snap(newer, models.Task{ID: "t1", Name: "new remote"}, models.Task{ID: "t2", Name: "remote only"})

	merged := New().MergeStandardData(local, remote, TimestampFirst)
	if len(merged.Tasks) != 2 {
		t.Fatalf("expected base (remote) plus one missing overlay task, got %d", len(merged.Tasks))
	}
	for _, tk := range merged.Tasks {
		if tk.ID == "t1" && tk.Name != "new remote" {
			t.Fatalf("expected the newer side's copy of a shared id to win, got %q", tk.Name)
		}
	}
}

func TestMergeStandardData_LocalFirstAlwaysUsesLocalAsBase(t *testing.T) {
	newer := time.Now().UTC()
	older := newer.Add(-time.Hour)
	local := snap(older, models.Task{ID: "t1", Name: "local base"})
	remote := snap(newer, models.Task{ID: "t1", Name: "remote overlay"})

	merged := New().MergeStandardData(local, remote, LocalFirst)
	if len(merged.Tasks) != 1 || merged.Tasks[0].Name != "local base" {
		t.Fatalf("expected local_first to keep local's copy regardless of timestamps, got %+v", merged.Tasks)
	}
}

func TestMergeStandardData_MissingOverlayRecordIsAppended(t *testing.T) {
	now := time.Now().UTC()
	local := snap(now, models.Task{ID: "t1"})
	remote := snap(now, models.Task{ID: "t1"}, models.Task{ID: "t2"})

	merged := New().MergeStandardData(local, remote, LocalFirst)
	if len(merged.Tasks) != 2 {
		t.Fatalf("expected the overlay-only record to be appended, got %d tasks", len(merged.Tasks))
	}
}

func TestMergeStandardData_IdenticalSidesIsIdentity(t *testing.T) {
	now := time.Now().UTC()
	a := snap(now, models.Task{ID: "t1", Name: "same"})
	b := snap(now, models.Task{ID: "t1", Name: "same"})

	merged := New().MergeStandardData(a, b, TimestampFirst)
	if len(merged.Tasks) != 1 {
		t.Fatalf("expected merging identical sides to be an identity operation, got %d tasks", len(merged.Tasks))
	}
}
