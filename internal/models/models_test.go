package models

import (
	"testing"
	"time"
)

func TestTimeEntry_Duration(t *testing.T) {
	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Minute)
	entry := TimeEntry{StartTime: start, EndTime: end}

	if got, want := entry.Duration(), 90*time.Minute; got != want {
		t.Errorf("Duration() = %v, want %v", got, want)
	}
}

func TestNewEmpty(t *testing.T) {
	now := time.Now().UTC()
	snap := NewEmpty(now, true)

	if !snap.IsFreshInstall {
		t.Error("IsFreshInstall should be true")
	}
	if snap.Version != SchemaVersion {
		t.Errorf("Version = %q, want %q", snap.Version, SchemaVersion)
	}
	for _, arr := range [][]int{
		{len(snap.Categories)}, {len(snap.Tasks)}, {len(snap.TimeEntries)},
		{len(snap.Accounts)}, {len(snap.Transactions)},
	} {
		if arr[0] != 0 {
			t.Errorf("expected empty record array, got length %d", arr[0])
		}
	}
}

func TestSnapshot_RecordCounts(t *testing.T) {
	snap := NewEmpty(time.Now(), false)
	snap.Tasks = append(snap.Tasks, Task{ID: "t1"})
	snap.Tasks = append(snap.Tasks, Task{ID: "t2"})

	counts := snap.RecordCounts()
	if counts["tasks"] != 2 {
		t.Errorf("tasks count = %d, want 2", counts["tasks"])
	}
	if counts["categories"] != 0 {
		t.Errorf("categories count = %d, want 0", counts["categories"])
	}
}

func TestSnapshot_Origin(t *testing.T) {
	fresh := NewEmpty(time.Now(), true)
	if got := fresh.Origin("abc"); got != OriginFresh {
		t.Errorf("Origin() of never-synced data = %v, want %v", got, OriginFresh)
	}

	based := NewEmpty(time.Now(), false)
	based.BaseRemoteHash = "abc"
	if got := based.Origin("abc"); got != OriginBasedOnRemote {
		t.Errorf("Origin() with matching base hash = %v, want %v", got, OriginBasedOnRemote)
	}
	if got := based.Origin("other"); got != OriginUnknown {
		t.Errorf("Origin() with stale base hash = %v, want %v", got, OriginUnknown)
	}

	orphan := NewEmpty(time.Now(), false)
	if got := orphan.Origin("abc"); got != OriginUnknown {
		t.Errorf("Origin() of synced data without a base hash = %v, want %v", got, OriginUnknown)
	}
}

func TestSnapshot_IsEmpty(t *testing.T) {
	tests := []struct {
		name           string
		snapshot       *Snapshot
		serializedSize int
		want           bool
	}{
		{
			name:           "all record arrays empty",
			snapshot:       NewEmpty(time.Now(), true),
			serializedSize: 600,
			want:           true,
		},
		{
			name: "categories only, still empty",
			snapshot: func() *Snapshot {
				s := NewEmpty(time.Now(), true)
				s.Categories = append(s.Categories, Category{ID: "c1", Name: "Work"})
				return s
			}(),
			serializedSize: 600,
			want:           true,
		},
		{
			name: "has tasks, not empty",
			snapshot: func() *Snapshot {
				s := NewEmpty(time.Now(), true)
				s.Tasks = append(s.Tasks, Task{ID: "t1"})
				return s
			}(),
			serializedSize: 600,
			want:           false,
		},
		{
			name: "under size threshold even with tasks",
			snapshot: func() *Snapshot {
				s := NewEmpty(time.Now(), true)
				s.Tasks = append(s.Tasks, Task{ID: "t1"})
				return s
			}(),
			serializedSize: 499,
			want:           true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.snapshot.IsEmpty(tt.serializedSize)
			if got != tt.want {
				t.Errorf("IsEmpty() = %v, want %v", got, tt.want)
			}
		})
	}
}
