package models

import "time"

// SchemaVersion is the current snapshot schema major version. Snapshots are
// compatible when their major version matches.
const SchemaVersion = "1.0"

// DataOrigin tags the provenance of the local dataset relative to the
// remote it last reconciled against.
type DataOrigin string

const (
	// OriginFresh means the local data was created on this device and has
	// never been reconciled against any remote.
	OriginFresh DataOrigin = "fresh"
	// OriginBasedOnRemote means base_remote_hash matches the current remote
	// content hash: the local data is known to derive from it.
	OriginBasedOnRemote DataOrigin = "based_on_remote"
	// OriginUnknown means the local data has records but no base hash that
	// matches the current remote. This is the high-risk case.
	OriginUnknown DataOrigin = "unknown"
)

// Snapshot is the unit of synchronization: five record arrays plus a
// provenance envelope. Empty arrays are marshaled as `[]`, never omitted,
// so the wire format is self-describing regardless of dataset size.
type Snapshot struct {
	Version      string        `json:"version"`
	ExportTime   time.Time     `json:"export_time"`
	Categories   []Category    `json:"categories"`
	Tasks        []Task        `json:"tasks"`
	TimeEntries  []TimeEntry   `json:"time_entries"`
	Accounts     []Account     `json:"accounts"`
	Transactions []Transaction `json:"transactions"`

	BaseRemoteHash string     `json:"base_remote_hash"`
	IsFreshInstall bool       `json:"is_fresh_install"`
	LastSyncTime   *time.Time `json:"last_sync_time,omitempty"`

	// MergedAt and MergeSources are present only on snapshots produced by
	// the Merger.
	MergedAt     *time.Time `json:"merged_at,omitempty"`
	MergeSources []string   `json:"merge_sources,omitempty"`

	// BackupType tags export provenance: "full" (default) or "incremental".
	BackupType string `json:"backup_type,omitempty"`
}

// Origin derives the snapshot's provenance relative to the current
// remote content hash: Fresh data was never reconciled, BasedOnRemote
// data is known to derive from the remote as it stands now, and
// everything else is Unknown — the high-risk case.
func (s *Snapshot) Origin(remoteHash string) DataOrigin {
	if s.IsFreshInstall && s.BaseRemoteHash == "" {
		return OriginFresh
	}
	if s.BaseRemoteHash != "" && s.BaseRemoteHash == remoteHash {
		return OriginBasedOnRemote
	}
	return OriginUnknown
}

// NewEmpty returns a zero-record snapshot stamped at the given time.
func NewEmpty(now time.Time, freshInstall bool) *Snapshot {
	return &Snapshot{
		Version:        SchemaVersion,
		ExportTime:     now,
		Categories:     []Category{},
		Tasks:          []Task{},
		TimeEntries:    []TimeEntry{},
		Accounts:       []Account{},
		Transactions:   []Transaction{},
		IsFreshInstall: freshInstall,
	}
}

// RecordCounts returns the per-type record counts of the snapshot.
func (s *Snapshot) RecordCounts() map[string]int {
	return map[string]int{
		"categories":   len(s.Categories),
		"tasks":        len(s.Tasks),
		"time_entries": len(s.TimeEntries),
		"accounts":     len(s.Accounts),
		"transactions": len(s.Transactions),
	}
}

// IsEmpty reports whether the snapshot carries no user data: tasks,
// time_entries, accounts, and transactions are all empty, or the
// serialized size (passed in by the caller, who already has the marshaled
// bytes) is under the threshold. Categories alone never defeat emptiness,
// since default categories are seeded on install.
func (s *Snapshot) IsEmpty(serializedSize int) bool {
	const emptySizeThreshold = 500
	if serializedSize > 0 && serializedSize < emptySizeThreshold {
		return true
	}
	return len(s.Tasks) == 0 && len(s.TimeEntries) == 0 &&
		len(s.Accounts) == 0 && len(s.Transactions) == 0
}
