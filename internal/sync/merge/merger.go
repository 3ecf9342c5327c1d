// Package merge deterministically unions a local and a remote snapshot
// when the Comparator decides neither side should simply overwrite the
// other.
package merge

import (
	"time"

	"github.com/kimhsiao/syncledger/backend/internal/models"
)

// PriorityMode selects which side serves as the base in merge_standard_data
// when both sides have diverged. The engine's default round always uses
// TimestampFirst; the other modes exist for tooling that wants a specific
// side to win ties.
type PriorityMode string

const (
	// LocalFirst always treats local as the base.
	LocalFirst PriorityMode = "local_first"
	// RemoteFirst always treats remote as the base.
	RemoteFirst PriorityMode = "remote_first"
	// TimestampFirst treats whichever snapshot has the newer export_time
	// as the base. This is the default engine behavior.
	TimestampFirst PriorityMode = "timestamp_first"
)

// Merger unions two snapshots by primary key, so a record whose id exists
// on only one side is kept. The one exception is categories in
// MergeFreshData: a remote category whose name matches a local one is
// dropped even when its id differs.
type Merger struct{}

// New returns a Merger.
func New() *Merger {
	return &Merger{}
}

// MergeFreshData implements merge_fresh_data: a local snapshot that was
// never reconciled against any remote is unioned with the remote by
// primary key across all five record types. Category collisions are
// broken by name first, then id, so two devices that independently
// created a same-named category under different ids collapse to one.
func (m *Merger) MergeFreshData(local, remote *models.Snapshot) *models.Snapshot {
	merged := &models.Snapshot{Version: newerVersion(local, remote)}

	merged.Categories = mergeCategories(local.Categories, remote.Categories)
	merged.Tasks = unionTasks(local.Tasks, remote.Tasks)
	merged.TimeEntries = unionTimeEntries(local.TimeEntries, remote.TimeEntries)
	merged.Accounts = unionAccounts(local.Accounts, remote.Accounts)
	merged.Transactions = unionTransactions(local.Transactions, remote.Transactions)

	stampMergeMetadata(merged)
	return merged
}

// MergeStandardData implements merge_standard_data: one snapshot is the
// base (selected by mode) and the other is the overlay; any overlay
// record whose id is not already present in the base is appended.
// Records sharing an id are never merged field-by-field: the base wins.
func (m *Merger) MergeStandardData(local, remote *models.Snapshot, mode PriorityMode) *models.Snapshot {
	base, overlay := selectBase(local, remote, mode)

	merged := &models.Snapshot{Version: newerVersion(local, remote)}
	merged.Categories = append(append([]models.Category{}, base.Categories...), missingCategories(base.Categories, overlay.Categories)...)
	merged.Tasks = append(append([]models.Task{}, base.Tasks...), missingTasks(base.Tasks, overlay.Tasks)...)
	merged.TimeEntries = append(append([]models.TimeEntry{}, base.TimeEntries...), missingTimeEntries(base.TimeEntries, overlay.TimeEntries)...)
	merged.Accounts = append(append([]models.Account{}, base.Accounts...), missingAccounts(base.Accounts, overlay.Accounts)...)
	merged.Transactions = append(append([]models.Transaction{}, base.Transactions...), missingTransactions(base.Transactions, overlay.Transactions)...)

	stampMergeMetadata(merged)
	return merged
}

func selectBase(local, remote *models.Snapshot, mode PriorityMode) (base, overlay *models.Snapshot) {
	switch mode {
	case LocalFirst:
		return local, remote
	case RemoteFirst:
		return remote, local
	default: // TimestampFirst
		if local.ExportTime.After(remote.ExportTime) || local.ExportTime.Equal(remote.ExportTime) {
			return local, remote
		}
		return remote, local
	}
}

func stampMergeMetadata(merged *models.Snapshot) {
	now := time.Now().UTC()
	merged.ExportTime = now
	merged.MergedAt = &now
	merged.MergeSources = []string{"local", "remote"}
}

func newerVersion(local, remote *models.Snapshot) string {
	if remote.ExportTime.After(local.ExportTime) {
		return remote.Version
	}
	return local.Version
}

// mergeCategories unions local and remote by name first, then by id: a
// remote category sharing either a name or an id with a local one is
// dropped in favor of the local entry.
func mergeCategories(local, remote []models.Category) []models.Category {
	byName := make(map[string]bool, len(local))
	byID := make(map[string]bool, len(local))
	result := make([]models.Category, 0, len(local)+len(remote))

	for _, c := range local {
		byName[c.Name] = true
		byID[c.ID] = true
		result = append(result, c)
	}
	for _, c := range remote {
		if byName[c.Name] || byID[c.ID] {
			continue
		}
		byName[c.Name] = true
		byID[c.ID] = true
		result = append(result, c)
	}
	return result
}

func unionTasks(local, remote []models.Task) []models.Task {
	seen := make(map[string]bool, len(local))
	result := make([]models.Task, 0, len(local)+len(remote))
	for _, t := range local {
		seen[t.ID] = true
		result = append(result, t)
	}
	for _, t := range remote {
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		result = append(result, t)
	}
	return result
}

func unionTimeEntries(local, remote []models.TimeEntry) []models.TimeEntry {
	seen := make(map[string]bool, len(local))
	result := make([]models.TimeEntry, 0, len(local)+len(remote))
	for _, e := range local {
		seen[e.ID] = true
		result = append(result, e)
	}
	for _, e := range remote {
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		result = append(result, e)
	}
	return result
}

func unionAccounts(local, remote []models.Account) []models.Account {
	seen := make(map[string]bool, len(local))
	result := make([]models.Account, 0, len(local)+len(remote))
	for _, a := range local {
		seen[a.ID] = true
		result = append(result, a)
	}
	for _, a := range remote {
		if seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		result = append(result, a)
	}
	return result
}

func unionTransactions(local, remote []models.Transaction) []models.Transaction {
	seen := make(map[string]bool, len(local))
	result := make([]models.Transaction, 0, len(local)+len(remote))
	for _, tr := range local {
		seen[tr.ID] = true
		result = append(result, tr)
	}
	for _, tr := range remote {
		if seen[tr.ID] {
			continue
		}
		seen[tr.ID] = true
		result = append(result, tr)
	}
	return result
}

func missingCategories(base, overlay []models.Category) []models.Category {
	present := make(map[string]bool, len(base))
	for _, c := range base {
		present[c.ID] = true
	}
	var missing []models.Category
	for _, c := range overlay {
		if !present[c.ID] {
			missing = append(missing, c)
		}
	}
	return missing
}

func missingTasks(base, overlay []models.Task) []models.Task {
	present := make(map[string]bool, len(base))
	for _, t := range base {
		present[t.ID] = true
	}
	var missing []models.Task
	for _, t := range overlay {
		if !present[t.ID] {
			missing = append(missing, t)
		}
	}
	return missing
}

func missingTimeEntries(base, overlay []models.TimeEntry) []models.TimeEntry {
	present := make(map[string]bool, len(base))
	for _, e := range base {
		present[e.ID] = true
	}
	var missing []models.TimeEntry
	for _, e := range overlay {
		if !present[e.ID] {
			missing = append(missing, e)
		}
	}
	return missing
}

func missingAccounts(base, overlay []models.Account) []models.Account {
	present := make(map[string]bool, len(base))
	for _, a := range base {
		present[a.ID] = true
	}
	var missing []models.Account
	for _, a := range overlay {
		if !present[a.ID] {
			missing = append(missing, a)
		}
	}
	return missing
}

func missingTransactions(base, overlay []models.Transaction) []models.Transaction {
	present := make(map[string]bool, len(base))
	for _, tr := range base {
		present[tr.ID] = true
	}
	var missing []models.Transaction
	for _, tr := range overlay {
		if !present[tr.ID] {
			missing = append(missing, tr)
		}
	}
	return missing
}
