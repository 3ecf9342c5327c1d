// Package validate implements schema/format validation on raw snapshot
// bytes and consistency validation on parsed snapshots: required record
// arrays, UUID formats, business-rule checks, and referential integrity
// across the five record tables. Timestamps are checked only by JSON
// decoding into time.Time; a missing timestamp decodes to the zero time
// and is not reported.
package validate

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kimhsiao/syncledger/backend/internal/models"
	"github.com/kimhsiao/syncledger/backend/internal/uuid"
)

// MaxSnapshotBytes is the largest payload the Validator accepts.
const MaxSnapshotBytes = 100 * 1024 * 1024

// MaxTotalRecords is the largest total record count across all five arrays.
const MaxTotalRecords = 1_000_000

// MaxTimeEntrySpan is the longest a single time entry may span.
const MaxTimeEntrySpan = 24 * time.Hour

var colorPattern = func(s string) bool {
	if len(s) != 7 || s[0] != '#' {
		return false
	}
	for _, c := range s[1:] {
		if !((c >= '0' && c <= '9') || (c >= 'A' && c <= 'F') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}

// Validator checks incoming snapshot bytes and parsed snapshots.
type Validator struct{}

// New returns a Validator.
func New() *Validator {
	return &Validator{}
}

// ValidateFormat operates on raw bytes: it rejects empty input, oversized
// input, a non-object root, an incompatible major version, non-array
// record fields, too many total records, and any record failing its
// per-type shape check. It returns the first problem found, since this
// runs at the ingestion boundary where a single malformed payload should
// be rejected outright.
func (v *Validator) ValidateFormat(raw []byte) error {
	if len(raw) == 0 {
		return fmt.Errorf("snapshot payload is empty")
	}
	if len(raw) > MaxSnapshotBytes {
		return fmt.Errorf("snapshot payload exceeds %d bytes", MaxSnapshotBytes)
	}

	var generic map[string]interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return fmt.Errorf("snapshot root is not a JSON object: %w", err)
	}

	for _, field := range []string{"tasks", "categories", "time_entries", "accounts", "transactions"} {
		val, ok := generic[field]
		if !ok {
			continue
		}
		if _, ok := val.([]interface{}); !ok {
			return fmt.Errorf("field %q must be an array", field)
		}
	}

	var snap models.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return fmt.Errorf("snapshot does not match expected shape: %w", err)
	}

	if !majorVersionCompatible(snap.Version) {
		return fmt.Errorf("incompatible snapshot version %q", snap.Version)
	}

	total := len(snap.Tasks) + len(snap.Categories) + len(snap.TimeEntries) + len(snap.Accounts) + len(snap.Transactions)
	if total > MaxTotalRecords {
		return fmt.Errorf("snapshot has %d records, exceeds maximum of %d", total, MaxTotalRecords)
	}

	if issues := shapeIssues(&snap); len(issues) > 0 {
		return fmt.Errorf("%s", issues[0])
	}

	return nil
}

// ValidateConsistency operates on a parsed snapshot: required keys, field
// shape, business rules, and referential integrity across all five
// tables. It returns every problem found, not just the first, so callers
// can surface a complete summary.
func (v *Validator) ValidateConsistency(snap *models.Snapshot) []string {
	var issues []string

	if !majorVersionCompatible(snap.Version) {
		issues = append(issues, fmt.Sprintf("incompatible snapshot version %q", snap.Version))
	}

	for _, field := range []struct {
		name    string
		present bool
	}{
		{"categories", snap.Categories != nil},
		{"tasks", snap.Tasks != nil},
		{"time_entries", snap.TimeEntries != nil},
		{"accounts", snap.Accounts != nil},
		{"transactions", snap.Transactions != nil},
	} {
		if !field.present {
			issues = append(issues, fmt.Sprintf("missing required field %q", field.name))
		}
	}

	issues = append(issues, shapeIssues(snap)...)
	issues = append(issues, referentialIssues(snap)...)

	return issues
}

func majorVersionCompatible(version string) bool {
	if version == "" {
		return false
	}
	supportedMajor := strings.SplitN(models.SchemaVersion, ".", 2)[0]
	gotMajor := strings.SplitN(version, ".", 2)[0]
	return supportedMajor == gotMajor
}

// shapeIssues runs the per-record shape checks shared by both validation
// modes: ids and foreign-key ids are valid UUIDs, colors `#RRGGBB`,
// non-empty names, time-entry spans within bounds, and non-zero amounts.
// It does not check timestamps; those are parsed when the JSON is decoded.
func shapeIssues(snap *models.Snapshot) []string {
	var issues []string

	for _, c := range snap.Categories {
		if !uuid.IsValid(c.ID) {
			issues = append(issues, fmt.Sprintf("category %q: invalid id", c.ID))
		}
		if strings.TrimSpace(c.Name) == "" {
			issues = append(issues, fmt.Sprintf("category %q: empty name", c.ID))
		}
		if !colorPattern(c.Color) {
			issues = append(issues, fmt.Sprintf("category %q: invalid color %q", c.ID, c.Color))
		}
	}

	for _, a := range snap.Accounts {
		if !uuid.IsValid(a.ID) {
			issues = append(issues, fmt.Sprintf("account %q: invalid id", a.ID))
		}
		if strings.TrimSpace(a.Name) == "" {
			issues = append(issues, fmt.Sprintf("account %q: empty name", a.ID))
		}
	}

	for _, t := range snap.Tasks {
		if !uuid.IsValid(t.ID) {
			issues = append(issues, fmt.Sprintf("task %q: invalid id", t.ID))
		}
		if strings.TrimSpace(t.Name) == "" {
			issues = append(issues, fmt.Sprintf("task %q: empty name", t.ID))
		}
		if t.CategoryID != "" && !uuid.IsValid(t.CategoryID) {
			issues = append(issues, fmt.Sprintf("task %q: invalid category_id", t.ID))
		}
	}

	for _, e := range snap.TimeEntries {
		if !uuid.IsValid(e.ID) {
			issues = append(issues, fmt.Sprintf("time_entry %q: invalid id", e.ID))
		}
		if !uuid.IsValid(e.TaskID) {
			issues = append(issues, fmt.Sprintf("time_entry %q: invalid task_id", e.ID))
		}
		if !e.EndTime.After(e.StartTime) {
			issues = append(issues, fmt.Sprintf("time_entry %q: end_time must be after start_time", e.ID))
		} else if e.EndTime.Sub(e.StartTime) > MaxTimeEntrySpan {
			issues = append(issues, fmt.Sprintf("time_entry %q: span exceeds 24 hours", e.ID))
		}
	}

	for _, tr := range snap.Transactions {
		if !uuid.IsValid(tr.ID) {
			issues = append(issues, fmt.Sprintf("transaction %q: invalid id", tr.ID))
		}
		if !uuid.IsValid(tr.AccountID) {
			issues = append(issues, fmt.Sprintf("transaction %q: invalid account_id", tr.ID))
		}
		if tr.Amount == 0 {
			issues = append(issues, fmt.Sprintf("transaction %q: amount must be non-zero", tr.ID))
		}
	}

	return issues
}

// referentialIssues checks tasks→categories, time_entries→tasks (and
// optional category), and transactions→accounts.
func referentialIssues(snap *models.Snapshot) []string {
	var issues []string

	categoryIDs := make(map[string]bool, len(snap.Categories))
	for _, c := range snap.Categories {
		categoryIDs[c.ID] = true
	}
	accountIDs := make(map[string]bool, len(snap.Accounts))
	for _, a := range snap.Accounts {
		accountIDs[a.ID] = true
	}
	taskIDs := make(map[string]bool, len(snap.Tasks))
	for _, t := range snap.Tasks {
		taskIDs[t.ID] = true
	}

	for _, t := range snap.Tasks {
		if t.CategoryID != "" && !categoryIDs[t.CategoryID] {
			issues = append(issues, fmt.Sprintf("task %q references unknown category %q", t.ID, t.CategoryID))
		}
	}
	for _, e := range snap.TimeEntries {
		if !taskIDs[e.TaskID] {
			issues = append(issues, fmt.Sprintf("time_entry %q references unknown task %q", e.ID, e.TaskID))
		}
		if e.CategoryID != "" && !categoryIDs[e.CategoryID] {
			issues = append(issues, fmt.Sprintf("time_entry %q references unknown category %q", e.ID, e.CategoryID))
		}
	}
	for _, tr := range snap.Transactions {
		if !accountIDs[tr.AccountID] {
			issues = append(issues, fmt.Sprintf("transaction %q references unknown account %q", tr.ID, tr.AccountID))
		}
	}

	return issues
}
