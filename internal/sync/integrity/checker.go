// Package integrity computes data statistics on a pair of snapshots,
// scores the risk of data loss between them, and classifies the kind of
// conflict a divergence represents.
package integrity

import (
	"encoding/json"
	"fmt"

	"github.com/kimhsiao/syncledger/backend/internal/models"
)

// RiskLevel is the projection of a 0-100 risk score onto four bands.
type RiskLevel string

const (
	RiskSafe              RiskLevel = "safe"
	RiskNeedsConfirmation RiskLevel = "needs_confirmation"
	RiskHighRisk          RiskLevel = "high_risk"
	RiskDangerous         RiskLevel = "dangerous"
)

// ConflictType classifies the user-facing explanation for a divergence. It
// is orthogonal to whatever resolution strategy is ultimately chosen.
type ConflictType string

const (
	ConflictNone          ConflictType = "none"
	ConflictDataIntegrity ConflictType = "data_integrity_conflict"
	ConflictDataLossRisk  ConflictType = "data_loss_risk"
	ConflictDataVolume    ConflictType = "data_volume_conflict"
	ConflictStructural    ConflictType = "structural_conflict"
	ConflictTimestamp     ConflictType = "timestamp_conflict"
)

var recordFields = []string{"categories", "tasks", "time_entries", "accounts", "transactions"}

// dataValueWeights emphasises time entries and transactions over the
// other record types when computing a single "how much data is here"
// figure for the ratio-based risk factors.
var dataValueWeights = map[string]int{
	"categories":   1,
	"tasks":        2,
	"time_entries": 3,
	"accounts":     2,
	"transactions": 4,
}

// perCategoryValueClamp bounds the contribution of any single record type
// to the weighted data value, so one pathologically large table cannot
// swamp the ratio entirely.
const perCategoryValueClamp = 100_000

// DataStats describes one snapshot's shape: record counts, byte size,
// which top-level keys are present, and whether its internal references
// resolve.
type DataStats struct {
	RecordCounts          map[string]int
	ByteSize              int
	KeyFieldsIntegrity    map[string]bool
	RelationshipIntegrity RelationshipIntegrity
	ReferentialViolations int
}

// RelationshipIntegrity records whether each foreign-key relationship
// fully resolves within the snapshot.
type RelationshipIntegrity struct {
	TasksResolveToCategory       bool
	TimeEntriesResolveToTask     bool
	TransactionsResolveToAccount bool
}

// TotalRecords sums record counts across all five types.
func (s DataStats) TotalRecords() int {
	total := 0
	for _, f := range recordFields {
		total += s.RecordCounts[f]
	}
	return total
}

func (s DataStats) dataValue() int {
	total := 0
	for field, weight := range dataValueWeights {
		count := s.RecordCounts[field]
		if count > perCategoryValueClamp {
			count = perCategoryValueClamp
		}
		total += count * weight
	}
	return total
}

// RiskAssessment is the accumulated 0-100 score and its projected level.
type RiskAssessment struct {
	Score int
	Level RiskLevel
}

// Report is the full output of a Check: both sides' stats, the risk
// assessment, the classified conflict type, a human-readable message, and
// the record counts that would disappear under a naive overwrite.
type Report struct {
	Local         DataStats
	Remote        DataStats
	Risk          RiskAssessment
	ConflictType  ConflictType
	Message       string
	ProjectedLoss map[string]int
}

// Checker computes DataStats, RiskAssessment, and ConflictType.
type Checker struct{}

// New returns a Checker.
func New() *Checker {
	return &Checker{}
}

// ComputeStats builds a DataStats for a snapshot given its parsed form and
// raw bytes (used to detect which top-level keys were actually present on
// the wire, independent of Go's zero-value defaults).
func (c *Checker) ComputeStats(snap *models.Snapshot, raw []byte) DataStats {
	counts := snap.RecordCounts()

	categoryIDs := make(map[string]bool, len(snap.Categories))
	for _, cat := range snap.Categories {
		categoryIDs[cat.ID] = true
	}
	taskIDs := make(map[string]bool, len(snap.Tasks))
	for _, t := range snap.Tasks {
		taskIDs[t.ID] = true
	}
	accountIDs := make(map[string]bool, len(snap.Accounts))
	for _, a := range snap.Accounts {
		accountIDs[a.ID] = true
	}

	violations := 0
	tasksResolve := true
	for _, t := range snap.Tasks {
		if t.CategoryID != "" && !categoryIDs[t.CategoryID] {
			violations++
			tasksResolve = false
		}
	}
	entriesResolve := true
	for _, e := range snap.TimeEntries {
		if !taskIDs[e.TaskID] {
			violations++
			entriesResolve = false
		}
		if e.CategoryID != "" && !categoryIDs[e.CategoryID] {
			violations++
			entriesResolve = false
		}
	}
	txResolve := true
	for _, tr := range snap.Transactions {
		if !accountIDs[tr.AccountID] {
			violations++
			txResolve = false
		}
	}

	return DataStats{
		RecordCounts:       counts,
		ByteSize:           len(raw),
		KeyFieldsIntegrity: topLevelKeys(raw),
		RelationshipIntegrity: RelationshipIntegrity{
			TasksResolveToCategory:       tasksResolve,
			TimeEntriesResolveToTask:     entriesResolve,
			TransactionsResolveToAccount: txResolve,
		},
		ReferentialViolations: violations,
	}
}

func topLevelKeys(raw []byte) map[string]bool {
	present := make(map[string]bool)
	var generic map[string]json.RawMessage
	if err := json.Unmarshal(raw, &generic); err != nil {
		return present
	}
	for k := range generic {
		present[k] = true
	}
	return present
}

// AssessRisk scores the divergence between local and remote stats by
// accumulating weighted data-loss factors, clamped to 100.
func (c *Checker) AssessRisk(local, remote DataStats) RiskAssessment {
	score := 0
	localTotal := local.TotalRecords()
	remoteTotal := remote.TotalRecords()
	localEmpty := localTotal == 0
	remoteEmpty := remoteTotal == 0

	if localEmpty && !remoteEmpty {
		score += 40
	}
	if remoteEmpty && !localEmpty {
		score += 10
	}

	if !remoteEmpty {
		ratio := float64(localTotal) / float64(remoteTotal)
		switch {
		case ratio < 0.3:
			score += 60
		case ratio < 0.6:
			score += 30
		}
		if ratio > 3.0 {
			score += 20
		}
	}

	localValue := local.dataValue()
	remoteValue := remote.dataValue()
	if localValue > 0 && float64(remoteValue) > 2*float64(localValue) {
		score += 25
	}

	score += local.ReferentialViolations * 10
	score += remote.ReferentialViolations * 5

	if score > 100 {
		score = 100
	}

	return RiskAssessment{Score: score, Level: levelFor(score)}
}

func levelFor(score int) RiskLevel {
	switch {
	case score <= 20:
		return RiskSafe
	case score <= 40:
		return RiskNeedsConfirmation
	case score <= 70:
		return RiskHighRisk
	default:
		return RiskDangerous
	}
}

// ClassifyConflict picks the first applicable conflict type in a fixed
// precedence order (integrity before loss risk before volume before
// structure before timestamps) and builds the user-facing message and
// projected-loss counts.
func (c *Checker) ClassifyConflict(local, remote DataStats, risk RiskAssessment) (ConflictType, string, map[string]int) {
	loss := projectedLoss(local.RecordCounts, remote.RecordCounts)

	if local.ReferentialViolations > 0 || remote.ReferentialViolations > 0 {
		return ConflictDataIntegrity, fmt.Sprintf(
			"%d referential integrity violation(s) detected (local=%d, remote=%d)",
			local.ReferentialViolations+remote.ReferentialViolations,
			local.ReferentialViolations, remote.ReferentialViolations,
		), loss
	}

	if risk.Level == RiskHighRisk || risk.Level == RiskDangerous {
		return ConflictDataLossRisk, fmt.Sprintf(
			"risk score %d (%s): syncing now risks losing data, projected loss %v", risk.Score, risk.Level, loss,
		), loss
	}

	localTotal := local.TotalRecords()
	remoteTotal := remote.TotalRecords()
	if remoteTotal > 0 {
		ratio := float64(localTotal) / float64(remoteTotal)
		if ratio < 0.5 || ratio > 2.0 {
			return ConflictDataVolume, fmt.Sprintf(
				"local and remote record counts diverge sharply (local=%d, remote=%d)", localTotal, remoteTotal,
			), loss
		}
	}

	if !sameKeys(local.KeyFieldsIntegrity, remote.KeyFieldsIntegrity) {
		return ConflictStructural, "local and remote snapshots do not expose the same top-level fields", loss
	}

	if risk.Level == RiskNeedsConfirmation {
		return ConflictTimestamp, fmt.Sprintf("timestamps alone cannot settle which side is newer (risk score %d)", risk.Score), loss
	}

	return ConflictNone, "", loss
}

func sameKeys(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

// projectedLoss returns, per record type, how many remote records would
// disappear if local naively overwrote remote: the remote count minus the
// local count wherever remote has more. Types where local has more are
// not counted.
func projectedLoss(local, remote map[string]int) map[string]int {
	loss := make(map[string]int)
	for _, field := range recordFields {
		if remote[field] > local[field] {
			loss[field] = remote[field] - local[field]
		}
	}
	return loss
}

// Check runs the full pipeline: stats on both sides, risk assessment, and
// conflict classification.
func (c *Checker) Check(localSnap, remoteSnap *models.Snapshot, localRaw, remoteRaw []byte) *Report {
	localStats := c.ComputeStats(localSnap, localRaw)
	remoteStats := c.ComputeStats(remoteSnap, remoteRaw)
	risk := c.AssessRisk(localStats, remoteStats)
	conflictType, message, loss := c.ClassifyConflict(localStats, remoteStats, risk)

	return &Report{
		Local:         localStats,
		Remote:        remoteStats,
		Risk:          risk,
		ConflictType:  conflictType,
		Message:       message,
		ProjectedLoss: loss,
	}
}
