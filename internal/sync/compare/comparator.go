// Package compare classifies the relationship between a local snapshot and
// whatever sits in the configured remote directory into one of five
// outcomes, deferring to the integrity package whenever the content hashes
// differ and comparing export timestamps only when that risk is Safe.
package compare

import (
	"encoding/json"
	"time"

	"github.com/kimhsiao/syncledger/backend/internal/models"
	"github.com/kimhsiao/syncledger/backend/internal/sync/integrity"
	"github.com/kimhsiao/syncledger/backend/internal/sync/snapshot"
)

// Outcome is the Comparator's classification of a local/remote pair.
type Outcome string

const (
	// Same means the two sides already agree; no action is needed.
	Same Outcome = "same"
	// LocalNewer means the remote side is missing or stale; upload local.
	LocalNewer Outcome = "local_newer"
	// RemoteNewer means the local side is empty or stale; download remote.
	RemoteNewer Outcome = "remote_newer"
	// NeedsMerge means both sides changed but the divergence is mild
	// enough to merge. The Engine merges such pairs automatically; it does
	// not ask the user for consent first.
	NeedsMerge Outcome = "needs_merge"
	// Conflict means the divergence is high-risk and must go through the
	// conflict resolver rather than being merged or overwritten blindly.
	Conflict Outcome = "conflict"
)

// timestampSkewTolerance absorbs clock drift and round-trip latency when
// neither side differs materially in content.
const timestampSkewTolerance = 30 * time.Second

// Result is everything the Engine needs to act on a comparison: the
// outcome itself, and — when the comparator had to look at it — the
// decoded remote snapshot and the integrity report that drove the
// decision.
type Result struct {
	Outcome Outcome
	Remote  *models.Snapshot
	Report  *integrity.Report
	Reason  string
}

// Comparator holds no state; it is a pure function of its inputs, wrapped
// in a type so it can carry a Checker instance.
type Comparator struct {
	checker *integrity.Checker
}

// New returns a Comparator.
func New() *Comparator {
	return &Comparator{checker: integrity.New()}
}

// Compare runs the decision procedure. remoteRaw is nil when
// the remote directory has no snapshot file yet (remoteFound=false); the
// caller is expected to have already attempted a download before calling
// this, since the procedure itself needs to inspect the bytes.
func (c *Comparator) Compare(localSnap *models.Snapshot, localRaw []byte, remoteFound bool, remoteRaw []byte) (Result, error) {
	localEmpty := localSnap.IsEmpty(len(localRaw))

	if !remoteFound {
		if localEmpty {
			return Result{Outcome: Same, Reason: "no remote snapshot and local is empty"}, nil
		}
		return Result{Outcome: LocalNewer, Reason: "no remote snapshot present"}, nil
	}

	if localEmpty {
		return Result{Outcome: RemoteNewer, Reason: "local snapshot is empty"}, nil
	}

	var remoteSnap models.Snapshot
	if err := json.Unmarshal(remoteRaw, &remoteSnap); err != nil {
		return Result{}, err
	}

	if remoteSnap.IsEmpty(len(remoteRaw)) {
		return Result{Outcome: LocalNewer, Remote: &remoteSnap, Reason: "remote snapshot is empty"}, nil
	}

	localHash, err := snapshot.ContentHash(localRaw)
	if err != nil {
		return Result{}, err
	}
	remoteHash, err := snapshot.ContentHash(remoteRaw)
	if err != nil {
		return Result{}, err
	}
	if localHash == remoteHash {
		return Result{Outcome: Same, Remote: &remoteSnap, Reason: "content hashes match"}, nil
	}

	report := c.checker.Check(localSnap, &remoteSnap, localRaw, remoteRaw)

	switch report.Risk.Level {
	case integrity.RiskNeedsConfirmation:
		return Result{Outcome: NeedsMerge, Remote: &remoteSnap, Report: report, Reason: report.Message}, nil
	case integrity.RiskHighRisk, integrity.RiskDangerous:
		return Result{Outcome: Conflict, Remote: &remoteSnap, Report: report, Reason: report.Message}, nil
	}

	return c.compareTimestamps(localSnap, &remoteSnap, report), nil
}

func (c *Comparator) compareTimestamps(localSnap, remoteSnap *models.Snapshot, report *integrity.Report) Result {
	diff := localSnap.ExportTime.Sub(remoteSnap.ExportTime)
	if diff < 0 {
		diff = -diff
	}
	if diff <= timestampSkewTolerance {
		return Result{Outcome: Same, Remote: remoteSnap, Report: report, Reason: "export times within skew tolerance"}
	}
	if localSnap.ExportTime.After(remoteSnap.ExportTime) {
		return Result{Outcome: LocalNewer, Remote: remoteSnap, Report: report, Reason: "local export_time is newer"}
	}
	return Result{Outcome: RemoteNewer, Remote: remoteSnap, Report: report, Reason: "remote export_time is newer"}
}
