// Package conflict dispatches a chosen strategy over the items the
// Comparator classified as Conflict, producing upload/download actions
// (or handing off to the Merger under KeepBoth).
package conflict

import (
	apperrors "github.com/kimhsiao/syncledger/backend/internal/errors"
	"github.com/kimhsiao/syncledger/backend/internal/logging"
	"github.com/kimhsiao/syncledger/backend/internal/models"
	"github.com/kimhsiao/syncledger/backend/internal/sync/merge"
)

// Strategy selects how a conflict is disposed of.
type Strategy string

const (
	// Manual defers resolution to the UI; the Engine pauses in
	// ConflictPending instead of calling Resolve with this strategy.
	Manual Strategy = "manual"
	// LocalWins tags the item Upload unconditionally.
	LocalWins Strategy = "local_wins"
	// RemoteWins tags the item Download unconditionally.
	RemoteWins Strategy = "remote_wins"
	// KeepBoth hands the pair to the Merger and tags the merged result
	// Upload.
	KeepBoth Strategy = "keep_both"
)

// Action is the disposition a Resolved item carries back to the Engine.
type Action string

const (
	ActionUpload   Action = "upload"
	ActionDownload Action = "download"
)

// Item is one conflict the Comparator handed to the resolver: the local
// and remote snapshots it diverged over, plus the remote's current
// content hash (needed by KeepBoth to stamp the merged result's
// base_remote_hash).
type Item struct {
	ID                string
	Local             *models.Snapshot
	Remote            *models.Snapshot
	RemoteContentHash string
}

// Resolved is the outcome of resolving one Item: the action the Engine
// should take, and — only when Action is Upload via KeepBoth — the
// merged snapshot to upload.
type Resolved struct {
	ID     string
	Action Action
	Merged *models.Snapshot
}

// Resolver applies a Strategy to a batch of conflict Items.
type Resolver struct{}

// New returns a Resolver.
func New() *Resolver {
	return &Resolver{}
}

// Resolve applies strategy to every item. merger is required only when
// strategy is KeepBoth; callers resolving LocalWins/RemoteWins batches
// may pass nil.
func (r *Resolver) Resolve(items []Item, strategy Strategy, merger *merge.Merger) ([]Resolved, error) {
	if strategy == Manual {
		return nil, apperrors.New(apperrors.ErrMergeConflict, "manual strategy cannot be resolved automatically; the engine must pause for user input")
	}

	resolved := make([]Resolved, 0, len(items))
	for _, item := range items {
		switch strategy {
		case LocalWins:
			logging.Info("conflict resolved local_wins", map[string]interface{}{"conflict_id": item.ID})
			resolved = append(resolved, Resolved{ID: item.ID, Action: ActionUpload})
		case RemoteWins:
			logging.Info("conflict resolved remote_wins", map[string]interface{}{"conflict_id": item.ID})
			resolved = append(resolved, Resolved{ID: item.ID, Action: ActionDownload})
		case KeepBoth:
			if merger == nil {
				return nil, apperrors.New(apperrors.ErrMergeConflict, "keep_both strategy requires a Merger")
			}
			merged, err := r.keepBoth(item, merger)
			if err != nil {
				return nil, err
			}
			logging.Info("conflict resolved keep_both", map[string]interface{}{
				"conflict_id": item.ID,
				"tasks":       len(merged.Tasks),
			})
			resolved = append(resolved, Resolved{ID: item.ID, Action: ActionUpload, Merged: merged})
		default:
			return nil, apperrors.New(apperrors.ErrConfiguration, "unknown conflict strategy")
		}
	}
	return resolved, nil
}

// keepBoth merges the pair and stamps base_remote_hash to the remote's
// current content hash, so the provenance anchor ("base_remote_hash
// equals the content hash of the remote it last reconciled against")
// holds once the caller imports and uploads the merged snapshot. Merge
// strategy follows the local data's provenance: fresh data record-unions,
// anything else overlays onto the newer base.
func (r *Resolver) keepBoth(item Item, merger *merge.Merger) (*models.Snapshot, error) {
	var merged *models.Snapshot
	if item.Local.Origin(item.RemoteContentHash) == models.OriginFresh {
		merged = merger.MergeFreshData(item.Local, item.Remote)
	} else {
		merged = merger.MergeStandardData(item.Local, item.Remote, merge.TimestampFirst)
	}
	merged.BaseRemoteHash = item.RemoteContentHash
	return merged, nil
}
