// Package sync provides the synchronization engine that orchestrates one
// round of upload/download/merge/conflict against a remote Provider.
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sync"
	"time"

	apperrors "github.com/kimhsiao/syncledger/backend/internal/errors"
	"github.com/kimhsiao/syncledger/backend/internal/logging"
	"github.com/kimhsiao/syncledger/backend/internal/models"
	"github.com/kimhsiao/syncledger/backend/internal/sync/compare"
	"github.com/kimhsiao/syncledger/backend/internal/sync/conflict"
	"github.com/kimhsiao/syncledger/backend/internal/sync/integrity"
	"github.com/kimhsiao/syncledger/backend/internal/sync/merge"
	"github.com/kimhsiao/syncledger/backend/internal/sync/provider"
	"github.com/kimhsiao/syncledger/backend/internal/sync/snapshot"
)

// Status is the Engine's global state, one of {Idle, Syncing,
// ConflictPending, Success, Failed}.
type Status string

const (
	StatusIdle            Status = "idle"
	StatusSyncing         Status = "syncing"
	StatusConflictPending Status = "conflict_pending"
	StatusSuccess         Status = "success"
	StatusFailed          Status = "failed"
)

// ConflictStrategy selects how the Engine disposes of Conflict outcomes.
type ConflictStrategy string

const (
	StrategyManual     ConflictStrategy = "manual"
	StrategyLocalWins  ConflictStrategy = "local_wins"
	StrategyRemoteWins ConflictStrategy = "remote_wins"
	StrategyKeepBoth   ConflictStrategy = "keep_both"
)

// remoteSnapshotName is the canonical remote filename for a full snapshot.
const remoteSnapshotName = "data.json"

// SyncConfig is accepted by NewEngine and validated before a round ever
// starts.
type SyncConfig struct {
	Provider         string
	Settings         map[string]string
	Directory        string
	IntervalMinutes  int
	AutoSync         bool
	ConflictStrategy ConflictStrategy
	IgnorePatterns   []string
	MaxFileSizeMB    int
	Compression      bool
}

// Validate checks the config before the engine accepts it: provider
// non-empty, interval >= 5, max_file_size >= 1, webdav requires url and
// username.
func (c *SyncConfig) Validate() error {
	if c.Provider == "" {
		return apperrors.New(apperrors.ErrConfiguration, "provider must not be empty")
	}
	if c.IntervalMinutes < 5 {
		return apperrors.New(apperrors.ErrConfiguration, "interval must be at least 5 minutes")
	}
	if c.MaxFileSizeMB < 1 {
		return apperrors.New(apperrors.ErrConfiguration, "max_file_size must be at least 1 MB")
	}
	if c.Provider == "webdav" {
		if c.Settings["url"] == "" {
			return apperrors.New(apperrors.ErrConfiguration, "webdav provider requires url")
		}
		if c.Settings["username"] == "" {
			return apperrors.New(apperrors.ErrConfiguration, "webdav provider requires username")
		}
	}
	return nil
}

// EventType enumerates the fire-and-forget events the Engine emits during
// a round.
type EventType string

const (
	EventStarted           EventType = "started"
	EventProgress          EventType = "progress"
	EventUploadStarted     EventType = "upload_started"
	EventUploadCompleted   EventType = "upload_completed"
	EventDownloadStarted   EventType = "download_started"
	EventDownloadCompleted EventType = "download_completed"
	EventConflictDetected  EventType = "conflict_detected"
	EventCompleted         EventType = "completed"
	EventFailed            EventType = "failed"
)

// Event is one notification fired during a round.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Path      string
	Current   int
	Total     int
	Message   string
	Error     error
	Result    *SyncResult
}

// EventHandler receives Engine events. Implementations must return
// quickly: the Engine dispatches to every handler on its own goroutine so
// a slow listener never stalls a round.
type EventHandler interface {
	OnSyncEvent(event Event)
}

// ConflictItem is one pending conflict awaiting manual resolution.
type ConflictItem struct {
	ID        string
	Path      string
	Report    *integrity.Report
	Remote    *models.Snapshot
	RawLocal  []byte
	RawRemote []byte
}

// SyncResult is returned from every round.
type SyncResult struct {
	Success          bool
	StartTime        time.Time
	EndTime          time.Time
	UploadedCount    int
	DownloadedCount  int
	SkippedCount     int
	FailedCount      int
	BytesTransferred int64
	Errors           []string
	Conflicts        []ConflictItem
}

// maxErrorHistory bounds the Engine's in-memory error log, exposed to the
// UI so it needn't re-derive failure detail from SyncResult alone.
const maxErrorHistory = 100

// ErrorHistoryEntry is one record in the Engine's error history.
type ErrorHistoryEntry struct {
	Timestamp time.Time
	Operation string
	Path      string
	Error     string
}

// pendingUpload and pendingDownload are the Comparator/ConflictResolver's
// decisions reduced to exactly what the file-operation loop needs.
type pendingUpload struct {
	path string
	data []byte
}

type pendingDownload struct {
	path           string
	baseRemoteHash string
}

// Engine orchestrates one sync round at a time against a Serializer,
// Comparator, IntegrityChecker, ConflictResolver, Merger, and Provider.
// At most one round runs per Engine instance: runningMu serializes the
// check-and-set of the Syncing status at the start of a round, and status
// and last result are each guarded by their own mutex, so a lock is never
// held across a Provider call or a database transaction.
type Engine struct {
	serializer *snapshot.Serializer
	comparator *compare.Comparator
	checker    *integrity.Checker
	resolver   *conflict.Resolver
	merger     *merge.Merger
	provider   provider.Provider

	config SyncConfig

	statusMu sync.RWMutex
	status   Status

	resultMu   sync.RWMutex
	lastResult *SyncResult

	runningMu sync.Mutex

	conflictMu       sync.Mutex
	pendingConflicts []ConflictItem

	handlersMu sync.RWMutex
	handlers   []EventHandler

	historyMu sync.Mutex
	history   []ErrorHistoryEntry
}

// NewEngine wires an Engine from its component parts. serializer and
// prov are required; the other components use the package-level New()
// defaults.
func NewEngine(serializer *snapshot.Serializer, prov provider.Provider, config SyncConfig) *Engine {
	return &Engine{
		serializer: serializer,
		comparator: compare.New(),
		checker:    integrity.New(),
		resolver:   conflict.New(),
		merger:     merge.New(),
		provider:   prov,
		config:     config,
		status:     StatusIdle,
	}
}

// AddEventHandler registers a listener for future events.
func (e *Engine) AddEventHandler(h EventHandler) {
	e.handlersMu.Lock()
	defer e.handlersMu.Unlock()
	e.handlers = append(e.handlers, h)
}

// Status returns the Engine's current state.
func (e *Engine) Status() Status {
	e.statusMu.RLock()
	defer e.statusMu.RUnlock()
	return e.status
}

func (e *Engine) setStatus(s Status) {
	e.statusMu.Lock()
	e.status = s
	e.statusMu.Unlock()
}

// LastResult returns the most recently completed round's result, or nil
// if none has completed yet.
func (e *Engine) LastResult() *SyncResult {
	e.resultMu.RLock()
	defer e.resultMu.RUnlock()
	return e.lastResult
}

func (e *Engine) setLastResult(r *SyncResult) {
	e.resultMu.Lock()
	e.lastResult = r
	e.resultMu.Unlock()
}

// PendingConflicts returns the conflicts awaiting manual resolution.
func (e *Engine) PendingConflicts() []ConflictItem {
	e.conflictMu.Lock()
	defer e.conflictMu.Unlock()
	out := make([]ConflictItem, len(e.pendingConflicts))
	copy(out, e.pendingConflicts)
	return out
}

// ErrorHistory returns a copy of the Engine's recent per-item failures.
func (e *Engine) ErrorHistory() []ErrorHistoryEntry {
	e.historyMu.Lock()
	defer e.historyMu.Unlock()
	out := make([]ErrorHistoryEntry, len(e.history))
	copy(out, e.history)
	return out
}

// ClearErrorHistory resets the Engine's error history.
func (e *Engine) ClearErrorHistory() {
	e.historyMu.Lock()
	e.history = nil
	e.historyMu.Unlock()
}

func (e *Engine) recordError(operation, path string, err error) {
	e.historyMu.Lock()
	defer e.historyMu.Unlock()
	e.history = append(e.history, ErrorHistoryEntry{
		Timestamp: time.Now().UTC(),
		Operation: operation,
		Path:      path,
		Error:     err.Error(),
	})
	if len(e.history) > maxErrorHistory {
		e.history = e.history[len(e.history)-maxErrorHistory:]
	}
}

// emit dispatches event to every registered handler on its own goroutine,
// so a slow handler cannot stall the round. Event ordering per handler is
// not guaranteed under this scheme; handlers that care about order key on
// the event timestamp.
func (e *Engine) emit(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	e.handlersMu.RLock()
	handlers := make([]EventHandler, len(e.handlers))
	copy(handlers, e.handlers)
	e.handlersMu.RUnlock()

	for _, h := range handlers {
		h := h
		go func() {
			defer func() {
				if r := recover(); r != nil {
					logging.ErrorWithCode("panic in sync event handler", string(apperrors.ErrInternal),
						fmt.Errorf("%v", r), map[string]interface{}{"event_type": ev.Type})
				}
			}()
			h.OnSyncEvent(ev)
		}()
	}
}

// Sync runs one sync round: export local, ensure the remote directory,
// list and conditionally download the remote snapshot, compare, then
// perform the resulting uploads and downloads. It returns an error only
// for round-level failures (transaction aborts, provider initialization
// failure, cancellation, or an attempt to start while already syncing);
// per-item failures are recorded into the returned SyncResult instead.
func (e *Engine) Sync(ctx context.Context) (*SyncResult, error) {
	e.runningMu.Lock()
	if e.Status() == StatusSyncing {
		e.runningMu.Unlock()
		return nil, apperrors.New(apperrors.ErrSyncFailed, "a sync round is already in progress")
	}
	e.setStatus(StatusSyncing)
	e.runningMu.Unlock()

	result := &SyncResult{StartTime: time.Now().UTC()}
	e.emit(Event{Type: EventStarted, Message: "sync round started"})

	directory := e.config.Directory
	if directory == "" {
		directory = "/"
	}

	localSnap, localRaw, err := e.serializer.Export()
	if err != nil {
		return e.fail(result, apperrors.Wrap(apperrors.ErrSyncFailed, "failed to export local snapshot", err))
	}

	if err := e.provider.CreateDirectory(ctx, directory); err != nil {
		return e.fail(result, apperrors.Wrap(apperrors.ErrProviderUnreachable, "failed to ensure remote directory exists", err))
	}

	items, err := e.provider.List(ctx, directory)
	if err != nil {
		return e.fail(result, apperrors.Wrap(apperrors.ErrProviderUnreachable, "failed to list remote directory", err))
	}

	remotePath := path.Join(directory, remoteSnapshotName)
	remoteFound := false
	for _, it := range items {
		if it.Name == remoteSnapshotName || it.Path == remotePath {
			remoteFound = true
			break
		}
	}

	var remoteRaw []byte
	if remoteFound {
		remoteRaw, err = e.provider.Download(ctx, remotePath)
		if err != nil {
			return e.fail(result, apperrors.Wrap(apperrors.ErrProviderUnreachable, "failed to download remote snapshot", err))
		}
	}

	cmp, err := e.comparator.Compare(localSnap, localRaw, remoteFound, remoteRaw)
	if err != nil {
		return e.fail(result, apperrors.Wrap(apperrors.ErrSyncFailed, "failed to compare local and remote snapshots", err))
	}

	var uploads []pendingUpload
	var downloads []pendingDownload

	switch cmp.Outcome {
	case compare.Same:
		// nothing to do
	case compare.LocalNewer:
		uploads = append(uploads, pendingUpload{path: remotePath, data: localRaw})
	case compare.RemoteNewer:
		remoteHash, hashErr := snapshot.ContentHash(remoteRaw)
		if hashErr != nil {
			return e.fail(result, apperrors.Wrap(apperrors.ErrSyncFailed, "failed to hash remote snapshot", hashErr))
		}
		downloads = append(downloads, pendingDownload{path: remotePath, baseRemoteHash: remoteHash})
	case compare.NeedsMerge:
		merged, mergeErr := e.autoMerge(localSnap, cmp.Remote, remoteRaw)
		if mergeErr != nil {
			return e.fail(result, mergeErr)
		}
		up, commitErr := e.commitAndQueueUpload(merged, remotePath)
		if commitErr != nil {
			return e.fail(result, commitErr)
		}
		uploads = append(uploads, up)
	case compare.Conflict:
		item := ConflictItem{
			ID:        remotePath,
			Path:      remotePath,
			Report:    cmp.Report,
			Remote:    cmp.Remote,
			RawLocal:  localRaw,
			RawRemote: remoteRaw,
		}
		e.emit(Event{Type: EventConflictDetected, Path: remotePath, Message: cmp.Reason})

		switch e.config.ConflictStrategy {
		case StrategyManual, "":
			e.conflictMu.Lock()
			e.pendingConflicts = append(e.pendingConflicts, item)
			e.conflictMu.Unlock()
			result.Conflicts = append(result.Conflicts, item)
			e.setStatus(StatusConflictPending)
			return result, nil
		case StrategyLocalWins:
			uploads = append(uploads, pendingUpload{path: remotePath, data: localRaw})
		case StrategyRemoteWins:
			remoteHash, hashErr := snapshot.ContentHash(remoteRaw)
			if hashErr != nil {
				return e.fail(result, apperrors.Wrap(apperrors.ErrSyncFailed, "failed to hash remote snapshot", hashErr))
			}
			downloads = append(downloads, pendingDownload{path: remotePath, baseRemoteHash: remoteHash})
		case StrategyKeepBoth:
			merged, mergeErr := e.resolveKeepBoth(localSnap, cmp.Remote, remoteRaw)
			if mergeErr != nil {
				return e.fail(result, mergeErr)
			}
			up, commitErr := e.commitAndQueueUpload(merged, remotePath)
			if commitErr != nil {
				return e.fail(result, commitErr)
			}
			uploads = append(uploads, up)
		}
	}

	total := len(uploads) + len(downloads)
	current := 0

	for _, u := range uploads {
		select {
		case <-ctx.Done():
			return e.fail(result, ctx.Err())
		default:
		}

		sizeMB := float64(len(u.data)) / (1024 * 1024)
		if e.config.MaxFileSizeMB > 0 && sizeMB > float64(e.config.MaxFileSizeMB) {
			sizeErr := apperrors.New(apperrors.ErrValidation, fmt.Sprintf(
				"upload %q exceeds max_file_size (%.2fMB > %dMB)", u.path, sizeMB, e.config.MaxFileSizeMB))
			result.Errors = append(result.Errors, sizeErr.Error())
			result.FailedCount++
			e.recordError("upload", u.path, sizeErr)
			current++
			e.emit(Event{Type: EventProgress, Current: current, Total: total})
			continue
		}

		e.emit(Event{Type: EventUploadStarted, Path: u.path})
		if err := e.provider.Upload(ctx, u.path, u.data); err != nil {
			result.Errors = append(result.Errors, err.Error())
			result.FailedCount++
			e.recordError("upload", u.path, err)
		} else {
			result.UploadedCount++
			result.BytesTransferred += int64(len(u.data))
			if hash, hashErr := snapshot.ContentHash(u.data); hashErr == nil {
				if persistErr := e.serializer.PersistBaseRemoteHash(hash); persistErr != nil {
					logging.Error("failed to persist base_remote_hash after upload", persistErr, nil)
				}
			}
			e.emit(Event{Type: EventUploadCompleted, Path: u.path})
		}
		current++
		e.emit(Event{Type: EventProgress, Current: current, Total: total})
	}

	for _, d := range downloads {
		select {
		case <-ctx.Done():
			return e.fail(result, ctx.Err())
		default:
		}

		e.emit(Event{Type: EventDownloadStarted, Path: d.path})
		data, err := e.provider.Download(ctx, d.path)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			result.FailedCount++
			e.recordError("download", d.path, err)
			current++
			e.emit(Event{Type: EventProgress, Current: current, Total: total})
			continue
		}

		if err := e.serializer.Import(data, snapshot.ImportOptions{BaseRemoteHash: d.baseRemoteHash}); err != nil {
			return e.fail(result, apperrors.Wrap(apperrors.ErrStorageTransaction, "failed to import downloaded snapshot", err))
		}
		result.DownloadedCount++
		result.BytesTransferred += int64(len(data))
		e.emit(Event{Type: EventDownloadCompleted, Path: d.path})
		current++
		e.emit(Event{Type: EventProgress, Current: current, Total: total})
	}

	if err := e.postSyncValidation(); err != nil {
		result.Errors = append(result.Errors, err.Error())
	}

	result.Success = true
	result.EndTime = time.Now().UTC()
	e.setStatus(StatusSuccess)
	e.setLastResult(result)
	e.emit(Event{Type: EventCompleted, Result: result, Message: fmt.Sprintf(
		"round complete: uploaded=%d downloaded=%d failed=%d", result.UploadedCount, result.DownloadedCount, result.FailedCount)})
	return result, nil
}

// IncrementalSync exports only the records updated since the given time
// into a timestamped supplementary snapshot and uploads it. It never
// downloads or merges; the periodic full round remains responsible for
// reconciliation.
func (e *Engine) IncrementalSync(ctx context.Context, since time.Time) (*SyncResult, error) {
	result := &SyncResult{StartTime: time.Now().UTC()}

	_, raw, err := e.serializer.ExportIncremental(since)
	if err != nil {
		result.Success = false
		result.EndTime = time.Now().UTC()
		result.Errors = append(result.Errors, err.Error())
		return result, err
	}

	directory := e.config.Directory
	if directory == "" {
		directory = "/"
	}
	name := fmt.Sprintf("incremental_%s.json", time.Now().UTC().Format("20060102_150405"))
	remotePath := path.Join(directory, name)

	if err := e.provider.CreateDirectory(ctx, directory); err != nil {
		result.Success = false
		result.EndTime = time.Now().UTC()
		result.Errors = append(result.Errors, err.Error())
		return result, err
	}

	if err := e.provider.Upload(ctx, remotePath, raw); err != nil {
		result.Success = false
		result.EndTime = time.Now().UTC()
		result.Errors = append(result.Errors, err.Error())
		return result, err
	}

	result.Success = true
	result.UploadedCount = 1
	result.BytesTransferred = int64(len(raw))
	result.EndTime = time.Now().UTC()
	return result, nil
}

// autoMerge runs merge_fresh_data when the local data's provenance is
// Fresh, or merge_standard_data via TimestampFirst otherwise, per the
// Merger's strategy selection rule.
func (e *Engine) autoMerge(local, remote *models.Snapshot, remoteRaw []byte) (*models.Snapshot, error) {
	remoteHash, err := snapshot.ContentHash(remoteRaw)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrSyncFailed, "failed to hash remote snapshot for merge", err)
	}
	if local.Origin(remoteHash) == models.OriginFresh {
		return e.merger.MergeFreshData(local, remote), nil
	}
	return e.merger.MergeStandardData(local, remote, merge.TimestampFirst), nil
}

// resolveKeepBoth delegates to the ConflictResolver's KeepBoth strategy.
func (e *Engine) resolveKeepBoth(local, remote *models.Snapshot, remoteRaw []byte) (*models.Snapshot, error) {
	remoteHash, err := snapshot.ContentHash(remoteRaw)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrSyncFailed, "failed to hash remote snapshot for keep-both merge", err)
	}
	resolved, err := e.resolver.Resolve([]conflict.Item{{
		Local:             local,
		Remote:            remote,
		RemoteContentHash: remoteHash,
	}}, conflict.KeepBoth, e.merger)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrMergeConflict, "keep-both resolution failed", err)
	}
	if len(resolved) == 0 || resolved[0].Merged == nil {
		return nil, apperrors.New(apperrors.ErrMergeConflict, "keep-both resolution produced no merged snapshot")
	}
	return resolved[0].Merged, nil
}

// commitAndQueueUpload stamps the merged snapshot's base_remote_hash to
// its own content hash and imports it locally before returning the
// upload the file-operation loop should perform, so that once the upload
// lands, the local provenance anchor already matches the new remote.
func (e *Engine) commitAndQueueUpload(merged *models.Snapshot, remotePath string) (pendingUpload, error) {
	data, err := json.Marshal(merged)
	if err != nil {
		return pendingUpload{}, apperrors.Wrap(apperrors.ErrSnapshotInvalid, "failed to marshal merged snapshot", err)
	}
	hash, err := snapshot.ContentHash(data)
	if err != nil {
		return pendingUpload{}, apperrors.Wrap(apperrors.ErrSyncFailed, "failed to hash merged snapshot", err)
	}
	merged.BaseRemoteHash = hash
	data, err = json.Marshal(merged)
	if err != nil {
		return pendingUpload{}, apperrors.Wrap(apperrors.ErrSnapshotInvalid, "failed to marshal merged snapshot", err)
	}

	if err := e.serializer.Import(data, snapshot.ImportOptions{BaseRemoteHash: hash}); err != nil {
		return pendingUpload{}, apperrors.Wrap(apperrors.ErrStorageTransaction, "failed to import merged snapshot", err)
	}

	return pendingUpload{path: remotePath, data: data}, nil
}

// postSyncValidation recomputes the local content hash and compares it
// against the reconciled base_remote_hash, recording (but not rolling
// back on) a mismatch.
func (e *Engine) postSyncValidation() error {
	_, localRaw, err := e.serializer.Export()
	if err != nil {
		return apperrors.Wrap(apperrors.ErrSyncFailed, "post-sync validation: failed to re-export local snapshot", err)
	}
	localHash, err := snapshot.ContentHash(localRaw)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrSyncFailed, "post-sync validation: failed to hash local snapshot", err)
	}
	baseHash, ok, err := e.serializer.BaseRemoteHash()
	if err != nil {
		return apperrors.Wrap(apperrors.ErrSyncFailed, "post-sync validation: failed to read base_remote_hash", err)
	}
	if !ok || baseHash == "" {
		return nil
	}
	if localHash != baseHash {
		return apperrors.New(apperrors.ErrIntegrityViolation,
			"post-sync validation: local content hash does not match reconciled base_remote_hash")
	}
	return nil
}

func (e *Engine) fail(result *SyncResult, cause error) (*SyncResult, error) {
	result.Success = false
	result.EndTime = time.Now().UTC()
	result.Errors = append(result.Errors, cause.Error())
	e.setStatus(StatusFailed)
	e.setLastResult(result)
	e.emit(Event{Type: EventFailed, Error: cause, Result: result, Message: cause.Error()})
	return result, cause
}

// ManualResolution is the action an operator chose for one pending
// ConflictItem.
type ManualResolution string

const (
	ResolveUpload   ManualResolution = "upload"
	ResolveDownload ManualResolution = "download"
	ResolveMerge    ManualResolution = "merge"
)

// ResolveManual is the entry point the UI calls after an operator
// resolves conflicts left pending by a StrategyManual round. resolutions
// maps ConflictItem.ID to the chosen action; items the caller omits stay
// pending. It does not start a new full round; it only drains
// ConflictPending back toward Success.
func (e *Engine) ResolveManual(ctx context.Context, resolutions map[string]ManualResolution) (*SyncResult, error) {
	e.conflictMu.Lock()
	pending := e.pendingConflicts
	e.pendingConflicts = nil
	e.conflictMu.Unlock()

	result := &SyncResult{StartTime: time.Now().UTC()}

	for _, item := range pending {
		resolution, ok := resolutions[item.ID]
		if !ok {
			e.conflictMu.Lock()
			e.pendingConflicts = append(e.pendingConflicts, item)
			e.conflictMu.Unlock()
			continue
		}

		switch resolution {
		case ResolveUpload:
			e.emit(Event{Type: EventUploadStarted, Path: item.Path})
			if err := e.provider.Upload(ctx, item.Path, item.RawLocal); err != nil {
				result.Errors = append(result.Errors, err.Error())
				result.FailedCount++
				continue
			}
			result.UploadedCount++
			if hash, hashErr := snapshot.ContentHash(item.RawLocal); hashErr == nil {
				if persistErr := e.serializer.PersistBaseRemoteHash(hash); persistErr != nil {
					logging.Error("failed to persist base_remote_hash after manual upload", persistErr, nil)
				}
			}
			e.emit(Event{Type: EventUploadCompleted, Path: item.Path})
		case ResolveDownload:
			remoteHash, err := snapshot.ContentHash(item.RawRemote)
			if err != nil {
				result.Errors = append(result.Errors, err.Error())
				result.FailedCount++
				continue
			}
			if err := e.serializer.Import(item.RawRemote, snapshot.ImportOptions{BaseRemoteHash: remoteHash}); err != nil {
				return e.fail(result, apperrors.Wrap(apperrors.ErrStorageTransaction, "failed to import manually resolved download", err))
			}
			result.DownloadedCount++
			e.emit(Event{Type: EventDownloadCompleted, Path: item.Path})
		case ResolveMerge:
			var local models.Snapshot
			if err := json.Unmarshal(item.RawLocal, &local); err != nil {
				result.Errors = append(result.Errors, err.Error())
				result.FailedCount++
				continue
			}
			merged, err := e.resolveKeepBoth(&local, item.Remote, item.RawRemote)
			if err != nil {
				result.Errors = append(result.Errors, err.Error())
				result.FailedCount++
				continue
			}
			up, err := e.commitAndQueueUpload(merged, item.Path)
			if err != nil {
				return e.fail(result, err)
			}
			if err := e.provider.Upload(ctx, up.path, up.data); err != nil {
				result.Errors = append(result.Errors, err.Error())
				result.FailedCount++
				continue
			}
			result.UploadedCount++
			e.emit(Event{Type: EventUploadCompleted, Path: item.Path})
		}
	}

	result.Success = true
	result.EndTime = time.Now().UTC()

	e.conflictMu.Lock()
	stillPending := len(e.pendingConflicts) > 0
	e.conflictMu.Unlock()

	if stillPending {
		e.setStatus(StatusConflictPending)
	} else {
		e.setStatus(StatusSuccess)
	}
	e.setLastResult(result)
	return result, nil
}
