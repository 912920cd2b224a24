package persist

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/listkeeper/listkeeper/pkg/logger"
	"github.com/listkeeper/listkeeper/pkg/models"
	"github.com/listkeeper/listkeeper/pkg/store"
)

// SyncEngine replicates records between the on-device and cloud stores. The
// asynchronous paths are best-effort: scheduled through the bounded retry
// queue, logged on terminal failure, never raised to the producer. The bulk
// path (ForceSyncAll) is synchronous and surfaces failures.
//
// There is no lock protecting an ID against being rewritten locally while a
// queued replication of an older copy is still in flight; the last write to
// reach the cloud wins, consistent with the whole-side merge rule.
type SyncEngine struct {
	local store.Store
	cloud store.Store
	log   logger.Logger
	queue *syncQueue

	mu           sync.Mutex
	syncing      bool
	lastSyncTime time.Time
	lastStatus   SyncStatus
}

// NewSyncEngine creates an engine over the two stores. Call Start to launch
// the background queue and Stop to drain it.
func NewSyncEngine(local, cloud store.Store, cfg Config, log logger.Logger) *SyncEngine {
	return &SyncEngine{
		local:      local,
		cloud:      cloud,
		log:        log,
		queue:      newSyncQueue(cfg.SyncQueueSize, cfg.SyncRetryLimit, cfg.SyncRetryDelay, log),
		lastStatus: SyncStatusIdle,
	}
}

// Start launches the background replication worker.
func (e *SyncEngine) Start() { e.queue.start() }

// Stop halts the worker and abandons queued tasks.
func (e *SyncEngine) Stop() { e.queue.stop() }

// Syncing reports whether a bulk sync is currently running.
func (e *SyncEngine) Syncing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.syncing
}

// LastSyncTime returns when the last bulk sync finished (zero before any).
func (e *SyncEngine) LastSyncTime() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSyncTime
}

// LastSyncStatus returns the outcome of the most recent bulk sync.
func (e *SyncEngine) LastSyncStatus() SyncStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastStatus
}

// PendingTasks reports queued background tasks, for diagnostics.
func (e *SyncEngine) PendingTasks() int { return e.queue.pending() }

// EnqueueListSync schedules a best-effort push of the list to the cloud
// store. The snapshot is taken now; a later local write racing this task is
// resolved by last-writer-wins on the cloud side.
func (e *SyncEngine) EnqueueListSync(list *models.List) <-chan error {
	snapshot := list.Clone()
	return e.queue.enqueue("list->cloud "+snapshot.ID.String(), func(ctx context.Context) error {
		_, err := upsertListMerging(ctx, e.cloud, snapshot)
		return err
	})
}

// EnqueueItemSync schedules a best-effort push of the item to the cloud store.
func (e *SyncEngine) EnqueueItemSync(item *models.Item) <-chan error {
	snapshot := item.Clone()
	return e.queue.enqueue("item->cloud "+snapshot.ID.String(), func(ctx context.Context) error {
		_, err := upsertItemMerging(ctx, e.cloud, snapshot)
		return err
	})
}

// EnqueueListMirror schedules a best-effort copy of a cloud-written list
// into the on-device store, keeping the fallback replica warm.
func (e *SyncEngine) EnqueueListMirror(list *models.List) <-chan error {
	snapshot := list.Clone()
	return e.queue.enqueue("list->local "+snapshot.ID.String(), func(ctx context.Context) error {
		_, err := upsertListMerging(ctx, e.local, snapshot)
		return err
	})
}

// EnqueueItemMirror schedules a best-effort copy of a cloud-written item
// into the on-device store.
func (e *SyncEngine) EnqueueItemMirror(item *models.Item) <-chan error {
	snapshot := item.Clone()
	return e.queue.enqueue("item->local "+snapshot.ID.String(), func(ctx context.Context) error {
		_, err := upsertItemMerging(ctx, e.local, snapshot)
		return err
	})
}

// ForceSyncAll synchronously pushes every local list and item to the cloud
// store. It fails fast when the cloud store does not answer or another bulk
// sync is running, and records its outcome for diagnostics. The syncing flag
// is reset on every path, including failures.
func (e *SyncEngine) ForceSyncAll(ctx context.Context) (err error) {
	e.mu.Lock()
	if e.syncing {
		e.mu.Unlock()
		return ErrSyncInProgress
	}
	e.syncing = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.syncing = false
		e.lastSyncTime = time.Now().UTC()
		if err != nil {
			e.lastStatus = SyncStatusFailed
		} else {
			e.lastStatus = SyncStatusSucceeded
		}
		e.mu.Unlock()
	}()

	if perr := e.cloud.Ping(ctx); perr != nil {
		return fmt.Errorf("force sync aborted, cloud store unavailable: %w", perr)
	}
	return e.SyncLocalToCloud(ctx)
}

// SyncLocalToCloud bulk-copies every local record to the cloud store,
// merging per ID. Per-record failures are logged and counted; a non-zero
// count fails the call so lost writes are never silent.
func (e *SyncEngine) SyncLocalToCloud(ctx context.Context) error {
	return e.copyAll(ctx, e.local, e.cloud, "local->cloud")
}

// SyncCloudToLocal bulk-copies every cloud record into the on-device store.
// Used by migration copy-down and recovery.
func (e *SyncEngine) SyncCloudToLocal(ctx context.Context) error {
	return e.copyAll(ctx, e.cloud, e.local, "cloud->local")
}

func (e *SyncEngine) copyAll(ctx context.Context, from, to store.Store, direction string) error {
	lists, err := from.GetAllLists(ctx)
	if err != nil {
		return fmt.Errorf("%s sync: listing lists: %w", direction, err)
	}
	items, err := from.GetAllItems(ctx)
	if err != nil {
		return fmt.Errorf("%s sync: listing items: %w", direction, err)
	}

	failed := 0
	for _, list := range lists {
		if ctx.Err() != nil {
			return fmt.Errorf("%s sync interrupted: %w", direction, ctx.Err())
		}
		if _, err := upsertListMerging(ctx, to, list); err != nil {
			failed++
			e.log.Error("sync: list copy failed", logger.Fields{
				"direction": direction,
				"list_id":   list.ID.String(),
				"error":     err.Error(),
			})
		}
	}
	for _, item := range items {
		if ctx.Err() != nil {
			return fmt.Errorf("%s sync interrupted: %w", direction, ctx.Err())
		}
		if _, err := upsertItemMerging(ctx, to, item); err != nil {
			failed++
			e.log.Error("sync: item copy failed", logger.Fields{
				"direction": direction,
				"item_id":   item.ID.String(),
				"error":     err.Error(),
			})
		}
	}
	if failed > 0 {
		return fmt.Errorf("%s sync completed with %d failed records", direction, failed)
	}
	e.log.Info("bulk sync completed", logger.Fields{
		"direction": direction,
		"lists":     len(lists),
		"items":     len(items),
	})
	return nil
}

// SyncModifiedToCloud is the incremental variant of SyncLocalToCloud: only
// records whose UpdatedAt falls in (since, until] are pushed.
func (e *SyncEngine) SyncModifiedToCloud(ctx context.Context, since, until time.Time) error {
	listIDs, err := e.local.ListModifiedLists(ctx, since, until)
	if err != nil {
		return fmt.Errorf("incremental sync: listing modified lists: %w", err)
	}
	for _, id := range listIDs {
		list, err := e.local.GetList(ctx, id)
		if err != nil {
			return fmt.Errorf("incremental sync: reading list %s: %w", id, err)
		}
		if _, err := upsertListMerging(ctx, e.cloud, list); err != nil {
			e.log.Error("incremental sync: list push failed", logger.Fields{
				"list_id": id.String(),
				"error":   err.Error(),
			})
		}
	}

	itemIDs, err := e.local.ListModifiedItems(ctx, since, until)
	if err != nil {
		return fmt.Errorf("incremental sync: listing modified items: %w", err)
	}
	for _, id := range itemIDs {
		item, err := e.local.GetItem(ctx, id)
		if err != nil {
			return fmt.Errorf("incremental sync: reading item %s: %w", id, err)
		}
		if _, err := upsertItemMerging(ctx, e.cloud, item); err != nil {
			e.log.Error("incremental sync: item push failed", logger.Fields{
				"item_id": id.String(),
				"error":   err.Error(),
			})
		}
	}
	return nil
}

// ResolveListConflicts reconciles two snapshots of the list collection. For
// IDs present on both sides the record with the later UpdatedAt wins (ties
// keep the local copy); one-sided records carry through. The result is the
// union, locals first.
func ResolveListConflicts(local, cloud []*models.List) []*models.List {
	cloudByID := make(map[models.ListID]*models.List, len(cloud))
	for _, c := range cloud {
		cloudByID[c.ID] = c
	}

	out := make([]*models.List, 0, len(local)+len(cloud))
	for _, l := range local {
		if c, ok := cloudByID[l.ID]; ok {
			if c.UpdatedAt.After(l.UpdatedAt) {
				out = append(out, c)
			} else {
				out = append(out, l)
			}
			delete(cloudByID, l.ID)
			continue
		}
		out = append(out, l)
	}
	for _, c := range cloud {
		if _, ok := cloudByID[c.ID]; ok {
			out = append(out, c)
		}
	}
	return out
}

// ResolveItemConflicts is the item counterpart of ResolveListConflicts.
// Items compare UpdatedAt, not CreatedAt: creation time never changes after
// the first write and cannot order later edits.
func ResolveItemConflicts(local, cloud []*models.Item) []*models.Item {
	cloudByID := make(map[models.ItemID]*models.Item, len(cloud))
	for _, c := range cloud {
		cloudByID[c.ID] = c
	}

	out := make([]*models.Item, 0, len(local)+len(cloud))
	for _, l := range local {
		if c, ok := cloudByID[l.ID]; ok {
			if c.UpdatedAt.After(l.UpdatedAt) {
				out = append(out, c)
			} else {
				out = append(out, l)
			}
			delete(cloudByID, l.ID)
			continue
		}
		out = append(out, l)
	}
	for _, c := range cloud {
		if _, ok := cloudByID[c.ID]; ok {
			out = append(out, c)
		}
	}
	return out
}
