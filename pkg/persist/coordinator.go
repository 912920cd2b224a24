package persist

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/listkeeper/listkeeper/pkg/logger"
	"github.com/listkeeper/listkeeper/pkg/models"
	"github.com/listkeeper/listkeeper/pkg/store"
	"github.com/listkeeper/listkeeper/pkg/store/snapshot"
)

// Mode is the active routing strategy deciding which store serves reads and
// writes.
type Mode string

const (
	// ModeLocalOnly routes everything to the on-device store and never
	// touches the network.
	ModeLocalOnly Mode = "local_only"

	// ModeLocalFirst routes to the on-device store; writes are replicated
	// to the cloud in the background when sync is enabled. The guest
	// default.
	ModeLocalFirst Mode = "local_first"

	// ModeCloudFirst routes to the cloud store with local read fallback;
	// writes are mirrored to the device in the background. The
	// authenticated default.
	ModeCloudFirst Mode = "cloud_first"

	// ModeHybrid routes like cloud-first. Reserved for finer-grained
	// routing policies.
	ModeHybrid Mode = "hybrid"
)

// usesCloud reports whether the mode serves operations from the cloud side.
func (m Mode) usesCloud() bool {
	return m == ModeCloudFirst || m == ModeHybrid
}

// ReloadReport is the result of re-reading the active store, including the
// referential anomalies found along the way.
type ReloadReport struct {
	Lists           []*models.List  `json:"lists"`
	Items           []*models.Item  `json:"items"`
	OrphanedItemIDs []models.ItemID `json:"orphaned_item_ids,omitempty"`
}

// Coordinator is the top-level persistence façade. It holds the current
// routing mode and authentication state, routes every operation to the
// local or cloud service, and hands writes off to the sync engine for
// background replication.
//
// A Coordinator is an explicitly constructed instance with an
// Initialize/Dispose lifecycle; there is no package-level singleton.
// Mode and authentication transitions are serialized behind a dedicated
// mutex so concurrent login/logout calls cannot interleave; state reads
// take a short-lived lock of their own and CRUD is not blocked by a
// long-running migration.
type Coordinator struct {
	cfg Config
	log logger.Logger

	localStore store.Store
	cloudStore store.Store

	local      *LocalService
	cloud      *CloudService
	engine     *SyncEngine
	migrations *MigrationManager

	// transitionMu serializes Initialize, Dispose and authentication-state
	// transitions. mu guards the fields below and is held only briefly.
	transitionMu sync.Mutex
	mu           sync.Mutex
	initialized  bool
	mode         Mode
	authed       bool
}

// NewCoordinator builds the service graph over the two stores. The
// coordinator is inert until Initialize is called.
//
// The services see the device store through a read-only guard tied to the
// migration manager: while an identity transition copies data between the
// stores, request-path writes fail with store.ErrReadOnly instead of
// mutating the set being copied. The manager and the sync engine keep the
// unguarded store, their writes are the transition itself.
func NewCoordinator(localStore, cloudStore store.Store, cfg Config, log logger.Logger) *Coordinator {
	migrations := NewMigrationManager(localStore, cloudStore, log)
	guarded := store.NewReadOnly(localStore, migrations.Migrating)
	return &Coordinator{
		cfg:        cfg,
		log:        log,
		localStore: localStore,
		cloudStore: cloudStore,
		local:      NewLocalService(guarded, log),
		cloud:      NewCloudService(cloudStore, guarded, log),
		engine:     NewSyncEngine(localStore, cloudStore, cfg, log),
		migrations: migrations,
	}
}

// Initialize sets the starting mode from the authentication state:
// local-first for guests, cloud-first for authenticated users. Calling it
// twice without a matching Dispose fails with ErrAlreadyInitialized.
func (c *Coordinator) Initialize(ctx context.Context, authenticated bool) error {
	c.transitionMu.Lock()
	defer c.transitionMu.Unlock()

	c.mu.Lock()
	if c.initialized {
		c.mu.Unlock()
		return ErrAlreadyInitialized
	}
	if authenticated {
		c.mode = ModeCloudFirst
	} else {
		c.mode = ModeLocalFirst
	}
	c.authed = authenticated
	c.initialized = true
	c.mu.Unlock()

	c.migrations.setAuthenticated(authenticated)
	if c.cfg.EnableBackgroundSync {
		c.engine.Start()
	}
	c.log.Info("persistence coordinator initialized", logger.Fields{
		"mode":          string(c.Mode()),
		"authenticated": authenticated,
	})
	return nil
}

// Dispose stops background replication and returns the coordinator to the
// uninitialized state. Safe to call on an uninitialized coordinator.
func (c *Coordinator) Dispose() {
	c.transitionMu.Lock()
	defer c.transitionMu.Unlock()

	c.mu.Lock()
	wasInitialized := c.initialized
	c.initialized = false
	c.mode = ""
	c.mu.Unlock()

	if wasInitialized && c.cfg.EnableBackgroundSync {
		c.engine.Stop()
	}
}

// Mode returns the current routing mode.
func (c *Coordinator) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Authenticated returns the current identity state.
func (c *Coordinator) Authenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authed
}

// ready snapshots the routing state, failing before Initialize.
func (c *Coordinator) ready() (Mode, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return "", false, ErrNotInitialized
	}
	return c.mode, c.authed, nil
}

// UpdateAuthenticationState drives the identity transitions. Guest to
// authenticated runs the selected migration strategy and then switches to
// cloud-first; authenticated to guest copies cloud data down to the device
// and switches to local-first. An unchanged value is a no-op. When the
// migration fails (including the pending ask-user decision) the mode and
// flag are left untouched.
func (c *Coordinator) UpdateAuthenticationState(ctx context.Context, authenticated bool, strategy Strategy) error {
	c.transitionMu.Lock()
	defer c.transitionMu.Unlock()

	_, current, err := c.ready()
	if err != nil {
		return err
	}
	if current == authenticated {
		return nil
	}

	if authenticated {
		if err := c.migrations.ActivateAuthenticated(ctx, strategy); err != nil {
			return fmt.Errorf("guest to authenticated transition: %w", err)
		}
		c.setState(ModeCloudFirst, true)
	} else {
		if err := c.migrations.DeactivateToGuest(ctx); err != nil {
			return fmt.Errorf("authenticated to guest transition: %w", err)
		}
		c.setState(ModeLocalFirst, false)
	}
	c.log.Info("authentication state updated", logger.Fields{
		"authenticated": authenticated,
		"mode":          string(c.Mode()),
	})
	return nil
}

func (c *Coordinator) setState(mode Mode, authed bool) {
	c.mu.Lock()
	c.mode = mode
	c.authed = authed
	c.mu.Unlock()
}

// GetAllLists returns every list from the store the current mode routes to.
func (c *Coordinator) GetAllLists(ctx context.Context) ([]*models.List, error) {
	mode, _, err := c.ready()
	if err != nil {
		return nil, err
	}
	if mode.usesCloud() {
		return c.cloud.GetAllLists(ctx)
	}
	return c.local.GetAllLists(ctx)
}

// GetItemsByListID returns the items of one list from the active store.
func (c *Coordinator) GetItemsByListID(ctx context.Context, listID models.ListID) ([]*models.Item, error) {
	mode, _, err := c.ready()
	if err != nil {
		return nil, err
	}
	if mode.usesCloud() {
		return c.cloud.GetItemsByList(ctx, listID)
	}
	return c.local.GetItemsByList(ctx, listID)
}

// SaveList persists the list through the active service, assigning an ID
// and timestamps if the caller left them zero, and schedules background
// replication to the other store when sync is enabled.
func (c *Coordinator) SaveList(ctx context.Context, list *models.List) (Outcome, error) {
	mode, authed, err := c.ready()
	if err != nil {
		return 0, err
	}
	prepareList(list)

	if mode.usesCloud() {
		out, err := c.cloud.SaveList(ctx, list)
		if err != nil {
			return 0, err
		}
		c.replicate(mode, authed, func() { c.engine.EnqueueListMirror(list) })
		return out, nil
	}
	out, err := c.local.SaveList(ctx, list)
	if err != nil {
		return 0, err
	}
	c.replicate(mode, authed, func() { c.engine.EnqueueListSync(list) })
	return out, nil
}

// UpdateList updates the list through the active service and schedules
// background replication.
func (c *Coordinator) UpdateList(ctx context.Context, list *models.List) error {
	mode, authed, err := c.ready()
	if err != nil {
		return err
	}
	list.Touch(time.Now().UTC())

	if mode.usesCloud() {
		if err := c.cloud.UpdateList(ctx, list); err != nil {
			return err
		}
		c.replicate(mode, authed, func() { c.engine.EnqueueListMirror(list) })
		return nil
	}
	if err := c.local.UpdateList(ctx, list); err != nil {
		return err
	}
	c.replicate(mode, authed, func() { c.engine.EnqueueListSync(list) })
	return nil
}

// DeleteList removes the list from the active store. Deletes are not
// replicated in the background; a full sync reconciles them.
func (c *Coordinator) DeleteList(ctx context.Context, id models.ListID) error {
	mode, _, err := c.ready()
	if err != nil {
		return err
	}
	if mode.usesCloud() {
		return c.cloud.DeleteList(ctx, id)
	}
	return c.local.DeleteList(ctx, id)
}

// SaveItem persists the item through the active service and schedules
// background replication.
func (c *Coordinator) SaveItem(ctx context.Context, item *models.Item) (Outcome, error) {
	mode, authed, err := c.ready()
	if err != nil {
		return 0, err
	}
	prepareItem(item)

	if mode.usesCloud() {
		out, err := c.cloud.SaveItem(ctx, item)
		if err != nil {
			return 0, err
		}
		c.replicate(mode, authed, func() { c.engine.EnqueueItemMirror(item) })
		return out, nil
	}
	out, err := c.local.SaveItem(ctx, item)
	if err != nil {
		return 0, err
	}
	c.replicate(mode, authed, func() { c.engine.EnqueueItemSync(item) })
	return out, nil
}

// UpdateItem updates the item through the active service and schedules
// background replication.
func (c *Coordinator) UpdateItem(ctx context.Context, item *models.Item) error {
	mode, authed, err := c.ready()
	if err != nil {
		return err
	}
	item.Touch(time.Now().UTC())

	if mode.usesCloud() {
		if err := c.cloud.UpdateItem(ctx, item); err != nil {
			return err
		}
		c.replicate(mode, authed, func() { c.engine.EnqueueItemMirror(item) })
		return nil
	}
	if err := c.local.UpdateItem(ctx, item); err != nil {
		return err
	}
	c.replicate(mode, authed, func() { c.engine.EnqueueItemSync(item) })
	return nil
}

// DeleteItem removes the item from the active store.
func (c *Coordinator) DeleteItem(ctx context.Context, id models.ItemID) error {
	mode, _, err := c.ready()
	if err != nil {
		return err
	}
	if mode.usesCloud() {
		return c.cloud.DeleteItem(ctx, id)
	}
	return c.local.DeleteItem(ctx, id)
}

// SaveMultipleItems writes the batch all-or-nothing through the active
// service and replicates each item in the background on success.
func (c *Coordinator) SaveMultipleItems(ctx context.Context, items []*models.Item) error {
	mode, authed, err := c.ready()
	if err != nil {
		return err
	}
	for _, item := range items {
		prepareItem(item)
	}

	if mode.usesCloud() {
		if err := c.cloud.SaveItems(ctx, items); err != nil {
			return err
		}
		for _, item := range items {
			item := item
			c.replicate(mode, authed, func() { c.engine.EnqueueItemMirror(item) })
		}
		return nil
	}
	if err := c.local.SaveItems(ctx, items); err != nil {
		return err
	}
	for _, item := range items {
		item := item
		c.replicate(mode, authed, func() { c.engine.EnqueueItemSync(item) })
	}
	return nil
}

// replicate schedules the background leg of a write. Local-first writes
// replicate to the cloud only for authenticated sessions (guests have no
// cloud account to replicate into); cloud-first writes always mirror down.
func (c *Coordinator) replicate(mode Mode, authed bool, enqueue func()) {
	if !c.cfg.EnableBackgroundSync || mode == ModeLocalOnly {
		return
	}
	if !mode.usesCloud() && !authed {
		return
	}
	enqueue()
}

// VerifyListPersistence probes both stores for the list.
func (c *Coordinator) VerifyListPersistence(ctx context.Context, id models.ListID) (Presence, error) {
	if _, _, err := c.ready(); err != nil {
		return Presence{}, err
	}
	return c.cloud.VerifyListPersistence(ctx, id)
}

// VerifyItemPersistence probes both stores for the item.
func (c *Coordinator) VerifyItemPersistence(ctx context.Context, id models.ItemID) (Presence, error) {
	if _, _, err := c.ready(); err != nil {
		return Presence{}, err
	}
	return c.cloud.VerifyItemPersistence(ctx, id)
}

// ClearAllData wipes the active store. When SnapshotDir is configured a
// CBOR safety snapshot is written first so a mistaken clear is recoverable.
func (c *Coordinator) ClearAllData(ctx context.Context) error {
	mode, _, err := c.ready()
	if err != nil {
		return err
	}
	target := c.localStore
	if mode.usesCloud() {
		target = c.cloudStore
	}

	if c.cfg.SnapshotDir != "" {
		path, err := c.writeSafetySnapshot(ctx, target)
		if err != nil {
			return fmt.Errorf("clear aborted, safety snapshot failed: %w", err)
		}
		c.log.Info("safety snapshot written", logger.Fields{"path": path})
	}
	return target.Clear(ctx)
}

func (c *Coordinator) writeSafetySnapshot(ctx context.Context, st store.Store) (string, error) {
	snap, err := snapshot.Capture(ctx, st)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(c.cfg.SnapshotDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(c.cfg.SnapshotDir, fmt.Sprintf("clear-%s.lks", time.Now().UTC().Format("20060102T150405Z")))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := snapshot.Write(f, snap); err != nil {
		return "", err
	}
	return path, nil
}

// ReloadFromStore re-reads lists and items from the active store and checks
// referential integrity. An item whose list is known to neither store is an
// orphan: reported and logged, never silently dropped.
func (c *Coordinator) ReloadFromStore(ctx context.Context) (*ReloadReport, error) {
	mode, _, err := c.ready()
	if err != nil {
		return nil, err
	}
	active, other := c.localStore, c.cloudStore
	if mode.usesCloud() {
		active, other = c.cloudStore, c.localStore
	}

	lists, err := active.GetAllLists(ctx)
	if err != nil {
		return nil, fmt.Errorf("reload: reading lists: %w", err)
	}
	items, err := active.GetAllItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("reload: reading items: %w", err)
	}

	known := make(map[models.ListID]bool, len(lists))
	for _, list := range lists {
		known[list.ID] = true
	}
	report := &ReloadReport{Lists: lists, Items: items}
	for _, item := range items {
		if known[item.ListID] {
			continue
		}
		// The referential invariant spans both stores: only an item whose
		// list is in neither is an anomaly.
		exists, err := other.ListExists(ctx, item.ListID)
		if err != nil || !exists {
			report.OrphanedItemIDs = append(report.OrphanedItemIDs, item.ID)
			c.log.Warn("orphaned item detected", logger.Fields{
				"item_id": item.ID.String(),
				"list_id": item.ListID.String(),
			})
		}
	}
	return report, nil
}

// ForceSyncAll runs a synchronous full push of local data to the cloud.
func (c *Coordinator) ForceSyncAll(ctx context.Context) error {
	if _, _, err := c.ready(); err != nil {
		return err
	}
	return c.engine.ForceSyncAll(ctx)
}

// SyncRecentChanges pushes only records modified after since, the cheap
// alternative to ForceSyncAll when the offline window is known to be short.
func (c *Coordinator) SyncRecentChanges(ctx context.Context, since time.Time) error {
	if _, _, err := c.ready(); err != nil {
		return err
	}
	return c.engine.SyncModifiedToCloud(ctx, since, time.Now().UTC())
}

// MigrateData runs the given migration strategy. It requires an
// authenticated session; a guest has no cloud account to migrate into.
func (c *Coordinator) MigrateData(ctx context.Context, strategy Strategy) error {
	_, authed, err := c.ready()
	if err != nil {
		return err
	}
	if !authed {
		return fmt.Errorf("migration requires an authenticated session")
	}
	return c.migrations.MigrateToCloud(ctx, strategy)
}

// HasPendingMigration reports whether local lists remain unconfirmed in the
// cloud for an authenticated session.
func (c *Coordinator) HasPendingMigration(ctx context.Context) (bool, error) {
	if _, _, err := c.ready(); err != nil {
		return false, err
	}
	return c.migrations.HasPendingMigration(ctx)
}

// ExportSnapshot writes a CBOR snapshot of the on-device store to w.
func (c *Coordinator) ExportSnapshot(ctx context.Context, w io.Writer) error {
	if _, _, err := c.ready(); err != nil {
		return err
	}
	snap, err := snapshot.Capture(ctx, c.localStore)
	if err != nil {
		return err
	}
	return snapshot.Write(w, snap)
}

// ImportSnapshot restores a CBOR snapshot into the on-device store.
func (c *Coordinator) ImportSnapshot(ctx context.Context, r io.Reader) error {
	if _, _, err := c.ready(); err != nil {
		return err
	}
	snap, err := snapshot.Read(r)
	if err != nil {
		return err
	}
	return snapshot.Restore(ctx, c.localStore, snap)
}

// Stats returns the typed diagnostics record.
func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	initialized, mode, authed := c.initialized, c.mode, c.authed
	c.mu.Unlock()
	return Stats{
		Initialized:      initialized,
		Mode:             mode,
		Authenticated:    authed,
		Syncing:          c.engine.Syncing(),
		LastSyncTime:     c.engine.LastSyncTime(),
		LastSyncStatus:   c.engine.LastSyncStatus(),
		PendingSyncTasks: c.engine.PendingTasks(),
		Config:           c.cfg,
	}
}

// prepareList assigns identity and timestamps the caller left zero, and
// keeps UpdatedAt monotonic.
func prepareList(list *models.List) {
	now := time.Now().UTC()
	if list.ID.IsZero() {
		list.ID = models.NewListID()
	}
	if list.CreatedAt.IsZero() {
		list.CreatedAt = now
	}
	if list.UpdatedAt.Before(list.CreatedAt) {
		list.UpdatedAt = list.CreatedAt
	}
}

func prepareItem(item *models.Item) {
	now := time.Now().UTC()
	if item.ID.IsZero() {
		item.ID = models.NewItemID()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	if item.UpdatedAt.Before(item.CreatedAt) {
		item.UpdatedAt = item.CreatedAt
	}
}
