package persist

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/listkeeper/listkeeper/pkg/logger"
	"github.com/listkeeper/listkeeper/pkg/models"
	"github.com/listkeeper/listkeeper/pkg/store"
)

// Strategy selects how locally-held data moves to the cloud when a guest
// session authenticates.
type Strategy string

const (
	// StrategyMigrateAll pushes every local list and its items to the cloud
	// unconditionally, overwriting records that share an ID.
	StrategyMigrateAll Strategy = "migrate_all"

	// StrategyIntelligentMerge pushes only lists absent from the cloud. The
	// check is presence by ID, not content: field-level differences on
	// already-present lists are left to conflict resolution.
	StrategyIntelligentMerge Strategy = "intelligent_merge"

	// StrategyCloudOnly performs no migration. Local-only data stays on the
	// device and is invisible to the cloud.
	StrategyCloudOnly Strategy = "cloud_only"

	// StrategyAskUser defers the decision to the caller. Selecting it fails
	// with ErrMigrationDecisionRequired until a concrete strategy is chosen.
	StrategyAskUser Strategy = "ask_user"
)

// ParseStrategy converts a wire/CLI string into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyMigrateAll, StrategyIntelligentMerge, StrategyCloudOnly, StrategyAskUser:
		return Strategy(s), nil
	default:
		return "", fmt.Errorf("unknown migration strategy %q", s)
	}
}

// MigrationManager performs the one-shot bulk transitions run on identity
// changes: local data up to the cloud on login, cloud data down to the
// device on logout.
type MigrationManager struct {
	local store.Store
	cloud store.Store
	log   logger.Logger

	// mu guards the flags. Transitions are serialized by the coordinator,
	// but HasPendingMigration and the read-only guard read them from
	// request goroutines at any time.
	mu            sync.Mutex
	authenticated bool
	migrating     bool
}

// NewMigrationManager creates a manager over the two stores.
func NewMigrationManager(local, cloud store.Store, log logger.Logger) *MigrationManager {
	return &MigrationManager{local: local, cloud: cloud, log: log}
}

// Authenticated reports the manager's view of the identity state.
func (m *MigrationManager) Authenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authenticated
}

func (m *MigrationManager) setAuthenticated(v bool) {
	m.mu.Lock()
	m.authenticated = v
	m.mu.Unlock()
}

// Migrating reports whether a bulk identity transition is in flight. The
// read-only store guard blocks writes while it returns true.
func (m *MigrationManager) Migrating() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.migrating
}

func (m *MigrationManager) setMigrating(v bool) {
	m.mu.Lock()
	m.migrating = v
	m.mu.Unlock()
}

// ActivateAuthenticated runs the guest-to-authenticated transition: the
// selected strategy first, the flag flip only after it succeeds. Writes to
// the device store are blocked for the duration so the copy is consistent.
func (m *MigrationManager) ActivateAuthenticated(ctx context.Context, strategy Strategy) error {
	m.setMigrating(true)
	defer m.setMigrating(false)
	if err := m.MigrateToCloud(ctx, strategy); err != nil {
		return err
	}
	m.setAuthenticated(true)
	return nil
}

// DeactivateToGuest runs the authenticated-to-guest transition: an
// unconditional copy-down of all cloud data so the device keeps a usable
// local copy after logout. No strategy choice applies here.
func (m *MigrationManager) DeactivateToGuest(ctx context.Context) error {
	m.setMigrating(true)
	defer m.setMigrating(false)
	if err := m.CopyDownToLocal(ctx); err != nil {
		return err
	}
	m.setAuthenticated(false)
	return nil
}

// MigrateToCloud executes the chosen strategy. Failures are logged at error
// level and re-raised; a partially-applied migration is retried safely
// because every push is an upsert.
func (m *MigrationManager) MigrateToCloud(ctx context.Context, strategy Strategy) error {
	var err error
	switch strategy {
	case StrategyMigrateAll:
		err = m.migrateAll(ctx)
	case StrategyIntelligentMerge:
		err = m.intelligentMerge(ctx)
	case StrategyCloudOnly:
		m.log.Info("migration skipped by strategy", logger.Fields{"strategy": string(strategy)})
		return nil
	case StrategyAskUser:
		return ErrMigrationDecisionRequired
	default:
		return fmt.Errorf("unknown migration strategy %q", strategy)
	}
	if err != nil {
		m.log.Error("migration failed", logger.Fields{
			"strategy": string(strategy),
			"error":    err.Error(),
		})
		return err
	}
	return nil
}

// migrateAll pushes every local list and every local item, overwriting
// whatever the cloud holds under the same IDs. Pushing items from the full
// collection (not per list) also carries orphaned items, which migration
// must not drop.
func (m *MigrationManager) migrateAll(ctx context.Context) error {
	lists, err := m.local.GetAllLists(ctx)
	if err != nil {
		return fmt.Errorf("migrate all: listing local lists: %w", err)
	}
	for _, list := range lists {
		if err := upsertListOverwriting(ctx, m.cloud, list); err != nil {
			return fmt.Errorf("migrate all: pushing list %s: %w", list.ID, err)
		}
	}

	items, err := m.local.GetAllItems(ctx)
	if err != nil {
		return fmt.Errorf("migrate all: listing local items: %w", err)
	}
	for _, item := range items {
		if err := upsertItemOverwriting(ctx, m.cloud, item); err != nil {
			return fmt.Errorf("migrate all: pushing item %s: %w", item.ID, err)
		}
	}
	m.log.Info("migrated all local data to cloud", logger.Fields{
		"lists": len(lists),
		"items": len(items),
	})
	return nil
}

// intelligentMerge pushes lists the cloud does not know yet, along with
// their items, and leaves already-present lists untouched.
func (m *MigrationManager) intelligentMerge(ctx context.Context) error {
	lists, err := m.local.GetAllLists(ctx)
	if err != nil {
		return fmt.Errorf("intelligent merge: listing local lists: %w", err)
	}
	migrated := 0
	for _, list := range lists {
		exists, err := m.cloud.ListExists(ctx, list.ID)
		if err != nil {
			return fmt.Errorf("intelligent merge: probing cloud for list %s: %w", list.ID, err)
		}
		if exists {
			m.log.Info("list already present in cloud, skipping", logger.Fields{"list_id": list.ID.String()})
			continue
		}
		if err := upsertListOverwriting(ctx, m.cloud, list); err != nil {
			return fmt.Errorf("intelligent merge: pushing list %s: %w", list.ID, err)
		}
		items, err := m.local.GetItemsByList(ctx, list.ID)
		if err != nil {
			return fmt.Errorf("intelligent merge: reading items of list %s: %w", list.ID, err)
		}
		for _, item := range items {
			if err := upsertItemOverwriting(ctx, m.cloud, item); err != nil {
				return fmt.Errorf("intelligent merge: pushing item %s: %w", item.ID, err)
			}
		}
		migrated++
	}
	m.log.Info("intelligent merge finished", logger.Fields{
		"migrated": migrated,
		"skipped":  len(lists) - migrated,
	})
	return nil
}

// CopyDownToLocal copies every cloud list and item into the on-device
// store, overwriting local records with the same IDs.
func (m *MigrationManager) CopyDownToLocal(ctx context.Context) error {
	lists, err := m.cloud.GetAllLists(ctx)
	if err != nil {
		return fmt.Errorf("copy down: listing cloud lists: %w", err)
	}
	for _, list := range lists {
		if err := upsertListOverwriting(ctx, m.local, list); err != nil {
			return fmt.Errorf("copy down: writing list %s: %w", list.ID, err)
		}
	}
	items, err := m.cloud.GetAllItems(ctx)
	if err != nil {
		return fmt.Errorf("copy down: listing cloud items: %w", err)
	}
	for _, item := range items {
		if err := upsertItemOverwriting(ctx, m.local, item); err != nil {
			return fmt.Errorf("copy down: writing item %s: %w", item.ID, err)
		}
	}
	m.log.Info("copied cloud data down to local store", logger.Fields{
		"lists": len(lists),
		"items": len(items),
	})
	return nil
}

// HasPendingMigration reports whether an authenticated session still holds
// local lists the cloud has not confirmed. Guests never have a pending
// migration.
func (m *MigrationManager) HasPendingMigration(ctx context.Context) (bool, error) {
	if !m.Authenticated() {
		return false, nil
	}
	lists, err := m.local.GetAllLists(ctx)
	if err != nil {
		return false, fmt.Errorf("pending migration check: listing local lists: %w", err)
	}
	for _, list := range lists {
		exists, err := m.cloud.ListExists(ctx, list.ID)
		if err != nil {
			return false, fmt.Errorf("pending migration check: probing cloud for list %s: %w", list.ID, err)
		}
		if !exists {
			return true, nil
		}
	}
	return false, nil
}

// upsertListOverwriting writes the record as-is, replacing any existing
// record with the same ID. Migration semantics, as opposed to the
// last-writer-wins merge used by sync.
func upsertListOverwriting(ctx context.Context, st store.Store, list *models.List) error {
	err := st.AddList(ctx, list)
	if errors.Is(err, store.ErrAlreadyExists) {
		return st.UpdateList(ctx, list)
	}
	return err
}

func upsertItemOverwriting(ctx context.Context, st store.Store, item *models.Item) error {
	err := st.AddItem(ctx, item)
	if errors.Is(err, store.ErrAlreadyExists) {
		return st.UpdateItem(ctx, item)
	}
	return err
}
