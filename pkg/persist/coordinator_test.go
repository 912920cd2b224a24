package persist

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/listkeeper/listkeeper/pkg/logger"
	"github.com/listkeeper/listkeeper/pkg/models"
	"github.com/listkeeper/listkeeper/pkg/store"
	"github.com/listkeeper/listkeeper/pkg/store/memory"
)

func TestCoordinatorLifecycle(t *testing.T) {
	ctx := context.Background()
	coord := NewCoordinator(memory.New(), memory.New(), testConfig(), logger.Nop())

	// Every operation fails before Initialize.
	_, err := coord.GetAllLists(ctx)
	require.ErrorIs(t, err, ErrNotInitialized)

	require.NoError(t, coord.Initialize(ctx, false))
	require.Equal(t, ModeLocalFirst, coord.Mode())
	require.False(t, coord.Authenticated())

	// A second Initialize without Dispose is an error.
	require.ErrorIs(t, coord.Initialize(ctx, false), ErrAlreadyInitialized)

	coord.Dispose()
	_, err = coord.GetAllLists(ctx)
	require.ErrorIs(t, err, ErrNotInitialized)

	// Dispose makes re-initialization legal.
	require.NoError(t, coord.Initialize(ctx, true))
	require.Equal(t, ModeCloudFirst, coord.Mode())
	coord.Dispose()
}

func TestCoordinatorGuestWritesStayLocal(t *testing.T) {
	ctx := context.Background()
	local := memory.New()
	cloud := memory.New()
	cfg := testConfig()
	cfg.EnableBackgroundSync = false
	coord := NewCoordinator(local, cloud, cfg, logger.Nop())
	require.NoError(t, coord.Initialize(ctx, false))
	defer coord.Dispose()

	list := newTestList("guest list")
	outcome, err := coord.SaveList(ctx, list)
	require.NoError(t, err)
	require.Equal(t, OutcomeInserted, outcome)

	localLists, err := local.GetAllLists(ctx)
	require.NoError(t, err)
	require.Len(t, localLists, 1)
	cloudLists, err := cloud.GetAllLists(ctx)
	require.NoError(t, err)
	require.Empty(t, cloudLists)
}

func TestCoordinatorCloudFirstRoutesToCloud(t *testing.T) {
	ctx := context.Background()
	local := memory.New()
	cloud := memory.New()
	cfg := testConfig()
	cfg.EnableBackgroundSync = false
	coord := NewCoordinator(local, cloud, cfg, logger.Nop())
	require.NoError(t, coord.Initialize(ctx, true))
	defer coord.Dispose()

	list := newTestList("cloud list")
	_, err := coord.SaveList(ctx, list)
	require.NoError(t, err)

	cloudLists, err := cloud.GetAllLists(ctx)
	require.NoError(t, err)
	require.Len(t, cloudLists, 1)
	localLists, err := local.GetAllLists(ctx)
	require.NoError(t, err)
	require.Empty(t, localLists)
}

func TestCoordinatorAssignsIdentity(t *testing.T) {
	ctx := context.Background()
	coord, _, _, err := newCoordinatorForTest(false)
	require.NoError(t, err)
	defer coord.Dispose()

	list := &models.List{Name: "no id yet", Category: models.CategoryCustom}
	outcome, err := coord.SaveList(ctx, list)
	require.NoError(t, err)
	require.Equal(t, OutcomeInserted, outcome)
	require.False(t, list.ID.IsZero())
	require.False(t, list.CreatedAt.IsZero())
	require.False(t, list.UpdatedAt.Before(list.CreatedAt))

	item := &models.Item{ListID: list.ID, Title: "no id either"}
	_, err = coord.SaveItem(ctx, item)
	require.NoError(t, err)
	require.False(t, item.ID.IsZero())
}

func TestCoordinatorAuthenticatedWriteReachesCloudInBackground(t *testing.T) {
	ctx := context.Background()
	local := memory.New()
	cloud := memory.New()
	coord := NewCoordinator(local, cloud, testConfig(), logger.Nop())
	require.NoError(t, coord.Initialize(ctx, false))
	defer coord.Dispose()

	// Sign in without local data to migrate, then write while local-first
	// is still not set (cloud-first after sign-in mirrors down instead).
	require.NoError(t, coord.UpdateAuthenticationState(ctx, true, StrategyIntelligentMerge))
	require.Equal(t, ModeCloudFirst, coord.Mode())

	list := newTestList("written cloud-first")
	_, err := coord.SaveList(ctx, list)
	require.NoError(t, err)

	// The synchronous write landed in the cloud; the mirror into the local
	// store is asynchronous so wait for the queue to drain.
	_, err = cloud.GetList(ctx, list.ID)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, err := local.GetList(ctx, list.ID)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCoordinatorSignInMigratesGuestData(t *testing.T) {
	ctx := context.Background()
	coord, local, cloud, err := newCoordinatorForTest(false)
	require.NoError(t, err)
	defer coord.Dispose()

	list := newTestList("made as guest")
	_, err = coord.SaveList(ctx, list)
	require.NoError(t, err)
	_, err = coord.SaveItem(ctx, newTestItem(list.ID, "guest item"))
	require.NoError(t, err)

	require.NoError(t, coord.UpdateAuthenticationState(ctx, true, StrategyIntelligentMerge))
	require.True(t, coord.Authenticated())
	require.Equal(t, ModeCloudFirst, coord.Mode())

	cloudLists, err := cloud.GetAllLists(ctx)
	require.NoError(t, err)
	require.Len(t, cloudLists, 1)
	cloudItems, err := cloud.GetAllItems(ctx)
	require.NoError(t, err)
	require.Len(t, cloudItems, 1)

	// Local data is untouched by the sign-in.
	localLists, err := local.GetAllLists(ctx)
	require.NoError(t, err)
	require.Len(t, localLists, 1)
}

func TestCoordinatorSignInPendingDecisionKeepsGuestMode(t *testing.T) {
	ctx := context.Background()
	coord, _, _, err := newCoordinatorForTest(false)
	require.NoError(t, err)
	defer coord.Dispose()

	err = coord.UpdateAuthenticationState(ctx, true, StrategyAskUser)
	require.ErrorIs(t, err, ErrMigrationDecisionRequired)
	require.False(t, coord.Authenticated())
	require.Equal(t, ModeLocalFirst, coord.Mode())
}

func TestCoordinatorSignOutCopiesCloudDown(t *testing.T) {
	ctx := context.Background()
	coord, local, cloud, err := newCoordinatorForTest(true)
	require.NoError(t, err)
	defer coord.Dispose()

	list := newTestList("cloud data")
	require.NoError(t, cloud.AddList(ctx, list))

	require.NoError(t, coord.UpdateAuthenticationState(ctx, false, StrategyCloudOnly))
	require.False(t, coord.Authenticated())
	require.Equal(t, ModeLocalFirst, coord.Mode())

	localLists, err := local.GetAllLists(ctx)
	require.NoError(t, err)
	require.Len(t, localLists, 1)
}

func TestCoordinatorUnchangedAuthStateIsNoop(t *testing.T) {
	ctx := context.Background()
	coord, _, _, err := newCoordinatorForTest(false)
	require.NoError(t, err)
	defer coord.Dispose()

	require.NoError(t, coord.UpdateAuthenticationState(ctx, false, StrategyMigrateAll))
	require.Equal(t, ModeLocalFirst, coord.Mode())
}

func TestCoordinatorMigrateRequiresAuthentication(t *testing.T) {
	ctx := context.Background()
	coord, _, _, err := newCoordinatorForTest(false)
	require.NoError(t, err)
	defer coord.Dispose()

	err = coord.MigrateData(ctx, StrategyMigrateAll)
	require.Error(t, err)
	require.Contains(t, err.Error(), "authenticated")
}

func TestCoordinatorReloadReportsOrphans(t *testing.T) {
	ctx := context.Background()
	coord, local, cloud, err := newCoordinatorForTest(false)
	require.NoError(t, err)
	defer coord.Dispose()

	list := newTestList("intact")
	require.NoError(t, local.AddList(ctx, list))
	require.NoError(t, local.AddItem(ctx, newTestItem(list.ID, "fine")))

	orphan := newTestItem(models.NewListID(), "orphan")
	require.NoError(t, local.AddItem(ctx, orphan))

	// An item whose list lives in the other store is not an orphan.
	cloudList := newTestList("in cloud")
	require.NoError(t, cloud.AddList(ctx, cloudList))
	require.NoError(t, local.AddItem(ctx, newTestItem(cloudList.ID, "cross-store")))

	report, err := coord.ReloadFromStore(ctx)
	require.NoError(t, err)
	require.Len(t, report.Lists, 1)
	require.Len(t, report.Items, 3)
	require.Equal(t, []models.ItemID{orphan.ID}, report.OrphanedItemIDs)
}

func TestCoordinatorClearAllData(t *testing.T) {
	ctx := context.Background()
	coord, local, cloud, err := newCoordinatorForTest(false)
	require.NoError(t, err)
	defer coord.Dispose()

	require.NoError(t, local.AddList(ctx, newTestList("to be wiped")))
	require.NoError(t, cloud.AddList(ctx, newTestList("survives")))

	require.NoError(t, coord.ClearAllData(ctx))

	localLists, err := local.GetAllLists(ctx)
	require.NoError(t, err)
	require.Empty(t, localLists)
	cloudLists, err := cloud.GetAllLists(ctx)
	require.NoError(t, err)
	require.Len(t, cloudLists, 1)
}

func TestCoordinatorClearWritesSafetySnapshot(t *testing.T) {
	ctx := context.Background()
	local := memory.New()
	cfg := testConfig()
	cfg.SnapshotDir = t.TempDir()
	coord := NewCoordinator(local, memory.New(), cfg, logger.Nop())
	require.NoError(t, coord.Initialize(ctx, false))
	defer coord.Dispose()

	list := newTestList("snapshotted")
	require.NoError(t, local.AddList(ctx, list))
	require.NoError(t, coord.ClearAllData(ctx))

	lists, err := local.GetAllLists(ctx)
	require.NoError(t, err)
	require.Empty(t, lists)
}

func TestCoordinatorStats(t *testing.T) {
	ctx := context.Background()
	coord, _, _, err := newCoordinatorForTest(false)
	require.NoError(t, err)
	defer coord.Dispose()

	stats := coord.Stats()
	require.True(t, stats.Initialized)
	require.Equal(t, ModeLocalFirst, stats.Mode)
	require.False(t, stats.Authenticated)
	require.False(t, stats.Syncing)
	require.Equal(t, SyncStatusIdle, stats.LastSyncStatus)

	require.NoError(t, coord.ForceSyncAll(ctx))
	stats = coord.Stats()
	require.Equal(t, SyncStatusSucceeded, stats.LastSyncStatus)
	require.False(t, stats.LastSyncTime.IsZero())
}

func TestCoordinatorUpdateTouchesTimestamp(t *testing.T) {
	ctx := context.Background()
	coord, local, _, err := newCoordinatorForTest(false)
	require.NoError(t, err)
	defer coord.Dispose()

	list := newTestList("touched")
	_, err = coord.SaveList(ctx, list)
	require.NoError(t, err)

	renamed := list.Clone()
	renamed.Name = "touched twice"
	require.NoError(t, coord.UpdateList(ctx, renamed))

	got, err := local.GetList(ctx, list.ID)
	require.NoError(t, err)
	require.Equal(t, "touched twice", got.Name)
	require.True(t, got.UpdatedAt.After(testBase))
}

func TestCoordinatorSaveMultipleItems(t *testing.T) {
	ctx := context.Background()
	coord, local, _, err := newCoordinatorForTest(false)
	require.NoError(t, err)
	defer coord.Dispose()

	listID := models.NewListID()
	batch := []*models.Item{
		newTestItem(listID, "one"),
		newTestItem(listID, "two"),
		newTestItem(listID, "three"),
	}
	require.NoError(t, coord.SaveMultipleItems(ctx, batch))

	items, err := local.GetItemsByList(ctx, listID)
	require.NoError(t, err)
	require.Len(t, items, 3)
}

// gateStore holds GetAllLists open until released, keeping an identity
// transition in flight long enough to observe its effects.
type gateStore struct {
	store.Store
	entered chan struct{}
	release chan struct{}
}

func (g *gateStore) GetAllLists(ctx context.Context) ([]*models.List, error) {
	select {
	case g.entered <- struct{}{}:
	default:
	}
	<-g.release
	return g.Store.GetAllLists(ctx)
}

func TestCoordinatorWritesBlockedDuringMigration(t *testing.T) {
	ctx := context.Background()
	gated := &gateStore{Store: memory.New(), entered: make(chan struct{}, 1), release: make(chan struct{})}
	coord := NewCoordinator(gated, memory.New(), testConfig(), logger.Nop())
	require.NoError(t, coord.Initialize(ctx, false))
	defer coord.Dispose()

	transition := make(chan error, 1)
	go func() {
		transition <- coord.UpdateAuthenticationState(ctx, true, StrategyMigrateAll)
	}()
	<-gated.entered // migration is now reading the device store

	_, err := coord.SaveList(ctx, newTestList("mid-transition"))
	require.ErrorIs(t, err, store.ErrReadOnly)

	close(gated.release)
	require.NoError(t, <-transition)

	// Writes resume once the transition completes.
	_, err = coord.SaveList(ctx, newTestList("after transition"))
	require.NoError(t, err)
}

func TestCoordinatorPendingMigrationDuringIdentityFlips(t *testing.T) {
	ctx := context.Background()
	coord, local, _, err := newCoordinatorForTest(false)
	require.NoError(t, err)
	defer coord.Dispose()
	require.NoError(t, local.AddList(ctx, newTestList("held locally")))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			_ = coord.UpdateAuthenticationState(ctx, i%2 == 0, StrategyMigrateAll)
		}
	}()
	for i := 0; i < 50; i++ {
		_, err := coord.HasPendingMigration(ctx)
		require.NoError(t, err)
	}
	<-done
	require.False(t, coord.Authenticated())
}

func TestCoordinatorSyncRecentChangesPushesWindowOnly(t *testing.T) {
	ctx := context.Background()
	coord, local, cloud, err := newCoordinatorForTest(false)
	require.NoError(t, err)
	defer coord.Dispose()

	stale := newTestList("long unchanged")
	fresh := newTestList("edited just now")
	fresh.UpdatedAt = time.Now().UTC()
	require.NoError(t, local.AddList(ctx, stale))
	require.NoError(t, local.AddList(ctx, fresh))

	freshItem := newTestItem(fresh.ID, "also edited")
	freshItem.UpdatedAt = time.Now().UTC()
	require.NoError(t, local.AddItem(ctx, newTestItem(stale.ID, "untouched")))
	require.NoError(t, local.AddItem(ctx, freshItem))

	require.NoError(t, coord.SyncRecentChanges(ctx, time.Now().UTC().Add(-time.Hour)))

	lists, err := cloud.GetAllLists(ctx)
	require.NoError(t, err)
	require.Len(t, lists, 1)
	require.Equal(t, fresh.ID, lists[0].ID)

	items, err := cloud.GetAllItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, freshItem.ID, items[0].ID)
}

func TestCoordinatorGuestAuthenticatedRoundTrip(t *testing.T) {
	ctx := context.Background()
	coord, local, cloud, err := newCoordinatorForTest(false)
	require.NoError(t, err)
	defer coord.Dispose()

	list := &models.List{Name: "errands", Category: models.CategoryTasks}
	_, err = coord.SaveList(ctx, list)
	require.NoError(t, err)
	first := &models.Item{ListID: list.ID, Title: "post office"}
	second := &models.Item{ListID: list.ID, Title: "pharmacy"}
	_, err = coord.SaveItem(ctx, first)
	require.NoError(t, err)
	_, err = coord.SaveItem(ctx, second)
	require.NoError(t, err)

	require.NoError(t, coord.UpdateAuthenticationState(ctx, true, StrategyIntelligentMerge))
	require.Equal(t, ModeCloudFirst, coord.Mode())

	cloudLists, err := cloud.GetAllLists(ctx)
	require.NoError(t, err)
	require.Len(t, cloudLists, 1)
	require.Equal(t, "errands", cloudLists[0].Name)
	cloudItems, err := cloud.GetItemsByList(ctx, list.ID)
	require.NoError(t, err)
	require.Len(t, cloudItems, 2)

	require.NoError(t, coord.UpdateAuthenticationState(ctx, false, StrategyMigrateAll))
	require.Equal(t, ModeLocalFirst, coord.Mode())

	// The device store holds the same content it held before login.
	localLists, err := local.GetAllLists(ctx)
	require.NoError(t, err)
	require.Len(t, localLists, 1)
	require.Equal(t, list.ID, localLists[0].ID)
	require.Equal(t, "errands", localLists[0].Name)

	localItems, err := local.GetItemsByList(ctx, list.ID)
	require.NoError(t, err)
	titles := make(map[string]bool, len(localItems))
	for _, item := range localItems {
		titles[item.Title] = true
	}
	require.Equal(t, map[string]bool{"post office": true, "pharmacy": true}, titles)
}
