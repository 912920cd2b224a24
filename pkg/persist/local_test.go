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

func TestLocalSaveListInsertsThenMerges(t *testing.T) {
	ctx := context.Background()
	svc := NewLocalService(memory.New(), logger.Nop())

	list := newTestList("groceries")
	outcome, err := svc.SaveList(ctx, list)
	require.NoError(t, err)
	require.Equal(t, OutcomeInserted, outcome)

	// A second save of the same ID merges instead of duplicating.
	renamed := list.Clone()
	renamed.Name = "groceries v2"
	renamed.UpdatedAt = testBase.Add(time.Minute)
	outcome, err = svc.SaveList(ctx, renamed)
	require.NoError(t, err)
	require.Equal(t, OutcomeUpdated, outcome)

	lists, err := svc.GetAllLists(ctx)
	require.NoError(t, err)
	require.Len(t, lists, 1)
	require.Equal(t, "groceries v2", lists[0].Name)
}

func TestLocalSaveListStaleCopyDoesNotRegress(t *testing.T) {
	ctx := context.Background()
	svc := NewLocalService(memory.New(), logger.Nop())

	list := newTestList("groceries")
	list.UpdatedAt = testBase.Add(time.Hour)
	_, err := svc.SaveList(ctx, list)
	require.NoError(t, err)

	stale := list.Clone()
	stale.Name = "old name"
	stale.UpdatedAt = testBase
	outcome, err := svc.SaveList(ctx, stale)
	require.NoError(t, err)
	require.Equal(t, OutcomeUpdated, outcome)

	lists, err := svc.GetAllLists(ctx)
	require.NoError(t, err)
	require.Equal(t, "groceries", lists[0].Name)
}

func TestLocalSaveListRejectsInvalid(t *testing.T) {
	svc := NewLocalService(memory.New(), logger.Nop())
	list := newTestList("")
	_, err := svc.SaveList(context.Background(), list)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestLocalUpdateListMissingTarget(t *testing.T) {
	svc := NewLocalService(memory.New(), logger.Nop())
	err := svc.UpdateList(context.Background(), newTestList("ghost"))
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestLocalDeleteListAbsentIsNoop(t *testing.T) {
	svc := NewLocalService(memory.New(), logger.Nop())
	require.NoError(t, svc.DeleteList(context.Background(), models.NewListID()))
}

func TestLocalSaveItemUpsert(t *testing.T) {
	ctx := context.Background()
	svc := NewLocalService(memory.New(), logger.Nop())

	item := newTestItem(models.NewListID(), "buy milk")
	outcome, err := svc.SaveItem(ctx, item)
	require.NoError(t, err)
	require.Equal(t, OutcomeInserted, outcome)

	done := item.Clone()
	done.Done = true
	done.UpdatedAt = testBase.Add(time.Minute)
	outcome, err = svc.SaveItem(ctx, done)
	require.NoError(t, err)
	require.Equal(t, OutcomeUpdated, outcome)

	items, err := svc.GetItemsByList(ctx, item.ListID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.True(t, items[0].Done)
}

func TestLocalSaveItemsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	flaky := &faultyStore{Store: mem, failAfter: 2}
	svc := NewLocalService(flaky, logger.Nop())

	listID := models.NewListID()
	batch := []*models.Item{
		newTestItem(listID, "one"),
		newTestItem(listID, "two"),
		newTestItem(listID, "three"),
	}

	err := svc.SaveItems(ctx, batch)
	require.Error(t, err)
	require.Contains(t, err.Error(), "batch save failed at item 3 of 3")

	// The two successful writes must have been rolled back.
	items, err := mem.GetAllItems(ctx)
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestLocalSaveItemsValidatesBeforeWriting(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	svc := NewLocalService(mem, logger.Nop())

	listID := models.NewListID()
	batch := []*models.Item{
		newTestItem(listID, "good"),
		newTestItem(listID, ""), // invalid, detected before any write
	}

	err := svc.SaveItems(ctx, batch)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	items, err := mem.GetAllItems(ctx)
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestLocalSaveItemsRejectsIntraBatchDuplicates(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	svc := NewLocalService(mem, logger.Nop())

	item := newTestItem(models.NewListID(), "dup")
	err := svc.SaveItems(ctx, []*models.Item{item, item.Clone()})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, err.Error(), "duplicated in batch")

	items, err := mem.GetAllItems(ctx)
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestLocalSaveItemsSucceeds(t *testing.T) {
	ctx := context.Background()
	svc := NewLocalService(memory.New(), logger.Nop())

	listID := models.NewListID()
	batch := []*models.Item{
		newTestItem(listID, "one"),
		newTestItem(listID, "two"),
	}
	require.NoError(t, svc.SaveItems(ctx, batch))

	items, err := svc.GetItemsByList(ctx, listID)
	require.NoError(t, err)
	require.Len(t, items, 2)
}
