package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/listkeeper/listkeeper/pkg/models"
	"github.com/listkeeper/listkeeper/pkg/store"
	"github.com/listkeeper/listkeeper/pkg/store/memory"
)

func TestReadOnlyBlocksWritesWhileActive(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()

	list := &models.List{
		ID:        models.NewListID(),
		Name:      "before lock",
		Category:  models.CategoryTasks,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, inner.AddList(ctx, list))

	locked := true
	ro := store.NewReadOnly(inner, func() bool { return locked })

	other := &models.List{
		ID:        models.NewListID(),
		Name:      "rejected",
		Category:  models.CategoryTasks,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.ErrorIs(t, ro.AddList(ctx, other), store.ErrReadOnly)
	require.ErrorIs(t, ro.UpdateList(ctx, list), store.ErrReadOnly)
	require.ErrorIs(t, ro.DeleteList(ctx, list.ID), store.ErrReadOnly)
	require.ErrorIs(t, ro.Clear(ctx), store.ErrReadOnly)

	item := &models.Item{
		ID:        models.NewItemID(),
		ListID:    list.ID,
		Title:     "rejected",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.ErrorIs(t, ro.AddItem(ctx, item), store.ErrReadOnly)
	require.ErrorIs(t, ro.UpdateItem(ctx, item), store.ErrReadOnly)
	require.ErrorIs(t, ro.DeleteItem(ctx, item.ID), store.ErrReadOnly)

	// Reads pass through untouched.
	got, err := ro.GetList(ctx, list.ID)
	require.NoError(t, err)
	require.Equal(t, "before lock", got.Name)

	locked = false
	require.NoError(t, ro.AddItem(ctx, item))
	require.NoError(t, ro.AddList(ctx, other))
	require.Same(t, store.Store(inner), ro.Unwrap())
}
