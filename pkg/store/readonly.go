package store

import (
	"context"
	"errors"

	"github.com/listkeeper/listkeeper/pkg/models"
)

// ErrReadOnly is returned for writes attempted while the wrapped store is
// in its read-only window.
var ErrReadOnly = errors.New("store is read-only during migration")

// ReadOnly wraps a Store and rejects write operations while the isReadOnly
// callback reports true. It is used during migration switchover: writes are
// blocked for the final catch-up sync, then resume once the transition
// completes, without recreating the store instance.
type ReadOnly struct {
	Store
	isReadOnly func() bool
}

// NewReadOnly creates a read-only wrapper for a store.
func NewReadOnly(store Store, isReadOnly func() bool) *ReadOnly {
	return &ReadOnly{
		Store:      store,
		isReadOnly: isReadOnly,
	}
}

// Unwrap returns the underlying store.
func (r *ReadOnly) Unwrap() Store {
	return r.Store
}

func (r *ReadOnly) checkReadOnly() error {
	if r.isReadOnly() {
		return ErrReadOnly
	}
	return nil
}

func (r *ReadOnly) AddList(ctx context.Context, list *models.List) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.AddList(ctx, list)
}

func (r *ReadOnly) UpdateList(ctx context.Context, list *models.List) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.UpdateList(ctx, list)
}

func (r *ReadOnly) DeleteList(ctx context.Context, id models.ListID) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.DeleteList(ctx, id)
}

func (r *ReadOnly) AddItem(ctx context.Context, item *models.Item) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.AddItem(ctx, item)
}

func (r *ReadOnly) UpdateItem(ctx context.Context, item *models.Item) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.UpdateItem(ctx, item)
}

func (r *ReadOnly) DeleteItem(ctx context.Context, id models.ItemID) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.DeleteItem(ctx, id)
}

func (r *ReadOnly) Clear(ctx context.Context) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.Clear(ctx)
}
