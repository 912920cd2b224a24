package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/listkeeper/listkeeper/pkg/logger"
	"github.com/listkeeper/listkeeper/pkg/models"
	"github.com/listkeeper/listkeeper/pkg/store"
)

// Outcome tags the result of an upsert so callers can tell an insert from a
// dedup-update without exception dispatch.
type Outcome int

const (
	OutcomeInserted Outcome = iota
	OutcomeUpdated
)

func (o Outcome) String() string {
	if o == OutcomeInserted {
		return "inserted"
	}
	return "updated"
}

// LocalService is CRUD restricted to the on-device store. Every write goes
// through validation and the deduplication guard; batch saves are
// all-or-nothing.
type LocalService struct {
	store store.Store
	log   logger.Logger
}

// NewLocalService creates a service over the on-device store.
func NewLocalService(st store.Store, log logger.Logger) *LocalService {
	return &LocalService{store: st, log: log}
}

func (s *LocalService) GetAllLists(ctx context.Context) ([]*models.List, error) {
	return s.store.GetAllLists(ctx)
}

func (s *LocalService) GetItemsByList(ctx context.Context, listID models.ListID) ([]*models.Item, error) {
	return s.store.GetItemsByList(ctx, listID)
}

// SaveList validates and upserts. An existing record with the same ID is
// merged under the last-writer-wins rule instead of duplicated.
func (s *LocalService) SaveList(ctx context.Context, list *models.List) (Outcome, error) {
	if err := ValidateList(list); err != nil {
		return 0, err
	}
	return upsertListMerging(ctx, s.store, list)
}

// UpdateList validates, merges against the stored record, and writes the
// winner. A missing target surfaces store.ErrNotFound.
func (s *LocalService) UpdateList(ctx context.Context, list *models.List) error {
	if err := ValidateList(list); err != nil {
		return err
	}
	existing, err := s.store.GetList(ctx, list.ID)
	if err != nil {
		return err
	}
	return s.store.UpdateList(ctx, MergeLists(existing, list))
}

func (s *LocalService) DeleteList(ctx context.Context, id models.ListID) error {
	return s.store.DeleteList(ctx, id)
}

func (s *LocalService) SaveItem(ctx context.Context, item *models.Item) (Outcome, error) {
	if err := ValidateItem(item); err != nil {
		return 0, err
	}
	return upsertItemMerging(ctx, s.store, item)
}

func (s *LocalService) UpdateItem(ctx context.Context, item *models.Item) error {
	if err := ValidateItem(item); err != nil {
		return err
	}
	existing, err := s.store.GetItem(ctx, item.ID)
	if err != nil {
		return err
	}
	return s.store.UpdateItem(ctx, MergeItems(existing, item))
}

func (s *LocalService) DeleteItem(ctx context.Context, id models.ItemID) error {
	return s.store.DeleteItem(ctx, id)
}

// SaveItems writes a batch with all-or-nothing semantics: every item is
// validated up front, writes happen sequentially, and on any failure every
// item written in this batch is deleted before the error is re-raised.
func (s *LocalService) SaveItems(ctx context.Context, items []*models.Item) error {
	for _, item := range items {
		if err := ValidateItem(item); err != nil {
			return err
		}
	}
	if dups := DetectDuplicateItems(items); len(dups) > 0 {
		return &ValidationError{Entity: "item", Field: "id", Reason: fmt.Sprintf("duplicated in batch (%s)", dups[0])}
	}

	written := make([]models.ItemID, 0, len(items))
	for i, item := range items {
		if _, err := upsertItemMerging(ctx, s.store, item); err != nil {
			s.rollback(ctx, written)
			return fmt.Errorf("batch save failed at item %d of %d: %w", i+1, len(items), err)
		}
		written = append(written, item.ID)
	}
	return nil
}

// rollback deletes the items written so far in a failed batch. Rollback
// failures are logged at error level; the original failure is what the
// caller sees.
func (s *LocalService) rollback(ctx context.Context, written []models.ItemID) {
	for _, id := range written {
		if err := s.store.DeleteItem(ctx, id); err != nil {
			s.log.Error("batch rollback: failed to delete item", logger.Fields{
				"item_id": id.String(),
				"error":   err.Error(),
			})
		}
	}
}

// upsertListMerging adds the list, falling back to a merge-update when the
// ID is already present. This is the deduplication-on-write rule.
func upsertListMerging(ctx context.Context, st store.Store, list *models.List) (Outcome, error) {
	err := st.AddList(ctx, list)
	if err == nil {
		return OutcomeInserted, nil
	}
	if !errors.Is(err, store.ErrAlreadyExists) {
		return 0, err
	}
	existing, err := st.GetList(ctx, list.ID)
	if err != nil {
		return 0, err
	}
	if err := st.UpdateList(ctx, MergeLists(existing, list)); err != nil {
		return 0, err
	}
	return OutcomeUpdated, nil
}

func upsertItemMerging(ctx context.Context, st store.Store, item *models.Item) (Outcome, error) {
	err := st.AddItem(ctx, item)
	if err == nil {
		return OutcomeInserted, nil
	}
	if !errors.Is(err, store.ErrAlreadyExists) {
		return 0, err
	}
	existing, err := st.GetItem(ctx, item.ID)
	if err != nil {
		return 0, err
	}
	if err := st.UpdateItem(ctx, MergeItems(existing, item)); err != nil {
		return 0, err
	}
	return OutcomeUpdated, nil
}
