// Package memory implements the store port on plain maps. It backs tests and
// the ephemeral local-only mode; SetErr injects a standing failure so outage
// behavior can be exercised without a network.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/listkeeper/listkeeper/pkg/models"
	"github.com/listkeeper/listkeeper/pkg/store"
)

// Store is an in-memory implementation of store.Store. It is safe for
// concurrent use and returns copies of stored entities so callers cannot
// mutate state behind its back.
type Store struct {
	mu    sync.RWMutex
	lists map[models.ListID]*models.List
	items map[models.ItemID]*models.Item
	err   error
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		lists: make(map[models.ListID]*models.List),
		items: make(map[models.ItemID]*models.Item),
	}
}

// SetErr forces every subsequent operation to fail with err until called
// again with nil. Passing store.ErrUnavailable simulates a cloud outage.
func (s *Store) SetErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *Store) GetList(ctx context.Context, id models.ListID) (*models.List, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	list, ok := s.lists[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return list.Clone(), nil
}

func (s *Store) GetAllLists(ctx context.Context) ([]*models.List, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make([]*models.List, 0, len(s.lists))
	for _, list := range s.lists {
		out = append(out, list.Clone())
	}
	return out, nil
}

func (s *Store) AddList(ctx context.Context, list *models.List) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if _, ok := s.lists[list.ID]; ok {
		return store.ErrAlreadyExists
	}
	s.lists[list.ID] = list.Clone()
	return nil
}

func (s *Store) UpdateList(ctx context.Context, list *models.List) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if _, ok := s.lists[list.ID]; !ok {
		return store.ErrNotFound
	}
	s.lists[list.ID] = list.Clone()
	return nil
}

func (s *Store) DeleteList(ctx context.Context, id models.ListID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	delete(s.lists, id)
	return nil
}

func (s *Store) ListExists(ctx context.Context, id models.ListID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return false, s.err
	}
	_, ok := s.lists[id]
	return ok, nil
}

func (s *Store) GetItem(ctx context.Context, id models.ItemID) (*models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	item, ok := s.items[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return item.Clone(), nil
}

func (s *Store) GetAllItems(ctx context.Context) ([]*models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make([]*models.Item, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item.Clone())
	}
	return out, nil
}

func (s *Store) GetItemsByList(ctx context.Context, listID models.ListID) ([]*models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	var out []*models.Item
	for _, item := range s.items {
		if item.ListID == listID {
			out = append(out, item.Clone())
		}
	}
	return out, nil
}

func (s *Store) AddItem(ctx context.Context, item *models.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if _, ok := s.items[item.ID]; ok {
		return store.ErrAlreadyExists
	}
	s.items[item.ID] = item.Clone()
	return nil
}

func (s *Store) UpdateItem(ctx context.Context, item *models.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if _, ok := s.items[item.ID]; !ok {
		return store.ErrNotFound
	}
	s.items[item.ID] = item.Clone()
	return nil
}

func (s *Store) DeleteItem(ctx context.Context, id models.ItemID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	delete(s.items, id)
	return nil
}

func (s *Store) ItemExists(ctx context.Context, id models.ItemID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return false, s.err
	}
	_, ok := s.items[id]
	return ok, nil
}

func (s *Store) ListModifiedLists(ctx context.Context, since, until time.Time) ([]models.ListID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	var out []models.ListID
	for id, list := range s.lists {
		if list.UpdatedAt.After(since) && !list.UpdatedAt.After(until) {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *Store) ListModifiedItems(ctx context.Context, since, until time.Time) ([]models.ItemID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	var out []models.ItemID
	for id, item := range s.items {
		if item.UpdatedAt.After(since) && !item.UpdatedAt.After(until) {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.lists = make(map[models.ListID]*models.List)
	s.items = make(map[models.ItemID]*models.Item)
	return nil
}

func (s *Store) Close() error {
	return nil
}
