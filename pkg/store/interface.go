package store

import (
	"context"
	"errors"
	"time"

	"github.com/listkeeper/listkeeper/pkg/models"
)

// ErrNotFound is returned when an entity does not exist in the store.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists is returned by Add* when the ID is already present.
var ErrAlreadyExists = errors.New("record already exists")

// ErrUnavailable is returned when the backing engine cannot be reached.
// Cloud adapters wrap transient network failures in it so callers can
// distinguish an outage from a data error.
var ErrUnavailable = errors.New("store unavailable")

// Store is the port both persistence backends implement: the on-device store
// and the network-backed cloud store. Every call may suspend on disk or
// network I/O, so each takes a context.
//
// Contract:
//   - Add* fails with ErrAlreadyExists when the ID is already present.
//   - Update* fails with ErrNotFound when the ID is absent.
//   - Delete* is a no-op for absent IDs.
//   - Get* returns ErrNotFound for absent IDs; GetAll*/GetItemsByList return
//     empty slices, never nil errors for emptiness.
//
// Implementations must be safe for concurrent use.
type Store interface {
	GetList(ctx context.Context, id models.ListID) (*models.List, error)
	GetAllLists(ctx context.Context) ([]*models.List, error)
	AddList(ctx context.Context, list *models.List) error
	UpdateList(ctx context.Context, list *models.List) error
	DeleteList(ctx context.Context, id models.ListID) error
	ListExists(ctx context.Context, id models.ListID) (bool, error)

	GetItem(ctx context.Context, id models.ItemID) (*models.Item, error)
	GetAllItems(ctx context.Context) ([]*models.Item, error)
	GetItemsByList(ctx context.Context, listID models.ListID) ([]*models.Item, error)
	AddItem(ctx context.Context, item *models.Item) error
	UpdateItem(ctx context.Context, item *models.Item) error
	DeleteItem(ctx context.Context, id models.ItemID) error
	ItemExists(ctx context.Context, id models.ItemID) (bool, error)

	// ListModifiedLists and ListModifiedItems return the IDs of records whose
	// UpdatedAt falls in (since, until]. They back incremental catch-up sync.
	ListModifiedLists(ctx context.Context, since, until time.Time) ([]models.ListID, error)
	ListModifiedItems(ctx context.Context, since, until time.Time) ([]models.ItemID, error)

	// Ping probes availability. Bulk sync fails fast when the cloud store
	// does not answer.
	Ping(ctx context.Context) error

	// Clear removes every record. Used by clear-all-data and by tests.
	Clear(ctx context.Context) error

	Close() error
}
