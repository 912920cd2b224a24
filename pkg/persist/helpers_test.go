package persist

import (
	"context"
	"time"

	"github.com/listkeeper/listkeeper/pkg/logger"
	"github.com/listkeeper/listkeeper/pkg/models"
	"github.com/listkeeper/listkeeper/pkg/store"
	"github.com/listkeeper/listkeeper/pkg/store/memory"
)

var testBase = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestList(name string) *models.List {
	return &models.List{
		ID:        models.NewListID(),
		Name:      name,
		Category:  models.CategoryTasks,
		CreatedAt: testBase,
		UpdatedAt: testBase,
	}
}

func newTestItem(listID models.ListID, title string) *models.Item {
	return &models.Item{
		ID:        models.NewItemID(),
		ListID:    listID,
		Title:     title,
		CreatedAt: testBase,
		UpdatedAt: testBase,
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.SyncRetryDelay = time.Millisecond
	return cfg
}

// faultyStore wraps a store and fails AddItem once a given number of items
// has been written, to exercise mid-batch failure paths.
type faultyStore struct {
	store.Store
	failAfter int
	added     int
}

func (f *faultyStore) AddItem(ctx context.Context, item *models.Item) error {
	if f.added >= f.failAfter {
		return store.ErrUnavailable
	}
	if err := f.Store.AddItem(ctx, item); err != nil {
		return err
	}
	f.added++
	return nil
}

func newCoordinatorForTest(authenticated bool) (*Coordinator, *memory.Store, *memory.Store, error) {
	local := memory.New()
	cloud := memory.New()
	cfg := testConfig()
	coord := NewCoordinator(local, cloud, cfg, logger.Nop())
	err := coord.Initialize(context.Background(), authenticated)
	return coord, local, cloud, err
}
