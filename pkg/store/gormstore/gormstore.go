// Package gormstore implements the store port on GORM. One implementation
// serves both backends: OpenSQLite for the on-device store and OpenPostgres
// for the network-backed cloud store. Engine-specific errors are translated
// into the port's sentinels so services never see GORM types.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/listkeeper/listkeeper/pkg/models"
	"github.com/listkeeper/listkeeper/pkg/store"
)

// Store is a GORM-backed implementation of store.Store.
type Store struct {
	db *gorm.DB
}

// OpenSQLite opens (creating if necessary) a SQLite database at path and
// migrates the schema. This is the on-device backend.
func OpenSQLite(path string) (*Store, error) {
	return open(sqlite.Open(path))
}

// OpenPostgres connects to Postgres with the given DSN and migrates the
// schema. This is the cloud backend.
func OpenPostgres(dsn string) (*Store, error) {
	return open(postgres.Open(dsn))
}

func open(dialector gorm.Dialector) (*Store, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	if err := db.AutoMigrate(&models.List{}, &models.Item{}); err != nil {
		return nil, fmt.Errorf("schema migration failed: %w", err)
	}
	return &Store{db: db}, nil
}

// translate maps GORM errors onto the port sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return store.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return store.ErrAlreadyExists
	default:
		return err
	}
}

func (s *Store) GetList(ctx context.Context, id models.ListID) (*models.List, error) {
	var list models.List
	err := s.db.WithContext(ctx).First(&list, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &list, nil
}

func (s *Store) GetAllLists(ctx context.Context) ([]*models.List, error) {
	var lists []*models.List
	if err := s.db.WithContext(ctx).Find(&lists).Error; err != nil {
		return nil, translate(err)
	}
	return lists, nil
}

func (s *Store) AddList(ctx context.Context, list *models.List) error {
	return translate(s.db.WithContext(ctx).Create(list).Error)
}

func (s *Store) UpdateList(ctx context.Context, list *models.List) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.List{}).Where("id = ?", list.ID).Count(&count).Error; err != nil {
		return translate(err)
	}
	if count == 0 {
		return store.ErrNotFound
	}
	return translate(s.db.WithContext(ctx).Save(list).Error)
}

func (s *Store) DeleteList(ctx context.Context, id models.ListID) error {
	return translate(s.db.WithContext(ctx).Delete(&models.List{}, "id = ?", id).Error)
}

func (s *Store) ListExists(ctx context.Context, id models.ListID) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.List{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, translate(err)
	}
	return count > 0, nil
}

func (s *Store) GetItem(ctx context.Context, id models.ItemID) (*models.Item, error) {
	var item models.Item
	err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &item, nil
}

func (s *Store) GetAllItems(ctx context.Context) ([]*models.Item, error) {
	var items []*models.Item
	if err := s.db.WithContext(ctx).Find(&items).Error; err != nil {
		return nil, translate(err)
	}
	return items, nil
}

func (s *Store) GetItemsByList(ctx context.Context, listID models.ListID) ([]*models.Item, error) {
	var items []*models.Item
	if err := s.db.WithContext(ctx).Where("list_id = ?", listID).Find(&items).Error; err != nil {
		return nil, translate(err)
	}
	return items, nil
}

func (s *Store) AddItem(ctx context.Context, item *models.Item) error {
	return translate(s.db.WithContext(ctx).Create(item).Error)
}

func (s *Store) UpdateItem(ctx context.Context, item *models.Item) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Item{}).Where("id = ?", item.ID).Count(&count).Error; err != nil {
		return translate(err)
	}
	if count == 0 {
		return store.ErrNotFound
	}
	return translate(s.db.WithContext(ctx).Save(item).Error)
}

func (s *Store) DeleteItem(ctx context.Context, id models.ItemID) error {
	return translate(s.db.WithContext(ctx).Delete(&models.Item{}, "id = ?", id).Error)
}

func (s *Store) ItemExists(ctx context.Context, id models.ItemID) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Item{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, translate(err)
	}
	return count > 0, nil
}

func (s *Store) ListModifiedLists(ctx context.Context, since, until time.Time) ([]models.ListID, error) {
	var ids []models.ListID
	err := s.db.WithContext(ctx).Model(&models.List{}).
		Where("updated_at > ? AND updated_at <= ?", since, until).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, translate(err)
	}
	return ids, nil
}

func (s *Store) ListModifiedItems(ctx context.Context, since, until time.Time) ([]models.ItemID, error) {
	var ids []models.ItemID
	err := s.db.WithContext(ctx).Model(&models.Item{}).
		Where("updated_at > ? AND updated_at <= ?", since, until).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, translate(err)
	}
	return ids, nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	session := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true})
	if err := session.Delete(&models.Item{}).Error; err != nil {
		return translate(err)
	}
	return translate(session.Delete(&models.List{}).Error)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
