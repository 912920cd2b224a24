package persist

import (
	"context"
	"fmt"

	"github.com/listkeeper/listkeeper/pkg/logger"
	"github.com/listkeeper/listkeeper/pkg/models"
	"github.com/listkeeper/listkeeper/pkg/store"
)

// CloudService is CRUD against the cloud store with graceful read
// degradation: any cloud read failure falls back to the on-device store and
// is logged at warn. Writes never degrade silently: a cloud write failure
// is surfaced so the caller can decide whether to queue a retry.
type CloudService struct {
	cloud store.Store
	local store.Store
	log   logger.Logger
}

// NewCloudService creates a service over the cloud store with the on-device
// store as read fallback.
func NewCloudService(cloud, local store.Store, log logger.Logger) *CloudService {
	return &CloudService{cloud: cloud, local: local, log: log}
}

func (s *CloudService) GetAllLists(ctx context.Context) ([]*models.List, error) {
	lists, err := s.cloud.GetAllLists(ctx)
	if err != nil {
		s.log.Warn("cloud read failed, falling back to local store", logger.Fields{
			"op":    "get_all_lists",
			"error": err.Error(),
		})
		return s.local.GetAllLists(ctx)
	}
	return lists, nil
}

func (s *CloudService) GetItemsByList(ctx context.Context, listID models.ListID) ([]*models.Item, error) {
	items, err := s.cloud.GetItemsByList(ctx, listID)
	if err != nil {
		s.log.Warn("cloud read failed, falling back to local store", logger.Fields{
			"op":      "get_items_by_list",
			"list_id": listID.String(),
			"error":   err.Error(),
		})
		return s.local.GetItemsByList(ctx, listID)
	}
	return items, nil
}

func (s *CloudService) SaveList(ctx context.Context, list *models.List) (Outcome, error) {
	if err := ValidateList(list); err != nil {
		return 0, err
	}
	return upsertListMerging(ctx, s.cloud, list)
}

func (s *CloudService) UpdateList(ctx context.Context, list *models.List) error {
	if err := ValidateList(list); err != nil {
		return err
	}
	existing, err := s.cloud.GetList(ctx, list.ID)
	if err != nil {
		return err
	}
	return s.cloud.UpdateList(ctx, MergeLists(existing, list))
}

func (s *CloudService) DeleteList(ctx context.Context, id models.ListID) error {
	return s.cloud.DeleteList(ctx, id)
}

func (s *CloudService) SaveItem(ctx context.Context, item *models.Item) (Outcome, error) {
	if err := ValidateItem(item); err != nil {
		return 0, err
	}
	return upsertItemMerging(ctx, s.cloud, item)
}

func (s *CloudService) UpdateItem(ctx context.Context, item *models.Item) error {
	if err := ValidateItem(item); err != nil {
		return err
	}
	existing, err := s.cloud.GetItem(ctx, item.ID)
	if err != nil {
		return err
	}
	return s.cloud.UpdateItem(ctx, MergeItems(existing, item))
}

func (s *CloudService) DeleteItem(ctx context.Context, id models.ItemID) error {
	return s.cloud.DeleteItem(ctx, id)
}

// SaveItems applies the same all-or-nothing batch contract as the local
// service, against the cloud store.
func (s *CloudService) SaveItems(ctx context.Context, items []*models.Item) error {
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
		if _, err := upsertItemMerging(ctx, s.cloud, item); err != nil {
			for _, id := range written {
				if derr := s.cloud.DeleteItem(ctx, id); derr != nil {
					s.log.Error("batch rollback: failed to delete item", logger.Fields{
						"item_id": id.String(),
						"error":   derr.Error(),
					})
				}
			}
			return fmt.Errorf("batch save failed at item %d of %d: %w", i+1, len(items), err)
		}
		written = append(written, item.ID)
	}
	return nil
}

// Presence reports where a record was found during verification.
type Presence struct {
	Local bool `json:"local"`
	Cloud bool `json:"cloud"`
}

// VerifyListPersistence probes both stores independently. Absence from
// exactly one store is the expected state mid-sync and only logged; absence
// from both is an error. When neither store answers the probe the record
// may well exist, so the call fails with ErrUnavailable instead of a
// not-found verdict.
func (s *CloudService) VerifyListPersistence(ctx context.Context, id models.ListID) (Presence, error) {
	p := Presence{}
	var localOK, cloudOK bool
	p.Local, localOK = s.probeExists("local", id.String(), func() (bool, error) { return s.local.ListExists(ctx, id) })
	p.Cloud, cloudOK = s.probeExists("cloud", id.String(), func() (bool, error) { return s.cloud.ListExists(ctx, id) })
	if !localOK && !cloudOK {
		return p, fmt.Errorf("list %s presence unverifiable, both stores failing: %w", id, store.ErrUnavailable)
	}
	if !p.Local && !p.Cloud {
		return p, &NotFoundAnywhereError{Entity: "list", ID: id.String()}
	}
	if p.Local != p.Cloud {
		s.log.Info("list present in one store only", logger.Fields{
			"list_id": id.String(),
			"local":   p.Local,
			"cloud":   p.Cloud,
		})
	}
	return p, nil
}

// VerifyItemPersistence is the item counterpart of VerifyListPersistence.
func (s *CloudService) VerifyItemPersistence(ctx context.Context, id models.ItemID) (Presence, error) {
	p := Presence{}
	var localOK, cloudOK bool
	p.Local, localOK = s.probeExists("local", id.String(), func() (bool, error) { return s.local.ItemExists(ctx, id) })
	p.Cloud, cloudOK = s.probeExists("cloud", id.String(), func() (bool, error) { return s.cloud.ItemExists(ctx, id) })
	if !localOK && !cloudOK {
		return p, fmt.Errorf("item %s presence unverifiable, both stores failing: %w", id, store.ErrUnavailable)
	}
	if !p.Local && !p.Cloud {
		return p, &NotFoundAnywhereError{Entity: "item", ID: id.String()}
	}
	if p.Local != p.Cloud {
		s.log.Info("item present in one store only", logger.Fields{
			"item_id": id.String(),
			"local":   p.Local,
			"cloud":   p.Cloud,
		})
	}
	return p, nil
}

// probeExists runs one existence probe. The second return distinguishes a
// probe that answered from one that failed; a failed probe counts as
// absence so verification stays usable during a one-sided outage.
func (s *CloudService) probeExists(side, id string, probe func() (bool, error)) (bool, bool) {
	ok, err := probe()
	if err != nil {
		s.log.Warn("existence probe failed", logger.Fields{
			"store": side,
			"id":    id,
			"error": err.Error(),
		})
		return false, false
	}
	return ok, true
}
