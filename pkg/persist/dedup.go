package persist

import "github.com/listkeeper/listkeeper/pkg/models"

// The merge rule is whole-side last-writer-wins: when the incoming record
// carries a strictly later UpdatedAt, every mutable field is taken from it;
// otherwise every mutable field is kept from the existing record. There is
// no field-level causality, so concurrent edits to different fields lose the
// older side entirely. Immutable fields (ID, CreatedAt, and an item's
// ListID) always come from the existing record.

// MergeLists resolves two records with the same list ID.
func MergeLists(existing, incoming *models.List) *models.List {
	merged := existing.Clone()
	if incoming.UpdatedAt.After(existing.UpdatedAt) {
		merged.Name = incoming.Name
		merged.Category = incoming.Category
		merged.Color = incoming.Color
		merged.Icon = incoming.Icon
		merged.Settings = incoming.Settings.Clone()
		merged.UpdatedAt = incoming.UpdatedAt
	}
	return merged
}

// MergeItems resolves two records with the same item ID.
func MergeItems(existing, incoming *models.Item) *models.Item {
	merged := existing.Clone()
	if incoming.UpdatedAt.After(existing.UpdatedAt) {
		merged.Title = incoming.Title
		merged.Done = incoming.Done
		merged.Priority = incoming.Priority
		if incoming.DueDate != nil {
			due := *incoming.DueDate
			merged.DueDate = &due
		} else {
			merged.DueDate = nil
		}
		merged.Tags = append(models.StringList(nil), incoming.Tags...)
		merged.UpdatedAt = incoming.UpdatedAt
	}
	return merged
}

// DetectDuplicateLists reports IDs appearing more than once in the batch.
// This is intra-batch detection, distinct from cross-store reconciliation.
func DetectDuplicateLists(lists []*models.List) []models.ListID {
	seen := make(map[models.ListID]bool, len(lists))
	var dups []models.ListID
	for _, list := range lists {
		if seen[list.ID] {
			dups = append(dups, list.ID)
			continue
		}
		seen[list.ID] = true
	}
	return dups
}

// DetectDuplicateItems reports IDs appearing more than once in the batch.
func DetectDuplicateItems(items []*models.Item) []models.ItemID {
	seen := make(map[models.ItemID]bool, len(items))
	var dups []models.ItemID
	for _, item := range items {
		if seen[item.ID] {
			dups = append(dups, item.ID)
			continue
		}
		seen[item.ID] = true
	}
	return dups
}
