package persist

import "github.com/listkeeper/listkeeper/pkg/models"

// ValidateList performs the structural checks every list write must pass.
// Content rules (name length, color formats) belong to the callers; this
// layer only guards the invariants persistence depends on.
func ValidateList(list *models.List) error {
	if list == nil {
		return &ValidationError{Entity: "list", Field: "list", Reason: "is nil"}
	}
	if list.ID.IsZero() {
		return &ValidationError{Entity: "list", Field: "id", Reason: "is empty"}
	}
	if list.Name == "" {
		return &ValidationError{Entity: "list", Field: "name", Reason: "is empty"}
	}
	if list.CreatedAt.IsZero() {
		return &ValidationError{Entity: "list", Field: "created_at", Reason: "is zero"}
	}
	if list.UpdatedAt.Before(list.CreatedAt) {
		return &ValidationError{Entity: "list", Field: "updated_at", Reason: "precedes created_at"}
	}
	return nil
}

// ValidateItem performs the structural checks every item write must pass.
func ValidateItem(item *models.Item) error {
	if item == nil {
		return &ValidationError{Entity: "item", Field: "item", Reason: "is nil"}
	}
	if item.ID.IsZero() {
		return &ValidationError{Entity: "item", Field: "id", Reason: "is empty"}
	}
	if item.ListID.IsZero() {
		return &ValidationError{Entity: "item", Field: "list_id", Reason: "is empty"}
	}
	if item.Title == "" {
		return &ValidationError{Entity: "item", Field: "title", Reason: "is empty"}
	}
	if item.CreatedAt.IsZero() {
		return &ValidationError{Entity: "item", Field: "created_at", Reason: "is zero"}
	}
	if item.UpdatedAt.Before(item.CreatedAt) {
		return &ValidationError{Entity: "item", Field: "updated_at", Reason: "precedes created_at"}
	}
	return nil
}
