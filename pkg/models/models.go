package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// ListCategory tags a list with its product-level purpose.
type ListCategory string

const (
	CategoryHabits   ListCategory = "habits"
	CategoryTasks    ListCategory = "tasks"
	CategoryShopping ListCategory = "shopping"
	CategoryCustom   ListCategory = "custom"
)

// JSONMap is a flexible key-value map for per-list settings. It is stored as
// JSONB in Postgres and as serialized JSON text in SQLite, so the same model
// works unchanged against either backend.
type JSONMap map[string]any

// Value implements the driver.Valuer interface for database storage
func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface for database retrieval
func (j *JSONMap) Scan(value any) error {
	if value == nil {
		*j = make(map[string]any)
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		bytes = []byte(value.(string))
	}
	return json.Unmarshal(bytes, j)
}

// Clone returns a shallow copy of the map (values are not deep-copied).
func (j JSONMap) Clone() JSONMap {
	if j == nil {
		return nil
	}
	out := make(JSONMap, len(j))
	for k, v := range j {
		out[k] = v
	}
	return out
}

// StringList stores a slice of tags as serialized JSON so it round-trips
// through both SQLite and Postgres without a dedicated join table.
type StringList []string

// Value implements the driver.Valuer interface for database storage
func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

// Scan implements the sql.Scanner interface for database retrieval
func (s *StringList) Scan(value any) error {
	if value == nil {
		*s = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		bytes = []byte(value.(string))
	}
	return json.Unmarshal(bytes, s)
}

// List is a named collection of items. ID and CreatedAt are immutable once
// assigned; UpdatedAt must be non-decreasing across writes to the same ID
// because the merge rule depends on it.
type List struct {
	ID        ListID       `gorm:"type:uuid;primary_key" json:"id"`
	Name      string       `gorm:"not null" json:"name"`
	Category  ListCategory `gorm:"not null" json:"category"`
	Color     string       `json:"color,omitempty"`
	Icon      string       `json:"icon,omitempty"`
	Settings  JSONMap      `gorm:"type:jsonb" json:"settings,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Clone returns a copy of the list safe to hand across store boundaries.
func (l *List) Clone() *List {
	if l == nil {
		return nil
	}
	out := *l
	out.Settings = l.Settings.Clone()
	return &out
}

// Touch advances UpdatedAt, never moving it backwards.
func (l *List) Touch(now time.Time) {
	if now.After(l.UpdatedAt) {
		l.UpdatedAt = now
	}
}

// Item is a unit of work belonging to exactly one list. ID, CreatedAt and
// ListID are immutable; an Item whose ListID resolves to no known list is an
// orphan, reported rather than silently dropped.
type Item struct {
	ID        ItemID     `gorm:"type:uuid;primary_key" json:"id"`
	ListID    ListID     `gorm:"type:uuid;not null;index" json:"list_id"`
	Title     string     `gorm:"not null" json:"title"`
	Done      bool       `json:"done"`
	Priority  int        `json:"priority"`
	DueDate   *time.Time `json:"due_date,omitempty"`
	Tags      StringList `gorm:"type:jsonb" json:"tags,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Clone returns a copy of the item safe to hand across store boundaries.
func (i *Item) Clone() *Item {
	if i == nil {
		return nil
	}
	out := *i
	if i.DueDate != nil {
		due := *i.DueDate
		out.DueDate = &due
	}
	if i.Tags != nil {
		out.Tags = append(StringList(nil), i.Tags...)
	}
	return &out
}

// Touch advances UpdatedAt, never moving it backwards.
func (i *Item) Touch(now time.Time) {
	if now.After(i.UpdatedAt) {
		i.UpdatedAt = now
	}
}
