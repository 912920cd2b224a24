package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// ListID is a typed ID for lists
type ListID struct {
	uuid uuid.UUID
}

func NewListID() ListID {
	return ListID{uuid: uuid.New()}
}

func NewListIDFromUUID(id uuid.UUID) ListID {
	return ListID{uuid: id}
}

func ParseListID(s string) (ListID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return ListID{}, fmt.Errorf("invalid list ID: %w", err)
	}
	return ListID{uuid: id}, nil
}

func (l ListID) UUID() uuid.UUID { return l.uuid }
func (l ListID) String() string  { return l.uuid.String() }
func (l ListID) IsZero() bool    { return l.uuid == uuid.Nil }

func (l ListID) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.uuid.String())
}

func (l *ListID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return err
	}
	l.uuid = id
	return nil
}

func (l ListID) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(l.uuid.String())
}

func (l *ListID) UnmarshalCBOR(data []byte) error {
	return unmarshalCBORID(data, &l.uuid)
}

func (l ListID) Value() (driver.Value, error) {
	if l.IsZero() {
		return nil, nil
	}
	return l.uuid.String(), nil
}

func (l *ListID) Scan(value any) error {
	return scanUUID(value, &l.uuid)
}

func (ListID) GormDataType() string { return "uuid" }

// ItemID is a typed ID for items
type ItemID struct {
	uuid uuid.UUID
}

func NewItemID() ItemID {
	return ItemID{uuid: uuid.New()}
}

func NewItemIDFromUUID(id uuid.UUID) ItemID {
	return ItemID{uuid: id}
}

func ParseItemID(s string) (ItemID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return ItemID{}, fmt.Errorf("invalid item ID: %w", err)
	}
	return ItemID{uuid: id}, nil
}

func (i ItemID) UUID() uuid.UUID { return i.uuid }
func (i ItemID) String() string  { return i.uuid.String() }
func (i ItemID) IsZero() bool    { return i.uuid == uuid.Nil }

func (i ItemID) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.uuid.String())
}

func (i *ItemID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return err
	}
	i.uuid = id
	return nil
}

func (i ItemID) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(i.uuid.String())
}

func (i *ItemID) UnmarshalCBOR(data []byte) error {
	return unmarshalCBORID(data, &i.uuid)
}

func (i ItemID) Value() (driver.Value, error) {
	if i.IsZero() {
		return nil, nil
	}
	return i.uuid.String(), nil
}

func (i *ItemID) Scan(value any) error {
	return scanUUID(value, &i.uuid)
}

func (ItemID) GormDataType() string { return "uuid" }

// unmarshalCBORID decodes a CBOR text string into a UUID.
func unmarshalCBORID(data []byte, dst *uuid.UUID) error {
	var s string
	if err := cbor.Unmarshal(data, &s); err != nil {
		return err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return err
	}
	*dst = id
	return nil
}

// scanUUID converts a database value (string or []byte) into a UUID.
func scanUUID(value any, dst *uuid.UUID) error {
	if value == nil {
		*dst = uuid.Nil
		return nil
	}
	switch v := value.(type) {
	case string:
		id, err := uuid.Parse(v)
		if err != nil {
			return err
		}
		*dst = id
	case []byte:
		id, err := uuid.Parse(string(v))
		if err != nil {
			return err
		}
		*dst = id
	default:
		return fmt.Errorf("cannot scan %T into UUID", value)
	}
	return nil
}
