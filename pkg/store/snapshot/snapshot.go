// Package snapshot serializes the full contents of a store into a compact
// CBOR envelope. Snapshots back the export/import commands and the safety
// copy taken before destructive clears.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/listkeeper/listkeeper/pkg/models"
	"github.com/listkeeper/listkeeper/pkg/store"
)

// FormatVersion identifies the snapshot envelope layout. Readers reject
// versions they do not understand instead of guessing.
const FormatVersion = 1

// Snapshot is a point-in-time copy of every list and item in a store.
type Snapshot struct {
	Version int            `cbor:"version"`
	TakenAt time.Time      `cbor:"taken_at"`
	Lists   []*models.List `cbor:"lists"`
	Items   []*models.Item `cbor:"items"`
}

// Capture reads the complete contents of st into a Snapshot.
func Capture(ctx context.Context, st store.Store) (*Snapshot, error) {
	lists, err := st.GetAllLists(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot: reading lists: %w", err)
	}
	items, err := st.GetAllItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot: reading items: %w", err)
	}
	return &Snapshot{
		Version: FormatVersion,
		TakenAt: time.Now().UTC(),
		Lists:   lists,
		Items:   items,
	}, nil
}

// Write encodes the snapshot to w.
func Write(w io.Writer, snap *Snapshot) error {
	if err := cbor.NewEncoder(w).Encode(snap); err != nil {
		return fmt.Errorf("snapshot: encode: %w", err)
	}
	return nil
}

// Read decodes a snapshot from r, rejecting unknown format versions.
func Read(r io.Reader) (*Snapshot, error) {
	var snap Snapshot
	if err := cbor.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("snapshot: decode: %w", err)
	}
	if snap.Version != FormatVersion {
		return nil, fmt.Errorf("snapshot: unsupported format version %d", snap.Version)
	}
	return &snap, nil
}

// Restore writes every record of the snapshot into st, overwriting records
// that share an ID. Records the snapshot lacks are left untouched.
func Restore(ctx context.Context, st store.Store, snap *Snapshot) error {
	for _, list := range snap.Lists {
		if err := upsertList(ctx, st, list); err != nil {
			return fmt.Errorf("snapshot: restoring list %s: %w", list.ID, err)
		}
	}
	for _, item := range snap.Items {
		if err := upsertItem(ctx, st, item); err != nil {
			return fmt.Errorf("snapshot: restoring item %s: %w", item.ID, err)
		}
	}
	return nil
}

func upsertList(ctx context.Context, st store.Store, list *models.List) error {
	err := st.AddList(ctx, list)
	if errors.Is(err, store.ErrAlreadyExists) {
		return st.UpdateList(ctx, list)
	}
	return err
}

func upsertItem(ctx context.Context, st store.Store, item *models.Item) error {
	err := st.AddItem(ctx, item)
	if errors.Is(err, store.ErrAlreadyExists) {
		return st.UpdateItem(ctx, item)
	}
	return err
}
