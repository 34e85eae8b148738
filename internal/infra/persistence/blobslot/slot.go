// Package blobslot keeps the encoded entity snapshot as a single object in a
// blob store (filesystem, S3 or memory).
package blobslot

import (
	"context"
	"errors"
	"fmt"

	"procureflow/internal/blob"
	"procureflow/pkg/domain"
)

var _ domain.SnapshotSlot = (*Slot)(nil)

const defaultKey = "procureflow/state.json"

// Slot stores the snapshot under one key of a blob.Store.
type Slot struct {
	store blob.Store
	key   string
}

// New wraps store; an empty key selects procureflow/state.json.
func New(store blob.Store, key string) *Slot {
	if key == "" {
		key = defaultKey
	}
	return &Slot{store: store, key: key}
}

// Load reads the snapshot object. A missing object yields (nil, nil).
func (s *Slot) Load(ctx context.Context) ([]byte, error) {
	obj, err := s.store.Read(ctx, s.key)
	if errors.Is(err, blob.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.key, err)
	}
	return obj.Data, nil
}

// Save overwrites the snapshot object.
func (s *Slot) Save(ctx context.Context, payload []byte) error {
	if _, err := s.store.Write(ctx, s.key, payload); err != nil {
		return fmt.Errorf("write %s: %w", s.key, err)
	}
	return nil
}

// Clear removes the snapshot object; an absent object is not an error.
func (s *Slot) Clear(ctx context.Context) error {
	if _, err := s.store.Remove(ctx, s.key); err != nil {
		return fmt.Errorf("remove %s: %w", s.key, err)
	}
	return nil
}

// Driver reports "blob:" plus the backend name.
func (s *Slot) Driver() string { return "blob:" + string(s.store.Driver()) }
