package domain

import "context"

// SnapshotSlot is the durable key-value slot holding the encoded entity
// store. Load returns (nil, nil) when nothing has been saved yet.
type SnapshotSlot interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, payload []byte) error
	// Clear removes the stored snapshot; clearing an empty slot is not an error.
	Clear(ctx context.Context) error
	Driver() string
}
