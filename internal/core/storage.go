package core

import (
	"context"
	"fmt"

	"procureflow/internal/blob"
	"procureflow/internal/infra/persistence/blobslot"
	"procureflow/internal/infra/persistence/memory"
	"procureflow/internal/infra/persistence/postgres"
	"procureflow/internal/infra/persistence/sqlite"
)

// StorageDriver identifies a snapshot slot implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // process-local only
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
	StorageBlob     StorageDriver = "blob"     // object in a blob store
)

// StorageConfig selects and configures the durable snapshot slot.
type StorageConfig struct {
	Driver      StorageDriver
	SQLitePath  string
	PostgresDSN string
	// Key names the snapshot row or object. Each backend applies its own
	// default when empty.
	Key  string
	Blob blob.Config
}

// OpenSnapshotSlot opens the slot selected by cfg. Slots holding database
// handles implement io.Closer.
func OpenSnapshotSlot(ctx context.Context, cfg StorageConfig) (SnapshotSlot, error) {
	switch cfg.Driver {
	case "", StorageMemory:
		return memory.NewSlot(), nil
	case StorageSQLite:
		slot, err := sqlite.Open(cfg.SQLitePath, cfg.Key)
		if err != nil {
			return nil, err
		}
		return slot, nil
	case StoragePostgres:
		slot, err := postgres.Open(ctx, cfg.PostgresDSN, cfg.Key)
		if err != nil {
			return nil, err
		}
		return slot, nil
	case StorageBlob:
		store, err := blob.Open(ctx, cfg.Blob)
		if err != nil {
			return nil, fmt.Errorf("open blob store: %w", err)
		}
		return blobslot.New(store, cfg.Key), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
}
