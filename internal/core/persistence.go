package core

import (
	"bytes"
	"context"
	"fmt"

	"procureflow/pkg/domain"
)

// Persistence moves the entity store between the service and its snapshot
// slot. Slot failures never reach callers: an unreadable slot degrades to
// memory-only operation and write failures are logged.
type Persistence struct {
	slot       SnapshotSlot
	logger     Logger
	memoryOnly bool
	last       []byte
}

// NewPersistence wraps slot. A nil slot runs memory-only from the start.
func NewPersistence(slot SnapshotSlot, logger Logger) *Persistence {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Persistence{slot: slot, logger: logger, memoryOnly: slot == nil}
}

// MemoryOnly reports whether the adapter has stopped using its slot.
func (p *Persistence) MemoryOnly() bool { return p.memoryOnly }

// Driver names the backing slot.
func (p *Persistence) Driver() string {
	if p.slot == nil {
		return string(StorageMemory)
	}
	return p.slot.Driver()
}

// Load returns the latest snapshot, or an empty store when none exists or
// the stored payload cannot be decoded.
func (p *Persistence) Load(ctx context.Context) *EntityStore {
	payload := p.last
	if !p.memoryOnly {
		data, err := p.slot.Load(ctx)
		if err != nil {
			p.logger.Warn("snapshot slot unavailable; continuing in memory",
				"driver", p.slot.Driver(), "error", domain.StorageError{Op: "load", Err: err})
			p.memoryOnly = true
		} else {
			payload = data
		}
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return NewEntityStore()
	}
	store, err := DecodeEntityStore(payload)
	if err != nil {
		p.logger.Warn("discarding corrupt snapshot", "driver", p.Driver(), "error", err)
		return NewEntityStore()
	}
	return store
}

// Save encodes the store and writes it to the slot. An encode failure is
// returned and leaves both the slot and the in-memory copy untouched; slot
// write errors are logged and swallowed.
func (p *Persistence) Save(ctx context.Context, store *EntityStore) error {
	payload, err := store.Encode()
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	p.last = payload
	if p.memoryOnly {
		return nil
	}
	if err := p.slot.Save(ctx, payload); err != nil {
		p.logger.Error("persist snapshot", "driver", p.slot.Driver(), "error", domain.StorageError{Op: "save", Err: err})
	}
	return nil
}

// Clear drops the in-memory copy and empties the slot.
func (p *Persistence) Clear(ctx context.Context) error {
	p.last = nil
	if p.memoryOnly {
		return nil
	}
	if err := p.slot.Clear(ctx); err != nil {
		return domain.StorageError{Op: "clear", Err: err}
	}
	return nil
}

// Close releases the slot when it holds a closable resource.
func (p *Persistence) Close() error {
	closer, ok := p.slot.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
