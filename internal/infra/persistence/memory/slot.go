// Package memory provides a process-local snapshot slot used for tests and
// ephemeral sessions.
package memory

import (
	"bytes"
	"context"
	"sync"

	"procureflow/pkg/domain"
)

// Compile-time contract assertion ensuring the slot satisfies the domain interface.
var _ domain.SnapshotSlot = (*Slot)(nil)

// Slot keeps the last saved snapshot in memory.
type Slot struct {
	mu      sync.RWMutex
	payload []byte
}

// NewSlot returns an empty in-memory slot.
func NewSlot() *Slot { return &Slot{} }

// Load returns a copy of the stored payload, or nil when empty.
func (s *Slot) Load(context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return bytes.Clone(s.payload), nil
}

// Save replaces the stored payload.
func (s *Slot) Save(_ context.Context, payload []byte) error {
	s.mu.Lock()
	s.payload = bytes.Clone(payload)
	s.mu.Unlock()
	return nil
}

// Clear drops the stored payload.
func (s *Slot) Clear(context.Context) error {
	s.mu.Lock()
	s.payload = nil
	s.mu.Unlock()
	return nil
}

// Driver identifies the slot backend.
func (s *Slot) Driver() string { return "memory" }
