// Package memory keeps blobs in process memory.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"procureflow/internal/blob/core"
)

// Store is a map-backed core.Store. Objects are copied on the way in and out.
type Store struct {
	mu      sync.RWMutex
	objects map[string]core.Object
	now     func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{objects: make(map[string]core.Object), now: time.Now}
}

// Driver reports core.DriverMemory.
func (s *Store) Driver() core.Driver { return core.DriverMemory }

// Write replaces the object at key.
func (s *Store) Write(_ context.Context, key string, data []byte) (core.Object, error) {
	if key == "" {
		return core.Object{}, fmt.Errorf("%w: empty key", core.ErrInvalidKey)
	}
	obj := core.Object{
		Key:     key,
		Data:    bytes.Clone(data),
		Size:    int64(len(data)),
		ETag:    core.ETag(data),
		ModTime: s.now().UTC(),
	}
	s.mu.Lock()
	s.objects[key] = obj
	s.mu.Unlock()
	return detach(obj), nil
}

// Read returns a copy of the object at key.
func (s *Store) Read(_ context.Context, key string) (core.Object, error) {
	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return core.Object{}, fmt.Errorf("%w: %s", core.ErrNotFound, key)
	}
	return detach(obj), nil
}

// Remove deletes the object at key.
func (s *Store) Remove(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return false, nil
	}
	delete(s.objects, key)
	return true, nil
}

func detach(obj core.Object) core.Object {
	obj.Data = bytes.Clone(obj.Data)
	return obj
}
