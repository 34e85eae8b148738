// Package core holds the blob vocabulary shared by the backend
// implementations and the blob facade.
package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// Driver names a blob backend.
type Driver string

// Known backends.
const (
	DriverFilesystem Driver = "fs"
	DriverS3         Driver = "s3"
	DriverMemory     Driver = "memory"
)

// Object is one stored blob. Snapshots are small, so payloads travel as
// byte slices rather than streams.
type Object struct {
	Key     string
	Data    []byte
	Size    int64
	ETag    string
	ModTime time.Time
}

// Store keeps whole objects under string keys.
type Store interface {
	// Write replaces the object at key and returns its new revision.
	Write(ctx context.Context, key string, data []byte) (Object, error)
	// Read returns the object at key, or an error wrapping ErrNotFound.
	Read(ctx context.Context, key string) (Object, error)
	// Remove deletes the object and reports whether it existed.
	Remove(ctx context.Context, key string) (bool, error)
	Driver() Driver
}

// ErrNotFound is wrapped by Read when the key holds no object.
var ErrNotFound = errors.New("blob: object not found")

// ErrInvalidKey is returned for empty keys and keys that would escape the
// backend's namespace.
var ErrInvalidKey = errors.New("blob: invalid key")

// ETag derives the revision tag stored alongside data.
func ETag(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
