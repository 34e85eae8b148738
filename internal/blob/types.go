// Package blob selects a blob backend for the snapshot slot and re-exports
// the shared blob vocabulary.
package blob

import (
	"procureflow/internal/blob/core"
)

type (
	// Driver names a blob backend.
	Driver = core.Driver
	// Object is one stored blob.
	Object = core.Object
	// Store keeps whole objects under string keys.
	Store = core.Store
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

var (
	// ErrNotFound is wrapped by Store.Read for missing keys.
	ErrNotFound = core.ErrNotFound
	// ErrInvalidKey rejects empty or escaping keys.
	ErrInvalidKey = core.ErrInvalidKey
)
