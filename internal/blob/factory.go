package blob

import (
	"context"
	"fmt"

	"procureflow/internal/infra/blob/fs"
	"procureflow/internal/infra/blob/memory"
	"procureflow/internal/infra/blob/s3"
)

// S3Config locates an S3-compatible bucket.
type S3Config = s3.Config

// Config selects and parameterises a blob backend.
type Config struct {
	Driver Driver
	FSRoot string
	S3     S3Config
}

// Open builds the backend named by cfg.Driver; an empty driver means fs.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", DriverFilesystem:
		return fs.New(cfg.FSRoot)
	case DriverS3:
		return s3.New(ctx, cfg.S3)
	case DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
	}
}
