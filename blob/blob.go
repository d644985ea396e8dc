// Package blob stores finalized sketch artifacts. Keys are laid out as
// {prefix}/{connection_id}/{uuid}.png; the store itself is key-to-bytes
// with no listing requirements on the hot path.
package blob

import (
	"context"
	"fmt"
)

// Store is the artifact store surface the worker needs.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Config selects and parametrizes a driver.
type Config struct {
	Driver   string // "s3" or "memory"
	Bucket   string
	Region   string
	Endpoint string // optional, for S3-compatible stores like MinIO
}

// Open constructs the configured driver. The memory driver backs local
// development and tests.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "s3":
		return NewS3(ctx, cfg)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
	}
}
