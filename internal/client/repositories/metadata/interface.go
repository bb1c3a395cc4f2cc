// Package metadata is the persisted singleton area of the client: the sync
// watermark, the time of the last successful sync and the device id. Values
// are opaque bytes at the repository level; keys.go gives them types.
package metadata

import (
	"context"
)

// Repository stores metadata values by key. Get returns (nil, nil) when key
// is absent.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
