package metadata

import (
	"context"
)

// Repository is a small key/value table shared by every process attached to
// the same local store. It holds the sync metadata singleton, the bound
// session and the leader record.
type Repository interface {
	// Get returns the value for key, or nil when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}
