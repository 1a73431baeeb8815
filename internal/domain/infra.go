package domain

import (
	"context"
	"io"
	"time"
)

// LockManager provides distributed locks so only one keeper instance
// rebalances a given inventory at a time.
type LockManager interface {
	// Acquire obtains the lock for key with the given TTL and returns an
	// unlock function, or ErrLockHeld if another party holds it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// BlobWriter uploads objects to blob storage (inventory dump snapshots).
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}
