package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a lock obtained from a DistributedLocker.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker serializes turns for the same session across replicas.
// The in-process per-session mutex of the session manager only protects a
// single instance; deployments sharing a Redis store add this on top.
type DistributedLocker interface {
	// Lock blocks until the lock for key is held, ctx is done, or the backend fails.
	// The lock expires after ttl if the holder never calls the returned UnlockFunc.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
