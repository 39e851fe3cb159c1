package ports

import (
	"context"
	"time"
)

// UnlockFunc is a function that releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker defines the interface for distributed concurrency
// control. It lets the instance manager coordinate per-instance commits
// across multiple orchestrator replicas.
type DistributedLocker interface {
	// Lock attempts to acquire a distributed lock for the given key
	// (typically an instance ID). It blocks until the lock is acquired or
	// the context is canceled. The returned UnlockFunc MUST be called to
	// release the lock; the TTL bounds the hold time if the holder dies.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
