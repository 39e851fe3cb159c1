package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serviceops/conveyor/pkg/adapters/redis"
)

func TestLocker_LockUnlock(t *testing.T) {
	mr, client := newTestClient(t)
	locker := redis.NewLocker(client, "conveyor:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "inst-1", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, mr.Exists("conveyor:lock:inst-1"))

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("conveyor:lock:inst-1"))
}

func TestLocker_ContendedLockWaits(t *testing.T) {
	_, client := newTestClient(t)
	locker := redis.NewLocker(client, "conveyor:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "inst-1", 5*time.Second)
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		u2, err := locker.Lock(ctx, "inst-1", 5*time.Second)
		if err == nil {
			_ = u2(ctx)
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second Lock succeeded while the first was held")
	case <-time.After(150 * time.Millisecond):
	}

	require.NoError(t, unlock(ctx))

	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("second Lock never acquired after release")
	}
}

func TestLocker_ContextCancelAbortsWait(t *testing.T) {
	_, client := newTestClient(t)
	locker := redis.NewLocker(client, "conveyor:")

	unlock, err := locker.Lock(context.Background(), "inst-1", 5*time.Second)
	require.NoError(t, err)
	defer func() { _ = unlock(context.Background()) }()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err = locker.Lock(ctx, "inst-1", 5*time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, redis.ErrLockAcquire)
}

func TestLocker_ReleaseOnlyOwnLock(t *testing.T) {
	mr, client := newTestClient(t)
	locker := redis.NewLocker(client, "conveyor:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "inst-1", 5*time.Second)
	require.NoError(t, err)

	// Simulate expiry plus takeover by another owner.
	mr.Set("conveyor:lock:inst-1", "someone-else")

	require.NoError(t, unlock(ctx))
	assert.True(t, mr.Exists("conveyor:lock:inst-1"),
		"release must not delete a lock it no longer owns")
}
