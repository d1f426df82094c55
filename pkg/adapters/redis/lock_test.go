package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/redo/pkg/adapters/redis"
	"github.com/aretw0/redo/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLocker_LockUnlock(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "pipeline", 5*time.Second)
	require.NoError(t, err)
	require.NotNil(t, unlock)
	assert.True(t, mr.Exists("test:lock:pipeline"), "Lock key should be set in Redis")

	require.NoError(t, unlock.Unlock(ctx))
	assert.False(t, mr.Exists("test:lock:pipeline"), "Lock key should be removed after unlock")
}

func TestRedisLocker_Contention(t *testing.T) {
	mr, client := newClient(t)
	locker1 := redis.NewLocker(client, "test:")
	locker2 := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock1, err := locker1.Lock(ctx, "shared", 5*time.Second)
	require.NoError(t, err)

	ctxTimeout, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()
	_, err = locker2.Lock(ctxTimeout, "shared", 5*time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, unlock1.Unlock(ctx))

	unlock2, err := locker2.Lock(ctx, "shared", 5*time.Second)
	require.NoError(t, err)
	defer func() { _ = unlock2.Unlock(ctx) }()
	assert.True(t, mr.Exists("test:lock:shared"))
}

func TestRedisLocker_StaleUnlockKeepsNewHolder(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlockOld, err := locker.Lock(ctx, "job", time.Second)
	require.NoError(t, err)

	// The first lease expires and someone else takes the lock.
	mr.FastForward(2 * time.Second)
	unlockNew, err := locker.Lock(ctx, "job", 5*time.Second)
	require.NoError(t, err)

	assert.ErrorIs(t, unlockOld.Held(ctx), domain.ErrLockLost)
	assert.ErrorIs(t, unlockOld.Unlock(ctx), domain.ErrLockLost)
	assert.True(t, mr.Exists("test:lock:job"), "stale holder must not release the new lock")
	assert.NoError(t, unlockNew.Held(ctx))

	require.NoError(t, unlockNew.Unlock(ctx))
	assert.False(t, mr.Exists("test:lock:job"))
}

func TestRedisLocker_RenewsWhileHeld(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	ttl := 300 * time.Millisecond
	lease, err := locker.Lock(ctx, "long", ttl)
	require.NoError(t, err)

	mr.FastForward(250 * time.Millisecond)

	assert.Eventually(t, func() bool {
		return mr.TTL("test:lock:long") > 200*time.Millisecond
	}, 2*time.Second, 10*time.Millisecond, "the lock ttl should be extended")
	assert.NoError(t, lease.Held(ctx))

	require.NoError(t, lease.Unlock(ctx))
	assert.False(t, mr.Exists("test:lock:long"))
}
