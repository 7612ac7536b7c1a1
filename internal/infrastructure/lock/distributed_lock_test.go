package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestTryLockMutualExclusion(t *testing.T) {
	_, client := newRedis(t)
	ctx := context.Background()

	a := NewDistributedLock(client, StudentKey(1), "req-a", time.Minute)
	b := NewDistributedLock(client, StudentKey(1), "req-b", time.Minute)

	ok, err := a.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// b 释放不了 a 的锁
	require.NoError(t, b.Unlock(ctx))
	ok, err = b.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, a.Unlock(ctx))
	ok, err = b.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLockExpires(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()

	a := NewDistributedLock(client, "k", "a", time.Second)
	ok, err := a.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	ok, err = NewDistributedLock(client, "k", "b", time.Second).TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockerAcquireRelease(t *testing.T) {
	_, client := newRedis(t)
	locker := NewRedisLocker(client, time.Minute)
	locker.maxRetries = 2
	locker.retryInterval = time.Millisecond

	release, err := locker.Acquire(context.Background(), MonthKey("salary", "2024-05"), "a")
	require.NoError(t, err)

	_, err = locker.Acquire(context.Background(), MonthKey("salary", "2024-05"), "b")
	assert.True(t, errors.Is(err, ErrLockFailed))

	release()
	release2, err := locker.Acquire(context.Background(), MonthKey("salary", "2024-05"), "b")
	require.NoError(t, err)
	release2()
}

func TestNopLocker(t *testing.T) {
	release, err := NopLocker{}.Acquire(context.Background(), "any", "x")
	require.NoError(t, err)
	release()
}
