package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryLockStore struct {
	values map[string]string
	err    error
}

func newMemoryLockStore() *memoryLockStore {
	return &memoryLockStore{values: map[string]string{}}
}

func (m *memoryLockStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if _, taken := m.values[key]; taken {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryLockStore) CompareAndDelete(_ context.Context, key, expected string) (bool, error) {
	if m.values[key] != expected {
		return false, nil
	}
	delete(m.values, key)
	return true, nil
}

func TestRedisLockIsExclusive(t *testing.T) {
	ctx := context.Background()
	store := newMemoryLockStore()
	first, err := NewRedisLock(store, "lock:cron", time.Minute)
	require.NoError(t, err)
	second, err := NewRedisLock(store, "lock:cron", time.Minute)
	require.NoError(t, err)

	won, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, won)

	won, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, won)

	require.NoError(t, second.Release(ctx), "releasing an unheld lock is a no-op")
	assert.Contains(t, store.values, "lock:cron")

	require.NoError(t, first.Release(ctx))
	won, _ = second.Acquire(ctx)
	assert.True(t, won)
}

func TestRedisLockReportsTakeover(t *testing.T) {
	ctx := context.Background()
	store := newMemoryLockStore()
	lock, err := NewRedisLock(store, "lock:cron", time.Minute)
	require.NoError(t, err)

	won, err := lock.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, won)

	store.values["lock:cron"] = "other-worker:nonce"
	assert.ErrorIs(t, lock.Release(ctx), ErrLockLost)
	assert.Equal(t, "other-worker:nonce", store.values["lock:cron"])
}

func TestRedisLockTokenNamesInstance(t *testing.T) {
	t.Setenv("MEMENTO_INSTANCE_ID", "cron-a")
	store := newMemoryLockStore()
	lock, err := NewRedisLock(store, "lock:cron", 0)
	require.NoError(t, err)
	assert.Equal(t, defaultLockTTL, lock.ttl)

	won, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, won)
	assert.Regexp(t, `^cron-a:[0-9a-f-]{36}$`, store.values["lock:cron"])
}

func TestRedisLockSurfacesStoreErrors(t *testing.T) {
	store := newMemoryLockStore()
	store.err = errors.New("redis down")
	lock, err := NewRedisLock(store, "lock:cron", time.Minute)
	require.NoError(t, err)

	_, err = lock.Acquire(context.Background())
	assert.ErrorContains(t, err, "redis down")

	_, err = NewRedisLock(nil, "k", time.Minute)
	assert.Error(t, err)
	_, err = NewRedisLock(store, "", time.Minute)
	assert.Error(t, err)
}
