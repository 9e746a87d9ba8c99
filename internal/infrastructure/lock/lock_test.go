package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLocker_AcquireAndRelease(t *testing.T) {
	client, mock := redismock.NewClientMock()
	locker := NewRedisLocker(client, "")
	locker.newToken = func() string { return "token-1" }
	ctx := context.Background()

	mock.ExpectSetNX("sync:lock:conn-1", "token-1", 2*time.Minute).SetVal(true)
	mock.ExpectEval(releaseScript, []string{"sync:lock:conn-1"}, "token-1").SetVal(int64(1))

	release, ok, err := locker.Acquire(ctx, "conn-1", 2*time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, release(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLocker_Contended(t *testing.T) {
	client, mock := redismock.NewClientMock()
	locker := NewRedisLocker(client, "test:")
	locker.newToken = func() string { return "token-2" }

	mock.ExpectSetNX("test:conn-1", "token-2", time.Minute).SetVal(false)

	release, ok, err := locker.Acquire(context.Background(), "conn-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, release)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLocker_Error(t *testing.T) {
	client, mock := redismock.NewClientMock()
	locker := NewRedisLocker(client, "")
	locker.newToken = func() string { return "token-3" }

	mock.ExpectSetNX("sync:lock:conn-1", "token-3", time.Minute).SetErr(errors.New("connection refused"))

	_, ok, err := locker.Acquire(context.Background(), "conn-1", time.Minute)
	require.Error(t, err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "failed to acquire sync lock")
}

func TestMemoryLocker(t *testing.T) {
	locker := NewMemoryLocker()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	locker.now = func() time.Time { return now }
	ctx := context.Background()

	release, ok, err := locker.Acquire(ctx, "conn-1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locker.Acquire(ctx, "conn-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "held lease must block a second holder")

	_, ok, _ = locker.Acquire(ctx, "conn-2", time.Minute)
	assert.True(t, ok, "leases are per key")

	now = now.Add(2 * time.Minute)
	releaseLater, ok, _ := locker.Acquire(ctx, "conn-1", time.Minute)
	require.True(t, ok, "expired lease can be taken over")

	require.NoError(t, release(ctx))
	_, ok, _ = locker.Acquire(ctx, "conn-1", time.Minute)
	assert.False(t, ok, "stale release must not drop the new holder's lease")

	require.NoError(t, releaseLater(ctx))
	_, ok, _ = locker.Acquire(ctx, "conn-1", time.Minute)
	assert.True(t, ok)
}
