package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/invoicer/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return srv, client
}

func TestLockerExclusiveUntilRelease(t *testing.T) {
	_, client := newRedis(t)
	locker := NewLocker(client)
	ctx := context.Background()

	token, ok, err := locker.TryLock(ctx, "sweep", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEmpty(t, token)

	_, ok, err = locker.TryLock(ctx, "sweep", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// a stale token cannot release someone else's lease
	require.NoError(t, locker.Release(ctx, "sweep", "not-the-token"))
	_, ok, err = locker.TryLock(ctx, "sweep", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, locker.Release(ctx, "sweep", token))
	_, ok, err = locker.TryLock(ctx, "sweep", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLockerExpires(t *testing.T) {
	srv, client := newRedis(t)
	locker := NewLocker(client)
	ctx := context.Background()

	_, ok, err := locker.TryLock(ctx, "sweep", time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, srv.Exists("sweep"))

	srv.FastForward(2 * time.Second)

	_, ok, err = locker.TryLock(ctx, "sweep", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLockerValidation(t *testing.T) {
	var nilLocker *Locker
	_, _, err := nilLocker.TryLock(context.Background(), "k", time.Second)
	assert.ErrorIs(t, err, ErrLockNotConfigured)
	assert.NoError(t, nilLocker.Release(context.Background(), "k", "t"))

	_, client := newRedis(t)
	locker := NewLocker(client)
	_, _, err = locker.TryLock(context.Background(), "", time.Second)
	assert.ErrorIs(t, err, ErrLockKeyEmpty)
	_, _, err = locker.TryLock(context.Background(), "k", 0)
	assert.ErrorIs(t, err, ErrLockTTLInvalid)
}

func TestTokenBucketDeniesAfterBurst(t *testing.T) {
	_, client := newRedis(t)
	bucket := NewTokenBucket(client)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := bucket.Allow(ctx, "login:1.2.3.4", 0.001, 2)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "attempt %d", i)
	}

	res, err := bucket.Allow(ctx, "login:1.2.3.4", 0.001, 2)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 2, res.Limit)
	assert.Positive(t, res.RetryAfter)

	res, err = bucket.Allow(ctx, "login:5.6.7.8", 0.001, 2)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestAuthLimiterDisabledAllows(t *testing.T) {
	limiter := NewAuthLimiter(config.Config{}, nil)
	assert.False(t, limiter.Enabled())

	res, err := limiter.Allow(context.Background(), "login", "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestAuthKeyNormalizes(t *testing.T) {
	assert.Equal(t, "invoicer:ratelimit:auth:login:10.0.0.1", authKey(" Login ", "10.0.0.1"))
	assert.Equal(t, "invoicer:ratelimit:auth:default:unknown", authKey("", ""))
}

func TestDefaultBucketTTL(t *testing.T) {
	assert.Equal(t, 100*time.Second, defaultBucketTTL(0.2, 10))
	assert.Equal(t, time.Second, defaultBucketTTL(100, 1))
	assert.Equal(t, time.Second, defaultBucketTTL(0, 0))
}
