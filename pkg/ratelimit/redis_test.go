package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/abraham-of-london/circlegate/pkg/ratelimit"
)

func newRedisLimiter(t *testing.T, opts ...ratelimit.Option) (*ratelimit.Limiter, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	opts = append([]ratelimit.Option{ratelimit.WithRedis(client)}, opts...)
	limiter := ratelimit.New(opts...)
	t.Cleanup(limiter.Close)

	return limiter, mr
}

func TestRedisCheckAllowsThenDenies(t *testing.T) {
	t.Parallel()

	limiter, _ := newRedisLimiter(t)
	policy := ratelimit.Policy{Limit: 2, Window: time.Minute, Prefix: "redeem"}

	res := limiter.Check(context.Background(), "1.2.3.4", policy)
	require.True(t, res.Allowed)
	require.Equal(t, ratelimit.SourceRedis, res.Source)
	require.Equal(t, 1, res.Remaining)

	res = limiter.Check(context.Background(), "1.2.3.4", policy)
	require.True(t, res.Allowed)
	require.Equal(t, 0, res.Remaining)

	res = limiter.Check(context.Background(), "1.2.3.4", policy)
	require.False(t, res.Allowed)
	require.Equal(t, ratelimit.SourceRedis, res.Source)
	require.Positive(t, res.RetryAfter)
	require.False(t, res.ResetTime.IsZero())
}

func TestRedisCheckSlidesWindow(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	limiter, _ := newRedisLimiter(t, ratelimit.WithClock(clock.Now))
	policy := ratelimit.Policy{Limit: 1, Window: time.Second, Prefix: "slide"}

	require.True(t, limiter.Check(context.Background(), "a", policy).Allowed)
	require.False(t, limiter.Check(context.Background(), "a", policy).Allowed)

	// Once the recorded event ages out of the window the caller is admitted
	// again without any external reset.
	clock.Advance(1100 * time.Millisecond)
	require.True(t, limiter.Check(context.Background(), "a", policy).Allowed)
}

func TestRedisCheckDegradesToMemory(t *testing.T) {
	t.Parallel()

	limiter, mr := newRedisLimiter(t)
	policy := ratelimit.Policy{Limit: 3, Window: time.Minute, Prefix: "degraded"}

	mr.Close()

	res := limiter.Check(context.Background(), "1.2.3.4", policy)
	require.True(t, res.Allowed)
	require.Equal(t, ratelimit.SourceMemory, res.Source)
	require.Equal(t, 2, res.Remaining)

	// The fallback still enforces the limit on its own.
	limiter.Check(context.Background(), "1.2.3.4", policy)
	limiter.Check(context.Background(), "1.2.3.4", policy)
	res = limiter.Check(context.Background(), "1.2.3.4", policy)
	require.False(t, res.Allowed)
	require.Equal(t, ratelimit.SourceMemory, res.Source)
}

func TestRedisCheckRequireRedisDeniesOnFailure(t *testing.T) {
	t.Parallel()

	limiter, mr := newRedisLimiter(t, ratelimit.WithRequireRedis())
	policy := ratelimit.Policy{Limit: 100, Window: time.Minute, Prefix: "strict"}

	mr.Close()

	res := limiter.Check(context.Background(), "1.2.3.4", policy)
	require.False(t, res.Allowed)
	require.Equal(t, ratelimit.SourceRedis, res.Source)
	require.Equal(t, policy.Window, res.RetryAfter)
}

func TestRedisCheckIsolatesPrefixes(t *testing.T) {
	t.Parallel()

	limiter, _ := newRedisLimiter(t)
	redeem := ratelimit.Policy{Limit: 1, Window: time.Minute, Prefix: "redeem"}
	api := ratelimit.Policy{Limit: 1, Window: time.Minute, Prefix: "api"}

	require.True(t, limiter.Check(context.Background(), "x", redeem).Allowed)
	require.False(t, limiter.Check(context.Background(), "x", redeem).Allowed)
	require.True(t, limiter.Check(context.Background(), "x", api).Allowed)
}
