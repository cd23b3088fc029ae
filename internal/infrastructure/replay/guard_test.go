package replay

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aibtcdev/x402-api/pkg/redis"
)

func TestKey_StableAndDistinct(t *testing.T) {
	a := Key([]byte(`{"x402Version":2}`))
	b := Key([]byte(`{"x402Version":2}`))
	c := Key([]byte(`{"x402Version":2} `))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Contains(t, a, "x402:payload:")
}

func TestMemoryGuard_ReserveReleaseExpire(t *testing.T) {
	now := time.Now()
	orig := timeNow
	timeNow = func() time.Time { return now }
	t.Cleanup(func() { timeNow = orig })

	g := NewMemoryGuard(time.Minute)
	ctx := context.Background()

	ok, err := g.Reserve(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.Reserve(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok, "a held key must not reserve twice")

	g.Release(ctx, "k1")
	ok, err = g.Reserve(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, ok, "released keys are reservable again")

	now = now.Add(2 * time.Minute)
	ok, err = g.Reserve(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, ok, "expired reservations lapse")
}

func TestRedisGuard_ReserveRelease(t *testing.T) {
	mr := miniredis.RunT(t)
	redis.SetClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { redis.SetClient(nil) })

	g := NewRedisGuard(time.Minute)
	ctx := context.Background()
	key := Key([]byte("payload"))

	ok, err := g.Reserve(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.Reserve(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	// TTL is attached to the reservation.
	mr.FastForward(2 * time.Minute)
	ok, err = g.Reserve(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	g.Release(ctx, key)
	ok, err = g.Reserve(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
}
