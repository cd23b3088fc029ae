package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/aibtcdev/x402-api/internal/domain/errors"
)

func TestLockAcquire_Contention(t *testing.T) {
	s := newTestShard(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	freezeTime(t, now)

	res, err := s.LockAcquire(ctx, "deploy", 60)
	require.NoError(t, err)
	assert.True(t, res.Acquired)
	assert.Len(t, res.Token, 32)
	require.NotNil(t, res.ExpiresAt)
	assert.True(t, res.ExpiresAt.Equal(now.Add(60*time.Second)))

	blocked, err := s.LockAcquire(ctx, "deploy", 60)
	require.NoError(t, err)
	assert.False(t, blocked.Acquired)
	assert.Empty(t, blocked.Token)
	require.NotNil(t, blocked.HeldUntil)
	assert.WithinDuration(t, now.Add(60*time.Second), *blocked.HeldUntil, time.Second)

	other, err := s.LockAcquire(ctx, "migrate", 60)
	require.NoError(t, err)
	assert.True(t, other.Acquired)
	assert.NotEqual(t, res.Token, other.Token)
}

func TestLockAcquire_TTLClamp(t *testing.T) {
	s := newTestShard(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	freezeTime(t, now)

	cases := []struct {
		name string
		ttl  int
		want time.Duration
	}{
		{"zero means default", 0, 60 * time.Second},
		{"below floor", 5, 10 * time.Second},
		{"above ceiling", 9999, 300 * time.Second},
		{"in range", 120, 120 * time.Second},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := s.LockAcquire(ctx, "lock-"+tc.name, tc.ttl)
			require.NoError(t, err)
			require.True(t, res.Acquired)
			assert.True(t, res.ExpiresAt.Equal(now.Add(tc.want)))
		})
	}

	_, err := s.LockAcquire(ctx, "", 60)
	assert.ErrorIs(t, err, domainerrors.ErrInvalidInput)
}

func TestLockReleaseAndReacquire(t *testing.T) {
	s := newTestShard(t)
	ctx := context.Background()

	res, err := s.LockAcquire(ctx, "job", 60)
	require.NoError(t, err)
	require.True(t, res.Acquired)

	err = s.LockRelease(ctx, "job", "wrong-token")
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)

	require.NoError(t, s.LockRelease(ctx, "job", res.Token))

	state, err := s.LockStatus(ctx, "job")
	require.NoError(t, err)
	assert.False(t, state.Held)
	assert.Nil(t, state.ExpiresAt)

	again, err := s.LockAcquire(ctx, "job", 60)
	require.NoError(t, err)
	assert.True(t, again.Acquired)
	assert.NotEqual(t, res.Token, again.Token)
}

func TestLockRelease_NotHeld(t *testing.T) {
	s := newTestShard(t)

	err := s.LockRelease(context.Background(), "ghost", "token")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestLockExtend(t *testing.T) {
	s := newTestShard(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	freezeTime(t, now)

	res, err := s.LockAcquire(ctx, "lease", 60)
	require.NoError(t, err)
	require.True(t, res.Acquired)

	freezeTime(t, now.Add(50*time.Second))

	_, err = s.LockExtend(ctx, "lease", "wrong-token", 60)
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)

	extended, err := s.LockExtend(ctx, "lease", res.Token, 60)
	require.NoError(t, err)
	assert.True(t, extended.Acquired)
	assert.Equal(t, res.Token, extended.Token)
	assert.True(t, extended.ExpiresAt.Equal(now.Add(110*time.Second)))
}

func TestLockExtend_ExpiredIsGone(t *testing.T) {
	s := newTestShard(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	freezeTime(t, now)

	res, err := s.LockAcquire(ctx, "lease", 10)
	require.NoError(t, err)
	require.True(t, res.Acquired)

	freezeTime(t, now.Add(11*time.Second))

	_, err = s.LockExtend(ctx, "lease", res.Token, 60)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestLock_ExpiryAllowsReacquire(t *testing.T) {
	s := newTestShard(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	freezeTime(t, now)

	first, err := s.LockAcquire(ctx, "flappy", 10)
	require.NoError(t, err)
	require.True(t, first.Acquired)

	freezeTime(t, now.Add(10*time.Second))

	second, err := s.LockAcquire(ctx, "flappy", 10)
	require.NoError(t, err)
	assert.True(t, second.Acquired)
	assert.NotEqual(t, first.Token, second.Token)
}

func TestLockStatusAndList(t *testing.T) {
	s := newTestShard(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	freezeTime(t, now)

	_, err := s.LockAcquire(ctx, "zulu", 60)
	require.NoError(t, err)
	_, err = s.LockAcquire(ctx, "alpha", 30)
	require.NoError(t, err)

	state, err := s.LockStatus(ctx, "zulu")
	require.NoError(t, err)
	assert.True(t, state.Held)
	require.NotNil(t, state.ExpiresAt)
	assert.WithinDuration(t, now.Add(60*time.Second), *state.ExpiresAt, time.Second)

	locks, err := s.LockList(ctx)
	require.NoError(t, err)
	require.Len(t, locks, 2)
	assert.Equal(t, "alpha", locks[0].Name)
	assert.Equal(t, "zulu", locks[1].Name)

	freezeTime(t, now.Add(31*time.Second))

	locks, err = s.LockList(ctx)
	require.NoError(t, err)
	require.Len(t, locks, 1)
	assert.Equal(t, "zulu", locks[0].Name)
}
