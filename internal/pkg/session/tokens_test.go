package session

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokenStore(t *testing.T, ttl time.Duration) (*TokenStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewTokenStore(client, ttl), mr
}

func TestTokenStore_RefreshTokens(t *testing.T) {
	ts, mr := newTokenStore(t, time.Hour)
	ctx := context.Background()

	token, err := ts.IssueRefreshToken(ctx, "sess-1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	t.Run("only the digest is stored", func(t *testing.T) {
		keys := mr.Keys()
		require.Len(t, keys, 1)
		assert.True(t, strings.HasPrefix(keys[0], refreshTokenPrefix))
		assert.NotContains(t, keys[0], token)
		assert.Equal(t, time.Hour, mr.TTL(keys[0]))
	})

	t.Run("resolve", func(t *testing.T) {
		id, err := ts.ResolveRefreshToken(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, "sess-1", id)

		id, err = ts.ResolveRefreshToken(ctx, "unknown")
		require.NoError(t, err)
		assert.Empty(t, id)
	})

	t.Run("rotate consumes the old token", func(t *testing.T) {
		id, next, err := ts.RotateRefreshToken(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, "sess-1", id)
		assert.NotEqual(t, token, next)

		id, _, err = ts.RotateRefreshToken(ctx, token)
		require.NoError(t, err)
		assert.Empty(t, id)

		require.NoError(t, ts.RevokeRefreshToken(ctx, next))
		id, err = ts.ResolveRefreshToken(ctx, next)
		require.NoError(t, err)
		assert.Empty(t, id)
	})
}

func TestTokenStore_Blacklist(t *testing.T) {
	ts, mr := newTokenStore(t, 0)
	ctx := context.Background()

	blacklisted, err := ts.IsTokenBlacklisted(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, blacklisted)

	require.NoError(t, ts.BlacklistToken(ctx, "jti-1", time.Minute))
	blacklisted, err = ts.IsTokenBlacklisted(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, blacklisted)

	mr.FastForward(2 * time.Minute)
	blacklisted, err = ts.IsTokenBlacklisted(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, blacklisted)

	// already expired tokens need no entry
	require.NoError(t, ts.BlacklistToken(ctx, "jti-2", 0))
	assert.False(t, mr.Exists(blacklistPrefix+"jti-2"))
}

func TestRateLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	rl := NewRateLimiter(client, 2, time.Minute)
	ctx := context.Background()

	ok, remaining, err := rl.Allow(ctx, "refresh", "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1), remaining)

	ok, remaining, err = rl.Allow(ctx, "refresh", "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, remaining)

	ok, _, err = rl.Allow(ctx, "refresh", "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, ok)

	// other subjects are counted separately
	ok, _, err = rl.Allow(ctx, "refresh", "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(time.Minute + time.Second)
	ok, _, err = rl.Allow(ctx, "refresh", "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, rl.Reset(ctx, "refresh", "10.0.0.1"))
	assert.False(t, mr.Exists("ratelimit:refresh:10.0.0.1"))
}
