package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	domain "session-service/internal/domain/session"
	xerrors "session-service/internal/pkg/errors"
	"session-service/internal/pkg/jwt"
	"session-service/internal/pkg/session"
)

func newService(t *testing.T) (*AuthService, *session.Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	manager := jwt.NewManager(priv, &priv.PublicKey, jwt.Config{
		Issuer:   "session-service",
		Audience: "portal",
		TTL:      time.Hour,
		KID:      "test",
	})

	logger := zaptest.NewLogger(t)
	store := session.NewStore(client, logger)
	tokens := session.NewTokenStore(client, 0)
	return NewAuthService(store, tokens, manager, 720*time.Hour, logger), store, mr
}

func createRequest(userID string) *domain.CreateSessionRequest {
	return &domain.CreateSessionRequest{
		User: domain.User{ID: userID, Email: "ana@example.com", Role: "SYSTEM_ADMIN"},
	}
}

func TestCreateSession(t *testing.T) {
	svc, store, mr := newService(t)
	ctx := context.Background()

	resp, err := svc.CreateSession(ctx, createRequest("u1"), "10.0.0.1", "curl/8.0")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, 3600, resp.ExpiresIn)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, session.DefaultTTL, mr.TTL("session:"+resp.SessionID))

	record, err := store.Get(ctx, resp.SessionID)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "10.0.0.1", record.IPAddress)

	claims, err := svc.ValidateToken(ctx, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, resp.SessionID, claims.SessionID)
	assert.True(t, claims.HasRole("SYSTEM_ADMIN"))
}

func TestCreateSessionRemember(t *testing.T) {
	svc, _, mr := newService(t)

	req := createRequest("u1")
	req.Remember = true
	resp, err := svc.CreateSession(context.Background(), req, "", "")
	require.NoError(t, err)
	assert.Equal(t, 720*time.Hour, mr.TTL("session:"+resp.SessionID))
}

func TestCreateSessionInvalidUser(t *testing.T) {
	svc, _, _ := newService(t)

	_, err := svc.CreateSession(context.Background(), createRequest(" "), "", "")
	assert.ErrorIs(t, err, xerrors.ErrInvalidUser)
}

func TestRefresh(t *testing.T) {
	svc, store, _ := newService(t)
	ctx := context.Background()

	created, err := svc.CreateSession(ctx, createRequest("u1"), "", "")
	require.NoError(t, err)

	refreshed, err := svc.Refresh(ctx, created.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, created.SessionID, refreshed.SessionID)
	assert.NotEqual(t, created.RefreshToken, refreshed.RefreshToken)

	_, err = svc.Refresh(ctx, created.RefreshToken)
	assert.ErrorIs(t, err, xerrors.ErrUnauthorized, "refresh tokens are single use")

	_, err = store.Destroy(ctx, created.SessionID)
	require.NoError(t, err)
	_, err = svc.Refresh(ctx, refreshed.RefreshToken)
	assert.ErrorIs(t, err, xerrors.ErrSessionExpired)
}

func TestValidateToken(t *testing.T) {
	ctx := context.Background()

	t.Run("garbage", func(t *testing.T) {
		svc, _, _ := newService(t)
		_, err := svc.ValidateToken(ctx, "not-a-jwt")
		assert.ErrorIs(t, err, xerrors.ErrUnauthorized)
	})

	t.Run("session gone", func(t *testing.T) {
		svc, store, _ := newService(t)
		resp, err := svc.CreateSession(ctx, createRequest("u1"), "", "")
		require.NoError(t, err)

		_, err = store.DestroyAllForUser(ctx, "u1")
		require.NoError(t, err)

		_, err = svc.ValidateToken(ctx, resp.AccessToken)
		assert.ErrorIs(t, err, xerrors.ErrSessionExpired)
	})

	t.Run("redis down", func(t *testing.T) {
		svc, _, mr := newService(t)
		resp, err := svc.CreateSession(ctx, createRequest("u1"), "", "")
		require.NoError(t, err)

		mr.Close()
		_, err = svc.ValidateToken(ctx, resp.AccessToken)
		assert.ErrorIs(t, err, xerrors.ErrUnavailable)
	})
}

func TestLogout(t *testing.T) {
	svc, _, mr := newService(t)
	ctx := context.Background()

	resp, err := svc.CreateSession(ctx, createRequest("u1"), "", "")
	require.NoError(t, err)
	claims, err := svc.ValidateToken(ctx, resp.AccessToken)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, claims))
	assert.False(t, mr.Exists("session:"+resp.SessionID))
	assert.True(t, mr.Exists("blacklisted_tokens:"+claims.ID))

	_, err = svc.ValidateToken(ctx, resp.AccessToken)
	assert.ErrorIs(t, err, xerrors.ErrTokenRevoked)
}

func TestLogoutAll(t *testing.T) {
	svc, store, _ := newService(t)
	ctx := context.Background()

	first, err := svc.CreateSession(ctx, createRequest("u1"), "", "")
	require.NoError(t, err)
	_, err = svc.CreateSession(ctx, createRequest("u1"), "", "")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(ctx, first.AccessToken)
	require.NoError(t, err)

	n, err := svc.LogoutAll(ctx, claims)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	users, err := store.ActiveUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
}
