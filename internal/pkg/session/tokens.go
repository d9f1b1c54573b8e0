// internal/pkg/session/tokens.go
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"

	xerrors "session-service/internal/pkg/errors"
)

const (
	refreshTokenPrefix = "refresh_token:"
	blacklistPrefix    = "blacklisted_tokens:"

	DefaultRefreshTTL = 30 * 24 * time.Hour
)

// TokenStore keeps refresh tokens and revoked access-token ids next to the
// sessions they belong to. Refresh tokens are stored only as digests.
type TokenStore struct {
	client     redis.UniversalClient
	refreshTTL time.Duration
}

func NewTokenStore(client redis.UniversalClient, refreshTTL time.Duration) *TokenStore {
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	return &TokenStore{client: client, refreshTTL: refreshTTL}
}

// IssueRefreshToken creates an opaque token bound to sessionID.
func (t *TokenStore) IssueRefreshToken(ctx context.Context, sessionID string) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate refresh token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(buf)

	if err := t.client.Set(ctx, refreshKey(token), sessionID, t.refreshTTL).Err(); err != nil {
		return "", xerrors.Unavailable(fmt.Errorf("failed to store refresh token: %w", err))
	}
	return token, nil
}

// ResolveRefreshToken returns the session bound to token, or "" if unknown.
func (t *TokenStore) ResolveRefreshToken(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", nil
	}
	sessionID, err := t.client.Get(ctx, refreshKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", xerrors.Unavailable(fmt.Errorf("failed to read refresh token: %w", err))
	}
	return sessionID, nil
}

// RotateRefreshToken consumes token and issues a replacement for the same
// session. An unknown token yields empty results.
func (t *TokenStore) RotateRefreshToken(ctx context.Context, token string) (sessionID, next string, err error) {
	if token == "" {
		return "", "", nil
	}
	sessionID, err = t.client.GetDel(ctx, refreshKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", "", nil
	}
	if err != nil {
		return "", "", xerrors.Unavailable(fmt.Errorf("failed to consume refresh token: %w", err))
	}

	next, err = t.IssueRefreshToken(ctx, sessionID)
	if err != nil {
		return "", "", err
	}
	return sessionID, next, nil
}

func (t *TokenStore) RevokeRefreshToken(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := t.client.Del(ctx, refreshKey(token)).Err(); err != nil {
		return xerrors.Unavailable(fmt.Errorf("failed to revoke refresh token: %w", err))
	}
	return nil
}

// BlacklistToken revokes an access token id until it would have expired.
func (t *TokenStore) BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" || ttl <= 0 {
		return nil
	}
	if err := t.client.Set(ctx, blacklistPrefix+jti, "1", ttl).Err(); err != nil {
		return xerrors.Unavailable(fmt.Errorf("failed to blacklist token: %w", err))
	}
	return nil
}

// IsTokenBlacklisted checks if a token is blacklisted
func (t *TokenStore) IsTokenBlacklisted(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	exists, err := t.client.Exists(ctx, blacklistPrefix+jti).Result()
	if err != nil {
		return false, xerrors.Unavailable(fmt.Errorf("failed to check blacklist: %w", err))
	}
	return exists > 0, nil
}

func refreshKey(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return refreshTokenPrefix + hex.EncodeToString(sum[:])
}
