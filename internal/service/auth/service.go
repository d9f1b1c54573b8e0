// internal/service/auth/service.go
package auth

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	domain "session-service/internal/domain/session"
	xerrors "session-service/internal/pkg/errors"
	"session-service/internal/pkg/jwt"
	"session-service/internal/pkg/session"
)

// AuthService issues and revokes the tokens that front a stored session.
// Credentials are checked by the login collaborator before CreateSession.
type AuthService struct {
	store       *session.Store
	tokens      *session.TokenStore
	jwtManager  *jwt.Manager
	rememberTTL time.Duration
	logger      *zap.Logger
}

func NewAuthService(
	store *session.Store,
	tokens *session.TokenStore,
	jwtManager *jwt.Manager,
	rememberTTL time.Duration,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		store:       store,
		tokens:      tokens,
		jwtManager:  jwtManager,
		rememberTTL: rememberTTL,
		logger:      logger,
	}
}

// CreateSession stores a session for an authenticated user and returns an
// access token bound to it plus a refresh token.
func (s *AuthService) CreateSession(ctx context.Context, req *domain.CreateSessionRequest, ipAddress, userAgent string) (*domain.TokenResponse, error) {
	info := domain.ClientInfo{
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		DeviceInfo: req.DeviceInfo,
	}
	if req.Remember {
		info.TTL = s.rememberTTL
	}

	sessionID, err := s.store.Create(ctx, req.User, info)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	access, err := s.issueAccessToken(req.User, sessionID)
	if err != nil {
		s.rollback(ctx, sessionID)
		return nil, err
	}

	refresh, err := s.tokens.IssueRefreshToken(ctx, sessionID)
	if err != nil {
		s.rollback(ctx, sessionID)
		return nil, fmt.Errorf("failed to issue refresh token: %w", err)
	}

	s.logger.Info("session opened",
		zap.String("session_id", sessionID),
		zap.String("user_id", req.User.ID),
		zap.String("ip", ipAddress),
	)

	return s.tokenResponse(sessionID, access, refresh), nil
}

// Refresh rotates a refresh token and issues a new access token for the
// same session. The session must still be live.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenResponse, error) {
	sessionID, next, err := s.tokens.RotateRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to rotate refresh token: %w", err)
	}
	if sessionID == "" {
		return nil, xerrors.ErrUnauthorized
	}

	record, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if record == nil {
		if err := s.tokens.RevokeRefreshToken(ctx, next); err != nil {
			s.logger.Warn("failed to revoke refresh token of expired session",
				zap.String("session_id", sessionID),
				zap.Error(err),
			)
		}
		return nil, xerrors.ErrSessionExpired
	}

	access, err := s.issueAccessToken(record.User, sessionID)
	if err != nil {
		return nil, err
	}
	return s.tokenResponse(sessionID, access, next), nil
}

// Logout destroys the token's session and revokes the token until it
// would have expired on its own.
func (s *AuthService) Logout(ctx context.Context, claims *jwt.Claims) error {
	if _, err := s.store.Destroy(ctx, claims.SessionID); err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}

	var remaining time.Duration
	if claims.ExpiresAt != nil {
		remaining = time.Until(claims.ExpiresAt.Time)
	}
	if err := s.tokens.BlacklistToken(ctx, claims.ID, remaining); err != nil {
		return fmt.Errorf("failed to blacklist token: %w", err)
	}
	return nil
}

// LogoutAll destroys every session of the user.
func (s *AuthService) LogoutAll(ctx context.Context, claims *jwt.Claims) (int, error) {
	n, err := s.store.DestroyAllForUser(ctx, claims.UserID)
	if err != nil {
		return 0, fmt.Errorf("failed to destroy sessions: %w", err)
	}

	var remaining time.Duration
	if claims.ExpiresAt != nil {
		remaining = time.Until(claims.ExpiresAt.Time)
	}
	if err := s.tokens.BlacklistToken(ctx, claims.ID, remaining); err != nil {
		return n, fmt.Errorf("failed to blacklist token: %w", err)
	}
	return n, nil
}

// ValidateToken validates a JWT token and the session behind it
func (s *AuthService) ValidateToken(ctx context.Context, token string) (*jwt.Claims, error) {
	claims, err := s.jwtManager.Verifier.VerifyAccessToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", xerrors.ErrUnauthorized, err)
	}

	blacklisted, err := s.tokens.IsTokenBlacklisted(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if blacklisted {
		return nil, xerrors.ErrTokenRevoked
	}

	record, err := s.store.Get(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if record == nil || record.UserID != claims.UserID {
		return nil, xerrors.ErrSessionExpired
	}

	return claims, nil
}

func (s *AuthService) issueAccessToken(user domain.User, sessionID string) (*jwt.Token, error) {
	var roles []string
	if user.Role != "" {
		roles = []string{user.Role}
	}
	tok, err := s.jwtManager.Generator.GenerateAccessToken(user.ID, sessionID, roles, user.Permissions)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	return tok, nil
}

func (s *AuthService) tokenResponse(sessionID string, access *jwt.Token, refresh string) *domain.TokenResponse {
	return &domain.TokenResponse{
		SessionID:    sessionID,
		AccessToken:  access.Value,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.jwtManager.Generator.TTL().Seconds()),
	}
}

// rollback removes a session whose tokens could not be issued.
func (s *AuthService) rollback(ctx context.Context, sessionID string) {
	if _, err := s.store.Destroy(ctx, sessionID); err != nil {
		s.logger.Error("failed to roll back session",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}
}
