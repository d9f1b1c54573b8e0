// internal/handlers/auth/auth_handler.go
package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	domain "session-service/internal/domain/session"
	"session-service/internal/middleware"
	xerrors "session-service/internal/pkg/errors"
	"session-service/internal/pkg/response"
	authUsecase "session-service/internal/service/auth"
)

type AuthHandler struct {
	authService *authUsecase.AuthService
	logger      *zap.Logger
}

func NewAuthHandler(authService *authUsecase.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// ========== Session issue ==========

// CreateSession opens a session for a user the login collaborator has
// already authenticated.
func (h *AuthHandler) CreateSession(c *gin.Context) {
	var req domain.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	tokens, err := h.authService.CreateSession(c.Request.Context(), &req, c.ClientIP(), c.GetHeader("User-Agent"))
	if err != nil {
		h.logger.Error("session creation failed",
			zap.String("user_id", req.User.ID),
			zap.String("ip", c.ClientIP()),
			zap.Error(err),
		)
		h.fail(c, "session creation failed", err)
		return
	}

	response.Success(c, http.StatusCreated, "session created", tokens)
}

// Refresh exchanges a refresh token for a new token pair.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req domain.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	tokens, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.logger.Warn("token refresh failed", zap.String("ip", c.ClientIP()), zap.Error(err))
		h.fail(c, "token refresh failed", err)
		return
	}

	response.Success(c, http.StatusOK, "token refreshed", tokens)
}

// ========== Logout ==========

// Logout destroys the caller's session (requires auth)
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := middleware.MustGetClaims(c)

	if err := h.authService.Logout(c.Request.Context(), claims); err != nil {
		h.logger.Error("logout failed",
			zap.String("user_id", claims.UserID),
			zap.String("session_id", claims.SessionID),
			zap.Error(err),
		)
		h.fail(c, "logout failed", err)
		return
	}

	response.Success(c, http.StatusOK, "logout successful", nil)
}

// LogoutAll destroys every session of the caller (requires auth)
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	claims := middleware.MustGetClaims(c)

	removed, err := h.authService.LogoutAll(c.Request.Context(), claims)
	if err != nil {
		h.logger.Error("logout all failed", zap.String("user_id", claims.UserID), zap.Error(err))
		h.fail(c, "logout all failed", err)
		return
	}

	response.Success(c, http.StatusOK, "all sessions logged out", gin.H{"removedCount": removed})
}

func (h *AuthHandler) fail(c *gin.Context, message string, err error) {
	switch {
	case xerrors.Is(err, xerrors.ErrInvalidUser):
		response.Error(c, http.StatusBadRequest, message, err)
	case xerrors.Is(err, xerrors.ErrUnauthorized),
		xerrors.Is(err, xerrors.ErrSessionExpired),
		xerrors.Is(err, xerrors.ErrTokenRevoked):
		response.Error(c, http.StatusUnauthorized, message, err)
	default:
		response.StoreError(c, message, err)
	}
}
