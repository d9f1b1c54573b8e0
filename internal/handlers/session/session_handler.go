// internal/handlers/session/session_handler.go
package session

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	domain "session-service/internal/domain/session"
	"session-service/internal/pkg/response"
)

// maxExtendBy is the largest extendBy, in seconds, a time.Duration can hold.
const maxExtendBy = math.MaxInt64 / int64(time.Second)

// Store is the subset of the session store the HTTP surface delegates to.
type Store interface {
	Get(ctx context.Context, sessionID string) (*domain.Record, error)
	Destroy(ctx context.Context, sessionID string) (bool, error)
	DestroyAllForUser(ctx context.Context, userID string) (int, error)
	ListForUser(ctx context.Context, userID string) ([]domain.Summary, error)
	ActiveUsers(ctx context.Context) ([]string, error)
	CountActive(ctx context.Context) (int, error)
	CleanupExpired(ctx context.Context) (int, error)
	Extend(ctx context.Context, sessionID string, by time.Duration) (bool, error)
	Stats(ctx context.Context) (*domain.Stats, error)
}

// EventLister reads the audit trail. It is nil when auditing is disabled.
type EventLister interface {
	List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditEntry, error)
}

type SessionHandler struct {
	store  Store
	events EventLister
	logger *zap.Logger
}

func NewSessionHandler(store Store, events EventLister, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		store:  store,
		events: events,
		logger: logger,
	}
}

// List returns one user's sessions when userId is given, otherwise the
// aggregate counts.
func (h *SessionHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	if userID := strings.TrimSpace(c.Query("userId")); userID != "" {
		sessions, err := h.store.ListForUser(ctx, userID)
		if err != nil {
			h.logger.Error("failed to list user sessions", zap.String("user_id", userID), zap.Error(err))
			response.StoreError(c, "failed to list sessions", err)
			return
		}
		response.Success(c, http.StatusOK, "sessions retrieved", domain.UserSessionsResponse{
			UserID:   userID,
			Sessions: sessions,
			Total:    len(sessions),
		})
		return
	}

	users, err := h.store.ActiveUsers(ctx)
	if err != nil {
		h.logger.Error("failed to read active users", zap.Error(err))
		response.StoreError(c, "failed to read session counts", err)
		return
	}
	count, err := h.store.CountActive(ctx)
	if err != nil {
		h.logger.Error("failed to count sessions", zap.Error(err))
		response.StoreError(c, "failed to read session counts", err)
		return
	}

	response.Success(c, http.StatusOK, "session counts retrieved", domain.CountsResponse{
		ActiveUsers:    len(users),
		ActiveSessions: count,
	})
}

// Validate confirms a session is live and returns its safe projection.
// Validation counts as activity on the session.
func (h *SessionHandler) Validate(c *gin.Context) {
	var req domain.ValidateRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		response.ValidationError(c, "session ID is required", nil)
		return
	}

	record, err := h.store.Get(c.Request.Context(), sessionID)
	if err != nil {
		h.logger.Error("failed to validate session", zap.String("session_id", sessionID), zap.Error(err))
		response.StoreError(c, "failed to validate session", err)
		return
	}
	if record == nil {
		response.Error(c, http.StatusUnauthorized, "invalid or expired session", nil, domain.ValidateResponse{Valid: false})
		return
	}

	response.Success(c, http.StatusOK, "session is valid", domain.ValidateResponse{
		Valid:   true,
		Session: record.View(),
	})
}

// Extend renews a session TTL, by extendBy seconds or the default lifetime.
func (h *SessionHandler) Extend(c *gin.Context) {
	var req domain.ExtendRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		response.ValidationError(c, "session ID is required", nil)
		return
	}
	if req.ExtendBy < 0 {
		response.ValidationError(c, "extendBy must not be negative", nil)
		return
	}
	if req.ExtendBy > maxExtendBy {
		response.ValidationError(c, "extendBy is too large", nil)
		return
	}

	extended, err := h.store.Extend(c.Request.Context(), sessionID, time.Duration(req.ExtendBy)*time.Second)
	if err != nil {
		h.logger.Error("failed to extend session", zap.String("session_id", sessionID), zap.Error(err))
		response.StoreError(c, "failed to extend session", err)
		return
	}
	if !extended {
		response.ValidationError(c, "failed to extend session", errors.New("session not found or expired"))
		return
	}

	response.Success(c, http.StatusOK, "session extended", gin.H{"extended": true})
}

// Delete runs exactly one mode: cleanup when action=cleanup, else one
// session by sessionId, else every session of userId.
func (h *SessionHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()

	if c.Query("action") == "cleanup" {
		cleaned, err := h.store.CleanupExpired(ctx)
		if err != nil {
			h.logger.Error("session cleanup failed", zap.Error(err))
			response.StoreError(c, "failed to clean up sessions", err)
			return
		}
		response.Success(c, http.StatusOK, "expired sessions cleaned up", gin.H{"cleanedCount": cleaned})
		return
	}

	if sessionID := strings.TrimSpace(c.Query("sessionId")); sessionID != "" {
		destroyed, err := h.store.Destroy(ctx, sessionID)
		if err != nil {
			h.logger.Error("failed to destroy session", zap.String("session_id", sessionID), zap.Error(err))
			response.StoreError(c, "failed to destroy session", err)
			return
		}
		if !destroyed {
			response.NotFound(c, "session not found")
			return
		}
		response.Success(c, http.StatusOK, "session destroyed", nil)
		return
	}

	if userID := strings.TrimSpace(c.Query("userId")); userID != "" {
		removed, err := h.store.DestroyAllForUser(ctx, userID)
		if err != nil {
			h.logger.Error("failed to destroy user sessions", zap.String("user_id", userID), zap.Error(err))
			response.StoreError(c, "failed to destroy user sessions", err)
			return
		}
		response.Success(c, http.StatusOK, "user sessions destroyed", gin.H{"removedCount": removed})
		return
	}

	response.ValidationError(c, "sessionId, userId or action=cleanup is required", nil)
}

// ActiveUsers returns the active-user registry.
func (h *SessionHandler) ActiveUsers(c *gin.Context) {
	users, err := h.store.ActiveUsers(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to read active users", zap.Error(err))
		response.StoreError(c, "failed to read active users", err)
		return
	}
	response.Success(c, http.StatusOK, "active users retrieved", domain.ActiveUsersResponse{
		Users: users,
		Total: len(users),
	})
}

// Stats returns cached session counts by device type.
func (h *SessionHandler) Stats(c *gin.Context) {
	stats, err := h.store.Stats(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to compute session stats", zap.Error(err))
		response.StoreError(c, "failed to compute session stats", err)
		return
	}
	response.Success(c, http.StatusOK, "session stats retrieved", stats)
}

// Events lists audit entries filtered by userId, sessionId and type.
func (h *SessionHandler) Events(c *gin.Context) {
	if h.events == nil {
		response.NotFound(c, "session audit trail is not enabled")
		return
	}

	filter := domain.AuditFilter{
		UserID:    strings.TrimSpace(c.Query("userId")),
		SessionID: strings.TrimSpace(c.Query("sessionId")),
		Limit:     parseLimit(c.Query("limit"), 100, 1000),
	}
	for _, t := range c.QueryArray("type") {
		for _, part := range strings.Split(t, ",") {
			if part = strings.TrimSpace(part); part != "" {
				filter.Types = append(filter.Types, domain.EventType(part))
			}
		}
	}

	entries, err := h.events.List(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list session events", zap.Error(err))
		response.Error(c, http.StatusServiceUnavailable, "failed to list session events", err)
		return
	}
	response.Success(c, http.StatusOK, "session events retrieved", domain.AuditEventsResponse{
		Events: entries,
		Total:  len(entries),
	})
}

// bindOptionalJSON decodes the body when present. An empty body leaves dst
// zeroed so the caller reports the missing field.
func bindOptionalJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		response.ValidationError(c, "invalid request body", err)
		return false
	}
	return true
}

func parseLimit(raw string, fallback, max int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	if n > max {
		return max
	}
	return n
}
