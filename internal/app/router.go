// internal/app/router.go
package app

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	authHandler "session-service/internal/handlers/auth"
	sessionHandler "session-service/internal/handlers/session"
	wsHandler "session-service/internal/handlers/websocket"
	"session-service/internal/middleware"
	"session-service/internal/pkg/response"
)

type Handlers struct {
	SessionHandler *sessionHandler.SessionHandler
	AuthHandler    *authHandler.AuthHandler
	WSHandler      *wsHandler.WebSocketHandler
	AuthMiddleware *middleware.AuthMiddleware
	ServiceAuth    gin.HandlerFunc
	RefreshLimit   gin.HandlerFunc
	Metrics        http.Handler
	Health         func(ctx context.Context) error
}

func SetupRouter(r *gin.Engine, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", func(c *gin.Context) {
		if err := h.Health(c.Request.Context()); err != nil {
			response.ServiceUnavailable(c, "unhealthy", err)
			return
		}
		response.Success(c, http.StatusOK, "ok", gin.H{"status": "ok"})
	})

	// ==================== Metrics ====================
	r.GET("/metrics", gin.WrapH(h.Metrics))

	// ==================== WebSocket ====================
	r.GET("/ws", h.AuthMiddleware.Auth(), h.WSHandler.HandleConnection)

	// ==================== Sessions (collaborators) ====================
	sessions := api.Group("/sessions")
	{
		sessions.POST("", h.SessionHandler.Validate)
		sessions.PUT("", h.SessionHandler.Extend)
	}

	// ==================== Sessions (admin) ====================
	sessionsAdmin := api.Group("/sessions")
	sessionsAdmin.Use(h.AuthMiddleware.AdminOnly()...)
	{
		sessionsAdmin.GET("", h.SessionHandler.List)
		sessionsAdmin.DELETE("", h.SessionHandler.Delete)
		sessionsAdmin.GET("/active-users", h.SessionHandler.ActiveUsers)
		sessionsAdmin.GET("/stats", h.SessionHandler.Stats)
		sessionsAdmin.GET("/events", h.SessionHandler.Events)
		sessionsAdmin.GET("/ws-stats", h.WSHandler.GetStats)
	}

	// ==================== Service Auth Routes ====================
	authService := api.Group("/auth")
	authService.Use(h.ServiceAuth)
	{
		authService.POST("/sessions", h.AuthHandler.CreateSession)
	}

	// ==================== Public Auth Routes ====================
	authPublic := api.Group("/auth")
	{
		authPublic.POST("/refresh", h.RefreshLimit, h.AuthHandler.Refresh)
	}

	// ==================== Authenticated Auth Routes ====================
	authProtected := api.Group("/auth")
	authProtected.Use(h.AuthMiddleware.Auth())
	{
		authProtected.POST("/logout", h.AuthHandler.Logout)
		authProtected.POST("/logout-all", h.AuthHandler.LogoutAll)
	}
}
