// internal/middleware/rate_limit_middleware.go
package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"session-service/internal/pkg/response"
)

// Limiter counts attempts per scope and subject.
type Limiter interface {
	Allow(ctx context.Context, scope, subject string) (bool, int64, error)
}

// RateLimitByIP rejects callers that exceed the limiter's window for scope.
// A limiter failure lets the request through.
func RateLimitByIP(limiter Limiter, scope string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, remaining, err := limiter.Allow(c.Request.Context(), scope, c.ClientIP())
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.String("scope", scope), zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		if !allowed {
			response.Error(c, http.StatusTooManyRequests, "too many requests", nil)
			return
		}
		c.Next()
	}
}
