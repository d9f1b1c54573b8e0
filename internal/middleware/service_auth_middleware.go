// internal/middleware/service_auth_middleware.go
package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	"session-service/internal/pkg/response"
)

// ServiceKeyHeader carries the shared credential of trusted collaborators.
const ServiceKeyHeader = "X-Service-Key"

// ServiceAuth admits only callers presenting the shared service key.
// Roles on sessions created behind it are copied into access tokens.
// An empty key rejects every caller.
func ServiceAuth(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			response.Forbidden(c, "session issuing is disabled")
			return
		}

		presented := c.GetHeader(ServiceKeyHeader)
		if presented == "" {
			response.Unauthorized(c, "missing service credential")
			return
		}
		if subtle.ConstantTimeCompare([]byte(presented), []byte(key)) != 1 {
			response.Unauthorized(c, "invalid service credential")
			return
		}
		c.Next()
	}
}
