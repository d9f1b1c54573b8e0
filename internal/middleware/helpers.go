// internal/middleware/helpers.go
package middleware

import (
	"github.com/gin-gonic/gin"

	"session-service/internal/pkg/jwt"
)

// GetClaims returns the verified claims set by Auth().
func GetClaims(c *gin.Context) (*jwt.Claims, bool) {
	v, exists := c.Get(claimsKey)
	if !exists {
		return nil, false
	}
	claims, ok := v.(*jwt.Claims)
	return claims, ok
}

// MustGetClaims gets the claims from context or panics
func MustGetClaims(c *gin.Context) *jwt.Claims {
	claims, ok := GetClaims(c)
	if !ok {
		panic("claims not found in context")
	}
	return claims
}

// GetUserID gets the authenticated user id from context
func GetUserID(c *gin.Context) (string, bool) {
	id := c.GetString("user_id")
	return id, id != ""
}

// GetRoles gets user roles from context
func GetRoles(c *gin.Context) []string {
	roles, exists := c.Get("roles")
	if !exists {
		return []string{}
	}

	rolesList, ok := roles.([]string)
	if !ok {
		return []string{}
	}

	return rolesList
}

// IsAdmin checks if the caller may administer sessions
func IsAdmin(c *gin.Context) bool {
	for _, r := range GetRoles(c) {
		if r == RoleSystemAdmin || r == RoleInstitutionManager {
			return true
		}
	}
	return false
}
