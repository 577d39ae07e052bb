package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"ridehail/internal/realtime"
)

const (
	UserIDHeader   = "X-User-ID"
	UserRoleHeader = "X-User-Role"

	userIDKey   = "identity.user_id"
	userRoleKey = "identity.role"
)

// Identity reads the caller identity asserted by the upstream gateway.
// Authentication happens before requests reach this service.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := strings.TrimSpace(c.GetHeader(UserIDHeader)); id != "" {
			c.Set(userIDKey, id)
		}
		if role := parseRole(c.GetHeader(UserRoleHeader)); role != "" {
			c.Set(userRoleKey, role)
		}
		c.Next()
	}
}

// UserID returns the caller's user id, or "" for anonymous requests.
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// Role returns the caller's role, or "" when none was asserted.
func Role(c *gin.Context) realtime.Role {
	role, _ := c.Get(userRoleKey)
	r, _ := role.(realtime.Role)
	return r
}

func parseRole(raw string) realtime.Role {
	switch role := realtime.Role(strings.ToLower(strings.TrimSpace(raw))); role {
	case realtime.RolePassenger, realtime.RoleDriver, realtime.RoleAdmin:
		return role
	}
	return ""
}
