package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/taskboard/taskboard/internal/auth"
)

// Context keys set by IdentityMiddleware
const (
	UserIDKey    = "user_id"
	SessionIDKey = "session_id"
	RoleKey      = "role"
)

// RoleAdmin is the global role allowed into the admin API
const RoleAdmin = "admin"

// IdentityMiddleware reads the bearer token issued by the identity service and stores the
// acting user, session, and role in the context. Requests without a valid token pass
// through anonymously; RequireIdentity enforces authentication where needed.
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.Next()
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if token == "" {
			c.Next()
			return
		}

		claims, err := auth.ValidateJWT(token)
		if err != nil {
			c.Set("auth_error", err.Error())
			c.Next()
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(SessionIDKey, claims.SessionID())
		c.Set(RoleKey, claims.Role)
		c.Next()
	}
}

// RequireIdentity aborts with 401 unless IdentityMiddleware resolved a user
func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := UserID(c); !ok {
			msg := "Authentication required"
			if reason := c.GetString("auth_error"); reason != "" {
				msg = "Invalid credentials"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}
		c.Next()
	}
}

// RequireRole aborts with 403 unless the token carries role
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(RoleKey) != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated user's id
func UserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok && id > 0
}
