package auth

import (
	"net/http"
	"strings"

	"github.com/KevinKickass/OpenGCodeCore/internal/types"
	"github.com/gin-gonic/gin"
)

const (
	roleKey    = "role"
	subjectKey = "subject"
)

// Middleware validates bearer tokens. A nil handler lets every request
// through with the admin role, which is how a server without auth runs.
func Middleware(j *JWTHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		if j == nil {
			c.Set(roleKey, RoleAdmin)
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				types.NewErrorResponse("AUTH_401", "missing authorization header", nil))
			return
		}

		// "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				types.NewErrorResponse("AUTH_401", "invalid authorization header format", nil))
			return
		}

		claims, err := j.ValidateAccessToken(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				types.NewErrorResponse("AUTH_401", "invalid or expired token", nil))
			return
		}

		c.Set(roleKey, claims.Role)
		c.Set(subjectKey, claims.Subject)
		c.Next()
	}
}

// RequireRole rejects requests whose role does not include required.
func RequireRole(required Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := RoleFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden,
				types.NewErrorResponse("AUTH_403", "no role found", nil))
			return
		}
		if !role.Allows(required) {
			c.AbortWithStatusJSON(http.StatusForbidden,
				types.NewErrorResponse("AUTH_403", "insufficient permissions", gin.H{
					"required": string(required),
				}))
			return
		}
		c.Next()
	}
}

// RoleFrom extracts the role Middleware stored in the context.
func RoleFrom(c *gin.Context) (Role, bool) {
	v, exists := c.Get(roleKey)
	if !exists {
		return "", false
	}
	role, ok := v.(Role)
	return role, ok
}

func SubjectFrom(c *gin.Context) string {
	return c.GetString(subjectKey)
}
