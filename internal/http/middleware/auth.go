// README: Auth middleware: bearer token to caller identity, plus role guards.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cabdispatch/internal/infra"
	"cabdispatch/internal/types"
)

const callerKey = "caller"

// ActiveChecker reports whether a user may still act. Deactivated users keep
// valid tokens until expiry, so every request is checked.
type ActiveChecker interface {
	IsActive(ctx context.Context, userID types.ID) (bool, error)
}

func Auth(verifier infra.TokenVerifier, users ActiveChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			abort(c, http.StatusUnauthorized, "missing bearer token")
			return
		}
		id, err := verifier.VerifyToken(c.Request.Context(), strings.TrimSpace(raw))
		if err != nil {
			abort(c, http.StatusUnauthorized, "invalid token")
			return
		}
		if users != nil {
			active, err := users.IsActive(c.Request.Context(), id.UserID)
			if err != nil {
				abort(c, http.StatusInternalServerError, "internal error")
				return
			}
			if !active {
				abort(c, http.StatusUnauthorized, "account is inactive")
				return
			}
		}
		c.Set(callerKey, id.Caller())
		c.Next()
	}
}

// Caller returns the identity stored by Auth.
func Caller(c *gin.Context) (types.Caller, bool) {
	v, ok := c.Get(callerKey)
	if !ok {
		return types.Caller{}, false
	}
	caller, ok := v.(types.Caller)
	return caller, ok
}

// RequireRole rejects callers whose role is not listed. It must run after Auth.
func RequireRole(roles ...types.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := Caller(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "unauthenticated")
			return
		}
		for _, r := range roles {
			if caller.Role == r {
				c.Next()
				return
			}
		}
		abort(c, http.StatusForbidden, "role not allowed")
	}
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
