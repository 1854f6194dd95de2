package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"animeranker/pkg/models"
)

const CtxUserIDKey = "auth_user_id"

// Identity resolves the caller. Without an Authorization header the request
// runs as the pseudo-user; a bearer token that does not verify is rejected.
func Identity(tokens TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := strings.TrimSpace(c.GetHeader("Authorization"))
		if h == "" {
			c.Set(CtxUserIDKey, models.DefaultUserID)
			c.Next()
			return
		}

		if len(h) < len("Bearer ") || !strings.EqualFold(h[:len("Bearer ")], "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "malformed authorization header"})
			return
		}

		raw := strings.TrimSpace(h[len("Bearer "):])
		claims, err := tokens.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(CtxUserIDKey, claims.UserID)
		c.Next()
	}
}

// UserID returns the identity resolved by Identity, or the pseudo-user when
// the middleware did not run.
func UserID(c *gin.Context) string {
	if v, ok := c.Get(CtxUserIDKey); ok {
		if id, _ := v.(string); id != "" {
			return id
		}
	}
	return models.DefaultUserID
}

// RequestUser picks the explicit userId query parameter, falling back to the
// identity resolved for the request.
func RequestUser(c *gin.Context) string {
	if u := strings.TrimSpace(c.Query("userId")); u != "" {
		return u
	}
	return UserID(c)
}
