package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/contentforge/studio/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

// AccessToken guards the local API with a shared token. An empty token
// leaves the API open, which is the default for a loopback-only daemon.
func AccessToken(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		got := extractToken(c)
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			response.Unauthorized(c)
			return
		}
		c.Next()
	}
}

// RequireSession rejects requests while no backend session is signed in.
func RequireSession(signedIn func() bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !signedIn() {
			response.UnauthorizedMsg(c, "sign in first")
			return
		}
		c.Next()
	}
}

func extractToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		return NormalizeToken(auth)
	}
	return NormalizeToken(c.Query("token"))
}

// NormalizeToken trims spaces and strips optional Bearer prefix.
func NormalizeToken(raw string) string {
	token := strings.TrimSpace(raw)
	if token == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		return strings.TrimSpace(token[7:])
	}
	return token
}
