package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const authorizationHeader = "Authorization"
const bearerPrefix = "Bearer "

type ctxKey int

const ctxService ctxKey = iota

func withService(ctx context.Context, service string) context.Context {
	return context.WithValue(ctx, ctxService, service)
}

// Service reports the verified calling service from the request context.
func Service(ctx context.Context) (string, error) {
	if s, ok := ctx.Value(ctxService).(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("service not in context")
}

// RequireServiceToken verifies a service token and injects the caller's name
// into the request context.
func RequireServiceToken(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(authorizationHeader))
		if raw == "" || !strings.HasPrefix(raw, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tok := strings.TrimPrefix(raw, bearerPrefix)

		claims, err := m.Verify(tok, time.Now())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Request = c.Request.WithContext(withService(c.Request.Context(), claims.Service))
		c.Set("service", claims.Service)

		c.Next()
	}
}
