package api

import (
	"strconv"
	"strings"
	"time"

	"bazap-service/internal/service"
	"bazap-service/internal/util"

	"github.com/gin-gonic/gin"
)

const (
	ctxUserID   = "userID"
	ctxUsername = "username"
	ctxRole     = "role"

	// anonymousUserID attributes unauthenticated actions to the system user
	anonymousUserID = int64(1)
)

// authMiddleware resolves the bearer token when present. Requests without a
// valid token proceed as the system user, matching the kiosk deployments
// where the app runs without individual logins.
func authMiddleware(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ctxUserID, anonymousUserID)

		header := c.GetHeader("Authorization")
		if strings.HasPrefix(header, "Bearer ") {
			tokenStr := strings.TrimPrefix(header, "Bearer ")
			if claims, err := authService.ValidateAccess(tokenStr); err == nil {
				c.Set(ctxUserID, claims.UserID)
				c.Set(ctxUsername, claims.Username)
				c.Set(ctxRole, claims.Role)
			}
		}

		c.Next()
	}
}

// currentUserID returns the acting user for the request
func currentUserID(c *gin.Context) int64 {
	if v, ok := c.Get(ctxUserID); ok {
		if id, ok := v.(int64); ok {
			return id
		}
	}
	return anonymousUserID
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
