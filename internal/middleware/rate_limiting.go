package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RateLimitMiddleware limits requests per client IP within scope. A nil
// manager disables limiting.
func RateLimitMiddleware(manager *RateLimitManager, scope string, policy RateLimitPolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		if manager == nil || c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		limiter := manager.Limiter(scope, c.ClientIP(), policy)
		if limiter == nil {
			c.Next()
			return
		}

		if !limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "too many requests, please try again later",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
