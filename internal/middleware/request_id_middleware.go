package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"storefront-checkout-backend/pkg/logger"
	"storefront-checkout-backend/pkg/validator"
)

const RequestIDHeader = "X-Request-ID"

// RequestIDMiddleware tags the request context with an id that every log
// line of the request carries. Incoming ids are only reused when they look
// like a reference, so callers cannot inject arbitrary text into logs.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.Request.Header.Get(RequestIDHeader))
		if requestID == "" || !validator.ValidReference(requestID) {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header(RequestIDHeader, requestID)
		ctx := logger.ContextWithFields(c.Request.Context(), map[string]interface{}{"request_id": requestID})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
