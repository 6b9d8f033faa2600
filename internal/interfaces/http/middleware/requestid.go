// Package middleware provides the gin middleware chain for the HTTP API:
// request identity, structured request logging, panic recovery, CORS,
// API-key auth, redis-backed rate limiting, and per-route metrics.
package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/opentenancy/caseintel/pkg/types/common"
)

// HeaderRequestID is the header carrying the request correlation ID.
const HeaderRequestID = "X-Request-ID"

// RequestID ensures every request carries a correlation ID. A caller-supplied
// X-Request-ID is kept so IDs survive proxy hops; otherwise a fresh UUID is
// assigned. The ID is stored on the gin context and the request context, and
// echoed back on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > 128 {
			id = uuid.New().String()
		}

		c.Set(string(common.ContextKeyRequestID), id)
		ctx := context.WithValue(c.Request.Context(), common.ContextKeyRequestID, id)
		c.Request = c.Request.WithContext(ctx)
		c.Writer.Header().Set(HeaderRequestID, id)

		c.Next()
	}
}

// RequestIDFromContext returns the correlation ID stashed by RequestID,
// or "" when the middleware did not run.
func RequestIDFromContext(c *gin.Context) string {
	if v, ok := c.Get(string(common.ContextKeyRequestID)); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
