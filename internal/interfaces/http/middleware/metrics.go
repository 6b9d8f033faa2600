package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/opentenancy/caseintel/internal/infrastructure/monitoring/prometheus"
)

// Metrics records one observation per request. The route template
// (/api/v1/documents/:id) is used as the path label rather than the raw
// URL so IDs do not explode label cardinality.
func Metrics(m *prometheus.AppMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		prometheus.RecordHTTPRequest(m,
			c.Request.Method,
			route,
			c.Writer.Status(),
			time.Since(start),
			c.Request.ContentLength,
			int64(c.Writer.Size()),
		)
	}
}
