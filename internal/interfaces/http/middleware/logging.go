package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/opentenancy/caseintel/internal/infrastructure/monitoring/logging"
)

// LoggingConfig controls the request logging middleware.
type LoggingConfig struct {
	// SkipPaths are matched against the raw request path and logged at
	// debug level only. Health and metrics scrapes go here.
	SkipPaths []string

	// SlowThreshold promotes otherwise-successful requests to warn level
	// when they exceed it.
	SlowThreshold time.Duration
}

// DefaultLoggingConfig returns the logging configuration used by the API
// server: probes are suppressed and requests over three seconds are
// flagged slow.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		SkipPaths:     []string{"/healthz", "/readyz", "/metrics"},
		SlowThreshold: 3 * time.Second,
	}
}

// RequestLogging emits one structured log line per request. Level follows
// the outcome: 5xx at error, 4xx at warn, slow requests at warn, the rest
// at info.
func RequestLogging(log logging.Logger, cfg LoggingConfig) gin.HandlerFunc {
	if log == nil {
		log = logging.NewNopLogger()
	}
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		fields := []logging.Field{
			logging.String("request_id", RequestIDFromContext(c)),
			logging.String("method", c.Request.Method),
			logging.String("path", path),
			logging.Int("status", status),
			logging.Duration("duration", duration),
			logging.Int("bytes", c.Writer.Size()),
			logging.String("client_ip", c.ClientIP()),
		}
		if query != "" {
			fields = append(fields, logging.String("query", query))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, logging.String("errors", c.Errors.String()))
		}

		if _, ok := skip[path]; ok {
			log.Debug("http request", fields...)
			return
		}

		switch {
		case status >= 500:
			log.Error("http request", fields...)
		case status >= 400:
			log.Warn("http request", fields...)
		case cfg.SlowThreshold > 0 && duration > cfg.SlowThreshold:
			fields = append(fields, logging.Bool("slow", true))
			log.Warn("http request", fields...)
		default:
			log.Info("http request", fields...)
		}
	}
}
