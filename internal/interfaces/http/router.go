// Package http assembles the gin engine for the API server: the middleware
// chain, the versioned API routes, and the operational endpoints.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/opentenancy/caseintel/internal/infrastructure/monitoring/logging"
	"github.com/opentenancy/caseintel/internal/infrastructure/monitoring/prometheus"
	"github.com/opentenancy/caseintel/internal/interfaces/http/handlers"
	"github.com/opentenancy/caseintel/internal/interfaces/http/middleware"
	"github.com/opentenancy/caseintel/pkg/errors"
	"github.com/opentenancy/caseintel/pkg/types/common"
)

// probePaths bypass auth and rate limiting so orchestrators and scrapers
// are never locked out.
var probePaths = []string{"/healthz", "/readyz", "/metrics"}

// RouterConfig bundles everything the router mounts. Nil handlers skip
// their routes, which keeps tests small.
type RouterConfig struct {
	Documents *handlers.DocumentHandler
	Cases     *handlers.CaseHandler
	Search    *handlers.SearchHandler
	Health    *handlers.HealthHandler

	Logger  logging.Logger
	Metrics *prometheus.AppMetrics

	// Collector serves the /metrics scrape endpoint when set.
	Collector prometheus.MetricsCollector

	// Mode selects the gin mode: debug, release, or test.
	Mode string

	Logging middleware.LoggingConfig
	CORS    middleware.CORSConfig

	// APIKeys enables static key auth on the API group when non-empty.
	APIKeys []string

	// RateLimiter enables rate limiting when set.
	RateLimiter middleware.RateLimiter
}

// NewRouter builds the engine. Middleware order is fixed: request identity
// first so every later stage can tag its output, recovery inside logging so
// panics still produce a request line, then CORS, metrics, and the
// policy layers.
func NewRouter(cfg RouterConfig) *gin.Engine {
	switch cfg.Mode {
	case gin.DebugMode:
		gin.SetMode(gin.DebugMode)
	case gin.TestMode:
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.ContextWithFallback = true

	engine.Use(middleware.RequestID())
	engine.Use(middleware.RequestLogging(cfg.Logger, cfg.Logging))
	engine.Use(middleware.Recovery(cfg.Logger))
	engine.Use(middleware.CORS(cfg.CORS))
	engine.Use(middleware.Metrics(cfg.Metrics))
	if cfg.RateLimiter != nil {
		engine.Use(middleware.RateLimit(cfg.Logger, middleware.RateLimitConfig{
			Limiter:   cfg.RateLimiter,
			SkipPaths: probePaths,
		}))
	}

	if cfg.Health != nil {
		cfg.Health.RegisterRoutes(engine)
	}
	if cfg.Collector != nil {
		engine.GET("/metrics", gin.WrapH(cfg.Collector.Handler()))
	}

	api := engine.Group("/api/v1")
	if len(cfg.APIKeys) > 0 {
		api.Use(middleware.APIKeyAuth(cfg.APIKeys))
	}
	if cfg.Documents != nil {
		cfg.Documents.RegisterRoutes(api)
	}
	if cfg.Cases != nil {
		cfg.Cases.RegisterRoutes(api)
	}
	if cfg.Search != nil {
		cfg.Search.RegisterRoutes(api)
	}

	engine.NoRoute(func(c *gin.Context) {
		resp := common.NewErrorResponse(
			errors.ErrCodeNotFound.String(),
			"route not found",
		)
		resp.RequestID = middleware.RequestIDFromContext(c)
		c.JSON(http.StatusNotFound, resp)
	})

	return engine
}
