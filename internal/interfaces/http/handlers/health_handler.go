package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// readinessTimeout bounds the whole dependency sweep, not each probe.
const readinessTimeout = 5 * time.Second

// HealthChecker probes one backing dependency.
type HealthChecker interface {
	// Name identifies the component in the readiness report.
	Name() string
	// Check returns nil when the component can serve.
	Check(ctx context.Context) error
}

// CheckerFunc adapts a bare probe function into a HealthChecker.
type CheckerFunc struct {
	ComponentName string
	Probe         func(ctx context.Context) error
}

func (c CheckerFunc) Name() string                    { return c.ComponentName }
func (c CheckerFunc) Check(ctx context.Context) error { return c.Probe(ctx) }

// HealthHandler serves the liveness and readiness endpoints.
type HealthHandler struct {
	checkers []HealthChecker
	version  string
	startAt  time.Time
}

// NewHealthHandler creates a HealthHandler probing the given dependencies.
func NewHealthHandler(version string, checkers ...HealthChecker) *HealthHandler {
	return &HealthHandler{
		checkers: checkers,
		version:  version,
		startAt:  time.Now(),
	}
}

// ComponentCheck reports one dependency's probe outcome.
type ComponentCheck struct {
	Status    string `json:"status"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// RegisterRoutes registers the probe routes on the engine root, outside the
// API group so they bypass auth and rate limiting.
func (h *HealthHandler) RegisterRoutes(e *gin.Engine) {
	e.GET("/healthz", h.Liveness)
	e.GET("/readyz", h.Readiness)
}

// Liveness reports that the process is up. It never consults dependencies:
// a dead redis should trigger alerts, not a kubelet restart loop.
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": h.version,
		"uptime":  time.Since(h.startAt).Round(time.Second).String(),
	})
}

// Readiness probes every dependency in parallel and reports per-component
// results. Any failing probe flips the status to 503 so load balancers stop
// routing here.
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	checks := make(map[string]ComponentCheck, len(h.checkers))
	var mu sync.Mutex
	var wg sync.WaitGroup
	ready := true

	for _, checker := range h.checkers {
		wg.Add(1)
		go func(ck HealthChecker) {
			defer wg.Done()
			start := time.Now()
			err := ck.Check(ctx)
			result := ComponentCheck{
				Status:    "up",
				LatencyMs: time.Since(start).Milliseconds(),
			}
			if err != nil {
				result.Status = "down"
				result.Error = err.Error()
			}

			mu.Lock()
			checks[ck.Name()] = result
			if err != nil {
				ready = false
			}
			mu.Unlock()
		}(checker)
	}
	wg.Wait()

	status := http.StatusOK
	state := "ready"
	if !ready {
		status = http.StatusServiceUnavailable
		state = "not_ready"
	}
	c.JSON(status, gin.H{
		"status":  state,
		"version": h.version,
		"checks":  checks,
	})
}
