package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/opentenancy/caseintel/internal/application/casebuild"
	"github.com/opentenancy/caseintel/internal/infrastructure/monitoring/logging"
	"github.com/opentenancy/caseintel/pkg/types/common"
)

// CaseHandler handles HTTP requests for case snapshots.
type CaseHandler struct {
	caseSvc casebuild.Service
	logger  logging.Logger
}

// NewCaseHandler creates a new CaseHandler.
func NewCaseHandler(caseSvc casebuild.Service, logger logging.Logger) *CaseHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &CaseHandler{caseSvc: caseSvc, logger: logger}
}

// RegisterRoutes registers case routes on the API group.
func (h *CaseHandler) RegisterRoutes(g *gin.RouterGroup) {
	g.GET("/cases/:id", h.Get)
	g.POST("/cases/:id/rebuild", h.Rebuild)
}

// Get returns the aggregated snapshot for one case, served from cache when
// fresh.
func (h *CaseHandler) Get(c *gin.Context) {
	data, err := h.caseSvc.GetCase(c.Request.Context(), common.CaseID(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, data)
}

// Rebuild forces a fresh aggregation, bypassing and refreshing the cache.
func (h *CaseHandler) Rebuild(c *gin.Context) {
	data, err := h.caseSvc.RebuildCase(c.Request.Context(), common.CaseID(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, data)
}
