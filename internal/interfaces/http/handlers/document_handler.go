package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/opentenancy/caseintel/internal/application/intake"
	"github.com/opentenancy/caseintel/internal/infrastructure/monitoring/logging"
	"github.com/opentenancy/caseintel/pkg/types/common"
)

// DocumentHandler handles HTTP requests for document intake and inspection.
type DocumentHandler struct {
	intakeSvc intake.Service
	logger    logging.Logger
}

// NewDocumentHandler creates a new DocumentHandler.
func NewDocumentHandler(intakeSvc intake.Service, logger logging.Logger) *DocumentHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &DocumentHandler{intakeSvc: intakeSvc, logger: logger}
}

// IngestRequest is the request body for submitting a document.
type IngestRequest struct {
	CaseID     string     `json:"case_id"`
	Filename   string     `json:"filename"`
	Text       string     `json:"text"`
	UploadedAt *time.Time `json:"uploaded_at,omitempty"`
}

// ClassifyRequest is the request body for a dry-run classification.
type ClassifyRequest struct {
	Filename string `json:"filename"`
	Text     string `json:"text"`
}

// RegisterRoutes registers document routes on the API group.
func (h *DocumentHandler) RegisterRoutes(g *gin.RouterGroup) {
	g.POST("/documents", h.Ingest)
	g.GET("/documents/:id", h.Get)
	g.GET("/documents/:id/fields", h.Fields)
	g.POST("/documents/:id/reprocess", h.Reprocess)
	g.POST("/classify", h.Classify)
}

// Ingest accepts a document and runs it through the pipeline. The document
// is durable when the 202 goes out; indexing and events may still be in
// flight.
func (h *DocumentHandler) Ingest(c *gin.Context) {
	var req IngestRequest
	if !bindJSON(c, &req) {
		return
	}

	input := &intake.IngestInput{
		CaseID:   common.CaseID(req.CaseID),
		Filename: req.Filename,
		Text:     req.Text,
		Source:   intake.SourceAPI,
	}
	if req.UploadedAt != nil {
		input.UploadedAt = *req.UploadedAt
	}

	result, err := h.intakeSvc.IngestDocument(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusAccepted, result)
}

// Get returns one document with its classification, entities, and fields.
func (h *DocumentHandler) Get(c *gin.Context) {
	view, err := h.intakeSvc.GetDocument(c.Request.Context(), common.ID(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, view)
}

// Fields returns the extracted fields of one document grouped by category,
// the shape tenant-facing clients render directly.
func (h *DocumentHandler) Fields(c *gin.Context) {
	view, err := h.intakeSvc.GetDocument(c.Request.Context(), common.ID(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, view.Fields.ToMap())
}

// Reprocess reruns the pipeline over a document's archived text. Version
// increments on success.
func (h *DocumentHandler) Reprocess(c *gin.Context) {
	result, err := h.intakeSvc.Reprocess(c.Request.Context(), common.ID(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusAccepted, result)
}

// Classify classifies and extracts without persisting anything.
func (h *DocumentHandler) Classify(c *gin.Context) {
	var req ClassifyRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.intakeSvc.Classify(c.Request.Context(), &intake.ClassifyInput{
		Filename: req.Filename,
		Text:     req.Text,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, result)
}
