package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/opentenancy/caseintel/internal/infrastructure/monitoring/logging"
	"github.com/opentenancy/caseintel/pkg/errors"
	"github.com/opentenancy/caseintel/pkg/types/common"
)

// DocumentSearcher is the slice of the search layer the handler needs.
type DocumentSearcher interface {
	Search(ctx context.Context, req *common.SearchRequest) (*common.SearchResult, error)
}

// SearchHandler handles full-text search over indexed documents.
type SearchHandler struct {
	searcher DocumentSearcher
	logger   logging.Logger
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(searcher DocumentSearcher, logger logging.Logger) *SearchHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &SearchHandler{searcher: searcher, logger: logger}
}

// RegisterRoutes registers search routes on the API group.
func (h *SearchHandler) RegisterRoutes(g *gin.RouterGroup) {
	g.GET("/search", h.Search)
}

// Search runs a full-text query with optional exact filters on category,
// type, and case_id. Results are paginated through page and size.
func (h *SearchHandler) Search(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		respondError(c, errors.New(errors.ErrCodeSearchQueryInvalid, "query parameter q is required"))
		return
	}

	filters := map[string]string{}
	for _, name := range []string{"category", "type", "case_id"} {
		if v := c.Query(name); v != "" {
			filters[name] = v
		}
	}

	page, size := parsePagination(c)
	req := &common.SearchRequest{
		Query: common.Query{Text: q, Filters: filters},
		From:  (page - 1) * size,
		Size:  size,
	}

	result, err := h.searcher.Search(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	respondPage(c, http.StatusOK, result, common.Pagination{
		Page:     page,
		PageSize: size,
		Total:    result.Total,
	})
}
