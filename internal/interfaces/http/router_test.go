package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opentenancy/caseintel/internal/application/casebuild"
	"github.com/opentenancy/caseintel/internal/application/intake"
	"github.com/opentenancy/caseintel/internal/infrastructure/monitoring/prometheus"
	"github.com/opentenancy/caseintel/internal/interfaces/http/handlers"
	"github.com/opentenancy/caseintel/internal/interfaces/http/middleware"
	"github.com/opentenancy/caseintel/pkg/errors"
	"github.com/opentenancy/caseintel/pkg/types/common"
	"github.com/opentenancy/caseintel/pkg/types/docs"
)

type stubIntake struct {
	ingested int
}

func (s *stubIntake) IngestDocument(context.Context, *intake.IngestInput) (*intake.IngestResult, error) {
	s.ingested++
	return &intake.IngestResult{DocumentID: "doc-1", CaseID: "case-42", Version: 1}, nil
}

func (s *stubIntake) Reprocess(context.Context, common.ID) (*intake.IngestResult, error) {
	return &intake.IngestResult{DocumentID: "doc-1", CaseID: "case-42", Version: 2}, nil
}

func (s *stubIntake) Classify(context.Context, *intake.ClassifyInput) (*intake.ClassifyResult, error) {
	return &intake.ClassifyResult{}, nil
}

func (s *stubIntake) GetDocument(context.Context, common.ID) (*intake.DocumentView, error) {
	return &intake.DocumentView{DocumentID: "doc-1", CaseID: "case-42"}, nil
}

type stubCases struct{}

func (stubCases) GetCase(context.Context, common.CaseID) (*docs.CaseData, error) {
	return &docs.CaseData{CaseID: "case-42", DocumentCount: 1}, nil
}

func (stubCases) RebuildCase(context.Context, common.CaseID) (*docs.CaseData, error) {
	return &docs.CaseData{CaseID: "case-42", DocumentCount: 1}, nil
}

func (stubCases) InvalidateCase(context.Context, common.CaseID) error { return nil }

type stubRouterSearcher struct{}

func (stubRouterSearcher) Search(context.Context, *common.SearchRequest) (*common.SearchResult, error) {
	return &common.SearchResult{Total: 0}, nil
}

type denyAllLimiter struct{}

func (denyAllLimiter) Allow(context.Context, string) (bool, middleware.RateLimitInfo, error) {
	return false, middleware.RateLimitInfo{Limit: 1}, nil
}

var _ casebuild.Service = stubCases{}

func testRouter(t *testing.T, mutate ...func(*RouterConfig)) (*gin.Engine, *stubIntake) {
	t.Helper()
	svc := &stubIntake{}
	cfg := RouterConfig{
		Documents: handlers.NewDocumentHandler(svc, nil),
		Cases:     handlers.NewCaseHandler(stubCases{}, nil),
		Search:    handlers.NewSearchHandler(stubRouterSearcher{}, nil),
		Health:    handlers.NewHealthHandler("test"),
		Mode:      gin.TestMode,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	return NewRouter(cfg), svc
}

func do(e *gin.Engine, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	return w
}

func TestNewRouter_RoutesDispatch(t *testing.T) {
	e, _ := testRouter(t)

	for _, tc := range []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/readyz", http.StatusOK},
		{http.MethodGet, "/api/v1/documents/doc-1", http.StatusOK},
		{http.MethodPost, "/api/v1/documents/doc-1/reprocess", http.StatusAccepted},
		{http.MethodGet, "/api/v1/cases/case-42", http.StatusOK},
		{http.MethodPost, "/api/v1/cases/case-42/rebuild", http.StatusOK},
		{http.MethodGet, "/api/v1/search?q=rent", http.StatusOK},
	} {
		w := do(e, tc.method, tc.path, nil)
		assert.Equal(t, tc.want, w.Code, "%s %s", tc.method, tc.path)
		assert.NotEmpty(t, w.Header().Get(middleware.HeaderRequestID), "%s %s", tc.method, tc.path)
	}
}

func TestNewRouter_UnknownRouteGetsEnvelope(t *testing.T) {
	e, _ := testRouter(t)

	w := do(e, http.MethodGet, "/api/v2/nothing", nil)

	require.Equal(t, http.StatusNotFound, w.Code)
	var resp common.APIResponse[any]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, errors.ErrCodeNotFound.String(), resp.Error.Code)
	assert.NotEmpty(t, resp.RequestID)
}

func TestNewRouter_APIKeyGatesAPIButNotProbes(t *testing.T) {
	e, _ := testRouter(t, func(cfg *RouterConfig) {
		cfg.APIKeys = []string{"secret"}
	})

	w := do(e, http.MethodGet, "/api/v1/documents/doc-1", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(e, http.MethodGet, "/api/v1/documents/doc-1", map[string]string{middleware.HeaderAPIKey: "secret"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(e, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNewRouter_RateLimiterSparesProbes(t *testing.T) {
	e, _ := testRouter(t, func(cfg *RouterConfig) {
		cfg.RateLimiter = denyAllLimiter{}
	})

	w := do(e, http.MethodGet, "/api/v1/cases/case-42", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	w = do(e, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(e, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNewRouter_MetricsEndpointServesScrape(t *testing.T) {
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{Namespace: "caseintel"}, nil)
	require.NoError(t, err)

	e, _ := testRouter(t, func(cfg *RouterConfig) {
		cfg.Collector = collector
		cfg.Metrics = prometheus.NewAppMetrics(collector)
	})

	do(e, http.MethodGet, "/api/v1/cases/case-42", nil)

	w := do(e, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "caseintel_http_requests_total")
}

func TestNewRouter_NilHandlersSkipRoutes(t *testing.T) {
	e := NewRouter(RouterConfig{Mode: gin.TestMode})

	w := do(e, http.MethodGet, "/api/v1/cases/case-42", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
