package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opentenancy/caseintel/pkg/types/common"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestID_GeneratesWhenAbsent(t *testing.T) {
	var seen string
	e := gin.New()
	e.Use(RequestID())
	e.GET("/x", func(c *gin.Context) {
		seen = RequestIDFromContext(c)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	require.NotEmpty(t, seen)
	_, err := uuid.Parse(seen)
	assert.NoError(t, err)
	assert.Equal(t, seen, w.Header().Get(HeaderRequestID))
}

func TestRequestID_KeepsCallerSuppliedID(t *testing.T) {
	var seen string
	var fromRequestCtx string
	e := gin.New()
	e.Use(RequestID())
	e.GET("/x", func(c *gin.Context) {
		seen = RequestIDFromContext(c)
		if v, ok := c.Request.Context().Value(common.ContextKeyRequestID).(string); ok {
			fromRequestCtx = v
		}
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderRequestID, "upstream-trace-1")
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)

	assert.Equal(t, "upstream-trace-1", seen)
	assert.Equal(t, "upstream-trace-1", fromRequestCtx)
	assert.Equal(t, "upstream-trace-1", w.Header().Get(HeaderRequestID))
}

func TestRequestID_ReplacesOversizeID(t *testing.T) {
	e := gin.New()
	e.Use(RequestID())
	e.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderRequestID, strings.Repeat("a", 200))
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)

	got := w.Header().Get(HeaderRequestID)
	require.NotEmpty(t, got)
	assert.NotContains(t, got, "aaaa")
}

func TestRequestIDFromContext_WithoutMiddleware(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Empty(t, RequestIDFromContext(c))
}
