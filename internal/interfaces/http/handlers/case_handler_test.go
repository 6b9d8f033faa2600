package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/opentenancy/caseintel/internal/interfaces/http/middleware"
	"github.com/opentenancy/caseintel/pkg/errors"
	"github.com/opentenancy/caseintel/pkg/types/common"
	"github.com/opentenancy/caseintel/pkg/types/docs"
)

type mockCaseService struct {
	mock.Mock
}

func (m *mockCaseService) GetCase(ctx context.Context, caseID common.CaseID) (*docs.CaseData, error) {
	args := m.Called(ctx, caseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*docs.CaseData), args.Error(1)
}

func (m *mockCaseService) RebuildCase(ctx context.Context, caseID common.CaseID) (*docs.CaseData, error) {
	args := m.Called(ctx, caseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*docs.CaseData), args.Error(1)
}

func (m *mockCaseService) InvalidateCase(ctx context.Context, caseID common.CaseID) error {
	return m.Called(ctx, caseID).Error(0)
}

func caseEngine(svc *mockCaseService) *gin.Engine {
	e := gin.New()
	e.Use(middleware.RequestID())
	api := e.Group("/api/v1")
	NewCaseHandler(svc, nil).RegisterRoutes(api)
	return e
}

func sampleCaseData() *docs.CaseData {
	return &docs.CaseData{
		CaseID:        "case-42",
		TenantName:    "Maria Lopez",
		CaseNumber:    "27-CV-25-1234",
		HearingDate:   "2025-03-12",
		MonthlyRent:   1500,
		Urgency:       docs.UrgencyCritical,
		DocumentCount: 2,
	}
}

func TestCaseHandler_Get(t *testing.T) {
	svc := &mockCaseService{}
	svc.On("GetCase", mock.Anything, common.CaseID("case-42")).Return(sampleCaseData(), nil)

	e := caseEngine(svc)
	w := getPath(e, "/api/v1/cases/case-42")

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeEnvelope(t, w)
	assert.True(t, resp.Success)

	var got docs.CaseData
	require.NoError(t, json.Unmarshal(resp.Data, &got))
	assert.Equal(t, common.CaseID("case-42"), got.CaseID)
	assert.Equal(t, "Maria Lopez", got.TenantName)
	assert.Equal(t, 2, got.DocumentCount)
	svc.AssertExpectations(t)
}

func TestCaseHandler_GetUnknownCase(t *testing.T) {
	svc := &mockCaseService{}
	svc.On("GetCase", mock.Anything, common.CaseID("ghost")).
		Return(nil, errors.Newf(errors.ErrCodeCaseNotFound, "case ghost not found"))

	e := caseEngine(svc)
	w := getPath(e, "/api/v1/cases/ghost")

	require.Equal(t, http.StatusNotFound, w.Code)
	resp := decodeEnvelope(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, errors.ErrCodeCaseNotFound.String(), resp.Error.Code)
}

func TestCaseHandler_Rebuild(t *testing.T) {
	svc := &mockCaseService{}
	svc.On("RebuildCase", mock.Anything, common.CaseID("case-42")).Return(sampleCaseData(), nil)

	e := caseEngine(svc)
	w := postJSON(e, "/api/v1/cases/case-42/rebuild", nil)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeEnvelope(t, w)
	assert.True(t, resp.Success)
	svc.AssertExpectations(t)
}

func TestCaseHandler_RebuildLocked(t *testing.T) {
	svc := &mockCaseService{}
	svc.On("RebuildCase", mock.Anything, common.CaseID("case-42")).
		Return(nil, errors.Newf(errors.ErrCodeCaseRebuildLocked, "case case-42 rebuild already in progress"))

	e := caseEngine(svc)
	w := postJSON(e, "/api/v1/cases/case-42/rebuild", nil)

	require.Equal(t, http.StatusConflict, w.Code)
	resp := decodeEnvelope(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, errors.ErrCodeCaseRebuildLocked.String(), resp.Error.Code)
}
