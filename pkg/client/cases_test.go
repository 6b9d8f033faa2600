package client

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opentenancy/caseintel/pkg/errors"
	"github.com/opentenancy/caseintel/pkg/types/docs"
)

func TestCases_Get(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/cases/case-42", r.URL.Path)
		writeSuccess(w, http.StatusOK, docs.CaseData{
			CaseID:        "case-42",
			TenantName:    "Maria Lopez",
			HearingDate:   "2025-03-12",
			MonthlyRent:   1500,
			Urgency:       docs.UrgencyCritical,
			DocumentCount: 2,
		})
	}))

	data, err := c.Cases().Get(context.Background(), "case-42")
	require.NoError(t, err)
	assert.Equal(t, "Maria Lopez", data.TenantName)
	assert.Equal(t, 1500.0, data.MonthlyRent)
	assert.Equal(t, docs.UrgencyCritical, data.Urgency)
}

func TestCases_GetUnknownCase(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(w, http.StatusNotFound, errors.ErrCodeCaseNotFound.String(), "case ghost not found")
	}))

	_, err := c.Cases().Get(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeCaseNotFound))
}

func TestCases_Rebuild(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/cases/case-42/rebuild", r.URL.Path)
		writeSuccess(w, http.StatusOK, docs.CaseData{CaseID: "case-42", DocumentCount: 3})
	}))

	data, err := c.Cases().Rebuild(context.Background(), "case-42")
	require.NoError(t, err)
	assert.Equal(t, 3, data.DocumentCount)
}

func TestCases_RebuildLocked(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(w, http.StatusConflict, errors.ErrCodeCaseRebuildLocked.String(), "case case-42 rebuild already in progress")
	}))

	_, err := c.Cases().Rebuild(context.Background(), "case-42")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeCaseRebuildLocked))
}
