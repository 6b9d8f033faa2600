package cli

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opentenancy/caseintel/pkg/errors"
	"github.com/opentenancy/caseintel/pkg/types/common"
)

func sampleSearchResult() common.SearchResult {
	return common.SearchResult{
		Total: 2,
		Hits: []common.SearchHit{
			{
				ID:    "doc-1",
				Score: 4.2,
				Source: map[string]interface{}{
					"type":    "eviction_summons",
					"case_id": "CASE-7",
				},
				Highlights: map[string][]string{
					"text": {"the <em>hearing</em> is scheduled"},
				},
			},
			{
				ID:    "doc-2",
				Score: 1.1,
				Source: map[string]interface{}{
					"type":    "notice_to_quit",
					"case_id": "CASE-9",
				},
			},
		},
		TookMs: 12,
	}
}

func TestSearchCommand(t *testing.T) {
	var gotQuery url.Values
	ts := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/search", r.URL.Path)
		gotQuery = r.URL.Query()
		writeEnvelope(t, w, http.StatusOK, sampleSearchResult())
	})

	out, err := runCommand(t, "search", "hearing", "--server", ts.URL, "--no-color")
	require.NoError(t, err)

	assert.Equal(t, "hearing", gotQuery.Get("q"))
	assert.False(t, gotQuery.Has("category"))

	assert.Contains(t, out, "doc-1")
	assert.Contains(t, out, "eviction_summons")
	assert.Contains(t, out, "CASE-7")
	assert.Contains(t, out, "the hearing is scheduled")
	assert.NotContains(t, out, "<em>")
}

func TestSearchCommand_Filters(t *testing.T) {
	var gotQuery url.Values
	ts := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		writeEnvelope(t, w, http.StatusOK, sampleSearchResult())
	})

	_, err := runCommand(t, "search", "rent",
		"--category", "court_filing",
		"--type", "eviction_summons",
		"--case", "CASE-7",
		"--page", "2",
		"--size", "5",
		"--server", ts.URL)
	require.NoError(t, err)

	assert.Equal(t, "rent", gotQuery.Get("q"))
	assert.Equal(t, "court_filing", gotQuery.Get("category"))
	assert.Equal(t, "eviction_summons", gotQuery.Get("type"))
	assert.Equal(t, "CASE-7", gotQuery.Get("case_id"))
	assert.Equal(t, "2", gotQuery.Get("page"))
	assert.Equal(t, "5", gotQuery.Get("size"))
}

func TestSearchCommand_BlankQuery(t *testing.T) {
	ts := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not be called")
	})

	_, err := runCommand(t, "search", "   ", "--server", ts.URL)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeSearchQueryInvalid))
}

func TestSearchCommand_NoResults(t *testing.T) {
	ts := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(t, w, http.StatusOK, common.SearchResult{Total: 0})
	})

	out, err := runCommand(t, "search", "asbestos", "--server", ts.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "No matching documents")
}
