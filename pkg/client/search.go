package client

import (
	"context"
	"net/url"
	"strconv"

	"github.com/opentenancy/caseintel/pkg/types/common"
)

// SearchClient calls the full-text search endpoint.
type SearchClient struct {
	client *Client
}

// SearchParams are the query parameters for a document search. Query is
// required; the filters narrow by exact match.
type SearchParams struct {
	Query    string
	Category string
	Type     string
	CaseID   string
	Page     int
	Size     int
}

// SearchResponse carries the hits plus the envelope's pagination.
type SearchResponse struct {
	common.SearchResult
	Pagination common.Pagination `json:"-"`
}

func (r *SearchResponse) setPagination(p common.Pagination) {
	r.Pagination = p
}

// Query runs a search and returns matching documents with highlights.
func (sc *SearchClient) Query(ctx context.Context, params SearchParams) (*SearchResponse, error) {
	values := url.Values{}
	values.Set("q", params.Query)
	if params.Category != "" {
		values.Set("category", params.Category)
	}
	if params.Type != "" {
		values.Set("type", params.Type)
	}
	if params.CaseID != "" {
		values.Set("case_id", params.CaseID)
	}
	if params.Page > 0 {
		values.Set("page", strconv.Itoa(params.Page))
	}
	if params.Size > 0 {
		values.Set("size", strconv.Itoa(params.Size))
	}

	var resp SearchResponse
	if err := sc.client.get(ctx, "/api/v1/search?"+values.Encode(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
