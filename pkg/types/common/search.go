package common

// SearchRequest is the backend-agnostic query passed to the search layer.
type SearchRequest struct {
	Query        Query                  `json:"query"`
	From         int                    `json:"from"`
	Size         int                    `json:"size"`
	Sort         []SortField            `json:"sort,omitempty"`
	Highlight    []string               `json:"highlight,omitempty"`
	Aggregations map[string]Aggregation `json:"aggregations,omitempty"`
}

// Query describes a full-text match plus optional exact filters.
type Query struct {
	Text    string            `json:"text,omitempty"`
	Fields  []string          `json:"fields,omitempty"`
	Filters map[string]string `json:"filters,omitempty"`
}

// Aggregation requests a terms bucket over a keyword field.
type Aggregation struct {
	Field string `json:"field"`
	Size  int    `json:"size"`
}

// SearchHit is a single result row.
type SearchHit struct {
	ID         string                 `json:"id"`
	Score      float64                `json:"score"`
	Source     map[string]interface{} `json:"source"`
	Highlights map[string][]string    `json:"highlights,omitempty"`
}

// SearchResult carries hits and aggregation buckets for one request.
type SearchResult struct {
	Total        int64                       `json:"total"`
	Hits         []SearchHit                 `json:"hits"`
	Aggregations map[string]map[string]int64 `json:"aggregations,omitempty"`
	TookMs       int64                       `json:"took_ms"`
}

// IndexMapping defines index settings and field mappings for index creation.
type IndexMapping struct {
	Settings map[string]interface{} `json:"settings"`
	Mappings map[string]interface{} `json:"mappings"`
}

// BulkResult summarizes a bulk indexing call.
type BulkResult struct {
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	Errors    []BulkItemError `json:"errors,omitempty"`
}

// BulkItemError describes one failed document in a bulk request.
type BulkItemError struct {
	DocID     string `json:"doc_id"`
	ErrorType string `json:"error_type"`
	Reason    string `json:"reason"`
}
