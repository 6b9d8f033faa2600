package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/opentenancy/caseintel/internal/infrastructure/monitoring/logging"
	"github.com/opentenancy/caseintel/pkg/errors"
	"github.com/opentenancy/caseintel/pkg/types/common"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100

	highlightPreTag  = "<em>"
	highlightPostTag = "</em>"
)

// searchFields are the analyzed fields a free-text query runs over.
var searchFields = []string{"title", "body"}

// Searcher runs full-text queries against the document index.
type Searcher struct {
	client *Client
	logger logging.Logger
}

// NewSearcher builds a searcher over the client's index.
func NewSearcher(client *Client, log logging.Logger) *Searcher {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Searcher{client: client, logger: log}
}

// Search executes req and returns parsed hits. Page size is clamped to
// maxPageSize.
func (s *Searcher) Search(ctx context.Context, req *common.SearchRequest) (*common.SearchResult, error) {
	if req == nil {
		req = &common.SearchRequest{}
	}
	normalized := *req
	if normalized.Size <= 0 {
		normalized.Size = defaultPageSize
	}
	if normalized.Size > maxPageSize {
		normalized.Size = maxPageSize
	}
	if normalized.From < 0 {
		normalized.From = 0
	}

	body, err := json.Marshal(buildQueryDSL(&normalized))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal query")
	}

	osReq := opensearchapi.SearchRequest{
		Index: []string{s.client.Index()},
		Body:  bytes.NewReader(body),
	}

	start := time.Now()
	resp, err := osReq.Do(ctx, s.client.Underlying())
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.New(errors.ErrCodeTimeout, "search request timed out")
		}
		return nil, errors.Wrap(err, errors.ErrCodeSearchUnavailable, "search request failed")
	}
	defer resp.Body.Close()

	if resp.IsError() {
		if resp.StatusCode == 400 {
			return nil, errors.Newf(errors.ErrCodeSearchQueryInvalid, "search rejected with status %d", resp.StatusCode)
		}
		return nil, errors.Newf(errors.ErrCodeSearchUnavailable, "search returned status %d", resp.StatusCode)
	}

	result, err := parseSearchResponse(resp.Body)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Search executed",
		logging.Int64("hits", result.Total),
		logging.Int64("took_ms", time.Since(start).Milliseconds()),
	)
	return result, nil
}

// Count returns how many documents match the query without fetching hits.
func (s *Searcher) Count(ctx context.Context, query common.Query) (int64, error) {
	body, err := json.Marshal(map[string]interface{}{
		"query": buildQuery(query),
	})
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal query")
	}

	req := opensearchapi.CountRequest{
		Index: []string{s.client.Index()},
		Body:  bytes.NewReader(body),
	}
	resp, err := req.Do(ctx, s.client.Underlying())
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeSearchUnavailable, "count request failed")
	}
	defer resp.Body.Close()

	if resp.IsError() {
		return 0, errors.Newf(errors.ErrCodeSearchUnavailable, "count returned status %d", resp.StatusCode)
	}

	var countResp struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&countResp); err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode count response")
	}
	return countResp.Count, nil
}

func buildQueryDSL(req *common.SearchRequest) map[string]interface{} {
	dsl := map[string]interface{}{
		"query": buildQuery(req.Query),
		"from":  req.From,
		"size":  req.Size,
	}

	if len(req.Sort) > 0 {
		sorts := make([]map[string]interface{}, 0, len(req.Sort))
		for _, sf := range req.Sort {
			sorts = append(sorts, map[string]interface{}{
				sf.Field: map[string]interface{}{"order": string(sf.Order)},
			})
		}
		dsl["sort"] = sorts
	}

	if len(req.Highlight) > 0 {
		fields := make(map[string]interface{}, len(req.Highlight))
		for _, f := range req.Highlight {
			fields[f] = map[string]interface{}{}
		}
		dsl["highlight"] = map[string]interface{}{
			"fields":    fields,
			"pre_tags":  []string{highlightPreTag},
			"post_tags": []string{highlightPostTag},
		}
	}

	if len(req.Aggregations) > 0 {
		aggs := make(map[string]interface{}, len(req.Aggregations))
		for name, agg := range req.Aggregations {
			size := agg.Size
			if size <= 0 {
				size = 10
			}
			aggs[name] = map[string]interface{}{
				"terms": map[string]interface{}{
					"field": agg.Field,
					"size":  size,
				},
			}
		}
		dsl["aggs"] = aggs
	}

	return dsl
}

func buildQuery(q common.Query) map[string]interface{} {
	var must interface{}
	if q.Text != "" {
		fields := q.Fields
		if len(fields) == 0 {
			fields = searchFields
		}
		must = map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  q.Text,
				"fields": fields,
			},
		}
	} else {
		must = map[string]interface{}{"match_all": map[string]interface{}{}}
	}

	boolQuery := map[string]interface{}{"must": must}
	if len(q.Filters) > 0 {
		filters := make([]map[string]interface{}, 0, len(q.Filters))
		for field, value := range q.Filters {
			filters = append(filters, map[string]interface{}{
				"term": map[string]interface{}{field: value},
			})
		}
		boolQuery["filter"] = filters
	}

	return map[string]interface{}{"bool": boolQuery}
}

func parseSearchResponse(body io.Reader) (*common.SearchResult, error) {
	var resp struct {
		Took int64 `json:"took"`
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				ID        string                 `json:"_id"`
				Score     float64                `json:"_score"`
				Source    map[string]interface{} `json:"_source"`
				Highlight map[string][]string    `json:"highlight"`
			} `json:"hits"`
		} `json:"hits"`
		Aggregations map[string]struct {
			Buckets []struct {
				Key      interface{} `json:"key"`
				DocCount int64       `json:"doc_count"`
			} `json:"buckets"`
		} `json:"aggregations"`
	}
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode search response")
	}

	result := &common.SearchResult{
		Total:  resp.Hits.Total.Value,
		TookMs: resp.Took,
	}
	for _, h := range resp.Hits.Hits {
		result.Hits = append(result.Hits, common.SearchHit{
			ID:         h.ID,
			Score:      h.Score,
			Source:     h.Source,
			Highlights: h.Highlight,
		})
	}

	if len(resp.Aggregations) > 0 {
		result.Aggregations = make(map[string]map[string]int64, len(resp.Aggregations))
		for name, agg := range resp.Aggregations {
			buckets := make(map[string]int64, len(agg.Buckets))
			for _, b := range agg.Buckets {
				if key, ok := b.Key.(string); ok {
					buckets[key] = b.DocCount
				}
			}
			result.Aggregations[name] = buckets
		}
	}

	return result, nil
}
