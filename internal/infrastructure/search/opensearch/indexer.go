package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/opentenancy/caseintel/internal/config"
	"github.com/opentenancy/caseintel/internal/infrastructure/monitoring/logging"
	"github.com/opentenancy/caseintel/pkg/errors"
	"github.com/opentenancy/caseintel/pkg/types/common"
)

var (
	// ErrIndexNotFound reports an operation against a missing index.
	ErrIndexNotFound = errors.New(errors.ErrCodeNotFound, "index not found")
	// ErrDocumentNotFound reports a delete of a document the index does not hold.
	ErrDocumentNotFound = errors.New(errors.ErrCodeNotFound, "document not found in index")
)

// DocumentEntry is the indexed shape of one analyzed document.
type DocumentEntry struct {
	CaseID     string    `json:"case_id"`
	Filename   string    `json:"filename"`
	Category   string    `json:"category"`
	Type       string    `json:"type"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	Urgency    string    `json:"urgency"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// DocumentIndexMapping declares the index schema. Identifiers and enums
// are keywords for exact filtering; title and body are analyzed text.
func DocumentIndexMapping() common.IndexMapping {
	return common.IndexMapping{
		Settings: map[string]interface{}{
			"number_of_shards":   1,
			"number_of_replicas": 1,
		},
		Mappings: map[string]interface{}{
			"properties": map[string]interface{}{
				"case_id":     map[string]interface{}{"type": "keyword"},
				"filename":    map[string]interface{}{"type": "keyword"},
				"category":    map[string]interface{}{"type": "keyword"},
				"type":        map[string]interface{}{"type": "keyword"},
				"title":       map[string]interface{}{"type": "text"},
				"body":        map[string]interface{}{"type": "text"},
				"urgency":     map[string]interface{}{"type": "keyword"},
				"uploaded_at": map[string]interface{}{"type": "date"},
			},
		},
	}
}

// Indexer writes document entries into the search index.
type Indexer struct {
	client        *Client
	logger        logging.Logger
	bulkBatchSize int
	refresh       string
}

// NewIndexer builds an indexer over the client's index.
func NewIndexer(client *Client, cfg config.OpenSearchConfig, log logging.Logger) *Indexer {
	if log == nil {
		log = logging.NewNopLogger()
	}
	batchSize := cfg.BulkBatchSize
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Indexer{
		client:        client,
		logger:        log,
		bulkBatchSize: batchSize,
		refresh:       "false",
	}
}

// EnsureIndex creates the document index when it does not exist yet.
func (i *Indexer) EnsureIndex(ctx context.Context) error {
	exists, err := i.IndexExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	body, err := json.Marshal(DocumentIndexMapping())
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal index mapping")
	}

	req := opensearchapi.IndicesCreateRequest{
		Index: i.client.Index(),
		Body:  bytes.NewReader(body),
	}
	resp, err := req.Do(ctx, i.client.Underlying())
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSearchUnavailable, "create index request failed")
	}
	defer resp.Body.Close()

	if resp.IsError() {
		// Another instance may have created it first.
		if exists, checkErr := i.IndexExists(ctx); checkErr == nil && exists {
			return nil
		}
		return i.errorResponse(resp, "create index failed")
	}

	i.logger.Info("Index created", logging.String("index", i.client.Index()))
	return nil
}

// IndexExists reports whether the document index exists.
func (i *Indexer) IndexExists(ctx context.Context) (bool, error) {
	req := opensearchapi.IndicesExistsRequest{Index: []string{i.client.Index()}}
	resp, err := req.Do(ctx, i.client.Underlying())
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeSearchUnavailable, "check index existence failed")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case 200:
		return true, nil
	case 404:
		return false, nil
	default:
		return false, i.errorResponse(resp, "check index existence failed")
	}
}

// DeleteIndex removes the whole document index.
func (i *Indexer) DeleteIndex(ctx context.Context) error {
	req := opensearchapi.IndicesDeleteRequest{Index: []string{i.client.Index()}}
	resp, err := req.Do(ctx, i.client.Underlying())
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSearchUnavailable, "delete index request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == 404 {
		return ErrIndexNotFound
	}
	if resp.IsError() {
		return i.errorResponse(resp, "delete index failed")
	}

	i.logger.Warn("Index deleted", logging.String("index", i.client.Index()))
	return nil
}

// IndexDocument writes one entry under docID, replacing any previous
// version of the document.
func (i *Indexer) IndexDocument(ctx context.Context, docID string, entry *DocumentEntry) error {
	if docID == "" {
		return errors.New(errors.ErrCodeValidation, "document id required")
	}

	body, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal document entry")
	}

	req := opensearchapi.IndexRequest{
		Index:      i.client.Index(),
		DocumentID: docID,
		Body:       bytes.NewReader(body),
		Refresh:    i.refresh,
	}
	resp, err := req.Do(ctx, i.client.Underlying())
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSearchIndexFailed, "index document request failed")
	}
	defer resp.Body.Close()

	if resp.IsError() {
		return i.errorResponse(resp, "index document failed")
	}
	return nil
}

// BulkIndex writes entries in NDJSON batches and reports per-document
// outcomes.
func (i *Indexer) BulkIndex(ctx context.Context, entries map[string]*DocumentEntry) (*common.BulkResult, error) {
	result := &common.BulkResult{}
	if len(entries) == 0 {
		return result, nil
	}

	docIDs := make([]string, 0, len(entries))
	for id := range entries {
		docIDs = append(docIDs, id)
	}

	for start := 0; start < len(docIDs); start += i.bulkBatchSize {
		end := start + i.bulkBatchSize
		if end > len(docIDs) {
			end = len(docIDs)
		}

		var buf bytes.Buffer
		batch := make([]string, 0, end-start)
		for _, id := range docIDs[start:end] {
			docBytes, err := json.Marshal(entries[id])
			if err != nil {
				result.Failed++
				result.Errors = append(result.Errors, common.BulkItemError{
					DocID:     id,
					ErrorType: "serialization_error",
					Reason:    err.Error(),
				})
				continue
			}
			fmt.Fprintf(&buf, `{"index":{"_index":%q,"_id":%q}}`+"\n", i.client.Index(), id)
			buf.Write(docBytes)
			buf.WriteByte('\n')
			batch = append(batch, id)
		}
		if buf.Len() == 0 {
			continue
		}

		req := opensearchapi.BulkRequest{
			Body:    bytes.NewReader(buf.Bytes()),
			Refresh: i.refresh,
		}
		resp, err := req.Do(ctx, i.client.Underlying())
		if err != nil {
			return result, errors.Wrap(err, errors.ErrCodeSearchIndexFailed, "bulk request failed")
		}

		batchResult, err := parseBulkResponse(resp, batch)
		resp.Body.Close()
		if err != nil {
			return result, err
		}
		result.Succeeded += batchResult.Succeeded
		result.Failed += batchResult.Failed
		result.Errors = append(result.Errors, batchResult.Errors...)
	}

	i.logger.Info("Bulk index completed",
		logging.Int("total", len(docIDs)),
		logging.Int("succeeded", result.Succeeded),
		logging.Int("failed", result.Failed),
	)
	return result, nil
}

// DeleteDocument removes one document from the index.
func (i *Indexer) DeleteDocument(ctx context.Context, docID string) error {
	req := opensearchapi.DeleteRequest{
		Index:      i.client.Index(),
		DocumentID: docID,
		Refresh:    i.refresh,
	}
	resp, err := req.Do(ctx, i.client.Underlying())
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSearchUnavailable, "delete document request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == 404 {
		return ErrDocumentNotFound
	}
	if resp.IsError() {
		return i.errorResponse(resp, "delete document failed")
	}
	return nil
}

func parseBulkResponse(resp *opensearchapi.Response, batch []string) (*common.BulkResult, error) {
	result := &common.BulkResult{}

	if resp.IsError() {
		result.Failed = len(batch)
		result.Errors = append(result.Errors, common.BulkItemError{
			DocID:     "batch",
			ErrorType: "http_error",
			Reason:    fmt.Sprintf("bulk batch returned status %d", resp.StatusCode),
		})
		return result, nil
	}

	var bulkResp struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			ID     string `json:"_id"`
			Status int    `json:"status"`
			Error  struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&bulkResp); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode bulk response")
	}

	for _, item := range bulkResp.Items {
		for _, info := range item {
			if info.Status >= 200 && info.Status < 300 {
				result.Succeeded++
			} else {
				result.Failed++
				result.Errors = append(result.Errors, common.BulkItemError{
					DocID:     info.ID,
					ErrorType: info.Error.Type,
					Reason:    info.Error.Reason,
				})
			}
			break
		}
	}
	return result, nil
}

func (i *Indexer) errorResponse(resp *opensearchapi.Response, message string) error {
	var errResp struct {
		Error struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	}
	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Reason != "" {
		return errors.Newf(errors.ErrCodeSearchIndexFailed, "%s: %s: %s", message, errResp.Error.Type, errResp.Error.Reason)
	}
	return errors.Newf(errors.ErrCodeSearchIndexFailed, "%s: status %d", message, resp.StatusCode)
}
