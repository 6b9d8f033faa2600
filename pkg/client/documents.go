package client

import (
	"context"
	"fmt"
	"time"

	"github.com/opentenancy/caseintel/pkg/types/common"
	"github.com/opentenancy/caseintel/pkg/types/docs"
)

// DocumentsClient calls the document intake and inspection endpoints.
type DocumentsClient struct {
	client *Client
}

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

// IngestRequest submits one document's plain text for processing.
type IngestRequest struct {
	CaseID   string `json:"case_id"`
	Filename string `json:"filename"`
	Text     string `json:"text"`

	// UploadedAt backdates the document, for migrating an existing mailbox.
	// Nil means now.
	UploadedAt *time.Time `json:"uploaded_at,omitempty"`
}

// IngestResult reports one completed pipeline run.
type IngestResult struct {
	DocumentID          common.ID           `json:"document_id"`
	CaseID              common.CaseID       `json:"case_id"`
	Filename            string              `json:"filename"`
	ContentKey          string              `json:"content_key"`
	Classification      docs.Classification `json:"classification"`
	FieldsExtracted     int                 `json:"fields_extracted"`
	FieldsNeedingReview int                 `json:"fields_needing_review"`
	Version             int                 `json:"version"`
	ProcessedAt         time.Time           `json:"processed_at"`
}

// Document is one stored document with its analysis results.
type Document struct {
	DocumentID     common.ID              `json:"document_id"`
	CaseID         common.CaseID          `json:"case_id"`
	Filename       string                 `json:"filename"`
	ContentKey     string                 `json:"content_key"`
	UploadedAt     time.Time              `json:"uploaded_at"`
	ProcessedAt    *time.Time             `json:"processed_at,omitempty"`
	Version        int                    `json:"version"`
	Classification docs.Classification    `json:"classification"`
	Entities       []docs.ExtractedEntity `json:"entities,omitempty"`
	Fields         docs.FieldExtraction   `json:"fields"`
}

// ClassifyRequest asks for a dry-run classification of raw text.
type ClassifyRequest struct {
	Filename string `json:"filename"`
	Text     string `json:"text"`
}

// ClassifyResult is the dry-run output. Nothing is stored server-side.
type ClassifyResult struct {
	Classification docs.Classification    `json:"classification"`
	Entities       []docs.ExtractedEntity `json:"entities,omitempty"`
	Fields         docs.FieldExtraction   `json:"fields"`
}

// FieldMap is the grouped field shape served by the fields endpoint:
// category name to field name to field attributes.
type FieldMap map[string]map[string]map[string]interface{}

// ---------------------------------------------------------------------------
// Operations
// ---------------------------------------------------------------------------

// Ingest submits a document and blocks until the pipeline has processed it.
func (dc *DocumentsClient) Ingest(ctx context.Context, req *IngestRequest) (*IngestResult, error) {
	var result IngestResult
	if err := dc.client.post(ctx, "/api/v1/documents", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Get fetches one document with its classification, entities, and fields.
func (dc *DocumentsClient) Get(ctx context.Context, documentID string) (*Document, error) {
	var doc Document
	if err := dc.client.get(ctx, fmt.Sprintf("/api/v1/documents/%s", documentID), &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Fields fetches the document's extracted fields grouped by category.
func (dc *DocumentsClient) Fields(ctx context.Context, documentID string) (FieldMap, error) {
	var fields FieldMap
	if err := dc.client.get(ctx, fmt.Sprintf("/api/v1/documents/%s/fields", documentID), &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// Reprocess reruns the pipeline over the document's archived text.
func (dc *DocumentsClient) Reprocess(ctx context.Context, documentID string) (*IngestResult, error) {
	var result IngestResult
	if err := dc.client.post(ctx, fmt.Sprintf("/api/v1/documents/%s/reprocess", documentID), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Classify runs classification and extraction without persisting anything.
func (dc *DocumentsClient) Classify(ctx context.Context, req *ClassifyRequest) (*ClassifyResult, error) {
	var result ClassifyResult
	if err := dc.client.post(ctx, "/api/v1/classify", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
