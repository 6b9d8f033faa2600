package document

import (
	"context"
	"time"

	"github.com/opentenancy/caseintel/pkg/types/common"
)

// Case is the persisted record grouping documents under one tenant matter.
// It carries no derived fields: the aggregated view of a case is rebuilt
// from its documents on demand, never stored.
type Case struct {
	ID            common.CaseID `json:"id"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	DocumentCount int           `json:"document_count"`
}

// DocumentRepository defines the persistence contract for documents.
type DocumentRepository interface {
	Create(ctx context.Context, d *Document) error
	GetByID(ctx context.Context, id common.ID) (*Document, error)

	// ListByCase returns every document for the case ordered by UploadedAt
	// ascending, ties broken by ID, so aggregation over the result is
	// deterministic.
	ListByCase(ctx context.Context, caseID common.CaseID) ([]*Document, error)

	// UpdateProcessed persists the analysis columns (classification,
	// entities, fields, processed_at, version) for an existing row.
	UpdateProcessed(ctx context.Context, d *Document) error

	Delete(ctx context.Context, id common.ID) error
}

// CaseRepository defines the persistence contract for case records.
type CaseRepository interface {
	// Ensure creates the case row if it does not exist.  Safe to call on
	// every ingest.
	Ensure(ctx context.Context, id common.CaseID) error

	GetByID(ctx context.Context, id common.CaseID) (*Case, error)

	// Touch bumps UpdatedAt, marking case-level activity without loading
	// the record.
	Touch(ctx context.Context, id common.CaseID) error
}
