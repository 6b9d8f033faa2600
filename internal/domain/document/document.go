// Package document implements the Document bounded context: the persisted
// aggregate for an uploaded tenant document, its processing lifecycle, and
// the domain events other parts of the platform react to.  Business rules
// about when a document counts as processed and how reprocessing versions
// its analysis live here; persistence and messaging are handled by the
// infrastructure adapters behind the repository interfaces.
package document

import (
	"strings"
	"time"

	"github.com/opentenancy/caseintel/pkg/errors"
	"github.com/opentenancy/caseintel/pkg/types/common"
	"github.com/opentenancy/caseintel/pkg/types/docs"
)

// ─────────────────────────────────────────────────────────────────────────────
// Document aggregate root
// ─────────────────────────────────────────────────────────────────────────────

// Document is the aggregate root for one uploaded document.  It is created
// when raw text is ingested and archived, then enriched exactly once per
// processing run with the classification, extracted entities, and mapped
// fields produced by the intelligence pipeline.
//
// Consumers must not mutate fields directly; all state changes go through
// the exported methods so versioning and domain events stay consistent.
type Document struct {
	// ── Identity ─────────────────────────────────────────────────────────────
	ID     common.ID     `json:"id"`
	CaseID common.CaseID `json:"case_id"`

	// ── Upload metadata ──────────────────────────────────────────────────────
	Filename   string    `json:"filename"`
	ContentKey string    `json:"content_key"`
	UploadedAt time.Time `json:"uploaded_at"`

	// ── Analysis results (zero-valued until the first processing run) ────────
	Classification docs.Classification    `json:"classification"`
	Entities       []docs.ExtractedEntity `json:"entities,omitempty"`
	Fields         docs.FieldExtraction   `json:"fields"`
	ProcessedAt    *time.Time             `json:"processed_at,omitempty"`

	// Version counts processing runs: 1 after the first run, incremented on
	// every reprocess.  It starts at 1 so an unprocessed document and a
	// once-processed document are distinguished by ProcessedAt, not Version.
	Version int `json:"version"`

	// ── Domain event collector (unexported, never persisted) ─────────────────
	events []common.DomainEvent
}

// ─────────────────────────────────────────────────────────────────────────────
// Factory function
// ─────────────────────────────────────────────────────────────────────────────

// Option customizes aggregate construction.
type Option func(*Document)

// WithID replaces the generated identity.  Callers that derive dependent
// resources from the identity, such as storage keys, generate the ID first
// and pass it here so the aggregate and its resources agree.
func WithID(id common.ID) Option {
	return func(d *Document) {
		if strings.TrimSpace(string(id)) != "" {
			d.ID = id
		}
	}
}

// NewDocument creates a Document in its ingested state and records a
// DocumentIngestedEvent.  caseID, filename, and contentKey must be non-blank;
// contentKey is the archive object key the raw text was stored under, so a
// Document always points at retrievable source text.
func NewDocument(caseID common.CaseID, filename, contentKey string, opts ...Option) (*Document, error) {
	if strings.TrimSpace(string(caseID)) == "" {
		return nil, errors.InvalidParam("case id must not be empty")
	}
	if strings.TrimSpace(filename) == "" {
		return nil, errors.InvalidParam("filename must not be empty")
	}
	if strings.TrimSpace(contentKey) == "" {
		return nil, errors.InvalidParam("content key must not be empty")
	}

	d := &Document{
		ID:         common.NewID(),
		CaseID:     caseID,
		Filename:   filename,
		ContentKey: contentKey,
		UploadedAt: time.Now().UTC(),
		Version:    1,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.recordEvent(NewDocumentIngestedEvent(d))
	return d, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Processing lifecycle
// ─────────────────────────────────────────────────────────────────────────────

// ApplyAnalysis installs the results of one processing run and records a
// DocumentClassifiedEvent.  The first run sets ProcessedAt; every later run
// replaces the previous analysis wholesale and increments Version, so a
// reprocessed document is distinguishable from its earlier readings.
func (d *Document) ApplyAnalysis(cls docs.Classification, entities []docs.ExtractedEntity, fields docs.FieldExtraction) {
	if d.Processed() {
		d.Version++
	}
	d.Classification = cls
	d.Entities = entities
	d.Fields = fields
	now := time.Now().UTC()
	d.ProcessedAt = &now
	d.recordEvent(NewDocumentClassifiedEvent(d))
}

// Processed reports whether at least one processing run has completed.
func (d *Document) Processed() bool {
	return d.ProcessedAt != nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Domain event collection
// ─────────────────────────────────────────────────────────────────────────────

// Events returns the domain events accumulated since the last call and
// clears the internal buffer.  Callers publish them after the unit of work
// that persisted the aggregate commits.
func (d *Document) Events() []common.DomainEvent {
	evts := d.events
	d.events = nil
	return evts
}

func (d *Document) recordEvent(evt common.DomainEvent) {
	d.events = append(d.events, evt)
}
