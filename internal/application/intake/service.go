// Package intake provides the application-level service for document
// ingestion. It orchestrates one document's trip through the pipeline:
// archive the raw text, classify and extract, persist the aggregate, then
// fan out the post-persist effects (search indexing, events, cache
// invalidation). HTTP handlers and the queue worker both drive ingestion
// through this package.
package intake

import (
	"context"
	"strings"
	"time"

	"github.com/opentenancy/caseintel/internal/domain/document"
	"github.com/opentenancy/caseintel/internal/infrastructure/messaging/kafka"
	"github.com/opentenancy/caseintel/internal/infrastructure/monitoring/logging"
	"github.com/opentenancy/caseintel/internal/infrastructure/monitoring/prometheus"
	"github.com/opentenancy/caseintel/internal/infrastructure/search/opensearch"
	"github.com/opentenancy/caseintel/internal/infrastructure/storage/minio"
	"github.com/opentenancy/caseintel/internal/intelligence/assist"
	"github.com/opentenancy/caseintel/internal/intelligence/extractor"
	"github.com/opentenancy/caseintel/internal/intelligence/fieldmap"
	"github.com/opentenancy/caseintel/internal/intelligence/recognizer"
	"github.com/opentenancy/caseintel/pkg/errors"
	"github.com/opentenancy/caseintel/pkg/types/common"
	"github.com/opentenancy/caseintel/pkg/types/docs"
)

// Ingest sources, used as the metrics label and for log context.
const (
	SourceAPI   = "api"
	SourceQueue = "queue"
)

// Service defines the interface for document intake operations.
type Service interface {
	// IngestDocument runs the full pipeline for one new document. The
	// document is durable once this returns nil; indexing, events, and
	// cache invalidation are best-effort follow-ups.
	IngestDocument(ctx context.Context, input *IngestInput) (*IngestResult, error)

	// Reprocess re-runs analysis for an existing document from its
	// archived text, replacing the previous analysis wholesale and
	// bumping the document version.
	Reprocess(ctx context.Context, documentID common.ID) (*IngestResult, error)

	// Classify runs the rule-based pipeline over text without touching
	// storage. Used by preview tooling; results never persist.
	Classify(ctx context.Context, input *ClassifyInput) (*ClassifyResult, error)

	// GetDocument returns the stored analysis state of one document.
	GetDocument(ctx context.Context, documentID common.ID) (*DocumentView, error)
}

// Archive stores and retrieves raw document text by object key.
type Archive interface {
	PutText(ctx context.Context, key, text string) error
	GetText(ctx context.Context, key string) (string, error)
}

// Publisher emits event envelopes to the broker.
type Publisher interface {
	PublishEnvelope(ctx context.Context, topic string, env *common.EventEnvelope) error
}

// SearchIndexer writes document entries into the search cluster.
type SearchIndexer interface {
	IndexDocument(ctx context.Context, docID string, entry *opensearch.DocumentEntry) error
}

// CacheInvalidator drops a case's cached snapshot.
type CacheInvalidator interface {
	InvalidateCase(ctx context.Context, caseID common.CaseID) error
}

// IngestInput carries one document upload.
type IngestInput struct {
	CaseID   common.CaseID
	Filename string
	Text     string

	// UploadedAt defaults to now when zero. Queue-driven ingestion passes
	// the original upload time from the event.
	UploadedAt time.Time

	// Source labels where the document entered: SourceAPI or SourceQueue.
	// Blank defaults to SourceAPI.
	Source string
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

// DocumentView is the read-side DTO for one stored document.
type DocumentView struct {
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

// ClassifyInput carries text for a dry-run classification.
type ClassifyInput struct {
	Filename string
	Text     string
}

// ClassifyResult is the dry-run pipeline output.
type ClassifyResult struct {
	Classification docs.Classification    `json:"classification"`
	Entities       []docs.ExtractedEntity `json:"entities,omitempty"`
	Fields         docs.FieldExtraction   `json:"fields"`
}

// Deps bundles the service's collaborators. Recognizer, Extractor, Mapper,
// Documents, Cases, and Archive are required; the rest are optional and a
// nil value disables that effect.
type Deps struct {
	Recognizer recognizer.Recognizer
	Extractor  extractor.Extractor
	Mapper     fieldmap.Mapper

	// Assist is the optional model assist client; nil skips the assist
	// step entirely.
	Assist assist.Client

	Documents document.DocumentRepository
	Cases     document.CaseRepository
	Archive   Archive

	// Publisher, Indexer, and Invalidator drive the best-effort
	// post-persist effects.
	Publisher   Publisher
	Indexer     SearchIndexer
	Invalidator CacheInvalidator

	Metrics *prometheus.AppMetrics
	Logger  logging.Logger
}

type serviceImpl struct {
	deps Deps
	log  logging.Logger
}

// NewService validates deps and builds the intake service.
func NewService(deps Deps) (Service, error) {
	switch {
	case deps.Recognizer == nil:
		return nil, errors.New(errors.ErrCodeValidation, "intake: recognizer required")
	case deps.Extractor == nil:
		return nil, errors.New(errors.ErrCodeValidation, "intake: extractor required")
	case deps.Mapper == nil:
		return nil, errors.New(errors.ErrCodeValidation, "intake: field mapper required")
	case deps.Documents == nil:
		return nil, errors.New(errors.ErrCodeValidation, "intake: document repository required")
	case deps.Cases == nil:
		return nil, errors.New(errors.ErrCodeValidation, "intake: case repository required")
	case deps.Archive == nil:
		return nil, errors.New(errors.ErrCodeValidation, "intake: archive required")
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNopLogger()
	}
	return &serviceImpl{
		deps: deps,
		log:  deps.Logger.With(logging.String("service", "intake")),
	}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// IngestDocument
// ─────────────────────────────────────────────────────────────────────────────

func (s *serviceImpl) IngestDocument(ctx context.Context, input *IngestInput) (*IngestResult, error) {
	start := time.Now()
	source := SourceAPI
	if input != nil && input.Source != "" {
		source = input.Source
	}

	res, err := s.ingest(ctx, input, source)
	prometheus.RecordIngest(s.deps.Metrics, source, time.Since(start), err)
	return res, err
}

func (s *serviceImpl) ingest(ctx context.Context, input *IngestInput, source string) (*IngestResult, error) {
	if input == nil {
		return nil, errors.InvalidParam("ingest input required")
	}
	if strings.TrimSpace(string(input.CaseID)) == "" {
		return nil, errors.InvalidParam("case_id required")
	}
	if strings.TrimSpace(input.Filename) == "" {
		return nil, errors.InvalidParam("filename required")
	}
	if strings.TrimSpace(input.Text) == "" {
		return nil, errors.New(errors.ErrCodeDocumentEmptyText, "document text required")
	}

	// Identity is fixed before the aggregate exists so the archive key and
	// the document row agree.
	docID := common.NewID()
	key := minio.ObjectKey(string(input.CaseID), string(docID))

	if err := s.deps.Archive.PutText(ctx, key, input.Text); err != nil {
		prometheus.RecordStorageOperation(s.deps.Metrics, "put", err)
		return nil, err
	}
	prometheus.RecordStorageOperation(s.deps.Metrics, "put", nil)

	doc, err := document.NewDocument(input.CaseID, input.Filename, key, document.WithID(docID))
	if err != nil {
		return nil, err
	}
	if !input.UploadedAt.IsZero() {
		doc.UploadedAt = input.UploadedAt.UTC()
	}

	s.analyze(ctx, doc, input.Text)

	if err := s.deps.Cases.Ensure(ctx, doc.CaseID); err != nil {
		return nil, err
	}
	if err := s.deps.Documents.Create(ctx, doc); err != nil {
		return nil, err
	}
	if err := s.deps.Cases.Touch(ctx, doc.CaseID); err != nil {
		s.log.Warn("case touch failed",
			logging.String("case_id", string(doc.CaseID)), logging.Err(err))
	}

	s.postPersist(ctx, doc, input.Text)

	s.log.Info("document ingested",
		logging.String("document_id", string(doc.ID)),
		logging.String("case_id", string(doc.CaseID)),
		logging.String("source", source),
		logging.String("doc_type", string(doc.Classification.Type)),
		logging.Any("confidence", doc.Classification.Confidence),
	)
	return resultFrom(doc), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Reprocess
// ─────────────────────────────────────────────────────────────────────────────

func (s *serviceImpl) Reprocess(ctx context.Context, documentID common.ID) (*IngestResult, error) {
	res, err := s.reprocess(ctx, documentID)
	prometheus.RecordReprocess(s.deps.Metrics, err)
	return res, err
}

func (s *serviceImpl) reprocess(ctx context.Context, documentID common.ID) (*IngestResult, error) {
	if strings.TrimSpace(string(documentID)) == "" {
		return nil, errors.InvalidParam("document id required")
	}

	doc, err := s.deps.Documents.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}

	text, err := s.deps.Archive.GetText(ctx, doc.ContentKey)
	if err != nil {
		prometheus.RecordStorageOperation(s.deps.Metrics, "get", err)
		return nil, errors.Wrapf(err, errors.ErrCodeDocumentStoreFailed,
			"archived text unavailable for document %s", documentID)
	}
	prometheus.RecordStorageOperation(s.deps.Metrics, "get", nil)

	s.analyze(ctx, doc, text)

	if err := s.deps.Documents.UpdateProcessed(ctx, doc); err != nil {
		return nil, err
	}
	if err := s.deps.Cases.Touch(ctx, doc.CaseID); err != nil {
		s.log.Warn("case touch failed",
			logging.String("case_id", string(doc.CaseID)), logging.Err(err))
	}

	s.postPersist(ctx, doc, text)

	s.log.Info("document reprocessed",
		logging.String("document_id", string(doc.ID)),
		logging.String("case_id", string(doc.CaseID)),
		logging.Int("version", doc.Version),
		logging.String("doc_type", string(doc.Classification.Type)),
	)
	return resultFrom(doc), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Classify (dry run)
// ─────────────────────────────────────────────────────────────────────────────

func (s *serviceImpl) Classify(_ context.Context, input *ClassifyInput) (*ClassifyResult, error) {
	if input == nil || strings.TrimSpace(input.Text) == "" {
		return nil, errors.New(errors.ErrCodeDocumentEmptyText, "document text required")
	}

	// Dry runs stay rule-based: no assist round trip, no storage, so the
	// preview is deterministic and has no side effects.
	cls := s.deps.Recognizer.Recognize(input.Text, input.Filename)
	entities := s.deps.Extractor.ExtractEntities(input.Text)
	fields := s.deps.Mapper.MapFields(entities, cls, input.Text)

	return &ClassifyResult{
		Classification: cls,
		Entities:       entities,
		Fields:         fields,
	}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// GetDocument
// ─────────────────────────────────────────────────────────────────────────────

func (s *serviceImpl) GetDocument(ctx context.Context, documentID common.ID) (*DocumentView, error) {
	if strings.TrimSpace(string(documentID)) == "" {
		return nil, errors.InvalidParam("document id required")
	}
	doc, err := s.deps.Documents.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return &DocumentView{
		DocumentID:     doc.ID,
		CaseID:         doc.CaseID,
		Filename:       doc.Filename,
		ContentKey:     doc.ContentKey,
		UploadedAt:     doc.UploadedAt,
		ProcessedAt:    doc.ProcessedAt,
		Version:        doc.Version,
		Classification: doc.Classification,
		Entities:       doc.Entities,
		Fields:         doc.Fields,
	}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Pipeline internals
// ─────────────────────────────────────────────────────────────────────────────

// analyze runs assist, recognition, extraction, and mapping, then installs
// the results on the aggregate.
func (s *serviceImpl) analyze(ctx context.Context, doc *document.Document, text string) {
	signal := s.assistSignal(ctx, text)

	cls := s.deps.Recognizer.RecognizeWithAssist(text, doc.Filename, signal)
	entities := s.deps.Extractor.ExtractEntities(text)
	fields := s.deps.Mapper.MapFields(entities, cls, text)

	doc.ApplyAnalysis(cls, entities, fields)

	prometheus.RecordClassification(s.deps.Metrics,
		string(cls.Category), string(cls.Type), cls.Confidence, string(cls.Urgency))
	prometheus.RecordFieldsExtracted(s.deps.Metrics, string(cls.Type), len(fields.Fields))
}

// assistSignal calls the assist service when configured. Failures are an
// expected condition: they are logged and the pipeline continues rule-based.
func (s *serviceImpl) assistSignal(ctx context.Context, text string) *docs.AssistSignal {
	if s.deps.Assist == nil {
		return nil
	}

	start := time.Now()
	signal, err := s.deps.Assist.Analyze(ctx, text)
	prometheus.RecordAssistCall(s.deps.Metrics, time.Since(start), err)
	if err != nil {
		s.log.Warn("assist unavailable, continuing rule-based", logging.Err(err))
		return nil
	}
	return signal
}

// postPersist drains the aggregate's domain events and fans out the
// best-effort effects. The document is already durable; nothing here can
// fail the call.
func (s *serviceImpl) postPersist(ctx context.Context, doc *document.Document, text string) {
	doc.Events()

	s.indexDocument(ctx, doc, text)
	s.publishClassified(ctx, doc)
	s.publishCaseUpdated(ctx, doc)
	s.invalidateCase(ctx, doc.CaseID)
}

func (s *serviceImpl) indexDocument(ctx context.Context, doc *document.Document, text string) {
	if s.deps.Indexer == nil {
		return
	}
	entry := &opensearch.DocumentEntry{
		CaseID:     string(doc.CaseID),
		Filename:   doc.Filename,
		Category:   string(doc.Classification.Category),
		Type:       string(doc.Classification.Type),
		Title:      doc.Classification.Title,
		Body:       text,
		Urgency:    string(doc.Classification.Urgency),
		UploadedAt: doc.UploadedAt,
	}
	err := s.deps.Indexer.IndexDocument(ctx, string(doc.ID), entry)
	prometheus.RecordSearchOperation(s.deps.Metrics, "index", err)
	if err != nil {
		s.log.Warn("search indexing failed",
			logging.String("document_id", string(doc.ID)), logging.Err(err))
	}
}

func (s *serviceImpl) publishClassified(ctx context.Context, doc *document.Document) {
	if s.deps.Publisher == nil {
		return
	}
	env, err := kafka.NewEnvelope(kafka.EventDocumentClassified, kafka.DocumentClassifiedPayload{
		DocumentID:  string(doc.ID),
		CaseID:      string(doc.CaseID),
		DocType:     string(doc.Classification.Type),
		Confidence:  doc.Classification.Confidence,
		Urgency:     string(doc.Classification.Urgency),
		Version:     doc.Version,
		ProcessedAt: processedAt(doc),
	})
	if err == nil {
		env.CaseID = string(doc.CaseID)
		env.DocumentID = string(doc.ID)
		err = s.deps.Publisher.PublishEnvelope(ctx, kafka.TopicDocumentClassified, env)
	}
	prometheus.RecordEventPublished(s.deps.Metrics, kafka.TopicDocumentClassified, err)
	if err != nil {
		s.log.Warn("document.classified publish failed",
			logging.String("document_id", string(doc.ID)), logging.Err(err))
	}
}

func (s *serviceImpl) publishCaseUpdated(ctx context.Context, doc *document.Document) {
	if s.deps.Publisher == nil {
		return
	}
	env, err := kafka.NewEnvelope(kafka.EventCaseUpdated, kafka.CaseUpdatedPayload{
		CaseID:     string(doc.CaseID),
		DocumentID: string(doc.ID),
		Reason:     "document_processed",
		UpdatedAt:  time.Now().UTC(),
	})
	if err == nil {
		env.CaseID = string(doc.CaseID)
		env.DocumentID = string(doc.ID)
		err = s.deps.Publisher.PublishEnvelope(ctx, kafka.TopicCaseUpdated, env)
	}
	prometheus.RecordEventPublished(s.deps.Metrics, kafka.TopicCaseUpdated, err)
	if err != nil {
		s.log.Warn("case.updated publish failed",
			logging.String("case_id", string(doc.CaseID)), logging.Err(err))
	}
}

func (s *serviceImpl) invalidateCase(ctx context.Context, caseID common.CaseID) {
	if s.deps.Invalidator == nil {
		return
	}
	if err := s.deps.Invalidator.InvalidateCase(ctx, caseID); err != nil {
		s.log.Warn("case cache invalidation failed",
			logging.String("case_id", string(caseID)), logging.Err(err))
	}
}

func resultFrom(doc *document.Document) *IngestResult {
	return &IngestResult{
		DocumentID:          doc.ID,
		CaseID:              doc.CaseID,
		Filename:            doc.Filename,
		ContentKey:          doc.ContentKey,
		Classification:      doc.Classification,
		FieldsExtracted:     len(doc.Fields.Fields),
		FieldsNeedingReview: doc.Fields.FieldsNeedingReview,
		Version:             doc.Version,
		ProcessedAt:         processedAt(doc),
	}
}

func processedAt(doc *document.Document) time.Time {
	if doc.ProcessedAt != nil {
		return *doc.ProcessedAt
	}
	return time.Time{}
}
