// Package repositories provides PostgreSQL-backed implementations of the
// domain repository interfaces. Every method takes a context for
// cancellation propagation and uses parameterised queries exclusively;
// structured analysis results are stored as JSONB.
package repositories

import (
	"context"
	"encoding/json"
	stdliberrors "errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opentenancy/caseintel/internal/domain/document"
	"github.com/opentenancy/caseintel/internal/infrastructure/monitoring/logging"
	appErrors "github.com/opentenancy/caseintel/pkg/errors"
	"github.com/opentenancy/caseintel/pkg/types/common"
	"github.com/opentenancy/caseintel/pkg/types/docs"
)

// ─────────────────────────────────────────────────────────────────────────────
// DocumentRepository
// ─────────────────────────────────────────────────────────────────────────────

// DocumentRepository is the PostgreSQL implementation of
// document.DocumentRepository.
type DocumentRepository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

var _ document.DocumentRepository = (*DocumentRepository)(nil)

// NewDocumentRepository constructs a ready-to-use DocumentRepository.
func NewDocumentRepository(pool *pgxpool.Pool, logger logging.Logger) *DocumentRepository {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &DocumentRepository{pool: pool, logger: logger}
}

const documentColumns = `
	id, case_id, filename, content_key,
	classification, entities, fields,
	uploaded_at, processed_at, version`

// Create inserts a new document row with its full analysis state.
func (r *DocumentRepository) Create(ctx context.Context, d *document.Document) error {
	r.logger.Debug("DocumentRepository.Create", logging.String("document_id", string(d.ID)))

	clsJSON, entJSON, fieldsJSON, err := marshalAnalysis(d)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO documents (
			id, case_id, filename, content_key,
			classification, entities, fields,
			uploaded_at, processed_at, version
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		d.ID, d.CaseID, d.Filename, d.ContentKey,
		clsJSON, entJSON, fieldsJSON,
		d.UploadedAt, d.ProcessedAt, d.Version,
	)
	if err != nil {
		r.logger.Error("DocumentRepository.Create: insert", logging.Err(err))
		return appErrors.Wrap(err, appErrors.ErrCodeDocumentStoreFailed, "failed to insert document")
	}
	return nil
}

// GetByID loads a single document by primary key.
func (r *DocumentRepository) GetByID(ctx context.Context, id common.ID) (*document.Document, error) {
	r.logger.Debug("DocumentRepository.GetByID", logging.String("document_id", string(id)))

	row := r.pool.QueryRow(ctx, `
		SELECT `+documentColumns+`
		FROM documents WHERE id = $1`, id)
	return r.scanDocument(row)
}

// ListByCase returns every document for the case ordered by uploaded_at
// ascending with id as the tiebreaker.
func (r *DocumentRepository) ListByCase(ctx context.Context, caseID common.CaseID) ([]*document.Document, error) {
	r.logger.Debug("DocumentRepository.ListByCase", logging.String("case_id", string(caseID)))

	rows, err := r.pool.Query(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		WHERE case_id = $1
		ORDER BY uploaded_at, id`, caseID)
	if err != nil {
		r.logger.Error("DocumentRepository.ListByCase: query", logging.Err(err))
		return nil, appErrors.Wrap(err, appErrors.ErrCodeDatabaseError, "failed to list documents")
	}
	defer rows.Close()

	out := make([]*document.Document, 0)
	for rows.Next() {
		d, err := r.scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrCodeDatabaseError, "row iteration error")
	}
	return out, nil
}

// UpdateProcessed persists the analysis columns for an existing row.
func (r *DocumentRepository) UpdateProcessed(ctx context.Context, d *document.Document) error {
	r.logger.Debug("DocumentRepository.UpdateProcessed",
		logging.String("document_id", string(d.ID)),
		logging.Int("version", d.Version),
	)

	clsJSON, entJSON, fieldsJSON, err := marshalAnalysis(d)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE documents
		SET classification = $2, entities = $3, fields = $4,
		    processed_at = $5, version = $6
		WHERE id = $1`,
		d.ID, clsJSON, entJSON, fieldsJSON, d.ProcessedAt, d.Version,
	)
	if err != nil {
		r.logger.Error("DocumentRepository.UpdateProcessed: update", logging.Err(err))
		return appErrors.Wrap(err, appErrors.ErrCodeDocumentStoreFailed, "failed to update document")
	}
	if tag.RowsAffected() == 0 {
		return appErrors.New(appErrors.ErrCodeDocumentNotFound, "document not found")
	}
	return nil
}

// Delete removes a document row.
func (r *DocumentRepository) Delete(ctx context.Context, id common.ID) error {
	r.logger.Debug("DocumentRepository.Delete", logging.String("document_id", string(id)))

	tag, err := r.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("DocumentRepository.Delete", logging.Err(err))
		return appErrors.Wrap(err, appErrors.ErrCodeDatabaseError, "failed to delete document")
	}
	if tag.RowsAffected() == 0 {
		return appErrors.New(appErrors.ErrCodeDocumentNotFound, "document not found")
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Row mapping
// ─────────────────────────────────────────────────────────────────────────────

// marshalAnalysis renders the JSONB columns. A nil entity slice is stored as
// an empty array so reads round-trip without null checks.
func marshalAnalysis(d *document.Document) (cls, ents, fields []byte, err error) {
	cls, err = json.Marshal(d.Classification)
	if err != nil {
		return nil, nil, nil, appErrors.Wrap(err, appErrors.ErrCodeSerialization, "marshal classification")
	}

	entities := d.Entities
	if entities == nil {
		entities = []docs.ExtractedEntity{}
	}
	ents, err = json.Marshal(entities)
	if err != nil {
		return nil, nil, nil, appErrors.Wrap(err, appErrors.ErrCodeSerialization, "marshal entities")
	}

	fields, err = json.Marshal(d.Fields)
	if err != nil {
		return nil, nil, nil, appErrors.Wrap(err, appErrors.ErrCodeSerialization, "marshal fields")
	}
	return cls, ents, fields, nil
}

// scanDocument scans one row into a Document.
func (r *DocumentRepository) scanDocument(row pgx.Row) (*document.Document, error) {
	var d document.Document
	var clsJSON, entJSON, fieldsJSON []byte

	err := row.Scan(
		&d.ID, &d.CaseID, &d.Filename, &d.ContentKey,
		&clsJSON, &entJSON, &fieldsJSON,
		&d.UploadedAt, &d.ProcessedAt, &d.Version,
	)
	if err != nil {
		if stdliberrors.Is(err, pgx.ErrNoRows) {
			return nil, appErrors.New(appErrors.ErrCodeDocumentNotFound, "document not found")
		}
		r.logger.Error("scanDocument", logging.Err(err))
		return nil, appErrors.Wrap(err, appErrors.ErrCodeDatabaseError, "failed to scan document row")
	}

	if len(clsJSON) > 0 {
		if err := json.Unmarshal(clsJSON, &d.Classification); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrCodeSerialization, "unmarshal classification")
		}
	}
	if len(entJSON) > 0 {
		if err := json.Unmarshal(entJSON, &d.Entities); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrCodeSerialization, "unmarshal entities")
		}
	}
	if len(fieldsJSON) > 0 {
		if err := json.Unmarshal(fieldsJSON, &d.Fields); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrCodeSerialization, "unmarshal fields")
		}
	}
	return &d, nil
}
