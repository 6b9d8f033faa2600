package repositories

import (
	"context"
	stdliberrors "errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opentenancy/caseintel/internal/domain/document"
	"github.com/opentenancy/caseintel/internal/infrastructure/monitoring/logging"
	appErrors "github.com/opentenancy/caseintel/pkg/errors"
	"github.com/opentenancy/caseintel/pkg/types/common"
)

// ─────────────────────────────────────────────────────────────────────────────
// CaseRepository
// ─────────────────────────────────────────────────────────────────────────────

// CaseRepository is the PostgreSQL implementation of document.CaseRepository.
type CaseRepository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

var _ document.CaseRepository = (*CaseRepository)(nil)

// NewCaseRepository constructs a ready-to-use CaseRepository.
func NewCaseRepository(pool *pgxpool.Pool, logger logging.Logger) *CaseRepository {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &CaseRepository{pool: pool, logger: logger}
}

// Ensure creates the case row if it does not already exist.
func (r *CaseRepository) Ensure(ctx context.Context, id common.CaseID) error {
	r.logger.Debug("CaseRepository.Ensure", logging.String("case_id", string(id)))

	_, err := r.pool.Exec(ctx, `
		INSERT INTO cases (id) VALUES ($1)
		ON CONFLICT (id) DO NOTHING`, id)
	if err != nil {
		r.logger.Error("CaseRepository.Ensure", logging.Err(err))
		return appErrors.Wrap(err, appErrors.ErrCodeDatabaseError, "failed to ensure case")
	}
	return nil
}

// GetByID loads a case record together with its current document count.
func (r *CaseRepository) GetByID(ctx context.Context, id common.CaseID) (*document.Case, error) {
	r.logger.Debug("CaseRepository.GetByID", logging.String("case_id", string(id)))

	var c document.Case
	err := r.pool.QueryRow(ctx, `
		SELECT c.id, c.created_at, c.updated_at, COUNT(d.id)
		FROM cases c
		LEFT JOIN documents d ON d.case_id = c.id
		WHERE c.id = $1
		GROUP BY c.id, c.created_at, c.updated_at`, id).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt, &c.DocumentCount)
	if err != nil {
		if stdliberrors.Is(err, pgx.ErrNoRows) {
			return nil, appErrors.New(appErrors.ErrCodeCaseNotFound, "case not found")
		}
		r.logger.Error("CaseRepository.GetByID", logging.Err(err))
		return nil, appErrors.Wrap(err, appErrors.ErrCodeDatabaseError, "failed to load case")
	}
	return &c, nil
}

// Touch bumps updated_at, marking case-level activity.
func (r *CaseRepository) Touch(ctx context.Context, id common.CaseID) error {
	r.logger.Debug("CaseRepository.Touch", logging.String("case_id", string(id)))

	tag, err := r.pool.Exec(ctx, `
		UPDATE cases SET updated_at = now() WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("CaseRepository.Touch", logging.Err(err))
		return appErrors.Wrap(err, appErrors.ErrCodeDatabaseError, "failed to touch case")
	}
	if tag.RowsAffected() == 0 {
		return appErrors.New(appErrors.ErrCodeCaseNotFound, "case not found")
	}
	return nil
}
