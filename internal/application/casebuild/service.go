// Package casebuild provides the application-level service for case
// snapshot assembly. It folds every processed document in a case into one
// CaseData view, reading through the Redis snapshot cache and rebuilding
// from the document store on demand.
package casebuild

import (
	"context"
	"strings"
	"time"

	"github.com/opentenancy/caseintel/internal/domain/casefile"
	"github.com/opentenancy/caseintel/internal/domain/document"
	"github.com/opentenancy/caseintel/internal/infrastructure/database/redis"
	"github.com/opentenancy/caseintel/internal/infrastructure/monitoring/logging"
	"github.com/opentenancy/caseintel/internal/infrastructure/monitoring/prometheus"
	"github.com/opentenancy/caseintel/pkg/errors"
	"github.com/opentenancy/caseintel/pkg/types/common"
	"github.com/opentenancy/caseintel/pkg/types/docs"
)

// snapshotKeyPrefix namespaces case snapshots inside the shared cache.
const snapshotKeyPrefix = "case:data:"

// DefaultSnapshotTTL bounds how stale a cached case view can get; event
// driven invalidation usually retires snapshots much sooner.
const DefaultSnapshotTTL = 5 * time.Minute

// cacheName labels this cache in hit and miss metrics.
const cacheName = "case_snapshot"

// Service defines the interface for case view operations.
type Service interface {
	// GetCase returns the aggregated view of a case, served from cache
	// when a fresh snapshot exists.
	GetCase(ctx context.Context, caseID common.CaseID) (*docs.CaseData, error)

	// RebuildCase recomputes the view from the document store and
	// refreshes the cached snapshot.
	RebuildCase(ctx context.Context, caseID common.CaseID) (*docs.CaseData, error)

	// InvalidateCase drops the cached snapshot so the next read rebuilds.
	InvalidateCase(ctx context.Context, caseID common.CaseID) error
}

// SnapshotCache is the slice of the cache facade casebuild relies on.
type SnapshotCache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader func(ctx context.Context) (interface{}, error)) error
}

// RebuildLocker guards one case's rebuild critical section.
type RebuildLocker interface {
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
}

// LockFactory returns the rebuild lock scoped to one case.
type LockFactory func(caseID common.CaseID) RebuildLocker

// Deps bundles the service's collaborators. Documents, Cases, and Cache
// are required; Locks is optional and nil disables rebuild locking.
type Deps struct {
	Documents document.DocumentRepository
	Cases     document.CaseRepository
	Cache     SnapshotCache
	Locks     LockFactory

	// TTL overrides DefaultSnapshotTTL when positive.
	TTL time.Duration

	Metrics *prometheus.AppMetrics
	Logger  logging.Logger
}

type serviceImpl struct {
	deps Deps
	ttl  time.Duration
	log  logging.Logger
}

// NewService validates deps and builds the casebuild service.
func NewService(deps Deps) (Service, error) {
	switch {
	case deps.Documents == nil:
		return nil, errors.New(errors.ErrCodeValidation, "casebuild: document repository required")
	case deps.Cases == nil:
		return nil, errors.New(errors.ErrCodeValidation, "casebuild: case repository required")
	case deps.Cache == nil:
		return nil, errors.New(errors.ErrCodeValidation, "casebuild: snapshot cache required")
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNopLogger()
	}
	ttl := deps.TTL
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	return &serviceImpl{
		deps: deps,
		ttl:  ttl,
		log:  deps.Logger.With(logging.String("service", "casebuild")),
	}, nil
}

func snapshotKey(caseID common.CaseID) string {
	return snapshotKeyPrefix + string(caseID)
}

// ─────────────────────────────────────────────────────────────────────────────
// GetCase
// ─────────────────────────────────────────────────────────────────────────────

func (s *serviceImpl) GetCase(ctx context.Context, caseID common.CaseID) (*docs.CaseData, error) {
	if strings.TrimSpace(string(caseID)) == "" {
		return nil, errors.InvalidParam("case id required")
	}

	start := time.Now()
	var data docs.CaseData
	loaded := false

	err := s.deps.Cache.GetOrSet(ctx, snapshotKey(caseID), &data, s.ttl,
		func(ctx context.Context) (interface{}, error) {
			loaded = true
			cd, err := s.build(ctx, caseID)
			if err != nil {
				return nil, err
			}
			if cd.DocumentCount == 0 {
				if err := s.caseExists(ctx, caseID); err != nil {
					return nil, err
				}
				// Known case with no documents yet: the nil result is
				// cached as a null marker.
				return nil, nil
			}
			return cd, nil
		})

	switch {
	case err == nil:
		prometheus.RecordCacheAccess(s.deps.Metrics, cacheName, !loaded)
		prometheus.RecordCaseBuild(s.deps.Metrics, !loaded, time.Since(start))
		return &data, nil

	case err == redis.ErrCacheMiss:
		return nil, errors.Newf(errors.ErrCodeCaseNoDocuments, "case %s has no documents", caseID)

	case errors.IsCode(err, errors.ErrCodeCacheError):
		// Cache outage. The view is still computable, so serve it straight
		// from the store.
		s.log.Warn("snapshot cache unavailable, building directly",
			logging.String("case_id", string(caseID)), logging.Err(err))
		return s.buildChecked(ctx, caseID, start)

	default:
		return nil, err
	}
}

// caseExists returns the repository's not-found error when the case row is
// missing, separating unknown cases from known cases with no documents.
func (s *serviceImpl) caseExists(ctx context.Context, caseID common.CaseID) error {
	_, err := s.deps.Cases.GetByID(ctx, caseID)
	return err
}

// ─────────────────────────────────────────────────────────────────────────────
// RebuildCase
// ─────────────────────────────────────────────────────────────────────────────

func (s *serviceImpl) RebuildCase(ctx context.Context, caseID common.CaseID) (*docs.CaseData, error) {
	if strings.TrimSpace(string(caseID)) == "" {
		return nil, errors.InvalidParam("case id required")
	}

	if s.deps.Locks != nil {
		lock := s.deps.Locks(caseID)
		ok, err := lock.TryLock(ctx)
		switch {
		case err != nil:
			s.log.Warn("rebuild lock unavailable, continuing unlocked",
				logging.String("case_id", string(caseID)), logging.Err(err))
		case !ok:
			return nil, errors.Newf(errors.ErrCodeCaseRebuildLocked,
				"case %s rebuild already in progress", caseID)
		default:
			defer func() {
				if uerr := lock.Unlock(ctx); uerr != nil {
					s.log.Warn("rebuild lock release failed",
						logging.String("case_id", string(caseID)), logging.Err(uerr))
				}
			}()
		}
	}

	start := time.Now()
	cd, err := s.buildChecked(ctx, caseID, start)
	if err != nil {
		if errors.IsCode(err, errors.ErrCodeCaseNoDocuments) {
			// The case emptied out; drop whatever snapshot remains.
			if derr := s.deps.Cache.Delete(ctx, snapshotKey(caseID)); derr != nil {
				s.log.Warn("stale snapshot delete failed",
					logging.String("case_id", string(caseID)), logging.Err(derr))
			}
		}
		return nil, err
	}

	if serr := s.deps.Cache.Set(ctx, snapshotKey(caseID), cd, s.ttl); serr != nil {
		s.log.Warn("snapshot refresh failed",
			logging.String("case_id", string(caseID)), logging.Err(serr))
	}

	s.log.Info("case rebuilt",
		logging.String("case_id", string(caseID)),
		logging.Int("documents", cd.DocumentCount),
	)
	return cd, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// InvalidateCase
// ─────────────────────────────────────────────────────────────────────────────

func (s *serviceImpl) InvalidateCase(ctx context.Context, caseID common.CaseID) error {
	if strings.TrimSpace(string(caseID)) == "" {
		return errors.InvalidParam("case id required")
	}
	if err := s.deps.Cache.Delete(ctx, snapshotKey(caseID)); err != nil {
		return errors.Wrapf(err, errors.ErrCodeCaseInvalidateFailed,
			"failed to invalidate case %s", caseID)
	}
	s.log.Debug("case snapshot invalidated", logging.String("case_id", string(caseID)))
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Aggregation
// ─────────────────────────────────────────────────────────────────────────────

// build loads the case's documents and folds them into a CaseData view.
// The repository returns documents ordered by upload time then ID, which
// is the order the aggregator's tier rules assume.
func (s *serviceImpl) build(ctx context.Context, caseID common.CaseID) (*docs.CaseData, error) {
	list, err := s.deps.Documents.ListByCase(ctx, caseID)
	if err != nil {
		return nil, err
	}

	extracts := make([]docs.DocumentExtract, 0, len(list))
	for _, d := range list {
		extracts = append(extracts, docs.DocumentExtract{
			DocumentID:     d.ID,
			Filename:       d.Filename,
			UploadedAt:     d.UploadedAt,
			Classification: d.Classification,
			Entities:       d.Entities,
			Extraction:     d.Fields,
		})
	}

	data := casefile.Aggregate(caseID, extracts)
	return &data, nil
}

// buildChecked is build plus the empty-case check and store-build metrics,
// shared by the cache-outage path and RebuildCase.
func (s *serviceImpl) buildChecked(ctx context.Context, caseID common.CaseID, start time.Time) (*docs.CaseData, error) {
	cd, err := s.build(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if cd.DocumentCount == 0 {
		if err := s.caseExists(ctx, caseID); err != nil {
			return nil, err
		}
		return nil, errors.Newf(errors.ErrCodeCaseNoDocuments, "case %s has no documents", caseID)
	}
	prometheus.RecordCaseBuild(s.deps.Metrics, false, time.Since(start))
	return cd, nil
}

// Compile-time check that the production cache satisfies the slice of it
// casebuild uses.
var _ SnapshotCache = (redis.Cache)(nil)
