//go:build integration

// Package integration exercises the document pipeline against real backing
// services started as containers. Run with:
//
//	go test -tags integration ./test/integration/...
//
// Docker must be available; each test starts what it needs and tears it
// down through t.Cleanup.
package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/opentenancy/caseintel/internal/application/casebuild"
	"github.com/opentenancy/caseintel/internal/application/intake"
	"github.com/opentenancy/caseintel/internal/config"
	"github.com/opentenancy/caseintel/internal/infrastructure/database/postgres"
	"github.com/opentenancy/caseintel/internal/infrastructure/database/postgres/repositories"
	"github.com/opentenancy/caseintel/internal/infrastructure/database/redis"
	"github.com/opentenancy/caseintel/internal/infrastructure/storage/minio"
	"github.com/opentenancy/caseintel/internal/intelligence/extractor"
	"github.com/opentenancy/caseintel/internal/intelligence/fieldmap"
	"github.com/opentenancy/caseintel/internal/intelligence/recognizer"
	"github.com/opentenancy/caseintel/pkg/types/common"
)

const containerStartupTimeout = 120 * time.Second

// ─────────────────────────────────────────────────────────────────────────────
// Container starters
// ─────────────────────────────────────────────────────────────────────────────

func startPostgres(t *testing.T) config.PostgresConfig {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "caseintel",
			"POSTGRES_PASSWORD": "caseintel",
			"POSTGRES_DB":       "caseintel_it",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(containerStartupTimeout),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return config.PostgresConfig{
		Host:     host,
		Port:     port.Int(),
		User:     "caseintel",
		Password: "caseintel",
		Database: "caseintel_it",
		SSLMode:  "disable",
	}
}

func startRedis(t *testing.T) config.RedisConfig {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(containerStartupTimeout),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	return config.RedisConfig{
		Mode:  "standalone",
		Addrs: []string{host + ":" + port.Port()},
	}
}

func startMinIO(t *testing.T) config.MinIOConfig {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "minio/minio:RELEASE.2024-01-16T16-07-38Z",
		ExposedPorts: []string{"9000/tcp"},
		Cmd:          []string{"server", "/data"},
		Env: map[string]string{
			"MINIO_ROOT_USER":     "caseintel",
			"MINIO_ROOT_PASSWORD": "caseintel-secret",
		},
		WaitingFor: wait.ForHTTP("/minio/health/live").
			WithPort("9000/tcp").
			WithStartupTimeout(containerStartupTimeout),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err)

	return config.MinIOConfig{
		Endpoint:  host + ":" + port.Port(),
		AccessKey: "caseintel",
		SecretKey: "caseintel-secret",
		Bucket:    "caseintel-it",
	}
}

func startOpenSearch(t *testing.T) config.OpenSearchConfig {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "opensearchproject/opensearch:2.11.1",
		ExposedPorts: []string{"9200/tcp"},
		Env: map[string]string{
			"discovery.type":          "single-node",
			"DISABLE_SECURITY_PLUGIN": "true",
			"OPENSEARCH_JAVA_OPTS":    "-Xms512m -Xmx512m",
		},
		WaitingFor: wait.ForHTTP("/").
			WithPort("9200/tcp").
			WithStartupTimeout(containerStartupTimeout),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "9200")
	require.NoError(t, err)

	return config.OpenSearchConfig{
		Enabled:   true,
		Addresses: []string{"http://" + host + ":" + port.Port()},
		Index:     "caseintel-it-documents",
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Pipeline environment
// ─────────────────────────────────────────────────────────────────────────────

// pipelineEnv wires real repositories, cache, and archive into the intake
// and casebuild services, leaving Kafka and OpenSearch out. Both are
// optional pipeline deps, and their packages have their own coverage.
type pipelineEnv struct {
	Documents *repositories.DocumentRepository
	Cases     *repositories.CaseRepository
	Cache     redis.Cache
	Archive   *minio.DocumentArchive
	Intake    intake.Service
	Casebuild casebuild.Service
}

func newPipelineEnv(t *testing.T) *pipelineEnv {
	t.Helper()
	ctx := context.Background()

	pgCfg := startPostgres(t)
	redisCfg := startRedis(t)
	minioCfg := startMinIO(t)

	require.NoError(t, postgres.RunMigrations(pgCfg.DSN(), ""))

	conn, err := postgres.NewConnection(ctx, pgCfg, nil)
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	redisClient, err := redis.NewClient(redisCfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = redisClient.Close() })

	minioClient, err := minio.NewClient(minioCfg, nil)
	require.NoError(t, err)

	env := &pipelineEnv{
		Documents: repositories.NewDocumentRepository(conn.Pool(), nil),
		Cases:     repositories.NewCaseRepository(conn.Pool(), nil),
		Cache:     redis.NewCache(redisClient, nil, redis.WithPrefix("it"), redis.WithJitter(0)),
		Archive:   minio.NewDocumentArchive(minioClient, nil),
	}

	env.Casebuild, err = casebuild.NewService(casebuild.Deps{
		Documents: env.Documents,
		Cases:     env.Cases,
		Cache:     env.Cache,
		Locks: func(caseID common.CaseID) casebuild.RebuildLocker {
			return redis.NewMutex(redisClient, nil, "rebuild:"+string(caseID))
		},
	})
	require.NoError(t, err)

	env.Intake, err = intake.NewService(intake.Deps{
		Recognizer:  recognizer.NewEngine(recognizer.Config{}, nil),
		Extractor:   extractor.NewExtractor(extractor.Config{}, nil),
		Mapper:      fieldmap.NewMapper(fieldmap.Config{}, nil),
		Documents:   env.Documents,
		Cases:       env.Cases,
		Archive:     env.Archive,
		Invalidator: env.Casebuild,
	})
	require.NoError(t, err)

	return env
}

// ─────────────────────────────────────────────────────────────────────────────
// Fixtures
// ─────────────────────────────────────────────────────────────────────────────

const summonsText = `STATE OF MINNESOTA                            DISTRICT COURT
COUNTY OF HENNEPIN                 HOUSING COURT DIVISION

Oak Grove Properties LLC,
          Plaintiff,
v.
Maria Lopez,
          Defendant.

EVICTION ACTION SUMMONS

Case No: 27-CV-27-0042

THE STATE OF MINNESOTA TO THE ABOVE-NAMED DEFENDANT:

You are hereby summoned and required to serve upon plaintiff's
attorney a written answer to the attached complaint. The hearing
is scheduled for October 15, 2027 at 9:00 a.m. before the
Hennepin County Housing Court. If you fail to appear, judgment
by default will be entered against you. The total amount
claimed is $3,900.00.`

const leaseText = `RESIDENTIAL LEASE AGREEMENT

LANDLORD: Oak Grove Properties LLC
TENANT: Maria Lopez
PREMISES: 448 Thomas Avenue N, Minneapolis, MN 55405

MONTHLY RENT: $1,200.00 due on the first day of each month.
SECURITY DEPOSIT: $1,200.00 held per Minn. Stat. 504B.178.
The lease term begins January 1, 2027 and ends December 31, 2027.`
