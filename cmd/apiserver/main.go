// The caseintel API server. Applies pending migrations at startup, then
// wires storage, messaging, search, and the intelligence pipeline into the
// HTTP interface and serves until SIGINT or SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/opentenancy/caseintel/internal/application/casebuild"
	"github.com/opentenancy/caseintel/internal/application/intake"
	"github.com/opentenancy/caseintel/internal/config"
	"github.com/opentenancy/caseintel/internal/infrastructure/database/postgres"
	"github.com/opentenancy/caseintel/internal/infrastructure/database/postgres/repositories"
	"github.com/opentenancy/caseintel/internal/infrastructure/database/redis"
	"github.com/opentenancy/caseintel/internal/infrastructure/messaging/kafka"
	"github.com/opentenancy/caseintel/internal/infrastructure/monitoring/logging"
	"github.com/opentenancy/caseintel/internal/infrastructure/monitoring/prometheus"
	"github.com/opentenancy/caseintel/internal/infrastructure/search/opensearch"
	"github.com/opentenancy/caseintel/internal/infrastructure/storage/minio"
	"github.com/opentenancy/caseintel/internal/intelligence/assist"
	"github.com/opentenancy/caseintel/internal/intelligence/extractor"
	"github.com/opentenancy/caseintel/internal/intelligence/fieldmap"
	"github.com/opentenancy/caseintel/internal/intelligence/recognizer"
	httpserver "github.com/opentenancy/caseintel/internal/interfaces/http"
	"github.com/opentenancy/caseintel/internal/interfaces/http/handlers"
	"github.com/opentenancy/caseintel/internal/interfaces/http/middleware"
	"github.com/opentenancy/caseintel/pkg/types/common"
)

const defaultConfigPath = "configs/config.yaml"

// version is injected at link time via -ldflags.
var version = "dev"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetDefault(logger)

	logger.Info("starting caseintel API server",
		logging.String("version", version),
		logging.String("addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)))

	ctx := context.Background()

	if err := postgres.RunMigrations(cfg.Postgres.DSN(), ""); err != nil {
		logger.Fatal("database migration failed", logging.Err(err))
	}

	infra, err := initInfrastructure(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("infrastructure initialization failed", logging.Err(err))
	}
	defer infra.Close()

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            "caseintel",
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, logger)
	if err != nil {
		logger.Fatal("metrics collector initialization failed", logging.Err(err))
	}
	appMetrics := prometheus.NewAppMetrics(collector)

	intakeSvc, caseSvc, err := buildServices(cfg, infra, appMetrics, logger)
	if err != nil {
		logger.Fatal("service initialization failed", logging.Err(err))
	}

	router := buildRouter(cfg, infra, intakeSvc, caseSvc, collector, appMetrics, logger)

	server := httpserver.NewServer(cfg.Server, router, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()
	logger.Info("HTTP server listening", logging.String("addr", server.Addr()))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("shutdown signal received", logging.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("HTTP server failed", logging.Err(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", logging.Err(err))
	}

	logger.Info("caseintel API server stopped")
}

// loadConfig reads the config file when present, otherwise falls back to
// CASEINTEL_* environment variables with built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); err == nil {
		return config.Load(path)
	}
	fmt.Fprintf(os.Stderr, "config file %s not found, using environment and defaults\n", path)
	return config.LoadFromEnv()
}

// infrastructure bundles every external client the server owns, closed in
// reverse dependency order on shutdown.
type infrastructure struct {
	pg         *postgres.Connection
	redis      *redis.Client
	producer   *kafka.Producer
	minio      *minio.Client
	opensearch *opensearch.Client
	searcher   *opensearch.Searcher
	indexer    *opensearch.Indexer
	logger     logging.Logger
}

func (i *infrastructure) Close() {
	if i.producer != nil {
		if err := i.producer.Close(); err != nil {
			i.logger.Warn("kafka producer close error", logging.Err(err))
		}
	}
	if i.opensearch != nil {
		_ = i.opensearch.Close()
	}
	if i.redis != nil {
		if err := i.redis.Close(); err != nil {
			i.logger.Warn("redis close error", logging.Err(err))
		}
	}
	if i.pg != nil {
		i.pg.Close()
	}
}

func initInfrastructure(ctx context.Context, cfg *config.Config, logger logging.Logger) (*infrastructure, error) {
	infra := &infrastructure{logger: logger}

	pg, err := postgres.NewConnection(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	infra.pg = pg

	redisClient, err := redis.NewClient(cfg.Redis, logger)
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}
	infra.redis = redisClient

	producer, err := kafka.NewProducer(cfg.Kafka, logger)
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	infra.producer = producer

	if cfg.Kafka.AutoCreateTopics {
		if err := ensureTopics(ctx, cfg, logger); err != nil {
			logger.Warn("topic creation failed, continuing", logging.Err(err))
		}
	}

	minioClient, err := minio.NewClient(cfg.MinIO, logger)
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("minio: %w", err)
	}
	infra.minio = minioClient

	osClient, err := opensearch.NewClient(cfg.OpenSearch, logger)
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("opensearch: %w", err)
	}
	infra.opensearch = osClient
	infra.searcher = opensearch.NewSearcher(osClient, logger)
	infra.indexer = opensearch.NewIndexer(osClient, cfg.OpenSearch, logger)

	if err := infra.indexer.EnsureIndex(ctx); err != nil {
		// Search is a degradable feature; the pipeline stays up without it.
		logger.Warn("search index creation failed, continuing", logging.Err(err))
	}

	logger.Info("infrastructure initialized")
	return infra, nil
}

func ensureTopics(ctx context.Context, cfg *config.Config, logger logging.Logger) error {
	manager, err := kafka.NewTopicManager(cfg.Kafka.Brokers, logger)
	if err != nil {
		return err
	}
	defer manager.Close()
	return manager.EnsureDefaultTopics(ctx, cfg.Kafka)
}

func buildServices(
	cfg *config.Config,
	infra *infrastructure,
	appMetrics *prometheus.AppMetrics,
	logger logging.Logger,
) (intake.Service, casebuild.Service, error) {
	docRepo := repositories.NewDocumentRepository(infra.pg.Pool(), logger)
	caseRepo := repositories.NewCaseRepository(infra.pg.Pool(), logger)

	cache := redis.NewCache(infra.redis, logger,
		redis.WithPrefix(cfg.Cache.Prefix),
		redis.WithJitter(cfg.Cache.Jitter))

	caseSvc, err := casebuild.NewService(casebuild.Deps{
		Documents: docRepo,
		Cases:     caseRepo,
		Cache:     cache,
		Locks: func(caseID common.CaseID) casebuild.RebuildLocker {
			return redis.NewMutex(infra.redis, logger, "rebuild:"+string(caseID))
		},
		TTL:     cfg.Cache.CaseTTL,
		Metrics: appMetrics,
		Logger:  logger,
	})
	if err != nil {
		return nil, nil, err
	}

	var assistClient assist.Client
	if cfg.Assist.Enabled {
		assistClient, err = assist.NewClient(assist.Config{
			BaseURL:  cfg.Assist.BaseURL,
			APIKey:   cfg.Assist.APIKey,
			Timeout:  cfg.Assist.Timeout,
			MaxChars: cfg.Assist.MaxChars,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
	}

	intakeSvc, err := intake.NewService(intake.Deps{
		Recognizer: recognizer.NewEngine(recognizer.Config{
			NearTermDays: cfg.Pipeline.NearTermDays,
		}, logger),
		Extractor: extractor.NewExtractor(extractor.Config{
			DefaultState: cfg.Pipeline.DefaultState,
		}, logger),
		Mapper: fieldmap.NewMapper(fieldmap.Config{
			AnswerOffsetDays: cfg.Pipeline.AnswerDeadlineDays,
		}, logger),
		Assist:      assistClient,
		Documents:   docRepo,
		Cases:       caseRepo,
		Archive:     minio.NewDocumentArchive(infra.minio, logger),
		Publisher:   infra.producer,
		Indexer:     infra.indexer,
		Invalidator: caseSvc,
		Metrics:     appMetrics,
		Logger:      logger,
	})
	if err != nil {
		return nil, nil, err
	}

	return intakeSvc, caseSvc, nil
}

func buildRouter(
	cfg *config.Config,
	infra *infrastructure,
	intakeSvc intake.Service,
	caseSvc casebuild.Service,
	collector prometheus.MetricsCollector,
	appMetrics *prometheus.AppMetrics,
	logger logging.Logger,
) http.Handler {
	// Readiness covers the hard dependencies only. OpenSearch and Kafka are
	// degradable: their failures surface per-endpoint, not as pod restarts.
	health := handlers.NewHealthHandler(version,
		handlers.CheckerFunc{ComponentName: "postgres", Probe: infra.pg.HealthCheck},
		handlers.CheckerFunc{ComponentName: "redis", Probe: infra.redis.Ping},
		handlers.CheckerFunc{ComponentName: "minio", Probe: infra.minio.Ping},
	)

	routerCfg := httpserver.RouterConfig{
		Documents: handlers.NewDocumentHandler(intakeSvc, logger),
		Cases:     handlers.NewCaseHandler(caseSvc, logger),
		Search:    handlers.NewSearchHandler(infra.searcher, logger),
		Health:    health,
		Logger:    logger,
		Metrics:   appMetrics,
		Collector: collector,
		Mode:      cfg.Server.Mode,
		Logging:   middleware.DefaultLoggingConfig(),
		CORS:      middleware.DefaultCORSConfig(cfg.Server.AllowedOrigins),
		APIKeys:   cfg.Server.APIKeys,
	}
	if cfg.Server.RateLimit > 0 {
		routerCfg.RateLimiter = middleware.NewRedisCounterLimiter(infra.redis, cfg.Server.RateLimit)
	}

	return httpserver.NewRouter(routerCfg)
}
