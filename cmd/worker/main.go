// The caseintel background worker. Consumes document.ingested events and
// runs the full intake pipeline on them, and consumes case.updated events to
// drop stale case snapshots. Retries and dead-lettering are handled inside
// the Kafka consumer; this binary wires handlers and lifecycle.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	stdliberrors "errors"

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
	"github.com/opentenancy/caseintel/pkg/types/common"
)

const defaultConfigPath = "configs/config.yaml"

// version is injected at link time via -ldflags.
var version = "dev"

// consumedTopics lists every topic this worker can handle. The --topics flag
// narrows the set for role-split deployments.
var consumedTopics = []string{
	kafka.TopicDocumentIngested,
	kafka.TopicCaseUpdated,
}

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	consumers := flag.Int("consumers", 0, "number of consumer instances (default: worker.concurrency)")
	topicFilter := flag.String("topics", "", "comma-separated subset of topics to consume")
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

	numConsumers := cfg.Worker.Concurrency
	if *consumers > 0 {
		numConsumers = *consumers
	}

	topics, err := selectTopics(*topicFilter)
	if err != nil {
		logger.Fatal("invalid --topics", logging.Err(err))
	}

	logger.Info("starting caseintel worker",
		logging.String("version", version),
		logging.Int("consumers", numConsumers),
		logging.String("topics", strings.Join(topics, ",")))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	infra, err := initInfrastructure(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("infrastructure initialization failed", logging.Err(err))
	}
	defer infra.Close()

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            "caseintel",
		Subsystem:            "worker",
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

	handlers := map[string]common.MessageHandler{
		kafka.TopicDocumentIngested: handleDocumentIngested(intakeSvc, infra.archive, cfg.Worker.HandlerTimeout, logger),
		kafka.TopicCaseUpdated:      handleCaseUpdated(caseSvc, logger),
	}

	group, err := startConsumers(ctx, cfg, numConsumers, topics, handlers, logger)
	if err != nil {
		logger.Fatal("consumer startup failed", logging.Err(err))
	}

	healthSrv := startHealthServer(cfg, infra, collector, logger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("shutdown signal received", logging.String("signal", sig.String()))

	cancel()
	for _, c := range group {
		if err := c.Close(); err != nil {
			logger.Warn("consumer close error", logging.Err(err))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("health server shutdown error", logging.Err(err))
	}

	logger.Info("caseintel worker stopped")
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

// selectTopics applies the --topics filter against the known topic set.
func selectTopics(filter string) ([]string, error) {
	if filter == "" {
		return consumedTopics, nil
	}

	known := make(map[string]bool, len(consumedTopics))
	for _, t := range consumedTopics {
		known[t] = true
	}

	var topics []string
	for _, t := range strings.Split(filter, ",") {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if !known[t] {
			return nil, fmt.Errorf("unknown topic %q, known: %s", t, strings.Join(consumedTopics, ", "))
		}
		topics = append(topics, t)
	}
	if len(topics) == 0 {
		return nil, stdliberrors.New("topic filter selected nothing")
	}
	return topics, nil
}

// infrastructure bundles the worker's external clients.
type infrastructure struct {
	pg         *postgres.Connection
	redis      *redis.Client
	producer   *kafka.Producer
	minio      *minio.Client
	archive    *minio.DocumentArchive
	opensearch *opensearch.Client
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

// initInfrastructure connects the worker's clients. Schema migrations are
// the API server's job; the worker assumes an up-to-date database.
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

	minioClient, err := minio.NewClient(cfg.MinIO, logger)
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("minio: %w", err)
	}
	infra.minio = minioClient
	infra.archive = minio.NewDocumentArchive(minioClient, logger)

	osClient, err := opensearch.NewClient(cfg.OpenSearch, logger)
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("opensearch: %w", err)
	}
	infra.opensearch = osClient
	infra.indexer = opensearch.NewIndexer(osClient, cfg.OpenSearch, logger)

	logger.Info("worker infrastructure initialized")
	return infra, nil
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
		Archive:     infra.archive,
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

// startConsumers launches n consumer instances in one consumer group, so the
// broker spreads partitions across them.
func startConsumers(
	ctx context.Context,
	cfg *config.Config,
	n int,
	topics []string,
	handlers map[string]common.MessageHandler,
	logger logging.Logger,
) ([]*kafka.Consumer, error) {
	retry := kafka.RetryConfig{
		MaxRetries:      cfg.Worker.MaxRetries,
		Backoff:         cfg.Worker.RetryBackoff,
		DeadLetterTopic: kafka.TopicDeadLetter,
	}

	group := make([]*kafka.Consumer, 0, n)
	for i := 0; i < n; i++ {
		c, err := kafka.NewConsumer(cfg.Kafka, topics, retry, logger)
		if err != nil {
			for _, started := range group {
				_ = started.Close()
			}
			return nil, err
		}
		for topic, handler := range handlers {
			c.Subscribe(topic, handler)
		}
		if err := c.Start(ctx); err != nil {
			_ = c.Close()
			for _, started := range group {
				_ = started.Close()
			}
			return nil, err
		}
		group = append(group, c)
	}
	return group, nil
}

// handleDocumentIngested runs the intake pipeline on an uploaded document.
// The text arrives inline or as an archive key from a producer that already
// stored it.
func handleDocumentIngested(
	intakeSvc intake.Service,
	archive *minio.DocumentArchive,
	timeout time.Duration,
	logger logging.Logger,
) common.MessageHandler {
	return func(ctx context.Context, msg *common.Message) error {
		env, err := kafka.DecodeEnvelope(msg)
		if err != nil {
			return err
		}
		var payload kafka.DocumentIngestedPayload
		if err := kafka.DecodePayload(env, &payload); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		text := payload.Text
		if text == "" && payload.ContentKey != "" {
			text, err = archive.GetText(ctx, payload.ContentKey)
			if err != nil {
				return err
			}
		}

		result, err := intakeSvc.IngestDocument(ctx, intake.IngestInput{
			CaseID:     common.CaseID(payload.CaseID),
			Filename:   payload.Filename,
			Text:       text,
			UploadedAt: payload.UploadedAt,
			Source:     intake.SourceQueue,
		})
		if err != nil {
			return err
		}

		logger.Info("document ingested from queue",
			logging.String("event_id", env.EventID),
			logging.String("document_id", string(result.DocumentID)),
			logging.String("case_id", string(result.CaseID)),
			logging.String("doc_type", string(result.Classification.Type)))
		return nil
	}
}

// handleCaseUpdated drops the cached snapshot for a changed case.
func handleCaseUpdated(caseSvc casebuild.Service, logger logging.Logger) common.MessageHandler {
	return func(ctx context.Context, msg *common.Message) error {
		env, err := kafka.DecodeEnvelope(msg)
		if err != nil {
			return err
		}
		var payload kafka.CaseUpdatedPayload
		if err := kafka.DecodePayload(env, &payload); err != nil {
			return err
		}

		if err := caseSvc.InvalidateCase(ctx, common.CaseID(payload.CaseID)); err != nil {
			return err
		}

		logger.Debug("case snapshot invalidated",
			logging.String("case_id", payload.CaseID),
			logging.String("reason", payload.Reason))
		return nil
	}
}

// startHealthServer exposes liveness, readiness, and metrics for the worker
// process on its own port.
func startHealthServer(
	cfg *config.Config,
	infra *infrastructure,
	collector prometheus.MetricsCollector,
	logger logging.Logger,
) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok", "version": version})
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := map[string]func(context.Context) error{
			"postgres": infra.pg.HealthCheck,
			"redis":    infra.redis.Ping,
			"minio":    infra.minio.Ping,
		}

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, probe := range checks {
			if err := probe(ctx); err != nil {
				status = http.StatusServiceUnavailable
				results[name] = err.Error()
			} else {
				results[name] = "ok"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(results)
	})

	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Worker.HealthPort),
		Handler: mux,
	}

	go func() {
		logger.Info("worker health server listening", logging.Int("port", cfg.Worker.HealthPort))
		if err := srv.ListenAndServe(); err != nil && !stdliberrors.Is(err, http.ErrServerClosed) {
			logger.Error("health server error", logging.Err(err))
		}
	}()

	return srv
}
