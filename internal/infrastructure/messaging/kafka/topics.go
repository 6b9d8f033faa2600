package kafka

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/opentenancy/caseintel/internal/config"
	"github.com/opentenancy/caseintel/internal/infrastructure/monitoring/logging"
	"github.com/opentenancy/caseintel/pkg/errors"
	"github.com/opentenancy/caseintel/pkg/types/common"
)

// Topic names. document.ingested feeds the worker's intake path;
// document.classified and case.updated fan results out.
const (
	TopicDocumentIngested   = "caseintel.document.ingested"
	TopicDocumentClassified = "caseintel.document.classified"
	TopicCaseUpdated        = "caseintel.case.updated"
	TopicDeadLetter         = "caseintel.dead_letter"
)

// Event types carried in envelope headers. Topics carry the service
// prefix; event types stay short so consumers match on them without
// knowing the deployment's topic naming.
const (
	EventDocumentIngested   = "document.ingested"
	EventDocumentClassified = "document.classified"
	EventCaseUpdated        = "case.updated"
)

// sourceService identifies this service in envelope Source fields.
const sourceService = "caseintel"

// envelopeSchemaVersion tags the current envelope layout.
const envelopeSchemaVersion = "v1"

// ─────────────────────────────────────────────────────────────────────────────
// Event payloads
// ─────────────────────────────────────────────────────────────────────────────

// DocumentIngestedPayload asks the worker to run intake on a document. The
// text arrives either archived under ContentKey or inline in Text.
type DocumentIngestedPayload struct {
	CaseID     string    `json:"case_id"`
	Filename   string    `json:"filename"`
	ContentKey string    `json:"content_key,omitempty"`
	Text       string    `json:"text,omitempty"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// DocumentClassifiedPayload announces a finished document analysis.
type DocumentClassifiedPayload struct {
	DocumentID  string    `json:"document_id"`
	CaseID      string    `json:"case_id"`
	DocType     string    `json:"doc_type"`
	Confidence  float64   `json:"confidence"`
	Urgency     string    `json:"urgency"`
	Version     int       `json:"version"`
	ProcessedAt time.Time `json:"processed_at"`
}

// CaseUpdatedPayload tells every process holding a cached case snapshot to
// drop it.
type CaseUpdatedPayload struct {
	CaseID     string    `json:"case_id"`
	DocumentID string    `json:"document_id,omitempty"`
	Reason     string    `json:"reason"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Envelope helpers
// ─────────────────────────────────────────────────────────────────────────────

// NewEnvelope wraps payload in the standard envelope. Callers set CaseID
// and DocumentID before publishing so the producer can key by case.
func NewEnvelope(eventType string, payload interface{}) (*common.EventEnvelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal event payload")
	}
	return &common.EventEnvelope{
		EventID:       uuid.New().String(),
		EventType:     eventType,
		Source:        sourceService,
		Timestamp:     time.Now().UTC(),
		SchemaVersion: envelopeSchemaVersion,
		Payload:       data,
	}, nil
}

// EnvelopeMessage renders env as a producer message. The partition key is
// the case ID when present, the document ID otherwise, so one case's
// events never reorder across partitions.
func EnvelopeMessage(topic string, env *common.EventEnvelope) (*common.ProducerMessage, error) {
	val, err := json.Marshal(env)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal envelope")
	}

	headers := map[string]string{
		"event_type":     env.EventType,
		"source_service": env.Source,
		"schema_version": env.SchemaVersion,
	}
	if env.TraceID != "" {
		headers["trace_id"] = env.TraceID
	}

	var key []byte
	switch {
	case env.CaseID != "":
		key = []byte(env.CaseID)
	case env.DocumentID != "":
		key = []byte(env.DocumentID)
	}

	return &common.ProducerMessage{
		Topic:     topic,
		Key:       key,
		Value:     val,
		Headers:   headers,
		Timestamp: env.Timestamp,
	}, nil
}

// DecodeEnvelope parses a consumed message back into an envelope.
func DecodeEnvelope(msg *common.Message) (*common.EventEnvelope, error) {
	if len(msg.Value) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "empty message value")
	}
	var env common.EventEnvelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to unmarshal envelope")
	}
	return &env, nil
}

// DecodePayload parses the envelope payload into target.
func DecodePayload(env *common.EventEnvelope, target interface{}) error {
	if len(env.Payload) == 0 || string(env.Payload) == "null" {
		return errors.New(errors.ErrCodeValidation, "envelope has no payload")
	}
	if err := json.Unmarshal(env.Payload, target); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to unmarshal event payload")
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Topic management
// ─────────────────────────────────────────────────────────────────────────────

// ConnInterface abstracts kafka.Conn so tests can substitute a fake.
type ConnInterface interface {
	CreateTopics(topics ...kafka.TopicConfig) error
	DeleteTopics(topics ...string) error
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	Close() error
}

// TopicManager provisions topics before producers and consumers start.
type TopicManager struct {
	conn   ConnInterface
	logger logging.Logger
}

// NewTopicManager dials the first broker for admin operations.
func NewTopicManager(brokers []string, log logging.Logger) (*TopicManager, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if len(brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "kafka brokers required")
	}
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExternalService, "failed to dial kafka broker")
	}
	return &TopicManager{conn: conn, logger: log}, nil
}

// CreateTopic creates one topic, tolerating a topic that already exists.
func (m *TopicManager) CreateTopic(ctx context.Context, cfg common.TopicConfig) error {
	if cfg.Name == "" {
		return errors.New(errors.ErrCodeValidation, "topic name required")
	}
	if cfg.NumPartitions <= 0 {
		return errors.New(errors.ErrCodeValidation, "topic partitions must be positive")
	}
	if cfg.ReplicationFactor <= 0 {
		return errors.New(errors.ErrCodeValidation, "topic replication factor must be positive")
	}

	kCfg := kafka.TopicConfig{
		Topic:             cfg.Name,
		NumPartitions:     cfg.NumPartitions,
		ReplicationFactor: cfg.ReplicationFactor,
	}
	if cfg.RetentionMs > 0 {
		kCfg.ConfigEntries = append(kCfg.ConfigEntries, kafka.ConfigEntry{
			ConfigName:  "retention.ms",
			ConfigValue: strconv.FormatInt(cfg.RetentionMs, 10),
		})
	}
	if cfg.CleanupPolicy != "" {
		kCfg.ConfigEntries = append(kCfg.ConfigEntries, kafka.ConfigEntry{
			ConfigName:  "cleanup.policy",
			ConfigValue: cfg.CleanupPolicy,
		})
	}

	if err := m.conn.CreateTopics(kCfg); err != nil {
		if exists, _ := m.TopicExists(ctx, cfg.Name); exists {
			return nil
		}
		return errors.Wrap(err, errors.ErrCodeExternalService, "failed to create topic")
	}
	m.logger.Info("Topic created",
		logging.String("topic", cfg.Name),
		logging.Int("partitions", cfg.NumPartitions),
	)
	return nil
}

// DeleteTopic removes a topic. Missing topics are not an error.
func (m *TopicManager) DeleteTopic(ctx context.Context, name string) error {
	if err := m.conn.DeleteTopics(name); err != nil {
		if exists, _ := m.TopicExists(ctx, name); !exists {
			return nil
		}
		return errors.Wrap(err, errors.ErrCodeExternalService, "failed to delete topic")
	}
	m.logger.Warn("Topic deleted", logging.String("topic", name))
	return nil
}

// TopicExists reports whether the topic has any partitions.
func (m *TopicManager) TopicExists(ctx context.Context, name string) (bool, error) {
	partitions, err := m.conn.ReadPartitions(name)
	if err != nil {
		return false, nil
	}
	return len(partitions) > 0, nil
}

// ListTopics returns the distinct topic names visible on the broker.
func (m *TopicManager) ListTopics(ctx context.Context) ([]string, error) {
	partitions, err := m.conn.ReadPartitions()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExternalService, "failed to read partitions")
	}
	seen := make(map[string]bool)
	var topics []string
	for _, p := range partitions {
		if !seen[p.Topic] {
			seen[p.Topic] = true
			topics = append(topics, p.Topic)
		}
	}
	return topics, nil
}

// EnsureTopics creates every topic in the list that does not exist yet.
func (m *TopicManager) EnsureTopics(ctx context.Context, topics []common.TopicConfig) error {
	for _, topic := range topics {
		if err := m.CreateTopic(ctx, topic); err != nil {
			return err
		}
	}
	return nil
}

// EnsureDefaultTopics provisions the caseintel topic set sized from config.
func (m *TopicManager) EnsureDefaultTopics(ctx context.Context, cfg config.KafkaConfig) error {
	return m.EnsureTopics(ctx, DefaultTopics(cfg))
}

// Close releases the admin connection.
func (m *TopicManager) Close() error {
	return m.conn.Close()
}

// DefaultTopics declares the caseintel topics. Event topics keep a week of
// history; the dead-letter topic keeps thirty days for manual replay.
func DefaultTopics(cfg config.KafkaConfig) []common.TopicConfig {
	partitions := cfg.NumPartitions
	if partitions <= 0 {
		partitions = 3
	}
	replication := cfg.ReplicationFactor
	if replication <= 0 {
		replication = 1
	}

	const (
		weekMs  = 7 * 24 * 3600 * 1000
		monthMs = 30 * 24 * 3600 * 1000
	)
	return []common.TopicConfig{
		{Name: TopicDocumentIngested, NumPartitions: partitions, ReplicationFactor: replication, RetentionMs: weekMs},
		{Name: TopicDocumentClassified, NumPartitions: partitions, ReplicationFactor: replication, RetentionMs: weekMs},
		{Name: TopicCaseUpdated, NumPartitions: partitions, ReplicationFactor: replication, RetentionMs: weekMs},
		{Name: TopicDeadLetter, NumPartitions: 1, ReplicationFactor: replication, RetentionMs: monthMs},
	}
}
