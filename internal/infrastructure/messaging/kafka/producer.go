// Package kafka carries the event bus: an envelope-aware producer, a
// consumer group with retry and dead-letter handling, and a topic manager
// that provisions the caseintel topics at startup.
package kafka

import (
	"context"
	"crypto/tls"
	"strings"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"

	"github.com/opentenancy/caseintel/internal/config"
	"github.com/opentenancy/caseintel/internal/infrastructure/monitoring/logging"
	"github.com/opentenancy/caseintel/pkg/errors"
	"github.com/opentenancy/caseintel/pkg/types/common"
)

var (
	// ErrProducerClosed is returned by every publish after Close.
	ErrProducerClosed = errors.New(errors.ErrCodeInternal, "kafka producer is closed")
)

// maxMessageBytes caps a single record. Raw document text never rides the
// bus, so 1MB leaves ample headroom for envelopes.
const maxMessageBytes = 1 << 20

// WriterInterface abstracts kafka.Writer so tests can substitute a fake.
type WriterInterface interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
	Stats() kafka.WriterStats
}

// ProducerStats is a point-in-time snapshot of producer counters.
type ProducerStats struct {
	Sent       int64
	Failed     int64
	BytesSent  int64
	LastSentAt time.Time
}

type producerMetrics struct {
	sent       atomic.Int64
	failed     atomic.Int64
	bytesSent  atomic.Int64
	lastSentAt atomic.Value // time.Time
}

// Producer publishes messages with hash partitioning, so records sharing a
// key land on one partition in order.
type Producer struct {
	writer  WriterInterface
	logger  logging.Logger
	closed  atomic.Bool
	metrics *producerMetrics
}

// NewProducer builds a producer from the platform Kafka config.
func NewProducer(cfg config.KafkaConfig, log logging.Logger) (*Producer, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if len(cfg.Brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "kafka brokers required")
	}

	batchSize := cfg.BatchSize
	if batchSize == 0 {
		batchSize = 100
	}
	batchTimeout := cfg.BatchTimeout
	if batchTimeout == 0 {
		batchTimeout = time.Second
	}
	retries := cfg.ProducerRetries
	if retries <= 0 {
		retries = 3
	}

	transport, err := buildTransport(cfg)
	if err != nil {
		return nil, err
	}

	var acks kafka.RequiredAcks
	switch cfg.Acks {
	case "none":
		acks = kafka.RequireNone
	case "one":
		acks = kafka.RequireOne
	default:
		acks = kafka.RequireAll
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		MaxAttempts:            retries + 1,
		BatchSize:              batchSize,
		BatchTimeout:           batchTimeout,
		WriteTimeout:           10 * time.Second,
		ReadTimeout:            10 * time.Second,
		RequiredAcks:           acks,
		AllowAutoTopicCreation: cfg.AutoCreateTopics,
		Transport:              transport,
	}

	log.Info("Kafka producer ready",
		logging.Any("brokers", cfg.Brokers),
		logging.String("acks", cfg.Acks),
	)
	return &Producer{
		writer:  writer,
		logger:  log,
		metrics: &producerMetrics{},
	}, nil
}

func buildTransport(cfg config.KafkaConfig) (*kafka.Transport, error) {
	transport := &kafka.Transport{DialTimeout: 10 * time.Second}
	if cfg.TLS.Enabled {
		transport.TLS = &tls.Config{InsecureSkipVerify: cfg.TLS.InsecureSkipVerify}
	}
	if cfg.SASL.Enabled {
		mech, err := saslMechanism(cfg.SASL)
		if err != nil {
			return nil, err
		}
		transport.SASL = mech
	}
	return transport, nil
}

func saslMechanism(cfg config.KafkaSASLConfig) (sasl.Mechanism, error) {
	switch strings.ToLower(cfg.Mechanism) {
	case "plain":
		return plain.Mechanism{Username: cfg.Username, Password: cfg.Password}, nil
	case "scram-sha-256":
		return scram.Mechanism(scram.SHA256, cfg.Username, cfg.Password)
	case "scram-sha-512":
		return scram.Mechanism(scram.SHA512, cfg.Username, cfg.Password)
	default:
		return nil, errors.Newf(errors.ErrCodeValidation, "unsupported sasl mechanism %q", cfg.Mechanism)
	}
}

// Publish sends a single message and waits for the configured acks.
func (p *Producer) Publish(ctx context.Context, msg *common.ProducerMessage) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}
	if msg.Topic == "" {
		return errors.New(errors.ErrCodeValidation, "message topic required")
	}
	if len(msg.Value) == 0 {
		return errors.New(errors.ErrCodeValidation, "message value required")
	}
	if len(msg.Value) > maxMessageBytes {
		return errors.Newf(errors.ErrCodeValidation, "message exceeds %d bytes", maxMessageBytes)
	}

	start := time.Now()
	if err := p.writer.WriteMessages(ctx, toKafkaMessage(msg)); err != nil {
		p.metrics.failed.Add(1)
		return errors.Wrap(err, errors.ErrCodeExternalService, "kafka publish failed")
	}

	p.metrics.sent.Add(1)
	p.metrics.bytesSent.Add(int64(len(msg.Value)))
	p.metrics.lastSentAt.Store(time.Now())

	p.logger.Debug("Message published",
		logging.String("topic", msg.Topic),
		logging.Int64("latency_ms", time.Since(start).Milliseconds()),
	)
	return nil
}

// PublishEnvelope wraps env in a ProducerMessage keyed by case so all
// events of one case stay ordered, and publishes it.
func (p *Producer) PublishEnvelope(ctx context.Context, topic string, env *common.EventEnvelope) error {
	msg, err := EnvelopeMessage(topic, env)
	if err != nil {
		return err
	}
	return p.Publish(ctx, msg)
}

// PublishBatch sends msgs in one writer call and reports per-message
// outcomes where the broker provides them.
func (p *Producer) PublishBatch(ctx context.Context, msgs []*common.ProducerMessage) (*common.BatchPublishResult, error) {
	if p.closed.Load() {
		return nil, ErrProducerClosed
	}
	if len(msgs) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "no messages to publish")
	}

	kMsgs := make([]kafka.Message, len(msgs))
	for i, msg := range msgs {
		kMsgs[i] = toKafkaMessage(msg)
	}

	result := &common.BatchPublishResult{}
	err := p.writer.WriteMessages(ctx, kMsgs...)
	switch writeErrs := err.(type) {
	case nil:
		result.Succeeded = len(msgs)
	case kafka.WriteErrors:
		for i, we := range writeErrs {
			if we != nil {
				result.Failed++
				result.Errors = append(result.Errors, common.BatchItemError{
					Index: i,
					Topic: msgs[i].Topic,
					Error: we,
				})
			} else {
				result.Succeeded++
			}
		}
	default:
		result.Failed = len(msgs)
		result.Errors = append(result.Errors, common.BatchItemError{Index: -1, Error: err})
	}

	p.metrics.sent.Add(int64(result.Succeeded))
	p.metrics.failed.Add(int64(result.Failed))

	p.logger.Debug("Batch published",
		logging.Int("succeeded", result.Succeeded),
		logging.Int("failed", result.Failed),
	)
	return result, nil
}

// PublishAsync fires Publish on a goroutine. onErr, when non-nil, receives
// any failure.
func (p *Producer) PublishAsync(ctx context.Context, msg *common.ProducerMessage, onErr func(error)) {
	go func() {
		if err := p.Publish(ctx, msg); err != nil && onErr != nil {
			onErr(err)
		}
	}()
}

// Stats snapshots the producer counters.
func (p *Producer) Stats() ProducerStats {
	stats := ProducerStats{
		Sent:      p.metrics.sent.Load(),
		Failed:    p.metrics.failed.Load(),
		BytesSent: p.metrics.bytesSent.Load(),
	}
	if t, ok := p.metrics.lastSentAt.Load().(time.Time); ok {
		stats.LastSentAt = t
	}
	return stats
}

// Close flushes and shuts the writer down. Safe to call more than once.
func (p *Producer) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := p.writer.Close()
	p.logger.Info("Kafka producer closed", logging.Int64("sent", p.metrics.sent.Load()))
	return err
}

func toKafkaMessage(msg *common.ProducerMessage) kafka.Message {
	headers := make([]kafka.Header, 0, len(msg.Headers))
	for k, v := range msg.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return kafka.Message{
		Topic:   msg.Topic,
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
		Time:    ts,
	}
}
