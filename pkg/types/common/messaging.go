package common

import (
	"context"
	"encoding/json"
	"time"
)

// Message is a consumed record delivered to a MessageHandler.
type Message struct {
	Topic     string            `json:"topic"`
	Partition int               `json:"partition"`
	Offset    int64             `json:"offset"`
	Key       []byte            `json:"key"`
	Value     []byte            `json:"value"`
	Headers   map[string]string `json:"headers,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// MessageHandler processes a single consumed message. Returning a non-nil
// error triggers the consumer's retry policy and, once exhausted, the
// dead-letter path.
type MessageHandler func(ctx context.Context, msg *Message) error

// ProducerMessage is an outbound record handed to the producer.
type ProducerMessage struct {
	Topic     string            `json:"topic"`
	Key       []byte            `json:"key"`
	Value     []byte            `json:"value"`
	Headers   map[string]string `json:"headers,omitempty"`
	Timestamp time.Time         `json:"timestamp,omitempty"`
}

// BatchPublishResult summarizes a PublishBatch call.
type BatchPublishResult struct {
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Errors    []BatchItemError `json:"errors,omitempty"`
}

// BatchItemError describes a single failed message in a batch publish.
// Index is -1 when the whole batch failed before per-item attribution.
type BatchItemError struct {
	Index int    `json:"index"`
	Topic string `json:"topic,omitempty"`
	Error error  `json:"-"`
}

// TopicConfig declares a topic that must exist before produce/consume starts.
type TopicConfig struct {
	Name              string
	NumPartitions     int
	ReplicationFactor int
	RetentionMs       int64
	CleanupPolicy     string
}

// EventEnvelope is the wire format for every event published to the bus.
// Payload carries the event-specific JSON body.
type EventEnvelope struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	Source        string            `json:"source"`
	Timestamp     time.Time         `json:"timestamp"`
	SchemaVersion string            `json:"schema_version"`
	TraceID       string            `json:"trace_id,omitempty"`
	CaseID        string            `json:"case_id,omitempty"`
	DocumentID    string            `json:"document_id,omitempty"`
	Payload       json.RawMessage   `json:"payload"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}
