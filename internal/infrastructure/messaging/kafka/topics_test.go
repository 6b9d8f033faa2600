package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opentenancy/caseintel/internal/config"
	"github.com/opentenancy/caseintel/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/opentenancy/caseintel/pkg/errors"
	"github.com/opentenancy/caseintel/pkg/types/common"
)

type mockKafkaConn struct {
	createFunc func(topics ...kafka.TopicConfig) error
	deleteFunc func(topics ...string) error
	readFunc   func(topics ...string) ([]kafka.Partition, error)
	closeFunc  func() error
}

func (m *mockKafkaConn) CreateTopics(topics ...kafka.TopicConfig) error {
	if m.createFunc != nil {
		return m.createFunc(topics...)
	}
	return nil
}

func (m *mockKafkaConn) DeleteTopics(topics ...string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(topics...)
	}
	return nil
}

func (m *mockKafkaConn) ReadPartitions(topics ...string) ([]kafka.Partition, error) {
	if m.readFunc != nil {
		return m.readFunc(topics...)
	}
	return nil, nil
}

func (m *mockKafkaConn) Close() error {
	if m.closeFunc != nil {
		return m.closeFunc()
	}
	return nil
}

func newTestTopicManager(conn ConnInterface) *TopicManager {
	return &TopicManager{conn: conn, logger: logging.NewNopLogger()}
}

func TestTopicNames(t *testing.T) {
	assert.Equal(t, "caseintel.document.ingested", TopicDocumentIngested)
	assert.Equal(t, "caseintel.document.classified", TopicDocumentClassified)
	assert.Equal(t, "caseintel.case.updated", TopicCaseUpdated)
	assert.Equal(t, "caseintel.dead_letter", TopicDeadLetter)
}

func TestNewEnvelope_PopulatesStandardFields(t *testing.T) {
	env, err := NewEnvelope("case.updated", CaseUpdatedPayload{CaseID: "27-CV-25-1234", Reason: "reprocess"})
	require.NoError(t, err)

	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, "case.updated", env.EventType)
	assert.Equal(t, "caseintel", env.Source)
	assert.Equal(t, "v1", env.SchemaVersion)
	assert.Equal(t, time.UTC, env.Timestamp.Location())
	assert.WithinDuration(t, time.Now().UTC(), env.Timestamp, time.Minute)
	assert.Contains(t, string(env.Payload), "27-CV-25-1234")
}

func TestNewEnvelope_RejectsUnserializablePayload(t *testing.T) {
	_, err := NewEnvelope("bad", func() {})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeSerialization))
}

func TestEnvelope_RoundTrip(t *testing.T) {
	payload := DocumentIngestedPayload{
		CaseID:     "27-CV-25-1234",
		Filename:   "summons.txt",
		ContentKey: "cases/27-CV-25-1234/doc-1.txt",
		UploadedAt: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	env, err := NewEnvelope("document.ingested", payload)
	require.NoError(t, err)
	env.CaseID = payload.CaseID

	msg, err := EnvelopeMessage(TopicDocumentIngested, env)
	require.NoError(t, err)
	assert.Equal(t, TopicDocumentIngested, msg.Topic)
	assert.Equal(t, []byte("27-CV-25-1234"), msg.Key)
	assert.Equal(t, env.Timestamp, msg.Timestamp)

	decoded, err := DecodeEnvelope(&common.Message{Topic: msg.Topic, Value: msg.Value})
	require.NoError(t, err)
	assert.Equal(t, env.EventID, decoded.EventID)
	assert.Equal(t, env.EventType, decoded.EventType)
	assert.Equal(t, "27-CV-25-1234", decoded.CaseID)

	var got DocumentIngestedPayload
	require.NoError(t, DecodePayload(decoded, &got))
	assert.Equal(t, payload, got)
}

func TestEnvelopeMessage_FallsBackToDocumentKey(t *testing.T) {
	env, err := NewEnvelope("document.classified", DocumentClassifiedPayload{DocumentID: "doc-9"})
	require.NoError(t, err)
	env.DocumentID = "doc-9"

	msg, err := EnvelopeMessage(TopicDocumentClassified, env)
	require.NoError(t, err)
	assert.Equal(t, []byte("doc-9"), msg.Key)
}

func TestEnvelopeMessage_NoIDsLeavesKeyEmpty(t *testing.T) {
	env, err := NewEnvelope("case.updated", CaseUpdatedPayload{})
	require.NoError(t, err)

	msg, err := EnvelopeMessage(TopicCaseUpdated, env)
	require.NoError(t, err)
	assert.Nil(t, msg.Key)
}

func TestDecodeEnvelope_EmptyValue(t *testing.T) {
	_, err := DecodeEnvelope(&common.Message{Topic: "t"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeValidation))
}

func TestDecodePayload_MissingPayload(t *testing.T) {
	var target CaseUpdatedPayload
	err := DecodePayload(&common.EventEnvelope{}, &target)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeValidation))

	err = DecodePayload(&common.EventEnvelope{Payload: []byte("null")}, &target)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeValidation))
}

func TestCreateTopic_Validations(t *testing.T) {
	m := newTestTopicManager(&mockKafkaConn{})
	ctx := context.Background()

	err := m.CreateTopic(ctx, common.TopicConfig{NumPartitions: 1, ReplicationFactor: 1})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeValidation))

	err = m.CreateTopic(ctx, common.TopicConfig{Name: "t", ReplicationFactor: 1})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeValidation))

	err = m.CreateTopic(ctx, common.TopicConfig{Name: "t", NumPartitions: 1})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeValidation))
}

func TestCreateTopic_SetsRetentionAndCleanup(t *testing.T) {
	var created []kafka.TopicConfig
	conn := &mockKafkaConn{
		createFunc: func(topics ...kafka.TopicConfig) error {
			created = append(created, topics...)
			return nil
		},
	}
	m := newTestTopicManager(conn)

	err := m.CreateTopic(context.Background(), common.TopicConfig{
		Name:              "caseintel.case.updated",
		NumPartitions:     3,
		ReplicationFactor: 1,
		RetentionMs:       604800000,
		CleanupPolicy:     "delete",
	})
	require.NoError(t, err)

	require.Len(t, created, 1)
	assert.Equal(t, "caseintel.case.updated", created[0].Topic)
	assert.Equal(t, 3, created[0].NumPartitions)

	entries := make(map[string]string, len(created[0].ConfigEntries))
	for _, e := range created[0].ConfigEntries {
		entries[e.ConfigName] = e.ConfigValue
	}
	assert.Equal(t, "604800000", entries["retention.ms"])
	assert.Equal(t, "delete", entries["cleanup.policy"])
}

func TestCreateTopic_ToleratesExisting(t *testing.T) {
	conn := &mockKafkaConn{
		createFunc: func(topics ...kafka.TopicConfig) error {
			return errors.New("topic already exists")
		},
		readFunc: func(topics ...string) ([]kafka.Partition, error) {
			return []kafka.Partition{{Topic: topics[0]}}, nil
		},
	}
	m := newTestTopicManager(conn)

	err := m.CreateTopic(context.Background(), common.TopicConfig{
		Name:              "t",
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	assert.NoError(t, err)
}

func TestCreateTopic_SurfacesRealFailures(t *testing.T) {
	conn := &mockKafkaConn{
		createFunc: func(topics ...kafka.TopicConfig) error {
			return errors.New("not enough replicas")
		},
	}
	m := newTestTopicManager(conn)

	err := m.CreateTopic(context.Background(), common.TopicConfig{
		Name:              "t",
		NumPartitions:     1,
		ReplicationFactor: 3,
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeExternalService))
}

func TestDeleteTopic_MissingIsNotAnError(t *testing.T) {
	conn := &mockKafkaConn{
		deleteFunc: func(topics ...string) error {
			return errors.New("unknown topic")
		},
	}
	m := newTestTopicManager(conn)
	assert.NoError(t, m.DeleteTopic(context.Background(), "gone"))
}

func TestTopicExists(t *testing.T) {
	conn := &mockKafkaConn{
		readFunc: func(topics ...string) ([]kafka.Partition, error) {
			if topics[0] == "present" {
				return []kafka.Partition{{Topic: "present"}}, nil
			}
			return nil, errors.New("unknown topic")
		},
	}
	m := newTestTopicManager(conn)

	exists, err := m.TopicExists(context.Background(), "present")
	assert.NoError(t, err)
	assert.True(t, exists)

	exists, err = m.TopicExists(context.Background(), "absent")
	assert.NoError(t, err)
	assert.False(t, exists)
}

func TestListTopics_Dedupes(t *testing.T) {
	conn := &mockKafkaConn{
		readFunc: func(topics ...string) ([]kafka.Partition, error) {
			return []kafka.Partition{
				{Topic: "a"}, {Topic: "b"}, {Topic: "a"}, {Topic: "c"}, {Topic: "b"},
			}, nil
		},
	}
	m := newTestTopicManager(conn)

	topics, err := m.ListTopics(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, topics)
}

func TestDefaultTopics_SizedFromConfig(t *testing.T) {
	cfg := config.KafkaConfig{NumPartitions: 6, ReplicationFactor: 2}
	topics := DefaultTopics(cfg)
	require.Len(t, topics, 4)

	byName := make(map[string]common.TopicConfig, len(topics))
	for _, tc := range topics {
		byName[tc.Name] = tc
	}

	assert.Equal(t, 6, byName[TopicDocumentIngested].NumPartitions)
	assert.Equal(t, 2, byName[TopicDocumentIngested].ReplicationFactor)
	assert.Equal(t, int64(604800000), byName[TopicDocumentIngested].RetentionMs)

	assert.Equal(t, 1, byName[TopicDeadLetter].NumPartitions)
	assert.Equal(t, int64(2592000000), byName[TopicDeadLetter].RetentionMs)
}

func TestDefaultTopics_Fallbacks(t *testing.T) {
	topics := DefaultTopics(config.KafkaConfig{})
	for _, tc := range topics {
		assert.Equal(t, 1, tc.ReplicationFactor)
		if tc.Name != TopicDeadLetter {
			assert.Equal(t, 3, tc.NumPartitions)
		}
	}
}

func TestEnsureDefaultTopics_CreatesWholeSet(t *testing.T) {
	var created []string
	conn := &mockKafkaConn{
		createFunc: func(topics ...kafka.TopicConfig) error {
			for _, tc := range topics {
				created = append(created, tc.Topic)
			}
			return nil
		},
	}
	m := newTestTopicManager(conn)

	require.NoError(t, m.EnsureDefaultTopics(context.Background(), config.KafkaConfig{}))
	assert.ElementsMatch(t, []string{
		TopicDocumentIngested,
		TopicDocumentClassified,
		TopicCaseUpdated,
		TopicDeadLetter,
	}, created)
}
