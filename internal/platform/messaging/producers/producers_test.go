package producers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/invoice-reconciliation/internal/domain/shared"
)

type MockKafkaWriter struct {
	mock.Mock
}

func (m *MockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *MockKafkaWriter) Close() error {
	args := m.Called()
	return args.Error(0)
}

var _ KafkaWriter = (*MockKafkaWriter)(nil)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestJSONProducer_Publish(t *testing.T) {
	ctx := context.Background()

	t.Run("SuccessfulPublish", func(t *testing.T) {
		writer := new(MockKafkaWriter)
		producer := &JSONProducer{logger: newTestLogger(), writer: writer, topic: "reconciliation_requests"}

		req := &shared.ReconciliationRequest{RequestID: uuid.New(), InvoiceIDs: []string{"INV-1"}}
		expected, err := json.Marshal(req)
		require.NoError(t, err)

		writer.On("WriteMessages", ctx, mock.MatchedBy(func(msgs []kafka.Message) bool {
			return len(msgs) == 1 && string(msgs[0].Key) == req.RequestID.String() && string(msgs[0].Value) == string(expected)
		})).Return(nil).Once()

		require.NoError(t, producer.Publish(ctx, req.RequestID.String(), req))
		writer.AssertExpectations(t)
	})

	t.Run("WriterError", func(t *testing.T) {
		writer := new(MockKafkaWriter)
		producer := &JSONProducer{logger: newTestLogger(), writer: writer, topic: "reconciliation_results"}
		writeErr := errors.New("leader not available")
		writer.On("WriteMessages", ctx, mock.AnythingOfType("[]kafka.Message")).Return(writeErr).Once()

		err := producer.Publish(ctx, "INV-1", map[string]string{"invoice_id": "INV-1"})

		assert.ErrorIs(t, err, writeErr)
		writer.AssertExpectations(t)
	})

	t.Run("UnencodableValue", func(t *testing.T) {
		writer := new(MockKafkaWriter)
		producer := &JSONProducer{logger: newTestLogger(), writer: writer, topic: "reconciliation_results"}

		err := producer.Publish(ctx, "k", make(chan int))

		require.Error(t, err)
		writer.AssertNotCalled(t, "WriteMessages", mock.Anything, mock.Anything)
	})

	t.Run("Close", func(t *testing.T) {
		writer := new(MockKafkaWriter)
		producer := &JSONProducer{logger: newTestLogger(), writer: writer, topic: "reconciliation_results"}
		writer.On("Close").Return(errors.New("already closed")).Once()

		assert.Error(t, producer.Close())
	})
}

func TestDLQProducer_PublishToDLQ(t *testing.T) {
	ctx := context.Background()
	failedAt := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

	t.Run("WritesEnvelope", func(t *testing.T) {
		writer := new(MockKafkaWriter)
		producer := &DLQProducer{
			logger:        newTestLogger(),
			writer:        writer,
			dlqTopic:      "reconciliation_requests_dlq",
			originalTopic: "reconciliation_requests",
			now:           func() time.Time { return failedAt },
		}

		writer.On("WriteMessages", ctx, mock.MatchedBy(func(msgs []kafka.Message) bool {
			if len(msgs) != 1 || string(msgs[0].Key) != "req-1" {
				return false
			}
			var dl DeadLetter
			if err := json.Unmarshal(msgs[0].Value, &dl); err != nil {
				return false
			}
			return dl.OriginalTopic == "reconciliation_requests" &&
				dl.OriginalValue == "{broken" &&
				dl.Reason == "invalid_payload" &&
				dl.FailedAt.Equal(failedAt) &&
				string(msgs[0].Headers[0].Value) == "invalid_payload"
		})).Return(nil).Once()

		require.NoError(t, producer.PublishToDLQ(ctx, "req-1", []byte("{broken"), "invalid_payload"))
		writer.AssertExpectations(t)
	})

	t.Run("Disabled", func(t *testing.T) {
		var producer *DLQProducer

		assert.ErrorIs(t, producer.PublishToDLQ(ctx, "k", nil, "r"), ErrDLQDisabled)
		assert.NoError(t, producer.Close())
	})
}

type mockConn struct {
	mock.Mock
}

func (m *mockConn) ReadPartitions(topics ...string) ([]kafka.Partition, error) {
	args := m.Called(topics)
	return args.Get(0).([]kafka.Partition), args.Error(1)
}

func (m *mockConn) CreateTopics(topics ...kafka.TopicConfig) error {
	return m.Called(topics).Error(0)
}

func TestEnsureTopic(t *testing.T) {
	t.Run("Exists", func(t *testing.T) {
		conn := &mockConn{}
		conn.On("ReadPartitions", []string{"results"}).Return([]kafka.Partition{{Topic: "results"}}, nil).Once()

		require.NoError(t, ensureTopic(conn, "results", 3, 1, 0, newTestLogger()))
		conn.AssertNotCalled(t, "CreateTopics", mock.Anything)
	})

	t.Run("CreatedWithDefaults", func(t *testing.T) {
		conn := &mockConn{}
		conn.On("ReadPartitions", []string{"results"}).Return([]kafka.Partition(nil), errors.New("unknown topic"))
		conn.On("CreateTopics", []kafka.TopicConfig{{Topic: "results", NumPartitions: 1, ReplicationFactor: 1}}).Return(nil).Once()

		require.NoError(t, ensureTopic(conn, "results", 0, 0, 0, newTestLogger()))
		conn.AssertNumberOfCalls(t, "ReadPartitions", topicReadAttempts)
		conn.AssertExpectations(t)
	})
}

func TestBrokerList(t *testing.T) {
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, brokerList("k1:9092, k2:9092,"))
	assert.Equal(t, "k1:9092", firstBroker("k1:9092,k2:9092"))
}
