package consumers

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/invoice-reconciliation/internal/config"
)

type mockReader struct {
	mock.Mock
}

func (m *mockReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	args := m.Called(ctx)
	return args.Get(0).(kafka.Message), args.Error(1)
}

func (m *mockReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *mockReader) Close() error {
	return m.Called().Error(0)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestNewKafkaConsumer(t *testing.T) {
	cfg := &config.KafkaConfig{
		Brokers:       "kafka1:9092,kafka2:9092",
		RequestTopic:  "reconciliation_requests",
		ConsumerGroup: "reconciliation-processor-group",
		MinBytes:      1024,
		MaxBytes:      10240,
		MaxWait:       time.Second,
		StartOffset:   kafka.FirstOffset,
	}

	consumer := NewKafkaConsumer(newTestLogger(), cfg)

	require.NotNil(t, consumer.reader)
	assert.Equal(t, "reconciliation_requests", consumer.topic)
	assert.Equal(t, "reconciliation-processor-group", consumer.groupID)

	reader, ok := consumer.reader.(*kafka.Reader)
	require.True(t, ok)
	assert.Equal(t, []string{"kafka1:9092", "kafka2:9092"}, reader.Config().Brokers)
	require.NoError(t, consumer.Close())
}

func TestKafkaConsumer_Consume(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ok := kafka.Message{Topic: "reconciliation_requests", Offset: 1, Key: []byte("a"), Value: []byte(`{}`)}
	bad := kafka.Message{Topic: "reconciliation_requests", Offset: 2, Key: []byte("b"), Value: []byte(`{}`)}

	reader := &mockReader{}
	reader.On("FetchMessage", ctx).Return(ok, nil).Once()
	reader.On("FetchMessage", ctx).Return(kafka.Message{}, errors.New("broker unavailable")).Once()
	reader.On("FetchMessage", ctx).Return(bad, nil).Once()
	reader.On("FetchMessage", ctx).Return(kafka.Message{}, context.Canceled).Run(func(mock.Arguments) { cancel() })
	reader.On("CommitMessages", ctx, []kafka.Message{ok}).Return(nil).Once()

	var handled []string
	handler := func(_ context.Context, key []byte, _ []byte) error {
		handled = append(handled, string(key))
		if string(key) == "b" {
			return errors.New("retry later")
		}
		return nil
	}

	c := &KafkaConsumer{reader: reader, logger: newTestLogger(), topic: "reconciliation_requests", retryBackoff: time.Millisecond}
	c.consume(ctx, handler)

	assert.Equal(t, []string{"a", "b"}, handled)
	reader.AssertExpectations(t)
	reader.AssertNotCalled(t, "CommitMessages", ctx, []kafka.Message{bad})
}

func TestKafkaConsumer_CloseWithNilReader(t *testing.T) {
	c := &KafkaConsumer{logger: newTestLogger()}
	assert.NoError(t, c.Close())
}
