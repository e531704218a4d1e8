package producers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mybank-ledger/internal/domain/shared"
)

// MockKafkaWriter is defined in ledger_events_test.go

func newTestDLQ(writer KafkaWriter) *DLQProducer {
	return &DLQProducer{
		logger:      slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})),
		writer:      writer,
		dlqTopic:    "verified_deposits_dlq",
		sourceTopic: "verified_deposits",
	}
}

func TestDLQProducer_PublishToDLQ(t *testing.T) {
	ctx := shared.WithCorrelationID(context.Background(), "corr-dlq")

	t.Run("WritesEnvelope", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		producer := newTestDLQ(mockWriter)

		original := []byte(`{"external_reference":"pg_1","verified":false}`)
		reason := "DEPOSIT_NOT_VERIFIED: deposit has not been verified by the gateway"

		var written kafka.Message
		mockWriter.On("WriteMessages", ctx, mock.MatchedBy(func(msgs []kafka.Message) bool {
			if len(msgs) != 1 {
				return false
			}
			written = msgs[0]
			return true
		})).Return(nil).Once()

		require.NoError(t, producer.PublishToDLQ(ctx, "pg_1", original, reason))
		mockWriter.AssertExpectations(t)

		assert.Equal(t, "pg_1", string(written.Key))
		var letter DeadLetter
		require.NoError(t, json.Unmarshal(written.Value, &letter))
		assert.Equal(t, "verified_deposits", letter.SourceTopic)
		assert.Equal(t, "pg_1", letter.OriginalKey)
		assert.Equal(t, string(original), letter.OriginalValue)
		assert.Equal(t, "DEPOSIT_NOT_VERIFIED", letter.ErrorCode)
		assert.Equal(t, reason, letter.Reason)
		assert.Equal(t, "corr-dlq", letter.CorrelationID)
		assert.NotEmpty(t, letter.DeadLetteredAt)

		require.Len(t, written.Headers, 2)
		assert.Equal(t, "dlq-reason", written.Headers[0].Key)
		assert.Equal(t, CorrelationHeader, written.Headers[1].Key)
		assert.Equal(t, "corr-dlq", string(written.Headers[1].Value))
	})

	t.Run("ReturnsErrorOnWriterError", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		producer := newTestDLQ(mockWriter)
		writerError := errors.New("kafka DLQ write error")

		mockWriter.On("WriteMessages", ctx, mock.AnythingOfType("[]kafka.Message")).Return(writerError).Once()

		err := producer.PublishToDLQ(ctx, "k", []byte("v"), "writer_error")
		assert.ErrorIs(t, err, writerError)
		mockWriter.AssertExpectations(t)
	})

	t.Run("Disabled", func(t *testing.T) {
		var disabled *DLQProducer
		assert.ErrorIs(t, disabled.PublishToDLQ(ctx, "k", []byte("v"), "r"), errDLQDisabled)
		assert.ErrorIs(t, newTestDLQ(nil).PublishToDLQ(ctx, "k", []byte("v"), "r"), errDLQDisabled)
	})
}

func TestReasonCode(t *testing.T) {
	tests := []struct {
		reason string
		want   string
	}{
		{"INVALID_AMOUNT: amount must be greater than zero", "INVALID_AMOUNT"},
		{"ACCOUNT_NOT_FOUND: account not found: 42", "ACCOUNT_NOT_FOUND"},
		{"malformed event: unexpected end of JSON input", ""},
		{"no code here", ""},
		{": empty", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, reasonCode(tt.reason), tt.reason)
	}
}

func TestDLQProducer_Close(t *testing.T) {
	t.Run("ClosesWriter", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		mockWriter.On("Close").Return(nil).Once()
		require.NoError(t, newTestDLQ(mockWriter).Close())
		mockWriter.AssertExpectations(t)
	})

	t.Run("WrapsWriterError", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		closeError := errors.New("kafka DLQ close error")
		mockWriter.On("Close").Return(closeError).Once()
		assert.ErrorIs(t, newTestDLQ(mockWriter).Close(), closeError)
	})

	t.Run("Disabled", func(t *testing.T) {
		var disabled *DLQProducer
		require.NoError(t, disabled.Close())
		require.NoError(t, newTestDLQ(nil).Close())
	})
}
