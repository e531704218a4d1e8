package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mybank-ledger/internal/domain/gateway"
	"github.com/mybank-ledger/internal/domain/shared"
	"github.com/mybank-ledger/internal/ledger_processor/service"
	"github.com/mybank-ledger/internal/platform/messaging/producers"
)

// DepositEventHandler handles verified deposit confirmations from Kafka
type DepositEventHandler struct {
	processingService service.ProcessingService
	producer          producers.DeadLetterPublisher
	logger            *slog.Logger
}

// NewDepositEventHandler creates a new handler. producer may be nil when the
// DLQ is disabled.
func NewDepositEventHandler(
	logger *slog.Logger,
	processingService service.ProcessingService,
	producer producers.DeadLetterPublisher,
) *DepositEventHandler {
	return &DepositEventHandler{
		processingService: processingService,
		producer:          producer,
		logger:            logger,
	}
}

// HandleMessage processes Kafka messages. A nil return commits the offset;
// an error makes the consumer retry the same message.
func (h *DepositEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var event gateway.DepositEvent
	if err := json.Unmarshal(value, &event); err != nil {
		h.logger.Error("Failed to unmarshal deposit event from Kafka message",
			"error", err,
			"message_key", string(key),
		)
		return h.deadLetter(ctx, key, value, fmt.Errorf("unmarshal deposit event: %w", err))
	}

	logger := h.logger
	if event.CorrelationID != "" {
		logger = h.logger.With("correlation_id", event.CorrelationID)
		ctx = shared.WithCorrelationID(ctx, event.CorrelationID)
	}

	deposit, err := gateway.NewVerifiedDeposit(event)
	if err != nil {
		logger.Warn("Deposit event failed verification",
			"reference", event.ExternalReference,
			"code", shared.CodeOf(err),
			"error", err,
		)
		return h.deadLetter(ctx, key, value, err)
	}

	logger.Info("Received verified deposit",
		"reference", deposit.Reference(),
		"account_id", deposit.AccountID().String(),
	)

	err = h.processingService.ProcessDeposit(ctx, deposit)
	var rejected *service.RejectedError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &rejected):
		return h.deadLetter(ctx, key, value, rejected.Err)
	default:
		return fmt.Errorf("processing deposit %s failed: %w", deposit.Reference(), err)
	}
}

// deadLetter parks an unprocessable message. Without a DLQ the cause is
// returned so the message is not silently dropped; the processor refuses to
// start without one.
func (h *DepositEventHandler) deadLetter(ctx context.Context, key, value []byte, cause error) error {
	if h.producer == nil {
		h.logger.Error("Unprocessable message has no DLQ and will be redelivered",
			"message_key", string(key),
			"error", cause,
		)
		return cause
	}

	reason := shared.CodeOf(cause) + ": " + cause.Error()
	if err := h.producer.PublishToDLQ(ctx, string(key), value, reason); err != nil {
		h.logger.Error("Failed to publish message to DLQ",
			"dlq_error", err,
			"original_error", cause,
			"message_key", string(key),
		)
		return fmt.Errorf("dead-letter %q: %w", string(key), cause)
	}

	h.logger.Info("Published unprocessable message to DLQ", "message_key", string(key), "reason", reason)
	return nil
}
