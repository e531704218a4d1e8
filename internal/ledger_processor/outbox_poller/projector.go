package outbox_poller

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mybank-ledger/internal/domain/ledger"
	"github.com/mybank-ledger/internal/domain/outbox"
	"github.com/mybank-ledger/internal/domain/shared"
	"github.com/mybank-ledger/internal/platform/messaging/producers"
)

// Projector turns one outbox message into its downstream effects
type Projector interface {
	Project(ctx context.Context, message *outbox.Message) error
}

// StatementProjector writes statement lines to the read store and announces
// the transaction on the ledger events topic. Both steps are idempotent, so a
// message that fails halfway is simply projected again.
type StatementProjector struct {
	outboxRepo outbox.Repository
	statements ledger.StatementRepository
	events     producers.MessagePublisher
	logger     *slog.Logger
}

// NewStatementProjector creates a new projector. events may be nil.
func NewStatementProjector(
	outboxRepo outbox.Repository,
	statements ledger.StatementRepository,
	events producers.MessagePublisher,
	logger *slog.Logger,
) *StatementProjector {
	return &StatementProjector{
		outboxRepo: outboxRepo,
		statements: statements,
		events:     events,
		logger:     logger,
	}
}

// Project processes one outbox message and marks it PROCESSED
func (p *StatementProjector) Project(ctx context.Context, message *outbox.Message) error {
	tx, err := message.Transaction()
	if err != nil {
		p.logger.Error("Failed to decode transaction from outbox payload",
			"outbox_id", message.ID, "transaction_id", message.TransactionID, "error", err,
		)
		if updateErr := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusFailedToPublish); updateErr != nil {
			p.logger.Error("Also failed to update outbox status to FAILED_TO_PUBLISH after decode error", "outbox_id", message.ID, "update_error", updateErr)
		}
		return fmt.Errorf("decode payload for outbox %d failed: %w", message.ID, err)
	}

	logger := p.logger.With("outbox_id", message.ID, "transaction_id", tx.ID.String())
	if tx.CorrelationID != "" {
		logger = logger.With("correlation_id", tx.CorrelationID)
	}

	for _, line := range ledger.StatementLines(tx) {
		if err := p.statements.Upsert(ctx, line); err != nil {
			logger.Error("Failed to write statement line", "account_id", line.AccountID.String(), "error", err)
			return fmt.Errorf("failed to project transaction %s: %w", tx.ID, err)
		}
	}

	if p.events != nil {
		if err := p.events.Publish(ctx, tx.ID.String(), tx); err != nil {
			logger.Error("Failed to publish ledger event", "error", err)
			return fmt.Errorf("failed to publish transaction %s: %w", tx.ID, err)
		}
	}

	if err := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusProcessed); err != nil {
		logger.Error("Failed to update outbox message status to PROCESSED", "error", err)
		return fmt.Errorf("projection for %s OK, but failed to mark outbox %d as PROCESSED: %w", tx.ID, message.ID, err)
	}

	logger.Info("Outbox message projected and marked as PROCESSED")
	return nil
}
