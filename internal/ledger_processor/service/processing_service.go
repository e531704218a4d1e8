package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mybank-ledger/internal/domain/account"
	"github.com/mybank-ledger/internal/domain/gateway"
	"github.com/mybank-ledger/internal/domain/idempotency"
	"github.com/mybank-ledger/internal/domain/ledger"
	"github.com/mybank-ledger/internal/domain/money"
	"github.com/mybank-ledger/internal/domain/shared"
)

// RejectedError marks a deposit that will never apply, however often it is retried.
type RejectedError struct {
	Err error
}

func (e *RejectedError) Error() string {
	return "deposit rejected: " + e.Err.Error()
}

func (e *RejectedError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err may clear on its own: storage failures,
// lost optimistic races and a concurrent delivery still in flight.
func IsRetryable(err error) bool {
	switch {
	case errors.Is(err, account.ErrConcurrentModification{}):
		return true
	case errors.Is(err, idempotency.ErrDuplicateInFlight):
		return true
	}
	return shared.ClassOf(err) == shared.ClassPersistence
}

// DepositProcessingService implements ProcessingService on top of the reconciler
type DepositProcessingService struct {
	applier DepositApplier
	logger  *slog.Logger
}

func NewProcessingService(applier DepositApplier, logger *slog.Logger) *DepositProcessingService {
	return &DepositProcessingService{
		applier: applier,
		logger:  logger,
	}
}

// ProcessDeposit applies deposit. A duplicate delivery is a success. Errors
// that retrying cannot fix come back as *RejectedError.
func (s *DepositProcessingService) ProcessDeposit(ctx context.Context, deposit gateway.VerifiedDeposit) error {
	logger := s.logger.With(
		"reference", deposit.Reference(),
		"account_id", deposit.AccountID().String(),
	)
	if deposit.CorrelationID() != "" {
		logger = logger.With("correlation_id", deposit.CorrelationID())
	}

	tx, err := s.applier.ApplyVerifiedDeposit(ctx, deposit)
	switch {
	case err == nil:
		logger.Info("Deposit credited",
			"transaction_id", tx.ID.String(),
			"amount", money.Format(deposit.Amount()),
		)
		return nil
	case errors.Is(err, ledger.ErrAlreadyApplied):
		logger.Info("Duplicate deposit delivery ignored")
		return nil
	case IsRetryable(err):
		logger.Warn("Deposit failed, will retry", "code", shared.CodeOf(err), "error", err)
		return err
	default:
		logger.Error("Deposit rejected", "code", shared.CodeOf(err), "error", err)
		return &RejectedError{Err: err}
	}
}
