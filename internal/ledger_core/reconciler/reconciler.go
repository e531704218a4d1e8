// Package reconciler credits deposits confirmed by the external payment
// gateway exactly once per gateway reference.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mybank-ledger/internal/domain/gateway"
	idem "github.com/mybank-ledger/internal/domain/idempotency"
	"github.com/mybank-ledger/internal/domain/ledger"
	"github.com/mybank-ledger/internal/domain/money"
	"github.com/mybank-ledger/internal/domain/shared"
	"github.com/mybank-ledger/internal/ledger_core/idempotency"
	"github.com/mybank-ledger/internal/ledger_core/store"
	"github.com/mybank-ledger/internal/platform/metrics"
)

const scope = "gateway_deposit"

type Reconciler struct {
	ledger *store.Store
	guard  *idempotency.Guard
	logger *slog.Logger
}

func NewReconciler(logger *slog.Logger, ledgerStore *store.Store, guard *idempotency.Guard) *Reconciler {
	return &Reconciler{
		ledger: ledgerStore,
		guard:  guard,
		logger: logger,
	}
}

// ApplyVerifiedDeposit credits the deposit's account. A deposit that was
// already applied returns the stored transaction together with
// ledger.ErrAlreadyApplied.
func (r *Reconciler) ApplyVerifiedDeposit(ctx context.Context, deposit gateway.VerifiedDeposit) (*ledger.Transaction, error) {
	if !deposit.Valid() {
		metrics.ObserveDeposit(metrics.Outcome(gateway.ErrNotVerified))
		return nil, gateway.ErrNotVerified
	}

	logger := r.logger.With(
		"reference", deposit.Reference(),
		"account_id", deposit.AccountID().String(),
		"correlation_id", deposit.CorrelationID(),
	)

	req := idempotency.Request{
		Key:   deposit.IdempotencyKey(),
		Scope: scope,
		Fingerprint: idem.Fingerprint(
			deposit.Reference(),
			deposit.AccountID().String(),
			deposit.Amount().String(),
		),
	}
	draft := ledger.Draft{
		Type:           shared.TransactionTypeExternalDeposit,
		Channel:        shared.ChannelGateway,
		Description:    "Gateway Deposit | Ref: " + deposit.Reference(),
		Reference:      deposit.Reference(),
		IdempotencyKey: req.Key,
		CorrelationID:  deposit.CorrelationID(),
	}

	outcome, err := r.guard.ExecuteOnce(ctx, req, func(ctx context.Context, uow store.UnitOfWork) (*ledger.Transaction, error) {
		return r.ledger.ApplyMutation(ctx, uow, deposit.AccountID(), deposit.Amount(), draft)
	})
	switch {
	case errors.Is(err, ledger.ErrAlreadyApplied):
		// same reference under a different key
		tx, lookupErr := r.ledger.Transactor().Reader().Transactions().GetExternalDeposit(ctx, deposit.Reference())
		if lookupErr != nil {
			return nil, fmt.Errorf("failed to load applied deposit: %w", lookupErr)
		}
		logger.Info("Gateway deposit already applied", "transaction_id", tx.ID.String())
		metrics.ObserveDeposit("duplicate")
		return tx, ledger.ErrAlreadyApplied
	case err != nil:
		logger.Error("Failed to apply gateway deposit", "code", shared.CodeOf(err), "error", err)
		metrics.ObserveDeposit(metrics.Outcome(err))
		return nil, err
	case outcome.Replayed:
		logger.Info("Gateway deposit already applied", "transaction_id", outcome.Transaction.ID.String())
		metrics.ObserveDeposit("duplicate")
		return outcome.Transaction, ledger.ErrAlreadyApplied
	}

	logger.Info("Gateway deposit applied",
		"transaction_id", outcome.Transaction.ID.String(),
		"amount", money.Format(deposit.Amount()),
	)
	metrics.ObserveDeposit("applied")
	return outcome.Transaction, nil
}
