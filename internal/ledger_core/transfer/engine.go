// Package transfer moves money between two accounts on behalf of the sender.
package transfer

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mybank-ledger/internal/domain/account"
	idem "github.com/mybank-ledger/internal/domain/idempotency"
	"github.com/mybank-ledger/internal/domain/ledger"
	"github.com/mybank-ledger/internal/domain/money"
	"github.com/mybank-ledger/internal/domain/shared"
	"github.com/mybank-ledger/internal/ledger_core/idempotency"
	"github.com/mybank-ledger/internal/ledger_core/store"
	"github.com/mybank-ledger/internal/platform/metrics"
	"github.com/mybank-ledger/internal/platform/security"
)

const scope = "transfer"

// Receiver names the receiving account by UPI alias, account number or phone
type Receiver struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

type Request struct {
	SenderID       uuid.UUID
	Receiver       Receiver
	Amount         decimal.Decimal
	PIN            string
	IdempotencyKey string
}

type Result struct {
	Transaction *ledger.Transaction `json:"transaction"`
	Replayed    bool                `json:"replayed"`
}

type Config struct {
	MinAmount decimal.Decimal
}

type Engine struct {
	ledger *store.Store
	guard  *idempotency.Guard
	hasher security.PINHasher
	logger *slog.Logger
	cfg    Config
}

func NewEngine(logger *slog.Logger, ledgerStore *store.Store, guard *idempotency.Guard, hasher security.PINHasher, cfg Config) *Engine {
	return &Engine{
		ledger: ledgerStore,
		guard:  guard,
		hasher: hasher,
		logger: logger,
		cfg:    cfg,
	}
}

// Transfer validates req and applies it at most once per idempotency key. A
// key that already produced a transaction is answered from the stored result
// before any validation, so a retry succeeds even if balances moved since.
func (e *Engine) Transfer(ctx context.Context, req Request) (res *Result, err error) {
	defer func() { metrics.ObserveTransfer(err) }()

	guarded := idempotency.Request{
		Key:         req.IdempotencyKey,
		Scope:       scope,
		Owner:       req.SenderID.String(),
		Fingerprint: fingerprint(req),
	}

	replay, err := e.guard.Lookup(ctx, guarded)
	if err != nil {
		return nil, err
	}
	if replay != nil {
		e.logger.Info("Transfer replayed", "transaction_id", replay.Transaction.ID.String())
		return &Result{Transaction: replay.Transaction, Replayed: true}, nil
	}

	sender, receiver, err := e.validate(ctx, req)
	if err != nil {
		return nil, err
	}

	draft := ledger.Draft{
		Type:           shared.TransactionTypeInternalTransfer,
		Channel:        receiver.lookup.Channel(),
		Description:    "Transfer to " + receiver.lookup.Value,
		IdempotencyKey: req.IdempotencyKey,
		CorrelationID:  shared.CorrelationID(ctx),
	}

	outcome, err := e.guard.ExecuteOnce(ctx, guarded, func(ctx context.Context, uow store.UnitOfWork) (*ledger.Transaction, error) {
		return e.ledger.ApplyTransfer(ctx, uow, sender.ID, receiver.account.ID, req.Amount, draft)
	})
	if err != nil {
		e.logger.Warn("Transfer rejected",
			"sender_id", req.SenderID.String(),
			"code", shared.CodeOf(err),
			"error", err,
		)
		return nil, err
	}

	if !outcome.Replayed {
		e.logger.Info("Transfer completed",
			"transaction_id", outcome.Transaction.ID.String(),
			"sender_id", sender.ID.String(),
			"receiver_id", receiver.account.ID.String(),
			"amount", money.Format(req.Amount),
		)
	}
	return &Result{Transaction: outcome.Transaction, Replayed: outcome.Replayed}, nil
}

type resolvedReceiver struct {
	account *account.Account
	lookup  account.Lookup
}

// validate applies the checks in order and stops at the first failure. The
// balance check is advisory; ApplyTransfer repeats it under lock.
func (e *Engine) validate(ctx context.Context, req Request) (*account.Account, *resolvedReceiver, error) {
	if err := money.ValidateAtLeast(req.Amount, e.cfg.MinAmount); err != nil {
		return nil, nil, err
	}

	reader := e.ledger.Transactor().Reader()
	sender, err := reader.Accounts().GetByID(ctx, req.SenderID)
	if err != nil {
		return nil, nil, err
	}
	if !sender.HasPIN() {
		return nil, nil, account.ErrPINNotSet
	}
	if !e.hasher.Matches(sender.PINHash, req.PIN) {
		return nil, nil, account.ErrInvalidAuthorization
	}

	lookup, err := account.NewLookup(req.Receiver.Kind, req.Receiver.Value)
	if err != nil {
		return nil, nil, err
	}
	receiver, err := reader.Accounts().FindByLookup(ctx, lookup)
	if err != nil {
		return nil, nil, err
	}

	if receiver.ID == sender.ID {
		return nil, nil, ledger.ErrSelfTransfer
	}
	if !sender.CanDebit(req.Amount) {
		return nil, nil, account.ErrInsufficientFunds
	}

	return sender, &resolvedReceiver{account: receiver, lookup: lookup}, nil
}

func fingerprint(req Request) string {
	return idem.Fingerprint(
		req.SenderID.String(),
		strings.ToUpper(strings.TrimSpace(req.Receiver.Kind)),
		strings.TrimSpace(req.Receiver.Value),
		req.Amount.String(),
	)
}
