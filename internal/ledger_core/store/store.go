package store

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mybank-ledger/internal/domain/account"
	"github.com/mybank-ledger/internal/domain/ledger"
	"github.com/mybank-ledger/internal/domain/money"
	"github.com/mybank-ledger/internal/domain/outbox"
	"github.com/mybank-ledger/internal/platform/metrics"
)

// Store applies balance mutations. The Apply* methods run inside a caller's
// unit of work; Mutate and Transfer open their own.
type Store struct {
	transactor Transactor
	logger     *slog.Logger
	now        func() time.Time
}

type Option func(*Store)

// WithClock overrides the time source used to stamp transactions.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(logger *slog.Logger, transactor Transactor, opts ...Option) *Store {
	s := &Store{
		transactor: transactor,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Transactor() Transactor {
	return s.transactor
}

func (s *Store) Now() time.Time {
	return s.now()
}

// ApplyMutation locks the account, applies delta and records one transaction.
// A negative delta is a debit; a debit below zero fails with
// account.ErrInsufficientFunds and writes nothing.
func (s *Store) ApplyMutation(ctx context.Context, uow UnitOfWork, accountID uuid.UUID, delta decimal.Decimal, draft ledger.Draft) (*ledger.Transaction, error) {
	if delta.IsZero() {
		return nil, money.ErrInvalidAmount
	}
	if !money.HasValidScale(delta) {
		return nil, money.ErrAmountPrecision
	}

	acc, err := uow.Accounts().LockForUpdate(ctx, accountID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := acc.ApplyDelta(delta, now); err != nil {
		return nil, err
	}
	if err := uow.Accounts().UpdateBalance(ctx, acc.ID, acc.Balance, acc.Version-1); err != nil {
		return nil, err
	}

	var sender, receiver *uuid.UUID
	if delta.IsNegative() {
		sender = &accountID
	} else {
		receiver = &accountID
	}

	tx, err := ledger.NewTransaction(draft, sender, receiver, delta.Abs(), now)
	if err != nil {
		return nil, err
	}
	return s.record(ctx, uow, tx)
}

// ApplyTransfer moves amount from sender to receiver as one transaction. Both
// rows are locked in LockOrder so opposing transfers cannot deadlock.
func (s *Store) ApplyTransfer(ctx context.Context, uow UnitOfWork, senderID, receiverID uuid.UUID, amount decimal.Decimal, draft ledger.Draft) (*ledger.Transaction, error) {
	if err := money.ValidatePositive(amount); err != nil {
		return nil, err
	}
	if senderID == receiverID {
		return nil, ledger.ErrSelfTransfer
	}

	first, second := LockOrder(senderID, receiverID)
	firstAcc, err := uow.Accounts().LockForUpdate(ctx, first)
	if err != nil {
		return nil, err
	}
	secondAcc, err := uow.Accounts().LockForUpdate(ctx, second)
	if err != nil {
		return nil, err
	}

	sender, receiver := firstAcc, secondAcc
	if first != senderID {
		sender, receiver = secondAcc, firstAcc
	}

	now := s.now()
	if err := sender.ApplyDelta(amount.Neg(), now); err != nil {
		return nil, err
	}
	if err := receiver.ApplyDelta(amount, now); err != nil {
		return nil, err
	}

	for _, acc := range []*account.Account{firstAcc, secondAcc} {
		if err := uow.Accounts().UpdateBalance(ctx, acc.ID, acc.Balance, acc.Version-1); err != nil {
			return nil, err
		}
	}

	tx, err := ledger.NewTransaction(draft, &senderID, &receiverID, amount, now)
	if err != nil {
		return nil, err
	}
	return s.record(ctx, uow, tx)
}

// Mutate runs ApplyMutation in its own unit of work.
func (s *Store) Mutate(ctx context.Context, accountID uuid.UUID, delta decimal.Decimal, draft ledger.Draft) (*ledger.Transaction, error) {
	defer metrics.ObserveMutation("mutation", time.Now())

	var tx *ledger.Transaction
	err := s.transactor.WithinTx(ctx, func(ctx context.Context, uow UnitOfWork) error {
		var err error
		tx, err = s.ApplyMutation(ctx, uow, accountID, delta, draft)
		return err
	})
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// Transfer runs ApplyTransfer in its own unit of work.
func (s *Store) Transfer(ctx context.Context, senderID, receiverID uuid.UUID, amount decimal.Decimal, draft ledger.Draft) (*ledger.Transaction, error) {
	defer metrics.ObserveMutation("transfer", time.Now())

	var tx *ledger.Transaction
	err := s.transactor.WithinTx(ctx, func(ctx context.Context, uow UnitOfWork) error {
		var err error
		tx, err = s.ApplyTransfer(ctx, uow, senderID, receiverID, amount, draft)
		return err
	})
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (s *Store) record(ctx context.Context, uow UnitOfWork, tx *ledger.Transaction) (*ledger.Transaction, error) {
	if err := uow.Transactions().Create(ctx, tx); err != nil {
		return nil, err
	}

	msg, err := outbox.NewMessage(tx)
	if err != nil {
		return nil, fmt.Errorf("failed to encode outbox message: %w", err)
	}
	if err := uow.Outbox().Create(ctx, msg); err != nil {
		return nil, err
	}

	s.logger.Debug("Ledger transaction recorded",
		"transaction_id", tx.ID.String(),
		"type", string(tx.Type),
		"amount", money.Format(tx.Amount),
		"correlation_id", tx.CorrelationID,
	)
	return tx, nil
}

// LockOrder returns the two ids in ascending byte order.
func LockOrder(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if bytes.Compare(a[:], b[:]) <= 0 {
		return a, b
	}
	return b, a
}
