package postgres

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/mybank-ledger/internal/domain/account"
	"github.com/mybank-ledger/internal/domain/idempotency"
	"github.com/mybank-ledger/internal/domain/ledger"
	"github.com/mybank-ledger/internal/domain/outbox"
	"github.com/mybank-ledger/internal/domain/token"
	"github.com/mybank-ledger/internal/ledger_core/store"
	"github.com/mybank-ledger/internal/platform/persistence"
)

// UnitOfWork groups repositories that share one querier.
type UnitOfWork struct {
	accounts     *AccountRepository
	transactions *TransactionRepository
	tokens       *TokenRepository
	idempotency  *IdempotencyRepository
	outbox       *OutboxRepository
}

var _ store.UnitOfWork = (*UnitOfWork)(nil)

func (u *UnitOfWork) Accounts() account.Repository        { return u.accounts }
func (u *UnitOfWork) Transactions() ledger.Repository     { return u.transactions }
func (u *UnitOfWork) Tokens() token.Repository            { return u.tokens }
func (u *UnitOfWork) Idempotency() idempotency.Repository { return u.idempotency }
func (u *UnitOfWork) Outbox() outbox.Repository           { return u.outbox }

func (u *UnitOfWork) withTx(tx pgx.Tx) *UnitOfWork {
	return &UnitOfWork{
		accounts:     u.accounts.WithTx(tx),
		transactions: u.transactions.WithTx(tx),
		tokens:       u.tokens.WithTx(tx),
		idempotency:  u.idempotency.WithTx(tx),
		outbox:       u.outbox.WithTx(tx),
	}
}

// Transactor implements store.Transactor on top of PostgresDB.ExecuteTx.
type Transactor struct {
	db     *persistence.PostgresDB
	logger *slog.Logger
	reader *UnitOfWork
}

var _ store.Transactor = (*Transactor)(nil)

func NewTransactor(logger *slog.Logger, db *persistence.PostgresDB) *Transactor {
	return &Transactor{
		db:     db,
		logger: logger,
		reader: &UnitOfWork{
			accounts:     NewAccountRepository(logger, db),
			transactions: NewTransactionRepository(logger, db),
			tokens:       NewTokenRepository(logger, db),
			idempotency:  NewIdempotencyRepository(logger, db),
			outbox:       NewOutboxRepository(logger, db),
		},
	}
}

// WithinTx runs fn in one database transaction. Serialization failures and
// deadlocks surface as account.ErrConcurrentModification so callers see a
// ConflictError they may retry.
func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context, uow store.UnitOfWork) error) error {
	err := t.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		return fn(ctx, t.reader.withTx(tx))
	})
	if err != nil && persistence.IsRetryableConflict(err) {
		t.logger.Warn("Transaction aborted by concurrent update", "sqlstate", persistence.PgErrorCode(err))
		return account.ErrConcurrentModification{}
	}
	return err
}

// Reader returns pool-bound repositories for reads outside a transaction.
func (t *Transactor) Reader() store.UnitOfWork {
	return t.reader
}
