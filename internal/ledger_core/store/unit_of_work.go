// Package store is the only code path that changes account balances. Every
// mutation runs inside a unit of work that locks the affected accounts, writes
// the ledger transaction and appends the outbox message before commit.
package store

import (
	"context"

	"github.com/mybank-ledger/internal/domain/account"
	"github.com/mybank-ledger/internal/domain/idempotency"
	"github.com/mybank-ledger/internal/domain/ledger"
	"github.com/mybank-ledger/internal/domain/outbox"
	"github.com/mybank-ledger/internal/domain/token"
)

// UnitOfWork exposes repositories bound to one storage transaction.
type UnitOfWork interface {
	Accounts() account.Repository
	Transactions() ledger.Repository
	Tokens() token.Repository
	Idempotency() idempotency.Repository
	Outbox() outbox.Repository
}

// Transactor opens units of work. WithinTx commits when fn returns nil and
// rolls back otherwise. Reader returns repositories outside any transaction
// and must not be used from inside fn.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error
	Reader() UnitOfWork
}
