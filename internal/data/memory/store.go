// Package memory is an in-process implementation of store.Transactor. Units of
// work are fully serialised: WithinTx holds one mutex, mutates a private copy
// of the state and publishes it on commit, so a failed unit of work leaves no
// trace. It backs the core's tests and single-process local runs.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/mybank-ledger/internal/domain/account"
	"github.com/mybank-ledger/internal/domain/idempotency"
	"github.com/mybank-ledger/internal/domain/ledger"
	"github.com/mybank-ledger/internal/domain/outbox"
	"github.com/mybank-ledger/internal/domain/token"
	"github.com/mybank-ledger/internal/ledger_core/store"
)

type state struct {
	accounts     map[uuid.UUID]account.Account
	transactions map[uuid.UUID]ledger.Transaction
	txOrder      []uuid.UUID
	externalRefs map[string]uuid.UUID
	tokens       map[uuid.UUID]token.CashToken
	tokenArchive []token.CashToken
	idempotency  map[idempotencyID]idempotency.Record
	outbox       []outbox.Message
	outboxSeq    int64
}

// idempotencyID mirrors the (scope, key) primary key of idempotency_keys
type idempotencyID struct {
	scope string
	key   string
}

func newState() *state {
	return &state{
		accounts:     make(map[uuid.UUID]account.Account),
		transactions: make(map[uuid.UUID]ledger.Transaction),
		externalRefs: make(map[string]uuid.UUID),
		tokens:       make(map[uuid.UUID]token.CashToken),
		idempotency:  make(map[idempotencyID]idempotency.Record),
	}
}

func (s *state) clone() *state {
	c := &state{
		accounts:     make(map[uuid.UUID]account.Account, len(s.accounts)),
		transactions: make(map[uuid.UUID]ledger.Transaction, len(s.transactions)),
		txOrder:      append([]uuid.UUID(nil), s.txOrder...),
		externalRefs: make(map[string]uuid.UUID, len(s.externalRefs)),
		tokens:       make(map[uuid.UUID]token.CashToken, len(s.tokens)),
		tokenArchive: append([]token.CashToken(nil), s.tokenArchive...),
		idempotency:  make(map[idempotencyID]idempotency.Record, len(s.idempotency)),
		outbox:       append([]outbox.Message(nil), s.outbox...),
		outboxSeq:    s.outboxSeq,
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.transactions {
		c.transactions[k] = v
	}
	for k, v := range s.externalRefs {
		c.externalRefs[k] = v
	}
	for k, v := range s.tokens {
		c.tokens[k] = v
	}
	for k, v := range s.idempotency {
		c.idempotency[k] = v
	}
	return c
}

// Store implements store.Transactor in memory.
type Store struct {
	mu    sync.Mutex
	state *state
}

var _ store.Transactor = (*Store)(nil)

func NewStore() *Store {
	return &Store{state: newState()}
}

// WithinTx runs fn against a private copy of the state and publishes it only
// when fn succeeds and ctx is still live.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, uow store.UnitOfWork) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.state.clone()
	if err := fn(ctx, &unitOfWork{view: view{tx: working}}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.state = working
	return nil
}

// Reader returns repositories that lock the store per call. Calling it from
// inside WithinTx deadlocks.
func (s *Store) Reader() store.UnitOfWork {
	return &unitOfWork{view: view{store: s}}
}

// view resolves which state a repository call operates on.
type view struct {
	store *Store
	tx    *state
}

func (v view) do(fn func(st *state) error) error {
	if v.tx != nil {
		return fn(v.tx)
	}
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	return fn(v.store.state)
}

type unitOfWork struct {
	view view
}

func (u *unitOfWork) Accounts() account.Repository        { return accountRepository{u.view} }
func (u *unitOfWork) Transactions() ledger.Repository     { return transactionRepository{u.view} }
func (u *unitOfWork) Tokens() token.Repository            { return tokenRepository{u.view} }
func (u *unitOfWork) Idempotency() idempotency.Repository { return idempotencyRepository{u.view} }
func (u *unitOfWork) Outbox() outbox.Repository           { return outboxRepository{u.view} }
