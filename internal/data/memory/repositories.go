package memory

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mybank-ledger/internal/domain/account"
	"github.com/mybank-ledger/internal/domain/idempotency"
	"github.com/mybank-ledger/internal/domain/ledger"
	"github.com/mybank-ledger/internal/domain/outbox"
	"github.com/mybank-ledger/internal/domain/shared"
	"github.com/mybank-ledger/internal/domain/token"
)

type accountRepository struct{ v view }

func (r accountRepository) Create(_ context.Context, acc *account.Account) error {
	return r.v.do(func(st *state) error {
		for _, existing := range st.accounts {
			switch {
			case existing.AccountNumber == acc.AccountNumber:
				return account.ErrDuplicateAccount{Field: "account number"}
			case strings.EqualFold(existing.UPIAlias, acc.UPIAlias):
				return account.ErrDuplicateAccount{Field: "UPI alias"}
			case acc.Phone != "" && existing.Phone == acc.Phone:
				return account.ErrDuplicateAccount{Field: "phone"}
			}
		}
		st.accounts[acc.ID] = *acc
		return nil
	})
}

func (r accountRepository) GetByID(_ context.Context, id uuid.UUID) (*account.Account, error) {
	var out *account.Account
	err := r.v.do(func(st *state) error {
		acc, ok := st.accounts[id]
		if !ok {
			return account.ErrAccountNotFound{AccountID: id}
		}
		out = &acc
		return nil
	})
	return out, err
}

func (r accountRepository) FindByLookup(_ context.Context, lookup account.Lookup) (*account.Account, error) {
	if err := lookup.Validate(); err != nil {
		return nil, err
	}
	var out *account.Account
	err := r.v.do(func(st *state) error {
		for _, acc := range st.accounts {
			if lookup.Matches(&acc) {
				found := acc
				out = &found
				return nil
			}
		}
		return account.ErrReceiverNotFound{Lookup: lookup}
	})
	return out, err
}

// LockForUpdate is a plain read; the unit of work already holds the store lock.
func (r accountRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	return r.GetByID(ctx, id)
}

func (r accountRepository) UpdateBalance(_ context.Context, id uuid.UUID, balance decimal.Decimal, expectedVersion int64) error {
	return r.v.do(func(st *state) error {
		acc, ok := st.accounts[id]
		if !ok || acc.Version != expectedVersion {
			return account.ErrConcurrentModification{AccountID: id}
		}
		acc.Balance = balance
		acc.Version++
		acc.UpdatedAt = time.Now().UTC()
		st.accounts[id] = acc
		return nil
	})
}

func (r accountRepository) UpdatePIN(_ context.Context, id uuid.UUID, pinHash string) error {
	return r.v.do(func(st *state) error {
		acc, ok := st.accounts[id]
		if !ok {
			return account.ErrAccountNotFound{AccountID: id}
		}
		acc.PINHash = pinHash
		acc.UpdatedAt = time.Now().UTC()
		st.accounts[id] = acc
		return nil
	})
}

func (r accountRepository) Archive(_ context.Context, id uuid.UUID, at time.Time) error {
	return r.v.do(func(st *state) error {
		acc, ok := st.accounts[id]
		if !ok {
			return account.ErrAccountNotFound{AccountID: id}
		}
		if acc.ArchivedAt == nil {
			acc.ArchivedAt = &at
		}
		st.accounts[id] = acc
		return nil
	})
}

type transactionRepository struct{ v view }

func (r transactionRepository) Create(_ context.Context, tx *ledger.Transaction) error {
	return r.v.do(func(st *state) error {
		if tx.Type == shared.TransactionTypeExternalDeposit {
			if _, dup := st.externalRefs[tx.Reference]; dup {
				return ledger.ErrAlreadyApplied
			}
			st.externalRefs[tx.Reference] = tx.ID
		}
		st.transactions[tx.ID] = *tx
		st.txOrder = append(st.txOrder, tx.ID)
		return nil
	})
}

func (r transactionRepository) GetByID(_ context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	var out *ledger.Transaction
	err := r.v.do(func(st *state) error {
		tx, ok := st.transactions[id]
		if !ok {
			return ledger.ErrTransactionNotFound{TransactionID: id}
		}
		out = &tx
		return nil
	})
	return out, err
}

func (r transactionRepository) GetExternalDeposit(_ context.Context, reference string) (*ledger.Transaction, error) {
	var out *ledger.Transaction
	err := r.v.do(func(st *state) error {
		id, ok := st.externalRefs[reference]
		if !ok {
			return ledger.ErrTransactionNotFound{}
		}
		tx := st.transactions[id]
		out = &tx
		return nil
	})
	return out, err
}

func (r transactionRepository) ListByAccount(_ context.Context, accountID uuid.UUID, limit, offset int) ([]*ledger.Transaction, error) {
	out := make([]*ledger.Transaction, 0)
	err := r.v.do(func(st *state) error {
		skipped := 0
		for i := len(st.txOrder) - 1; i >= 0 && len(out) < limit; i-- {
			tx := st.transactions[st.txOrder[i]]
			if !tx.Involves(accountID) {
				continue
			}
			if skipped < offset {
				skipped++
				continue
			}
			out = append(out, &tx)
		}
		return nil
	})
	return out, err
}

func (r transactionRepository) CountByAccount(_ context.Context, accountID uuid.UUID) (int64, error) {
	var n int64
	err := r.v.do(func(st *state) error {
		for _, tx := range st.transactions {
			if tx.Involves(accountID) {
				n++
			}
		}
		return nil
	})
	return n, err
}

type tokenRepository struct{ v view }

func (r tokenRepository) Insert(_ context.Context, t *token.CashToken) error {
	return r.v.do(func(st *state) error {
		for _, existing := range st.tokens {
			if !existing.Used && existing.Code == t.Code {
				return token.ErrCodeCollision
			}
		}
		st.tokens[t.ID] = *t
		return nil
	})
}

func (r tokenRepository) LockForRedemption(_ context.Context, code string, kind token.Kind) (*token.CashToken, error) {
	var out *token.CashToken
	err := r.v.do(func(st *state) error {
		for _, t := range st.tokens {
			if t.Code != code || t.Kind != kind {
				continue
			}
			if out == nil || preferForRedemption(t, *out) {
				found := t
				out = &found
			}
		}
		if out == nil {
			return token.ErrTokenNotFound
		}
		return nil
	})
	return out, err
}

// preferForRedemption mirrors ORDER BY used ASC, created_at DESC.
func preferForRedemption(a, b token.CashToken) bool {
	if a.Used != b.Used {
		return !a.Used
	}
	return a.CreatedAt.After(b.CreatedAt)
}

func (r tokenRepository) MarkUsed(_ context.Context, t *token.CashToken) error {
	return r.v.do(func(st *state) error {
		stored, ok := st.tokens[t.ID]
		if !ok || stored.Used {
			return token.ErrTokenUsed
		}
		st.tokens[t.ID] = *t
		return nil
	})
}

func (r tokenRepository) GetForAccount(_ context.Context, code string, accountID uuid.UUID) (*token.CashToken, error) {
	var out *token.CashToken
	err := r.v.do(func(st *state) error {
		for _, t := range st.tokens {
			if t.Code != code || t.AccountID == nil || *t.AccountID != accountID {
				continue
			}
			if out == nil || t.CreatedAt.After(out.CreatedAt) {
				found := t
				out = &found
			}
		}
		if out == nil {
			return token.ErrTokenNotFound
		}
		return nil
	})
	return out, err
}

func (r tokenRepository) ArchiveExpired(_ context.Context, now time.Time) (int64, error) {
	var moved int64
	err := r.v.do(func(st *state) error {
		for id, t := range st.tokens {
			if !t.Used && t.ExpiresAt.Before(now) {
				st.tokenArchive = append(st.tokenArchive, t)
				delete(st.tokens, id)
				moved++
			}
		}
		return nil
	})
	return moved, err
}

type idempotencyRepository struct{ v view }

func (r idempotencyRepository) Reserve(_ context.Context, record *idempotency.Record) error {
	id := idempotencyID{scope: record.Scope, key: record.Key}
	return r.v.do(func(st *state) error {
		if _, exists := st.idempotency[id]; exists {
			return idempotency.ErrDuplicateKey
		}
		st.idempotency[id] = *record
		return nil
	})
}

func (r idempotencyRepository) Complete(_ context.Context, scope, key string, transactionID uuid.UUID, at time.Time) error {
	id := idempotencyID{scope: scope, key: key}
	return r.v.do(func(st *state) error {
		rec, ok := st.idempotency[id]
		if !ok {
			return idempotency.ErrRecordNotFound{Key: key}
		}
		rec.Complete(transactionID, at)
		st.idempotency[id] = rec
		return nil
	})
}

func (r idempotencyRepository) Get(_ context.Context, scope, key string) (*idempotency.Record, error) {
	var out *idempotency.Record
	err := r.v.do(func(st *state) error {
		rec, ok := st.idempotency[idempotencyID{scope: scope, key: key}]
		if !ok {
			return idempotency.ErrRecordNotFound{Key: key}
		}
		out = &rec
		return nil
	})
	return out, err
}

func (r idempotencyRepository) PurgeBefore(_ context.Context, cutoff time.Time) (int64, error) {
	var purged int64
	err := r.v.do(func(st *state) error {
		for id, rec := range st.idempotency {
			if rec.CreatedAt.Before(cutoff) {
				delete(st.idempotency, id)
				purged++
			}
		}
		return nil
	})
	return purged, err
}

type outboxRepository struct{ v view }

func (r outboxRepository) Create(_ context.Context, message *outbox.Message) error {
	return r.v.do(func(st *state) error {
		st.outboxSeq++
		message.ID = st.outboxSeq
		st.outbox = append(st.outbox, *message)
		return nil
	})
}

func (r outboxRepository) GetPending(_ context.Context, limit int) ([]*outbox.Message, error) {
	var out []*outbox.Message
	err := r.v.do(func(st *state) error {
		for _, m := range st.outbox {
			if len(out) >= limit {
				break
			}
			if m.Status == shared.OutboxStatusPending {
				msg := m
				out = append(out, &msg)
			}
		}
		return nil
	})
	return out, err
}

func (r outboxRepository) UpdateStatus(_ context.Context, id int64, status shared.OutboxStatus) error {
	return r.v.do(func(st *state) error {
		for i := range st.outbox {
			if st.outbox[i].ID == id {
				now := time.Now().UTC()
				st.outbox[i].Status = status
				st.outbox[i].LastAttemptAt = &now
				return nil
			}
		}
		return outbox.ErrMessageNotFound{ID: id}
	})
}

func (r outboxRepository) IncrementAttempts(_ context.Context, id int64) error {
	return r.v.do(func(st *state) error {
		for i := range st.outbox {
			if st.outbox[i].ID == id {
				now := time.Now().UTC()
				st.outbox[i].Attempts++
				st.outbox[i].LastAttemptAt = &now
				return nil
			}
		}
		return outbox.ErrMessageNotFound{ID: id}
	})
}

func (r outboxRepository) DeleteProcessedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := r.v.do(func(st *state) error {
		kept := st.outbox[:0]
		for _, m := range st.outbox {
			if m.Status == shared.OutboxStatusProcessed && m.CreatedAt.Before(cutoff) {
				deleted++
				continue
			}
			kept = append(kept, m)
		}
		st.outbox = kept
		return nil
	})
	return deleted, err
}
