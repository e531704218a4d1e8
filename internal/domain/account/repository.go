package account

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mybank-ledger/internal/domain/shared"
)

// Repository defines account persistence operations
type Repository interface {
	Create(ctx context.Context, account *Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	FindByLookup(ctx context.Context, lookup Lookup) (*Account, error)

	// LockForUpdate acquires a pessimistic row lock for the rest of the storage transaction
	LockForUpdate(ctx context.Context, id uuid.UUID) (*Account, error)

	// UpdateBalance persists a new balance, guarded by the version read under lock
	UpdateBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal, expectedVersion int64) error

	UpdatePIN(ctx context.Context, id uuid.UUID, pinHash string) error
	Archive(ctx context.Context, id uuid.UUID, at time.Time) error
}

// ErrConcurrentModification indicates the account changed underneath a mutation
type ErrConcurrentModification struct {
	AccountID uuid.UUID
}

func (e ErrConcurrentModification) Error() string {
	if e.AccountID == uuid.Nil {
		return "concurrent modification detected"
	}
	return "concurrent modification detected for account: " + e.AccountID.String()
}

func (e ErrConcurrentModification) ErrorClass() shared.ErrorClass { return shared.ClassConflict }
func (e ErrConcurrentModification) ErrorCode() string             { return "CONCURRENT_CONFLICT" }

// Is matches any ErrConcurrentModification when the target carries no account id
func (e ErrConcurrentModification) Is(target error) bool {
	t, ok := target.(ErrConcurrentModification)
	if !ok {
		return false
	}
	return t.AccountID == uuid.Nil || t.AccountID == e.AccountID
}

// ErrAccountNotFound indicates missing account
type ErrAccountNotFound struct {
	AccountID uuid.UUID
}

func (e ErrAccountNotFound) Error() string {
	return "account not found: " + e.AccountID.String()
}

func (e ErrAccountNotFound) ErrorClass() shared.ErrorClass { return shared.ClassNotFound }
func (e ErrAccountNotFound) ErrorCode() string             { return "ACCOUNT_NOT_FOUND" }

// Is matches any ErrAccountNotFound when the target carries no account id
func (e ErrAccountNotFound) Is(target error) bool {
	t, ok := target.(ErrAccountNotFound)
	if !ok {
		return false
	}
	return t.AccountID == uuid.Nil || t.AccountID == e.AccountID
}

// ErrReceiverNotFound indicates that no account matches a receiver lookup
type ErrReceiverNotFound struct {
	Lookup Lookup
}

func (e ErrReceiverNotFound) Error() string {
	return "receiver not found: " + e.Lookup.String()
}

func (e ErrReceiverNotFound) ErrorClass() shared.ErrorClass { return shared.ClassNotFound }
func (e ErrReceiverNotFound) ErrorCode() string             { return "RECEIVER_NOT_FOUND" }

// ErrDuplicateAccount indicates a uniqueness violation on an account identifier
type ErrDuplicateAccount struct {
	Field string
}

func (e ErrDuplicateAccount) Error() string {
	return "account with this " + e.Field + " already exists"
}

func (e ErrDuplicateAccount) ErrorClass() shared.ErrorClass { return shared.ClassConflict }
func (e ErrDuplicateAccount) ErrorCode() string             { return "DUPLICATE_ACCOUNT" }
