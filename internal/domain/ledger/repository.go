package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mybank-ledger/internal/domain/shared"
)

// Repository persists immutable ledger transactions. There is no update or delete.
// Create returns ErrAlreadyApplied when an external deposit reference was
// already recorded.
type Repository interface {
	Create(ctx context.Context, tx *Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error)
	GetExternalDeposit(ctx context.Context, reference string) (*Transaction, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*Transaction, error)
	CountByAccount(ctx context.Context, accountID uuid.UUID) (int64, error)
}

// StatementRepository stores the statement projection
type StatementRepository interface {
	Upsert(ctx context.Context, line *StatementLine) error
	ListByAccount(ctx context.Context, accountID uuid.UUID, from, to time.Time, limit, offset int) ([]*StatementLine, error)
	CountByAccount(ctx context.Context, accountID uuid.UUID, from, to time.Time) (int64, error)
}

// ErrTransactionNotFound indicates missing ledger transaction
type ErrTransactionNotFound struct {
	TransactionID uuid.UUID
}

func (e ErrTransactionNotFound) Error() string {
	return "ledger transaction not found: " + e.TransactionID.String()
}

func (e ErrTransactionNotFound) ErrorClass() shared.ErrorClass { return shared.ClassNotFound }
func (e ErrTransactionNotFound) ErrorCode() string             { return "TRANSACTION_NOT_FOUND" }

// Is implements the errors.Is interface for ErrTransactionNotFound
func (e ErrTransactionNotFound) Is(target error) bool {
	t, ok := target.(ErrTransactionNotFound)
	if !ok {
		return false
	}
	// If the target TransactionID is empty, consider it a match for any ErrTransactionNotFound
	if t.TransactionID == uuid.Nil {
		return true
	}
	return e.TransactionID == t.TransactionID
}
