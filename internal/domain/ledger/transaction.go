package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mybank-ledger/internal/domain/money"
	"github.com/mybank-ledger/internal/domain/shared"
)

// Common errors
var (
	ErrSelfTransfer   = shared.NewError(shared.ClassConflict, "SELF_TRANSFER_REJECTED", "self-transfers are not permitted")
	ErrAlreadyApplied = shared.NewError(shared.ClassConflict, "ALREADY_APPLIED", "deposit has already been applied")
	ErrNoParties      = shared.NewError(shared.ClassValidation, "INVALID_TRANSACTION", "transaction needs a sender or a receiver")
	ErrInvalidTxType  = shared.NewError(shared.ClassValidation, "INVALID_TRANSACTION_TYPE", "unknown transaction type")
)

// Draft carries the caller-provided descriptive part of a ledger transaction.
// Amount and account references are filled in by the ledger store.
type Draft struct {
	Type           shared.TransactionType
	Channel        shared.Channel
	Description    string
	Reference      string
	IdempotencyKey string
	CorrelationID  string
}

// Transaction is the immutable record of one committed value movement
type Transaction struct {
	ID             uuid.UUID                `json:"id"`
	SenderID       *uuid.UUID               `json:"sender_id,omitempty"`
	ReceiverID     *uuid.UUID               `json:"receiver_id,omitempty"`
	Amount         decimal.Decimal          `json:"amount"`
	Type           shared.TransactionType   `json:"type"`
	Channel        shared.Channel           `json:"channel"`
	Status         shared.TransactionStatus `json:"status"`
	Description    string                   `json:"description"`
	Reference      string                   `json:"reference,omitempty"`
	IdempotencyKey string                   `json:"idempotency_key,omitempty"`
	CorrelationID  string                   `json:"correlation_id,omitempty"`
	CreatedAt      time.Time                `json:"created_at"`
}

// NewTransaction builds a completed transaction from a draft. At least one of
// sender and receiver must be set.
func NewTransaction(draft Draft, senderID, receiverID *uuid.UUID, amount decimal.Decimal, now time.Time) (*Transaction, error) {
	if senderID == nil && receiverID == nil {
		return nil, ErrNoParties
	}
	if !draft.Type.Valid() {
		return nil, ErrInvalidTxType
	}
	if err := money.ValidatePositive(amount); err != nil {
		return nil, err
	}

	return &Transaction{
		ID:             uuid.New(),
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Amount:         amount,
		Type:           draft.Type,
		Channel:        draft.Channel,
		Status:         shared.TransactionStatusCompleted,
		Description:    draft.Description,
		Reference:      draft.Reference,
		IdempotencyKey: draft.IdempotencyKey,
		CorrelationID:  draft.CorrelationID,
		CreatedAt:      now,
	}, nil
}

// Involves reports whether accountID is the sender or the receiver
func (t *Transaction) Involves(accountID uuid.UUID) bool {
	return (t.SenderID != nil && *t.SenderID == accountID) ||
		(t.ReceiverID != nil && *t.ReceiverID == accountID)
}

// SignedAmountFor returns the delta this transaction applied to accountID
func (t *Transaction) SignedAmountFor(accountID uuid.UUID) decimal.Decimal {
	delta := decimal.Zero
	if t.SenderID != nil && *t.SenderID == accountID {
		delta = delta.Sub(t.Amount)
	}
	if t.ReceiverID != nil && *t.ReceiverID == accountID {
		delta = delta.Add(t.Amount)
	}
	return delta
}
