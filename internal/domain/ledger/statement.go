package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mybank-ledger/internal/domain/shared"
)

// Direction is the side of a statement line
type Direction string

const (
	DirectionDebit  Direction = "DEBIT"
	DirectionCredit Direction = "CREDIT"
)

// StatementLine is one account's view of a committed transaction. It is a
// read-only projection used for statements; the ledger never reads it back.
type StatementLine struct {
	TransactionID  uuid.UUID              `json:"transaction_id"`
	AccountID      uuid.UUID              `json:"account_id"`
	Direction      Direction              `json:"direction"`
	Amount         decimal.Decimal        `json:"amount"`
	CounterpartyID *uuid.UUID             `json:"counterparty_id,omitempty"`
	Type           shared.TransactionType `json:"type"`
	Channel        shared.Channel         `json:"channel"`
	Description    string                 `json:"description"`
	Reference      string                 `json:"reference,omitempty"`
	Timestamp      time.Time              `json:"timestamp"`
}

// StatementLines splits a transaction into one line per account leg
func StatementLines(tx *Transaction) []*StatementLine {
	lines := make([]*StatementLine, 0, 2)
	if tx.SenderID != nil {
		lines = append(lines, newStatementLine(tx, *tx.SenderID, DirectionDebit, tx.ReceiverID))
	}
	if tx.ReceiverID != nil {
		lines = append(lines, newStatementLine(tx, *tx.ReceiverID, DirectionCredit, tx.SenderID))
	}
	return lines
}

func newStatementLine(tx *Transaction, accountID uuid.UUID, direction Direction, counterparty *uuid.UUID) *StatementLine {
	return &StatementLine{
		TransactionID:  tx.ID,
		AccountID:      accountID,
		Direction:      direction,
		Amount:         tx.Amount,
		CounterpartyID: counterparty,
		Type:           tx.Type,
		Channel:        tx.Channel,
		Description:    tx.Description,
		Reference:      tx.Reference,
		Timestamp:      tx.CreatedAt,
	}
}
