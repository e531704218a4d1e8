package token

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mybank-ledger/internal/domain/shared"
)

// Common errors
var (
	ErrTokenNotFound     = shared.NewError(shared.ClassNotFound, "TOKEN_NOT_FOUND", "token not found")
	ErrTokenUsed         = shared.NewError(shared.ClassConflict, "TOKEN_USED", "token has already been used")
	ErrTokenExpired      = shared.NewError(shared.ClassConflict, "TOKEN_EXPIRED", "token has expired")
	ErrInvalidCode       = shared.NewError(shared.ClassValidation, "INVALID_TOKEN_CODE", "token code must be 6 digits")
	ErrResourceExhausted = shared.NewError(shared.ClassResourceExhausted, "TOKEN_CODES_EXHAUSTED", "could not allocate a unique token code")
)

// CodeLength is the number of digits in a cash token code
const CodeLength = 6

// Kind distinguishes withdrawal codes from deposit codes
type Kind string

const (
	KindWithdraw Kind = "WITHDRAW"
	KindDeposit  Kind = "DEPOSIT"
)

// CashToken is a single-use bearer code for an ATM-style cash movement.
// Expiry is derived from ExpiresAt at access time and never stored as a state.
type CashToken struct {
	ID            uuid.UUID       `json:"id"`
	Code          string          `json:"code"`
	Kind          Kind            `json:"kind"`
	AccountID     *uuid.UUID      `json:"account_id,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Used          bool            `json:"used"`
	TransactionID *uuid.UUID      `json:"transaction_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	ExpiresAt     time.Time       `json:"expires_at"`
	UsedAt        *time.Time      `json:"used_at,omitempty"`
}

// NewWithdrawToken creates an unused withdrawal token owned by accountID
func NewWithdrawToken(code string, accountID uuid.UUID, amount decimal.Decimal, now time.Time, ttl time.Duration) *CashToken {
	return &CashToken{
		ID:        uuid.New(),
		Code:      code,
		Kind:      KindWithdraw,
		AccountID: &accountID,
		Amount:    amount,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// NewDepositToken creates an unused deposit token not yet linked to an account
func NewDepositToken(code string, amount decimal.Decimal, now time.Time, ttl time.Duration) *CashToken {
	return &CashToken{
		ID:        uuid.New(),
		Code:      code,
		Kind:      KindDeposit,
		Amount:    amount,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// IsExpired reports whether now is past the token's expiry
func (t *CashToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// CheckRedeemable returns ErrTokenUsed or ErrTokenExpired when t cannot be redeemed
func (t *CashToken) CheckRedeemable(now time.Time) error {
	if t.Used {
		return ErrTokenUsed
	}
	if t.IsExpired(now) {
		return ErrTokenExpired
	}
	return nil
}

// MarkRedeemed flips the token to used, linking it to the account and the
// ledger transaction that carried the balance change.
func (t *CashToken) MarkRedeemed(accountID, transactionID uuid.UUID, now time.Time) error {
	if err := t.CheckRedeemable(now); err != nil {
		return err
	}
	t.Used = true
	t.AccountID = &accountID
	t.TransactionID = &transactionID
	t.UsedAt = &now
	return nil
}

// ValidateCode checks the code shape
func ValidateCode(code string) error {
	if len(code) != CodeLength {
		return ErrInvalidCode
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return ErrInvalidCode
		}
	}
	return nil
}

// MaskCode hides all but the last two digits for logging
func MaskCode(code string) string {
	if len(code) <= 2 {
		return "****"
	}
	return "****" + code[len(code)-2:]
}
