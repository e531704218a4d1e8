package account

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mybank-ledger/internal/domain/shared"
)

// Common errors
var (
	ErrInsufficientFunds    = shared.NewError(shared.ClassConflict, "INSUFFICIENT_FUNDS", "insufficient funds")
	ErrInvalidAuthorization = shared.NewError(shared.ClassAuthorization, "INVALID_AUTHORIZATION", "invalid transaction PIN")
	ErrPINNotSet            = shared.NewError(shared.ClassAuthorization, "PIN_NOT_SET", "transaction PIN has not been set")
	ErrInvalidPINFormat     = shared.NewError(shared.ClassValidation, "INVALID_PIN_FORMAT", "PIN must be exactly 6 digits")
	ErrPINMismatch          = shared.NewError(shared.ClassValidation, "PIN_MISMATCH", "PINs do not match")
	ErrEmptyOwnerName       = shared.NewError(shared.ClassValidation, "INVALID_OWNER_NAME", "owner name cannot be empty")
	ErrInvalidAccountType   = shared.NewError(shared.ClassValidation, "INVALID_ACCOUNT_TYPE", "account type must be SAVINGS or CURRENT")
	ErrAccountArchived      = shared.NewError(shared.ClassConflict, "ACCOUNT_ARCHIVED", "account is archived")
)

// PINLength is the number of digits in a transaction PIN
const PINLength = 6

// Type distinguishes savings from current accounts
type Type string

const (
	TypeSavings Type = "SAVINGS"
	TypeCurrent Type = "CURRENT"
)

// ParseType normalises an account type, defaulting to savings when empty
func ParseType(s string) (Type, error) {
	switch Type(strings.ToUpper(strings.TrimSpace(s))) {
	case "", TypeSavings:
		return TypeSavings, nil
	case TypeCurrent:
		return TypeCurrent, nil
	}
	return "", ErrInvalidAccountType
}

// Account represents a holder's balance. Balance only changes inside a ledger
// transaction that also writes the matching Transaction record.
type Account struct {
	ID            uuid.UUID       `json:"id"`
	OwnerName     string          `json:"owner_name"`
	Phone         string          `json:"phone,omitempty"`
	AccountNumber string          `json:"account_number"`
	UPIAlias      string          `json:"upi_alias"`
	Type          Type            `json:"account_type"`
	Balance       decimal.Decimal `json:"balance"`
	PINHash       string          `json:"-"`
	Version       int64           `json:"version"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	ArchivedAt    *time.Time      `json:"archived_at,omitempty"`
}

// NewAccount creates an account with a zero balance
func NewAccount(ownerName, phone string, accountType Type, accountNumber, upiAlias, pinHash string) (*Account, error) {
	if strings.TrimSpace(ownerName) == "" {
		return nil, ErrEmptyOwnerName
	}
	if accountType != TypeSavings && accountType != TypeCurrent {
		return nil, ErrInvalidAccountType
	}

	now := time.Now().UTC()
	return &Account{
		ID:            uuid.New(),
		OwnerName:     strings.TrimSpace(ownerName),
		Phone:         strings.TrimSpace(phone),
		AccountNumber: accountNumber,
		UPIAlias:      upiAlias,
		Type:          accountType,
		Balance:       decimal.Zero,
		PINHash:       pinHash,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// ApplyDelta adds a signed delta to the balance. A result below zero is
// rejected with ErrInsufficientFunds and leaves the account unchanged.
func (a *Account) ApplyDelta(delta decimal.Decimal, now time.Time) error {
	if a.IsArchived() {
		return ErrAccountArchived
	}

	next := a.Balance.Add(delta)
	if next.IsNegative() {
		return ErrInsufficientFunds
	}

	a.Balance = next
	a.Version++
	a.UpdatedAt = now
	return nil
}

// CanDebit checks if the account holds at least amount
func (a *Account) CanDebit(amount decimal.Decimal) bool {
	return a.Balance.GreaterThanOrEqual(amount)
}

// HasPIN reports whether a transaction PIN was ever set
func (a *Account) HasPIN() bool {
	return a.PINHash != ""
}

func (a *Account) IsArchived() bool {
	return a.ArchivedAt != nil
}

// ValidatePIN checks the PIN shape (exactly six ASCII digits)
func ValidatePIN(pin string) error {
	if len(pin) != PINLength {
		return ErrInvalidPINFormat
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return ErrInvalidPINFormat
		}
	}
	return nil
}
