// Package gateway describes deposits confirmed by the external payment
// gateway. The ledger only ever credits a VerifiedDeposit, and the only way to
// obtain one is NewVerifiedDeposit.
package gateway

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mybank-ledger/internal/domain/money"
	"github.com/mybank-ledger/internal/domain/shared"
)

var (
	ErrNotVerified    = shared.NewError(shared.ClassValidation, "DEPOSIT_NOT_VERIFIED", "deposit was not verified by the gateway")
	ErrInvalidDeposit = shared.NewError(shared.ClassValidation, "INVALID_DEPOSIT", "deposit event is malformed")
)

// KeyPrefix namespaces gateway references in the idempotency key space
const KeyPrefix = "gateway:"

var validate = validator.New()

// DepositEvent is the wire shape of a gateway confirmation
type DepositEvent struct {
	Verified          bool   `json:"verified"`
	ExternalReference string `json:"external_reference" validate:"required,max=128"`
	AccountID         string `json:"account_id" validate:"required,uuid"`
	Amount            string `json:"amount" validate:"required,numeric"`
	IdempotencyKey    string `json:"idempotency_key,omitempty" validate:"omitempty,max=255"`
	CorrelationID     string `json:"correlation_id,omitempty"`
}

// VerifiedDeposit is a gateway deposit that passed verification. The zero
// value is not valid.
type VerifiedDeposit struct {
	reference      string
	accountID      uuid.UUID
	amount         decimal.Decimal
	idempotencyKey string
	correlationID  string
	verified       bool
}

// NewVerifiedDeposit checks event and returns the deposit the ledger may apply
func NewVerifiedDeposit(event DepositEvent) (VerifiedDeposit, error) {
	if !event.Verified {
		return VerifiedDeposit{}, ErrNotVerified
	}

	event.ExternalReference = strings.TrimSpace(event.ExternalReference)
	event.Amount = strings.TrimSpace(event.Amount)
	if err := validate.Struct(event); err != nil {
		return VerifiedDeposit{}, invalid(err)
	}

	accountID, err := uuid.Parse(event.AccountID)
	if err != nil {
		return VerifiedDeposit{}, fmt.Errorf("%w: account_id", ErrInvalidDeposit)
	}

	amount, err := money.Parse(event.Amount)
	if err != nil {
		return VerifiedDeposit{}, err
	}
	if err := money.ValidatePositive(amount); err != nil {
		return VerifiedDeposit{}, err
	}

	return VerifiedDeposit{
		reference:      event.ExternalReference,
		accountID:      accountID,
		amount:         amount,
		idempotencyKey: strings.TrimSpace(event.IdempotencyKey),
		correlationID:  event.CorrelationID,
		verified:       true,
	}, nil
}

func invalid(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrInvalidDeposit, err)
	}

	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	sort.Strings(fields)
	return fmt.Errorf("%w: %s", ErrInvalidDeposit, strings.Join(fields, ", "))
}

func (d VerifiedDeposit) Valid() bool             { return d.verified }
func (d VerifiedDeposit) Reference() string       { return d.reference }
func (d VerifiedDeposit) AccountID() uuid.UUID    { return d.accountID }
func (d VerifiedDeposit) Amount() decimal.Decimal { return d.amount }
func (d VerifiedDeposit) CorrelationID() string   { return d.correlationID }

// IdempotencyKey is the explicit key from the event, else KeyPrefix plus the reference
func (d VerifiedDeposit) IdempotencyKey() string {
	if d.idempotencyKey != "" {
		return d.idempotencyKey
	}
	return KeyPrefix + d.reference
}
