// Package money holds the fixed-point amount rules shared by every money-moving
// path. Amounts are shopspring decimals with two fractional digits; floats are
// never used to carry a monetary value.
package money

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mybank-ledger/internal/domain/shared"
)

// Scale is the number of fractional digits every amount carries
const Scale int32 = 2

var (
	ErrInvalidAmount   = shared.NewError(shared.ClassValidation, "INVALID_AMOUNT", "amount must be greater than zero")
	ErrAmountPrecision = shared.NewError(shared.ClassValidation, "INVALID_AMOUNT_PRECISION", "amount must have at most 2 decimal places")
	ErrAmountFormat    = shared.NewError(shared.ClassValidation, "INVALID_AMOUNT_FORMAT", "amount is not a valid decimal number")
	ErrBelowMinimum    = shared.NewError(shared.ClassValidation, "AMOUNT_BELOW_MINIMUM", "amount is below the minimum allowed")
)

// Parse reads a decimal string such as "300.00". It does not check the sign.
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, ErrAmountFormat
	}
	if !HasValidScale(d) {
		return decimal.Zero, ErrAmountPrecision
	}
	return d, nil
}

// MustParse is Parse for constants and tests
func MustParse(s string) decimal.Decimal {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// HasValidScale reports whether d has no more than Scale fractional digits
func HasValidScale(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(Scale))
}

// ValidatePositive checks that d is a strictly positive amount at ledger scale
func ValidatePositive(d decimal.Decimal) error {
	if !d.IsPositive() {
		return ErrInvalidAmount
	}
	if !HasValidScale(d) {
		return ErrAmountPrecision
	}
	return nil
}

// ValidateAtLeast is ValidatePositive plus a lower bound
func ValidateAtLeast(d, minimum decimal.Decimal) error {
	if err := ValidatePositive(d); err != nil {
		return err
	}
	if d.LessThan(minimum) {
		return ErrBelowMinimum
	}
	return nil
}

// FromMinorUnits converts an integer amount of minor units (cents, paise)
func FromMinorUnits(units int64) decimal.Decimal {
	return decimal.New(units, -Scale)
}

// Format renders d with exactly two fractional digits
func Format(d decimal.Decimal) string {
	return d.StringFixed(Scale)
}
