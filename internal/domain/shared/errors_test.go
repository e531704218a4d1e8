package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type lookupError struct{ name string }

func (e lookupError) Error() string          { return "missing " + e.name }
func (e lookupError) ErrorClass() ErrorClass { return ClassNotFound }
func (e lookupError) ErrorCode() string      { return "THING_NOT_FOUND" }

func TestClassOf(t *testing.T) {
	conflict := NewError(ClassConflict, "TOKEN_USED", "token already used")

	testCases := []struct {
		name          string
		err           error
		expectedClass ErrorClass
		expectedCode  string
	}{
		{"Sentinel", conflict, ClassConflict, "TOKEN_USED"},
		{"WrappedSentinel", fmt.Errorf("redeem: %w", conflict), ClassConflict, "TOKEN_USED"},
		{"StructError", lookupError{name: "x"}, ClassNotFound, "THING_NOT_FOUND"},
		{"WrappedStructError", fmt.Errorf("lookup: %w", lookupError{name: "x"}), ClassNotFound, "THING_NOT_FOUND"},
		{"Unclassified", errors.New("connection reset"), ClassPersistence, "INTERNAL_ERROR"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expectedClass, ClassOf(tc.err))
			assert.Equal(t, tc.expectedCode, CodeOf(tc.err))
		})
	}
}

func TestDomainError_IsComparesIdentity(t *testing.T) {
	a := NewError(ClassConflict, "SAME", "same message")
	b := NewError(ClassConflict, "SAME", "same message")

	assert.ErrorIs(t, fmt.Errorf("wrap: %w", a), a)
	assert.False(t, errors.Is(a, b))
}

func TestTransactionType_Valid(t *testing.T) {
	assert.True(t, TransactionTypeInternalTransfer.Valid())
	assert.True(t, TransactionTypeExternalDeposit.Valid())
	assert.False(t, TransactionType("DEPOSIT").Valid())
}
