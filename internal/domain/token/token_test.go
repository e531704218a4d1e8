package token

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCashToken_Lifecycle(t *testing.T) {
	now := time.Now().UTC()
	owner := uuid.New()
	amount := decimal.RequireFromString("500.00")

	t.Run("WithdrawTokenIsOwned", func(t *testing.T) {
		tok := NewWithdrawToken("123456", owner, amount, now, 15*time.Minute)

		assert.Equal(t, KindWithdraw, tok.Kind)
		require.NotNil(t, tok.AccountID)
		assert.Equal(t, owner, *tok.AccountID)
		assert.Equal(t, now.Add(15*time.Minute), tok.ExpiresAt)
		assert.False(t, tok.Used)
	})

	t.Run("DepositTokenIsUnlinked", func(t *testing.T) {
		tok := NewDepositToken("654321", amount, now, 15*time.Minute)
		assert.Equal(t, KindDeposit, tok.Kind)
		assert.Nil(t, tok.AccountID)
	})

	t.Run("ExpiryIsStrictlyAfterTTL", func(t *testing.T) {
		tok := NewWithdrawToken("123456", owner, amount, now, 15*time.Minute)

		assert.False(t, tok.IsExpired(now.Add(15*time.Minute)))
		assert.True(t, tok.IsExpired(now.Add(15*time.Minute+time.Nanosecond)))
		assert.ErrorIs(t, tok.CheckRedeemable(now.Add(16*time.Minute)), ErrTokenExpired)
	})

	t.Run("RedeemOnce", func(t *testing.T) {
		tok := NewDepositToken("654321", amount, now, 15*time.Minute)
		claimer, txID := uuid.New(), uuid.New()

		require.NoError(t, tok.MarkRedeemed(claimer, txID, now.Add(time.Minute)))
		assert.True(t, tok.Used)
		assert.Equal(t, claimer, *tok.AccountID)
		assert.Equal(t, txID, *tok.TransactionID)
		require.NotNil(t, tok.UsedAt)

		err := tok.MarkRedeemed(uuid.New(), uuid.New(), now.Add(2*time.Minute))
		assert.ErrorIs(t, err, ErrTokenUsed)
		assert.Equal(t, claimer, *tok.AccountID, "second redemption must not relink")
	})

	t.Run("UsedWinsOverExpired", func(t *testing.T) {
		tok := NewDepositToken("654321", amount, now, time.Minute)
		tok.Used = true
		assert.ErrorIs(t, tok.CheckRedeemable(now.Add(time.Hour)), ErrTokenUsed)
	})
}

func TestValidateCode(t *testing.T) {
	assert.NoError(t, ValidateCode("000123"))
	assert.ErrorIs(t, ValidateCode("12345"), ErrInvalidCode)
	assert.ErrorIs(t, ValidateCode("12345a"), ErrInvalidCode)
}

func TestMaskCode(t *testing.T) {
	assert.Equal(t, "****56", MaskCode("123456"))
	assert.Equal(t, "****", MaskCode("1"))
}
