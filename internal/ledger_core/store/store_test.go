package store_test

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mybank-ledger/internal/data/memory"
	"github.com/mybank-ledger/internal/domain/account"
	"github.com/mybank-ledger/internal/domain/ledger"
	"github.com/mybank-ledger/internal/domain/money"
	"github.com/mybank-ledger/internal/domain/shared"
	"github.com/mybank-ledger/internal/ledger_core/store"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func seedAccount(t *testing.T, mem *memory.Store, name, number, balance string) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	acc, err := account.NewAccount(name, "", account.TypeSavings, number, name+"@mybank", "")
	require.NoError(t, err)
	require.NoError(t, mem.Reader().Accounts().Create(ctx, acc))
	if balance != "0" {
		require.NoError(t, mem.Reader().Accounts().UpdateBalance(ctx, acc.ID, money.MustParse(balance), acc.Version))
	}
	return acc.ID
}

func balanceOf(t *testing.T, mem *memory.Store, id uuid.UUID) decimal.Decimal {
	t.Helper()
	acc, err := mem.Reader().Accounts().GetByID(context.Background(), id)
	require.NoError(t, err)
	return acc.Balance
}

var transferDraft = ledger.Draft{
	Type:        shared.TransactionTypeInternalTransfer,
	Channel:     shared.ChannelUPI,
	Description: "Transfer to ravi@mybank",
}

func TestStore_Transfer(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewStore()
	s := store.New(newTestLogger(), mem)

	sender := seedAccount(t, mem, "asha", "1000000001", "1000.00")
	receiver := seedAccount(t, mem, "ravi", "1000000002", "50.00")

	tx, err := s.Transfer(ctx, sender, receiver, money.MustParse("300.00"), transferDraft)
	require.NoError(t, err)

	assert.True(t, money.MustParse("700.00").Equal(balanceOf(t, mem, sender)))
	assert.True(t, money.MustParse("350.00").Equal(balanceOf(t, mem, receiver)))
	require.NotNil(t, tx.SenderID)
	require.NotNil(t, tx.ReceiverID)
	assert.Equal(t, sender, *tx.SenderID)
	assert.Equal(t, receiver, *tx.ReceiverID)
	assert.Equal(t, shared.TransactionStatusCompleted, tx.Status)

	count, err := mem.Reader().Transactions().CountByAccount(ctx, sender)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	pending, err := mem.Reader().Outbox().GetPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, tx.ID, pending[0].TransactionID)
}

func TestStore_TransferInsufficientFundsLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewStore()
	s := store.New(newTestLogger(), mem)

	sender := seedAccount(t, mem, "asha", "1000000001", "1000.00")
	receiver := seedAccount(t, mem, "ravi", "1000000002", "50.00")

	_, err := s.Transfer(ctx, sender, receiver, money.MustParse("1500.00"), transferDraft)
	assert.ErrorIs(t, err, account.ErrInsufficientFunds)

	assert.True(t, money.MustParse("1000.00").Equal(balanceOf(t, mem, sender)))
	assert.True(t, money.MustParse("50.00").Equal(balanceOf(t, mem, receiver)))

	count, err := mem.Reader().Transactions().CountByAccount(ctx, sender)
	require.NoError(t, err)
	assert.Zero(t, count)

	pending, err := mem.Reader().Outbox().GetPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestStore_TransferRejections(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewStore()
	s := store.New(newTestLogger(), mem)
	sender := seedAccount(t, mem, "asha", "1000000001", "100.00")

	tests := []struct {
		name     string
		receiver uuid.UUID
		amount   decimal.Decimal
		wantErr  error
	}{
		{"self transfer", sender, money.MustParse("1.00"), ledger.ErrSelfTransfer},
		{"zero amount", uuid.New(), decimal.Zero, money.ErrInvalidAmount},
		{"sub-cent amount", uuid.New(), decimal.RequireFromString("0.001"), money.ErrAmountPrecision},
		{"unknown receiver", uuid.New(), money.MustParse("1.00"), account.ErrAccountNotFound{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Transfer(ctx, sender, tt.receiver, tt.amount, transferDraft)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, money.MustParse("100.00").Equal(balanceOf(t, mem, sender)))
		})
	}
}

func TestStore_Mutate(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewStore()
	fixed := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s := store.New(newTestLogger(), mem, store.WithClock(func() time.Time { return fixed }))
	id := seedAccount(t, mem, "asha", "1000000001", "100.00")

	credit := ledger.Draft{Type: shared.TransactionTypeATMDeposit, Channel: shared.ChannelATM}
	tx, err := s.Mutate(ctx, id, money.MustParse("25.50"), credit)
	require.NoError(t, err)
	assert.Nil(t, tx.SenderID)
	assert.Equal(t, id, *tx.ReceiverID)
	assert.True(t, money.MustParse("25.50").Equal(tx.Amount))
	assert.Equal(t, fixed, tx.CreatedAt)
	assert.True(t, money.MustParse("125.50").Equal(balanceOf(t, mem, id)))

	debit := ledger.Draft{Type: shared.TransactionTypeATMWithdrawal, Channel: shared.ChannelATM}
	tx, err = s.Mutate(ctx, id, money.MustParse("-125.50"), debit)
	require.NoError(t, err)
	assert.Equal(t, id, *tx.SenderID)
	assert.Nil(t, tx.ReceiverID)
	assert.True(t, balanceOf(t, mem, id).IsZero())

	_, err = s.Mutate(ctx, id, money.MustParse("-0.01"), debit)
	assert.ErrorIs(t, err, account.ErrInsufficientFunds)

	_, err = s.Mutate(ctx, uuid.New(), money.MustParse("1.00"), credit)
	assert.ErrorIs(t, err, account.ErrAccountNotFound{})
}

func TestStore_MutateArchivedAccount(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewStore()
	s := store.New(newTestLogger(), mem)
	id := seedAccount(t, mem, "asha", "1000000001", "100.00")
	require.NoError(t, mem.Reader().Accounts().Archive(ctx, id, time.Now()))

	_, err := s.Mutate(ctx, id, money.MustParse("1.00"), ledger.Draft{Type: shared.TransactionTypeATMDeposit, Channel: shared.ChannelATM})
	assert.ErrorIs(t, err, account.ErrAccountArchived)
}

func TestStore_ConcurrentTransfersConserveTotal(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewStore()
	s := store.New(newTestLogger(), mem)

	a := seedAccount(t, mem, "asha", "1000000001", "500.00")
	b := seedAccount(t, mem, "ravi", "1000000002", "500.00")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = s.Transfer(ctx, a, b, money.MustParse("7.00"), transferDraft)
		}()
		go func() {
			defer wg.Done()
			_, _ = s.Transfer(ctx, b, a, money.MustParse("3.00"), transferDraft)
		}()
	}
	wg.Wait()

	total := balanceOf(t, mem, a).Add(balanceOf(t, mem, b))
	assert.True(t, money.MustParse("1000.00").Equal(total))
	assert.False(t, balanceOf(t, mem, a).IsNegative())
	assert.False(t, balanceOf(t, mem, b).IsNegative())
}

func TestLockOrder(t *testing.T) {
	low := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	high := uuid.MustParse("ffffffff-0000-0000-0000-000000000000")

	first, second := store.LockOrder(high, low)
	assert.Equal(t, low, first)
	assert.Equal(t, high, second)

	first, second = store.LockOrder(low, high)
	assert.Equal(t, low, first)
	assert.Equal(t, high, second)
}
