package mongo

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/mybank-ledger/internal/domain/ledger"
	"github.com/mybank-ledger/internal/domain/money"
	"github.com/mybank-ledger/internal/domain/shared"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func statementDoc(t *testing.T, txID, accountID uuid.UUID, direction, amount string, ts time.Time) bson.D {
	t.Helper()
	dec, err := primitive.ParseDecimal128(amount)
	require.NoError(t, err)
	return bson.D{
		{Key: "transaction_id", Value: txID.String()},
		{Key: "account_id", Value: accountID.String()},
		{Key: "direction", Value: direction},
		{Key: "amount", Value: dec},
		{Key: "type", Value: string(shared.TransactionTypeInternalTransfer)},
		{Key: "channel", Value: string(shared.ChannelUPI)},
		{Key: "description", Value: "Transfer to ravi@mybank"},
		{Key: "timestamp", Value: ts},
	}
}

func TestStatementRepository_Upsert(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	sender, receiver := uuid.New(), uuid.New()
	tx := &ledger.Transaction{
		ID:          uuid.New(),
		SenderID:    &sender,
		ReceiverID:  &receiver,
		Amount:      money.MustParse("300.00"),
		Type:        shared.TransactionTypeInternalTransfer,
		Channel:     shared.ChannelUPI,
		Description: "Transfer to ravi@mybank",
		CreatedAt:   time.Now().UTC(),
	}

	mt.Run("Success", func(mt *mtest.T) {
		repo := NewStatementRepository(newTestLogger(), mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 0}))

		err := repo.Upsert(context.Background(), ledger.StatementLines(tx)[0])
		require.NoError(t, err)

		started := mt.GetStartedEvent()
		require.NotNil(t, started)
		assert.Equal(t, "update", started.CommandName)
	})

	mt.Run("Error", func(mt *mtest.T) {
		repo := NewStatementRepository(newTestLogger(), mt.DB)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 11000, Message: "boom"}))

		err := repo.Upsert(context.Background(), ledger.StatementLines(tx)[1])
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to upsert statement line")
	})
}

func TestStatementRepository_ListByAccount(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	accountID := uuid.New()
	ts := time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)

	mt.Run("DecodesLines", func(mt *mtest.T) {
		repo := NewStatementRepository(newTestLogger(), mt.DB)
		tx1, tx2, counterparty := uuid.New(), uuid.New(), uuid.New()

		second := statementDoc(t, tx2, accountID, "CREDIT", "350.50", ts)
		second = append(second, bson.E{Key: "counterparty_id", Value: counterparty.String()})
		ns := mt.DB.Name() + "." + StatementCollectionName
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
				statementDoc(t, tx1, accountID, "DEBIT", "12.25", ts.Add(time.Hour)),
				second,
			),
		)

		lines, err := repo.ListByAccount(context.Background(), accountID, ts.Add(-24*time.Hour), time.Time{}, 10, 0)
		require.NoError(t, err)
		require.Len(t, lines, 2)

		assert.Equal(t, tx1, lines[0].TransactionID)
		assert.Equal(t, ledger.DirectionDebit, lines[0].Direction)
		assert.True(t, money.MustParse("12.25").Equal(lines[0].Amount))
		assert.Nil(t, lines[0].CounterpartyID)

		assert.Equal(t, ledger.DirectionCredit, lines[1].Direction)
		require.NotNil(t, lines[1].CounterpartyID)
		assert.Equal(t, counterparty, *lines[1].CounterpartyID)
		assert.Equal(t, shared.ChannelUPI, lines[1].Channel)
	})

	mt.Run("Error", func(mt *mtest.T) {
		repo := NewStatementRepository(newTestLogger(), mt.DB)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Message: "bad query"}))

		_, err := repo.ListByAccount(context.Background(), accountID, time.Time{}, time.Time{}, 10, 0)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to get statement lines")
	})
}

func TestStatementRepository_CountByAccount(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("Success", func(mt *mtest.T) {
		repo := NewStatementRepository(newTestLogger(), mt.DB)
		ns := mt.DB.Name() + "." + StatementCollectionName
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{{Key: "n", Value: int32(3)}}))

		count, err := repo.CountByAccount(context.Background(), uuid.New(), time.Time{}, time.Now())
		require.NoError(t, err)
		assert.Equal(t, int64(3), count)
	})
}

func TestRangeFilter(t *testing.T) {
	accountID := uuid.New()
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	open := rangeFilter(accountID, time.Time{}, time.Time{})
	assert.Equal(t, bson.M{"account_id": accountID.String()}, open)

	bounded := rangeFilter(accountID, from, to)
	assert.Equal(t, bson.M{"$gte": from, "$lt": to}, bounded["timestamp"])
}

func TestStatementDocumentRoundTrip(t *testing.T) {
	counterparty := uuid.New()
	line := &ledger.StatementLine{
		TransactionID:  uuid.New(),
		AccountID:      uuid.New(),
		Direction:      ledger.DirectionCredit,
		Amount:         money.MustParse("1000000.01"),
		CounterpartyID: &counterparty,
		Type:           shared.TransactionTypeExternalDeposit,
		Channel:        shared.ChannelGateway,
		Reference:      "PG-1",
		Timestamp:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	doc, err := toDocument(line)
	require.NoError(t, err)
	back, err := fromDocument(doc)
	require.NoError(t, err)

	assert.True(t, line.Amount.Equal(back.Amount))
	assert.Equal(t, line.TransactionID, back.TransactionID)
	assert.Equal(t, counterparty, *back.CounterpartyID)
	assert.Equal(t, "PG-1", back.Reference)
}
